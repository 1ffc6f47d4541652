package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/unowned-ai/nursery/pkg/db"
)

// DefaultAppIdentifier tags snapshots written by this application.
const DefaultAppIdentifier = "nursery"

// Store owns one versioned local database. The connection is opened lazily by
// the first operation and shared by every caller holding the Store.
type Store struct {
	name        string
	version     int64
	appID       string
	collections []db.Collection
	logger      *slog.Logger
	now         func() time.Time
	newExportID func() uuid.UUID
	walMode     bool
	syncMode    string

	mu   sync.Mutex
	conn *sql.DB
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for schema and restore messages.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// WithAppIdentifier sets the identifier written to and required from snapshots.
func WithAppIdentifier(appID string) Option {
	return func(s *Store) { s.appID = appID }
}

// WithClock replaces time.Now for createdAt stamps and export dates.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithExportID replaces the generator of snapshot export ids.
func WithExportID(newID func() uuid.UUID) Option {
	return func(s *Store) { s.newExportID = newID }
}

// WithWAL enables SQLite write-ahead logging.
func WithWAL(enabled bool) Option {
	return func(s *Store) { s.walMode = enabled }
}

// WithSyncMode sets the SQLite synchronous pragma (OFF, NORMAL, FULL, EXTRA).
func WithSyncMode(mode string) Option {
	return func(s *Store) { s.syncMode = mode }
}

// New returns a Store for the database name (a file path, or ":memory:") at
// schema version. Nothing is opened until the first operation or Open.
func New(name string, version int64, opts ...Option) *Store {
	s := &Store{
		name:        name,
		version:     version,
		appID:       DefaultAppIdentifier,
		collections: db.Collections,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:         time.Now,
		newExportID: uuid.New,
		syncMode:    "FULL",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the database name the store was created with.
func (s *Store) Name() string {
	return s.name
}

// Version returns the schema version the store opens at.
func (s *Store) Version() int64 {
	return s.version
}

// AppIdentifier returns the identifier snapshots must carry.
func (s *Store) AppIdentifier() string {
	return s.appID
}

// Collections returns the declared collections.
func (s *Store) Collections() []db.Collection {
	return s.collections
}

// Open connects to the database and bootstraps the schema if the recorded
// version is lower than the store's. Calling it on an open store is a no-op.
func (s *Store) Open(ctx context.Context) error {
	_, err := s.handle(ctx)
	return err
}

func (s *Store) handle(ctx context.Context) (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != nil {
		return s.conn, nil
	}

	if s.name == "" {
		return nil, fmt.Errorf("%w: database name is required", ErrConnection)
	}
	if s.version < 1 {
		return nil, fmt.Errorf("%w: schema version must be positive, got %d", ErrConnection, s.version)
	}

	conn, err := db.OpenDBConnection(s.name, s.walMode, s.syncMode)
	if err != nil {
		if errors.Is(err, db.ErrEngineUnavailable) {
			return nil, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrConnection, err)
	}

	if err := db.UpgradeDB(ctx, conn, s.name, s.collections, s.version, s.logger); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: %w", ErrConnection, err)
	}

	s.logger.Debug("store opened", "db", s.name, "version", s.version)
	s.conn = conn
	return conn, nil
}

// Close checkpoints the write-ahead log and closes the connection. The store
// reopens on its next operation.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeLocked()
}

func (s *Store) closeLocked() error {
	if s.conn == nil {
		return nil
	}
	if s.walMode {
		// TRUNCATE mode waits for transactions and writes the WAL back to the main DB.
		if _, err := s.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE);"); err != nil {
			s.logger.Warn("WAL checkpoint failed during close", "error", err)
		}
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}

// DeleteAll drops the whole local database: the connection is closed and the
// database file removed. The next operation recreates the schema from scratch.
func (s *Store) DeleteAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.closeLocked(); err != nil {
		return fmt.Errorf("%w: close before delete: %w", ErrWrite, err)
	}

	if db.IsMemoryDSN(s.name) {
		s.logger.InfoContext(ctx, "in-memory database dropped")
		return nil
	}

	path := db.FilePath(s.name)
	for _, p := range []string{path, path + "-wal", path + "-shm", path + "-journal"} {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: remove %s: %w", ErrWrite, p, err)
		}
	}
	s.logger.InfoContext(ctx, "database deleted", "path", path)
	return nil
}

func (s *Store) collection(name string) (db.Collection, error) {
	c, ok := db.Lookup(s.collections, name)
	if !ok {
		return db.Collection{}, fmt.Errorf("%w: unknown collection %q", ErrQuery, name)
	}
	return c, nil
}
