package db

import (
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// DriverName is the database/sql driver the record store runs on.
const DriverName = "sqlite3"

// busyTimeoutMillis bounds how long a write waits on a lock held by another connection.
const busyTimeoutMillis = 5000

// ErrEngineUnavailable reports that this binary cannot run SQLite at all
// (driver missing, or built without cgo).
var ErrEngineUnavailable = errors.New("embedded database engine unavailable")

// validSyncModes lists the allowed values for the synchronous pragma.
var validSyncModes = map[string]bool{
	"OFF":    true,
	"NORMAL": true,
	"FULL":   true,
	"EXTRA":  true, // SQLite also supports EXTRA
}

// Available reports whether the SQLite driver is linked into this binary.
func Available() error {
	if !slices.Contains(sql.Drivers(), DriverName) {
		return fmt.Errorf("%w: driver %q is not registered", ErrEngineUnavailable, DriverName)
	}
	return nil
}

// OpenDBConnection establishes a connection to a SQLite database with specified options.
// baseDSN is the initial data source name (e.g., file path or ":memory:").
// enableWAL sets the journal_mode to WAL if true.
// syncPragma sets the synchronous pragma (e.g., "OFF", "NORMAL", "FULL", "EXTRA").
//
// The pool is limited to a single connection: SQLite has one writer, and an
// in-memory database only lives as long as the connection that created it.
func OpenDBConnection(baseDSN string, enableWAL bool, syncPragma string) (*sql.DB, error) {
	if err := Available(); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Add("_busy_timeout", fmt.Sprint(busyTimeoutMillis))

	if enableWAL {
		params.Add("_journal_mode", "WAL")
	}

	if syncPragma != "" {
		ucSyncPragma := strings.ToUpper(syncPragma)
		if !validSyncModes[ucSyncPragma] {
			return nil, fmt.Errorf("invalid sync pragma value: %s. Must be one of OFF, NORMAL, FULL, EXTRA", syncPragma)
		}
		params.Add("_synchronous", ucSyncPragma)
	}

	constructedDSN := baseDSN
	if strings.Contains(baseDSN, "?") {
		constructedDSN += "&" + params.Encode()
	} else {
		constructedDSN += "?" + params.Encode()
	}

	db, err := sql.Open(DriverName, constructedDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database with DSN '%s': %w", constructedDSN, err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	// Ping the database to ensure the connection is alive and the DSN is valid.
	if err = db.Ping(); err != nil {
		db.Close()
		if strings.Contains(err.Error(), "requires cgo") {
			return nil, fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
		}
		return nil, fmt.Errorf("failed to ping database with DSN '%s': %w", constructedDSN, err)
	}

	// Foreign keys stay on for parity with the driver defaults; the record
	// tables themselves declare none, so deleting a child never cascades.
	_, err = db.Exec("PRAGMA foreign_keys = ON;")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign key support for DSN '%s': %w", constructedDSN, err)
	}

	return db, nil
}

// IsMemoryDSN reports whether dsn names an in-memory database.
func IsMemoryDSN(dsn string) bool {
	return dsn == ":memory:" ||
		strings.HasPrefix(dsn, ":memory:?") ||
		strings.HasPrefix(dsn, "file::memory:") ||
		strings.Contains(dsn, "mode=memory")
}

// FilePath extracts the on-disk path from a file DSN, dropping the "file:"
// scheme and any query parameters.
func FilePath(dsn string) string {
	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	return path
}
