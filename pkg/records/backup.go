package records

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/unowned-ai/nursery/pkg/db"
)

// MetadataKey is the snapshot member holding Metadata.
const MetadataKey = "metadata"

// Metadata identifies the application and schema a snapshot was taken from.
type Metadata struct {
	ExportDate    string    `json:"exportDate"`
	SchemaVersion int64     `json:"schemaVersion"`
	AppIdentifier string    `json:"appIdentifier"`
	ExportID      uuid.UUID `json:"exportId"`
}

// Snapshot is the full content of a store: every collection's records plus
// metadata. It encodes as one flat JSON object keyed by collection name.
type Snapshot struct {
	Collections map[string][]Record
	Metadata    *Metadata
}

// MarshalJSON writes {"<collection>": [...], ..., "metadata": {...}}.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	doc := make(map[string]any, len(s.Collections)+1)
	for name, recs := range s.Collections {
		if recs == nil {
			recs = []Record{}
		}
		doc[name] = recs
	}
	if s.Metadata != nil {
		doc[MetadataKey] = s.Metadata
	}
	return json.Marshal(doc)
}

// UnmarshalJSON reads the flat snapshot document. A missing metadata member
// leaves Metadata nil.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	s.Collections = make(map[string][]Record, len(raw))
	s.Metadata = nil
	for name, msg := range raw {
		if name == MetadataKey {
			var meta Metadata
			if err := json.Unmarshal(msg, &meta); err != nil {
				return fmt.Errorf("metadata: %w", err)
			}
			s.Metadata = &meta
			continue
		}
		var recs []Record
		if err := json.Unmarshal(msg, &recs); err != nil {
			return fmt.Errorf("collection %q: %w", name, err)
		}
		s.Collections[name] = recs
	}
	return nil
}

// BackupFilename names a backup file taken at t.
func BackupFilename(t time.Time) string {
	return fmt.Sprintf("nursery-backup-%s.json", t.Format("2006-01-02"))
}

// WriteSnapshot writes snap as indented JSON.
func WriteSnapshot(w io.Writer, snap Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

// ReadSnapshot parses a snapshot document. Malformed input is ErrInvalidBackup.
func ReadSnapshot(r io.Reader) (Snapshot, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Snapshot{}, fmt.Errorf("read snapshot: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return Snapshot{}, fmt.Errorf("%w: empty document", ErrInvalidBackup)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %w", ErrInvalidBackup, err)
	}
	return snap, nil
}

// ExportAll reads every declared collection inside one read transaction.
// Empty collections appear as empty lists.
func (s *Store) ExportAll(ctx context.Context) (Snapshot, error) {
	conn, err := s.handle(ctx)
	if err != nil {
		return Snapshot{}, err
	}

	tx, err := conn.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: begin export: %w", ErrQuery, err)
	}
	defer tx.Rollback()

	snap := Snapshot{Collections: make(map[string][]Record, len(s.collections))}
	for _, c := range s.collections {
		recs, err := listAll(ctx, tx, c)
		if err != nil {
			return Snapshot{}, err
		}
		snap.Collections[c.Name] = recs
	}

	snap.Metadata = &Metadata{
		ExportDate:    s.now().UTC().Format(time.RFC3339),
		SchemaVersion: s.version,
		AppIdentifier: s.appID,
		ExportID:      s.newExportID(),
	}
	s.logger.InfoContext(ctx, "store exported", "export_id", snap.Metadata.ExportID)
	return snap, nil
}

type restoreSet struct {
	collection db.Collection
	rows       []encoded
}

// ImportAll replaces the content of every collection present in snap with the
// snapshot's records, keeping their original keys. The snapshot is validated
// first; nothing is written unless it is valid. All collections are restored
// in a single transaction, so a failure leaves the store untouched.
func (s *Store) ImportAll(ctx context.Context, snap Snapshot) error {
	sets, err := s.prepareRestore(snap)
	if err != nil {
		return err
	}

	conn, err := s.handle(ctx)
	if err != nil {
		return err
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin import: %w", ErrWrite, err)
	}
	defer tx.Rollback()

	for _, set := range sets {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s;", set.collection.Table())); err != nil {
			return fmt.Errorf("%w: clear %s: %w", ErrWrite, set.collection.Name, err)
		}
		for _, row := range set.rows {
			if _, err := insertRecord(ctx, tx, set.collection, row); err != nil {
				return fmt.Errorf("%w: restore %s %v: %w", ErrWrite, set.collection.Name, row.key, err)
			}
		}
		s.logger.DebugContext(ctx, "collection restored", "collection", set.collection.Name, "records", len(set.rows))
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit import: %w", ErrWrite, err)
	}
	s.logger.InfoContext(ctx, "store imported", "collections", len(sets), "export_id", snap.Metadata.ExportID)
	return nil
}

func (s *Store) prepareRestore(snap Snapshot) ([]restoreSet, error) {
	if snap.Metadata == nil {
		return nil, fmt.Errorf("%w: missing metadata", ErrInvalidBackup)
	}
	if snap.Metadata.AppIdentifier != s.appID {
		return nil, fmt.Errorf("%w: backup belongs to %q, expected %q", ErrInvalidBackup, snap.Metadata.AppIdentifier, s.appID)
	}
	if snap.Metadata.SchemaVersion > s.version {
		return nil, fmt.Errorf("%w: backup schema version %d is newer than %d", ErrInvalidBackup, snap.Metadata.SchemaVersion, s.version)
	}

	for name := range snap.Collections {
		if _, ok := db.Lookup(s.collections, name); !ok {
			s.logger.Warn("skipping unknown collection in backup", "collection", name)
		}
	}

	var sets []restoreSet
	for _, c := range s.collections {
		recs, ok := snap.Collections[c.Name]
		if !ok {
			continue
		}
		set := restoreSet{collection: c, rows: make([]encoded, 0, len(recs))}
		seen := make(map[any]bool, len(recs))
		for i, rec := range recs {
			enc, err := encodeRecord(c, rec)
			if err != nil {
				return nil, fmt.Errorf("%w: %s record %d: %w", ErrInvalidBackup, c.Name, i, err)
			}
			if enc.key == nil {
				return nil, fmt.Errorf("%w: %s record %d: %w", ErrInvalidBackup, c.Name, i, errNoKey)
			}
			if seen[enc.key] {
				return nil, fmt.Errorf("%w: %s key %v appears twice", ErrInvalidBackup, c.Name, enc.key)
			}
			seen[enc.key] = true
			set.rows = append(set.rows, enc)
		}
		sets = append(sets, set)
	}
	return sets, nil
}
