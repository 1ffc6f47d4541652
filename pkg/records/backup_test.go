package records

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/unowned-ai/nursery/pkg/db"
)

// seedFamily stores one child, one feeding and the settings record.
func seedFamily(t *testing.T, s *Store) {
	t.Helper()
	mustAdd(t, s, db.Children, Record{"name": "Mina", "birthDate": "2023-01-01"})
	mustAdd(t, s, db.Feeding, Record{"childId": 1, "timestamp": "2024-05-01T07:30:00Z", "type": "formula", "amount": 120, "unit": "ml"})
	mustAdd(t, s, db.Settings, Record{KeyField: db.SettingsKey, "darkMode": true, "activeChildId": 1})
}

func dump(t *testing.T, s *Store) map[string][]Record {
	t.Helper()
	out := make(map[string][]Record)
	for _, c := range s.Collections() {
		recs, err := s.GetAll(context.Background(), c.Name)
		require.NoError(t, err)
		out[c.Name] = recs
	}
	return out
}

func TestExportAll_Golden(t *testing.T) {
	s := newTestStore(t)
	seedFamily(t, s)

	snap, err := s.ExportAll(context.Background())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteSnapshot(&buf, snap))

	g := goldie.New(t, goldie.WithFixtureDir("testdata/golden"), goldie.WithNameSuffix(".golden"))
	g.Assert(t, "export_snapshot", buf.Bytes())
}

func TestExportAll_ListsEveryCollection(t *testing.T) {
	s := newTestStore(t)

	snap, err := s.ExportAll(context.Background())
	require.NoError(t, err)
	require.NotNil(t, snap.Metadata)
	assert.Equal(t, DefaultAppIdentifier, snap.Metadata.AppIdentifier)
	assert.Equal(t, db.TargetSchemaVersion, snap.Metadata.SchemaVersion)
	assert.Equal(t, "2024-05-01T08:00:00Z", snap.Metadata.ExportDate)
	assert.Equal(t, fixedExportID, snap.Metadata.ExportID)

	for _, c := range db.Collections {
		recs, ok := snap.Collections[c.Name]
		assert.True(t, ok, "collection %s missing", c.Name)
		assert.Empty(t, recs)
	}
}

func TestExportImport_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedFamily(t, s)
	mustAdd(t, s, db.Sleep, Record{"childId": 1, "startTime": "2024-05-01T13:00:00Z", "endTime": "2024-05-01T14:00:00Z"})
	before := dump(t, s)

	snap, err := s.ExportAll(ctx)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteSnapshot(&buf, snap))

	// Diverge from the snapshot, then restore it.
	mustAdd(t, s, db.Diaper, Record{"childId": 1, "timestamp": "2024-05-01T15:00:00Z", "type": "wet"})
	require.NoError(t, s.Delete(ctx, db.Feeding, 1))

	parsed, err := ReadSnapshot(&buf)
	require.NoError(t, err)
	require.NoError(t, s.ImportAll(ctx, parsed))

	assert.Equal(t, before, dump(t, s))

	// Restored records stay reachable through their indexes.
	byChild, err := s.GetByIndex(ctx, db.Feeding, db.ChildIDIndex, 1)
	require.NoError(t, err)
	assert.Len(t, byChild, 1)
}

func TestImportAll_IntoFreshStore(t *testing.T) {
	src := newTestStore(t)
	seedFamily(t, src)
	snap, err := src.ExportAll(context.Background())
	require.NoError(t, err)

	dst := newTestStore(t)
	require.NoError(t, dst.ImportAll(context.Background(), snap))
	assert.Equal(t, dump(t, src), dump(t, dst))

	// Auto keys continue after the restored ones.
	id := mustAdd(t, dst, db.Feeding, Record{"childId": 1, "timestamp": "2024-05-02T07:30:00Z", "type": "water"})
	assert.Equal(t, int64(2), id)
}

func TestImportAll_RejectsInvalidSnapshots(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{name: "empty object", doc: `{}`},
		{name: "foreign application", doc: `{"metadata":{"appIdentifier":"other-app","schemaVersion":1}}`},
		{name: "newer schema", doc: `{"metadata":{"appIdentifier":"nursery","schemaVersion":9}}`},
		{name: "keyless record", doc: `{"metadata":{"appIdentifier":"nursery","schemaVersion":1},"children":[{"name":"Ada"}]}`},
		{name: "duplicate keys", doc: `{"metadata":{"appIdentifier":"nursery","schemaVersion":1},"children":[{"id":1},{"id":1}]}`},
		{name: "bad time field", doc: `{"metadata":{"appIdentifier":"nursery","schemaVersion":1},"feeding":[{"id":1,"timestamp":"yesterday"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore(t)
			seedFamily(t, s)
			before := dump(t, s)

			snap, err := ReadSnapshot(strings.NewReader(tt.doc))
			require.NoError(t, err)

			err = s.ImportAll(context.Background(), snap)
			assert.ErrorIs(t, err, ErrInvalidBackup)
			assert.Equal(t, before, dump(t, s))
		})
	}
}

func TestImportAll_LeavesAbsentCollectionsAlone(t *testing.T) {
	s := newTestStore(t)
	seedFamily(t, s)

	doc := `{"metadata":{"appIdentifier":"nursery","schemaVersion":1},"toys":[{"id":1}],"children":[{"id":5,"name":"Ada","birthDate":"2024-02-02"}]}`
	snap, err := ReadSnapshot(strings.NewReader(doc))
	require.NoError(t, err)
	require.NoError(t, s.ImportAll(context.Background(), snap))

	children, err := s.GetAll(context.Background(), db.Children)
	require.NoError(t, err)
	assert.Equal(t, []any{int64(5)}, ids(children))

	feeds, err := s.GetAll(context.Background(), db.Feeding)
	require.NoError(t, err)
	assert.Len(t, feeds, 1)
}

func TestReadSnapshot_Malformed(t *testing.T) {
	for _, doc := range []string{"", "   ", "not json", `{"children": {"id": 1}}`, `{"metadata": []}`} {
		_, err := ReadSnapshot(strings.NewReader(doc))
		assert.ErrorIs(t, err, ErrInvalidBackup, "document %q", doc)
	}
}

func TestBackupFilename(t *testing.T) {
	assert.Equal(t, "nursery-backup-2024-05-01.json", BackupFilename(fixedNow))
}

func TestDeleteAll_FileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nursery.db")
	ctx := context.Background()

	s := New(path, db.TargetSchemaVersion, WithWAL(true), WithSyncMode("NORMAL"))
	defer s.Close()
	seedFamily(t, s)

	require.NoError(t, s.DeleteAll(ctx))
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "database file should be gone, stat err: %v", err)

	// The next operation recreates an empty store.
	n, err := s.Count(ctx, db.Children)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDeleteAll_MemoryStore(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedFamily(t, s)

	require.NoError(t, s.DeleteAll(ctx))

	snap, err := s.ExportAll(ctx)
	require.NoError(t, err)
	for name, recs := range snap.Collections {
		assert.Empty(t, recs, "collection %s", name)
	}
}

func TestExportAll_UsesClock(t *testing.T) {
	later := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	s := New(":memory:", db.TargetSchemaVersion, WithClock(func() time.Time { return later }))
	defer s.Close()

	snap, err := s.ExportAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2025-01-02T03:04:05Z", snap.Metadata.ExportDate)
}
