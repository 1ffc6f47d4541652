package records

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/unowned-ai/nursery/pkg/db"
)

var (
	fixedNow      = time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	fixedExportID = uuid.MustParse("6f1c2b9e-3d4a-4c5b-9e8f-0a1b2c3d4e5f")
)

func testOptions() []Option {
	return []Option{
		WithClock(func() time.Time { return fixedNow }),
		WithExportID(func() uuid.UUID { return fixedExportID }),
	}
}

// newTestStore returns an open in-memory store.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := New(":memory:", db.TargetSchemaVersion, testOptions()...)
	require.NoError(t, s.Open(context.Background()))
	t.Cleanup(func() { s.Close() })
	return s
}

func mustAdd(t *testing.T, s *Store, collection string, rec Record) any {
	t.Helper()
	id, err := s.Add(context.Background(), collection, rec)
	require.NoError(t, err)
	return id
}

func ids(recs []Record) []any {
	out := make([]any, len(recs))
	for i, r := range recs {
		out[i] = r[KeyField]
	}
	return out
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nursery.db")
	ctx := context.Background()

	s := New(path, db.TargetSchemaVersion)
	require.NoError(t, s.Open(ctx))
	require.NoError(t, s.Open(ctx))
	mustAdd(t, s, db.Children, Record{"name": "Mina", "birthDate": "2023-01-01"})
	require.NoError(t, s.Close())

	reopened := New(path, db.TargetSchemaVersion)
	defer reopened.Close()
	n, err := reopened.Count(ctx, db.Children)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestOpen_RefusesNewerSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nursery.db")
	ctx := context.Background()

	newer := New(path, 2)
	require.NoError(t, newer.Open(ctx))
	require.NoError(t, newer.Close())

	older := New(path, 1)
	err := older.Open(ctx)
	assert.ErrorIs(t, err, ErrConnection)
	assert.ErrorIs(t, err, db.ErrSchemaTooNew)
}

func TestOpen_InvalidConfiguration(t *testing.T) {
	ctx := context.Background()
	assert.ErrorIs(t, New("", 1).Open(ctx), ErrConnection)
	assert.ErrorIs(t, New(":memory:", 0).Open(ctx), ErrConnection)
	assert.ErrorIs(t, New(":memory:", 1, WithSyncMode("sometimes")).Open(ctx), ErrConnection)
}

func TestOperationsOpenLazily(t *testing.T) {
	s := New(":memory:", db.TargetSchemaVersion)
	defer s.Close()

	id, err := s.Add(context.Background(), db.Children, Record{"name": "Mina", "birthDate": "2023-01-01"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)
}

func TestAdd_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	in := Record{
		"childId":   float64(1),
		"timestamp": "2024-05-01T07:30:00Z",
		"type":      "solidFood",
		"foodItems": []any{"carrot", "pear"},
		"notes":     "first try",
	}
	id, err := s.Add(ctx, db.Feeding, in)
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)
	_, mutated := in[KeyField]
	assert.False(t, mutated, "Add must not modify the caller's record")

	got, ok, err := s.Get(ctx, db.Feeding, id)
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, id, got[KeyField])
	assert.Equal(t, "2024-05-01T08:00:00Z", got[CreatedAtField])
	delete(got, KeyField)
	delete(got, CreatedAtField)
	assert.Equal(t, in, got)
}

func TestAdd_TimestampExemptions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	childID := mustAdd(t, s, db.Children, Record{"name": "Mina", "birthDate": "2023-01-01"})
	child, _, err := s.Get(ctx, db.Children, childID)
	require.NoError(t, err)
	assert.NotContains(t, child, CreatedAtField)

	mustAdd(t, s, db.Settings, Record{KeyField: db.SettingsKey, "darkMode": true})
	settings, ok, err := s.Get(ctx, db.Settings, db.SettingsKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotContains(t, settings, CreatedAtField)
	assert.Equal(t, db.SettingsKey, settings[KeyField])

	// A caller-provided createdAt is kept.
	feedID := mustAdd(t, s, db.Feeding, Record{"childId": 1, "timestamp": "2024-05-01T07:00:00Z", "type": "water", CreatedAtField: "2020-01-01T00:00:00Z"})
	feed, _, err := s.Get(ctx, db.Feeding, feedID)
	require.NoError(t, err)
	assert.Equal(t, "2020-01-01T00:00:00Z", feed[CreatedAtField])
}

func TestAdd_KeyRules(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id := mustAdd(t, s, db.Diaper, Record{KeyField: 10, "childId": 1, "timestamp": "2024-05-01T07:00:00Z", "type": "wet"})
	assert.Equal(t, int64(10), id)

	_, err := s.Add(ctx, db.Diaper, Record{KeyField: 10, "childId": 1, "timestamp": "2024-05-01T08:00:00Z", "type": "dry"})
	assert.ErrorIs(t, err, ErrWrite)

	_, err = s.Add(ctx, db.Settings, Record{"darkMode": true})
	assert.ErrorIs(t, err, ErrWrite)

	_, err = s.Add(ctx, db.Diaper, Record{"childId": 1, "timestamp": "not a time", "type": "wet"})
	assert.ErrorIs(t, err, ErrWrite)
}

func TestAdd_KeysAreNeverReused(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := mustAdd(t, s, db.Mood, Record{"childId": 1, "timestamp": "2024-05-01T07:00:00Z", "mood": "happy"})
	second := mustAdd(t, s, db.Mood, Record{"childId": 1, "timestamp": "2024-05-01T08:00:00Z", "mood": "tired"})
	require.NoError(t, s.Delete(ctx, db.Mood, second))

	third := mustAdd(t, s, db.Mood, Record{"childId": 1, "timestamp": "2024-05-01T09:00:00Z", "mood": "calm"})
	assert.Equal(t, int64(1), first)
	assert.Equal(t, int64(2), second)
	assert.Equal(t, int64(3), third)
}

func TestGet_Missing(t *testing.T) {
	s := newTestStore(t)

	rec, ok, err := s.Get(context.Background(), db.Children, 42)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, rec)
}

func TestGet_AcceptsKeyForms(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mustAdd(t, s, db.Children, Record{"name": "Mina", "birthDate": "2023-01-01"})

	for _, key := range []any{1, int64(1), float64(1), "1"} {
		_, ok, err := s.Get(ctx, db.Children, key)
		require.NoError(t, err)
		assert.True(t, ok, "key %v (%T)", key, key)
	}

	_, _, err := s.Get(ctx, db.Children, "one")
	assert.ErrorIs(t, err, ErrQuery)

	for _, key := range []float64{1 << 63, -(1 << 64), math.Inf(1), math.NaN(), 1.5} {
		_, _, err := s.Get(ctx, db.Children, key)
		assert.ErrorIs(t, err, ErrQuery, "key %v", key)
	}
}

func TestUpdate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id := mustAdd(t, s, db.Sleep, Record{"childId": 1, "startTime": "2024-05-01T13:00:00Z"})
	rec, _, err := s.Get(ctx, db.Sleep, id)
	require.NoError(t, err)

	rec["endTime"] = "2024-05-01T14:30:00Z"
	require.NoError(t, s.Update(ctx, db.Sleep, rec))

	got, _, err := s.Get(ctx, db.Sleep, id)
	require.NoError(t, err)
	assert.Equal(t, "2024-05-01T14:30:00Z", got["endTime"])

	// Update of an absent key inserts it.
	require.NoError(t, s.Update(ctx, db.Sleep, Record{KeyField: 99, "childId": 2, "startTime": "2024-05-02T13:00:00Z"}))
	_, ok, err := s.Get(ctx, db.Sleep, 99)
	require.NoError(t, err)
	assert.True(t, ok)

	// Index columns follow the replaced document.
	rec["childId"] = 5
	require.NoError(t, s.Update(ctx, db.Sleep, rec))
	moved, err := s.GetByIndex(ctx, db.Sleep, db.ChildIDIndex, 5)
	require.NoError(t, err)
	assert.Equal(t, []any{id}, ids(moved))

	assert.ErrorIs(t, s.Update(ctx, db.Sleep, Record{"childId": 1}), ErrWrite)
}

func TestDelete_Idempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id := mustAdd(t, s, db.Health, Record{"childId": 1, "date": "2024-05-01", "type": "weight", "value": 7.2})
	require.NoError(t, s.Delete(ctx, db.Health, id))
	require.NoError(t, s.Delete(ctx, db.Health, id))
	require.NoError(t, s.Delete(ctx, db.Health, 12345))

	_, ok, err := s.Get(ctx, db.Health, id)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUnknownNames(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.GetAll(ctx, "toys")
	assert.ErrorIs(t, err, ErrQuery)
	_, err = s.Add(ctx, "toys", Record{"name": "ball"})
	assert.ErrorIs(t, err, ErrQuery)
	_, err = s.GetByIndex(ctx, db.Feeding, "colorIndex", "red")
	assert.ErrorIs(t, err, ErrQuery)
	_, err = s.GetByDateRange(ctx, db.Feeding, "typeIndex", 0, 1)
	assert.ErrorIs(t, err, ErrQuery)
	_, err = s.GetChildRecordsByDateRange(ctx, db.Feeding, "timestampIndex", 1, 0, 1)
	assert.ErrorIs(t, err, ErrQuery)
}

func TestGetAll_EmptyCollection(t *testing.T) {
	s := newTestStore(t)

	recs, err := s.GetAll(context.Background(), db.Milestones)
	require.NoError(t, err)
	assert.NotNil(t, recs)
	assert.Empty(t, recs)
}

func TestGetByIndex(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := mustAdd(t, s, db.Feeding, Record{"childId": 1, "timestamp": "2024-05-01T07:00:00Z", "type": "formula", "amount": 90, "unit": "ml"})
	b := mustAdd(t, s, db.Feeding, Record{"childId": 2, "timestamp": "2024-05-01T07:00:00Z", "type": "formula", "amount": 60, "unit": "ml"})
	c := mustAdd(t, s, db.Feeding, Record{"childId": 1, "timestamp": "2024-05-01T09:00:00Z", "type": "breastLeft", "duration": 600})

	byChild, err := s.GetByIndex(ctx, db.Feeding, db.ChildIDIndex, 1)
	require.NoError(t, err)
	assert.Equal(t, []any{a, c}, ids(byChild))

	byType, err := s.GetByIndex(ctx, db.Feeding, "typeIndex", "formula")
	require.NoError(t, err)
	assert.Equal(t, []any{a, b}, ids(byType))

	composite, err := s.GetByIndex(ctx, db.Feeding, "childTimestampIndex", []any{1, "2024-05-01T09:00:00Z"})
	require.NoError(t, err)
	assert.Equal(t, []any{c}, ids(composite))

	_, err = s.GetByIndex(ctx, db.Feeding, "childTimestampIndex", 1)
	assert.ErrorIs(t, err, ErrQuery)

	none, err := s.GetByIndex(ctx, db.Feeding, db.ChildIDIndex, 3)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestGetByIndex_NormalizedNames(t *testing.T) {
	s := newTestStore(t)
	id := mustAdd(t, s, db.Children, Record{"name": "Renée", "birthDate": "2023-01-01"})

	found, err := s.GetByIndex(context.Background(), db.Children, "nameIndex", "Renée")
	require.NoError(t, err)
	assert.Equal(t, []any{id}, ids(found))
}

func TestGetByDateRange_Boundaries(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
	end := time.Date(2024, 5, 1, 23, 59, 59, 0, time.UTC).UnixMilli()

	mustAdd(t, s, db.Diaper, Record{"childId": 1, "timestamp": start - 1, "type": "wet"})
	atStart := mustAdd(t, s, db.Diaper, Record{"childId": 1, "timestamp": start, "type": "wet"})
	middle := mustAdd(t, s, db.Diaper, Record{"childId": 1, "timestamp": "2024-05-01T12:00:00Z", "type": "dirty"})
	atEnd := mustAdd(t, s, db.Diaper, Record{"childId": 1, "timestamp": end, "type": "mixed"})
	mustAdd(t, s, db.Diaper, Record{"childId": 1, "timestamp": end + 1, "type": "dry"})

	got, err := s.GetByDateRange(ctx, db.Diaper, "timestampIndex", start, end)
	require.NoError(t, err)
	assert.Equal(t, []any{atStart, middle, atEnd}, ids(got))

	// Higher-level bound types select the same records.
	got, err = s.GetByDateRange(ctx, db.Diaper, "timestampIndex",
		time.UnixMilli(start).UTC(), time.UnixMilli(end).UTC().Format(time.RFC3339Nano))
	require.NoError(t, err)
	assert.Equal(t, []any{atStart, middle, atEnd}, ids(got))

	empty, err := s.GetByDateRange(ctx, db.Diaper, "timestampIndex", end, start)
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = s.GetByDateRange(ctx, db.Diaper, "timestampIndex", "someday", end)
	assert.ErrorIs(t, err, ErrQuery)
}

func TestGetChildRecordsByDateRange_Isolation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2024, 5, 1, 6, 0, 0, 0, time.UTC)
	var wantA []any
	// Interleave two children's records so storage order alternates.
	for i := 0; i < 6; i++ {
		ts := base.Add(time.Duration(i) * time.Hour).Format(time.RFC3339)
		idA := mustAdd(t, s, db.Mood, Record{"childId": 1, "timestamp": ts, "mood": "happy"})
		mustAdd(t, s, db.Mood, Record{"childId": 2, "timestamp": ts, "mood": "fussy"})
		if i >= 1 && i <= 4 {
			wantA = append(wantA, idA)
		}
	}

	got, err := s.GetChildRecordsByDateRange(ctx, db.Mood, "childTimestampIndex", 1,
		base.Add(time.Hour), base.Add(4*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, wantA, ids(got))
	for _, rec := range got {
		assert.Equal(t, float64(1), rec["childId"])
	}

	none, err := s.GetChildRecordsByDateRange(ctx, db.Mood, "childTimestampIndex", 3, base, base.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestChildDeletionLeavesRecordsOrphaned(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	childID, err := s.Add(ctx, db.Children, Record{"name": "Mina", "birthDate": "2023-01-01"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), childID)

	ts := time.Date(2024, 5, 1, 7, 30, 0, 0, time.UTC)
	feedID, err := s.Add(ctx, db.Feeding, Record{"childId": childID, "timestamp": ts, "type": "formula", "amount": 120, "unit": "ml"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), feedID)

	tMillis := ts.UnixMilli()
	got, err := s.GetChildRecordsByDateRange(ctx, db.Feeding, "childTimestampIndex", 1, tMillis-1, tMillis+1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, feedID, got[0][KeyField])
	assert.Equal(t, float64(120), got[0]["amount"])

	require.NoError(t, s.Delete(ctx, db.Children, 1))

	orphans, err := s.GetByIndex(ctx, db.Feeding, db.ChildIDIndex, 1)
	require.NoError(t, err)
	assert.Equal(t, []any{feedID}, ids(orphans))
}

func TestParseQueryValue(t *testing.T) {
	assert.Equal(t, float64(1), ParseQueryValue("1"))
	assert.Equal(t, true, ParseQueryValue("true"))
	assert.Equal(t, []any{float64(1), "2024-05-01"}, ParseQueryValue(`[1,"2024-05-01"]`))
	assert.Equal(t, "formula", ParseQueryValue("formula"))
	assert.Equal(t, "2024-05-01", ParseQueryValue("2024-05-01"))
	assert.Equal(t, `"quoted"`, ParseQueryValue(`"quoted"`))
}
