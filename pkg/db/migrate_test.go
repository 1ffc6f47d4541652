package db

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"testing"

	_ "github.com/mattn/go-sqlite3" // SQLite driver, needed for tests
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := OpenDBConnection(":memory:", true, "NORMAL")
	if err != nil {
		t.Fatalf("OpenDBConnection failed for in-memory DB: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// checkObjectExists is a test helper to verify if a table or index exists in the database.
func checkObjectExists(t *testing.T, db *sql.DB, kind, name string) {
	t.Helper()
	var found string
	err := db.QueryRow("SELECT name FROM sqlite_master WHERE type = ? AND name = ?;", kind, name).Scan(&found)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			t.Errorf("%s '%s' does not exist, but it should.", kind, name)
			return
		}
		t.Fatalf("Error checking if %s '%s' exists: %v", kind, name, err)
	}
}

func TestUpgradeDB_NewDatabase(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := UpgradeDB(ctx, db, ":memory:", Collections, TargetSchemaVersion, discardLogger()); err != nil {
		t.Fatalf("UpgradeDB failed on a new in-memory database: %v", err)
	}

	checkObjectExists(t, db, "table", "nursery_versions")
	for _, c := range Collections {
		checkObjectExists(t, db, "table", c.Name)
		for _, idx := range c.Indexes {
			checkObjectExists(t, db, "index", c.Name+"_"+idx.Name)
		}
	}

	version, err := GetComponentSchemaVersion(ctx, db, RecordsComponent)
	if err != nil {
		t.Fatalf("GetComponentSchemaVersion failed after UpgradeDB: %v", err)
	}
	if version != TargetSchemaVersion {
		t.Errorf("Expected component '%s' to be at version %d, but got %d", RecordsComponent, TargetSchemaVersion, version)
	}
}

func TestGetComponentSchemaVersion_MissingTable(t *testing.T) {
	db := openTestDB(t)

	version, err := GetComponentSchemaVersion(context.Background(), db, RecordsComponent)
	if err != nil {
		t.Fatalf("GetComponentSchemaVersion failed on an empty database: %v", err)
	}
	if version != 0 {
		t.Errorf("Expected version 0 for an empty database, got %d", version)
	}
}

func TestUpgradeDB_AlreadyUpToDate(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := InitializeSchema(ctx, db, Collections, TargetSchemaVersion, discardLogger()); err != nil {
		t.Fatalf("InitializeSchema failed: %v", err)
	}

	if err := UpgradeDB(ctx, db, ":memory:", Collections, TargetSchemaVersion, discardLogger()); err != nil {
		t.Fatalf("UpgradeDB failed on an up-to-date database: %v", err)
	}

	version, err := GetComponentSchemaVersion(ctx, db, RecordsComponent)
	if err != nil {
		t.Fatalf("GetComponentSchemaVersion failed: %v", err)
	}
	if version != TargetSchemaVersion {
		t.Errorf("Expected component '%s' to be at version %d, but got %d", RecordsComponent, TargetSchemaVersion, version)
	}
}

func TestUpgradeDB_OlderVersionIsUpgraded(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	const dbInitialSchemaVersion int64 = 1
	const appTargetsSchemaVersion int64 = 2

	if err := InitializeSchema(ctx, db, Collections, dbInitialSchemaVersion, discardLogger()); err != nil {
		t.Fatalf("InitializeSchema to version %d failed: %v", dbInitialSchemaVersion, err)
	}

	if err := UpgradeDB(ctx, db, ":memory:", Collections, appTargetsSchemaVersion, discardLogger()); err != nil {
		t.Fatalf("UpgradeDB should re-run the declarative bootstrap, got: %v", err)
	}

	version, err := GetComponentSchemaVersion(ctx, db, RecordsComponent)
	if err != nil {
		t.Fatalf("GetComponentSchemaVersion failed: %v", err)
	}
	if version != appTargetsSchemaVersion {
		t.Errorf("Expected version %d after upgrade, got %d", appTargetsSchemaVersion, version)
	}
}

func TestUpgradeDB_NewerVersionUnsupported(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	const dbInitialSchemaVersion int64 = 2
	const appTargetsSchemaVersion int64 = 1

	if err := InitializeSchema(ctx, db, Collections, dbInitialSchemaVersion, discardLogger()); err != nil {
		t.Fatalf("InitializeSchema to version %d failed: %v", dbInitialSchemaVersion, err)
	}

	err := UpgradeDB(ctx, db, ":memory:", Collections, appTargetsSchemaVersion, discardLogger())
	if !errors.Is(err, ErrSchemaTooNew) {
		t.Fatalf("Expected ErrSchemaTooNew, got: %v", err)
	}

	currentVersion, getErr := GetComponentSchemaVersion(ctx, db, RecordsComponent)
	if getErr != nil {
		t.Fatalf("GetComponentSchemaVersion failed after attempted upgrade: %v", getErr)
	}
	if currentVersion != dbInitialSchemaVersion {
		t.Errorf("Database schema version changed from %d to %d after a refused upgrade.", dbInitialSchemaVersion, currentVersion)
	}
}

func TestInitializeSchema_PartiallyMigratedStore(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	// A feeding table from before the index columns existed.
	_, err := db.Exec(`CREATE TABLE feeding (id INTEGER PRIMARY KEY AUTOINCREMENT, data TEXT NOT NULL);`)
	if err != nil {
		t.Fatalf("Failed to create legacy table: %v", err)
	}
	_, err = db.Exec(`INSERT INTO feeding (id, data) VALUES (7, '{"childId":3,"timestamp":"2024-05-01T08:00:00Z","type":"formula"}');`)
	if err != nil {
		t.Fatalf("Failed to insert legacy row: %v", err)
	}

	if err := InitializeSchema(ctx, db, Collections, TargetSchemaVersion, discardLogger()); err != nil {
		t.Fatalf("InitializeSchema failed on a partially migrated store: %v", err)
	}
	// Running it twice must be harmless.
	if err := InitializeSchema(ctx, db, Collections, TargetSchemaVersion, discardLogger()); err != nil {
		t.Fatalf("second InitializeSchema failed: %v", err)
	}

	var childID, timestamp int64
	var kind string
	err = db.QueryRow(`SELECT ix_childId, ix_timestamp, ix_type FROM feeding WHERE id = 7;`).Scan(&childID, &timestamp, &kind)
	if err != nil {
		t.Fatalf("Failed to read backfilled columns: %v", err)
	}
	if childID != 3 {
		t.Errorf("Expected backfilled childId 3, got %d", childID)
	}
	if timestamp != 1714550400000 {
		t.Errorf("Expected backfilled timestamp 1714550400000, got %d", timestamp)
	}
	if kind != "formula" {
		t.Errorf("Expected backfilled type formula, got %s", kind)
	}
	checkObjectExists(t, db, "index", "feeding_childTimestampIndex")
}
