package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

const (
	// TargetSchemaVersion is the highest schema version this version of the code supports for the records component.
	TargetSchemaVersion int64 = 1
	// RecordsComponent is the name of the record store component in nursery_versions.
	RecordsComponent = "records"
)

// ErrSchemaTooNew is returned when the database was written by a newer release.
var ErrSchemaTooNew = errors.New("database schema is newer than this application")

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// GetComponentSchemaVersion retrieves the schema version for a given component.
// Returns 0 if the component is not found or the versions table doesn't exist.
func GetComponentSchemaVersion(ctx context.Context, db *sql.DB, componentName string) (int64, error) {
	query := `SELECT version FROM nursery_versions WHERE component = ?;`

	var version int64
	err := db.QueryRowContext(ctx, query, componentName).Scan(&version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		if strings.Contains(err.Error(), "no such table") && strings.Contains(err.Error(), "nursery_versions") {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to scan version for component '%s': %w", componentName, err)
	}
	return version, nil
}

// InitializeSchema creates every declared collection with its indexes and
// records schemaVersionToSet for the records component, in one transaction.
// It is safe to run against a partially created store.
func InitializeSchema(ctx context.Context, db *sql.DB, collections []Collection, schemaVersionToSet int64, logger *slog.Logger) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin schema transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, versionsTableSQL); err != nil {
		return fmt.Errorf("failed to create versions table: %w", err)
	}

	for _, c := range collections {
		if err := bootstrapCollection(ctx, tx, c, logger); err != nil {
			return fmt.Errorf("failed to bootstrap collection %s: %w", c.Name, err)
		}
	}

	insertVersionSQL := `
INSERT INTO nursery_versions (component, version) VALUES (?, ?)
ON CONFLICT(component) DO UPDATE SET version = excluded.version, created_at = unixepoch();`

	if _, err := tx.ExecContext(ctx, insertVersionSQL, RecordsComponent, schemaVersionToSet); err != nil {
		return fmt.Errorf("failed to insert/update version for component %s to %d: %w", RecordsComponent, schemaVersionToSet, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit schema: %w", err)
	}

	logger.Info("schema initialized", "component", RecordsComponent, "version", schemaVersionToSet)
	return nil
}

// UpgradeDB brings the records component of db to appTargetSchemaVersion.
// A store at a lower version (0 for a new database) is bootstrapped; a store
// at a higher version is refused with ErrSchemaTooNew.
// dbIdentifierForLog is used for logging purposes only.
func UpgradeDB(ctx context.Context, db *sql.DB, dbIdentifierForLog string, collections []Collection, appTargetSchemaVersion int64, logger *slog.Logger) error {
	currentDBVersion, err := GetComponentSchemaVersion(ctx, db, RecordsComponent)
	if err != nil {
		return err
	}

	switch {
	case currentDBVersion == appTargetSchemaVersion:
		logger.Debug("schema up to date", "db", dbIdentifierForLog, "version", currentDBVersion)
		return nil
	case currentDBVersion > appTargetSchemaVersion:
		return fmt.Errorf("%w: component %s in database '%s' has schema version %d, application targets %d",
			ErrSchemaTooNew, RecordsComponent, dbIdentifierForLog, currentDBVersion, appTargetSchemaVersion)
	}

	logger.Info("upgrading schema", "db", dbIdentifierForLog, "from", currentDBVersion, "to", appTargetSchemaVersion)
	if err := InitializeSchema(ctx, db, collections, appTargetSchemaVersion, logger); err != nil {
		return fmt.Errorf("failed to upgrade component %s in database '%s': %w", RecordsComponent, dbIdentifierForLog, err)
	}
	return nil
}

func bootstrapCollection(ctx context.Context, tx execer, c Collection, logger *slog.Logger) error {
	if _, err := tx.ExecContext(ctx, c.createTableSQL()); err != nil {
		return fmt.Errorf("create table: %w", err)
	}

	existing, err := tableColumns(ctx, tx, c.Name)
	if err != nil {
		return err
	}

	for _, f := range c.IndexedFields() {
		column := ColumnName(f)
		if existing[column] {
			continue
		}
		alter := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s;", c.Table(), c.columnDefinition(f))
		if _, err := tx.ExecContext(ctx, alter); err != nil {
			return fmt.Errorf("add column %s: %w", column, err)
		}
		if err := backfillColumn(ctx, tx, c, f); err != nil {
			return err
		}
		logger.Info("added index column", "collection", c.Name, "field", f)
	}

	for _, idx := range c.Indexes {
		if _, err := tx.ExecContext(ctx, c.createIndexSQL(idx)); err != nil {
			return fmt.Errorf("create index %s: %w", idx.Name, err)
		}
	}
	return nil
}

func tableColumns(ctx context.Context, tx execer, table string) (map[string]bool, error) {
	rows, err := tx.QueryContext(ctx, "SELECT name FROM pragma_table_info(?);", table)
	if err != nil {
		return nil, fmt.Errorf("read columns of %s: %w", table, err)
	}
	defer rows.Close()

	columns := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan column of %s: %w", table, err)
		}
		columns[name] = true
	}
	return columns, rows.Err()
}

// backfillColumn fills a newly added index column from the stored documents.
func backfillColumn(ctx context.Context, tx execer, c Collection, field string) error {
	rows, err := tx.QueryContext(ctx, fmt.Sprintf("SELECT id, data FROM %s;", c.Table()))
	if err != nil {
		return fmt.Errorf("read %s for backfill: %w", c.Name, err)
	}

	type pending struct {
		id    any
		value any
	}
	var updates []pending
	for rows.Next() {
		var id any
		var data string
		if err := rows.Scan(&id, &data); err != nil {
			rows.Close()
			return fmt.Errorf("scan %s for backfill: %w", c.Name, err)
		}
		var doc map[string]any
		if err := json.Unmarshal([]byte(data), &doc); err != nil {
			rows.Close()
			return fmt.Errorf("decode %s record %v: %w", c.Name, id, err)
		}
		value, err := IndexValue(c, field, doc[field])
		if err != nil {
			rows.Close()
			return fmt.Errorf("index %s record %v: %w", c.Name, id, err)
		}
		updates = append(updates, pending{id: id, value: value})
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	update := fmt.Sprintf("UPDATE %s SET %s = ? WHERE id = ?;", c.Table(), quoteIdent(ColumnName(field)))
	for _, u := range updates {
		if _, err := tx.ExecContext(ctx, update, u.value, u.id); err != nil {
			return fmt.Errorf("backfill %s record %v: %w", c.Name, u.id, err)
		}
	}
	return nil
}
