package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/unowned-ai/nursery/pkg/db"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Add stores rec in collection and returns its key. Records without a key get
// the next auto-increment id; records with one keep it and fail with ErrWrite
// if it is taken. createdAt is stamped unless the collection is exempt or the
// record already carries one.
func (s *Store) Add(ctx context.Context, collection string, rec Record) (any, error) {
	c, err := s.collection(collection)
	if err != nil {
		return nil, err
	}
	conn, err := s.handle(ctx)
	if err != nil {
		return nil, err
	}

	doc := rec.Clone()
	if c.AutoTimestamp {
		if _, ok := doc[CreatedAtField]; !ok {
			doc[CreatedAtField] = s.now().UTC().Format(time.RFC3339Nano)
		}
	}

	enc, err := encodeRecord(c, doc)
	if err != nil {
		return nil, fmt.Errorf("%w: add to %s: %w", ErrWrite, c.Name, err)
	}
	if enc.key == nil && !c.AutoIncrement {
		return nil, fmt.Errorf("%w: add to %s: %w", ErrWrite, c.Name, errNoKey)
	}

	key, err := insertRecord(ctx, conn, c, enc)
	if err != nil {
		return nil, fmt.Errorf("%w: add to %s: %w", ErrWrite, c.Name, err)
	}
	return key, nil
}

func insertRecord(ctx context.Context, q querier, c db.Collection, enc encoded) (any, error) {
	columns := []string{"data"}
	args := []any{enc.data}
	if enc.key != nil {
		columns = append([]string{"id"}, columns...)
		args = append([]any{enc.key}, args...)
	}
	for i, f := range c.IndexedFields() {
		columns = append(columns, db.ColumnName(f))
		args = append(args, enc.columns[i])
	}

	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s);", c.Table(), strings.Join(columns, ", "), placeholders(len(args)))
	res, err := q.ExecContext(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	if enc.key != nil {
		return enc.key, nil
	}
	return res.LastInsertId()
}

// Get returns the record stored under id. A missing record is reported with
// ok == false, not as an error.
func (s *Store) Get(ctx context.Context, collection string, id any) (Record, bool, error) {
	c, err := s.collection(collection)
	if err != nil {
		return nil, false, err
	}
	key, err := normalizeKey(c, id)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %w", ErrQuery, err)
	}
	conn, err := s.handle(ctx)
	if err != nil {
		return nil, false, err
	}

	var rowID any
	var data string
	err = conn.QueryRowContext(ctx, fmt.Sprintf("SELECT id, data FROM %s WHERE id = ?;", c.Table()), key).Scan(&rowID, &data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("%w: get %s %v: %w", ErrQuery, c.Name, key, err)
	}

	rec, err := decodeRecord(c, rowID, data)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %w", ErrQuery, err)
	}
	return rec, true, nil
}

// Update replaces the record stored under rec's key, inserting it if absent.
func (s *Store) Update(ctx context.Context, collection string, rec Record) error {
	c, err := s.collection(collection)
	if err != nil {
		return err
	}
	enc, err := encodeRecord(c, rec)
	if err != nil {
		return fmt.Errorf("%w: update %s: %w", ErrWrite, c.Name, err)
	}
	if enc.key == nil {
		return fmt.Errorf("%w: update %s: %w", ErrWrite, c.Name, errNoKey)
	}
	conn, err := s.handle(ctx)
	if err != nil {
		return err
	}

	columns := []string{"id", "data"}
	updates := []string{"data = excluded.data"}
	args := []any{enc.key, enc.data}
	for i, f := range c.IndexedFields() {
		col := db.ColumnName(f)
		columns = append(columns, col)
		updates = append(updates, fmt.Sprintf("%s = excluded.%s", col, col))
		args = append(args, enc.columns[i])
	}

	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT(id) DO UPDATE SET %s;",
		c.Table(), strings.Join(columns, ", "), placeholders(len(args)), strings.Join(updates, ", "))
	if _, err := conn.ExecContext(ctx, stmt, args...); err != nil {
		return fmt.Errorf("%w: update %s %v: %w", ErrWrite, c.Name, enc.key, err)
	}
	return nil
}

// Delete removes the record stored under id. Deleting an absent record succeeds.
func (s *Store) Delete(ctx context.Context, collection string, id any) error {
	c, err := s.collection(collection)
	if err != nil {
		return err
	}
	key, err := normalizeKey(c, id)
	if err != nil {
		return fmt.Errorf("%w: delete from %s: %w", ErrWrite, c.Name, err)
	}
	conn, err := s.handle(ctx)
	if err != nil {
		return err
	}

	if _, err := conn.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = ?;", c.Table()), key); err != nil {
		return fmt.Errorf("%w: delete %s %v: %w", ErrWrite, c.Name, key, err)
	}
	return nil
}

// GetAll returns every record of collection, ordered by key.
func (s *Store) GetAll(ctx context.Context, collection string) ([]Record, error) {
	c, err := s.collection(collection)
	if err != nil {
		return nil, err
	}
	conn, err := s.handle(ctx)
	if err != nil {
		return nil, err
	}
	return listAll(ctx, conn, c)
}

func listAll(ctx context.Context, q querier, c db.Collection) ([]Record, error) {
	return selectRecords(ctx, q, c, fmt.Sprintf("SELECT id, data FROM %s ORDER BY id;", c.Table()))
}

// Count returns the number of records in collection.
func (s *Store) Count(ctx context.Context, collection string) (int, error) {
	c, err := s.collection(collection)
	if err != nil {
		return 0, err
	}
	conn, err := s.handle(ctx)
	if err != nil {
		return 0, err
	}
	var n int
	if err := conn.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s;", c.Table())).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: count %s: %w", ErrQuery, c.Name, err)
	}
	return n, nil
}

// GetByIndex returns the records whose indexed fields equal value. A composite
// index takes a []any with one value per field.
func (s *Store) GetByIndex(ctx context.Context, collection, index string, value any) ([]Record, error) {
	c, idx, err := s.index(collection, index)
	if err != nil {
		return nil, err
	}

	values := []any{value}
	if len(idx.Fields) > 1 {
		parts, ok := value.([]any)
		if !ok || len(parts) != len(idx.Fields) {
			return nil, fmt.Errorf("%w: index %s.%s needs %d values", ErrQuery, c.Name, idx.Name, len(idx.Fields))
		}
		values = parts
	}

	conds := make([]string, len(idx.Fields))
	args := make([]any, len(idx.Fields))
	for i, f := range idx.Fields {
		v, err := db.IndexValue(c, f, values[i])
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrQuery, err)
		}
		if v == nil {
			return nil, fmt.Errorf("%w: index %s.%s cannot look up a nil %s", ErrQuery, c.Name, idx.Name, f)
		}
		conds[i] = db.ColumnName(f) + " = ?"
		args[i] = v
	}

	conn, err := s.handle(ctx)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf("SELECT id, data FROM %s WHERE %s ORDER BY id;", c.Table(), strings.Join(conds, " AND "))
	return selectRecords(ctx, conn, c, query, args...)
}

// GetByDateRange returns the records whose time field, indexed by the
// single-field index, lies in [start, end]. Bounds are anything ToMillis accepts.
func (s *Store) GetByDateRange(ctx context.Context, collection, index string, start, end any) ([]Record, error) {
	c, idx, err := s.index(collection, index)
	if err != nil {
		return nil, err
	}
	if len(idx.Fields) != 1 || !c.IsTimeField(idx.Fields[0]) {
		return nil, fmt.Errorf("%w: index %s.%s is not a single time field index", ErrQuery, c.Name, idx.Name)
	}
	from, to, err := bounds(start, end)
	if err != nil {
		return nil, err
	}

	conn, err := s.handle(ctx)
	if err != nil {
		return nil, err
	}
	col := db.ColumnName(idx.Fields[0])
	query := fmt.Sprintf("SELECT id, data FROM %s WHERE %s BETWEEN ? AND ? ORDER BY %s, id;", c.Table(), col, col)
	return selectRecords(ctx, conn, c, query, from, to)
}

// GetChildRecordsByDateRange returns one child's records whose time field lies
// in [start, end], using a (childId, time) composite index as a single
// compound range.
func (s *Store) GetChildRecordsByDateRange(ctx context.Context, collection, index string, childID, start, end any) ([]Record, error) {
	c, idx, err := s.index(collection, index)
	if err != nil {
		return nil, err
	}
	if len(idx.Fields) != 2 || idx.Fields[0] != db.ChildIDField || !c.IsTimeField(idx.Fields[1]) {
		return nil, fmt.Errorf("%w: index %s.%s is not a (childId, time) index", ErrQuery, c.Name, idx.Name)
	}
	child, err := db.IndexValue(c, db.ChildIDField, childID)
	if err != nil || child == nil {
		return nil, fmt.Errorf("%w: invalid child id %v", ErrQuery, childID)
	}
	from, to, err := bounds(start, end)
	if err != nil {
		return nil, err
	}

	conn, err := s.handle(ctx)
	if err != nil {
		return nil, err
	}
	childCol := db.ColumnName(idx.Fields[0])
	timeCol := db.ColumnName(idx.Fields[1])
	query := fmt.Sprintf("SELECT id, data FROM %s WHERE %s = ? AND %s BETWEEN ? AND ? ORDER BY %s, id;",
		c.Table(), childCol, timeCol, timeCol)
	return selectRecords(ctx, conn, c, query, child, from, to)
}

func (s *Store) index(collection, index string) (db.Collection, db.Index, error) {
	c, err := s.collection(collection)
	if err != nil {
		return db.Collection{}, db.Index{}, err
	}
	idx, ok := c.Index(index)
	if !ok {
		return db.Collection{}, db.Index{}, fmt.Errorf("%w: unknown index %q on %s", ErrQuery, index, c.Name)
	}
	return c, idx, nil
}

func bounds(start, end any) (int64, int64, error) {
	from, err := db.ToMillis(start)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: range start: %w", ErrQuery, err)
	}
	to, err := db.ToMillis(end)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: range end: %w", ErrQuery, err)
	}
	return from, to, nil
}

func selectRecords(ctx context.Context, q querier, c db.Collection, query string, args ...any) ([]Record, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query %s: %w", ErrQuery, c.Name, err)
	}
	defer rows.Close()

	out := make([]Record, 0)
	for rows.Next() {
		var id any
		var data string
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("%w: scan %s: %w", ErrQuery, c.Name, err)
		}
		rec, err := decodeRecord(c, id, data)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrQuery, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate %s: %w", ErrQuery, c.Name, err)
	}
	return out, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
