package db

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// ErrUnindexable is returned for values that cannot be stored in an index column.
var ErrUnindexable = errors.New("value cannot be indexed")

// timeLayouts are the string forms accepted for time fields and range bounds.
// Layouts without a zone are read as UTC.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ToMillis normalizes an instant to epoch milliseconds. It accepts time.Time,
// integer or float epoch milliseconds, json.Number, and date/time strings.
func ToMillis(v any) (int64, error) {
	switch t := v.(type) {
	case time.Time:
		return t.UnixMilli(), nil
	case *time.Time:
		if t == nil {
			return 0, fmt.Errorf("%w: nil time", ErrUnindexable)
		}
		return t.UnixMilli(), nil
	case int:
		return int64(t), nil
	case int32:
		return int64(t), nil
	case int64:
		return t, nil
	case float32:
		return floatMillis(float64(t))
	case float64:
		return floatMillis(t)
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n, nil
		}
		f, err := t.Float64()
		if err != nil {
			return 0, fmt.Errorf("%w: %q is not a number", ErrUnindexable, t)
		}
		return floatMillis(f)
	case string:
		return parseTimeString(t)
	default:
		return 0, fmt.Errorf("%w: %T is not a time value", ErrUnindexable, v)
	}
}

func floatMillis(f float64) (int64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: %v is not a finite time", ErrUnindexable, f)
	}
	return int64(math.Floor(f)), nil
}

func parseTimeString(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty time string", ErrUnindexable)
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UnixMilli(), nil
		}
	}
	return 0, fmt.Errorf("%w: unrecognized time %q", ErrUnindexable, s)
}

// CalendarBounds maps the calendar days of start and end, each read in its own
// location, to the range a date field of those days is stored in.
func CalendarBounds(start, end time.Time) (time.Time, time.Time) {
	sy, sm, sd := start.Date()
	ey, em, ed := end.Date()
	from := time.Date(sy, sm, sd, 0, 0, 0, 0, time.UTC)
	to := time.Date(ey, em, ed, 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1).Add(-time.Millisecond)
	return from, to
}

// IndexValue converts a record field value to the form stored in its index column.
// Time fields become epoch milliseconds, strings are NFC-normalized and
// integral numbers become int64 so 1 and 1.0 index identically.
func IndexValue(c Collection, field string, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	if c.IsTimeField(field) {
		return ToMillis(v)
	}
	switch t := v.(type) {
	case string:
		return norm.NFC.String(t), nil
	case bool:
		if t {
			return int64(1), nil
		}
		return int64(0), nil
	case int:
		return int64(t), nil
	case int32:
		return int64(t), nil
	case int64:
		return t, nil
	case uint32:
		return int64(t), nil
	case float32:
		return normalizeFloat(float64(t)), nil
	case float64:
		return normalizeFloat(t), nil
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n, nil
		}
		f, err := t.Float64()
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a number", ErrUnindexable, t)
		}
		return normalizeFloat(f), nil
	default:
		return nil, fmt.Errorf("%w: field %s holds %T", ErrUnindexable, field, v)
	}
}

func normalizeFloat(f float64) any {
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return int64(f)
	}
	return f
}

// ColumnValues extracts the indexed column values of a record, in IndexedFields order.
func ColumnValues(c Collection, record map[string]any) ([]any, error) {
	fields := c.IndexedFields()
	values := make([]any, len(fields))
	for i, f := range fields {
		v, err := IndexValue(c, f, record[f])
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	return values, nil
}
