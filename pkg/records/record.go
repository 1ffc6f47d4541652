package records

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/unowned-ai/nursery/pkg/db"
)

const (
	// KeyField holds a record's primary key.
	KeyField = "id"
	// CreatedAtField is stamped by Add on auto-timestamped collections.
	CreatedAtField = "createdAt"
)

var errNoKey = errors.New("record has no key")

// Record is one plain JSON-shaped entity. Numbers read back from the store are
// float64, except the key which is int64 (auto collections) or string.
type Record map[string]any

// Clone returns a shallow copy of r.
func (r Record) Clone() Record {
	out := make(Record, len(r)+1)
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Key returns the record's key field, if set.
func (r Record) Key() (any, bool) {
	v, ok := r[KeyField]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// normalizeKey converts a caller-supplied key to the type stored for c.
func normalizeKey(c db.Collection, v any) (any, error) {
	if !c.AutoIncrement {
		s, ok := v.(string)
		if !ok || s == "" {
			return nil, fmt.Errorf("collection %s needs a non-empty string key, got %T", c.Name, v)
		}
		return s, nil
	}

	switch k := v.(type) {
	case int:
		return int64(k), nil
	case int32:
		return int64(k), nil
	case int64:
		return k, nil
	case uint32:
		return int64(k), nil
	case float64:
		if k != math.Trunc(k) || math.Abs(k) >= 1<<63 {
			return nil, fmt.Errorf("collection %s key %v is not an integer", c.Name, k)
		}
		return int64(k), nil
	case json.Number:
		n, err := k.Int64()
		if err != nil {
			return nil, fmt.Errorf("collection %s key %q is not an integer", c.Name, k)
		}
		return n, nil
	case string:
		n, err := strconv.ParseInt(k, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("collection %s key %q is not an integer", c.Name, k)
		}
		return n, nil
	default:
		return nil, fmt.Errorf("collection %s key has unsupported type %T", c.Name, v)
	}
}

// encoded is a record ready to be written: key, JSON document and index column values.
type encoded struct {
	key     any
	data    string
	columns []any
}

// encodeRecord prepares rec for storage in c. The key is kept out of the
// document and restored from the id column on read.
func encodeRecord(c db.Collection, rec Record) (encoded, error) {
	var enc encoded
	if v, ok := rec.Key(); ok {
		key, err := normalizeKey(c, v)
		if err != nil {
			return encoded{}, err
		}
		enc.key = key
	}

	doc := rec.Clone()
	delete(doc, KeyField)
	data, err := json.Marshal(doc)
	if err != nil {
		return encoded{}, fmt.Errorf("encode record: %w", err)
	}
	enc.data = string(data)

	columns, err := db.ColumnValues(c, doc)
	if err != nil {
		return encoded{}, err
	}
	enc.columns = columns
	return enc, nil
}

// decodeRecord rebuilds a Record from its stored row.
func decodeRecord(c db.Collection, id any, data string) (Record, error) {
	rec := Record{}
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, fmt.Errorf("decode %s record %v: %w", c.Name, id, err)
	}
	if c.AutoIncrement {
		if n, ok := id.(int64); ok {
			rec[KeyField] = n
		} else {
			key, err := normalizeKey(c, id)
			if err != nil {
				return nil, err
			}
			rec[KeyField] = key
		}
	} else {
		switch k := id.(type) {
		case string:
			rec[KeyField] = k
		case []byte:
			rec[KeyField] = string(k)
		default:
			rec[KeyField] = fmt.Sprint(k)
		}
	}
	return rec, nil
}

// ParseQueryValue interprets a textual lookup value. JSON numbers, booleans
// and arrays are decoded; anything else is kept as the string.
func ParseQueryValue(s string) any {
	var decoded any
	if err := json.Unmarshal([]byte(s), &decoded); err == nil {
		switch decoded.(type) {
		case float64, bool, []any:
			return decoded
		}
	}
	return s
}
