package db

import (
	"fmt"
	"strings"
)

// Collection names of the baby-care record store.
const (
	Children     = "children"
	Feeding      = "feeding"
	Sleep        = "sleep"
	Diaper       = "diaper"
	Health       = "health"
	Milestones   = "milestones"
	Mood         = "mood"
	Interactions = "interactions"
	Settings     = "settings"
)

// SettingsKey is the fixed key of the settings singleton.
const SettingsKey = "appSettings"

// ChildIDField is the field every child-owned record references its child by.
const ChildIDField = "childId"

// ChildIDIndex is the single-field child lookup index present on every child-owned collection.
const ChildIDIndex = "childIdIndex"

const versionsTableSQL = `
CREATE TABLE IF NOT EXISTS nursery_versions (
    component TEXT PRIMARY KEY,
    version INTEGER NOT NULL,
    created_at REAL DEFAULT (unixepoch())
);`

// Index is a secondary index over one or more record fields.
type Index struct {
	Name   string
	Fields []string
}

// Collection declares one record table: its key policy, the fields that are
// stored as indexed columns and the indexes built over them.
type Collection struct {
	Name string
	// AutoIncrement collections get monotonically assigned int64 keys;
	// the others are keyed by caller-supplied strings.
	AutoIncrement bool
	// AutoTimestamp collections have createdAt stamped on add.
	AutoTimestamp bool
	// TimeFields are indexed fields whose values are normalized to epoch milliseconds.
	TimeFields []string
	// DateFields are the TimeFields holding a calendar day ("2006-01-02"),
	// stored as midnight UTC of that day.
	DateFields []string
	Indexes    []Index
}

// Index looks up a declared index by name.
func (c Collection) Index(name string) (Index, bool) {
	for _, idx := range c.Indexes {
		if idx.Name == name {
			return idx, true
		}
	}
	return Index{}, false
}

// ChildTimeIndex returns the (childId, time) index of a child-owned collection.
func (c Collection) ChildTimeIndex() (Index, bool) {
	for _, idx := range c.Indexes {
		if len(idx.Fields) == 2 && idx.Fields[0] == ChildIDField && c.IsTimeField(idx.Fields[1]) {
			return idx, true
		}
	}
	return Index{}, false
}

// IsTimeField reports whether field is stored as epoch milliseconds.
func (c Collection) IsTimeField(field string) bool {
	for _, f := range c.TimeFields {
		if f == field {
			return true
		}
	}
	return false
}

// IsDateField reports whether field holds a calendar day rather than an instant.
func (c Collection) IsDateField(field string) bool {
	for _, f := range c.DateFields {
		if f == field {
			return true
		}
	}
	return false
}

// IndexedFields returns every field referenced by an index, in declaration order, without duplicates.
func (c Collection) IndexedFields() []string {
	seen := make(map[string]bool)
	var fields []string
	for _, idx := range c.Indexes {
		for _, f := range idx.Fields {
			if !seen[f] {
				seen[f] = true
				fields = append(fields, f)
			}
		}
	}
	return fields
}

// ColumnName is the table column holding the normalized value of field.
func ColumnName(field string) string {
	return "ix_" + field
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// Table returns the quoted table name of the collection.
func (c Collection) Table() string {
	return quoteIdent(c.Name)
}

func (c Collection) createTableSQL() string {
	keyType := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if !c.AutoIncrement {
		keyType = "TEXT PRIMARY KEY"
	}
	columns := []string{"id " + keyType, "data TEXT NOT NULL"}
	for _, f := range c.IndexedFields() {
		columns = append(columns, c.columnDefinition(f))
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n    %s\n);", c.Table(), strings.Join(columns, ",\n    "))
}

func (c Collection) columnDefinition(field string) string {
	if c.IsTimeField(field) {
		return quoteIdent(ColumnName(field)) + " INTEGER"
	}
	// No declared type: values keep the storage class they were bound with.
	return quoteIdent(ColumnName(field))
}

func (c Collection) createIndexSQL(idx Index) string {
	cols := make([]string, len(idx.Fields))
	for i, f := range idx.Fields {
		cols[i] = quoteIdent(ColumnName(f))
	}
	return fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s);",
		quoteIdent(c.Name+"_"+idx.Name), c.Table(), strings.Join(cols, ", "))
}

// timeSeries declares a child-owned collection with the standard child,
// time and child+time indexes over timeField.
func timeSeries(name, timeField string, extra ...Index) Collection {
	timeIndex := timeField + "Index"
	composite := "child" + strings.ToUpper(timeField[:1]) + timeField[1:] + "Index"
	indexes := []Index{
		{Name: ChildIDIndex, Fields: []string{ChildIDField}},
		{Name: timeIndex, Fields: []string{timeField}},
		{Name: composite, Fields: []string{ChildIDField, timeField}},
	}
	return Collection{
		Name:          name,
		AutoIncrement: true,
		AutoTimestamp: true,
		TimeFields:    []string{timeField},
		Indexes:       append(indexes, extra...),
	}
}

// dateSeries is a timeSeries whose time field is a calendar day.
func dateSeries(name, dateField string, extra ...Index) Collection {
	c := timeSeries(name, dateField, extra...)
	c.DateFields = []string{dateField}
	return c
}

// Collections is the declared schema of the record store, one entry per entity type.
var Collections = []Collection{
	{
		Name:          Children,
		AutoIncrement: true,
		TimeFields:    []string{"birthDate"},
		DateFields:    []string{"birthDate"},
		Indexes: []Index{
			{Name: "nameIndex", Fields: []string{"name"}},
			{Name: "birthDateIndex", Fields: []string{"birthDate"}},
		},
	},
	timeSeries(Feeding, "timestamp", Index{Name: "typeIndex", Fields: []string{"type"}}),
	timeSeries(Sleep, "startTime"),
	timeSeries(Diaper, "timestamp", Index{Name: "typeIndex", Fields: []string{"type"}}),
	dateSeries(Health, "date", Index{Name: "typeIndex", Fields: []string{"type"}}),
	dateSeries(Milestones, "achievedDate", Index{Name: "typeIndex", Fields: []string{"type"}}),
	timeSeries(Mood, "timestamp", Index{Name: "moodIndex", Fields: []string{"mood"}}),
	dateSeries(Interactions, "date"),
	{
		Name: Settings,
	},
}

// Lookup finds a declared collection by name.
func Lookup(collections []Collection, name string) (Collection, bool) {
	for _, c := range collections {
		if c.Name == name {
			return c, true
		}
	}
	return Collection{}, false
}

// ChildOwned returns the collections whose records reference a child.
func ChildOwned(collections []Collection) []Collection {
	var owned []Collection
	for _, c := range collections {
		if _, ok := c.Index(ChildIDIndex); ok {
			owned = append(owned, c)
		}
	}
	return owned
}
