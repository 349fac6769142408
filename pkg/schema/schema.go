// SPDX-License-Identifier: Apache-2.0

// Package schema implements the abstract database model (ADB): an
// in-memory, JSON-serializable representation of a schema that is
// reified separately from the compile-time record types the rest of
// the ORM generates code from.
package schema

import "fmt"

// SqlType is the closed set of column types the engine understands.
// Backends map each value to their own native type lexeme.
type SqlType int

const (
	SqlTypeUnknown SqlType = iota
	SqlTypeSmallInt
	SqlTypeBigInt
	SqlTypeReal
	SqlTypeText
	SqlTypeBlob
	SqlTypeBoolean
	SqlTypeTimestamp
)

func (t SqlType) String() string {
	switch t {
	case SqlTypeSmallInt:
		return "SmallInt"
	case SqlTypeBigInt:
		return "BigInt"
	case SqlTypeReal:
		return "Real"
	case SqlTypeText:
		return "Text"
	case SqlTypeBlob:
		return "Blob"
	case SqlTypeBoolean:
		return "Boolean"
	case SqlTypeTimestamp:
		return "Timestamp"
	default:
		return "Unknown"
	}
}

func sqlTypeFromString(s string) (SqlType, bool) {
	switch s {
	case "SmallInt":
		return SqlTypeSmallInt, true
	case "BigInt":
		return SqlTypeBigInt, true
	case "Real":
		return SqlTypeReal, true
	case "Text":
		return SqlTypeText, true
	case "Blob":
		return SqlTypeBlob, true
	case "Boolean":
		return SqlTypeBoolean, true
	case "Timestamp":
		return SqlTypeTimestamp, true
	default:
		return SqlTypeUnknown, false
	}
}

// Table represents one table in the schema. Column order is preserved
// so that rendered SQL (and JSON snapshots) are deterministic.
type Table struct {
	Name    string   `json:"name"`
	Columns []Column `json:"columns"`
}

// Column describes a single column on a Table. JSON field names match
// the on-disk ".table" file format exactly (spec.md §6).
type Column struct {
	Name       string           `json:"name"`
	SqlType    DeferredSqlType  `json:"sqltype"`
	Nullable   bool             `json:"nullable"`
	PrimaryKey bool             `json:"pk"`
	AutoInc    bool             `json:"auto"`
	Default    Nullable[SqlVal] `json:"default,omitempty"`
}

// GetColumn returns a pointer to the named column, or nil.
func (t *Table) GetColumn(name string) *Column {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i]
		}
	}
	return nil
}

// PrimaryKeyColumn returns the table's single primary-key column, or
// nil if none is marked (a malformed ATable per the invariant in
// spec.md §3, which callers should not construct directly).
func (t *Table) PrimaryKeyColumn() *Column {
	for i := range t.Columns {
		if t.Columns[i].PrimaryKey {
			return &t.Columns[i]
		}
	}
	return nil
}

// DB is the abstract database (ADB): an ordered mapping from table
// name to Table. Table order is preserved for deterministic rendering
// and diffing.
type DB struct {
	order  []string
	tables map[string]*Table
}

// New returns an empty ADB.
func New() *DB {
	return &DB{tables: make(map[string]*Table)}
}

// ReplaceTable inserts or replaces a table by name, preserving its
// existing position in insertion order if it already existed.
func (db *DB) ReplaceTable(t Table) {
	if db.tables == nil {
		db.tables = make(map[string]*Table)
	}
	name := t.Name
	tc := t
	if _, exists := db.tables[name]; !exists {
		db.order = append(db.order, name)
	}
	db.tables[name] = &tc
}

// RemoveTable removes a table from the schema by name. A no-op if the
// table does not exist.
func (db *DB) RemoveTable(name string) {
	if _, ok := db.tables[name]; !ok {
		return
	}
	delete(db.tables, name)
	for i, n := range db.order {
		if n == name {
			db.order = append(db.order[:i], db.order[i+1:]...)
			break
		}
	}
}

// GetTable returns the named table, or nil if it does not exist.
func (db *DB) GetTable(name string) *Table {
	if db == nil {
		return nil
	}
	return db.tables[name]
}

// TableNames returns table names in insertion order.
func (db *DB) TableNames() []string {
	out := make([]string, len(db.order))
	copy(out, db.order)
	return out
}

// Tables returns the tables of the schema in insertion order.
func (db *DB) Tables() []*Table {
	out := make([]*Table, 0, len(db.order))
	for _, name := range db.order {
		out = append(out, db.tables[name])
	}
	return out
}

// Clone returns a deep copy of the ADB. An ADB is a plain value, cheap
// to clone, per spec.md §3's ownership note.
func (db *DB) Clone() *DB {
	out := New()
	for _, name := range db.order {
		t := db.tables[name]
		cols := make([]Column, len(t.Columns))
		copy(cols, t.Columns)
		out.ReplaceTable(Table{Name: t.Name, Columns: cols})
	}
	return out
}

func (db *DB) String() string {
	return fmt.Sprintf("DB{%d tables}", len(db.order))
}
