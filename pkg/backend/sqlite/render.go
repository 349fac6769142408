// SPDX-License-Identifier: Apache-2.0

// Package sqlite is the reference Backend and Connection
// implementation, used by tests and by projects with no dedicated
// server. SQLite cannot alter a table in place beyond a single
// ADD COLUMN, so ChangeColumn and RemoveColumn render as a
// create-copy-drop-rename sequence (spec.md §4.3).
package sqlite

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/propanedb/propane/pkg/backend"
	"github.com/propanedb/propane/pkg/migrations"
	"github.com/propanedb/propane/pkg/schema"
)

// Backend renders migration operations as SQLite DDL.
type Backend struct{}

// New returns a SQLite Backend.
func New() *Backend {
	return &Backend{}
}

func (*Backend) Name() string { return "sqlite" }

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func sqlTypeLexeme(t schema.SqlType) string {
	switch t {
	case schema.SqlTypeSmallInt:
		return "SMALLINT"
	case schema.SqlTypeBigInt:
		return "BIGINT"
	case schema.SqlTypeReal:
		return "REAL"
	case schema.SqlTypeText:
		return "TEXT"
	case schema.SqlTypeBlob:
		return "BLOB"
	case schema.SqlTypeBoolean:
		return "BOOLEAN"
	case schema.SqlTypeTimestamp:
		return "TIMESTAMP"
	default:
		return "TEXT"
	}
}

func renderDefault(v schema.SqlVal) (string, error) {
	if i, ok := v.AsInteger(); ok {
		return strconv.FormatInt(i, 10), nil
	}
	if f, ok := v.AsReal(); ok {
		return strconv.FormatFloat(f, 'g', -1, 64), nil
	}
	if s, ok := v.AsText(); ok {
		return backend.QuoteStringLiteral(s), nil
	}
	if b, ok := v.AsBlob(); ok {
		return fmt.Sprintf("x'%x'", b), nil
	}
	if b, ok := v.AsBool(); ok {
		if b {
			return "1", nil
		}
		return "0", nil
	}
	if t, ok := v.AsTimestamp(); ok {
		return backend.QuoteStringLiteral(t.Format("2006-01-02 15:04:05.999999999")), nil
	}
	return "", fmt.Errorf("sqlite: unrenderable default value")
}

// columnDef renders one column's definition as it appears inside a
// CREATE TABLE statement.
func columnDef(c schema.Column, soleIntegerPK bool) (string, error) {
	var b strings.Builder
	b.WriteString(quoteIdent(c.Name))
	b.WriteByte(' ')
	if c.PrimaryKey && soleIntegerPK {
		// Only the exact type name INTEGER makes the column a rowid
		// alias, and SQLite accepts AUTOINCREMENT on nothing else.
		b.WriteString("INTEGER")
	} else {
		b.WriteString(sqlTypeLexeme(c.SqlType.MustKnown()))
	}

	if c.PrimaryKey && soleIntegerPK {
		b.WriteString(" PRIMARY KEY")
		if c.AutoInc {
			b.WriteString(" AUTOINCREMENT")
		}
	}
	if !c.Nullable && !(c.PrimaryKey && soleIntegerPK) {
		b.WriteString(" NOT NULL")
	}
	if c.Default.IsSpecified() && !c.Default.IsNull() {
		v, _ := c.Default.Get()
		lit, err := renderDefault(v)
		if err != nil {
			return "", err
		}
		b.WriteString(" DEFAULT ")
		b.WriteString(lit)
	}
	return b.String(), nil
}

// isSoleIntegerPK reports whether c is the table's only primary-key
// column and its type is an integer type, the shape SQLite requires
// for "INTEGER PRIMARY KEY [AUTOINCREMENT]" rowid aliasing.
func isSoleIntegerPK(t *schema.Table, c *schema.Column) bool {
	if !c.PrimaryKey {
		return false
	}
	switch c.SqlType.MustKnown() {
	case schema.SqlTypeSmallInt, schema.SqlTypeBigInt:
	default:
		return false
	}
	for _, other := range t.Columns {
		if other.Name != c.Name && other.PrimaryKey {
			return false
		}
	}
	return true
}

func createTableSQL(t *schema.Table) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE %s (\n", quoteIdent(t.Name))
	var pkCols []string
	defs := make([]string, 0, len(t.Columns))
	for i := range t.Columns {
		c := &t.Columns[i]
		sole := isSoleIntegerPK(t, c)
		def, err := columnDef(*c, sole)
		if err != nil {
			return "", err
		}
		defs = append(defs, "  "+def)
		if c.PrimaryKey && !sole {
			pkCols = append(pkCols, quoteIdent(c.Name))
		}
	}
	if len(pkCols) > 0 {
		defs = append(defs, "  PRIMARY KEY ("+strings.Join(pkCols, ", ")+")")
	}
	b.WriteString(strings.Join(defs, ",\n"))
	b.WriteString("\n)")
	return b.String(), nil
}

// resultingTable applies every op in ops that targets table name onto
// from's current columns, in ops order, producing the table's final
// shape. Used to build the CREATE TABLE for a table-copy sequence that
// folds together every pending change to one table.
func resultingTable(from *schema.DB, name string, ops []migrations.Operation) *schema.Table {
	var out schema.Table
	if existing := from.GetTable(name); existing != nil {
		out.Name = existing.Name
		out.Columns = append([]schema.Column(nil), existing.Columns...)
	} else {
		out.Name = name
	}
	for _, op := range ops {
		if op.TableName != name && op.Kind != migrations.OpKindAddTable {
			continue
		}
		switch op.Kind {
		case migrations.OpKindAddColumn:
			out.Columns = append(out.Columns, *op.Column)
		case migrations.OpKindRemoveColumn:
			for i, c := range out.Columns {
				if c.Name == op.ColumnName {
					out.Columns = append(out.Columns[:i], out.Columns[i+1:]...)
					break
				}
			}
		case migrations.OpKindChangeColumn:
			for i, c := range out.Columns {
				if c.Name == op.OldColumn.Name {
					out.Columns[i] = *op.NewColumn
					break
				}
			}
		}
	}
	return &out
}

// sharedColumns returns the column names present in both old and new,
// in new's order, for the INSERT INTO ... SELECT of a table copy.
func sharedColumns(old, new *schema.Table) []string {
	have := make(map[string]bool, len(old.Columns))
	for _, c := range old.Columns {
		have[c.Name] = true
	}
	var out []string
	for _, c := range new.Columns {
		if have[c.Name] {
			out = append(out, c.Name)
		}
	}
	return out
}

func tableCopySQL(from *schema.DB, name string, ops []migrations.Operation) ([]string, error) {
	oldTable := from.GetTable(name)
	if oldTable == nil {
		return nil, migrations.NoSuchObjectError{Msg: fmt.Sprintf("sqlite: table %q not found for table-copy", name)}
	}
	newTable := resultingTable(from, name, ops)
	tmpName := name + "_propane_tmp_" + strings.ReplaceAll(uuid.NewString(), "-", "")

	tmpTable := *newTable
	tmpTable.Name = tmpName
	createTmp, err := createTableSQL(&tmpTable)
	if err != nil {
		return nil, err
	}

	cols := sharedColumns(oldTable, newTable)
	quotedCols := make([]string, len(cols))
	for i, c := range cols {
		quotedCols[i] = quoteIdent(c)
	}
	colList := strings.Join(quotedCols, ", ")

	var stmts []string
	stmts = append(stmts, createTmp)
	if len(cols) > 0 {
		stmts = append(stmts, fmt.Sprintf(
			"INSERT INTO %s (%s) SELECT %s FROM %s",
			quoteIdent(tmpName), colList, colList, quoteIdent(name),
		))
	}
	stmts = append(stmts, fmt.Sprintf("DROP TABLE %s", quoteIdent(name)))
	stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s RENAME TO %s", quoteIdent(tmpName), quoteIdent(name)))
	return stmts, nil
}

func addColumnSQL(from *schema.DB, table string, c *schema.Column) (string, error) {
	existing := from.GetTable(table)
	populatable := existing != nil
	if populatable && !c.Nullable && (!c.Default.IsSpecified() || c.Default.IsNull()) {
		return "", migrations.InvalidMigrationError{
			Msg: fmt.Sprintf("sqlite: AddColumn %s.%s on an existing table requires NULL or a default", table, c.Name),
		}
	}
	def, err := columnDef(*c, false)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", quoteIdent(table), def), nil
}

// CreateMigrationSQL renders ops as a SQLite script. Per-table changes
// that SQLite cannot express as an ALTER are folded into a single
// table-copy sequence so that a table touched by several ops in the
// same migration is only copied once.
func (b *Backend) CreateMigrationSQL(from *schema.DB, ops []migrations.Operation) (string, error) {
	needsCopy := make(map[string]bool)
	copyHandled := make(map[string]bool)
	for _, op := range ops {
		if op.Kind == migrations.OpKindChangeColumn || op.Kind == migrations.OpKindRemoveColumn {
			needsCopy[op.TableName] = true
		}
	}

	var stmts []string
	for _, op := range ops {
		switch op.Kind {
		case migrations.OpKindAddTable:
			create, err := createTableSQL(op.Table)
			if err != nil {
				return "", err
			}
			stmts = append(stmts, create)

		case migrations.OpKindAddColumn:
			if needsCopy[op.TableName] {
				continue // folded into this table's copy sequence below
			}
			s, err := addColumnSQL(from, op.TableName, op.Column)
			if err != nil {
				return "", err
			}
			stmts = append(stmts, s)

		case migrations.OpKindChangeColumn, migrations.OpKindRemoveColumn:
			if copyHandled[op.TableName] {
				continue
			}
			copyHandled[op.TableName] = true
			copy, err := tableCopySQL(from, op.TableName, ops)
			if err != nil {
				return "", err
			}
			stmts = append(stmts, copy...)

		case migrations.OpKindRemoveTable:
			stmts = append(stmts, fmt.Sprintf("DROP TABLE %s", quoteIdent(op.TableName)))
		}
	}

	var b2 strings.Builder
	for _, s := range stmts {
		b2.WriteString(s)
		b2.WriteString(";\n")
	}
	return b2.String(), nil
}
