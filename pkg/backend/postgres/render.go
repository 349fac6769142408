// SPDX-License-Identifier: Apache-2.0

// Package postgres is the production Backend and Connection
// implementation. Unlike sqlite, Postgres supports in-place ALTER
// TABLE for every operation kind, so CreateMigrationSQL never needs a
// table-copy fallback (spec.md §4.3).
package postgres

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/propanedb/propane/pkg/backend"
	"github.com/propanedb/propane/pkg/migrations"
	"github.com/propanedb/propane/pkg/schema"
)

// Backend renders migration operations as Postgres DDL.
type Backend struct{}

// New returns a Postgres Backend.
func New() *Backend {
	return &Backend{}
}

func (*Backend) Name() string { return "postgres" }

func quoteIdent(name string) string {
	return pq.QuoteIdentifier(name)
}

func sqlTypeLexeme(t schema.SqlType) string {
	switch t {
	case schema.SqlTypeSmallInt:
		return "SMALLINT"
	case schema.SqlTypeBigInt:
		return "BIGINT"
	case schema.SqlTypeReal:
		return "DOUBLE PRECISION"
	case schema.SqlTypeText:
		return "TEXT"
	case schema.SqlTypeBlob:
		return "BYTEA"
	case schema.SqlTypeBoolean:
		return "BOOLEAN"
	case schema.SqlTypeTimestamp:
		return "TIMESTAMPTZ"
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
		return fmt.Sprintf("'\\x%x'::bytea", b), nil
	}
	if b, ok := v.AsBool(); ok {
		if b {
			return "TRUE", nil
		}
		return "FALSE", nil
	}
	if t, ok := v.AsTimestamp(); ok {
		return backend.QuoteStringLiteral(t.UTC().Format(time.RFC3339Nano)) + "::timestamptz", nil
	}
	return "", fmt.Errorf("postgres: unrenderable default value")
}

func columnDef(c schema.Column) (string, error) {
	var b strings.Builder
	b.WriteString(quoteIdent(c.Name))
	b.WriteByte(' ')

	if c.AutoInc {
		switch c.SqlType.MustKnown() {
		case schema.SqlTypeBigInt:
			b.WriteString("BIGSERIAL")
		default:
			b.WriteString("SERIAL")
		}
	} else {
		b.WriteString(sqlTypeLexeme(c.SqlType.MustKnown()))
	}

	if c.PrimaryKey {
		b.WriteString(" PRIMARY KEY")
	} else if !c.Nullable {
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

func createTableSQL(t *schema.Table) (string, error) {
	defs := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		def, err := columnDef(c)
		if err != nil {
			return "", err
		}
		defs = append(defs, "  "+def)
	}
	return fmt.Sprintf("CREATE TABLE %s (\n%s\n)", quoteIdent(t.Name), strings.Join(defs, ",\n")), nil
}

func addColumnSQL(from *schema.DB, table string, c *schema.Column) (string, error) {
	existing := from.GetTable(table)
	populatable := existing != nil
	if populatable && !c.Nullable && (!c.Default.IsSpecified() || c.Default.IsNull()) {
		return "", migrations.InvalidMigrationError{
			Msg: fmt.Sprintf("postgres: AddColumn %s.%s on an existing table requires NULL or a default", table, c.Name),
		}
	}
	def, err := columnDef(*c)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", quoteIdent(table), def), nil
}

func changeColumnSQL(table string, old, new *schema.Column) ([]string, error) {
	var stmts []string
	name := quoteIdent(new.Name)
	tbl := quoteIdent(table)

	if old.Name != new.Name {
		stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s RENAME COLUMN %s TO %s", tbl, quoteIdent(old.Name), name))
	}
	if old.SqlType.MustKnown() != new.SqlType.MustKnown() {
		stmts = append(stmts, fmt.Sprintf(
			"ALTER TABLE %s ALTER COLUMN %s TYPE %s USING %s::%s",
			tbl, name, sqlTypeLexeme(new.SqlType.MustKnown()), name, sqlTypeLexeme(new.SqlType.MustKnown()),
		))
	}
	if old.Nullable != new.Nullable {
		if new.Nullable {
			stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s DROP NOT NULL", tbl, name))
		} else {
			stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s SET NOT NULL", tbl, name))
		}
	}

	oldSpecified := old.Default.IsSpecified() && !old.Default.IsNull()
	newSpecified := new.Default.IsSpecified() && !new.Default.IsNull()
	switch {
	case newSpecified:
		v, _ := new.Default.Get()
		lit, err := renderDefault(v)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s SET DEFAULT %s", tbl, name, lit))
	case oldSpecified && !newSpecified:
		stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s DROP DEFAULT", tbl, name))
	}

	return stmts, nil
}

// CreateMigrationSQL renders ops as a sequence of Postgres DDL
// statements, relying on native ALTER TABLE support throughout.
func (b *Backend) CreateMigrationSQL(from *schema.DB, ops []migrations.Operation) (string, error) {
	var stmts []string
	for _, op := range ops {
		switch op.Kind {
		case migrations.OpKindAddTable:
			s, err := createTableSQL(op.Table)
			if err != nil {
				return "", err
			}
			stmts = append(stmts, s)

		case migrations.OpKindAddColumn:
			s, err := addColumnSQL(from, op.TableName, op.Column)
			if err != nil {
				return "", err
			}
			stmts = append(stmts, s)

		case migrations.OpKindChangeColumn:
			s, err := changeColumnSQL(op.TableName, op.OldColumn, op.NewColumn)
			if err != nil {
				return "", err
			}
			stmts = append(stmts, s...)

		case migrations.OpKindRemoveColumn:
			stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", quoteIdent(op.TableName), quoteIdent(op.ColumnName)))

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
