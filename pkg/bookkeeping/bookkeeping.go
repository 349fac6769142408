// SPDX-License-Identifier: Apache-2.0

// Package bookkeeping implements C7: the single-column table inside
// the target database recording which migrations have run.
package bookkeeping

import (
	"context"

	"github.com/propanedb/propane/pkg/backend"
	"github.com/propanedb/propane/pkg/migrations"
	"github.com/propanedb/propane/pkg/schema"
)

// TableName is the name of the applied-migrations table, both as it
// appears in a freshly-created database and as the literal name the
// engine queries against.
const TableName = "propane_migrations"

// NameColumn is the table's sole column.
const NameColumn = "name"

// Table returns the ATable definition of the bookkeeping table, added
// to the very first migration of a chain so that it's created by the
// chain's own DDL rather than by a side channel.
func Table() schema.Table {
	return schema.Table{
		Name: TableName,
		Columns: []schema.Column{
			{
				Name:       NameColumn,
				SqlType:    schema.Known(schema.SqlTypeText),
				PrimaryKey: true,
			},
		},
	}
}

// Record marks migration name as applied, upserting so that a second
// apply of the same migration (S4) touches no other row.
func Record(ctx context.Context, conn backend.Connection, name string) error {
	return conn.InsertOrReplace(ctx, TableName, []string{NameColumn}, []any{name})
}

// Applied returns the set of migration names recorded as applied.
// Per spec.md §4.6/§7's soft-tolerance policy, any failure to read
// the table (most commonly: it doesn't exist yet) is reported to the
// caller as ok=false rather than as an error, so that a fresh
// database is indistinguishable from "nothing applied yet".
func Applied(ctx context.Context, conn backend.Connection) (names map[string]bool, ok bool) {
	rows, err := conn.Query(ctx, TableName, []string{NameColumn}, nil, 0)
	if err != nil {
		return nil, false
	}
	names = make(map[string]bool, len(rows))
	for _, row := range rows {
		v, present := row[NameColumn]
		if !present {
			continue
		}
		s, isString := v.(string)
		if !isString {
			continue
		}
		names[s] = true
	}
	return names, true
}

// EnsureBookkept puts an AddTable(propane_migrations) operation at the
// front of ops when root reports this is the chain's first migration (spec.md
// §4.6 step 4), so that the very first forward SQL script creates the
// bookkeeping table alongside the user's own tables.
func EnsureBookkept(root bool, ops []migrations.Operation) []migrations.Operation {
	if !root {
		return ops
	}
	out := make([]migrations.Operation, 0, len(ops)+1)
	out = append(out, migrations.AddTable(Table()))
	out = append(out, ops...)
	return out
}
