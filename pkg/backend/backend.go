// SPDX-License-Identifier: Apache-2.0

// Package backend declares the two external, fixed interfaces the
// migration engine consumes (spec.md §6): Backend, which renders a
// schema and operation list into SQL, and Connection, which executes
// SQL and performs the handful of row operations the bookkeeping table
// needs. Concrete backends (sqlite, postgres) live in subpackages.
package backend

import (
	"context"

	"github.com/propanedb/propane/pkg/migrations"
	"github.com/propanedb/propane/pkg/schema"
)

// Backend renders schema operations into SQL for one dialect. It holds
// no connection state; CreateMigrationSQL is a pure function of its
// arguments.
type Backend interface {
	// Name returns the backend's identifier, used both as the prefix
	// of its SQL files (<name>_up.sql / <name>_down.sql) and as the
	// value Connection.BackendName must return for that backend's
	// live connections.
	Name() string

	// CreateMigrationSQL renders ops, applied against the from schema,
	// as a single executable SQL script.
	CreateMigrationSQL(from *schema.DB, ops []migrations.Operation) (string, error)
}

// Row is one result row from Query, keyed by column name.
type Row map[string]any

// Connection is a live database connection, consumed by Migration.Apply
// and the bookkeeping package. Implementations own no schema knowledge;
// they execute what Backend.CreateMigrationSQL produced.
type Connection interface {
	// BackendName returns the name of the backend this connection
	// speaks, matching some Backend.Name().
	BackendName() string

	// Execute runs sql, which may be a multi-statement script, as a
	// single logical unit.
	Execute(ctx context.Context, sql string) error

	// Query returns every row of table whose columns match where
	// (equality only), reading at most limit rows (0 meaning
	// unlimited). Only the named columns are populated in each Row.
	Query(ctx context.Context, table string, columns []string, where map[string]any, limit int) ([]Row, error)

	// InsertOrReplace upserts one row, keyed by the table's own
	// primary key, built from columns and values in lockstep.
	InsertOrReplace(ctx context.Context, table string, columns []string, values []any) error

	// Delete removes the row of table whose pkCol equals pkVal.
	Delete(ctx context.Context, table, pkCol string, pkVal any) error
}

// Transactional is an optional capability: a Connection that can run a
// sequence of operations atomically. Migration.Apply uses it when
// available and falls back to sequential, order-preserving execution
// otherwise (spec.md §4.5).
type Transactional interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context, tx Connection) error) error
}
