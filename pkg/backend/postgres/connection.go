// SPDX-License-Identifier: Apache-2.0

package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/lib/pq"

	"github.com/propanedb/propane/pkg/backend"
	"github.com/propanedb/propane/pkg/db"
)

// Connection is a live Postgres connection, built on db.RDB so that
// every Exec/Query retries on a lock_timeout error with exponential
// backoff before giving up.
type Connection struct {
	rdb *db.RDB
}

var (
	_ backend.Connection    = (*Connection)(nil)
	_ backend.Transactional = (*Connection)(nil)
)

// Open opens dsn (a libpq connection string or URL) as a Connection.
func Open(dsn string) (*Connection, error) {
	sqlDB, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	return &Connection{rdb: &db.RDB{DB: sqlDB}}, nil
}

func (c *Connection) BackendName() string { return "postgres" }

func (c *Connection) Close() error { return c.rdb.Close() }

// Execute runs script, a (possibly multi-statement) SQL string, in a
// single Exec call: lib/pq's simple query protocol executes every
// statement it's given, unlike database/sql over SQLite.
func (c *Connection) Execute(ctx context.Context, script string) error {
	_, err := c.rdb.ExecContext(ctx, script)
	if err != nil {
		return fmt.Errorf("postgres: exec: %w", err)
	}
	return nil
}

func (c *Connection) Query(ctx context.Context, table string, columns []string, where map[string]any, limit int) ([]backend.Row, error) {
	return queryWith(ctx, c.rdb, table, columns, where, limit)
}

// execQueryer is satisfied by db.RDB and by *sql.Tx (via the small
// txExecQueryer adapter below), letting query/insertOrReplace/delete
// run identically inside or outside a retryable transaction.
type execQueryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func queryWith(ctx context.Context, q execQueryer, table string, columns []string, where map[string]any, limit int) ([]backend.Row, error) {
	quotedCols := make([]string, len(columns))
	for i, c := range columns {
		quotedCols[i] = quoteIdent(c)
	}
	stmt := fmt.Sprintf("SELECT %s FROM %s", strings.Join(quotedCols, ", "), quoteIdent(table))

	var args []any
	if len(where) > 0 {
		var conds []string
		i := 1
		for col, val := range where {
			conds = append(conds, fmt.Sprintf("%s = $%d", quoteIdent(col), i))
			args = append(args, val)
			i++
		}
		stmt += " WHERE " + strings.Join(conds, " AND ")
	}
	if limit > 0 {
		stmt += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := q.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: query: %w", err)
	}
	defer rows.Close()

	var out []backend.Row
	for rows.Next() {
		vals := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("postgres: scan: %w", err)
		}
		row := make(backend.Row, len(columns))
		for i, c := range columns {
			row[c] = vals[i]
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (c *Connection) InsertOrReplace(ctx context.Context, table string, columns []string, values []any) error {
	return insertOrReplaceWith(ctx, c.rdb, table, columns, values)
}

func insertOrReplaceWith(ctx context.Context, q execQueryer, table string, columns []string, values []any) error {
	quotedCols := make([]string, len(columns))
	placeholders := make([]string, len(columns))
	for i, c := range columns {
		quotedCols[i] = quoteIdent(c)
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	// The first column is assumed to be the primary key, matching how
	// bookkeeping calls this method.
	conflictAction := "DO NOTHING"
	if rest := setClause(quotedCols[1:], 2); rest != "" {
		conflictAction = "DO UPDATE SET " + rest
	}
	stmt := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) %s",
		quoteIdent(table), strings.Join(quotedCols, ", "), strings.Join(placeholders, ", "),
		quotedCols[0], conflictAction,
	)
	_, err := q.ExecContext(ctx, stmt, values...)
	if err != nil {
		return fmt.Errorf("postgres: insert into %s: %w", table, err)
	}
	return nil
}

func setClause(cols []string, startPlaceholder int) string {
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = fmt.Sprintf("%s = $%d", c, startPlaceholder+i)
	}
	return strings.Join(parts, ", ")
}

func (c *Connection) Delete(ctx context.Context, table, pkCol string, pkVal any) error {
	return deleteRowWith(ctx, c.rdb, table, pkCol, pkVal)
}

func deleteRowWith(ctx context.Context, q execQueryer, table, pkCol string, pkVal any) error {
	stmt := fmt.Sprintf("DELETE FROM %s WHERE %s = $1", quoteIdent(table), quoteIdent(pkCol))
	_, err := q.ExecContext(ctx, stmt, pkVal)
	if err != nil {
		return fmt.Errorf("postgres: delete from %s: %w", table, err)
	}
	return nil
}

// WithTransaction runs fn inside a transaction via db.RDB's own
// retryable-transaction helper, which retries the whole attempt on a
// lock_timeout error.
func (c *Connection) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx backend.Connection) error) error {
	return c.rdb.WithRetryableTransaction(ctx, func(ctx context.Context, sqlTx *sql.Tx) error {
		return fn(ctx, &txConnection{tx: sqlTx})
	})
}

// txConnection is the backend.Connection view of an in-flight
// transaction, handed to Transactional.WithTransaction callbacks.
type txConnection struct {
	tx *sql.Tx
}

var _ backend.Connection = (*txConnection)(nil)

func (t *txConnection) BackendName() string { return "postgres" }

func (t *txConnection) Execute(ctx context.Context, script string) error {
	_, err := t.tx.ExecContext(ctx, script)
	if err != nil {
		return fmt.Errorf("postgres: exec: %w", err)
	}
	return nil
}

func (t *txConnection) Query(ctx context.Context, table string, columns []string, where map[string]any, limit int) ([]backend.Row, error) {
	return queryWith(ctx, t.tx, table, columns, where, limit)
}

func (t *txConnection) InsertOrReplace(ctx context.Context, table string, columns []string, values []any) error {
	return insertOrReplaceWith(ctx, t.tx, table, columns, values)
}

func (t *txConnection) Delete(ctx context.Context, table, pkCol string, pkVal any) error {
	return deleteRowWith(ctx, t.tx, table, pkCol, pkVal)
}
