// SPDX-License-Identifier: Apache-2.0

package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/propanedb/propane/pkg/backend"
)

// Connection is a live SQLite connection, backed by the pure-Go
// modernc.org/sqlite driver (no cgo, grounded in the same preference
// the wider example corpus shows for dependency-free SQLite access).
type Connection struct {
	db *sql.DB
}

var (
	_ backend.Connection    = (*Connection)(nil)
	_ backend.Transactional = (*Connection)(nil)
)

// Open opens dsn (a modernc.org/sqlite data source, e.g. a file path
// or "file::memory:?cache=shared") as a Connection.
func Open(dsn string) (*Connection, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	return &Connection{db: db}, nil
}

func (c *Connection) BackendName() string { return "sqlite" }

func (c *Connection) Close() error { return c.db.Close() }

// Execute runs sql one statement at a time inside one transaction:
// modernc.org/sqlite, like database/sql generally, rejects a single
// Exec call containing more than one statement.
func (c *Connection) Execute(ctx context.Context, script string) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range backend.SplitStatements(script) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlite: exec %q: %w", stmt, err)
		}
	}
	return tx.Commit()
}

func (c *Connection) Query(ctx context.Context, table string, columns []string, where map[string]any, limit int) ([]backend.Row, error) {
	return query(ctx, c.db, table, columns, where, limit)
}

// queryer is satisfied by both *sql.DB and *sql.Tx, letting query and
// its siblings below run identically inside or outside a transaction.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func query(ctx context.Context, q queryer, table string, columns []string, where map[string]any, limit int) ([]backend.Row, error) {
	quotedCols := make([]string, len(columns))
	for i, c := range columns {
		quotedCols[i] = quoteIdent(c)
	}
	stmt := fmt.Sprintf("SELECT %s FROM %s", strings.Join(quotedCols, ", "), quoteIdent(table))

	var args []any
	if len(where) > 0 {
		var conds []string
		for col, val := range where {
			conds = append(conds, quoteIdent(col)+" = ?")
			args = append(args, val)
		}
		stmt += " WHERE " + strings.Join(conds, " AND ")
	}
	if limit > 0 {
		stmt += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := q.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query: %w", err)
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
			return nil, fmt.Errorf("sqlite: scan: %w", err)
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
	return insertOrReplace(ctx, c.db, table, columns, values)
}

func insertOrReplace(ctx context.Context, q queryer, table string, columns []string, values []any) error {
	quotedCols := make([]string, len(columns))
	placeholders := make([]string, len(columns))
	for i, c := range columns {
		quotedCols[i] = quoteIdent(c)
		placeholders[i] = "?"
	}
	stmt := fmt.Sprintf(
		"INSERT OR REPLACE INTO %s (%s) VALUES (%s)",
		quoteIdent(table), strings.Join(quotedCols, ", "), strings.Join(placeholders, ", "),
	)
	_, err := q.ExecContext(ctx, stmt, values...)
	if err != nil {
		return fmt.Errorf("sqlite: insert into %s: %w", table, err)
	}
	return nil
}

func (c *Connection) Delete(ctx context.Context, table, pkCol string, pkVal any) error {
	return deleteRow(ctx, c.db, table, pkCol, pkVal)
}

func deleteRow(ctx context.Context, q queryer, table, pkCol string, pkVal any) error {
	stmt := fmt.Sprintf("DELETE FROM %s WHERE %s = ?", quoteIdent(table), quoteIdent(pkCol))
	_, err := q.ExecContext(ctx, stmt, pkVal)
	if err != nil {
		return fmt.Errorf("sqlite: delete from %s: %w", table, err)
	}
	return nil
}

// WithTransaction runs fn against a Connection-shaped view of one
// *sql.Tx, so the bookkeeping writes Migration.Apply makes inside fn
// commit or roll back atomically with the migration's own DDL.
func (c *Connection) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx backend.Connection) error) error {
	sqlTx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin: %w", err)
	}
	txConn := &txConnection{tx: sqlTx}
	if err := fn(ctx, txConn); err != nil {
		sqlTx.Rollback()
		return err
	}
	return sqlTx.Commit()
}

// txConnection is the backend.Connection view of an in-flight
// transaction, handed to Transactional.WithTransaction callbacks.
type txConnection struct {
	tx *sql.Tx
}

var _ backend.Connection = (*txConnection)(nil)

func (t *txConnection) BackendName() string { return "sqlite" }

func (t *txConnection) Execute(ctx context.Context, script string) error {
	for _, stmt := range backend.SplitStatements(script) {
		if _, err := t.tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlite: exec %q: %w", stmt, err)
		}
	}
	return nil
}

func (t *txConnection) Query(ctx context.Context, table string, columns []string, where map[string]any, limit int) ([]backend.Row, error) {
	return query(ctx, t.tx, table, columns, where, limit)
}

func (t *txConnection) InsertOrReplace(ctx context.Context, table string, columns []string, values []any) error {
	return insertOrReplace(ctx, t.tx, table, columns, values)
}

func (t *txConnection) Delete(ctx context.Context, table, pkCol string, pkVal any) error {
	return deleteRow(ctx, t.tx, table, pkCol, pkVal)
}
