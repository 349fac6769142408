// SPDX-License-Identifier: Apache-2.0

package migration_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/propanedb/propane/pkg/backend"
	"github.com/propanedb/propane/pkg/fs/memfs"
	"github.com/propanedb/propane/pkg/migration"
	"github.com/propanedb/propane/pkg/schema"
)

func strptr(s string) *string { return &s }

func TestWriteInfoThenReadInfoRoundTrips(t *testing.T) {
	fsys := memfs.New()
	require.NoError(t, fsys.EnsureDir("migrations/001_init"))
	m := migration.New("migrations", "001_init", fsys)

	require.NoError(t, m.WriteInfo(migration.Info{FromName: nil}))
	info, err := m.ReadInfo()
	require.NoError(t, err)
	assert.Nil(t, info.FromName)

	m2 := migration.New("migrations", "002_add_col", fsys)
	require.NoError(t, fsys.EnsureDir("migrations/002_add_col"))
	require.NoError(t, m2.WriteInfo(migration.Info{FromName: strptr("001_init")}))
	info2, err := m2.ReadInfo()
	require.NoError(t, err)
	require.NotNil(t, info2.FromName)
	assert.Equal(t, "001_init", *info2.FromName)
}

func TestWriteDBThenGetDBRoundTrips(t *testing.T) {
	fsys := memfs.New()
	require.NoError(t, fsys.EnsureDir("migrations/001_init"))
	m := migration.New("migrations", "001_init", fsys)

	db := schema.New()
	db.ReplaceTable(schema.Table{
		Name: "users",
		Columns: []schema.Column{
			{Name: "id", SqlType: schema.Known(schema.SqlTypeBigInt), PrimaryKey: true},
			{Name: "email", SqlType: schema.Known(schema.SqlTypeText)},
		},
	})
	db.ReplaceTable(schema.Table{Name: "posts", Columns: []schema.Column{
		{Name: "id", SqlType: schema.Known(schema.SqlTypeBigInt), PrimaryKey: true},
	}})

	require.NoError(t, m.WriteDB(db))

	got, err := m.GetDB()
	require.NoError(t, err)
	assert.Equal(t, []string{"posts", "users"}, got.TableNames())
}

func TestReadInfoOnMissingFileReturnsNotExist(t *testing.T) {
	fsys := memfs.New()
	require.NoError(t, fsys.EnsureDir("migrations/001_init"))
	m := migration.New("migrations", "001_init", fsys)

	_, err := m.ReadInfo()
	require.Error(t, err)
}

func TestWriteUpSQLThenReadUpSQLRoundTrips(t *testing.T) {
	fsys := memfs.New()
	require.NoError(t, fsys.EnsureDir("migrations/001_init"))
	m := migration.New("migrations", "001_init", fsys)

	require.NoError(t, m.WriteUpSQL("sqlite", "CREATE TABLE users (id TEXT PRIMARY KEY);"))
	require.NoError(t, m.WriteDownSQL("sqlite", "DROP TABLE users;"))

	up, err := m.ReadUpSQL("sqlite")
	require.NoError(t, err)
	assert.Equal(t, "CREATE TABLE users (id TEXT PRIMARY KEY);", up)

	down, err := m.ReadDownSQL("sqlite")
	require.NoError(t, err)
	assert.Equal(t, "DROP TABLE users;", down)
}

func TestIsCurrent(t *testing.T) {
	fsys := memfs.New()
	cur := migration.New("migrations", migration.CurrentName, fsys)
	assert.True(t, cur.IsCurrent())

	other := migration.New("migrations", "001_init", fsys)
	assert.False(t, other.IsCurrent())
}

// fakeConn is a minimal backend.Connection double recording every
// statement Execute is given and every row InsertOrReplace is given.
type fakeConn struct {
	backendName string
	executed    []string
	rows        map[string][]backend.Row
	execErr     error
}

func newFakeConn(name string) *fakeConn {
	return &fakeConn{backendName: name, rows: map[string][]backend.Row{}}
}

func (f *fakeConn) BackendName() string { return f.backendName }

func (f *fakeConn) Execute(ctx context.Context, script string) error {
	if f.execErr != nil {
		return f.execErr
	}
	f.executed = append(f.executed, script)
	return nil
}

func (f *fakeConn) Query(ctx context.Context, table string, columns []string, where map[string]any, limit int) ([]backend.Row, error) {
	return f.rows[table], nil
}

func (f *fakeConn) InsertOrReplace(ctx context.Context, table string, columns []string, values []any) error {
	row := make(backend.Row, len(columns))
	for i, c := range columns {
		row[c] = values[i]
	}
	f.rows[table] = append(f.rows[table], row)
	return nil
}

func (f *fakeConn) Delete(ctx context.Context, table, pkCol string, pkVal any) error {
	return nil
}

var _ backend.Connection = (*fakeConn)(nil)

func TestApplyRunsUpSQLAndRecordsBookkeeping(t *testing.T) {
	fsys := memfs.New()
	require.NoError(t, fsys.EnsureDir("migrations/001_init"))
	m := migration.New("migrations", "001_init", fsys)
	require.NoError(t, m.WriteUpSQL("fake", "CREATE TABLE users (id TEXT PRIMARY KEY);"))

	conn := newFakeConn("fake")
	require.NoError(t, m.Apply(context.Background(), conn))

	require.Len(t, conn.executed, 1)
	assert.Equal(t, "CREATE TABLE users (id TEXT PRIMARY KEY);", conn.executed[0])
	require.Len(t, conn.rows["propane_migrations"], 1)
	assert.Equal(t, "001_init", conn.rows["propane_migrations"][0]["name"])
}

func TestApplyFailsWhenNoSQLForBackend(t *testing.T) {
	fsys := memfs.New()
	require.NoError(t, fsys.EnsureDir("migrations/001_init"))
	m := migration.New("migrations", "001_init", fsys)

	conn := newFakeConn("fake")
	err := m.Apply(context.Background(), conn)
	require.Error(t, err)
}

func TestApplyPropagatesExecuteError(t *testing.T) {
	fsys := memfs.New()
	require.NoError(t, fsys.EnsureDir("migrations/001_init"))
	m := migration.New("migrations", "001_init", fsys)
	require.NoError(t, m.WriteUpSQL("fake", "CREATE TABLE users (id TEXT PRIMARY KEY);"))

	conn := newFakeConn("fake")
	conn.execErr = errors.New("boom")
	err := m.Apply(context.Background(), conn)
	require.Error(t, err)
	assert.Empty(t, conn.rows["propane_migrations"])
}

// txFakeConn additionally implements backend.Transactional, wrapping
// the same fakeConn so Apply's transactional branch can be exercised.
type txFakeConn struct {
	*fakeConn
}

func (f *txFakeConn) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx backend.Connection) error) error {
	return fn(ctx, f.fakeConn)
}

var _ backend.Transactional = (*txFakeConn)(nil)

func TestApplyUsesTransactionWhenSupported(t *testing.T) {
	fsys := memfs.New()
	require.NoError(t, fsys.EnsureDir("migrations/001_init"))
	m := migration.New("migrations", "001_init", fsys)
	require.NoError(t, m.WriteUpSQL("fake", "CREATE TABLE users (id TEXT PRIMARY KEY);"))

	conn := &txFakeConn{fakeConn: newFakeConn("fake")}
	require.NoError(t, m.Apply(context.Background(), conn))

	require.Len(t, conn.executed, 1)
	require.Len(t, conn.rows["propane_migrations"], 1)
}

func TestApplyErrorMessageNamesMigrationAndBackend(t *testing.T) {
	fsys := memfs.New()
	require.NoError(t, fsys.EnsureDir("migrations/001_init"))
	m := migration.New("migrations", "001_init", fsys)

	conn := newFakeConn("oracle")
	err := m.Apply(context.Background(), conn)
	require.Error(t, err)
	assert.Contains(t, err.Error(), fmt.Sprintf("migration %q", "001_init"))
	assert.Contains(t, err.Error(), `"oracle"`)
}
