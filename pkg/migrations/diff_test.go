// SPDX-License-Identifier: Apache-2.0

package migrations_test

import (
	"testing"

	"github.com/oapi-codegen/nullable"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/propanedb/propane/pkg/migrations"
	"github.com/propanedb/propane/pkg/schema"
)

func usersTable() schema.Table {
	return schema.Table{
		Name: "users",
		Columns: []schema.Column{
			{Name: "id", SqlType: schema.Known(schema.SqlTypeBigInt), PrimaryKey: true, AutoInc: true},
			{Name: "email", SqlType: schema.Known(schema.SqlTypeText)},
		},
	}
}

func TestDiffEmptyToEmptyIsEmpty(t *testing.T) {
	ops := migrations.Diff(schema.New(), schema.New())
	assert.Empty(t, ops)
}

func TestDiffAddTable(t *testing.T) {
	from := schema.New()
	to := schema.New()
	to.ReplaceTable(usersTable())

	ops := migrations.Diff(from, to)
	require.Len(t, ops, 1)
	assert.Equal(t, migrations.OpKindAddTable, ops[0].Kind)
	assert.Equal(t, "users", ops[0].Table.Name)
}

func TestDiffRemoveTable(t *testing.T) {
	from := schema.New()
	from.ReplaceTable(usersTable())
	to := schema.New()

	ops := migrations.Diff(from, to)
	require.Len(t, ops, 1)
	assert.Equal(t, migrations.OpKindRemoveTable, ops[0].Kind)
	assert.Equal(t, "users", ops[0].TableName)
}

func TestDiffAddChangeRemoveColumnOrdering(t *testing.T) {
	from := schema.New()
	from.ReplaceTable(schema.Table{
		Name: "users",
		Columns: []schema.Column{
			{Name: "id", SqlType: schema.Known(schema.SqlTypeBigInt), PrimaryKey: true},
			{Name: "email", SqlType: schema.Known(schema.SqlTypeText)},
			{Name: "legacy_flag", SqlType: schema.Known(schema.SqlTypeBoolean)},
		},
	})

	to := schema.New()
	to.ReplaceTable(schema.Table{
		Name: "users",
		Columns: []schema.Column{
			{Name: "id", SqlType: schema.Known(schema.SqlTypeBigInt), PrimaryKey: true},
			{Name: "email", SqlType: schema.Known(schema.SqlTypeText), Nullable: true},
			{Name: "age", SqlType: schema.Known(schema.SqlTypeSmallInt), Nullable: true},
		},
	})

	ops := migrations.Diff(from, to)
	require.Len(t, ops, 3)
	assert.Equal(t, migrations.OpKindAddColumn, ops[0].Kind)
	assert.Equal(t, "age", ops[0].Column.Name)
	assert.Equal(t, migrations.OpKindChangeColumn, ops[1].Kind)
	assert.Equal(t, "email", ops[1].NewColumn.Name)
	assert.Equal(t, migrations.OpKindRemoveColumn, ops[2].Kind)
	assert.Equal(t, "legacy_flag", ops[2].ColumnName)
}

func TestDiffRemoveColumnsSortedWithinTable(t *testing.T) {
	from := schema.New()
	from.ReplaceTable(schema.Table{
		Name: "users",
		Columns: []schema.Column{
			{Name: "zeta", SqlType: schema.Known(schema.SqlTypeText)},
			{Name: "alpha", SqlType: schema.Known(schema.SqlTypeText)},
		},
	})
	to := schema.New()
	to.ReplaceTable(schema.Table{Name: "users"})

	ops := migrations.Diff(from, to)
	require.Len(t, ops, 2)
	assert.Equal(t, migrations.OpKindRemoveColumn, ops[0].Kind)
	assert.Equal(t, "alpha", ops[0].ColumnName)
	assert.Equal(t, "zeta", ops[1].ColumnName)
}

func TestDiffRemoveTablesSortedLexicographically(t *testing.T) {
	from := schema.New()
	from.ReplaceTable(schema.Table{Name: "zeta"})
	from.ReplaceTable(schema.Table{Name: "alpha"})
	to := schema.New()

	ops := migrations.Diff(from, to)
	require.Len(t, ops, 2)
	assert.Equal(t, "alpha", ops[0].TableName)
	assert.Equal(t, "zeta", ops[1].TableName)
}

func TestDiffDetectsDefaultChange(t *testing.T) {
	from := schema.New()
	from.ReplaceTable(schema.Table{
		Name: "users",
		Columns: []schema.Column{
			{Name: "active", SqlType: schema.Known(schema.SqlTypeBoolean),
				Default: nullable.NewNullableWithValue(schema.BoolVal(true))},
		},
	})
	to := schema.New()
	to.ReplaceTable(schema.Table{
		Name: "users",
		Columns: []schema.Column{
			{Name: "active", SqlType: schema.Known(schema.SqlTypeBoolean),
				Default: nullable.NewNullableWithValue(schema.BoolVal(false))},
		},
	})

	ops := migrations.Diff(from, to)
	require.Len(t, ops, 1)
	assert.Equal(t, migrations.OpKindChangeColumn, ops[0].Kind)
}

func TestDiffIdenticalSchemasIsEmpty(t *testing.T) {
	from := schema.New()
	from.ReplaceTable(usersTable())
	to := schema.New()
	to.ReplaceTable(usersTable())

	ops := migrations.Diff(from, to)
	assert.Empty(t, ops)
}

func TestDiffOperationOrderingAcrossKinds(t *testing.T) {
	from := schema.New()
	from.ReplaceTable(schema.Table{
		Name: "old_table",
		Columns: []schema.Column{{Name: "id", SqlType: schema.Known(schema.SqlTypeBigInt), PrimaryKey: true}},
	})
	from.ReplaceTable(schema.Table{
		Name: "users",
		Columns: []schema.Column{
			{Name: "id", SqlType: schema.Known(schema.SqlTypeBigInt), PrimaryKey: true},
			{Name: "removed_col", SqlType: schema.Known(schema.SqlTypeText)},
			{Name: "changed_col", SqlType: schema.Known(schema.SqlTypeText)},
		},
	})

	to := schema.New()
	to.ReplaceTable(schema.Table{
		Name: "users",
		Columns: []schema.Column{
			{Name: "id", SqlType: schema.Known(schema.SqlTypeBigInt), PrimaryKey: true},
			{Name: "changed_col", SqlType: schema.Known(schema.SqlTypeText), Nullable: true},
			{Name: "added_col", SqlType: schema.Known(schema.SqlTypeText), Nullable: true},
		},
	})
	to.ReplaceTable(schema.Table{
		Name: "new_table",
		Columns: []schema.Column{{Name: "id", SqlType: schema.Known(schema.SqlTypeBigInt), PrimaryKey: true}},
	})

	ops := migrations.Diff(from, to)
	var kinds []migrations.OpKind
	for _, op := range ops {
		kinds = append(kinds, op.Kind)
	}
	assert.Equal(t, []migrations.OpKind{
		migrations.OpKindAddTable,
		migrations.OpKindAddColumn,
		migrations.OpKindChangeColumn,
		migrations.OpKindRemoveColumn,
		migrations.OpKindRemoveTable,
	}, kinds)
}
