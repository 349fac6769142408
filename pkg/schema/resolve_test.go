// SPDX-License-Identifier: Apache-2.0

package schema_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/propanedb/propane/pkg/schema"
)

func TestResolveTypesResolvesDeferredPrimaryKeyReference(t *testing.T) {
	db := schema.New()
	db.ReplaceTable(schema.Table{
		Name: "users",
		Columns: []schema.Column{
			{Name: "id", SqlType: schema.Known(schema.SqlTypeBigInt), PrimaryKey: true},
		},
	})
	db.ReplaceTable(schema.Table{
		Name: "posts",
		Columns: []schema.Column{
			{Name: "user_id", SqlType: schema.Deferred(schema.DeferredKeyForPrimaryKey("users"))},
		},
	})

	require.NoError(t, db.ResolveTypes())

	col := db.GetTable("posts").GetColumn("user_id")
	assert.True(t, col.SqlType.IsKnown())
	assert.Equal(t, schema.SqlTypeBigInt, col.SqlType.MustKnown())
}

func TestResolveTypesFailsOnUnknownTable(t *testing.T) {
	db := schema.New()
	db.ReplaceTable(schema.Table{
		Name: "posts",
		Columns: []schema.Column{
			{Name: "user_id", SqlType: schema.Deferred(schema.DeferredKeyForPrimaryKey("users"))},
		},
	})

	err := db.ResolveTypes()
	require.Error(t, err)
	var unknownType schema.UnknownTypeError
	assert.ErrorAs(t, err, &unknownType)
}

func TestResolveTypesFailsOnChainedDeferral(t *testing.T) {
	db := schema.New()
	db.ReplaceTable(schema.Table{
		Name: "a",
		Columns: []schema.Column{
			{Name: "id", SqlType: schema.Deferred(schema.DeferredKeyForPrimaryKey("b")), PrimaryKey: true},
		},
	})
	// b's own primary key is itself deferred, so a column deferred to
	// b.pk cannot resolve in a single pass: resolution never chases a
	// deferral through a second hop.
	db.ReplaceTable(schema.Table{
		Name: "b",
		Columns: []schema.Column{
			{Name: "id", SqlType: schema.Deferred(schema.DeferredKeyForPrimaryKey("c")), PrimaryKey: true},
		},
	})
	db.ReplaceTable(schema.Table{
		Name: "c",
		Columns: []schema.Column{
			{Name: "id", SqlType: schema.Known(schema.SqlTypeBigInt), PrimaryKey: true},
		},
	})

	err := db.ResolveTypes()
	require.Error(t, err)
	var unknownType schema.UnknownTypeError
	assert.ErrorAs(t, err, &unknownType)
}

func TestResolveTypesIdempotent(t *testing.T) {
	db := schema.New()
	db.ReplaceTable(schema.Table{
		Name: "users",
		Columns: []schema.Column{
			{Name: "id", SqlType: schema.Known(schema.SqlTypeBigInt), PrimaryKey: true},
		},
	})

	require.NoError(t, db.ResolveTypes())
	require.NoError(t, db.ResolveTypes())
}
