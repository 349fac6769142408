// SPDX-License-Identifier: Apache-2.0

// Package migrations implements the differ (C2): a pure function over
// two abstract schemas (pkg/schema) that produces an ordered list of
// schema operations, plus the supporting error, naming, and logging
// types shared by the rest of the engine.
package migrations

import "github.com/propanedb/propane/pkg/schema"

// OpKind names one of the five closed operation variants.
type OpKind string

const (
	OpKindAddTable     OpKind = "AddTable"
	OpKindRemoveTable  OpKind = "RemoveTable"
	OpKindAddColumn    OpKind = "AddColumn"
	OpKindRemoveColumn OpKind = "RemoveColumn"
	OpKindChangeColumn OpKind = "ChangeColumn"
)

// Operation is one schema change. It is a closed tagged union over the
// five kinds named in spec.md §3; exactly one of the Table/Column
// pointer pairs below is populated, selected by Kind.
type Operation struct {
	Kind OpKind

	// AddTable
	Table *schema.Table

	// RemoveTable, AddColumn(table name), RemoveColumn(table name),
	// ChangeColumn(table name)
	TableName string

	// AddColumn
	Column *schema.Column

	// RemoveColumn
	ColumnName string

	// ChangeColumn
	OldColumn *schema.Column
	NewColumn *schema.Column
}

// AddTable builds an AddTable operation.
func AddTable(t schema.Table) Operation {
	return Operation{Kind: OpKindAddTable, Table: &t}
}

// RemoveTable builds a RemoveTable operation.
func RemoveTable(name string) Operation {
	return Operation{Kind: OpKindRemoveTable, TableName: name}
}

// AddColumn builds an AddColumn operation.
func AddColumn(table string, c schema.Column) Operation {
	return Operation{Kind: OpKindAddColumn, TableName: table, Column: &c}
}

// RemoveColumn builds a RemoveColumn operation.
func RemoveColumn(table, column string) Operation {
	return Operation{Kind: OpKindRemoveColumn, TableName: table, ColumnName: column}
}

// ChangeColumn builds a ChangeColumn operation.
func ChangeColumn(table string, old, new schema.Column) Operation {
	return Operation{Kind: OpKindChangeColumn, TableName: table, OldColumn: &old, NewColumn: &new}
}
