// SPDX-License-Identifier: Apache-2.0

package migrations

import (
	"slices"

	"github.com/propanedb/propane/pkg/schema"
)

// Diff is the differ (C2): a pure function producing the ordered list
// of operations that transform from into to. Diff never infers
// renames — a renamed table or column is always a drop plus an add,
// per spec.md §1's Non-goals.
//
// Diff(a, a) is always empty. Diff is not composable: Diff(a, b)
// concatenated with Diff(b, c) need not equal Diff(a, c); the only
// contract is that each diff, applied to its left input, yields its
// right input semantically (spec.md §4.2).
func Diff(from, to *schema.DB) []Operation {
	var addTables, removeTables []Operation
	var addColumns, changeColumns, removeColumns []Operation

	toNames := to.TableNames()
	fromNames := from.TableNames()
	fromSet := toSet(fromNames)
	toSetNames := toSet(toNames)

	for _, name := range toNames {
		if !fromSet[name] {
			addTables = append(addTables, AddTable(*to.GetTable(name)))
		}
	}

	for _, name := range fromNames {
		if !toSetNames[name] {
			removeTables = append(removeTables, RemoveTable(name))
		}
	}
	slices.SortFunc(removeTables, func(a, b Operation) int {
		return compareStrings(a.TableName, b.TableName)
	})

	for _, name := range toNames {
		if !fromSet[name] {
			continue // whole table already emitted as AddTable above
		}
		fromTable := from.GetTable(name)
		toTable := to.GetTable(name)

		fromCols := columnSet(fromTable)
		toCols := columnSet(toTable)

		for _, col := range toTable.Columns {
			fc, existed := fromCols[col.Name]
			if !existed {
				addColumns = append(addColumns, AddColumn(name, col))
				continue
			}
			if !columnsEqual(fc, col) {
				changeColumns = append(changeColumns, ChangeColumn(name, fc, col))
			}
		}

		var removedInTable []Operation
		for _, col := range fromTable.Columns {
			if _, stillPresent := toCols[col.Name]; !stillPresent {
				removedInTable = append(removedInTable, RemoveColumn(name, col.Name))
			}
		}
		slices.SortFunc(removedInTable, func(a, b Operation) int {
			return compareStrings(a.ColumnName, b.ColumnName)
		})
		removeColumns = append(removeColumns, removedInTable...)
	}

	ops := make([]Operation, 0, len(addTables)+len(addColumns)+len(changeColumns)+len(removeColumns)+len(removeTables))
	ops = append(ops, addTables...)
	ops = append(ops, addColumns...)
	ops = append(ops, changeColumns...)
	ops = append(ops, removeColumns...)
	ops = append(ops, removeTables...)
	return ops
}

func toSet(names []string) map[string]bool {
	s := make(map[string]bool, len(names))
	for _, n := range names {
		s[n] = true
	}
	return s
}

func columnSet(t *schema.Table) map[string]schema.Column {
	m := make(map[string]schema.Column, len(t.Columns))
	for _, c := range t.Columns {
		m[c.Name] = c
	}
	return m
}

func compareStrings(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// columnsEqual reports whether two columns are identical across
// {type, nullability, pk, auto, default}, per spec.md §4.2 step 3.
func columnsEqual(a, b schema.Column) bool {
	if a.SqlType != b.SqlType {
		return false
	}
	if a.Nullable != b.Nullable || a.PrimaryKey != b.PrimaryKey || a.AutoInc != b.AutoInc {
		return false
	}
	return defaultsEqual(a.Default, b.Default)
}

func defaultsEqual(a, b schema.Nullable[schema.SqlVal]) bool {
	aSpecified, bSpecified := a.IsSpecified(), b.IsSpecified()
	if aSpecified != bSpecified {
		return false
	}
	if !aSpecified {
		return true
	}
	if a.IsNull() != b.IsNull() {
		return false
	}
	if a.IsNull() {
		return true
	}
	av, _ := a.Get()
	bv, _ := b.Get()
	return av.Equal(bv)
}
