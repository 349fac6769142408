// SPDX-License-Identifier: Apache-2.0

package schema

// ResolveTypes rewrites every Deferred column type in db to Known,
// resolving each against the primary-key type of the table it names.
// Resolution is a single pass: a Deferred column whose referenced
// primary key is itself still Deferred fails rather than chasing the
// chain, per spec.md §4.1 and §9 ("no forward chains of deferrals are
// permitted"). ResolveTypes is idempotent once every column is Known.
func (db *DB) ResolveTypes() error {
	for _, name := range db.order {
		t := db.tables[name]
		for i := range t.Columns {
			col := &t.Columns[i]
			key, deferred := col.SqlType.DeferredKey()
			if !deferred {
				continue
			}
			resolved, err := db.resolveDeferredKey(key)
			if err != nil {
				return UnknownTypeError{Key: key, Column: col.Name, Table: t.Name}
			}
			col.SqlType = Known(resolved)
		}
	}
	return nil
}

func (db *DB) resolveDeferredKey(key string) (SqlType, error) {
	tableName, ok := TableForPrimaryKeyDeferredKey(key)
	if !ok {
		return SqlTypeUnknown, UnknownTypeError{Key: key}
	}
	t := db.GetTable(tableName)
	if t == nil {
		return SqlTypeUnknown, UnknownTypeError{Key: key}
	}
	pk := t.PrimaryKeyColumn()
	if pk == nil || !pk.SqlType.IsKnown() {
		return SqlTypeUnknown, UnknownTypeError{Key: key}
	}
	return pk.SqlType.MustKnown(), nil
}
