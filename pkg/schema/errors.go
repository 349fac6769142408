// SPDX-License-Identifier: Apache-2.0

package schema

import "fmt"

// UnknownTypeError is returned by ResolveTypes when a Deferred column
// type names a table, or a primary key, that cannot be resolved in a
// single pass.
type UnknownTypeError struct {
	Key    string
	Table  string
	Column string
}

func (e UnknownTypeError) Error() string {
	if e.Table != "" && e.Column != "" {
		return fmt.Sprintf("unknown type %q referenced by %s.%s", e.Key, e.Table, e.Column)
	}
	return fmt.Sprintf("unknown type %q", e.Key)
}
