// SPDX-License-Identifier: Apache-2.0

package backend

import "strings"

// QuoteStringLiteral escapes s as a single-quoted SQL string literal,
// doubling embedded quotes. Both shipped backends use the same escaping
// rule for TEXT literals.
func QuoteStringLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
