// SPDX-License-Identifier: Apache-2.0

package migrations

import (
	"strconv"
	"strings"
	"time"
)

// MaxNameLength bounds migration, table, and column names. It matches
// PostgreSQL's own identifier limit, which both shipped backends must
// live within since they share one ADB.
const MaxNameLength = 63

// ValidateName checks a migration, table, or column name against the
// engine's naming constraints.
func ValidateName(name string) error {
	if name == "" {
		return BoundsError{Msg: "name must not be empty"}
	}
	if len(name) > MaxNameLength {
		return BoundsError{Msg: "name " + name + " exceeds " + strconv.Itoa(MaxNameLength) + " characters"}
	}
	return nil
}

// DefaultMigrationName returns the timestamp-derived default migration
// name the CLI uses when `-n` isn't given (spec.md §6):
// YYYYMMDD_HHMMSSmmm.
func DefaultMigrationName(t time.Time) string {
	s := t.UTC().Format("20060102_150405.000")
	return strings.Replace(s, ".", "", 1)
}
