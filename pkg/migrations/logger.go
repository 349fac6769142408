// SPDX-License-Identifier: Apache-2.0

package migrations

import "github.com/pterm/pterm"

// Logger reports migration lifecycle events. It follows the split the
// teacher uses throughout its own migration engine: one interface, a
// pterm-backed implementation for interactive use, and a no-op
// implementation for pure/test code paths that must not touch the
// terminal (e.g. chain_test.go's in-memory scenarios).
type Logger interface {
	LogMigrationCreated(name string, from *string)
	LogNoopMigration(name string)
	LogDivergentMigration(name, attemptedFrom string, actualLatest *string)
	LogMigrationApplied(name string)
	Info(msg string, args ...any)
}

type migrationLogger struct {
	logger pterm.Logger
}

type noopLogger struct{}

// NewLogger returns a pterm-backed Logger for interactive CLI use.
func NewLogger() Logger {
	return &migrationLogger{logger: pterm.DefaultLogger}
}

// NewNoopLogger returns a Logger that discards everything, for use in
// pure/library code paths such as tests that construct a Chain
// without a CLI session behind it.
func NewNoopLogger() Logger {
	return &noopLogger{}
}

func (l *migrationLogger) LogMigrationCreated(name string, from *string) {
	fromName := "none"
	if from != nil {
		fromName = *from
	}
	l.logger.Info("created migration", l.logger.Args("name", name, "from", fromName))
}

func (l *migrationLogger) LogNoopMigration(name string) {
	l.logger.Info("schema unchanged, no migration created", l.logger.Args("attempted_name", name))
}

func (l *migrationLogger) LogDivergentMigration(name, attemptedFrom string, actualLatest *string) {
	latest := "none"
	if actualLatest != nil {
		latest = *actualLatest
	}
	l.logger.Warn("migration written but chain tip not advanced: attempted from does not match current latest", l.logger.Args(
		"name", name,
		"attempted_from", attemptedFrom,
		"actual_latest", latest,
	))
}

func (l *migrationLogger) LogMigrationApplied(name string) {
	l.logger.Info("applied migration", l.logger.Args("name", name))
}

func (l *migrationLogger) Info(msg string, args ...any) {
	l.logger.Info(msg, l.logger.Args(args...))
}

func (l *noopLogger) LogMigrationCreated(name string, from *string)                          {}
func (l *noopLogger) LogNoopMigration(name string)                                           {}
func (l *noopLogger) LogDivergentMigration(name, attemptedFrom string, actualLatest *string)  {}
func (l *noopLogger) LogMigrationApplied(name string)                                        {}
func (l *noopLogger) Info(msg string, args ...any)                                            {}
