// SPDX-License-Identifier: Apache-2.0

// Package cmd is the CLI front end (out of scope per spec.md §1, but
// carried as the ambient entry point every command-line migration
// tool in this corpus ships): init, makemigration, migrate, status.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/propanedb/propane/cmd/flags"
	"github.com/propanedb/propane/internal/config"
	"github.com/propanedb/propane/pkg/backend"
	"github.com/propanedb/propane/pkg/backend/postgres"
	"github.com/propanedb/propane/pkg/backend/sqlite"
)

// Version is the propane version, overridden at build time via
// -ldflags.
var Version = "development"

func init() {
	viper.SetEnvPrefix("PROPANE")
	viper.AutomaticEnv()

	flags.ConfigFlag(rootCmd)
}

var rootCmd = &cobra.Command{
	Use:           "propane",
	Short:         "The propane migration engine CLI",
	SilenceUsage:  true,
	SilenceErrors: true,
	Version:       Version,
}

// Execute runs the root command.
func Execute() error {
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(makeMigrationCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(statusCmd())

	return rootCmd.Execute()
}

// openBackend resolves a connection spec's backend name to both
// halves of the Backend/Connection pair the engine consumes, failing
// with UnknownBackendError for anything this build doesn't ship.
func openBackend(c config.Connection) (backend.Backend, backend.Connection, error) {
	switch c.Backend {
	case "sqlite":
		conn, err := sqlite.Open(c.DSN)
		if err != nil {
			return nil, nil, err
		}
		return sqlite.New(), conn, nil
	case "postgres":
		conn, err := postgres.Open(c.DSN)
		if err != nil {
			return nil, nil, err
		}
		return postgres.New(), conn, nil
	default:
		return nil, nil, backend.UnknownBackendError{Name: c.Backend}
	}
}

func loadConfig() (config.Connection, error) {
	path := flags.ConfigPath()
	c, err := config.Load(path)
	if err != nil {
		return config.Connection{}, fmt.Errorf("reading %s (run `propane init` first): %w", path, err)
	}
	return c, nil
}
