// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/propanedb/propane/cmd/flags"
	"github.com/propanedb/propane/internal/config"
	"github.com/propanedb/propane/pkg/backend"
)

func initCmd() *cobra.Command {
	var migrationsDir string

	cmd := &cobra.Command{
		Use:   "init <backend> <dsn>",
		Short: "Establish a connection spec for propane to use",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := config.Connection{
				Backend:       args[0],
				DSN:           args[1],
				MigrationsDir: migrationsDir,
			}
			if _, _, err := openBackend(c); err != nil {
				if _, ok := err.(backend.UnknownBackendError); ok {
					return err
				}
				return fmt.Errorf("connecting to verify the connection spec: %w", err)
			}

			path := flags.ConfigPath()
			if err := config.Write(path, c); err != nil {
				return err
			}
			pterm.Success.Println("Wrote " + path)
			return nil
		},
	}
	cmd.Flags().StringVar(&migrationsDir, "migrations-dir", "propane/migrations", "Root directory of the migration chain")
	return cmd
}
