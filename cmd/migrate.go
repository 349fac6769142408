// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/propanedb/propane/pkg/chain"
	"github.com/propanedb/propane/pkg/fs"
	"github.com/propanedb/propane/pkg/migrations"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply every unapplied migration, oldest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := loadConfig()
			if err != nil {
				return err
			}
			_, conn, err := openBackend(conf)
			if err != nil {
				return err
			}
			defer closeIfCloser(conn)

			c := chain.FromRoot(conf.MigrationsDir, fs.NewLocal(), migrations.NewLogger())

			pending, err := c.GetUnappliedMigrations(cmd.Context(), conn)
			if err != nil {
				return err
			}
			if len(pending) == 0 {
				pterm.Info.Println("nothing to apply")
				return nil
			}

			if err := c.ApplyAll(cmd.Context(), conn); err != nil {
				return err
			}
			pterm.Success.Printf("applied %d migration(s)\n", len(pending))
			return nil
		},
	}
	return cmd
}
