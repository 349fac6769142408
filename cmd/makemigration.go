// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/propanedb/propane/cmd/flags"
	"github.com/propanedb/propane/pkg/chain"
	"github.com/propanedb/propane/pkg/fs"
	"github.com/propanedb/propane/pkg/migrations"
)

func makeMigrationCmd() *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "makemigration",
		Short: "Diff the current schema against the chain tip and write a new migration",
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" {
				name = migrations.DefaultMigrationName(time.Now())
			}
			if err := migrations.ValidateName(name); err != nil {
				return err
			}

			conf, err := loadConfig()
			if err != nil {
				return err
			}
			be, conn, err := openBackend(conf)
			if err != nil {
				return err
			}
			defer closeIfCloser(conn)

			c := chain.FromRoot(conf.MigrationsDir, fs.NewLocal(), migrations.NewLogger())
			tip, err := c.GetLatest()
			if err != nil {
				return err
			}

			result, err := c.CreateMigrationSQL(cmd.Context(), be, name, tip)
			if err != nil {
				return err
			}
			if result == nil {
				pterm.Info.Println("schema unchanged, no migration created")
				return nil
			}
			pterm.Success.Println("wrote migration " + name)
			return nil
		},
	}
	cmd.Flags().StringVarP(&name, "name", "n", "", "Migration name (default: timestamp-derived)")
	return cmd
}

type closer interface{ Close() error }

func closeIfCloser(v any) {
	if c, ok := v.(closer); ok {
		_ = c.Close()
	}
}
