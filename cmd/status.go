// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"

	"github.com/propanedb/propane/pkg/chain"
	"github.com/propanedb/propane/pkg/fs"
	"github.com/propanedb/propane/pkg/migrations"
)

// statusReport is the structured form status prints, as JSON or YAML.
type statusReport struct {
	Latest      string   `json:"latest"`
	LastApplied string   `json:"last_applied"`
	Unapplied   []string `json:"unapplied"`
}

func statusCmd() *cobra.Command {
	var outputFormat string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the chain tip, the last applied migration, and what's pending",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputFormat = strings.ToLower(outputFormat)
			if outputFormat != "json" && outputFormat != "yaml" {
				return fmt.Errorf("invalid output format: %q", outputFormat)
			}

			conf, err := loadConfig()
			if err != nil {
				return err
			}
			_, conn, err := openBackend(conf)
			if err != nil {
				return err
			}
			defer closeIfCloser(conn)

			c := chain.FromRoot(conf.MigrationsDir, fs.NewLocal(), migrations.NewNoopLogger())

			report := statusReport{Latest: "none", LastApplied: "none"}
			latest, err := c.GetLatest()
			if err != nil {
				return err
			}
			if latest != nil {
				report.Latest = latest.Name
			}

			lastApplied, err := c.GetLastAppliedMigration(cmd.Context(), conn)
			if err != nil {
				return err
			}
			if lastApplied != nil {
				report.LastApplied = lastApplied.Name
			}

			pending, err := c.GetUnappliedMigrations(cmd.Context(), conn)
			if err != nil {
				return err
			}
			for _, m := range pending {
				report.Unapplied = append(report.Unapplied, m.Name)
			}

			return printReport(cmd, report, outputFormat)
		},
	}
	cmd.Flags().StringVarP(&outputFormat, "output", "o", "json", "Output format: json or yaml")
	return cmd
}

func printReport(cmd *cobra.Command, report statusReport, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	case "yaml":
		out, err := yaml.Marshal(report)
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(out)
		return err
	default:
		return fmt.Errorf("invalid output format: %q", format)
	}
}
