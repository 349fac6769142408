// SPDX-License-Identifier: Apache-2.0

package flags

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func ConfigPath() string {
	return viper.GetString("CONFIG")
}

func MigrationName() string {
	return viper.GetString("NAME")
}

func OutputFormat() string {
	return viper.GetString("OUTPUT")
}

// ConfigFlag registers the --config flag shared by every subcommand
// that needs to locate propane.toml.
func ConfigFlag(cmd *cobra.Command) {
	cmd.PersistentFlags().String("config", "propane.toml", "Path to the propane config file")
	viper.BindPFlag("CONFIG", cmd.PersistentFlags().Lookup("config"))
}
