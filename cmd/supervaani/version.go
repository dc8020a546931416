package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hrygo/supervaani/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the client version",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version.GetCurrentVersion(viper.GetString("mode")))
		if version.GitCommit != "unknown" {
			fmt.Fprintln(cmd.OutOrStdout(), "commit", version.GitCommit)
		}
	},
}
