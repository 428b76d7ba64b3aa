package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pharmalnet/dti/version"
)

var versionCmd = &cobra.Command{
	Use:               "version",
	Short:             "show version",
	Long:              `show the version details of pharmalnet.`,
	Args:              cobra.NoArgs,
	DisableAutoGenTag: true,
	SilenceUsage:      true,
	PersistentPreRun:  func(cmd *cobra.Command, args []string) {},
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version.String())
	},
}
