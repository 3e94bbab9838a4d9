package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

const version = "0.3.0"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  `Display the current version of the daytrade CLI.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "daytrade version %s\n", version)
		fmt.Fprintln(cmd.OutOrStdout(), "Intraday risk and exit decision engine")
		fmt.Fprintln(cmd.OutOrStdout(), "https://github.com/rustyeddy/daytrader")
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
