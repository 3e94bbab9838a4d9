package cmd

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var envFile string

var rootCmd = &cobra.Command{
	Use:   "daytrade",
	Short: "Intraday risk and exit decision engine",
	Long: `Daytrade runs a tick-driven intraday trading session.

Each tick it:
  - marks open positions and applies take-profit, stop-loss and trailing exits
  - scores unheld symbols and sizes entries through the risk gate
  - routes market orders and records confirmed fills in a journal

Settings come from a YAML or JSON config file. DAYTRADE_* variables, read
from the environment or a .env file, override the journal path, log level
and metrics address.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadEnv(envFile, cmd.Flags().Changed("env"))
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "dotenv file with DAYTRADE_* overrides")
}

// loadEnv reads path into the environment. A missing default file is fine;
// a missing file the user asked for is not.
func loadEnv(path string, explicit bool) error {
	if path == "" {
		return nil
	}
	err := godotenv.Load(path)
	if err == nil {
		return nil
	}
	if errors.Is(err, fs.ErrNotExist) && !explicit {
		return nil
	}
	return fmt.Errorf("load env file: %w", err)
}
