// Command rostersim runs the roster engine outside Nakama: scripted scenarios,
// live configuration reloads and admin token minting.
package main

import (
	"fmt"
	"os"

	"rosterd/internal/logging"

	"github.com/spf13/cobra"
)

var (
	configPath string
	verbose    bool

	logger *logging.Logger
)

var rootCmd = &cobra.Command{
	Use:   "rostersim",
	Short: "Run the roster ordering engine against an in-memory host",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		logger, err = logging.New(verbose)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "roster config file (YAML)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(runCmd, watchCmd, tokenCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
