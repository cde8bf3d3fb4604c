package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version is set during build
	Version = "0.1.0"

	quiet bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "irmd",
	Short: "Infinite Relational Model inference server and CLI",
	Long: `irmd fits an Infinite Relational Model to relational data via
collapsed Gibbs sampling and serves the resulting partitions over HTTP.

Examples:
  irmd serve                        # start the REST API server
  irmd doctor                       # check configuration and store health`,
	Version: Version,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file path (not read: config is loaded from ./config.yaml, ~/.irmd/config.yaml or /etc/irmd/config.yaml)")
	rootCmd.PersistentFlags().String("log_level", "info", "log level (not read: the level comes from the config file's logging section)")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "suppress output (not read by any command)")
}
