package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the irmd version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("irmd v%s\n", Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
