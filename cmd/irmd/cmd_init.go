package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/MycelicMemory/irm/internal/snapshot"
	"github.com/MycelicMemory/irm/pkg/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the config directory and an empty snapshot store",
	Run: func(cmd *cobra.Command, args []string) {
		runInit()
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit() {
	cfg := config.DefaultConfig()
	if err := cfg.EnsureConfigDir(); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating config directory: %v\n", err)
		os.Exit(1)
	}

	store, err := snapshot.Open(cfg.Store.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating snapshot store: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	fmt.Printf("Config directory: %s\n", config.ConfigPath())
	fmt.Printf("Snapshot store:   %s\n", cfg.Store.Path)
}
