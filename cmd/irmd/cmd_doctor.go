package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/MycelicMemory/irm/internal/snapshot"
	"github.com/MycelicMemory/irm/pkg/config"
)

// doctorCmd represents the doctor command
var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Comprehensive system check",
	Long:  `Run a comprehensive system check to verify configuration and the snapshot store are working correctly.`,
	Run: func(cmd *cobra.Command, args []string) {
		runDoctor()
	},
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor() {
	fmt.Println("irmd System Check")
	fmt.Println("==================")
	fmt.Println()

	allOk := true

	fmt.Print("Configuration... ")
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("ERROR: %v\n", err)
		allOk = false
	} else {
		fmt.Println("OK")
	}

	fmt.Print("Snapshot store... ")
	if cfg != nil {
		if _, err := os.Stat(cfg.Store.Path); os.IsNotExist(err) {
			fmt.Println("NOT INITIALIZED (will be created on first use)")
		} else {
			store, err := snapshot.Open(cfg.Store.Path)
			if err != nil {
				fmt.Printf("ERROR: %v\n", err)
				allOk = false
			} else {
				ids, err := store.ListModelIDs()
				if err != nil {
					fmt.Printf("ERROR: %v\n", err)
					allOk = false
				} else {
					fmt.Printf("OK (%d models)\n", len(ids))
				}
				store.Close()
			}
		}
		fmt.Printf("  Path: %s\n", cfg.Store.Path)
	}
	fmt.Println()

	if allOk {
		fmt.Println("All systems operational.")
	} else {
		fmt.Println("Some issues detected. Please review the errors above.")
	}

	fmt.Println()
	fmt.Println("Configuration:")
	if cfg != nil {
		fmt.Printf("  Config Dir: %s\n", config.ConfigPath())
		fmt.Printf("  REST API: %s:%d (enabled: %v)\n", cfg.RestAPI.Host, cfg.RestAPI.Port, cfg.RestAPI.Enabled)
		fmt.Printf("  Sampler: %d default iterations, seed %d\n", cfg.Sampler.DefaultIterations, cfg.Sampler.DefaultSeed)
	}
}
