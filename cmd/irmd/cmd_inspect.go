package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/MycelicMemory/irm/internal/snapshot"
	"github.com/MycelicMemory/irm/pkg/config"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [model-id]",
	Short: "Report the shape of one or every model in the snapshot store",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) == 1 {
			runInspectOne(args[0])
		} else {
			runInspectAll()
		}
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}

func openConfiguredStore() *snapshot.Store {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	store, err := snapshot.Open(cfg.Store.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening snapshot store: %v\n", err)
		os.Exit(1)
	}
	return store
}

func runInspectAll() {
	store := openConfiguredStore()
	defer store.Close()

	ids, err := store.ListModelIDs()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error listing models: %v\n", err)
		os.Exit(1)
	}
	if len(ids) == 0 {
		fmt.Println("No models in the snapshot store.")
		return
	}
	for _, id := range ids {
		fmt.Println(id)
	}
}

func runInspectOne(modelID string) {
	store := openConfiguredStore()
	defer store.Close()

	defn, snap, err := store.Load(modelID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading model %q: %v\n", modelID, err)
		os.Exit(1)
	}

	fmt.Printf("Model: %s\n", modelID)
	fmt.Printf("Domains: %v\n", defn.DomainSizes)
	fmt.Printf("Relations: %v\n", defn.RelationDomains)
	for i, d := range snap.Domains {
		fmt.Printf("  domain %d: alpha=%.3f groups=%d entities=%d\n", i, d.Alpha, len(d.Groups), len(d.Assignments))
	}
}
