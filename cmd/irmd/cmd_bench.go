package main

import (
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/MycelicMemory/irm"
	"github.com/MycelicMemory/irm/internal/sampler"
)

var (
	benchIterations int
	benchSeed       int64
)

var benchCmd = &cobra.Command{
	Use:   "bench <model-spec.json>",
	Short: "Time raw Gibbs sweep throughput over a model spec, without persisting results",
	Long: `bench loads a model spec exactly like run, then times the requested
number of sweeps directly against an internal/sampler.Runner, reporting
entities resampled per second. Nothing is written to the snapshot store.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runBench(args[0])
	},
}

func init() {
	benchCmd.Flags().IntVar(&benchIterations, "iterations", 10, "number of full Gibbs sweeps to time")
	benchCmd.Flags().Int64Var(&benchSeed, "seed", 1, "PRNG seed")
	rootCmd.AddCommand(benchCmd)
}

func runBench(specPath string) {
	spec, err := loadModelSpec(specPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading model spec: %v\n", err)
		os.Exit(1)
	}

	rng := rand.New(rand.NewSource(benchSeed))
	state, defn, data, err := spec.build(rng)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error building model: %v\n", err)
		os.Exit(1)
	}

	bound := make([]*irm.BoundState, len(defn.Domains))
	totalEntities := 0
	for d := range defn.Domains {
		b, err := irm.NewBoundState(state, d, data)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error binding domain %d: %v\n", d, err)
			os.Exit(1)
		}
		bound[d] = b
		totalEntities += b.NEntities()
	}

	runner := sampler.NewRunner(bound, benchSeed)

	start := time.Now()
	for i := 0; i < benchIterations; i++ {
		if err := runner.Sweep(); err != nil {
			fmt.Fprintf(os.Stderr, "Sweep %d failed: %v\n", i, err)
			os.Exit(1)
		}
	}
	elapsed := time.Since(start)

	resamples := float64(benchIterations * totalEntities)
	fmt.Printf("%d sweeps over %d entities in %s\n", benchIterations, totalEntities, elapsed)
	fmt.Printf("%.1f resamples/sec\n", resamples/elapsed.Seconds())

	logJoint, err := runner.LogJoint()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error scoring final log joint: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("final log joint: %.4f\n", logJoint)
}
