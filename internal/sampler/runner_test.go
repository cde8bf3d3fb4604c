package sampler

import (
	"math"
	"math/rand"
	"testing"

	"github.com/MycelicMemory/irm"
	"github.com/MycelicMemory/irm/dataview"
	"github.com/MycelicMemory/irm/models"
)

func oneDomainBinaryDefinition(n int) irm.Definition {
	return irm.Definition{
		Domains: []int{n},
		Relations: []irm.RelationDef{
			{Domains: []int{0, 0}, Hypers: models.NewBetaBernoulliHypers(1, 1)},
		},
	}
}

func denseSquareBool(n int, fill func(i, j int) bool) *dataview.DenseBool {
	values := make([]bool, n*n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			values[i*n+j] = fill(i, j)
		}
	}
	return dataview.NewDenseBool([]int{n, n}, values, nil)
}

func newBoundFixture(t *testing.T, seed int64) (*irm.State, []dataview.Dataview, *irm.BoundState) {
	t.Helper()
	n := 6
	defn := oneDomainBinaryDefinition(n)
	data := []dataview.Dataview{denseSquareBool(n, func(i, j int) bool { return (i+j)%2 == 0 })}
	assignment := []int64{0, 0, 0, 1, 1, 1}
	rng := rand.New(rand.NewSource(seed))

	s, err := irm.Initialize(defn, []float64{1.0}, nil, [][]int64{assignment}, data, rng)
	if err != nil {
		t.Fatal(err)
	}
	bound, err := irm.NewBoundState(s, 0, data)
	if err != nil {
		t.Fatal(err)
	}
	return s, data, bound
}

func TestSweepPreservesEntityCountAndProducesFiniteLogJoint(t *testing.T) {
	_, _, bound := newBoundFixture(t, 10)
	r := NewRunner([]*irm.BoundState{bound}, 11)

	n := bound.NEntities()
	if err := r.Sweep(); err != nil {
		t.Fatal(err)
	}
	if bound.NEntities() != n {
		t.Fatalf("NEntities() changed across a sweep: got %d, want %d", bound.NEntities(), n)
	}

	ll, err := r.LogJoint()
	if err != nil {
		t.Fatal(err)
	}
	if math.IsNaN(ll) || math.IsInf(ll, 0) {
		t.Fatalf("log joint not finite: %v", ll)
	}
}

func TestSweepLeavesAtMostOneEmptyGroup(t *testing.T) {
	_, _, bound := newBoundFixture(t, 12)
	r := NewRunner([]*irm.BoundState{bound}, 13)

	for i := 0; i < 5; i++ {
		if err := r.Sweep(); err != nil {
			t.Fatal(err)
		}
		if len(bound.EmptyGroups()) > 1 {
			t.Fatalf("sweep %d left %d empty groups, want at most 1", i, len(bound.EmptyGroups()))
		}
	}
}

func TestSampleCategoricalFavorsDominantWeight(t *testing.T) {
	gids := []int64{0, 1, 2}
	weights := []float64{-1000, 0, -1000}
	rng := rand.New(rand.NewSource(1))

	counts := map[int64]int{}
	for i := 0; i < 200; i++ {
		counts[sampleCategorical(gids, weights, rng)]++
	}
	if counts[1] != 200 {
		t.Fatalf("expected the dominant weight to win every draw, got counts %v", counts)
	}
}
