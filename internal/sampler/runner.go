package sampler

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/MycelicMemory/irm"
)

// Runner performs Gibbs sweeps over a set of bound domains. It holds no
// model state of its own; every sweep mutates the *irm.BoundState instances
// it is given directly.
type Runner struct {
	domains []*irm.BoundState
	rng     *rand.Rand
}

// NewRunner builds a Runner over domains, resampled in the given order on
// every sweep.
func NewRunner(domains []*irm.BoundState, seed int64) *Runner {
	return &Runner{domains: domains, rng: rand.New(rand.NewSource(seed))}
}

// Sweep performs one full Gibbs sweep: every entity of every bound domain is
// removed, rescored against the domain's current partition (with a spare
// empty group available for a brand-new block), and reassigned by sampling
// from the resulting categorical distribution.
func (r *Runner) Sweep() error {
	for _, b := range r.domains {
		n := b.NEntities()
		for eid := int64(0); eid < int64(n); eid++ {
			if err := r.resample(b, eid); err != nil {
				return fmt.Errorf("sampler: entity %d: %w", eid, err)
			}
		}
	}
	return nil
}

// resample removes eid, ensures an empty group is available to score a
// brand-new block against, scores every active group, and reassigns eid by
// sampling from the resulting weights.
func (r *Runner) resample(b *irm.BoundState, eid int64) error {
	if _, err := b.RemoveValue(eid, r.rng); err != nil {
		return err
	}
	if len(b.EmptyGroups()) == 0 {
		b.CreateGroup()
	}

	gids, logWeights, err := b.ScoreValue(eid, r.rng)
	if err != nil {
		return err
	}

	gid := sampleCategorical(gids, logWeights, r.rng)
	if err := b.AddValue(gid, eid, r.rng); err != nil {
		return err
	}

	return pruneEmptyGroups(b)
}

// pruneEmptyGroups deletes every empty group beyond the one spare a sweep
// keeps around to score new blocks against, so group counts do not grow
// without bound across iterations.
func pruneEmptyGroups(b *irm.BoundState) error {
	empty := b.EmptyGroups()
	for i := 1; i < len(empty); i++ {
		if err := b.DeleteGroup(empty[i]); err != nil {
			return err
		}
	}
	return nil
}

// sampleCategorical draws an index from a log-weight vector using the
// Gumbel-max trick, avoiding an intermediate normalize-and-sum pass over
// possibly very negative log weights.
func sampleCategorical(gids []int64, logWeights []float64, rng *rand.Rand) int64 {
	best := 0
	bestScore := math.Inf(-1)
	for i, lw := range logWeights {
		g := -math.Log(-math.Log(rng.Float64()))
		score := lw + g
		if score > bestScore {
			bestScore = score
			best = i
		}
	}
	return gids[best]
}

// LogJoint returns the summed log marginal likelihood across every bound
// domain's relations, for tracking sweep-to-sweep convergence.
func (r *Runner) LogJoint() (float64, error) {
	var sum float64
	for _, b := range r.domains {
		ll, err := b.ScoreLikelihood(r.rng)
		if err != nil {
			return 0, err
		}
		sum += ll
	}
	return sum, nil
}

// GroupCounts returns NGroups() for each bound domain, in order.
func (r *Runner) GroupCounts() []int {
	counts := make([]int, len(r.domains))
	for i, b := range r.domains {
		counts[i] = b.NGroups()
	}
	return counts
}
