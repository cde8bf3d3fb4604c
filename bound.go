package irm

import (
	"math/rand"

	"github.com/MycelicMemory/irm/dataview"
)

// BoundState is a single-domain view of a State: every operation implicitly
// targets one fixed domain, matching the shape a Gibbs sampler's inner loop
// wants (resample every entity of domain d in turn) without repeating d at
// every call site. It holds no state of its own beyond the binding -- every
// method delegates straight through to the underlying State.
type BoundState struct {
	s    *State
	d    int
	data []dataview.Dataview
}

// NewBoundState binds state to domain d, for use against data (one entry
// per relation, matching state's relation count).
func NewBoundState(s *State, d int, data []dataview.Dataview) (*BoundState, error) {
	if err := s.checkDomain(d); err != nil {
		return nil, err
	}
	if err := s.checkData(data); err != nil {
		return nil, err
	}
	return &BoundState{s: s, d: d, data: data}, nil
}

// NEntities returns the bound domain's entity count.
func (b *BoundState) NEntities() int { return b.s.domains[b.d].NEntities() }

// NGroups returns the bound domain's active group count.
func (b *BoundState) NGroups() int { return b.s.domains[b.d].NGroups() }

// EmptyGroups returns the bound domain's currently empty group ids.
func (b *BoundState) EmptyGroups() []int64 { return b.s.domains[b.d].EmptyGroups() }

// Assignments returns the bound domain's current assignment vector.
func (b *BoundState) Assignments() []int64 { return b.s.domains[b.d].Assignments() }

// CreateGroup allocates a fresh, empty group in the bound domain.
func (b *BoundState) CreateGroup() int64 {
	gid, _ := b.s.CreateGroup(b.d)
	return gid
}

// DeleteGroup removes an empty group from the bound domain, cascading
// through every relation the domain participates in.
func (b *BoundState) DeleteGroup(gid int64) error {
	return b.s.DeleteGroup(b.d, gid)
}

// AddValue assigns eid to gid in the bound domain and absorbs its touched
// cells.
func (b *BoundState) AddValue(gid, eid int64, rng *rand.Rand) error {
	return b.s.AddValue(b.d, gid, eid, b.data, rng)
}

// RemoveValue withdraws eid from the bound domain and its touched cells,
// returning the group it had belonged to.
func (b *BoundState) RemoveValue(eid int64, rng *rand.Rand) (int64, error) {
	return b.s.RemoveValue(b.d, eid, b.data, rng)
}

// ScoreValue returns the posterior-predictive weight of eid against every
// active group of the bound domain.
func (b *BoundState) ScoreValue(eid int64, rng *rand.Rand) ([]int64, []float64, error) {
	return b.s.ScoreValue(b.d, eid, b.data, rng)
}

// ScoreLikelihood returns the summed log marginal likelihood of every
// relation the bound domain participates in.
func (b *BoundState) ScoreLikelihood(rng *rand.Rand) (float64, error) {
	var sum float64
	seen := make(map[int]bool)
	for _, p := range b.s.domainParticipation[b.d] {
		if seen[p.Relation] {
			continue
		}
		seen[p.Relation] = true
		ll, err := b.s.ScoreLikelihood(p.Relation, nil, rng)
		if err != nil {
			return 0, err
		}
		sum += ll
	}
	return sum, nil
}
