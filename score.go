package irm

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/MycelicMemory/irm/crp"
	"github.com/MycelicMemory/irm/dataview"
	"github.com/MycelicMemory/irm/models"
	"github.com/MycelicMemory/irm/relation"
)

// touchedCell records one (relation, tuple, value) triple installed during
// a ScoreValue candidate-group trial, so it can be reverted without a
// second traversal of the dataview.
type touchedCell struct {
	relIdx int
	tuple  relation.Tuple
	value  models.Value
}

// ScoreValue returns, for every active group g of domain d, the
// unnormalized log posterior-predictive weight of assigning eid to g: the
// CRP prior log(pseudocount(g)) plus the log likelihood every relation
// touching eid contributes under g, with log(sum of all pseudocounts)
// subtracted from every weight; the likelihood terms are not normalized, so
// the weights do not in general sum to one. Entity eid must currently be unassigned
// in domain d, and d must have at least one empty group (the candidate for
// a brand-new block); callers typically arrange this by calling
// RemoveValue immediately beforehand and ensuring CreateGroup has been
// called if every group is currently occupied.
//
// Each candidate group is scored by temporarily assigning eid to it,
// walking eid's touched cells (scoring each one against its pre-add
// posterior, then actually installing the value), and then reverting both
// the relation cells and the domain assignment -- the two operations must
// be exact inverses, asserted by checking the reverted group id matches
// the group that was scored.
func (s *State) ScoreValue(d int, eid int64, data []dataview.Dataview, rng *rand.Rand) ([]int64, []float64, error) {
	if err := s.checkDomain(d); err != nil {
		return nil, nil, err
	}
	if err := s.checkData(data); err != nil {
		return nil, nil, err
	}
	dom := s.domains[d]
	if len(dom.EmptyGroups()) == 0 {
		return nil, nil, fmt.Errorf("irm: %w for domain %d", crp.ErrNoEmptyGroup, d)
	}

	groups := dom.Groups()
	gids := make([]int64, 0, len(groups))
	weights := make([]float64, 0, len(groups))
	pseudocounts := make([]float64, 0, len(groups))

	for _, g := range groups {
		pc, err := dom.Pseudocount(g)
		if err != nil {
			return nil, nil, err
		}
		sum := math.Log(pc)

		if err := dom.AddValue(g, eid); err != nil {
			return nil, nil, err
		}

		var touched []touchedCell
		walkErr := s.iterateOverEntityData(d, eid, data, func(r int, coord []int64, value models.Value) error {
			rel := s.relations[r]
			tup, err := s.buildTuple(rel, coord)
			if err != nil {
				return err
			}
			var accScore float64
			if err := rel.AddValueToCell(tup, value, rng, &accScore); err != nil {
				return err
			}
			sum += accScore
			touched = append(touched, touchedCell{relIdx: r, tuple: tup, value: value})
			return nil
		})

		for i := len(touched) - 1; i >= 0; i-- {
			t := touched[i]
			if err := s.relations[t.relIdx].RemoveValueFromCell(t.tuple, t.value, rng); err != nil && walkErr == nil {
				walkErr = err
			}
		}
		removed, remErr := dom.RemoveValue(eid)
		if walkErr != nil {
			return nil, nil, walkErr
		}
		if remErr != nil {
			return nil, nil, remErr
		}
		if removed != g {
			panic(fmt.Sprintf("irm: score_value invariant violated: removed group %d, scored group %d", removed, g))
		}

		gids = append(gids, g)
		weights = append(weights, sum)
		pseudocounts = append(pseudocounts, pc)
	}

	var pcSum float64
	for _, pc := range pseudocounts {
		pcSum += pc
	}
	lgnorm := math.Log(pcSum)
	for i := range weights {
		weights[i] -= lgnorm
	}

	return gids, weights, nil
}
