package irm

import (
	"fmt"
	"math/rand"

	"github.com/MycelicMemory/irm/crp"
	"github.com/MycelicMemory/irm/dataview"
	"github.com/MycelicMemory/irm/models"
	"github.com/MycelicMemory/irm/relation"
)

// State is the top-level object composing every domain and relation of one
// model. It owns a precomputed index, domainParticipation, mapping each
// domain to the (relation, position) pairs that reference it -- the
// traversal every add/remove/score operation walks.
type State struct {
	defn                Definition
	domains             []*crp.Domain
	relations           []*relation.Relation
	domainParticipation [][]participation
}

// UnsafeInitialize builds a State from defn with every domain unassigned,
// every group absent, and every relation empty. It performs no random
// initialization and applies no hyperparameters beyond whatever defaults
// the hypers objects in defn already carry; callers almost always want
// Initialize instead. It is exposed directly for deserialization, which
// needs a correctly-shaped, empty State to restore values into.
func UnsafeInitialize(defn Definition) (*State, error) {
	if err := defn.validate(); err != nil {
		return nil, err
	}
	domains := make([]*crp.Domain, len(defn.Domains))
	for d, n := range defn.Domains {
		domains[d] = crp.New(n, 0)
	}
	relations := make([]*relation.Relation, len(defn.Relations))
	for r, rd := range defn.Relations {
		relations[r] = relation.New(rd.Domains, rd.Hypers)
	}
	participationOf := make([][]participation, len(domains))
	for r, rd := range defn.Relations {
		for pos, d := range rd.Domains {
			participationOf[d] = append(participationOf[d], participation{Relation: r, Position: pos})
		}
	}
	return &State{
		defn:                defn,
		domains:             domains,
		relations:           relations,
		domainParticipation: participationOf,
	}, nil
}

// Initialize builds a State from defn, applies domainAlphas (one CRP
// concentration per domain) and relationHPs (one hyperparameter bag per
// relation, nil entries leaving the relation's constructed hypers
// untouched), assigns every domain's entities per initialAssignments (a nil
// or empty entry for a domain means: assign uniformly at random across
// min(100, N)+1 fresh groups), and finally absorbs every observed cell of
// data into the relation tables those assignments imply.
//
// data must have one entry per relation, in relation-index order, and each
// dataview's Shape must agree with the entity counts of the domains its
// relation is defined over.
func Initialize(
	defn Definition,
	domainAlphas []float64,
	relationHPs []models.HyperBag,
	initialAssignments [][]int64,
	data []dataview.Dataview,
	rng *rand.Rand,
) (*State, error) {
	s, err := UnsafeInitialize(defn)
	if err != nil {
		return nil, err
	}
	if err := s.checkData(data); err != nil {
		return nil, err
	}
	for d, alpha := range domainAlphas {
		if d >= len(s.domains) {
			break
		}
		s.domains[d].SetAlpha(alpha)
	}
	for r, hp := range relationHPs {
		if hp == nil || r >= len(s.relations) {
			continue
		}
		s.relations[r].Hypers().SetHP(hp)
	}

	for d, dom := range s.domains {
		var assignment []int64
		if d < len(initialAssignments) {
			assignment = initialAssignments[d]
		}
		if len(assignment) == 0 {
			assignment = randomAssignment(dom.NEntities(), rng)
		} else if len(assignment) != dom.NEntities() {
			return nil, fmt.Errorf("%w: domain %d", ErrAssignmentLengthMismatch, d)
		}
		ngroups := int64(0)
		for _, g := range assignment {
			if g+1 > ngroups {
				ngroups = g + 1
			}
		}
		for i := int64(0); i < ngroups; i++ {
			dom.CreateGroup()
		}
		for eid, gid := range assignment {
			if err := s.AssignBootstrap(d, gid, int64(eid)); err != nil {
				return nil, err
			}
		}
	}

	for r, rel := range s.relations {
		outer := rel.Domains()[0]
		n := s.domains[outer].NEntities()
		for eid := 0; eid < n; eid++ {
			it := data[r].Slice(0, int64(eid))
			for {
				coord, value, ok := it.Next()
				if !ok {
					break
				}
				tup, err := s.buildTuple(rel, coord)
				if err != nil {
					return nil, err
				}
				if err := rel.AddValueToCell(tup, value, rng, nil); err != nil {
					return nil, err
				}
			}
		}
	}

	return s, nil
}

// randomAssignment scatters n entities uniformly across min(100, n)+1 fresh
// groups, group ids 0..k-1 in creation order.
func randomAssignment(n int, rng *rand.Rand) []int64 {
	k := n
	if k > 100 {
		k = 100
	}
	k++
	out := make([]int64, n)
	for i := range out {
		out[i] = int64(rng.Intn(k))
	}
	return out
}

func (s *State) checkDomain(d int) error {
	if d < 0 || d >= len(s.domains) {
		return ErrInvalidDomain
	}
	return nil
}

func (s *State) checkRelation(r int) error {
	if r < 0 || r >= len(s.relations) {
		return ErrInvalidRelation
	}
	return nil
}

func (s *State) checkData(data []dataview.Dataview) error {
	if len(data) != len(s.relations) {
		return ErrDataLengthMismatch
	}
	for r, rel := range s.relations {
		shape := data[r].Shape()
		if len(shape) != rel.Arity() {
			return fmt.Errorf("%w: relation %d", ErrShapeMismatch, r)
		}
		for pos, d := range rel.Domains() {
			if shape[pos] != s.domains[d].NEntities() {
				return fmt.Errorf("%w: relation %d position %d", ErrShapeMismatch, r, pos)
			}
		}
	}
	return nil
}

// NDomains returns the number of domains in this state.
func (s *State) NDomains() int { return len(s.domains) }

// NRelations returns the number of relations in this state.
func (s *State) NRelations() int { return len(s.relations) }

// Domain returns the crp.Domain at index d.
func (s *State) Domain(d int) (*crp.Domain, error) {
	if err := s.checkDomain(d); err != nil {
		return nil, err
	}
	return s.domains[d], nil
}

// Relation returns the relation.Relation at index r.
func (s *State) Relation(r int) (*relation.Relation, error) {
	if err := s.checkRelation(r); err != nil {
		return nil, err
	}
	return s.relations[r], nil
}

// buildTuple resolves a relation's observed coordinate tuple into a block
// tuple of group ids, by looking up each position's domain's current
// assignment. Every coordinate must already be assigned.
func (s *State) buildTuple(rel *relation.Relation, coord []int64) (relation.Tuple, error) {
	tup := make(relation.Tuple, len(coord))
	for i, d := range rel.Domains() {
		a, err := s.domains[d].Assignment(coord[i])
		if err != nil {
			return nil, err
		}
		if a < 0 {
			return nil, fmt.Errorf("%w: domain %d entity %d", ErrUnassignedCoordinate, d, coord[i])
		}
		tup[i] = a
	}
	return tup, nil
}

// iterateOverEntityData walks every observed cell of data touching entity
// eid of domain d, exactly once each, even when d appears at more than one
// position of a self-relation: a cell is visited only when traversed from
// the lowest position at which eid's domain occurs and eid's coordinate
// matches at that position.
func (s *State) iterateOverEntityData(d int, eid int64, data []dataview.Dataview, cb func(r int, coord []int64, value models.Value) error) error {
	for _, p := range s.domainParticipation[d] {
		rel := s.relations[p.Relation]
		var ignore []int
		for i := 0; i < p.Position; i++ {
			if rel.Domains()[i] == d {
				ignore = append(ignore, i)
			}
		}
		it := data[p.Relation].Slice(p.Position, eid)
		for {
			coord, value, ok := it.Next()
			if !ok {
				break
			}
			skip := false
			for _, idx := range ignore {
				if coord[idx] == eid {
					skip = true
					break
				}
			}
			if skip {
				continue
			}
			if err := cb(p.Relation, coord, value); err != nil {
				return err
			}
		}
	}
	return nil
}

// CreateGroup allocates a fresh, empty group in domain d.
func (s *State) CreateGroup(d int) (int64, error) {
	if err := s.checkDomain(d); err != nil {
		return 0, err
	}
	return s.domains[d].CreateGroup(), nil
}

// DeleteGroup removes an empty group gid from domain d, first cascading
// the deletion through every relation that references d: every cell whose
// tuple names gid at d's position must have Count == 0 (asserted by
// relation.DeleteGroupCascade) and is erased.
func (s *State) DeleteGroup(d int, gid int64) error {
	if err := s.checkDomain(d); err != nil {
		return err
	}
	for _, p := range s.domainParticipation[d] {
		if err := s.relations[p.Relation].DeleteGroupCascade(p.Position, gid); err != nil {
			return err
		}
	}
	return s.domains[d].DeleteGroup(gid)
}

// AssignBootstrap assigns eid to gid in domain d without touching any
// relation's suffstats, mirroring the original source's assign_value
// bootstrapping primitive (model.hpp's "assigns a value to a group w/o
// associating it with any particular piece of data; should only be
// invoked during bootstrapping phases"). Initialize calls this to lay down
// an initial or restored assignment before any data is absorbed; it is
// also exported for loaders that want to replay a serialized assignment
// without re-deriving suffstats from scratch.
func (s *State) AssignBootstrap(d int, gid, eid int64) error {
	if err := s.checkDomain(d); err != nil {
		return err
	}
	return s.domains[d].AddValue(gid, eid)
}

// UnassignBootstrap withdraws eid from its current group in domain d
// without touching any relation's suffstats, mirroring the original
// source's unassign_value bootstrapping primitive. Returns the group eid
// had belonged to.
func (s *State) UnassignBootstrap(d int, eid int64) (int64, error) {
	if err := s.checkDomain(d); err != nil {
		return 0, err
	}
	return s.domains[d].RemoveValue(eid)
}

// AddValue assigns eid to gid in domain d, then absorbs every observed
// cell touching eid into the relation tables the new assignment implies.
func (s *State) AddValue(d int, gid, eid int64, data []dataview.Dataview, rng *rand.Rand) error {
	if err := s.checkDomain(d); err != nil {
		return err
	}
	if err := s.checkData(data); err != nil {
		return err
	}
	if err := s.domains[d].AddValue(gid, eid); err != nil {
		return err
	}
	return s.iterateOverEntityData(d, eid, data, func(r int, coord []int64, value models.Value) error {
		rel := s.relations[r]
		tup, err := s.buildTuple(rel, coord)
		if err != nil {
			return err
		}
		return rel.AddValueToCell(tup, value, rng, nil)
	})
}

// RemoveValue withdraws eid's observed cells from every relation touching
// domain d, then unassigns eid in domain d, returning the group it had
// belonged to.
func (s *State) RemoveValue(d int, eid int64, data []dataview.Dataview, rng *rand.Rand) (int64, error) {
	if err := s.checkDomain(d); err != nil {
		return 0, err
	}
	if err := s.checkData(data); err != nil {
		return 0, err
	}
	err := s.iterateOverEntityData(d, eid, data, func(r int, coord []int64, value models.Value) error {
		rel := s.relations[r]
		tup, err := s.buildTuple(rel, coord)
		if err != nil {
			return err
		}
		return rel.RemoveValueFromCell(tup, value, rng)
	})
	if err != nil {
		return 0, err
	}
	return s.domains[d].RemoveValue(eid)
}

// ScoreLikelihood returns the log marginal likelihood of relation r's
// entire observed data (ident nil) or of just the single cell named by
// ident.
func (s *State) ScoreLikelihood(r int, ident *int64, rng *rand.Rand) (float64, error) {
	if err := s.checkRelation(r); err != nil {
		return 0, err
	}
	return s.relations[r].ScoreLikelihood(rng, ident)
}
