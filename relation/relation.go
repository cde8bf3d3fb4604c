// Package relation implements the per-relation sufficient-statistic table:
// a map from block tuple to a refcounted suffstat cell, plus the identity
// table that names each cell with a stable integer across its lifetime.
// Package irm drives these operations from its add/remove/score traversal;
// Relation itself knows nothing about domains or entities, only tuples of
// group ids.
package relation

import (
	"fmt"
	"math/rand"
	"sort"

	"github.com/MycelicMemory/irm/models"
)

// Relation is one relation's runtime table: hypers plus every currently
// live suffstat cell, keyed by block tuple.
type Relation struct {
	domains      []int
	hypers       models.Hypers
	cells        map[string]*Cell
	identToTuple map[int64]Tuple
	nextIdent    int64
}

// New constructs an empty relation over the given ordered domain indices
// (which may repeat, for a self-relation) with the given hypers.
func New(domains []int, hypers models.Hypers) *Relation {
	return &Relation{
		domains:      domains,
		hypers:       hypers,
		cells:        make(map[string]*Cell),
		identToTuple: make(map[int64]Tuple),
	}
}

// Arity returns the number of positions in this relation's domain tuple.
func (r *Relation) Arity() int { return len(r.domains) }

// Domains returns the ordered domain indices this relation is defined over.
func (r *Relation) Domains() []int { return r.domains }

// Hypers returns the component-model hyperparameter object for this
// relation.
func (r *Relation) Hypers() models.Hypers { return r.hypers }

// SetHypers replaces the hyperparameter object wholesale (used when
// deserializing).
func (r *Relation) SetHypers(h models.Hypers) { r.hypers = h }

// Cell returns the live cell for tuple, if any.
func (r *Relation) Cell(t Tuple) (*Cell, bool) {
	c, ok := r.cells[key(t)]
	return c, ok
}

func (r *Relation) checkArity(t Tuple) error {
	if len(t) != len(r.domains) {
		return fmt.Errorf("%w: got %d, want %d", ErrArityMismatch, len(t), len(r.domains))
	}
	return nil
}

// AddValueToCell installs value into the cell named by tuple, creating it
// (and a fresh suffstat) if this is the first reference. If accScore is
// non-nil, *accScore accumulates the cell's predictive score of value under
// the posterior as it stood immediately before the add -- the score-then-add
// ordering predictive scoring depends on.
func (r *Relation) AddValueToCell(t Tuple, v models.Value, rng *rand.Rand, accScore *float64) error {
	if err := r.checkArity(t); err != nil {
		return err
	}
	k := key(t)
	cell, ok := r.cells[k]
	if !ok {
		ss := r.hypers.CreateGroup(rng)
		if accScore != nil {
			*accScore += ss.ScoreValue(r.hypers, v, rng)
		}
		cell = &Cell{Ident: r.nextIdent, Tuple: append(Tuple(nil), t...), Count: 0, Suffstat: ss}
		r.nextIdent++
		r.cells[k] = cell
		r.identToTuple[cell.Ident] = cell.Tuple
	} else if accScore != nil {
		*accScore += cell.Suffstat.ScoreValue(r.hypers, v, rng)
	}
	cell.Suffstat.AddValue(r.hypers, v, rng)
	cell.Count++
	return nil
}

// RemoveValueFromCell removes value from the cell named by tuple. The cell
// must exist with Count > 0. The cell is never deleted here, even if Count
// reaches zero: for non-conjugate component models, a later ScoreValue call
// on the same (now-empty) cell must see the exact suffstat state a real
// remove would leave behind, including any random draws it consumed when
// the value was added. Deleting and recreating the cell would hand a fresh
// model a different sample. Cells are reclaimed only by DeleteGroupCascade.
func (r *Relation) RemoveValueFromCell(t Tuple, v models.Value, rng *rand.Rand) error {
	if err := r.checkArity(t); err != nil {
		return err
	}
	k := key(t)
	cell, ok := r.cells[k]
	if !ok {
		return fmt.Errorf("%w: %v", ErrCellNotFound, t)
	}
	if cell.Count <= 0 {
		return fmt.Errorf("%w: tuple %v", ErrCellEmpty, t)
	}
	cell.Suffstat.RemoveValue(r.hypers, v, rng)
	cell.Count--
	return nil
}

// DeleteGroupCascade erases every cell whose tuple references gid at
// position, asserting first that every such cell has Count == 0 (a
// nonempty cell cannot be dependent on a group about to be deleted, since
// deleting requires the group itself to be empty). Returns ErrCellNotEmpty
// if that assertion fails -- a structural invariant break, not an ordinary
// contract violation.
func (r *Relation) DeleteGroupCascade(position int, gid int64) error {
	if position < 0 || position >= len(r.domains) {
		return fmt.Errorf("%w: position %d", ErrArityMismatch, position)
	}
	var toDelete []string
	for k, cell := range r.cells {
		if cell.Tuple[position] != gid {
			continue
		}
		if cell.Count != 0 {
			return fmt.Errorf("%w: tuple %v still has count %d", ErrCellNotEmpty, cell.Tuple, cell.Count)
		}
		toDelete = append(toDelete, k)
	}
	for _, k := range toDelete {
		cell := r.cells[k]
		delete(r.identToTuple, cell.Ident)
		delete(r.cells, k)
	}
	return nil
}

// ScoreLikelihood returns the sum of ScoreData over every live cell (ident
// == nil) or over the single cell named by ident.
func (r *Relation) ScoreLikelihood(rng *rand.Rand, ident *int64) (float64, error) {
	if ident != nil {
		t, ok := r.identToTuple[*ident]
		if !ok {
			return 0, fmt.Errorf("%w: %d", ErrIdentNotFound, *ident)
		}
		cell := r.cells[key(t)]
		return cell.Suffstat.ScoreData(r.hypers, rng), nil
	}
	var sum float64
	for _, cell := range r.cells {
		sum += cell.Suffstat.ScoreData(r.hypers, rng)
	}
	return sum, nil
}

// Identifiers returns every live cell's ident, in ascending order -- a
// deterministic but otherwise unspecified order; callers must not read
// meaning into it beyond "stable for a fixed set of idents".
func (r *Relation) Identifiers() []int64 {
	out := make([]int64, 0, len(r.identToTuple))
	for id := range r.identToTuple {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Cells returns every live cell, for inspection/serialization. Callers must
// not mutate the returned map.
func (r *Relation) Cells() map[string]*Cell { return r.cells }

// NextIdent returns the ident that would be assigned to the next
// newly-created cell (exposed for serialization round trips).
func (r *Relation) NextIdent() int64 { return r.nextIdent }

// RestoreCell reinstalls a cell with an explicit ident and count, used only
// by package irm's deserialization path. It bypasses AddValueToCell's
// scoring/creation path since the suffstat already reflects the persisted
// state.
func (r *Relation) RestoreCell(t Tuple, ident int64, count int, ss models.Suffstat) {
	tup := append(Tuple(nil), t...)
	cell := &Cell{Ident: ident, Tuple: tup, Count: count, Suffstat: ss}
	r.cells[key(tup)] = cell
	r.identToTuple[ident] = tup
	if ident >= r.nextIdent {
		r.nextIdent = ident + 1
	}
}
