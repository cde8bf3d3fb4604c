package irm

import (
	"fmt"
	"math/rand"
	"sort"

	"github.com/MycelicMemory/irm/models"
	"github.com/MycelicMemory/irm/relation"
)

// DomainSnapshot is the persisted state of one crp.Domain: its
// hyperparameter, the group id counter (so future groups keep getting
// fresh ids even across a save/load cycle), every active group's size, and
// the full assignment vector.
type DomainSnapshot struct {
	Alpha       float64       `json:"alpha"`
	NextGID     int64         `json:"next_gid"`
	Groups      map[int64]int `json:"groups"`
	Assignments []int64       `json:"assignments"`
}

// CellSnapshot is the persisted state of one relation.Cell.
type CellSnapshot struct {
	Tuple    []int64            `json:"tuple"`
	Ident    int64              `json:"ident"`
	Count    int                `json:"count"`
	Suffstat models.SuffstatBag `json:"suffstat"`
}

// RelationSnapshot is the persisted state of one relation.Relation: its
// hyperparameter bag and every live cell, including carcasses (Count ==
// 0), since a carcass still matters the next time its group is deleted.
type RelationSnapshot struct {
	Hypers models.HyperBag `json:"hypers"`
	Cells  []CellSnapshot  `json:"cells"`
}

// Snapshot is the complete wire representation of a State, suitable for
// JSON serialization. It carries no copy of the observed data: Deserialize
// must be called against the same dataviews the state was built from, and
// the Definition the state was built from, or the restored assignments and
// cells will silently desync from what the dataview believes the shape to
// be. Deserialization is not strictly validated beyond length checks;
// callers are responsible for pairing a persisted Snapshot with the
// Definition it was serialized against.
type Snapshot struct {
	Domains   []DomainSnapshot   `json:"domains"`
	Relations []RelationSnapshot `json:"relations"`
}

// Serialize captures the full mutable state of s: every domain's
// assignment and group bookkeeping, and every relation's hypers and live
// cells (carcasses included).
func (s *State) Serialize() Snapshot {
	snap := Snapshot{
		Domains:   make([]DomainSnapshot, len(s.domains)),
		Relations: make([]RelationSnapshot, len(s.relations)),
	}
	for d, dom := range s.domains {
		groups := make(map[int64]int)
		for _, g := range dom.Groups() {
			sz, _ := dom.GroupSize(g)
			groups[g] = sz
		}
		for _, g := range dom.EmptyGroups() {
			if _, ok := groups[g]; !ok {
				groups[g] = 0
			}
		}
		snap.Domains[d] = DomainSnapshot{
			Alpha:       dom.Alpha(),
			NextGID:     dom.NextGID(),
			Groups:      groups,
			Assignments: append([]int64(nil), dom.Assignments()...),
		}
	}
	for r, rel := range s.relations {
		cells := rel.Cells()
		out := make([]CellSnapshot, 0, len(cells))
		for _, cell := range cells {
			out = append(out, CellSnapshot{
				Tuple:    append([]int64(nil), cell.Tuple...),
				Ident:    cell.Ident,
				Count:    cell.Count,
				Suffstat: cell.Suffstat.GetSS(),
			})
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Ident < out[j].Ident })
		snap.Relations[r] = RelationSnapshot{
			Hypers: rel.Hypers().GetHP(),
			Cells:  out,
		}
	}
	return snap
}

// Deserialize rebuilds a State from defn and snap: defn's relation hypers
// objects provide the concrete model types (BetaBernoulli,
// NormalInverseChiSq, ...), and snap supplies the values to restore into
// them. rng is consumed only to allocate the fresh Suffstat objects each
// restored cell's values are copied into; conjugate models ignore it.
func Deserialize(defn Definition, snap Snapshot, rng *rand.Rand) (*State, error) {
	s, err := UnsafeInitialize(defn)
	if err != nil {
		return nil, err
	}
	if len(snap.Domains) != len(s.domains) {
		return nil, fmt.Errorf("%w: got %d domains, want %d", ErrSnapshotMismatch, len(snap.Domains), len(s.domains))
	}
	if len(snap.Relations) != len(s.relations) {
		return nil, fmt.Errorf("%w: got %d relations, want %d", ErrSnapshotMismatch, len(snap.Relations), len(s.relations))
	}
	for d, ds := range snap.Domains {
		if err := s.domains[d].Restore(ds.Alpha, ds.NextGID, ds.Groups, ds.Assignments); err != nil {
			return nil, fmt.Errorf("domain %d: %w", d, err)
		}
	}
	for r, rs := range snap.Relations {
		rel := s.relations[r]
		rel.Hypers().SetHP(rs.Hypers)
		for _, cs := range rs.Cells {
			ss := rel.Hypers().CreateGroup(rng)
			ss.SetSS(cs.Suffstat)
			rel.RestoreCell(relation.Tuple(cs.Tuple), cs.Ident, cs.Count, ss)
		}
	}
	return s, nil
}
