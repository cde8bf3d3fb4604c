// Package irm composes the crp and relation packages into the full
// Infinite Relational Model inference core: a State holding one crp.Domain
// per typed entity set and one relation.Relation per observed relation,
// plus the add/remove/score traversal that keeps every relation touching
// an entity in sync with that entity's current group assignment.
package irm

import (
	"fmt"

	"github.com/MycelicMemory/irm/models"
)

// RelationDef names one relation: the ordered domain indices its tuple
// ranges over (repeats allowed, for a self-relation) and the component
// model hyperparameter object it is scored under.
type RelationDef struct {
	Domains []int
	Hypers  models.Hypers
}

// Definition is the static shape of a model: how many entities each domain
// has, and which relations exist over them. It carries no assignment or
// observation state -- that comes from Initialize/Deserialize.
type Definition struct {
	// Domains holds the entity count of each domain, in domain-index order.
	Domains []int
	// Relations holds one RelationDef per relation, in relation-index
	// order.
	Relations []RelationDef
}

func (defn Definition) validate() error {
	if len(defn.Domains) == 0 {
		return ErrNoDomains
	}
	for d, n := range defn.Domains {
		if n <= 0 {
			return fmt.Errorf("%w: domain %d", ErrEmptyDomain, d)
		}
	}
	for r, rd := range defn.Relations {
		if len(rd.Domains) == 0 {
			return fmt.Errorf("%w: relation %d has no domains", ErrInvalidDomain, r)
		}
		for _, d := range rd.Domains {
			if d < 0 || d >= len(defn.Domains) {
				return fmt.Errorf("%w: relation %d references domain %d", ErrInvalidDomain, r, d)
			}
		}
		if rd.Hypers == nil {
			return fmt.Errorf("%w: relation %d has nil hypers", ErrInvalidRelation, r)
		}
	}
	return nil
}

// participation records that relation index Relation references the owning
// domain at tuple position Position.
type participation struct {
	Relation int
	Position int
}
