package relation

import "github.com/MycelicMemory/irm/models"

// Cell is a relation-local sufficient-statistic cell, keyed (in the owning
// Relation) by an a-ary block tuple. Count is a reference count: the
// number of observed cells of the underlying dataview whose coordinate
// tuple currently projects to Tuple. A cell with Count == 0 is a
// "carcass" -- deliberately retained past count-zero; see RemoveValue on
// Relation for why.
type Cell struct {
	Ident    int64
	Tuple    Tuple
	Count    int
	Suffstat models.Suffstat
}
