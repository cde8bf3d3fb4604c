// Package dataview exposes the sliced, lazily-iterated observation source
// that a relation reads from. The core never holds a full copy of a
// relation's data in memory; it pulls observed cells through a Dataview by
// position, one entity at a time.
package dataview

import "github.com/MycelicMemory/irm/models"

// Dataview is the abstract observed-data source for one relation. Masked
// cells must never be yielded by Slice.
type Dataview interface {
	// Dims returns the arity of the relation this dataview backs.
	Dims() int
	// Shape returns the size of each dimension, one entry per position.
	Shape() []int
	// Slice lazily enumerates every observed, unmasked cell whose
	// coordinate at position equals coordAtPosition.
	Slice(position int, coordAtPosition int64) Iterator
}

// Iterator enumerates (coordinate-tuple, value) pairs of a slice. Call Next
// until it returns ok == false.
type Iterator interface {
	Next() (coord []int64, value models.Value, ok bool)
}
