package irm

import "errors"

var (
	// ErrNoDomains is returned by UnsafeInitialize when a Definition names no
	// domains.
	ErrNoDomains = errors.New("irm: definition has no domains")

	// ErrEmptyDomain is returned when a Definition names a domain with zero
	// entities.
	ErrEmptyDomain = errors.New("irm: domain has zero entities")

	// ErrInvalidDomain is returned when a relation or call site references a
	// domain index outside [0, len(domains)).
	ErrInvalidDomain = errors.New("irm: invalid domain index")

	// ErrInvalidRelation is returned when a call site references a relation
	// index outside [0, len(relations)).
	ErrInvalidRelation = errors.New("irm: invalid relation index")

	// ErrDataLengthMismatch is returned when a data slice's length does not
	// match the number of relations in the state.
	ErrDataLengthMismatch = errors.New("irm: data slice length does not match relation count")

	// ErrShapeMismatch is returned when a dataview's shape does not agree
	// with the entity counts of the domains a relation is defined over.
	ErrShapeMismatch = errors.New("irm: dataview shape does not match domain sizes")

	// ErrUnassignedCoordinate is returned when entity-data traversal reaches
	// a coordinate whose domain has not yet assigned that entity to a
	// group.
	ErrUnassignedCoordinate = errors.New("irm: coordinate entity is unassigned")

	// ErrAssignmentLengthMismatch is returned by Initialize when a supplied
	// initial assignment vector's length does not match its domain's entity
	// count.
	ErrAssignmentLengthMismatch = errors.New("irm: initial assignment length does not match domain size")

	// ErrSnapshotMismatch is returned by Deserialize when a snapshot's shape
	// does not match the Definition it is being restored against.
	ErrSnapshotMismatch = errors.New("irm: snapshot does not match definition")
)
