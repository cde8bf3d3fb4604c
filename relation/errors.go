package relation

import "errors"

var (
	// ErrArityMismatch is returned when a tuple's length does not match
	// the relation's declared arity.
	ErrArityMismatch = errors.New("relation: tuple arity mismatch")

	// ErrCellNotFound is returned when an operation expects an existing
	// cell (e.g. RemoveValue) but the tuple has no suffstat installed.
	ErrCellNotFound = errors.New("relation: no suffstat cell for tuple")

	// ErrCellEmpty is returned when RemoveValue is called on a cell whose
	// count is already zero -- a structural invariant violation.
	ErrCellEmpty = errors.New("relation: cell has zero count")

	// ErrCellNotEmpty is returned when a caller asserts a cell must be
	// empty (e.g. during a delete-group cascade) but it still has count > 0.
	ErrCellNotEmpty = errors.New("relation: cell is not empty")

	// ErrIdentNotFound is returned when an ident does not name a live cell.
	ErrIdentNotFound = errors.New("relation: unknown suffstat ident")
)
