package crp

import "errors"

var (
	// ErrInvalidEntity is returned when an entity id is outside [0, N).
	ErrInvalidEntity = errors.New("crp: invalid entity id")

	// ErrInvalidGroup is returned when a group id is not active.
	ErrInvalidGroup = errors.New("crp: invalid or inactive group id")

	// ErrAlreadyAssigned is returned by AddValue when the entity already
	// belongs to a group.
	ErrAlreadyAssigned = errors.New("crp: entity already assigned")

	// ErrNotAssigned is returned by RemoveValue when the entity has no
	// current group.
	ErrNotAssigned = errors.New("crp: entity not assigned")

	// ErrGroupNotEmpty is returned by DeleteGroup when the group still has
	// members.
	ErrGroupNotEmpty = errors.New("crp: group is not empty")

	// ErrNoEmptyGroup is returned (wrapped) by callers such as irm's
	// State.ScoreValue when no empty group exists to host the "new block"
	// candidate; Pseudocount itself never returns it.
	ErrNoEmptyGroup = errors.New("crp: no empty group available")
)
