package snapshot

import "errors"

var (
	// ErrModelNotFound is returned by Load when no snapshot has been stored
	// under the given model id.
	ErrModelNotFound = errors.New("snapshot: model not found")
)
