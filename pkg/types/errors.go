package types

import "errors"

// Sentinel errors shared across the engine. Callers are expected to test
// with errors.Is; every layer wraps these with tenant and operation context
// before returning them.
var (
	// ErrNotFound indicates an unknown tenant, user, node, or center node.
	// It is a caller-visible miss, not an internal fault.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates an unexpected concurrent-mutation anomaly, such
	// as a sequencer invariant violation. The operation is aborted and the
	// tenant is left in its last consistent state.
	ErrConflict = errors.New("conflicting concurrent mutation")

	// ErrInvalidArgument indicates a request rejected before any I/O, such
	// as an unbounded traversal depth or an empty query.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrExtractionFailed indicates the extraction oracle returned
	// malformed or unusable output. The episode is not persisted.
	ErrExtractionFailed = errors.New("extraction failed")
)

// Validation errors for model types.
var (
	ErrEmptyName     = errors.New("name cannot be empty")
	ErrEmptyTenantID = errors.New("tenant id cannot be empty")
	ErrEmptyID       = errors.New("id cannot be empty")
	ErrEmptyContent  = errors.New("content cannot be empty")
)
