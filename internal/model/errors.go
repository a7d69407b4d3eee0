package model

import "errors"

// Sentinel errors shared across tier adapters and the orchestrator, per
// the error taxonomy of spec §7.
var (
	// ErrStoreUnavailable is returned when a transient dependency error's
	// retry budget is exhausted.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrRetrieverUnavailable is returned when every arm of the hybrid
	// retriever has failed.
	ErrRetrieverUnavailable = errors.New("retriever unavailable")

	// ErrCancelled is returned when a caller-imposed deadline or
	// cancellation aborted an in-flight operation.
	ErrCancelled = errors.New("operation cancelled")

	// ErrIntegrity signals a fatal integrity error (e.g. a unique
	// identifier collision) requiring operator attention.
	ErrIntegrity = errors.New("integrity error")

	// ErrValidation signals bad input that is not retried.
	ErrValidation = errors.New("validation error")

	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("not found")
)
