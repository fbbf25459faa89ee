package types

import "errors"

// Domain errors shared across the pipeline.
var (
	// ErrQuestionTooShort rejects questions before any retrieval work runs.
	ErrQuestionTooShort = errors.New("question must have at least 3 characters")

	// ErrIndexUnavailable signals a missing or corrupt index directory.
	// Callers fall back to an empty index rather than failing.
	ErrIndexUnavailable = errors.New("vector index unavailable")

	// ErrDimensionMismatch signals a vector whose length does not match the
	// index dimension.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrMissingAPIKey signals an unconfigured generation credential. It is
	// fatal: the generator surfaces it immediately without retrying.
	ErrMissingAPIKey = errors.New("generation API key not configured")
)
