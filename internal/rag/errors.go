package rag

import "errors"

// Sentinel errors shared across the retrieval components. Callers use
// errors.Is to distinguish configuration and data-integrity failures
// (fatal, fixable by rebuild or reconfiguration) from transient ones.
var (
	// ErrIndexNotFound is returned by index loading when the on-disk
	// files are missing at the given path.
	ErrIndexNotFound = errors.New("rag: index not found")

	// ErrIndexCorrupt is returned by index loading when the persisted
	// files are present but unreadable or mutually inconsistent. An
	// index rebuild is required.
	ErrIndexCorrupt = errors.New("rag: index corrupt")

	// ErrDimensionMismatch is returned when a vector's length does not
	// match the index dimension; the embedding model used for queries
	// must be the one used at index-build time.
	ErrDimensionMismatch = errors.New("rag: embedding dimension mismatch")
)
