package domain

import "errors"

// Error kinds surfaced by the store and the retrieval engine.
// Callers classify failures with errors.Is.
var (
	ErrValidation = errors.New("validation error")
	ErrStorage    = errors.New("storage error")
	ErrNotFound   = errors.New("not found")
	ErrEmbedding  = errors.New("embedding error")
	ErrGeneration = errors.New("generation error")

	// ErrIndexMismatch is returned when an existing index was built for a
	// different embedding model or dimension.
	ErrIndexMismatch = errors.New("index built with incompatible embedding settings")

	// ErrMalformedRecord marks a stored record that cannot be decoded.
	// It never leaves the engine; such records are skipped.
	ErrMalformedRecord = errors.New("malformed record")
)
