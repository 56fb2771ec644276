package domain

import "errors"

// Error categories shared across the gateway. The API layer maps each of
// them to exactly one HTTP status code.
var (
	// ErrInvalidRequest is returned for client-caused failures such as an
	// empty prompt. API layer maps it to 400.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrUpstreamUnavailable is returned when the broker cannot accept work
	// at submission time. API layer maps it to 500.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrNotFound is returned when an artifact does not exist (yet).
	// API layer maps it to 404.
	ErrNotFound = errors.New("not found")

	// ErrEmptyPrompt is returned when a prompt is blank after trimming.
	ErrEmptyPrompt = errors.New("prompt cannot be empty")
)
