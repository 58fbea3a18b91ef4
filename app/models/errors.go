package models

import "errors"

var (
	// ErrProviderUnavailable is returned once the retry budget for transient
	// provider failures (transport errors, 5xx, 429) is exhausted.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrInvalidRequest is returned for provider-reported request errors.
	// These are never retried.
	ErrInvalidRequest = errors.New("invalid provider request")
)
