// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across storage/service layers.
var (
	// ErrNotFound indicates the requested key or record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrRateLimited indicates an action was rejected by a sliding-window limiter.
	ErrRateLimited = errors.New("rate limited")

	// ErrValidation indicates input was rejected by a validation schema.
	ErrValidation = errors.New("validation failed")

	// ErrNoCurrentUser indicates an operation that needs a signed-in user was called anonymously.
	ErrNoCurrentUser = errors.New("no current user")

	// ErrBusy indicates a login/register call is already in flight.
	ErrBusy = errors.New("operation already in progress")

	// ErrEncryptionUnavailable indicates the cipher could not produce a ciphertext.
	ErrEncryptionUnavailable = errors.New("encryption unavailable")

	// ErrUnexpected indicates a fault in the simulated backend round trip.
	ErrUnexpected = errors.New("unexpected failure")
)
