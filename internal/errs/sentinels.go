// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across repo/service layers.
var (
	// ErrNotFound indicates the requested credential record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidCredentials indicates an unknown identity or a wrong verifier.
	// Callers must not be able to tell the two apart.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrDuplicateIdentity indicates a record already exists for the identity token.
	ErrDuplicateIdentity = errors.New("duplicate identity")

	// ErrUnauthorized indicates a missing, expired, or mis-bound session.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrAuthenticationFailed indicates an envelope integrity failure during
	// client-side decryption (wrong key or tampered iv/ciphertext).
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrRateLimited indicates temporary login lock due to rate limiting.
	ErrRateLimited = errors.New("rate limited")

	// ErrStoreUnavailable indicates a transient persistence failure.
	ErrStoreUnavailable = errors.New("store unavailable")
)
