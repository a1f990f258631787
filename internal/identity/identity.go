// Package identity defines the authenticated-principal contract. The
// engine consumes principals; it never manages login or logout.
package identity

import (
	"context"
	"errors"
)

// ErrSessionInvalid indicates the principal's session is no longer valid.
// Entitlement fetches abort on this error without touching the cache.
var ErrSessionInvalid = errors.New("identity: session invalid")

// Principal is the authenticated user handle.
type Principal struct {
	ID    string
	Email string
}

// Provider yields the current principal and a session-validity signal.
type Provider interface {
	// Current returns the signed-in principal.
	Current(ctx context.Context) (Principal, error)

	// CheckSession verifies the principal's session is still valid.
	// Returns ErrSessionInvalid when it is not. Callers give this a
	// short budget and fail fast.
	CheckSession(ctx context.Context, userID string) error
}
