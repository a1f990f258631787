// Package profile holds the in-process source of truth for a user's
// profile and derived credit balance.
package profile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/roadprep/roadprep/internal/credits"
	"github.com/roadprep/roadprep/internal/history"
)

// ErrNotFound indicates no profile row exists for the user.
var ErrNotFound = errors.New("profile not found")

// ErrUnavailable indicates the profile could not be fetched and no cached
// snapshot exists. Callers must treat this as non-premium with zero
// credits, never as unlimited access.
var ErrUnavailable = errors.New("profile unavailable")

// Profile is one user's account record. Read-only from the engine's
// perspective; mutations happen out of band and arrive via the change
// feed.
type Profile struct {
	UserID  string
	Email   string
	Premium bool
	Admin   bool
}

// Snapshot is the composite cached state: profile, derived balance, and
// the history the balance was computed from.
type Snapshot struct {
	Profile   Profile
	Balance   credits.Balance
	Recent    []history.Record
	FetchedAt time.Time
}

// Loader fetches the profile record from its backing store.
type Loader interface {
	Get(ctx context.Context, userID string) (Profile, error)
}

// Feed delivers out-of-band profile changes, at most once per actual
// change. Any pub/sub or long-poll transport satisfies it.
type Feed interface {
	// Subscribe registers fn for the user's profile changes and returns
	// an unsubscribe function.
	Subscribe(userID string, fn func(Profile)) (unsubscribe func())
}

func wrapUnavailable(err error) error {
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
