package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/roadprep/roadprep/internal/identity"
	"github.com/roadprep/roadprep/internal/profile"
)

// ProfileRepo reads and maintains the local profiles table. The engine
// reads profiles exclusively through the profile cache; writes happen
// out of band (activation tooling standing in for the payment webhook).
type ProfileRepo struct {
	db *sql.DB
}

// Get returns the profile for the given user id.
func (r *ProfileRepo) Get(ctx context.Context, userID string) (profile.Profile, error) {
	var p profile.Profile
	var premium, admin int
	err := r.db.QueryRowContext(ctx,
		`SELECT id, email, is_premium, is_admin FROM profiles WHERE id = ?`, userID).
		Scan(&p.UserID, &p.Email, &premium, &admin)
	if errors.Is(err, sql.ErrNoRows) {
		return profile.Profile{}, fmt.Errorf("profile %s: %w", userID, profile.ErrNotFound)
	}
	if err != nil {
		return profile.Profile{}, fmt.Errorf("query profile: %w", err)
	}
	p.Premium = premium != 0
	p.Admin = admin != 0
	return p, nil
}

// SetPremium flips the premium flag. This is the local manifestation of
// the payment webhook; callers publish the change on the feed afterwards.
func (r *ProfileRepo) SetPremium(ctx context.Context, userID string, premium bool) (profile.Profile, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE profiles SET is_premium = ? WHERE id = ?`, boolToInt(premium), userID)
	if err != nil {
		return profile.Profile{}, fmt.Errorf("set premium: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return profile.Profile{}, fmt.Errorf("profile %s: %w", userID, profile.ErrNotFound)
	}
	return r.Get(ctx, userID)
}

// EnsureLocal returns the single local principal, creating its profile
// row on first run. Stands in for the first-sign-in provisioning the
// identity collaborator performs.
func (r *ProfileRepo) EnsureLocal(ctx context.Context) (identity.Principal, error) {
	var id, email string
	err := r.db.QueryRowContext(ctx,
		`SELECT id, email FROM profiles ORDER BY created_at ASC LIMIT 1`).Scan(&id, &email)
	if err == nil {
		return identity.Principal{ID: id, Email: email}, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return identity.Principal{}, fmt.Errorf("query local profile: %w", err)
	}

	id = uuid.New().String()
	email = "learner@localhost"
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO profiles (id, email, is_premium, is_admin, created_at) VALUES (?, ?, 0, 0, ?)`,
		id, email, time.Now().Unix())
	if err != nil {
		return identity.Principal{}, fmt.Errorf("create local profile: %w", err)
	}
	return identity.Principal{ID: id, Email: email}, nil
}

// Identity adapts the profile table into an identity.Provider. The
// session is valid as long as the principal's profile row exists.
type Identity struct {
	Profiles *ProfileRepo
}

var _ identity.Provider = (*Identity)(nil)

func (i *Identity) Current(ctx context.Context) (identity.Principal, error) {
	return i.Profiles.EnsureLocal(ctx)
}

func (i *Identity) CheckSession(ctx context.Context, userID string) error {
	var one int
	err := i.Profiles.db.QueryRowContext(ctx,
		`SELECT 1 FROM profiles WHERE id = ?`, userID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return identity.ErrSessionInvalid
	}
	if err != nil {
		return fmt.Errorf("check session: %w", err)
	}
	return nil
}
