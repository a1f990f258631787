package history

import (
	"context"
	"fmt"
	"time"
)

// Mode identifies the kind of quiz attempt a record came from.
type Mode string

const (
	ModePractice      Mode = "practice"
	ModeSimulation    Mode = "simulation"
	ModeChapterReview Mode = "chapter"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	switch m {
	case ModePractice, ModeSimulation, ModeChapterReview:
		return true
	}
	return false
}

// Record is one completed quiz attempt. Records are append-only: once
// written they are never updated or deleted by the engine. The trailing
// window of a user's records is the sole input, besides the premium flag,
// to credit derivation.
type Record struct {
	UserID         string
	CreatedAt      time.Time
	Mode           Mode
	Category       string
	CategoryScores map[string]int
	TotalScore     int // 0..100
	Passed         bool
}

// Ledger is the append/query contract over stored attempts.
type Ledger interface {
	// Append stores a new record. Failure means the attempt was not
	// recorded; callers must not treat the completion as committed.
	Append(ctx context.Context, rec Record) error

	// Since returns the user's records with CreatedAt >= since, ordered
	// oldest to newest.
	Since(ctx context.Context, userID string, since time.Time) ([]Record, error)

	// Recent returns up to limit of the user's most recent records,
	// newest first.
	Recent(ctx context.Context, userID string, limit int) ([]Record, error)
}

// ErrUnavailable indicates the ledger could not be read or written within
// its time budget. Transient; callers retry or fall back to cached state.
type ErrUnavailable struct {
	Err error
}

func (e *ErrUnavailable) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("usage ledger unavailable: %v", e.Err)
	}
	return "usage ledger unavailable"
}

func (e *ErrUnavailable) Unwrap() error { return e.Err }
