package session

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/roadprep/roadprep/internal/history"
	"github.com/roadprep/roadprep/internal/profile"
	"github.com/roadprep/roadprep/internal/question"
)

const (
	// PracticeLength is the number of questions in a practice run.
	PracticeLength = 20

	// SimulationPerCategory is the number of questions drawn from each
	// category in a full simulation.
	SimulationPerCategory = 20
)

// Snapshots is the slice of the profile cache the engine needs: the
// current entitlement view and a way to mark it dirty after an attempt
// lands in the ledger.
type Snapshots interface {
	Get(ctx context.Context, userID string) (*profile.Snapshot, error)
	Invalidate(userID string)
}

// StartDeniedError is returned by Start when the user's balance has no
// credit for the requested mode.
type StartDeniedError struct {
	Mode      history.Mode
	RenewalAt *time.Time
}

func (e *StartDeniedError) Error() string {
	if e.RenewalAt != nil {
		return fmt.Sprintf("no %s credits remaining, next credit at %s",
			e.Mode, e.RenewalAt.Format(time.RFC3339))
	}
	return fmt.Sprintf("no %s credits remaining", e.Mode)
}

// Engine starts, resumes, and completes quiz sessions. It owns the
// gating decision on start and the ledger append on completion.
type Engine struct {
	source    question.Source
	ledger    history.Ledger
	snapshots Snapshots
	store     *Store
	now       func() time.Time
}

// NewEngine wires an engine over its dependencies.
func NewEngine(source question.Source, ledger history.Ledger, snapshots Snapshots, store *Store) *Engine {
	return &Engine{
		source:    source,
		ledger:    ledger,
		snapshots: snapshots,
		store:     store,
		now:       time.Now,
	}
}

// Start begins a session of the given mode, resuming a stored one within
// its TTL when present. For practice and simulation the category argument
// names the exam category (simulation ignores it and always covers both);
// for chapter review it names the chapter. Gating happens before the
// resume check, so an exhausted user cannot re-enter an old session
// either.
func (e *Engine) Start(ctx context.Context, userID string, mode history.Mode, category string) (*Session, bool, error) {
	if !mode.Valid() {
		return nil, false, fmt.Errorf("session: unknown mode %q", mode)
	}

	snap, err := e.snapshots.Get(ctx, userID)
	if err != nil {
		return nil, false, fmt.Errorf("load entitlements: %w", err)
	}
	if !snap.Balance.Allows(mode) {
		return nil, false, &StartDeniedError{Mode: mode, RenewalAt: snap.Balance.RenewalAt}
	}

	key := category
	if mode == history.ModeSimulation {
		key = ""
	}
	if s, ok := e.store.Load(ctx, mode, key); ok && s.UserID == userID {
		return s, true, nil
	}

	questions, err := e.draw(ctx, mode, category)
	if err != nil {
		return nil, false, err
	}

	s := &Session{
		ID:        uuid.New().String(),
		UserID:    userID,
		Mode:      mode,
		Category:  key,
		Questions: questions,
		Answers:   make(map[int]Answer),
		StartedAt: e.now(),
		Phase:     PhaseInProgress,
		store:     e.store,
	}
	s.persist(ctx)
	return s, false, nil
}

// draw pulls the question set for a new session. A simulation fetches
// both category halves in parallel and fails as a unit.
func (e *Engine) draw(ctx context.Context, mode history.Mode, category string) ([]question.Question, error) {
	switch mode {
	case history.ModeSimulation:
		var halves [2][]question.Question
		g, gctx := errgroup.WithContext(ctx)
		for i, cat := range question.SimulationCategories {
			g.Go(func() error {
				qs, err := e.source.Random(gctx, cat, SimulationPerCategory)
				if err != nil {
					return err
				}
				if len(qs) == 0 {
					return fmt.Errorf("session: no questions in category %q", cat)
				}
				halves[i] = qs
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, fmt.Errorf("draw simulation questions: %w", err)
		}
		return append(halves[0], halves[1]...), nil

	case history.ModeChapterReview:
		qs, err := e.source.ByChapter(ctx, category)
		if err != nil {
			return nil, fmt.Errorf("draw chapter questions: %w", err)
		}
		if len(qs) == 0 {
			return nil, fmt.Errorf("session: no questions in chapter %q", category)
		}
		return qs, nil

	default:
		qs, err := e.source.Random(ctx, category, PracticeLength)
		if err != nil {
			return nil, fmt.Errorf("draw practice questions: %w", err)
		}
		if len(qs) == 0 {
			return nil, fmt.Errorf("session: no questions in category %q", category)
		}
		return qs, nil
	}
}

// Complete finishes the session, appends the attempt to the ledger, and
// clears the stored copy. The ledger append is the commit point: if it
// fails the session stays open and Complete may be retried. A second
// Complete after a successful one is a no-op that returns the first
// outcome; the attempt is never recorded twice.
func (e *Engine) Complete(ctx context.Context, s *Session) (Outcome, error) {
	if s.recorded {
		return s.outcome, nil
	}

	out, err := s.Finish()
	if err != nil {
		return Outcome{}, err
	}

	rec := history.Record{
		UserID:         s.UserID,
		CreatedAt:      e.now(),
		Mode:           s.Mode,
		Category:       s.Category,
		CategoryScores: out.CategoryScores,
		TotalScore:     out.TotalScore,
		Passed:         out.Passed,
	}
	if err := e.ledger.Append(ctx, rec); err != nil {
		s.Phase = PhaseInProgress
		return Outcome{}, fmt.Errorf("record attempt: %w", err)
	}
	s.recorded = true
	s.outcome = out

	if err := e.store.Clear(ctx, s.Mode, s.Category); err != nil {
		fmt.Fprintf(os.Stderr, "warning: stale session not cleared: %v\n", err)
	}
	e.snapshots.Invalidate(s.UserID)
	return out, nil
}

// Abandon discards the session and its stored copy without recording an
// attempt. Credits are not consumed by abandoned sessions.
func (e *Engine) Abandon(ctx context.Context, s *Session) error {
	s.store = nil
	return e.store.Clear(ctx, s.Mode, s.Category)
}
