package session

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/roadprep/roadprep/internal/credits"
	"github.com/roadprep/roadprep/internal/history"
	"github.com/roadprep/roadprep/internal/profile"
	"github.com/roadprep/roadprep/internal/question"
)

type fakeSnapshots struct {
	balance     credits.Balance
	getErr      error
	invalidated []string
}

func (f *fakeSnapshots) Get(_ context.Context, userID string) (*profile.Snapshot, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return &profile.Snapshot{
		Profile: profile.Profile{UserID: userID},
		Balance: f.balance,
	}, nil
}

func (f *fakeSnapshots) Invalidate(userID string) {
	f.invalidated = append(f.invalidated, userID)
}

type fakeLedger struct {
	records   []history.Record
	appendErr error
}

func (f *fakeLedger) Append(_ context.Context, rec history.Record) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	f.records = append(f.records, rec)
	return nil
}

func (f *fakeLedger) Since(context.Context, string, time.Time) ([]history.Record, error) {
	return f.records, nil
}

func (f *fakeLedger) Recent(context.Context, string, int) ([]history.Record, error) {
	return f.records, nil
}

func bankOf(n int) []question.Question {
	qs := make([]question.Question, 0, 2*n)
	for _, cat := range question.SimulationCategories {
		for i := 0; i < n; i++ {
			qs = append(qs, question.Question{
				ID:           int64(len(qs) + 1),
				Text:         fmt.Sprintf("%s question %d", cat, i+1),
				Options:      []string{"a", "b", "c", "d"},
				CorrectIndex: i % 4,
				Category:     cat,
				Chapter:      fmt.Sprintf("%s chapter", cat),
			})
		}
	}
	return qs
}

func newTestEngine(balance credits.Balance) (*Engine, *fakeSnapshots, *fakeLedger, *memKV) {
	snaps := &fakeSnapshots{balance: balance}
	ledger := &fakeLedger{}
	kv := newMemKV()
	eng := NewEngine(question.NewMemorySource(bankOf(30)), ledger, snaps, NewStore(kv))
	return eng, snaps, ledger, kv
}

func TestStartPractice(t *testing.T) {
	eng, _, _, _ := newTestEngine(credits.Balance{Practice: 5, Simulation: 1})

	s, resumed, err := eng.Start(context.Background(), "u1", history.ModePractice, question.CategoryRules)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if resumed {
		t.Fatal("fresh start reported as resumed")
	}
	if len(s.Questions) != PracticeLength {
		t.Fatalf("questions = %d, want %d", len(s.Questions), PracticeLength)
	}
	for _, q := range s.Questions {
		if q.Category != question.CategoryRules {
			t.Fatalf("question from wrong category: %q", q.Category)
		}
	}
}

func TestStartSimulationDrawsBothCategories(t *testing.T) {
	eng, _, _, _ := newTestEngine(credits.Balance{Practice: 5, Simulation: 1})

	s, _, err := eng.Start(context.Background(), "u1", history.ModeSimulation, "")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if len(s.Questions) != 2*SimulationPerCategory {
		t.Fatalf("questions = %d, want %d", len(s.Questions), 2*SimulationPerCategory)
	}
	counts := make(map[string]int)
	for _, q := range s.Questions {
		counts[q.Category]++
	}
	for _, cat := range question.SimulationCategories {
		if counts[cat] != SimulationPerCategory {
			t.Fatalf("%s = %d questions, want %d", cat, counts[cat], SimulationPerCategory)
		}
	}
}

func TestStartDeniedWhenExhausted(t *testing.T) {
	renewal := time.Now().Add(3 * 24 * time.Hour)
	eng, _, _, _ := newTestEngine(credits.Balance{Practice: 0, Simulation: 1, RenewalAt: &renewal})

	_, _, err := eng.Start(context.Background(), "u1", history.ModePractice, question.CategoryRules)
	var denied *StartDeniedError
	if !errors.As(err, &denied) {
		t.Fatalf("err = %v, want StartDeniedError", err)
	}
	if denied.Mode != history.ModePractice {
		t.Fatalf("denied mode = %q, want practice", denied.Mode)
	}
	if denied.RenewalAt == nil || !denied.RenewalAt.Equal(renewal) {
		t.Fatalf("denied renewal = %v, want %v", denied.RenewalAt, renewal)
	}
}

func TestStartDeniedSimulationIndependently(t *testing.T) {
	eng, _, _, _ := newTestEngine(credits.Balance{Practice: 3, Simulation: 0})

	if _, _, err := eng.Start(context.Background(), "u1", history.ModeSimulation, ""); err == nil {
		t.Fatal("simulation start should be denied with zero simulation credits")
	}
	if _, _, err := eng.Start(context.Background(), "u1", history.ModePractice, question.CategoryRules); err != nil {
		t.Fatalf("practice start should still succeed: %v", err)
	}
}

func TestStartUnlimitedIgnoresCounts(t *testing.T) {
	eng, _, _, _ := newTestEngine(credits.Balance{Unlimited: true})

	if _, _, err := eng.Start(context.Background(), "u1", history.ModeSimulation, ""); err != nil {
		t.Fatalf("premium simulation start: %v", err)
	}
}

func TestStartResumesStoredSession(t *testing.T) {
	ctx := context.Background()
	eng, _, _, _ := newTestEngine(credits.Balance{Practice: 5, Simulation: 1})

	first, _, err := eng.Start(ctx, "u1", history.ModePractice, question.CategoryRules)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := first.Answer(ctx, 0); err != nil {
		t.Fatalf("Answer: %v", err)
	}
	_ = first.Advance(ctx)

	second, resumed, err := eng.Start(ctx, "u1", history.ModePractice, question.CategoryRules)
	if err != nil {
		t.Fatalf("restart: %v", err)
	}
	if !resumed {
		t.Fatal("stored session not resumed")
	}
	if second.ID != first.ID {
		t.Fatalf("resumed id = %q, want %q", second.ID, first.ID)
	}
	if second.CurrentIndex != 1 || second.Answered() != 1 {
		t.Fatalf("resumed cursor/answered = %d/%d, want 1/1", second.CurrentIndex, second.Answered())
	}
}

func TestStartIgnoresOtherUsersSession(t *testing.T) {
	ctx := context.Background()
	eng, _, _, _ := newTestEngine(credits.Balance{Practice: 5, Simulation: 1})

	first, _, err := eng.Start(ctx, "u1", history.ModePractice, question.CategoryRules)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	second, resumed, err := eng.Start(ctx, "u2", history.ModePractice, question.CategoryRules)
	if err != nil {
		t.Fatalf("Start as u2: %v", err)
	}
	if resumed || second.ID == first.ID {
		t.Fatal("one user's session resumed by another")
	}
}

func TestCompleteRecordsAndClears(t *testing.T) {
	ctx := context.Background()
	eng, snaps, ledger, kv := newTestEngine(credits.Balance{Practice: 5, Simulation: 1})

	s, _, err := eng.Start(ctx, "u1", history.ModePractice, question.CategoryRules)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	answerN(t, s, 18)

	out, err := eng.Complete(ctx, s)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if !out.Passed || out.TotalScore != 90 {
		t.Fatalf("outcome = passed=%v score=%d, want pass at 90", out.Passed, out.TotalScore)
	}

	if len(ledger.records) != 1 {
		t.Fatalf("records = %d, want 1", len(ledger.records))
	}
	rec := ledger.records[0]
	if rec.UserID != "u1" || rec.Mode != history.ModePractice || rec.TotalScore != 90 || !rec.Passed {
		t.Fatalf("record = %+v", rec)
	}
	if len(kv.values) != 0 {
		t.Fatal("stored session not cleared after completion")
	}
	if len(snaps.invalidated) != 1 || snaps.invalidated[0] != "u1" {
		t.Fatalf("invalidated = %v, want [u1]", snaps.invalidated)
	}
}

func TestCompleteIsOneShot(t *testing.T) {
	ctx := context.Background()
	eng, _, ledger, _ := newTestEngine(credits.Balance{Practice: 5, Simulation: 1})

	s, _, err := eng.Start(ctx, "u1", history.ModePractice, question.CategoryRules)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	answerN(t, s, 20)

	first, err := eng.Complete(ctx, s)
	if err != nil {
		t.Fatalf("first Complete: %v", err)
	}
	second, err := eng.Complete(ctx, s)
	if err != nil {
		t.Fatalf("second Complete: %v", err)
	}
	if !reflect.DeepEqual(second, first) {
		t.Fatalf("second outcome %+v differs from first %+v", second, first)
	}
	if len(ledger.records) != 1 {
		t.Fatalf("records = %d after double completion, want 1", len(ledger.records))
	}
}

func TestCompleteNotCommittedOnAppendFailure(t *testing.T) {
	ctx := context.Background()
	eng, snaps, ledger, kv := newTestEngine(credits.Balance{Practice: 5, Simulation: 1})
	ledger.appendErr = &history.ErrUnavailable{Err: errors.New("db locked")}

	s, _, err := eng.Start(ctx, "u1", history.ModePractice, question.CategoryRules)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	answerN(t, s, 20)

	if _, err := eng.Complete(ctx, s); err == nil {
		t.Fatal("Complete should fail when the append does")
	}
	if s.Phase != PhaseInProgress {
		t.Fatal("failed completion should leave the session in progress")
	}
	if len(kv.values) == 0 {
		t.Fatal("failed completion should not clear the stored session")
	}
	if len(snaps.invalidated) != 0 {
		t.Fatal("failed completion should not invalidate the snapshot")
	}

	// The retry commits.
	ledger.appendErr = nil
	if _, err := eng.Complete(ctx, s); err != nil {
		t.Fatalf("retried Complete: %v", err)
	}
	if len(ledger.records) != 1 {
		t.Fatalf("records = %d, want 1", len(ledger.records))
	}
}

func TestAbandonClearsWithoutRecording(t *testing.T) {
	ctx := context.Background()
	eng, snaps, ledger, kv := newTestEngine(credits.Balance{Practice: 5, Simulation: 1})

	s, _, err := eng.Start(ctx, "u1", history.ModePractice, question.CategoryRules)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := eng.Abandon(ctx, s); err != nil {
		t.Fatalf("Abandon: %v", err)
	}
	if len(ledger.records) != 0 {
		t.Fatal("abandon must not record an attempt")
	}
	if len(kv.values) != 0 {
		t.Fatal("abandon must clear the stored session")
	}
	if len(snaps.invalidated) != 0 {
		t.Fatal("abandon must not invalidate the snapshot")
	}
}

func TestStartChapterReview(t *testing.T) {
	eng, _, _, _ := newTestEngine(credits.Balance{Practice: 1, Simulation: 0})

	chapter := question.CategoryRules + " chapter"
	s, _, err := eng.Start(context.Background(), "u1", history.ModeChapterReview, chapter)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if len(s.Questions) != 30 {
		t.Fatalf("questions = %d, want the whole chapter (30)", len(s.Questions))
	}

	// Chapter review draws on the practice pool.
	eng2, _, _, _ := newTestEngine(credits.Balance{Practice: 0, Simulation: 1})
	if _, _, err := eng2.Start(context.Background(), "u1", history.ModeChapterReview, chapter); err == nil {
		t.Fatal("chapter review should be denied when practice credits are exhausted")
	}
}
