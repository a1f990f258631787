package quiz

import (
	"fmt"
	"testing"
	"time"

	tea "charm.land/bubbletea/v2"

	"github.com/roadprep/roadprep/internal/history"
	"github.com/roadprep/roadprep/internal/question"
	"github.com/roadprep/roadprep/internal/session"
	"github.com/roadprep/roadprep/internal/ui/components"
)

func keyPress(r rune) tea.KeyPressMsg {
	return tea.KeyPressMsg{Code: r, Text: string(r)}
}

func simulationQuestions(n int) []question.Question {
	qs := make([]question.Question, n)
	for i := range qs {
		cat := question.CategoryRules
		if i >= n/2 {
			cat = question.CategorySigns
		}
		qs[i] = question.Question{
			ID:           int64(i + 1),
			Text:         fmt.Sprintf("Question %d", i+1),
			Options:      []string{"A", "B", "C", "D"},
			CorrectIndex: i % 4,
			Category:     cat,
		}
	}
	return qs
}

func testQuizScreen(n int) *QuizScreen {
	s := &session.Session{
		ID:        "test",
		UserID:    "u1",
		Mode:      history.ModeSimulation,
		Questions: simulationQuestions(n),
		Answers:   make(map[int]session.Answer),
		StartedAt: time.Now(),
		Phase:     session.PhaseInProgress,
	}
	q := &QuizScreen{
		userID:    "u1",
		mode:      history.ModeSimulation,
		sess:      s,
		navigator: components.NewNavigator(n),
	}
	q.syncQuestion()
	return q
}

func TestTickPausesWhileCompleting(t *testing.T) {
	q := testQuizScreen(4)
	q.completing = true

	before := q.sess.ElapsedSeconds
	_, cmd := q.Update(tickMsg(time.Now()))
	if q.sess.ElapsedSeconds != before {
		t.Errorf("elapsed = %d, want %d: tick mutated the session mid-completion",
			q.sess.ElapsedSeconds, before)
	}
	if cmd == nil {
		t.Error("tick loop should keep scheduling while completion is in flight")
	}
}

func TestKeysIgnoredWhileCompleting(t *testing.T) {
	q := testQuizScreen(4)
	q.completing = true

	msgs := []tea.Msg{
		keyPress('1'),
		tea.KeyPressMsg{Code: tea.KeyEnter},
		tea.KeyPressMsg{Code: tea.KeyRight},
		keyPress('f'),
	}
	for _, msg := range msgs {
		q.Update(msg)
	}

	if len(q.sess.Answers) != 0 {
		t.Errorf("recorded %d answers mid-completion, want 0", len(q.sess.Answers))
	}
	if q.sess.CurrentIndex != 0 {
		t.Errorf("cursor moved to %d mid-completion, want 0", q.sess.CurrentIndex)
	}
}

func TestCompleteDispatchesOnce(t *testing.T) {
	q := testQuizScreen(4)

	if cmd := q.complete(); cmd == nil {
		t.Fatal("first complete should dispatch")
	}
	if !q.completing {
		t.Fatal("completing flag not set")
	}
	if cmd := q.complete(); cmd != nil {
		t.Error("second complete dispatched while the first is in flight")
	}
}

func TestCompletingClearsOnFailure(t *testing.T) {
	q := testQuizScreen(4)
	q.completing = true

	q.Update(completedMsg{Err: fmt.Errorf("ledger down")})
	if q.completing {
		t.Error("completing flag not cleared after a failed completion")
	}

	// The session is mutable again: ticks count.
	before := q.sess.ElapsedSeconds
	q.Update(tickMsg(time.Now()))
	if q.sess.ElapsedSeconds != before+1 {
		t.Errorf("elapsed = %d, want %d after completion failure", q.sess.ElapsedSeconds, before+1)
	}
}
