package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/roadprep/roadprep/internal/history"
	"github.com/roadprep/roadprep/internal/question"
)

// Phase tracks where a session is in its lifecycle.
type Phase int

const (
	PhaseNotStarted Phase = iota
	PhaseInProgress
	PhaseCompleted
)

// Answer records a learner's pick for one question.
type Answer struct {
	Selected int  `json:"selected"`
	Correct  bool `json:"correct"`
}

// ErrIncomplete is returned by Finish while unanswered questions remain
// in a simulation.
var ErrIncomplete = errors.New("session: unanswered questions remain")

// ErrAnswerLocked is returned when attempting to change a recorded answer
// in a mode that locks answers on first selection.
var ErrAnswerLocked = errors.New("session: answer already recorded")

// Session is a single quiz run. Every mutating method persists the new
// state before returning; persistence failures degrade to a warning so a
// flaky disk costs resumability, not the run in memory.
type Session struct {
	ID             string
	UserID         string
	Mode           history.Mode
	Category       string
	Questions      []question.Question
	Answers        map[int]Answer
	CurrentIndex   int
	ElapsedSeconds int
	StartedAt      time.Time
	Phase          Phase

	recorded bool
	outcome  Outcome
	store    *Store
}

// Current returns the question at the cursor.
func (s *Session) Current() question.Question {
	return s.Questions[s.CurrentIndex]
}

// AnswerAt returns the recorded answer for the given question index.
func (s *Session) AnswerAt(i int) (Answer, bool) {
	a, ok := s.Answers[i]
	return a, ok
}

// Answered reports how many questions have a recorded answer.
func (s *Session) Answered() int {
	return len(s.Answers)
}

// locksAnswers reports whether the mode records answers immediately and
// forbids changing them. Simulation defers judgement to Finish and lets
// the learner revise.
func (s *Session) locksAnswers() bool {
	return s.Mode != history.ModeSimulation
}

// Answer records the selected option for the current question. In
// practice and chapter modes the first selection is final; in simulation
// a later selection overwrites the earlier one.
func (s *Session) Answer(ctx context.Context, selected int) error {
	if selected < 0 || selected >= len(s.Current().Options) {
		return fmt.Errorf("session: option %d out of range", selected)
	}
	if _, ok := s.Answers[s.CurrentIndex]; ok && s.locksAnswers() {
		return ErrAnswerLocked
	}
	s.Answers[s.CurrentIndex] = Answer{
		Selected: selected,
		Correct:  selected == s.Current().CorrectIndex,
	}
	s.persist(ctx)
	return nil
}

// Advance moves the cursor forward one question. Returns false when
// already at the last question.
func (s *Session) Advance(ctx context.Context) bool {
	if s.CurrentIndex >= len(s.Questions)-1 {
		return false
	}
	s.CurrentIndex++
	s.persist(ctx)
	return true
}

// Back moves the cursor to the previous question.
func (s *Session) Back(ctx context.Context) bool {
	if s.CurrentIndex == 0 {
		return false
	}
	s.CurrentIndex--
	s.persist(ctx)
	return true
}

// Next moves the cursor to the first unanswered question at or after the
// current position, wrapping to the start. Returns false when every
// question is answered.
func (s *Session) Next(ctx context.Context) bool {
	n := len(s.Questions)
	for off := 1; off <= n; off++ {
		i := (s.CurrentIndex + off) % n
		if _, ok := s.Answers[i]; !ok {
			s.CurrentIndex = i
			s.persist(ctx)
			return true
		}
	}
	return false
}

// JumpTo moves the cursor directly to the given question index.
func (s *Session) JumpTo(ctx context.Context, i int) error {
	if i < 0 || i >= len(s.Questions) {
		return fmt.Errorf("session: question %d out of range", i)
	}
	if i == s.CurrentIndex {
		return nil
	}
	s.CurrentIndex = i
	s.persist(ctx)
	return nil
}

// Tick advances the stopwatch by one second. Persisted so a resumed
// session keeps its elapsed time.
func (s *Session) Tick(ctx context.Context) {
	s.ElapsedSeconds++
	s.persist(ctx)
}

// Elapsed formats the stopwatch as MM:SS.
func (s *Session) Elapsed() string {
	return fmt.Sprintf("%02d:%02d", s.ElapsedSeconds/60, s.ElapsedSeconds%60)
}

// Finish scores the session. In simulation mode it refuses while
// unanswered questions remain; practice and chapter sessions may be
// finished early, with unanswered questions counting as wrong.
func (s *Session) Finish() (Outcome, error) {
	if s.Mode == history.ModeSimulation && len(s.Answers) < len(s.Questions) {
		return Outcome{}, ErrIncomplete
	}
	s.Phase = PhaseCompleted
	return score(s), nil
}

func (s *Session) persist(ctx context.Context) {
	if s.store == nil {
		return
	}
	if err := s.store.Save(ctx, s); err != nil {
		fmt.Fprintf(os.Stderr, "warning: session not saved, resume unavailable: %v\n", err)
	}
}
