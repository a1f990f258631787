package quiz

import (
	"time"

	"github.com/roadprep/roadprep/internal/session"
)

// startedMsg is sent when the engine has started or resumed a session.
type startedMsg struct {
	Session *session.Session
	Resumed bool
	Err     error
}

// completedMsg is sent when the engine has scored and recorded the
// attempt.
type completedMsg struct {
	Outcome session.Outcome
	Err     error
}

// tickMsg drives the stopwatch, once per second.
type tickMsg time.Time

// flashClearMsg removes a transient status line.
type flashClearMsg struct{}
