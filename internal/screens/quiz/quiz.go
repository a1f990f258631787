package quiz

import (
	"context"
	"errors"
	"time"

	tea "charm.land/bubbletea/v2"

	"github.com/roadprep/roadprep/internal/history"
	"github.com/roadprep/roadprep/internal/router"
	"github.com/roadprep/roadprep/internal/screen"
	"github.com/roadprep/roadprep/internal/screens/results"
	"github.com/roadprep/roadprep/internal/session"
	"github.com/roadprep/roadprep/internal/ui/components"
	"github.com/roadprep/roadprep/internal/ui/layout"
)

// QuizScreen runs a single quiz session of any mode. Practice and
// chapter review reveal the correct answer after each pick; a simulation
// holds feedback until the whole exam is finished.
type QuizScreen struct {
	engine   *session.Engine
	userID   string
	mode     history.Mode
	category string

	sess            *session.Session
	choice          components.MultiChoice
	navigator       components.Navigator
	jump            components.TextInput
	jumping         bool
	showingFeedback bool
	confirmLeave    bool
	flash           string
	errMsg          string
	completing      bool
}

var _ screen.Screen = (*QuizScreen)(nil)
var _ screen.KeyHintProvider = (*QuizScreen)(nil)

// New creates a quiz screen. The session itself starts in Init.
func New(engine *session.Engine, userID string, mode history.Mode, category string) *QuizScreen {
	return &QuizScreen{
		engine:   engine,
		userID:   userID,
		mode:     mode,
		category: category,
	}
}

func (q *QuizScreen) Init() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		s, resumed, err := q.engine.Start(ctx, q.userID, q.mode, q.category)
		return startedMsg{Session: s, Resumed: resumed, Err: err}
	}
}

func (q *QuizScreen) Title() string {
	switch q.mode {
	case history.ModeSimulation:
		return "Full Simulation"
	case history.ModeChapterReview:
		return "Chapter Review"
	default:
		return "Practice"
	}
}

func (q *QuizScreen) KeyHints() []layout.KeyHint {
	switch {
	case q.errMsg != "":
		return []layout.KeyHint{{Key: "any key", Description: "Back"}}
	case q.confirmLeave:
		return []layout.KeyHint{
			{Key: "R", Description: "Resume later"},
			{Key: "A", Description: "Abandon"},
			{Key: "N", Description: "Keep going"},
		}
	case q.showingFeedback:
		return []layout.KeyHint{{Key: "any key", Description: "Continue"}}
	case q.jumping:
		return []layout.KeyHint{
			{Key: "Enter", Description: "Go"},
			{Key: "Esc", Description: "Cancel"},
		}
	case q.mode == history.ModeSimulation:
		return []layout.KeyHint{
			{Key: "Enter", Description: "Answer"},
			{Key: "←→", Description: "Move"},
			{Key: "G", Description: "Go to #"},
			{Key: "F", Description: "Finish"},
			{Key: "Esc", Description: "Leave"},
		}
	default:
		return []layout.KeyHint{
			{Key: "Enter", Description: "Answer"},
			{Key: "Esc", Description: "Leave"},
		}
	}
}

func (q *QuizScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case startedMsg:
		return q.handleStarted(msg)
	case completedMsg:
		return q.handleCompleted(msg)
	case tickMsg:
		return q.handleTick()
	case flashClearMsg:
		q.flash = ""
		return q, nil
	case tea.KeyMsg:
		return q.handleKey(msg)
	}

	if q.jumping {
		var cmd tea.Cmd
		q.jump, cmd = q.jump.Update(msg)
		return q, cmd
	}
	return q, nil
}

func (q *QuizScreen) handleStarted(msg startedMsg) (screen.Screen, tea.Cmd) {
	if msg.Err != nil {
		var denied *session.StartDeniedError
		if errors.As(msg.Err, &denied) {
			q.errMsg = denied.Error()
		} else {
			q.errMsg = msg.Err.Error()
		}
		return q, nil
	}

	q.sess = msg.Session
	q.navigator = components.NewNavigator(len(q.sess.Questions))
	q.syncQuestion()
	var cmd tea.Cmd
	if msg.Resumed {
		cmd = q.setFlash("Resumed where you left off")
	}
	return q, tea.Batch(cmd, tickCmd())
}

func (q *QuizScreen) handleCompleted(msg completedMsg) (screen.Screen, tea.Cmd) {
	q.completing = false
	if msg.Err != nil {
		// Attempt not recorded; the session stays open for a retry.
		return q, q.setFlash("Could not save your result: " + msg.Err.Error())
	}
	out := msg.Outcome
	questions := q.sess.Questions
	answers := q.sess.Answers
	return q, func() tea.Msg {
		return router.PushScreenMsg{Screen: results.New(out, questions, answers)}
	}
}

func (q *QuizScreen) handleTick() (screen.Screen, tea.Cmd) {
	// While a completion is in flight the engine owns the session state;
	// the tick loop keeps running but must not touch it.
	if q.sess == nil || q.sess.Phase != session.PhaseInProgress || q.confirmLeave || q.completing {
		return q, tickCmd()
	}
	q.sess.Tick(context.Background())
	return q, tickCmd()
}

func (q *QuizScreen) handleKey(msg tea.KeyMsg) (screen.Screen, tea.Cmd) {
	key := msg.String()

	if q.errMsg != "" {
		return q, func() tea.Msg { return router.PopScreenMsg{} }
	}
	if q.sess == nil || q.completing {
		return q, nil
	}

	if q.confirmLeave {
		switch key {
		case "r", "R":
			// Session stays stored; Start resumes it within the TTL.
			return q, func() tea.Msg { return router.PopScreenMsg{} }
		case "a", "A":
			_ = q.engine.Abandon(context.Background(), q.sess)
			return q, func() tea.Msg { return router.PopScreenMsg{} }
		case "n", "N", "esc":
			q.confirmLeave = false
		}
		return q, nil
	}

	if q.showingFeedback {
		q.showingFeedback = false
		ctx := context.Background()
		if !q.sess.Next(ctx) {
			return q, q.complete()
		}
		q.syncQuestion()
		return q, nil
	}

	if q.jumping {
		switch key {
		case "esc":
			q.jumping = false
			return q, nil
		case "enter":
			q.jumping = false
			n, err := q.jump.NumericValue()
			if err != nil {
				return q, nil
			}
			if err := q.sess.JumpTo(context.Background(), n-1); err != nil {
				return q, q.setFlash("No such question")
			}
			q.syncQuestion()
			return q, nil
		}
		var cmd tea.Cmd
		q.jump, cmd = q.jump.Update(msg)
		return q, cmd
	}

	switch key {
	case "esc":
		q.confirmLeave = true
		return q, nil
	}

	if q.mode == history.ModeSimulation {
		switch key {
		case "left", "h":
			q.sess.Back(context.Background())
			q.syncQuestion()
			return q, nil
		case "right", "l":
			q.sess.Advance(context.Background())
			q.syncQuestion()
			return q, nil
		case "g", "G":
			q.jumping = true
			q.jump = components.NewTextInput("question #", true, 2)
			return q, q.jump.Init()
		case "f", "F":
			return q, q.complete()
		}
	}

	updated, submitted := q.choice.Update(msg)
	q.choice = updated
	if !submitted {
		return q, nil
	}
	return q.handleAnswer()
}

// handleAnswer records the pick made in the choice component.
func (q *QuizScreen) handleAnswer() (screen.Screen, tea.Cmd) {
	ctx := context.Background()
	if err := q.sess.Answer(ctx, q.choice.Chosen); err != nil {
		if errors.Is(err, session.ErrAnswerLocked) {
			return q, q.setFlash("Answer already recorded")
		}
		return q, q.setFlash(err.Error())
	}
	q.navigator.Answered[q.sess.CurrentIndex] = true

	if q.mode == history.ModeSimulation {
		// Keep moving; judgement waits for Finish.
		if q.sess.Next(ctx) {
			q.syncQuestion()
		} else {
			q.syncQuestion()
			return q, q.setFlash("All answered — press F to finish")
		}
		return q, nil
	}

	q.choice.Reveal = true
	q.choice.Locked = true
	q.showingFeedback = true
	return q, nil
}

// complete asks the engine to score, record, and clear the session.
func (q *QuizScreen) complete() tea.Cmd {
	if q.completing {
		return nil
	}
	q.completing = true
	s := q.sess
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		out, err := q.engine.Complete(ctx, s)
		if errors.Is(err, session.ErrIncomplete) {
			return completedMsg{Err: errors.New("answer every question first")}
		}
		return completedMsg{Outcome: out, Err: err}
	}
}

// syncQuestion rebuilds the choice component for the session's current
// question, restoring a recorded answer when revisiting.
func (q *QuizScreen) syncQuestion() {
	cur := q.sess.Current()
	reveal := q.mode != history.ModeSimulation
	q.choice = components.NewMultiChoice(cur.Text, cur.Options, cur.CorrectIndex, reveal)
	q.navigator.Current = q.sess.CurrentIndex
	if ans, ok := q.sess.AnswerAt(q.sess.CurrentIndex); ok {
		q.choice.Restore(ans.Selected, reveal)
		q.navigator.Answered[q.sess.CurrentIndex] = true
	}
}

func (q *QuizScreen) setFlash(text string) tea.Cmd {
	q.flash = text
	return tea.Tick(2*time.Second, func(time.Time) tea.Msg {
		return flashClearMsg{}
	})
}

// tickCmd returns a 1-second tick command.
func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}
