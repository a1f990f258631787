package components

import (
	"fmt"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/roadprep/roadprep/internal/ui/theme"
)

var optionLabels = []string{"A", "B", "C", "D", "E", "F"}

// MultiChoice is a multiple-choice selector.
//
// Reveal controls feedback: with Reveal set, an answered question shows
// the correct option in green and a wrong pick in red. Exam screens
// leave Reveal off so nothing is given away until scoring.
type MultiChoice struct {
	Question     string
	Options      []string
	CorrectIndex int
	Cursor       int
	Chosen       int // -1 until answered
	Reveal       bool
	Locked       bool // answered and not revisable
}

// NewMultiChoice creates a multiple-choice selector for one question.
func NewMultiChoice(question string, options []string, correctIndex int, reveal bool) MultiChoice {
	return MultiChoice{
		Question:     question,
		Options:      options,
		CorrectIndex: correctIndex,
		Cursor:       0,
		Chosen:       -1,
		Reveal:       reveal,
	}
}

// Restore marks a previously answered question so a resumed or revisited
// question renders its recorded pick.
func (m *MultiChoice) Restore(chosen int, locked bool) {
	m.Chosen = chosen
	m.Locked = locked
	if chosen >= 0 && chosen < len(m.Options) {
		m.Cursor = chosen
	}
}

// Answered reports whether a pick has been made.
func (m MultiChoice) Answered() bool {
	return m.Chosen >= 0
}

// IsCorrect reports whether the pick matches the correct option.
func (m MultiChoice) IsCorrect() bool {
	return m.Chosen == m.CorrectIndex
}

// Init returns nil.
func (m MultiChoice) Init() tea.Cmd {
	return nil
}

// Update handles keyboard navigation and selection. Selection is refused
// when the component is locked; the quiz decides locking by mode.
func (m MultiChoice) Update(msg tea.Msg) (MultiChoice, bool) {
	if m.Locked {
		return m, false
	}

	kmsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, false
	}

	switch kmsg.String() {
	case "up", "k":
		if m.Cursor > 0 {
			m.Cursor--
		}
	case "down", "j":
		if m.Cursor < len(m.Options)-1 {
			m.Cursor++
		}
	case "enter":
		m.Chosen = m.Cursor
		return m, true
	case "1", "2", "3", "4", "5", "6":
		i := int(kmsg.String()[0] - '1')
		if i < len(m.Options) {
			m.Cursor = i
			m.Chosen = i
			return m, true
		}
	}

	return m, false
}

// View renders the question with its options.
func (m MultiChoice) View() string {
	questionStyle := lipgloss.NewStyle().Foreground(theme.Text).Bold(true)
	s := questionStyle.Render(m.Question) + "\n\n"

	for i, opt := range m.Options {
		label := optionLabels[i%len(optionLabels)]
		prefix := "  "
		if i == m.Cursor && !m.Locked {
			prefix = "▸ "
		}

		line := fmt.Sprintf("%s%s)  %s", prefix, label, opt)

		switch {
		case m.Answered() && m.Reveal && i == m.CorrectIndex:
			s += theme.Correct.Render(line) + "\n"
		case m.Answered() && m.Reveal && i == m.Chosen:
			s += theme.Incorrect.Render(line) + "\n"
		case m.Answered() && !m.Reveal && i == m.Chosen:
			s += lipgloss.NewStyle().Foreground(theme.Secondary).Bold(true).Render(line) + "\n"
		case i == m.Cursor && !m.Locked:
			s += lipgloss.NewStyle().Foreground(theme.Primary).Bold(true).Render(line) + "\n"
		default:
			s += lipgloss.NewStyle().Foreground(theme.Text).Render(line) + "\n"
		}
	}

	return s
}
