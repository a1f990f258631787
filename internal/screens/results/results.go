package results

import (
	"fmt"
	"sort"
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/roadprep/roadprep/internal/history"
	"github.com/roadprep/roadprep/internal/question"
	"github.com/roadprep/roadprep/internal/router"
	"github.com/roadprep/roadprep/internal/screen"
	"github.com/roadprep/roadprep/internal/session"
	"github.com/roadprep/roadprep/internal/ui/components"
	"github.com/roadprep/roadprep/internal/ui/layout"
	"github.com/roadprep/roadprep/internal/ui/theme"
)

// ResultsScreen shows a scored outcome. A simulation lists each category
// with its own pass line since both must clear the bar. Pressing R walks
// through each question with the correct answer revealed.
type ResultsScreen struct {
	outcome   session.Outcome
	questions []question.Question
	answers   map[int]session.Answer

	reviewing   bool
	reviewIndex int
}

var _ screen.Screen = (*ResultsScreen)(nil)
var _ screen.KeyHintProvider = (*ResultsScreen)(nil)

// New creates a results screen for the outcome. questions and answers
// come from the completed session and drive the per-question review.
func New(outcome session.Outcome, questions []question.Question, answers map[int]session.Answer) *ResultsScreen {
	return &ResultsScreen{outcome: outcome, questions: questions, answers: answers}
}

func (s *ResultsScreen) Init() tea.Cmd {
	return nil
}

func (s *ResultsScreen) Title() string {
	if s.reviewing {
		return "Review"
	}
	return "Results"
}

func (s *ResultsScreen) KeyHints() []layout.KeyHint {
	if s.reviewing {
		return []layout.KeyHint{
			{Key: "←/→", Description: "Question"},
			{Key: "Esc", Description: "Summary"},
		}
	}
	hints := []layout.KeyHint{
		{Key: "Enter", Description: "Home"},
	}
	if len(s.questions) > 0 {
		hints = append([]layout.KeyHint{{Key: "R", Description: "Review answers"}}, hints...)
	}
	return hints
}

func (s *ResultsScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	kmsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return s, nil
	}

	if s.reviewing {
		switch kmsg.String() {
		case "left", "h":
			if s.reviewIndex > 0 {
				s.reviewIndex--
			}
		case "right", "l", "enter":
			if s.reviewIndex < len(s.questions)-1 {
				s.reviewIndex++
			}
		case "esc", "q":
			s.reviewing = false
		}
		return s, nil
	}

	switch kmsg.String() {
	case "r", "R":
		if len(s.questions) > 0 {
			s.reviewing = true
			s.reviewIndex = 0
		}
	case "enter", "esc":
		return s, func() tea.Msg { return router.ResetScreenMsg{} }
	}
	return s, nil
}

func (s *ResultsScreen) View(width, height int) string {
	if s.reviewing {
		return s.reviewView(width, height)
	}
	return s.summaryView(width, height)
}

func (s *ResultsScreen) summaryView(width, height int) string {
	out := s.outcome
	var b strings.Builder

	verdict := theme.Pass.Render("PASSED")
	if !out.Passed {
		verdict = theme.Fail.Render("NOT PASSED")
	}
	b.WriteString(lipgloss.PlaceHorizontal(width, lipgloss.Center, verdict))
	b.WriteString("\n\n")

	mins := out.ElapsedSeconds / 60
	secs := out.ElapsedSeconds % 60
	statsLine := fmt.Sprintf("%d/%d correct   %d%%   %02d:%02d",
		out.Correct, out.Total, out.TotalScore, mins, secs)
	b.WriteString(lipgloss.PlaceHorizontal(width, lipgloss.Center,
		lipgloss.NewStyle().Foreground(theme.Text).Render(statsLine)))
	b.WriteString("\n\n")

	// Per-category bars, widest label first for alignment.
	cats := make([]string, 0, len(out.CategoryScores))
	for cat := range out.CategoryScores {
		cats = append(cats, cat)
	}
	sort.Strings(cats)

	labelWidth := 0
	for _, cat := range cats {
		if len(cat) > labelWidth {
			labelWidth = len(cat)
		}
	}

	barWidth := min(width-8, 60)
	for _, cat := range cats {
		score := out.CategoryScores[cat]
		label := fmt.Sprintf("%-*s", labelWidth, cat)
		bar := components.NewProgressBar(label, float64(score)/100, true, barWidth)
		b.WriteString(lipgloss.PlaceHorizontal(width, lipgloss.Center, bar.View()))
		b.WriteString("\n")
	}

	if out.Mode == history.ModeSimulation && !out.Passed {
		b.WriteString("\n")
		b.WriteString(lipgloss.PlaceHorizontal(width, lipgloss.Center,
			theme.Hint.Render("A pass needs 80% in every category.")))
	}

	return lipgloss.PlaceVertical(height, lipgloss.Center, b.String())
}

func (s *ResultsScreen) reviewView(width, height int) string {
	q := s.questions[s.reviewIndex]
	var b strings.Builder

	pos := fmt.Sprintf("Question %d of %d", s.reviewIndex+1, len(s.questions))
	mark := theme.Fail.Render("✗ unanswered")
	if a, ok := s.answers[s.reviewIndex]; ok {
		if a.Correct {
			mark = theme.Pass.Render("✓ correct")
		} else {
			mark = theme.Fail.Render("✗ wrong")
		}
	}
	b.WriteString(lipgloss.PlaceHorizontal(width, lipgloss.Center,
		theme.Hint.Render(pos)+"   "+mark))
	b.WriteString("\n\n")

	choice := components.NewMultiChoice(q.Text, q.Options, q.CorrectIndex, true)
	if a, ok := s.answers[s.reviewIndex]; ok {
		choice.Restore(a.Selected, true)
	} else {
		choice.Locked = true
	}
	b.WriteString(lipgloss.PlaceHorizontal(width, lipgloss.Center, choice.View()))

	if q.Explanation != "" {
		explanation := lipgloss.NewStyle().
			Foreground(theme.TextDim).
			Italic(true).
			Width(min(width-8, 70)).
			Render(q.Explanation)
		b.WriteString("\n")
		b.WriteString(lipgloss.PlaceHorizontal(width, lipgloss.Center, explanation))
	}

	return lipgloss.PlaceVertical(height, lipgloss.Center, b.String())
}
