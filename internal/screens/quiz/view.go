package quiz

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/roadprep/roadprep/internal/history"
	"github.com/roadprep/roadprep/internal/ui/theme"
)

func (q *QuizScreen) View(width, height int) string {
	if q.errMsg != "" {
		return renderCentered(width, height, theme.Fail.Render(q.errMsg))
	}
	if q.sess == nil {
		return renderCentered(width, height,
			lipgloss.NewStyle().Foreground(theme.TextDim).Render("Preparing questions..."))
	}
	if q.confirmLeave {
		return q.renderLeaveConfirm(width, height)
	}
	return q.renderQuestion(width, height)
}

func (q *QuizScreen) renderQuestion(width, height int) string {
	var b strings.Builder

	// Status line: position, answered count, stopwatch.
	left := lipgloss.NewStyle().
		Foreground(theme.Secondary).
		Bold(true).
		Render(fmt.Sprintf("  %s", q.statusLabel()))

	right := lipgloss.NewStyle().
		Foreground(theme.TextDim).
		Render(fmt.Sprintf("Q %d/%d   answered %d   %s",
			q.sess.CurrentIndex+1,
			len(q.sess.Questions),
			q.sess.Answered(),
			q.sess.Elapsed(),
		))

	line := left
	pad := width - lipgloss.Width(left) - lipgloss.Width(right) - 4
	if pad > 0 {
		line += strings.Repeat(" ", pad) + right
	}
	b.WriteString(line)
	b.WriteString("\n")
	b.WriteString(lipgloss.NewStyle().Foreground(theme.Border).Render(strings.Repeat("─", max(width-4, 0))))
	b.WriteString("\n\n")

	// The question with its options.
	b.WriteString(lipgloss.PlaceHorizontal(width, lipgloss.Center, q.choice.View()))
	b.WriteString("\n")

	// Explanation after feedback in practice modes.
	if q.showingFeedback && q.sess.Current().Explanation != "" {
		explanation := lipgloss.NewStyle().
			Foreground(theme.TextDim).
			Italic(true).
			Width(min(width-8, 70)).
			Render(q.sess.Current().Explanation)
		b.WriteString("\n")
		b.WriteString(lipgloss.PlaceHorizontal(width, lipgloss.Center, explanation))
		b.WriteString("\n")
	}

	// Navigator grid in simulation mode.
	if q.mode == history.ModeSimulation {
		b.WriteString("\n")
		b.WriteString(lipgloss.PlaceHorizontal(width, lipgloss.Center, q.navigator.View()))
		b.WriteString("\n")
		if q.jumping {
			b.WriteString("\n")
			b.WriteString(lipgloss.PlaceHorizontal(width, lipgloss.Center,
				"Go to question: "+q.jump.View()))
			b.WriteString("\n")
		}
	}

	if q.flash != "" {
		b.WriteString("\n")
		b.WriteString(lipgloss.PlaceHorizontal(width, lipgloss.Center,
			lipgloss.NewStyle().Foreground(theme.Primary).Render(q.flash)))
	}

	return b.String()
}

func (q *QuizScreen) statusLabel() string {
	switch q.mode {
	case history.ModeSimulation:
		return q.sess.Current().Category
	case history.ModeChapterReview:
		return q.category
	default:
		return q.category
	}
}

func (q *QuizScreen) renderLeaveConfirm(width, height int) string {
	body := strings.Join([]string{
		theme.Body.Bold(true).Render("Leave this quiz?"),
		"",
		theme.Hint.Render("R  resume later (progress is saved)"),
		theme.Hint.Render("A  abandon (no attempt recorded)"),
		theme.Hint.Render("N  keep going"),
	}, "\n")
	return renderCentered(width, height, theme.Card.Render(body))
}

func renderCentered(width, height int, content string) string {
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, content)
}
