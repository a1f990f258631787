package components

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/roadprep/roadprep/internal/ui/theme"
)

// Navigator renders the question number grid shown during a simulation,
// so the learner can see answered vs open questions and jump around.
type Navigator struct {
	Total    int
	Current  int
	Answered map[int]bool
	PerRow   int
}

// NewNavigator creates a navigator over the question count.
func NewNavigator(total int) Navigator {
	return Navigator{
		Total:    total,
		Answered: make(map[int]bool),
		PerRow:   10,
	}
}

// View renders the grid.
func (n Navigator) View() string {
	var b strings.Builder
	for i := 0; i < n.Total; i++ {
		cell := fmt.Sprintf("%2d", i+1)
		switch {
		case i == n.Current:
			cell = lipgloss.NewStyle().
				Foreground(theme.BgDark).
				Background(theme.Primary).
				Bold(true).
				Render(" " + cell + " ")
		case n.Answered[i]:
			cell = lipgloss.NewStyle().
				Foreground(theme.Success).
				Render(" " + cell + " ")
		default:
			cell = lipgloss.NewStyle().
				Foreground(theme.TextDim).
				Render(" " + cell + " ")
		}
		b.WriteString(cell)
		if (i+1)%n.PerRow == 0 && i != n.Total-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}
