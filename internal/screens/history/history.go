package history

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/roadprep/roadprep/internal/history"
	"github.com/roadprep/roadprep/internal/router"
	"github.com/roadprep/roadprep/internal/screen"
	"github.com/roadprep/roadprep/internal/ui/layout"
	"github.com/roadprep/roadprep/internal/ui/theme"
)

const recentLimit = 50

type loadedMsg struct {
	Records []history.Record
	Err     error
}

// HistoryScreen lists past attempts, newest first.
type HistoryScreen struct {
	ledger   history.Ledger
	userID   string
	records  []history.Record
	selected int
	loaded   bool
	errMsg   string
}

var _ screen.Screen = (*HistoryScreen)(nil)
var _ screen.KeyHintProvider = (*HistoryScreen)(nil)

// New creates a history screen over the ledger.
func New(ledger history.Ledger, userID string) *HistoryScreen {
	return &HistoryScreen{ledger: ledger, userID: userID}
}

func (s *HistoryScreen) Init() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		records, err := s.ledger.Recent(ctx, s.userID, recentLimit)
		return loadedMsg{Records: records, Err: err}
	}
}

func (s *HistoryScreen) Title() string {
	return "History"
}

func (s *HistoryScreen) KeyHints() []layout.KeyHint {
	return []layout.KeyHint{
		{Key: "↑↓", Description: "Navigate"},
		{Key: "Esc", Description: "Back"},
	}
}

func (s *HistoryScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case loadedMsg:
		if msg.Err != nil {
			s.errMsg = msg.Err.Error()
		} else {
			s.records = msg.Records
		}
		s.loaded = true
		return s, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "esc":
			return s, func() tea.Msg { return router.PopScreenMsg{} }
		case "up", "k":
			if s.selected > 0 {
				s.selected--
			}
		case "down", "j":
			if s.selected < len(s.records)-1 {
				s.selected++
			}
		}
	}
	return s, nil
}

func (s *HistoryScreen) View(width, height int) string {
	if s.errMsg != "" {
		return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center,
			theme.Fail.Render("History unavailable: "+s.errMsg))
	}
	if !s.loaded {
		return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center,
			lipgloss.NewStyle().Foreground(theme.TextDim).Render("Loading..."))
	}
	if len(s.records) == 0 {
		return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center,
			lipgloss.NewStyle().Foreground(theme.TextDim).Render("No attempts yet."))
	}

	var b strings.Builder
	b.WriteString("\n")

	// Window the list so the selection stays visible.
	visible := height - 2
	if visible < 1 {
		visible = 1
	}
	start := 0
	if s.selected >= visible {
		start = s.selected - visible + 1
	}

	for i := start; i < len(s.records) && i < start+visible; i++ {
		r := s.records[i]

		verdict := theme.Pass.Render("pass")
		if !r.Passed {
			verdict = theme.Fail.Render("fail")
		}

		label := string(r.Mode)
		if r.Category != "" {
			label += " · " + r.Category
		}

		line := fmt.Sprintf("%s  %-40s %3d%%  %s",
			r.CreatedAt.Format("2006-01-02 15:04"), label, r.TotalScore, verdict)

		if i == s.selected {
			b.WriteString(lipgloss.NewStyle().Foreground(theme.Primary).Bold(true).Render("  ▸ " + line))
			if len(r.CategoryScores) > 1 {
				b.WriteString("\n")
				b.WriteString(s.renderCategoryDetail(r))
			}
		} else {
			b.WriteString(lipgloss.NewStyle().Foreground(theme.Text).Render("    " + line))
		}
		b.WriteString("\n")
	}

	return b.String()
}

func (s *HistoryScreen) renderCategoryDetail(r history.Record) string {
	cats := make([]string, 0, len(r.CategoryScores))
	for cat := range r.CategoryScores {
		cats = append(cats, cat)
	}
	sort.Strings(cats)
	parts := make([]string, 0, len(cats))
	for _, cat := range cats {
		parts = append(parts, fmt.Sprintf("%s %d%%", cat, r.CategoryScores[cat]))
	}
	return lipgloss.NewStyle().
		Foreground(theme.TextDim).
		Render("        " + strings.Join(parts, "   "))
}
