package chapters

import (
	"context"
	"time"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/roadprep/roadprep/internal/history"
	"github.com/roadprep/roadprep/internal/question"
	"github.com/roadprep/roadprep/internal/router"
	"github.com/roadprep/roadprep/internal/screen"
	"github.com/roadprep/roadprep/internal/screens/quiz"
	"github.com/roadprep/roadprep/internal/session"
	"github.com/roadprep/roadprep/internal/ui/components"
	"github.com/roadprep/roadprep/internal/ui/layout"
	"github.com/roadprep/roadprep/internal/ui/theme"
)

type chaptersMsg struct {
	Chapters []string
	Err      error
}

// ChaptersScreen lists the bank's chapters for review mode.
type ChaptersScreen struct {
	engine *session.Engine
	source question.Source
	userID string

	menu   components.Menu
	loaded bool
	errMsg string
}

var _ screen.Screen = (*ChaptersScreen)(nil)
var _ screen.KeyHintProvider = (*ChaptersScreen)(nil)

// New creates a chapter picker.
func New(engine *session.Engine, source question.Source, userID string) *ChaptersScreen {
	return &ChaptersScreen{engine: engine, source: source, userID: userID}
}

func (s *ChaptersScreen) Init() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		chs, err := s.source.Chapters(ctx)
		return chaptersMsg{Chapters: chs, Err: err}
	}
}

func (s *ChaptersScreen) Title() string {
	return "Chapter Review"
}

func (s *ChaptersScreen) KeyHints() []layout.KeyHint {
	return []layout.KeyHint{
		{Key: "Enter", Description: "Review"},
		{Key: "↑↓", Description: "Navigate"},
		{Key: "Esc", Description: "Back"},
	}
}

func (s *ChaptersScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case chaptersMsg:
		if msg.Err != nil {
			s.errMsg = msg.Err.Error()
			return s, nil
		}
		items := make([]components.MenuItem, 0, len(msg.Chapters))
		for _, ch := range msg.Chapters {
			items = append(items, components.MenuItem{
				Label: ch,
				Action: func() tea.Cmd {
					return func() tea.Msg {
						return router.PushScreenMsg{
							Screen: quiz.New(s.engine, s.userID, history.ModeChapterReview, ch),
						}
					}
				},
			})
		}
		s.menu = components.NewMenu(items)
		s.loaded = true
		return s, nil

	case tea.KeyMsg:
		if msg.String() == "esc" {
			return s, func() tea.Msg { return router.PopScreenMsg{} }
		}
	}

	var cmd tea.Cmd
	s.menu, cmd = s.menu.Update(msg)
	return s, cmd
}

func (s *ChaptersScreen) View(width, height int) string {
	if s.errMsg != "" {
		return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center,
			theme.Fail.Render("Chapters unavailable: "+s.errMsg))
	}
	if !s.loaded {
		return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center,
			lipgloss.NewStyle().Foreground(theme.TextDim).Render("Loading..."))
	}
	if len(s.menu.Items) == 0 {
		return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center,
			lipgloss.NewStyle().Foreground(theme.TextDim).Render("The question bank has no chapters yet."))
	}

	title := theme.Subtitle.Width(width).Render("Pick a chapter to review")
	menu := lipgloss.PlaceHorizontal(width, lipgloss.Center, s.menu.View())
	return lipgloss.PlaceVertical(height, lipgloss.Center, title+"\n\n"+menu)
}
