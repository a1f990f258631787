package home

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/roadprep/roadprep/internal/credits"
	"github.com/roadprep/roadprep/internal/history"
	"github.com/roadprep/roadprep/internal/profile"
	"github.com/roadprep/roadprep/internal/question"
	"github.com/roadprep/roadprep/internal/router"
	"github.com/roadprep/roadprep/internal/screen"
	"github.com/roadprep/roadprep/internal/screens/chapters"
	historyscreen "github.com/roadprep/roadprep/internal/screens/history"
	"github.com/roadprep/roadprep/internal/screens/quiz"
	"github.com/roadprep/roadprep/internal/session"
	"github.com/roadprep/roadprep/internal/ui/components"
	"github.com/roadprep/roadprep/internal/ui/theme"
)

// snapshotMsg delivers the profile snapshot loaded during Init.
type snapshotMsg struct {
	Snapshot *profile.Snapshot
	Err      error
}

// HomeScreen is the main menu: mode selection plus the credit balance.
type HomeScreen struct {
	engine *session.Engine
	cache  *profile.Cache
	source question.Source
	ledger history.Ledger
	userID string

	menu    components.Menu
	balance credits.Balance
	premium bool
	loaded  bool
	errMsg  string
}

var _ screen.Screen = (*HomeScreen)(nil)

// New creates the home screen.
func New(engine *session.Engine, cache *profile.Cache, source question.Source, ledger history.Ledger, userID string) *HomeScreen {
	h := &HomeScreen{
		engine: engine,
		cache:  cache,
		source: source,
		ledger: ledger,
		userID: userID,
	}
	h.menu = components.NewMenu(h.menuItems())
	return h
}

func (h *HomeScreen) Init() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		snap, err := h.cache.Get(ctx, h.userID)
		return snapshotMsg{Snapshot: snap, Err: err}
	}
}

func (h *HomeScreen) Title() string {
	return "Home"
}

func (h *HomeScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case snapshotMsg:
		if msg.Err != nil {
			h.errMsg = msg.Err.Error()
			return h, nil
		}
		h.errMsg = ""
		h.balance = msg.Snapshot.Balance
		h.premium = msg.Snapshot.Profile.Premium
		h.loaded = true
		selected := h.menu.Selected
		h.menu = components.NewMenu(h.menuItems())
		if selected < len(h.menu.Items) && !h.menu.Items[selected].Disabled {
			h.menu.Selected = selected
		}
		return h, nil
	}

	var cmd tea.Cmd
	h.menu, cmd = h.menu.Update(msg)
	return h, cmd
}

// menuItems builds the menu against the current balance. Gating here is
// advisory only; the engine re-checks on start.
func (h *HomeScreen) menuItems() []components.MenuItem {
	practiceHint := ""
	simulationHint := ""
	if h.loaded && !h.balance.Unlimited {
		practiceHint = fmt.Sprintf("(%d left this week)", h.balance.Practice)
		simulationHint = fmt.Sprintf("(%d left this week)", h.balance.Simulation)
		if h.balance.Practice == 0 {
			practiceHint = renewalHint(h.balance.RenewalAt)
		}
		if h.balance.Simulation == 0 {
			simulationHint = renewalHint(h.balance.RenewalAt)
		}
	}
	noPractice := h.loaded && !h.balance.Allows(history.ModePractice)
	noSimulation := h.loaded && !h.balance.Allows(history.ModeSimulation)

	push := func(mode history.Mode, category string) func() tea.Cmd {
		return func() tea.Cmd {
			return func() tea.Msg {
				return router.PushScreenMsg{
					Screen: quiz.New(h.engine, h.userID, mode, category),
				}
			}
		}
	}

	return []components.MenuItem{
		{
			Label:    "PRACTICE — RULES OF THE ROAD",
			Hint:     practiceHint,
			Disabled: noPractice,
			Action:   push(history.ModePractice, question.CategoryRules),
		},
		{
			Label:    "PRACTICE — ROAD SIGNS",
			Hint:     practiceHint,
			Disabled: noPractice,
			Action:   push(history.ModePractice, question.CategorySigns),
		},
		{
			Label:    "CHAPTER REVIEW",
			Hint:     practiceHint,
			Disabled: noPractice,
			Action: func() tea.Cmd {
				return func() tea.Msg {
					return router.PushScreenMsg{
						Screen: chapters.New(h.engine, h.source, h.userID),
					}
				}
			},
		},
		{
			Label:    "FULL SIMULATION",
			Hint:     simulationHint,
			Disabled: noSimulation,
			Action:   push(history.ModeSimulation, ""),
		},
		{
			Label: "HISTORY",
			Action: func() tea.Cmd {
				return func() tea.Msg {
					return router.PushScreenMsg{
						Screen: historyscreen.New(h.ledger, h.userID),
					}
				}
			},
		},
		{
			Label:  "QUIT",
			Action: func() tea.Cmd { return tea.Quit },
		},
	}
}

func renewalHint(at *time.Time) string {
	if at == nil {
		return "(no credits left)"
	}
	return fmt.Sprintf("(renews %s)", at.Format("Mon 15:04"))
}

// Status returns the header status string: the credit balance, or the
// premium marker.
func (h *HomeScreen) Status() string {
	if !h.loaded {
		return ""
	}
	if h.premium {
		return "★ premium"
	}
	return fmt.Sprintf("P %d  S %d", h.balance.Practice, h.balance.Simulation)
}

func (h *HomeScreen) View(width, height int) string {
	var sections []string

	title := theme.Title.Width(width).Render("ROADPREP")
	subtitle := theme.Subtitle.Width(width).Render("Driving theory, one question at a time")
	sections = append(sections, title, subtitle, "")

	if h.errMsg != "" {
		sections = append(sections, lipgloss.NewStyle().
			Width(width).
			Align(lipgloss.Center).
			Foreground(theme.Error).
			Render("Profile unavailable: "+h.errMsg))
	} else if h.loaded {
		sections = append(sections, lipgloss.NewStyle().
			Width(width).
			Align(lipgloss.Center).
			Foreground(theme.TextDim).
			Render(h.balanceLine()))
	}
	sections = append(sections, "")

	menu := lipgloss.PlaceHorizontal(width, lipgloss.Center, h.menu.View())
	sections = append(sections, menu)

	content := strings.Join(sections, "\n")
	return lipgloss.PlaceVertical(height, lipgloss.Center, content)
}

func (h *HomeScreen) balanceLine() string {
	if h.premium {
		return "Premium — unlimited attempts"
	}
	line := fmt.Sprintf("Free attempts this week:  practice %d/%d   simulation %d/%d",
		h.balance.Practice, credits.PracticeQuota,
		h.balance.Simulation, credits.SimulationQuota)
	if h.balance.RenewalAt != nil {
		line += fmt.Sprintf("   next credit %s", h.balance.RenewalAt.Format("Mon 15:04"))
	}
	return line
}
