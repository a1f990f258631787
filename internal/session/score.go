package session

import (
	"math"

	"github.com/roadprep/roadprep/internal/history"
)

// passRatio is the fraction of correct answers required to pass, applied
// overall in practice and chapter modes and per category in simulation.
const passRatio = 0.8

// Outcome is the scored result of a finished session.
type Outcome struct {
	Mode           history.Mode
	Category       string
	CategoryScores map[string]int
	TotalScore     int
	Correct        int
	Total          int
	Passed         bool
	ElapsedSeconds int
}

func percent(correct, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(correct) / float64(total) * 100))
}

// score tallies a session. Unanswered questions count as wrong. A
// simulation passes only when every category clears the pass ratio on
// its own; other modes pass on the overall ratio.
func score(s *Session) Outcome {
	type tally struct{ correct, total int }
	byCategory := make(map[string]*tally)
	correct := 0
	for i, q := range s.Questions {
		t := byCategory[q.Category]
		if t == nil {
			t = &tally{}
			byCategory[q.Category] = t
		}
		t.total++
		if a, ok := s.Answers[i]; ok && a.Correct {
			t.correct++
			correct++
		}
	}

	out := Outcome{
		Mode:           s.Mode,
		Category:       s.Category,
		CategoryScores: make(map[string]int, len(byCategory)),
		TotalScore:     percent(correct, len(s.Questions)),
		Correct:        correct,
		Total:          len(s.Questions),
		ElapsedSeconds: s.ElapsedSeconds,
	}
	for cat, t := range byCategory {
		out.CategoryScores[cat] = percent(t.correct, t.total)
	}

	if s.Mode == history.ModeSimulation {
		out.Passed = len(byCategory) > 0
		for _, t := range byCategory {
			if float64(t.correct) < passRatio*float64(t.total) {
				out.Passed = false
			}
		}
	} else {
		out.Passed = len(s.Questions) > 0 &&
			float64(correct) >= passRatio*float64(len(s.Questions))
	}
	return out
}
