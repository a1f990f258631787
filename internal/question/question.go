package question

import (
	"context"
	"fmt"
)

// The two exam categories. A full simulation draws from both.
const (
	CategoryRules = "Rules of the Road"
	CategorySigns = "Road Signs"
)

// SimulationCategories are the fixed categories a simulation exam covers,
// in presentation order.
var SimulationCategories = [2]string{CategoryRules, CategorySigns}

// Question is a single multiple-choice item from the bank. Questions are
// immutable from the engine's perspective; the bank is maintained out of
// band via import tooling.
type Question struct {
	ID           int64    `json:"id"`
	Text         string   `json:"text"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correct_index"`
	Category     string   `json:"category"`
	Chapter      string   `json:"chapter"`
	Explanation  string   `json:"explanation,omitempty"`
	MediaURL     string   `json:"media_url,omitempty"`
}

// Source provides read access to the question bank.
type Source interface {
	// ByChapter returns every question in the given chapter.
	ByChapter(ctx context.Context, chapter string) ([]Question, error)

	// Random returns up to n questions from the given category, drawn
	// without replacement within a single call. Freshness of randomness
	// across calls is the source's business.
	Random(ctx context.Context, category string, n int) ([]Question, error)

	// Chapters lists the distinct chapters present in the bank.
	Chapters(ctx context.Context) ([]string, error)
}

// ErrUnavailable indicates the question bank could not be reached.
// A session start that hits this error fails outright; the engine never
// starts a session on a partial or empty pull.
type ErrUnavailable struct {
	Err error
}

func (e *ErrUnavailable) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("question source unavailable: %v", e.Err)
	}
	return "question source unavailable"
}

func (e *ErrUnavailable) Unwrap() error { return e.Err }
