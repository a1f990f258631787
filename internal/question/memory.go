package question

import (
	"context"
	"math/rand/v2"
	"sort"
)

// MemorySource is an in-memory Source backed by a fixed slice of questions.
// Used in tests and as a stand-in when no database is configured.
type MemorySource struct {
	questions []Question
}

// NewMemorySource creates a MemorySource over the given questions.
func NewMemorySource(qs []Question) *MemorySource {
	return &MemorySource{questions: qs}
}

func (m *MemorySource) ByChapter(_ context.Context, chapter string) ([]Question, error) {
	var out []Question
	for _, q := range m.questions {
		if q.Chapter == chapter {
			out = append(out, q)
		}
	}
	return out, nil
}

func (m *MemorySource) Random(_ context.Context, category string, n int) ([]Question, error) {
	var pool []Question
	for _, q := range m.questions {
		if q.Category == category {
			pool = append(pool, q)
		}
	}
	rand.Shuffle(len(pool), func(i, j int) {
		pool[i], pool[j] = pool[j], pool[i]
	})
	if n > len(pool) {
		n = len(pool)
	}
	return pool[:n], nil
}

func (m *MemorySource) Chapters(_ context.Context) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	for _, q := range m.questions {
		if q.Chapter != "" && !seen[q.Chapter] {
			seen[q.Chapter] = true
			out = append(out, q.Chapter)
		}
	}
	sort.Strings(out)
	return out, nil
}
