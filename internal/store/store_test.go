package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/roadprep/roadprep/internal/history"
	"github.com/roadprep/roadprep/internal/identity"
	"github.com/roadprep/roadprep/internal/profile"
	"github.com/roadprep/roadprep/internal/question"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open("file::memory:?cache=shared")
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleQuestions(category, chapter string, n int) []question.Question {
	qs := make([]question.Question, n)
	for i := range qs {
		qs[i] = question.Question{
			Text:         "What does this sign mean?",
			Options:      []string{"Stop", "Yield", "No entry", "One way"},
			CorrectIndex: i % 4,
			Category:     category,
			Chapter:      chapter,
			Explanation:  "Covered in the chapter on priority rules.",
		}
	}
	return qs
}

func TestPragmasApplied(t *testing.T) {
	s := openTestStore(t)
	db := s.DB()

	tests := []struct {
		pragma string
		want   string
	}{
		// WAL mode falls back to "memory" for in-memory databases,
		// so journal_mode is only meaningful with file-based DBs.
		{"foreign_keys", "1"},
		{"synchronous", "1"}, // NORMAL = 1
	}

	for _, tt := range tests {
		var got string
		err := db.QueryRow("PRAGMA " + tt.pragma).Scan(&got)
		if err != nil {
			t.Errorf("PRAGMA %s: %v", tt.pragma, err)
			continue
		}
		if got != tt.want {
			t.Errorf("PRAGMA %s = %q, want %q", tt.pragma, got, tt.want)
		}
	}
}

func TestMigrationCreatesTables(t *testing.T) {
	s := openTestStore(t)
	db := s.DB()

	for _, table := range []string{"questions", "attempts", "profiles", "kv"} {
		var name string
		err := db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %s: %v", table, err)
		}
	}
}

func TestQuestionInsertAndCount(t *testing.T) {
	s := openTestStore(t)
	repo := s.Questions()
	ctx := context.Background()

	count, err := repo.Count(ctx)
	if err != nil {
		t.Fatalf("count (empty): %v", err)
	}
	if count != 0 {
		t.Fatalf("count = %d, want 0", count)
	}

	if err := repo.Insert(ctx, sampleQuestions(question.CategoryRules, "Right of way", 3)); err != nil {
		t.Fatalf("insert: %v", err)
	}

	count, err = repo.Count(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 3 {
		t.Errorf("count = %d, want 3", count)
	}
}

func TestQuestionRandomDrawsFromCategory(t *testing.T) {
	s := openTestStore(t)
	repo := s.Questions()
	ctx := context.Background()

	if err := repo.Insert(ctx, sampleQuestions(question.CategoryRules, "Right of way", 10)); err != nil {
		t.Fatalf("insert rules: %v", err)
	}
	if err := repo.Insert(ctx, sampleQuestions(question.CategorySigns, "Warning signs", 10)); err != nil {
		t.Fatalf("insert signs: %v", err)
	}

	qs, err := repo.Random(ctx, question.CategorySigns, 5)
	if err != nil {
		t.Fatalf("random: %v", err)
	}
	if len(qs) != 5 {
		t.Fatalf("drew %d questions, want 5", len(qs))
	}
	seen := make(map[int64]bool)
	for _, q := range qs {
		if q.Category != question.CategorySigns {
			t.Errorf("question %d category = %q, want %q", q.ID, q.Category, question.CategorySigns)
		}
		if len(q.Options) != 4 {
			t.Errorf("question %d has %d options, want 4", q.ID, len(q.Options))
		}
		if seen[q.ID] {
			t.Errorf("question %d drawn twice in one call", q.ID)
		}
		seen[q.ID] = true
	}
}

func TestQuestionRandomShortBank(t *testing.T) {
	s := openTestStore(t)
	repo := s.Questions()
	ctx := context.Background()

	if err := repo.Insert(ctx, sampleQuestions(question.CategoryRules, "Right of way", 3)); err != nil {
		t.Fatalf("insert: %v", err)
	}

	qs, err := repo.Random(ctx, question.CategoryRules, 20)
	if err != nil {
		t.Fatalf("random: %v", err)
	}
	if len(qs) != 3 {
		t.Errorf("drew %d questions, want all 3", len(qs))
	}
}

func TestQuestionByChapter(t *testing.T) {
	s := openTestStore(t)
	repo := s.Questions()
	ctx := context.Background()

	if err := repo.Insert(ctx, sampleQuestions(question.CategoryRules, "Right of way", 4)); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := repo.Insert(ctx, sampleQuestions(question.CategoryRules, "Speed limits", 2)); err != nil {
		t.Fatalf("insert: %v", err)
	}

	qs, err := repo.ByChapter(ctx, "Speed limits")
	if err != nil {
		t.Fatalf("by chapter: %v", err)
	}
	if len(qs) != 2 {
		t.Fatalf("got %d questions, want 2", len(qs))
	}
	for _, q := range qs {
		if q.Chapter != "Speed limits" {
			t.Errorf("question %d chapter = %q", q.ID, q.Chapter)
		}
	}

	qs, err = repo.ByChapter(ctx, "No such chapter")
	if err != nil {
		t.Fatalf("by chapter (absent): %v", err)
	}
	if len(qs) != 0 {
		t.Errorf("got %d questions for absent chapter, want 0", len(qs))
	}
}

func TestQuestionChapters(t *testing.T) {
	s := openTestStore(t)
	repo := s.Questions()
	ctx := context.Background()

	if err := repo.Insert(ctx, sampleQuestions(question.CategoryRules, "Speed limits", 1)); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := repo.Insert(ctx, sampleQuestions(question.CategoryRules, "Right of way", 1)); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := repo.Insert(ctx, sampleQuestions(question.CategorySigns, "", 1)); err != nil {
		t.Fatalf("insert: %v", err)
	}

	chapters, err := repo.Chapters(ctx)
	if err != nil {
		t.Fatalf("chapters: %v", err)
	}
	want := []string{"Right of way", "Speed limits"}
	if len(chapters) != len(want) {
		t.Fatalf("chapters = %v, want %v", chapters, want)
	}
	for i := range want {
		if chapters[i] != want[i] {
			t.Errorf("chapters[%d] = %q, want %q", i, chapters[i], want[i])
		}
	}
}

func TestAttemptAppendAndSince(t *testing.T) {
	s := openTestStore(t)
	repo := s.Attempts()
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second)
	recs := []history.Record{
		{UserID: "u1", CreatedAt: base.Add(-10 * 24 * time.Hour), Mode: history.ModePractice,
			Category: question.CategoryRules, CategoryScores: map[string]int{question.CategoryRules: 90},
			TotalScore: 90, Passed: true},
		{UserID: "u1", CreatedAt: base.Add(-2 * time.Hour), Mode: history.ModeSimulation,
			CategoryScores: map[string]int{question.CategoryRules: 85, question.CategorySigns: 70},
			TotalScore:     78, Passed: false},
		{UserID: "u1", CreatedAt: base.Add(-time.Hour), Mode: history.ModePractice,
			Category: question.CategorySigns, CategoryScores: map[string]int{question.CategorySigns: 80},
			TotalScore: 80, Passed: true},
		{UserID: "u2", CreatedAt: base.Add(-time.Hour), Mode: history.ModePractice,
			Category: question.CategoryRules, CategoryScores: map[string]int{question.CategoryRules: 50},
			TotalScore: 50, Passed: false},
	}
	for i, rec := range recs {
		if err := repo.Append(ctx, rec); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	got, err := repo.Since(ctx, "u1", base.Add(-7*24*time.Hour))
	if err != nil {
		t.Fatalf("since: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d records in window, want 2", len(got))
	}
	if !got[0].CreatedAt.Before(got[1].CreatedAt) {
		t.Error("records not ordered oldest first")
	}
	if got[0].Mode != history.ModeSimulation {
		t.Errorf("first windowed record mode = %q, want simulation", got[0].Mode)
	}
	if got[0].CategoryScores[question.CategorySigns] != 70 {
		t.Errorf("category score = %d, want 70", got[0].CategoryScores[question.CategorySigns])
	}
	if got[0].Passed {
		t.Error("simulation record should not be passed")
	}
}

func TestAttemptRecentNewestFirst(t *testing.T) {
	s := openTestStore(t)
	repo := s.Attempts()
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second)
	for i := 0; i < 5; i++ {
		rec := history.Record{
			UserID:         "u1",
			CreatedAt:      base.Add(time.Duration(i) * time.Minute),
			Mode:           history.ModePractice,
			Category:       question.CategoryRules,
			CategoryScores: map[string]int{question.CategoryRules: 60 + i},
			TotalScore:     60 + i,
			Passed:         false,
		}
		if err := repo.Append(ctx, rec); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	got, err := repo.Recent(ctx, "u1", 3)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d records, want 3", len(got))
	}
	if got[0].TotalScore != 64 {
		t.Errorf("newest record score = %d, want 64", got[0].TotalScore)
	}
	if got[2].TotalScore != 62 {
		t.Errorf("oldest returned score = %d, want 62", got[2].TotalScore)
	}
}

func TestEnsureLocalIdempotent(t *testing.T) {
	s := openTestStore(t)
	repo := s.Profiles()
	ctx := context.Background()

	first, err := repo.EnsureLocal(ctx)
	if err != nil {
		t.Fatalf("ensure local (first): %v", err)
	}
	if first.ID == "" {
		t.Fatal("expected a generated principal id")
	}

	second, err := repo.EnsureLocal(ctx)
	if err != nil {
		t.Fatalf("ensure local (second): %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("second principal id = %q, want %q", second.ID, first.ID)
	}
}

func TestProfileGetAndSetPremium(t *testing.T) {
	s := openTestStore(t)
	repo := s.Profiles()
	ctx := context.Background()

	principal, err := repo.EnsureLocal(ctx)
	if err != nil {
		t.Fatalf("ensure local: %v", err)
	}

	p, err := repo.Get(ctx, principal.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if p.Premium {
		t.Error("new profile should not be premium")
	}

	p, err = repo.SetPremium(ctx, principal.ID, true)
	if err != nil {
		t.Fatalf("set premium: %v", err)
	}
	if !p.Premium {
		t.Error("premium flag not set")
	}

	p, err = repo.Get(ctx, principal.ID)
	if err != nil {
		t.Fatalf("get after set: %v", err)
	}
	if !p.Premium {
		t.Error("premium flag did not persist")
	}
}

func TestProfileNotFound(t *testing.T) {
	s := openTestStore(t)
	repo := s.Profiles()
	ctx := context.Background()

	_, err := repo.Get(ctx, "nobody")
	if !errors.Is(err, profile.ErrNotFound) {
		t.Errorf("get absent profile: err = %v, want ErrNotFound", err)
	}

	_, err = repo.SetPremium(ctx, "nobody", true)
	if !errors.Is(err, profile.ErrNotFound) {
		t.Errorf("set premium on absent profile: err = %v, want ErrNotFound", err)
	}
}

func TestIdentityCheckSession(t *testing.T) {
	s := openTestStore(t)
	ident := s.Identity()
	ctx := context.Background()

	principal, err := ident.Current(ctx)
	if err != nil {
		t.Fatalf("current: %v", err)
	}

	if err := ident.CheckSession(ctx, principal.ID); err != nil {
		t.Errorf("check session for existing principal: %v", err)
	}

	err = ident.CheckSession(ctx, "ghost")
	if !errors.Is(err, identity.ErrSessionInvalid) {
		t.Errorf("check absent session: err = %v, want ErrSessionInvalid", err)
	}
}

func TestKVRoundTrip(t *testing.T) {
	s := openTestStore(t)
	kv := s.KV()
	ctx := context.Background()

	_, ok, err := kv.Get(ctx, "missing")
	if err != nil {
		t.Fatalf("get missing: %v", err)
	}
	if ok {
		t.Fatal("expected missing key to report !ok")
	}

	if err := kv.Set(ctx, "session/practice", `{"id":"abc"}`); err != nil {
		t.Fatalf("set: %v", err)
	}
	v, ok, err := kv.Get(ctx, "session/practice")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !ok || v != `{"id":"abc"}` {
		t.Errorf("get = %q, %v", v, ok)
	}

	// Overwrite replaces the value.
	if err := kv.Set(ctx, "session/practice", `{"id":"def"}`); err != nil {
		t.Fatalf("set (overwrite): %v", err)
	}
	v, _, err = kv.Get(ctx, "session/practice")
	if err != nil {
		t.Fatalf("get after overwrite: %v", err)
	}
	if v != `{"id":"def"}` {
		t.Errorf("get after overwrite = %q", v)
	}

	if err := kv.Remove(ctx, "session/practice"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	_, ok, err = kv.Get(ctx, "session/practice")
	if err != nil {
		t.Fatalf("get after remove: %v", err)
	}
	if ok {
		t.Error("key still present after remove")
	}

	// Removing an absent key is not an error.
	if err := kv.Remove(ctx, "session/practice"); err != nil {
		t.Errorf("remove absent key: %v", err)
	}
}
