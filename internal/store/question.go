package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/roadprep/roadprep/internal/question"
)

// QuestionRepo is the SQLite-backed question source.
type QuestionRepo struct {
	db *sql.DB
}

var _ question.Source = (*QuestionRepo)(nil)

const questionCols = `id, text, options, correct_index, category, chapter, explanation, media_url`

func (r *QuestionRepo) ByChapter(ctx context.Context, chapter string) ([]question.Question, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+questionCols+` FROM questions WHERE chapter = ? ORDER BY id`, chapter)
	if err != nil {
		return nil, &question.ErrUnavailable{Err: fmt.Errorf("query chapter %q: %w", chapter, err)}
	}
	defer rows.Close()
	return scanQuestions(rows)
}

// Random draws without replacement within one call; ORDER BY RANDOM()
// never returns the same row twice in one result set.
func (r *QuestionRepo) Random(ctx context.Context, category string, n int) ([]question.Question, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+questionCols+` FROM questions WHERE category = ? ORDER BY RANDOM() LIMIT ?`,
		category, n)
	if err != nil {
		return nil, &question.ErrUnavailable{Err: fmt.Errorf("query random %q: %w", category, err)}
	}
	defer rows.Close()
	return scanQuestions(rows)
}

func (r *QuestionRepo) Chapters(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT chapter FROM questions WHERE chapter != '' ORDER BY chapter`)
	if err != nil {
		return nil, &question.ErrUnavailable{Err: fmt.Errorf("query chapters: %w", err)}
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("scan chapter: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Insert adds questions to the bank. Used by import tooling only; the
// engine itself never writes questions.
func (r *QuestionRepo) Insert(ctx context.Context, qs []question.Question) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO questions (text, options, correct_index, category, chapter, explanation, media_url)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, q := range qs {
		opts, err := json.Marshal(q.Options)
		if err != nil {
			return fmt.Errorf("marshal options: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, q.Text, string(opts), q.CorrectIndex,
			q.Category, q.Chapter, q.Explanation, q.MediaURL); err != nil {
			return fmt.Errorf("insert question: %w", err)
		}
	}

	return tx.Commit()
}

// Count returns the number of questions in the bank.
func (r *QuestionRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM questions`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count questions: %w", err)
	}
	return n, nil
}

func scanQuestions(rows *sql.Rows) ([]question.Question, error) {
	var out []question.Question
	for rows.Next() {
		var q question.Question
		var opts string
		if err := rows.Scan(&q.ID, &q.Text, &opts, &q.CorrectIndex,
			&q.Category, &q.Chapter, &q.Explanation, &q.MediaURL); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		if err := json.Unmarshal([]byte(opts), &q.Options); err != nil {
			return nil, fmt.Errorf("decode options for question %d: %w", q.ID, err)
		}
		out = append(out, q)
	}
	return out, rows.Err()
}
