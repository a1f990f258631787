package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/roadprep/roadprep/internal/history"
)

// AttemptRepo is the SQLite-backed usage ledger. Rows are append-only:
// there is deliberately no update or delete method.
type AttemptRepo struct {
	db *sql.DB
}

var _ history.Ledger = (*AttemptRepo)(nil)

func (r *AttemptRepo) Append(ctx context.Context, rec history.Record) error {
	scores, err := json.Marshal(rec.CategoryScores)
	if err != nil {
		return fmt.Errorf("marshal category scores: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO attempts (user_id, created_at, mode, category, category_scores, total_score, passed)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.UserID, rec.CreatedAt.Unix(), string(rec.Mode), rec.Category,
		string(scores), rec.TotalScore, boolToInt(rec.Passed))
	if err != nil {
		return &history.ErrUnavailable{Err: fmt.Errorf("append attempt: %w", err)}
	}
	return nil
}

func (r *AttemptRepo) Since(ctx context.Context, userID string, since time.Time) ([]history.Record, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT user_id, created_at, mode, category, category_scores, total_score, passed
		 FROM attempts WHERE user_id = ? AND created_at >= ? ORDER BY created_at ASC`,
		userID, since.Unix())
	if err != nil {
		return nil, &history.ErrUnavailable{Err: fmt.Errorf("query attempts since: %w", err)}
	}
	defer rows.Close()
	return scanRecords(rows)
}

func (r *AttemptRepo) Recent(ctx context.Context, userID string, limit int) ([]history.Record, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT user_id, created_at, mode, category, category_scores, total_score, passed
		 FROM attempts WHERE user_id = ? ORDER BY created_at DESC LIMIT ?`,
		userID, limit)
	if err != nil {
		return nil, &history.ErrUnavailable{Err: fmt.Errorf("query recent attempts: %w", err)}
	}
	defer rows.Close()
	return scanRecords(rows)
}

func scanRecords(rows *sql.Rows) ([]history.Record, error) {
	var out []history.Record
	for rows.Next() {
		var rec history.Record
		var createdAt int64
		var mode, scores string
		var passed int
		if err := rows.Scan(&rec.UserID, &createdAt, &mode, &rec.Category,
			&scores, &rec.TotalScore, &passed); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		rec.CreatedAt = time.Unix(createdAt, 0).UTC()
		rec.Mode = history.Mode(mode)
		rec.Passed = passed != 0
		if err := json.Unmarshal([]byte(scores), &rec.CategoryScores); err != nil {
			return nil, fmt.Errorf("decode category scores: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
