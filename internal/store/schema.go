package store

import (
	"database/sql"
	"fmt"
)

// migrate creates missing tables. Columns are stable; there is no
// versioned migration history for a single-user local database.
func migrate(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS questions (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			text          TEXT NOT NULL,
			options       TEXT NOT NULL,
			correct_index INTEGER NOT NULL,
			category      TEXT NOT NULL,
			chapter       TEXT NOT NULL,
			explanation   TEXT NOT NULL DEFAULT '',
			media_url     TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_questions_category ON questions (category)`,
		`CREATE INDEX IF NOT EXISTS idx_questions_chapter ON questions (chapter)`,

		// Append-only: the engine has no UPDATE or DELETE path for attempts.
		`CREATE TABLE IF NOT EXISTS attempts (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id         TEXT NOT NULL,
			created_at      INTEGER NOT NULL,
			mode            TEXT NOT NULL,
			category        TEXT NOT NULL DEFAULT '',
			category_scores TEXT NOT NULL DEFAULT '{}',
			total_score     INTEGER NOT NULL,
			passed          INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_attempts_user_created ON attempts (user_id, created_at)`,

		`CREATE TABLE IF NOT EXISTS profiles (
			id         TEXT PRIMARY KEY,
			email      TEXT NOT NULL DEFAULT '',
			is_premium INTEGER NOT NULL DEFAULT 0,
			is_admin   INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS kv (
			key        TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("exec schema statement: %w", err)
		}
	}
	return nil
}
