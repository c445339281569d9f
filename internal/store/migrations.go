package store

import (
	"context"
	"database/sql"
)

// schema contains the SQLite DDL for all hireflow tables.
// Each statement uses IF NOT EXISTS for idempotency.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS job_postings (
		id             TEXT PRIMARY KEY,
		title          TEXT NOT NULL DEFAULT '',
		enrolled_count INTEGER NOT NULL,
		threshold      INTEGER NOT NULL DEFAULT 3,
		top_n          INTEGER NOT NULL DEFAULT 3,
		answer_key     TEXT NOT NULL DEFAULT '[]',
		status         TEXT NOT NULL DEFAULT 'active',
		created_at     TEXT NOT NULL,
		closed_at      TEXT
	)`,

	`CREATE TABLE IF NOT EXISTS assessment_results (
		job_id          TEXT NOT NULL REFERENCES job_postings(id),
		candidate_id    TEXT NOT NULL,
		candidate_email TEXT NOT NULL DEFAULT '',
		score           REAL NOT NULL,
		answers         TEXT NOT NULL DEFAULT '[]',
		completed_at    TEXT NOT NULL,
		PRIMARY KEY (job_id, candidate_id)
	)`,

	// An invitation can only exist for a recorded result.
	`CREATE TABLE IF NOT EXISTS invitations (
		job_id       TEXT NOT NULL,
		candidate_id TEXT NOT NULL,
		sent_at      TEXT NOT NULL,
		rank         INTEGER NOT NULL,
		reason       TEXT NOT NULL,
		PRIMARY KEY (job_id, candidate_id),
		FOREIGN KEY (job_id, candidate_id) REFERENCES assessment_results(job_id, candidate_id)
	)`,

	`CREATE INDEX IF NOT EXISTS idx_job_postings_status ON job_postings(status)`,
	`CREATE INDEX IF NOT EXISTS idx_assessment_results_job_id ON assessment_results(job_id)`,
	`CREATE INDEX IF NOT EXISTS idx_invitations_job_id ON invitations(job_id)`,
}

// migrate executes all schema DDL statements.
func migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// pgSchema is the PostgreSQL equivalent of schema.
var pgSchema = []string{
	`CREATE TABLE IF NOT EXISTS job_postings (
		id             TEXT PRIMARY KEY,
		title          TEXT NOT NULL DEFAULT '',
		enrolled_count INTEGER NOT NULL,
		threshold      INTEGER NOT NULL DEFAULT 3,
		top_n          INTEGER NOT NULL DEFAULT 3,
		answer_key     JSONB NOT NULL DEFAULT '[]',
		status         TEXT NOT NULL DEFAULT 'active',
		created_at     TIMESTAMPTZ NOT NULL,
		closed_at      TIMESTAMPTZ
	)`,

	`CREATE TABLE IF NOT EXISTS assessment_results (
		job_id          TEXT NOT NULL REFERENCES job_postings(id),
		candidate_id    TEXT NOT NULL,
		candidate_email TEXT NOT NULL DEFAULT '',
		score           DOUBLE PRECISION NOT NULL,
		answers         JSONB NOT NULL DEFAULT '[]',
		completed_at    TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (job_id, candidate_id)
	)`,

	`CREATE TABLE IF NOT EXISTS invitations (
		job_id       TEXT NOT NULL,
		candidate_id TEXT NOT NULL,
		sent_at      TIMESTAMPTZ NOT NULL,
		rank         INTEGER NOT NULL,
		reason       TEXT NOT NULL,
		PRIMARY KEY (job_id, candidate_id),
		FOREIGN KEY (job_id, candidate_id) REFERENCES assessment_results(job_id, candidate_id)
	)`,

	`CREATE INDEX IF NOT EXISTS idx_job_postings_status ON job_postings(status)`,
	`CREATE INDEX IF NOT EXISTS idx_invitations_job_id ON invitations(job_id)`,
}
