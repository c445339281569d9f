package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/me/hireflow/pkg/model"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite.
//
// The pool is limited to a single connection, so every transaction is
// serialized. This is what makes RegisterCompletion atomic per job, and it
// keeps ":memory:" databases shared across calls.
type SQLiteStore struct {
	db     *sql.DB
	locks  *keyedMutex
	logger *slog.Logger
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and returns a Store.
// Use ":memory:" for an in-memory database (useful in tests).
func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma wal: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma busy_timeout: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		locks:  newKeyedMutex(),
		logger: logger.With("component", "store", "driver", "sqlite"),
	}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Migrate creates all required tables and indexes.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	s.logger.Debug("sql", "op", "migrate")
	return migrate(ctx, s.db)
}

// --- Job postings ---

func (s *SQLiteStore) CreateJob(ctx context.Context, job *model.JobPosting) error {
	s.logger.Debug("sql", "op", "insert", "table", "job_postings", "id", job.ID)

	keyJSON, err := json.Marshal(nonNil(job.AnswerKey))
	if err != nil {
		return fmt.Errorf("marshal answer key: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO job_postings (id, title, enrolled_count, threshold, top_n, answer_key, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.Title, job.EnrolledCount, job.Threshold, job.TopN, string(keyJSON),
		string(job.Status), job.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	return err
}

func (s *SQLiteStore) GetJob(ctx context.Context, id string) (*model.JobPosting, error) {
	s.logger.Debug("sql", "op", "select", "table", "job_postings", "id", id)

	row := s.db.QueryRowContext(ctx,
		`SELECT id, title, enrolled_count, threshold, top_n, answer_key, status, created_at, closed_at
		 FROM job_postings WHERE id = ?`, id)
	return scanJob(row)
}

func (s *SQLiteStore) ListJobs(ctx context.Context, opts model.ListOptions) ([]*model.JobPosting, int, error) {
	s.logger.Debug("sql", "op", "list", "table", "job_postings", "limit", opts.Limit, "offset", opts.Offset)
	opts.Clamp()

	where := ""
	args := []any{}
	if opts.Status != "" {
		where = " WHERE status = ?"
		args = append(args, opts.Status)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM job_postings`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, enrolled_count, threshold, top_n, answer_key, status, created_at, closed_at
		 FROM job_postings`+where+` ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		append(args, opts.Limit, opts.Offset)...,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var jobs []*model.JobPosting
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, 0, err
		}
		jobs = append(jobs, job)
	}
	return jobs, total, rows.Err()
}

func (s *SQLiteStore) CloseJob(ctx context.Context, id string) error {
	s.logger.Debug("sql", "op", "close", "table", "job_postings", "id", id)

	res, err := s.db.ExecContext(ctx,
		`UPDATE job_postings SET status = 'closed', closed_at = ? WHERE id = ? AND status != 'closed'`,
		time.Now().UTC().Format(time.RFC3339Nano), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		job, err := s.GetJob(ctx, id)
		if err != nil {
			return err
		}
		if job == nil {
			return &model.InvalidJobStateError{JobID: id, Reason: model.ReasonUnknownJob}
		}
	}
	return nil
}

// --- Assessment results ---

// RegisterCompletion runs the duplicate check, the capacity check and the
// insert inside one transaction.
func (s *SQLiteStore) RegisterCompletion(ctx context.Context, res *model.AssessmentResult) (int, int, error) {
	s.logger.Debug("sql", "op", "register_completion", "job_id", res.JobID, "candidate_id", res.CandidateID)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var enrolled int
	var status string
	err = tx.QueryRowContext(ctx,
		`SELECT enrolled_count, status FROM job_postings WHERE id = ?`, res.JobID,
	).Scan(&enrolled, &status)
	if err == sql.ErrNoRows {
		return 0, 0, &model.InvalidJobStateError{JobID: res.JobID, Reason: model.ReasonUnknownJob}
	}
	if err != nil {
		return 0, 0, err
	}
	if err := checkJobOpen(res.JobID, enrolled, status); err != nil {
		return 0, 0, err
	}

	var exists int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM assessment_results WHERE job_id = ? AND candidate_id = ?`,
		res.JobID, res.CandidateID,
	).Scan(&exists); err != nil {
		return 0, 0, err
	}
	if exists > 0 {
		return 0, 0, &model.DuplicateCompletionError{JobID: res.JobID, CandidateID: res.CandidateID}
	}

	var completed int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM assessment_results WHERE job_id = ?`, res.JobID,
	).Scan(&completed); err != nil {
		return 0, 0, err
	}
	if completed >= enrolled {
		return 0, 0, &model.JobFullError{JobID: res.JobID, Enrolled: enrolled}
	}

	if res.CompletedAt.IsZero() {
		res.CompletedAt = time.Now().UTC()
	}
	answersJSON, err := json.Marshal(nonNil(res.Answers))
	if err != nil {
		return 0, 0, fmt.Errorf("marshal answers: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO assessment_results (job_id, candidate_id, candidate_email, score, answers, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		res.JobID, res.CandidateID, res.CandidateEmail, res.Score, string(answersJSON),
		res.CompletedAt.UTC().Format(time.RFC3339Nano),
	); err != nil {
		return 0, 0, fmt.Errorf("insert result: %w", err)
	}

	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM assessment_results WHERE job_id = ?`, res.JobID,
	).Scan(&completed); err != nil {
		return 0, 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("commit: %w", err)
	}
	return completed, enrolled, nil
}

func (s *SQLiteStore) GetResult(ctx context.Context, jobID, candidateID string) (*model.AssessmentResult, error) {
	s.logger.Debug("sql", "op", "select", "table", "assessment_results", "job_id", jobID, "candidate_id", candidateID)

	row := s.db.QueryRowContext(ctx,
		`SELECT job_id, candidate_id, candidate_email, score, answers, completed_at
		 FROM assessment_results WHERE job_id = ? AND candidate_id = ?`, jobID, candidateID)
	return scanResult(row)
}

func (s *SQLiteStore) ListResults(ctx context.Context, jobID string) ([]*model.AssessmentResult, error) {
	s.logger.Debug("sql", "op", "list", "table", "assessment_results", "job_id", jobID)

	rows, err := s.db.QueryContext(ctx,
		`SELECT job_id, candidate_id, candidate_email, score, answers, completed_at
		 FROM assessment_results WHERE job_id = ?`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*model.AssessmentResult
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

func (s *SQLiteStore) CountResults(ctx context.Context, jobID string) (int, error) {
	s.logger.Debug("sql", "op", "count", "table", "assessment_results", "job_id", jobID)

	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM assessment_results WHERE job_id = ?`, jobID).Scan(&n)
	return n, err
}

// --- Invitations ---

func (s *SQLiteStore) GetInvitation(ctx context.Context, jobID, candidateID string) (*model.InvitationRecord, error) {
	s.logger.Debug("sql", "op", "select", "table", "invitations", "job_id", jobID, "candidate_id", candidateID)

	row := s.db.QueryRowContext(ctx,
		`SELECT job_id, candidate_id, sent_at, rank, reason
		 FROM invitations WHERE job_id = ? AND candidate_id = ?`, jobID, candidateID)
	return scanInvitation(row)
}

// CreateInvitation inserts rec unless a record for the same pair exists,
// in which case it returns ErrInvitationExists.
func (s *SQLiteStore) CreateInvitation(ctx context.Context, rec *model.InvitationRecord) error {
	s.logger.Debug("sql", "op", "insert", "table", "invitations", "job_id", rec.JobID, "candidate_id", rec.CandidateID)

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO invitations (job_id, candidate_id, sent_at, rank, reason)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (job_id, candidate_id) DO NOTHING`,
		rec.JobID, rec.CandidateID, rec.SentAt.UTC().Format(time.RFC3339Nano), rec.Rank, string(rec.Reason),
	)
	if err != nil {
		return fmt.Errorf("insert invitation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrInvitationExists
	}
	return nil
}

// LockInvitation takes an in-process lock for the pair. A SQLite file is
// served by one process, so no cross-process lock is needed.
func (s *SQLiteStore) LockInvitation(ctx context.Context, jobID, candidateID string) (InvitationLock, error) {
	unlock, err := s.locks.Lock(ctx, jobID+"\x00"+candidateID)
	if err != nil {
		return nil, err
	}
	return &sqliteInvitationLock{s: s, jobID: jobID, candidateID: candidateID, unlock: unlock}, nil
}

type sqliteInvitationLock struct {
	s           *SQLiteStore
	jobID       string
	candidateID string
	once        sync.Once
	unlock      func()
}

func (l *sqliteInvitationLock) Invitation(ctx context.Context) (*model.InvitationRecord, error) {
	return l.s.GetInvitation(ctx, l.jobID, l.candidateID)
}

func (l *sqliteInvitationLock) Record(ctx context.Context, rec *model.InvitationRecord) error {
	return l.s.CreateInvitation(ctx, rec)
}

func (l *sqliteInvitationLock) Release() {
	l.once.Do(l.unlock)
}

func (s *SQLiteStore) ListInvitations(ctx context.Context, jobID string) ([]*model.InvitationRecord, error) {
	s.logger.Debug("sql", "op", "list", "table", "invitations", "job_id", jobID)

	rows, err := s.db.QueryContext(ctx,
		`SELECT job_id, candidate_id, sent_at, rank, reason
		 FROM invitations WHERE job_id = ? ORDER BY rank`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []*model.InvitationRecord
	for rows.Next() {
		rec, err := scanInvitation(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// --- scan helpers ---

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(row scanner) (*model.JobPosting, error) {
	var job model.JobPosting
	var keyJSON, status, createdAt string
	var closedAt *string

	err := row.Scan(&job.ID, &job.Title, &job.EnrolledCount, &job.Threshold, &job.TopN,
		&keyJSON, &status, &createdAt, &closedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	job.Status = model.JobStatus(status)
	if err := json.Unmarshal([]byte(keyJSON), &job.AnswerKey); err != nil {
		return nil, fmt.Errorf("unmarshal answer key: %w", err)
	}
	if job.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return nil, err
	}
	if closedAt != nil {
		t, err := parseTime("closed_at", *closedAt)
		if err != nil {
			return nil, err
		}
		job.ClosedAt = &t
	}
	return &job, nil
}

func scanResult(row scanner) (*model.AssessmentResult, error) {
	var r model.AssessmentResult
	var answersJSON, completedAt string

	err := row.Scan(&r.JobID, &r.CandidateID, &r.CandidateEmail, &r.Score, &answersJSON, &completedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(answersJSON), &r.Answers); err != nil {
		return nil, fmt.Errorf("unmarshal answers: %w", err)
	}
	if r.CompletedAt, err = parseTime("completed_at", completedAt); err != nil {
		return nil, err
	}
	return &r, nil
}

func scanInvitation(row scanner) (*model.InvitationRecord, error) {
	var rec model.InvitationRecord
	var sentAt, reason string

	err := row.Scan(&rec.JobID, &rec.CandidateID, &sentAt, &rec.Rank, &reason)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rec.Reason = model.InvitationReason(reason)
	if rec.SentAt, err = parseTime("sent_at", sentAt); err != nil {
		return nil, err
	}
	return &rec, nil
}

func parseTime(column, v string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse %s %q: %w", column, v, err)
	}
	return t, nil
}

// checkJobOpen rejects completions for jobs that cannot accept them.
func checkJobOpen(jobID string, enrolled int, status string) error {
	if enrolled <= 0 {
		return &model.InvalidJobStateError{JobID: jobID, Reason: "job has no enrolled candidates"}
	}
	if model.JobStatus(status) == model.JobStatusClosed {
		return &model.InvalidJobStateError{JobID: jobID, Reason: "job is closed"}
	}
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
