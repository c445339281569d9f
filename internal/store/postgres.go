package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/me/hireflow/pkg/model"
)

// PostgresStore implements Store on a pgx connection pool.
//
// RegisterCompletion locks the job row with SELECT ... FOR UPDATE, which
// serializes completions per job while leaving other jobs unaffected.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewPostgresStore connects to databaseURL and verifies the connection.
func NewPostgresStore(ctx context.Context, databaseURL string, logger *slog.Logger) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &PostgresStore{
		pool:   pool,
		logger: logger.With("component", "store", "driver", "postgres"),
	}, nil
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// Migrate creates all required tables and indexes.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	s.logger.Debug("sql", "op", "migrate")
	for _, stmt := range pgSchema {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// --- Job postings ---

func (s *PostgresStore) CreateJob(ctx context.Context, job *model.JobPosting) error {
	s.logger.Debug("sql", "op", "insert", "table", "job_postings", "id", job.ID)

	keyJSON, err := json.Marshal(nonNil(job.AnswerKey))
	if err != nil {
		return fmt.Errorf("marshal answer key: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO job_postings (id, title, enrolled_count, threshold, top_n, answer_key, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		job.ID, job.Title, job.EnrolledCount, job.Threshold, job.TopN, keyJSON,
		string(job.Status), job.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("create job %s: %w", job.ID, err)
	}
	return nil
}

func (s *PostgresStore) GetJob(ctx context.Context, id string) (*model.JobPosting, error) {
	s.logger.Debug("sql", "op", "select", "table", "job_postings", "id", id)

	row := s.pool.QueryRow(ctx,
		`SELECT id, title, enrolled_count, threshold, top_n, answer_key, status, created_at, closed_at
		 FROM job_postings WHERE id = $1`, id)
	return scanPgJob(row)
}

func (s *PostgresStore) ListJobs(ctx context.Context, opts model.ListOptions) ([]*model.JobPosting, int, error) {
	s.logger.Debug("sql", "op", "list", "table", "job_postings", "limit", opts.Limit, "offset", opts.Offset)
	opts.Clamp()

	var total int
	if err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM job_postings WHERE ($1 = '' OR status = $1)`, opts.Status,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, title, enrolled_count, threshold, top_n, answer_key, status, created_at, closed_at
		 FROM job_postings WHERE ($1 = '' OR status = $1)
		 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		opts.Status, opts.Limit, opts.Offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var jobs []*model.JobPosting
	for rows.Next() {
		job, err := scanPgJob(rows)
		if err != nil {
			return nil, 0, err
		}
		jobs = append(jobs, job)
	}
	return jobs, total, rows.Err()
}

func (s *PostgresStore) CloseJob(ctx context.Context, id string) error {
	s.logger.Debug("sql", "op", "close", "table", "job_postings", "id", id)

	tag, err := s.pool.Exec(ctx,
		`UPDATE job_postings SET status = 'closed', closed_at = NOW() WHERE id = $1 AND status <> 'closed'`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
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

func (s *PostgresStore) RegisterCompletion(ctx context.Context, res *model.AssessmentResult) (int, int, error) {
	s.logger.Debug("sql", "op", "register_completion", "job_id", res.JobID, "candidate_id", res.CandidateID)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var enrolled int
	var status string
	err = tx.QueryRow(ctx,
		`SELECT enrolled_count, status FROM job_postings WHERE id = $1 FOR UPDATE`, res.JobID,
	).Scan(&enrolled, &status)
	if err == pgx.ErrNoRows {
		return 0, 0, &model.InvalidJobStateError{JobID: res.JobID, Reason: model.ReasonUnknownJob}
	}
	if err != nil {
		return 0, 0, err
	}
	if err := checkJobOpen(res.JobID, enrolled, status); err != nil {
		return 0, 0, err
	}

	var exists bool
	if err := tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM assessment_results WHERE job_id = $1 AND candidate_id = $2)`,
		res.JobID, res.CandidateID,
	).Scan(&exists); err != nil {
		return 0, 0, err
	}
	if exists {
		return 0, 0, &model.DuplicateCompletionError{JobID: res.JobID, CandidateID: res.CandidateID}
	}

	var completed int
	if err := tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM assessment_results WHERE job_id = $1`, res.JobID,
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
	if _, err := tx.Exec(ctx,
		`INSERT INTO assessment_results (job_id, candidate_id, candidate_email, score, answers, completed_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		res.JobID, res.CandidateID, res.CandidateEmail, res.Score, answersJSON, res.CompletedAt.UTC(),
	); err != nil {
		return 0, 0, fmt.Errorf("insert result: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, 0, fmt.Errorf("commit: %w", err)
	}
	return completed + 1, enrolled, nil
}

func (s *PostgresStore) GetResult(ctx context.Context, jobID, candidateID string) (*model.AssessmentResult, error) {
	s.logger.Debug("sql", "op", "select", "table", "assessment_results", "job_id", jobID, "candidate_id", candidateID)

	row := s.pool.QueryRow(ctx,
		`SELECT job_id, candidate_id, candidate_email, score, answers, completed_at
		 FROM assessment_results WHERE job_id = $1 AND candidate_id = $2`, jobID, candidateID)
	return scanPgResult(row)
}

func (s *PostgresStore) ListResults(ctx context.Context, jobID string) ([]*model.AssessmentResult, error) {
	s.logger.Debug("sql", "op", "list", "table", "assessment_results", "job_id", jobID)

	rows, err := s.pool.Query(ctx,
		`SELECT job_id, candidate_id, candidate_email, score, answers, completed_at
		 FROM assessment_results WHERE job_id = $1`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*model.AssessmentResult
	for rows.Next() {
		r, err := scanPgResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

func (s *PostgresStore) CountResults(ctx context.Context, jobID string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM assessment_results WHERE job_id = $1`, jobID).Scan(&n)
	return n, err
}

// --- Invitations ---

func (s *PostgresStore) GetInvitation(ctx context.Context, jobID, candidateID string) (*model.InvitationRecord, error) {
	s.logger.Debug("sql", "op", "select", "table", "invitations", "job_id", jobID, "candidate_id", candidateID)

	return scanPgInvitation(s.pool.QueryRow(ctx, pgSelectInvitation, jobID, candidateID))
}

func (s *PostgresStore) CreateInvitation(ctx context.Context, rec *model.InvitationRecord) error {
	s.logger.Debug("sql", "op", "insert", "table", "invitations", "job_id", rec.JobID, "candidate_id", rec.CandidateID)

	return insertPgInvitation(ctx, s.pool, rec)
}

const pgSelectInvitation = `SELECT job_id, candidate_id, sent_at, rank, reason
	FROM invitations WHERE job_id = $1 AND candidate_id = $2`

type pgExecer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func insertPgInvitation(ctx context.Context, db pgExecer, rec *model.InvitationRecord) error {
	tag, err := db.Exec(ctx,
		`INSERT INTO invitations (job_id, candidate_id, sent_at, rank, reason)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (job_id, candidate_id) DO NOTHING`,
		rec.JobID, rec.CandidateID, rec.SentAt.UTC(), rec.Rank, string(rec.Reason),
	)
	if err != nil {
		return fmt.Errorf("insert invitation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInvitationExists
	}
	return nil
}

// LockInvitation opens a transaction holding a transaction-scoped advisory
// lock on the pair, so instances sharing the database dispatch it one at a
// time. The lock lives until Record commits or Release rolls back.
func (s *PostgresStore) LockInvitation(ctx context.Context, jobID, candidateID string) (InvitationLock, error) {
	s.logger.Debug("sql", "op", "advisory_lock", "table", "invitations", "job_id", jobID, "candidate_id", candidateID)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1), hashtext($2))`, jobID, candidateID); err != nil {
		tx.Rollback(context.Background())
		return nil, fmt.Errorf("lock invitation: %w", err)
	}
	return &pgInvitationLock{tx: tx, jobID: jobID, candidateID: candidateID, logger: s.logger}, nil
}

type pgInvitationLock struct {
	tx          pgx.Tx
	jobID       string
	candidateID string
	logger      *slog.Logger
}

func (l *pgInvitationLock) Invitation(ctx context.Context) (*model.InvitationRecord, error) {
	return scanPgInvitation(l.tx.QueryRow(ctx, pgSelectInvitation, l.jobID, l.candidateID))
}

// Record inserts rec and commits, which also releases the lock.
func (l *pgInvitationLock) Record(ctx context.Context, rec *model.InvitationRecord) error {
	if err := insertPgInvitation(ctx, l.tx, rec); err != nil {
		return err
	}
	if err := l.tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit invitation: %w", err)
	}
	return nil
}

func (l *pgInvitationLock) Release() {
	if err := l.tx.Rollback(context.Background()); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		l.logger.Warn("release invitation lock", "job_id", l.jobID, "candidate_id", l.candidateID, "error", err)
	}
}

func (s *PostgresStore) ListInvitations(ctx context.Context, jobID string) ([]*model.InvitationRecord, error) {
	s.logger.Debug("sql", "op", "list", "table", "invitations", "job_id", jobID)

	rows, err := s.pool.Query(ctx,
		`SELECT job_id, candidate_id, sent_at, rank, reason
		 FROM invitations WHERE job_id = $1 ORDER BY rank`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []*model.InvitationRecord
	for rows.Next() {
		rec, err := scanPgInvitation(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

func scanPgJob(row pgx.Row) (*model.JobPosting, error) {
	var job model.JobPosting
	var keyJSON []byte
	var status string

	err := row.Scan(&job.ID, &job.Title, &job.EnrolledCount, &job.Threshold, &job.TopN,
		&keyJSON, &status, &job.CreatedAt, &job.ClosedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	job.Status = model.JobStatus(status)
	if err := json.Unmarshal(keyJSON, &job.AnswerKey); err != nil {
		return nil, fmt.Errorf("unmarshal answer key: %w", err)
	}
	return &job, nil
}

func scanPgResult(row pgx.Row) (*model.AssessmentResult, error) {
	var r model.AssessmentResult
	var answersJSON []byte

	err := row.Scan(&r.JobID, &r.CandidateID, &r.CandidateEmail, &r.Score, &answersJSON, &r.CompletedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(answersJSON, &r.Answers); err != nil {
		return nil, fmt.Errorf("unmarshal answers: %w", err)
	}
	return &r, nil
}

func scanPgInvitation(row pgx.Row) (*model.InvitationRecord, error) {
	var rec model.InvitationRecord
	var reason string

	err := row.Scan(&rec.JobID, &rec.CandidateID, &rec.SentAt, &rec.Rank, &reason)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	rec.Reason = model.InvitationReason(reason)
	return &rec, nil
}
