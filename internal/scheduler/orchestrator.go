package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/me/hireflow/internal/dispatch"
	"github.com/me/hireflow/internal/policy"
	"github.com/me/hireflow/internal/ranking"
	"github.com/me/hireflow/internal/scoring"
	"github.com/me/hireflow/internal/store"
	"github.com/me/hireflow/pkg/model"
)

// Orchestrator wires the completion tracker, trigger policy, ranking and
// dispatcher together.
type Orchestrator struct {
	store      store.Store
	selector   *ranking.Selector
	dispatcher *dispatch.Dispatcher
	config     Config
	logger     *slog.Logger
}

// New creates an Orchestrator.
func New(st store.Store, d *dispatch.Dispatcher, cfg Config, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		store:      st,
		selector:   ranking.NewSelector(st),
		dispatcher: d,
		config:     cfg,
		logger:     logger.With("component", "scheduler"),
	}
}

// CreateJob fills defaults, assigns an ID when missing and persists job.
func (o *Orchestrator) CreateJob(ctx context.Context, job *model.JobPosting) error {
	if job.EnrolledCount <= 0 {
		return &model.InvalidJobStateError{JobID: job.ID, Reason: "enrolled_count must be positive"}
	}
	if job.ID == "" {
		job.ID = "job_" + uuid.New().String()
	}
	job.ApplyDefaults(o.config.Threshold, o.config.TopN)
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	if err := o.store.CreateJob(ctx, job); err != nil {
		return fmt.Errorf("create job: %w", err)
	}
	o.logger.Info("job created", "job_id", job.ID, "enrolled", job.EnrolledCount,
		"threshold", job.Threshold, "top_n", job.TopN)
	return nil
}

// OnAssessmentSubmitted handles one completion event.
//
// Rejected submissions (duplicate, job full, invalid job state, bad score)
// return both a REJECTED report and the error. Transport failures are
// reported per recipient and do not make the call fail.
func (o *Orchestrator) OnAssessmentSubmitted(ctx context.Context, sub model.Submission) (*model.OutcomeReport, error) {
	report := &model.OutcomeReport{JobID: sub.JobID, CandidateID: sub.CandidateID}
	log := o.logger.With("job_id", sub.JobID, "candidate_id", sub.CandidateID)

	job, err := o.store.GetJob(ctx, sub.JobID)
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	if job == nil {
		return o.reject(ctx, report, &model.InvalidJobStateError{JobID: sub.JobID, Reason: model.ReasonUnknownJob})
	}
	report.Enrolled = job.EnrolledCount

	if strings.TrimSpace(sub.CandidateEmail) == "" {
		return o.reject(ctx, report, model.NewValidationError("candidate email is required",
			model.FieldError{Field: "candidate_email", Message: "is required"}))
	}

	score, err := resolveScore(job, sub)
	if err != nil {
		return o.reject(ctx, report, err)
	}

	res := &model.AssessmentResult{
		JobID:          sub.JobID,
		CandidateID:    sub.CandidateID,
		CandidateEmail: sub.CandidateEmail,
		Score:          score,
		Answers:        sub.Answers,
	}
	completed, enrolled, err := o.store.RegisterCompletion(ctx, res)
	if err != nil {
		if model.IsRejection(err) {
			return o.reject(ctx, report, err)
		}
		return nil, fmt.Errorf("register completion: %w", err)
	}
	report.Completed, report.Enrolled = completed, enrolled

	decision, err := policy.Decide(enrolled, completed, job.Threshold)
	if err != nil {
		return o.reject(ctx, report, err)
	}
	report.Decision = decision
	log.Info("completion registered", "score", score, "progress", report.Progress(), "decision", decision)

	if !decision.Fires() {
		report.Outcome = model.OutcomeWaiting
		report.State = model.JobStateCollecting
		report.Message = report.Progress()
		return report, nil
	}

	recipients, err := o.selector.SelectRecipients(ctx, job, decision, sub.CandidateID)
	if err != nil {
		return nil, fmt.Errorf("select recipients: %w", err)
	}
	if err := o.dispatch(ctx, job, recipients, decision.Reason(), report); err != nil {
		return nil, err
	}
	return report, nil
}

// Redispatch re-runs recipient selection for a job whose decision has
// fired and dispatches to everyone still lacking an invitation record.
// Small pools select every completed candidate; larger pools select the top
// N once every enrolled candidate completed.
func (o *Orchestrator) Redispatch(ctx context.Context, jobID string) (*model.OutcomeReport, error) {
	report := &model.OutcomeReport{JobID: jobID}

	job, err := o.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	if job == nil {
		return o.reject(ctx, report, &model.InvalidJobStateError{JobID: jobID, Reason: model.ReasonUnknownJob})
	}
	completed, err := o.store.CountResults(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("count results: %w", err)
	}
	report.Completed, report.Enrolled = completed, job.EnrolledCount

	ranked, err := o.selector.Ranked(ctx, jobID)
	if err != nil {
		return nil, err
	}

	var recipients []model.RankedResult
	var decision model.Decision
	switch {
	case job.SmallPool():
		decision = model.DecisionFireImmediate
		recipients = ranked
	case completed == job.EnrolledCount:
		decision = model.DecisionFireBatch
		recipients = ranking.TopN(ranked, job.TopN)
	default:
		return o.reject(ctx, report, &model.InvalidJobStateError{
			JobID:  jobID,
			Reason: "still collecting (" + report.Progress() + ")",
		})
	}
	report.Decision = decision

	if err := o.dispatch(ctx, job, recipients, decision.Reason(), report); err != nil {
		return nil, err
	}
	return report, nil
}

// Progress returns a job with its derived counts and state.
func (o *Orchestrator) Progress(ctx context.Context, jobID string) (*model.JobProgress, error) {
	job, err := o.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	if job == nil {
		return nil, model.NewNotFoundError("job", jobID)
	}
	completed, err := o.store.CountResults(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("count results: %w", err)
	}
	invitations, err := o.store.ListInvitations(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("list invitations: %w", err)
	}
	return &model.JobProgress{
		Job:             job,
		CompletedCount:  completed,
		InvitationCount: len(invitations),
		State:           model.DeriveJobState(job, completed, len(invitations)),
		Invitations:     invitations,
	}, nil
}

// Results returns the job's results in rank order with a score summary.
func (o *Orchestrator) Results(ctx context.Context, jobID string) ([]model.RankedResult, model.ResultSummary, error) {
	job, err := o.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, model.ResultSummary{}, fmt.Errorf("get job: %w", err)
	}
	if job == nil {
		return nil, model.ResultSummary{}, model.NewNotFoundError("job", jobID)
	}
	results, err := o.store.ListResults(ctx, jobID)
	if err != nil {
		return nil, model.ResultSummary{}, fmt.Errorf("list results: %w", err)
	}
	invitations, err := o.store.ListInvitations(ctx, jobID)
	if err != nil {
		return nil, model.ResultSummary{}, fmt.Errorf("list invitations: %w", err)
	}
	return ranking.Rank(results), model.ComputeResultSummary(results, invitations), nil
}

// CloseJob stops a job from accepting further submissions.
func (o *Orchestrator) CloseJob(ctx context.Context, jobID string) error {
	if err := o.store.CloseJob(ctx, jobID); err != nil {
		return err
	}
	o.logger.Info("job closed", "job_id", jobID)
	return nil
}

// dispatch sends to recipients and fills the report from the outcome.
func (o *Orchestrator) dispatch(ctx context.Context, job *model.JobPosting, recipients []model.RankedResult, reason model.InvitationReason, report *model.OutcomeReport) error {
	report.Recipients = o.dispatcher.DispatchAll(ctx, job, recipients, reason)

	invitations, err := o.store.ListInvitations(ctx, job.ID)
	if err != nil {
		return fmt.Errorf("list invitations: %w", err)
	}
	report.State = model.DeriveJobState(job, report.Completed, len(invitations))

	sent := report.Sent()
	failed := report.Failed()
	if len(sent) == 0 && len(failed) == 0 {
		report.Outcome = model.OutcomeAlreadyHandled
		report.Message = "invitations already sent"
		if len(recipients) == 0 {
			report.Message = "no eligible candidates"
		}
		return nil
	}

	report.Outcome = model.OutcomeSent
	var msg strings.Builder
	if len(sent) > 0 {
		msg.WriteString("invited " + strings.Join(sent, ", "))
	} else {
		report.Outcome = model.OutcomeDispatchFailed
		msg.WriteString("no invitations sent")
	}
	if len(failed) > 0 {
		report.Error = failed[0].Error
		fmt.Fprintf(&msg, "; %d dispatch(es) failed", len(failed))
		o.logger.Warn("dispatch incomplete", "job_id", job.ID, "failed", len(failed), "sent", len(sent))
	}
	report.Message = msg.String()
	return nil
}

func (o *Orchestrator) reject(ctx context.Context, report *model.OutcomeReport, err error) (*model.OutcomeReport, error) {
	report.Outcome = model.OutcomeRejected
	report.Error = model.ToAPIError(err)
	report.Message = err.Error()

	if report.Enrolled > 0 {
		if n, cerr := o.store.CountResults(ctx, report.JobID); cerr == nil {
			report.Completed = n
		}
	}
	o.logger.Info("submission rejected", "job_id", report.JobID, "candidate_id", report.CandidateID,
		"code", report.Error.Code)
	return report, err
}

// resolveScore takes the submitted score, or grades the answers against the
// job's answer key when no score was given.
func resolveScore(job *model.JobPosting, sub model.Submission) (float64, error) {
	if sub.Score != nil {
		if !model.ValidScore(*sub.Score) {
			return 0, model.NewValidationError("invalid score",
				model.FieldError{Field: "score", Message: "must be between 0 and 100"})
		}
		return *sub.Score, nil
	}
	if len(job.AnswerKey) == 0 {
		return 0, model.NewValidationError("score is required",
			model.FieldError{Field: "score", Message: "job has no answer key to grade answers against"})
	}
	graded, err := scoring.Grade(job.AnswerKey, sub.Answers)
	if err != nil {
		return 0, model.NewValidationError("cannot grade answers",
			model.FieldError{Field: "answers", Message: err.Error()})
	}
	return graded.Score, nil
}
