// Package dispatch hands interview invitations to the mail collaborator and
// records them, at most once per (job, candidate) pair.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/me/hireflow/internal/store"
	"github.com/me/hireflow/pkg/model"
)

// Mailer delivers a rendered invitation. A returned error means the
// hand-off did not happen.
type Mailer interface {
	SendInvitation(ctx context.Context, email string, payload *model.InvitationPayload) error
}

// InvitationStore is the subset of store.Store the dispatcher needs.
type InvitationStore interface {
	LockInvitation(ctx context.Context, jobID, candidateID string) (store.InvitationLock, error)
}

// Config controls payload construction and batch fan-out.
type Config struct {
	SlotDays    int
	SlotsPerDay int
	Concurrency int
}

// Dispatcher sends invitations idempotently.
type Dispatcher struct {
	store     InvitationStore
	mailer    Mailer
	templater Templater
	cfg       Config
	now       func() time.Time
	logger    *slog.Logger
}

// New creates a Dispatcher.
func New(st InvitationStore, mailer Mailer, templater Templater, cfg Config, logger *slog.Logger) *Dispatcher {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return &Dispatcher{
		store:     st,
		mailer:    mailer,
		templater: templater,
		cfg:       cfg,
		now:       time.Now,
		logger:    logger.With("component", "dispatch"),
	}
}

// Dispatch sends one invitation unless it was already recorded.
//
// The check, the mail hand-off and the insert run under the store's
// per-pair lock. On a mail failure nothing is written and a
// *model.DispatchTransportError is returned with status FAILED.
func (d *Dispatcher) Dispatch(ctx context.Context, job *model.JobPosting, r model.RankedResult, reason model.InvitationReason) (model.DispatchStatus, error) {
	lock, err := d.store.LockInvitation(ctx, job.ID, r.CandidateID)
	if err != nil {
		return model.DispatchFailed, fmt.Errorf("lock invitation: %w", err)
	}
	defer lock.Release()

	existing, err := lock.Invitation(ctx)
	if err != nil {
		return model.DispatchFailed, fmt.Errorf("check invitation: %w", err)
	}
	if existing != nil {
		d.logger.Debug("invitation already sent", "job_id", job.ID, "candidate_id", r.CandidateID)
		return model.DispatchAlreadySent, nil
	}

	now := d.now().UTC()
	payload := &model.InvitationPayload{
		JobID:       job.ID,
		JobTitle:    job.Title,
		CandidateID: r.CandidateID,
		Score:       r.Score,
		Rank:        r.Rank,
		SlotOptions: d.templater.Slots(now, d.cfg.SlotDays, d.cfg.SlotsPerDay),
		FormatNotes: d.templater.FormatNotes(),
	}

	if err := d.mailer.SendInvitation(ctx, r.CandidateEmail, payload); err != nil {
		d.logger.Warn("invitation hand-off failed", "job_id", job.ID, "candidate_id", r.CandidateID, "error", err)
		return model.DispatchFailed, &model.DispatchTransportError{JobID: job.ID, CandidateID: r.CandidateID, Err: err}
	}

	rec := &model.InvitationRecord{
		JobID:       job.ID,
		CandidateID: r.CandidateID,
		SentAt:      now,
		Rank:        r.Rank,
		Reason:      reason,
	}
	if err := lock.Record(ctx, rec); err != nil {
		if errors.Is(err, store.ErrInvitationExists) {
			return model.DispatchAlreadySent, nil
		}
		return model.DispatchFailed, fmt.Errorf("record invitation: %w", err)
	}

	d.logger.Info("invitation sent", "job_id", job.ID, "candidate_id", r.CandidateID, "rank", r.Rank, "reason", reason)
	return model.DispatchSent, nil
}

// DispatchAll dispatches to every recipient with bounded concurrency and
// returns one result per recipient, in input order. Individual failures are
// reported in the results and never abort the others.
func (d *Dispatcher) DispatchAll(ctx context.Context, job *model.JobPosting, recipients []model.RankedResult, reason model.InvitationReason) []model.RecipientResult {
	results := make([]model.RecipientResult, len(recipients))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.cfg.Concurrency)
	for i, r := range recipients {
		i, r := i, r
		g.Go(func() error {
			status, err := d.Dispatch(gctx, job, r, reason)
			results[i] = model.RecipientResult{
				CandidateID: r.CandidateID,
				Score:       r.Score,
				Rank:        r.Rank,
				Reason:      reason,
				Status:      status,
				Error:       model.ToAPIError(err),
			}
			return nil
		})
	}
	_ = g.Wait()
	return results
}
