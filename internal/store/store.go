package store

import (
	"context"
	"errors"

	"github.com/me/hireflow/pkg/model"
)

// ErrInvitationExists is returned by CreateInvitation when a record for the
// same (job, candidate) pair is already present.
var ErrInvitationExists = errors.New("invitation already recorded")

// InvitationLock is held while one (job, candidate) pair is dispatched.
// Every process sharing the store sees the same lock, so the existence
// check, the mail hand-off and the insert cannot interleave with another
// dispatch of the pair.
type InvitationLock interface {
	// Invitation returns the pair's record, or nil if none exists.
	Invitation(ctx context.Context) (*model.InvitationRecord, error)
	// Record writes rec. It returns ErrInvitationExists when the pair
	// already has a record.
	Record(ctx context.Context, rec *model.InvitationRecord) error
	// Release gives up the lock. Calling it more than once is a no-op.
	Release()
}

// Store defines the persistence layer for jobs, assessment results and
// invitation records.
type Store interface {
	// Job postings
	CreateJob(ctx context.Context, job *model.JobPosting) error
	GetJob(ctx context.Context, id string) (*model.JobPosting, error)
	ListJobs(ctx context.Context, opts model.ListOptions) ([]*model.JobPosting, int, error)
	CloseJob(ctx context.Context, id string) error

	// RegisterCompletion persists an assessment result and returns the
	// job's updated completed count and its enrolled count. The existence
	// check, the capacity check and the insert run as one unit per job.
	RegisterCompletion(ctx context.Context, res *model.AssessmentResult) (completed, enrolled int, err error)
	GetResult(ctx context.Context, jobID, candidateID string) (*model.AssessmentResult, error)
	ListResults(ctx context.Context, jobID string) ([]*model.AssessmentResult, error)
	CountResults(ctx context.Context, jobID string) (int, error)

	// Invitation records
	GetInvitation(ctx context.Context, jobID, candidateID string) (*model.InvitationRecord, error)
	CreateInvitation(ctx context.Context, rec *model.InvitationRecord) error
	ListInvitations(ctx context.Context, jobID string) ([]*model.InvitationRecord, error)
	// LockInvitation blocks until the pair is free.
	LockInvitation(ctx context.Context, jobID, candidateID string) (InvitationLock, error)

	// Lifecycle
	Close() error
	Migrate(ctx context.Context) error
}
