package model

import "time"

// Per-deployment defaults, overridable per job at creation time.
const (
	DefaultThreshold = 3
	DefaultTopN      = 3
)

// JobStatus is the lifecycle status of a JobPosting. It is the only
// field of a job that changes after creation.
type JobStatus string

const (
	JobStatusActive JobStatus = "active"
	JobStatusClosed JobStatus = "closed"
)

// String returns the string representation of the job status.
func (s JobStatus) String() string {
	return string(s)
}

// JobPosting is a job for which a fixed pool of candidates was sourced.
type JobPosting struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	EnrolledCount int        `json:"enrolled_count"`
	Threshold     int        `json:"threshold"`
	TopN          int        `json:"top_n"`
	AnswerKey     []string   `json:"answer_key,omitempty"`
	Status        JobStatus  `json:"status"`
	CreatedAt     time.Time  `json:"created_at"`
	ClosedAt      *time.Time `json:"closed_at,omitempty"`
}

// ApplyDefaults fills zero threshold and top_n values.
func (j *JobPosting) ApplyDefaults(threshold, topN int) {
	if j.Threshold <= 0 {
		j.Threshold = threshold
	}
	if j.TopN <= 0 {
		j.TopN = topN
	}
	if j.Status == "" {
		j.Status = JobStatusActive
	}
}

// SmallPool reports whether every completion is invited immediately.
// A pool of exactly Threshold candidates counts as small.
func (j *JobPosting) SmallPool() bool {
	return j.EnrolledCount <= j.Threshold
}

// JobProgress is a job with its counts derived from persisted rows.
type JobProgress struct {
	Job             *JobPosting         `json:"job"`
	CompletedCount  int                 `json:"completed_count"`
	InvitationCount int                 `json:"invitation_count"`
	State           JobState            `json:"state"`
	Invitations     []*InvitationRecord `json:"invitations,omitempty"`
}

// DeriveJobState computes the scheduling state of a job purely from counts.
func DeriveJobState(job *JobPosting, completed, invited int) JobState {
	if invited > 0 && (job.SmallPool() || completed == job.EnrolledCount) {
		return JobStateDecided
	}
	if !job.SmallPool() && completed == job.EnrolledCount {
		return JobStateReadyToDecide
	}
	return JobStateCollecting
}
