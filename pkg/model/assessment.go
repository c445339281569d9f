package model

import "time"

// AssessmentResult is a candidate's completed, scored assessment for a job.
// It is written once and never updated.
type AssessmentResult struct {
	JobID          string    `json:"job_id"`
	CandidateID    string    `json:"candidate_id"`
	CandidateEmail string    `json:"candidate_email"`
	Score          float64   `json:"score"`
	Answers        []string  `json:"answers"`
	CompletedAt    time.Time `json:"completed_at"`
}

// RankedResult is an AssessmentResult with its 1-based position in the
// job's ranking.
type RankedResult struct {
	*AssessmentResult
	Rank int `json:"rank"`
}

// ValidScore reports whether s lies in the 0-100 range.
func ValidScore(s float64) bool {
	return s >= 0 && s <= 100
}
