package model

import (
	"errors"
	"fmt"
)

// RecipientResult is the dispatch outcome for one selected candidate.
type RecipientResult struct {
	CandidateID string           `json:"candidate_id"`
	Score       float64          `json:"score"`
	Rank        int              `json:"rank"`
	Reason      InvitationReason `json:"reason"`
	Status      DispatchStatus   `json:"status"`
	Error       *APIError        `json:"error,omitempty"`
}

// OutcomeReport is returned for every assessment submission event.
type OutcomeReport struct {
	JobID       string            `json:"job_id"`
	CandidateID string            `json:"candidate_id"`
	Outcome     Outcome           `json:"outcome"`
	Decision    Decision          `json:"decision,omitempty"`
	State       JobState          `json:"state,omitempty"`
	Completed   int               `json:"completed_count"`
	Enrolled    int               `json:"enrolled_count"`
	Message     string            `json:"message"`
	Recipients  []RecipientResult `json:"recipients,omitempty"`
	Error       *APIError         `json:"error,omitempty"`
}

// Progress renders the "X/Y completed" summary.
func (r *OutcomeReport) Progress() string {
	return fmt.Sprintf("%d/%d completed", r.Completed, r.Enrolled)
}

// Sent returns the candidates whose invitation was handed off by this call.
func (r *OutcomeReport) Sent() []string {
	var ids []string
	for _, rr := range r.Recipients {
		if rr.Status == DispatchSent {
			ids = append(ids, rr.CandidateID)
		}
	}
	return ids
}

// Failed returns the recipients whose dispatch hit a transport error.
func (r *OutcomeReport) Failed() []RecipientResult {
	var out []RecipientResult
	for _, rr := range r.Recipients {
		if rr.Status == DispatchFailed {
			out = append(out, rr)
		}
	}
	return out
}

// ToAPIError converts err into the API error shape carried by reports.
func ToAPIError(err error) *APIError {
	if err == nil {
		return nil
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return &APIError{Code: CodeOf(err), Message: err.Error()}
}
