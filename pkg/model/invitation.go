package model

import "time"

// InvitationReason records which policy branch produced an invitation.
type InvitationReason string

const (
	ReasonImmediate InvitationReason = "IMMEDIATE"
	ReasonBatchTopN InvitationReason = "BATCH_TOP_N"
)

// String returns the string representation of the reason.
func (r InvitationReason) String() string {
	return string(r)
}

// InvitationRecord marks that an interview invitation was handed off for a
// candidate. Its presence alone decides whether a send may proceed.
type InvitationRecord struct {
	JobID       string           `json:"job_id"`
	CandidateID string           `json:"candidate_id"`
	SentAt      time.Time        `json:"sent_at"`
	Rank        int              `json:"rank"`
	Reason      InvitationReason `json:"reason"`
}

// SlotOption is one proposed interview slot.
type SlotOption struct {
	Start    time.Time     `json:"start"`
	Duration time.Duration `json:"duration"`
}

// InvitationPayload is what the mail collaborator renders and delivers.
type InvitationPayload struct {
	JobID       string       `json:"job_id"`
	JobTitle    string       `json:"job_title"`
	CandidateID string       `json:"candidate_id"`
	Score       float64      `json:"score"`
	Rank        int          `json:"rank"`
	SlotOptions []SlotOption `json:"slot_options"`
	FormatNotes []string     `json:"format_notes"`
}
