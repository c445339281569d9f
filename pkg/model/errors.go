package model

import (
	"errors"
	"fmt"
)

// ErrorCode represents a structured API error code.
type ErrorCode string

const (
	ErrValidation          ErrorCode = "VALIDATION_ERROR"
	ErrNotFound            ErrorCode = "NOT_FOUND"
	ErrConflict            ErrorCode = "CONFLICT"
	ErrInternal            ErrorCode = "INTERNAL_ERROR"
	ErrDuplicateCompletion ErrorCode = "DUPLICATE_COMPLETION"
	ErrJobFull             ErrorCode = "JOB_FULL"
	ErrInvalidJobState     ErrorCode = "INVALID_JOB_STATE"
	ErrDispatchTransport   ErrorCode = "DISPATCH_TRANSPORT_ERROR"
)

// APIError is a structured error returned by the hireflow API.
type APIError struct {
	Code    ErrorCode    `json:"code"`
	Message string       `json:"message"`
	Details []FieldError `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// FieldError describes a validation error on a specific field.
type FieldError struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// NewValidationError creates an APIError with validation details.
func NewValidationError(msg string, details ...FieldError) *APIError {
	return &APIError{Code: ErrValidation, Message: msg, Details: details}
}

// NewNotFoundError creates a NOT_FOUND APIError.
func NewNotFoundError(resource, id string) *APIError {
	return &APIError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s '%s' not found", resource, id),
	}
}

// DuplicateCompletionError is returned when a candidate submits an
// assessment for a job they already completed.
type DuplicateCompletionError struct {
	JobID       string
	CandidateID string
}

func (e *DuplicateCompletionError) Error() string {
	return fmt.Sprintf("candidate %s already completed the assessment for job %s", e.CandidateID, e.JobID)
}

// Code returns the API error code.
func (e *DuplicateCompletionError) Code() ErrorCode { return ErrDuplicateCompletion }

// JobFullError is returned when every enrolled candidate already completed.
type JobFullError struct {
	JobID    string
	Enrolled int
}

func (e *JobFullError) Error() string {
	return fmt.Sprintf("job %s already has %d/%d completions", e.JobID, e.Enrolled, e.Enrolled)
}

// Code returns the API error code.
func (e *JobFullError) Code() ErrorCode { return ErrJobFull }

// ReasonUnknownJob is the InvalidJobStateError reason for a job ID with no
// stored posting.
const ReasonUnknownJob = "unknown job"

// InvalidJobStateError is returned for unknown, closed or zero-enrollment jobs.
type InvalidJobStateError struct {
	JobID  string
	Reason string
}

func (e *InvalidJobStateError) Error() string {
	if e.JobID == "" {
		return "invalid job state: " + e.Reason
	}
	return fmt.Sprintf("invalid job state for %s: %s", e.JobID, e.Reason)
}

// Code returns the API error code.
func (e *InvalidJobStateError) Code() ErrorCode { return ErrInvalidJobState }

// UnknownJob reports whether the job does not exist at all.
func (e *InvalidJobStateError) UnknownJob() bool { return e.Reason == ReasonUnknownJob }

// DispatchTransportError is returned when the mail hand-off fails. No
// invitation record is written, so the same dispatch may be retried.
type DispatchTransportError struct {
	JobID       string
	CandidateID string
	Err         error
}

func (e *DispatchTransportError) Error() string {
	return fmt.Sprintf("dispatch invitation to %s for job %s: %v", e.CandidateID, e.JobID, e.Err)
}

func (e *DispatchTransportError) Unwrap() error { return e.Err }

// Code returns the API error code.
func (e *DispatchTransportError) Code() ErrorCode { return ErrDispatchTransport }

// coder is implemented by the domain errors above.
type coder interface {
	Code() ErrorCode
}

// CodeOf returns the API error code carried by err, or ErrInternal.
func CodeOf(err error) ErrorCode {
	var c coder
	if errors.As(err, &c) {
		return c.Code()
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return ErrInternal
}

// IsRejection reports whether err is a rejected submission, as opposed to
// a transport or internal failure.
func IsRejection(err error) bool {
	switch CodeOf(err) {
	case ErrDuplicateCompletion, ErrJobFull, ErrInvalidJobState:
		return true
	}
	return false
}
