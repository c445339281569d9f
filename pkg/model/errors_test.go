package model

import (
	"errors"
	"fmt"
	"testing"
)

func TestAPIError_Error(t *testing.T) {
	err := &APIError{Code: ErrNotFound, Message: "job 'job_123' not found"}
	want := "NOT_FOUND: job 'job_123' not found"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestNewNotFoundError(t *testing.T) {
	err := NewNotFoundError("job", "job_abc")
	if err.Code != ErrNotFound {
		t.Errorf("Code = %q, want %q", err.Code, ErrNotFound)
	}
	if err.Message != "job 'job_abc' not found" {
		t.Errorf("Message = %q, want %q", err.Message, "job 'job_abc' not found")
	}
}

func TestNewValidationError(t *testing.T) {
	err := NewValidationError("Invalid request",
		FieldError{Field: "enrolled_count", Message: "required"},
		FieldError{Field: "title", Message: "required"},
	)
	if err.Code != ErrValidation {
		t.Errorf("Code = %q, want %q", err.Code, ErrValidation)
	}
	if len(err.Details) != 2 {
		t.Errorf("Details length = %d, want 2", len(err.Details))
	}
}

func TestCodeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{"duplicate", &DuplicateCompletionError{JobID: "j", CandidateID: "c"}, ErrDuplicateCompletion},
		{"full", &JobFullError{JobID: "j", Enrolled: 4}, ErrJobFull},
		{"invalid", &InvalidJobStateError{JobID: "j", Reason: "closed"}, ErrInvalidJobState},
		{"transport", &DispatchTransportError{JobID: "j", CandidateID: "c", Err: errors.New("boom")}, ErrDispatchTransport},
		{"wrapped", fmt.Errorf("register: %w", &JobFullError{JobID: "j"}), ErrJobFull},
		{"plain", errors.New("disk full"), ErrInternal},
		{"api error", NewValidationError("bad score"), ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CodeOf(tt.err); got != tt.want {
				t.Errorf("CodeOf() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsRejection(t *testing.T) {
	if !IsRejection(&DuplicateCompletionError{}) {
		t.Error("duplicate completion should be a rejection")
	}
	if !IsRejection(&JobFullError{}) {
		t.Error("job full should be a rejection")
	}
	if IsRejection(&DispatchTransportError{Err: errors.New("x")}) {
		t.Error("transport error is not a rejection")
	}
	if IsRejection(errors.New("x")) {
		t.Error("plain error is not a rejection")
	}
}

func TestDispatchTransportError_Unwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := &DispatchTransportError{JobID: "j", CandidateID: "c", Err: cause}
	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the wrapped cause")
	}
	want := "dispatch invitation to c for job j: connection refused"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestInvalidJobStateError_Error(t *testing.T) {
	err := &InvalidJobStateError{Reason: "enrolled_count must be positive"}
	if got := err.Error(); got != "invalid job state: enrolled_count must be positive" {
		t.Errorf("Error() = %q", got)
	}
}
