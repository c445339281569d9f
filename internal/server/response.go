package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/me/hireflow/pkg/model"
)

// requestID generates a unique request identifier.
func requestID() string {
	return "req_" + uuid.New().String()[:8]
}

// respondOK writes a success response with the standard envelope.
func respondOK(w http.ResponseWriter, reqID string, data any) {
	respondJSON(w, http.StatusOK, reqID, data, nil, nil)
}

// respondCreated writes a 201 response with the standard envelope.
func respondCreated(w http.ResponseWriter, reqID string, data any) {
	respondJSON(w, http.StatusCreated, reqID, data, nil, nil)
}

// respondList writes a success response with pagination.
func respondList(w http.ResponseWriter, reqID string, data any, pg *model.Pagination) {
	respondJSON(w, http.StatusOK, reqID, data, pg, nil)
}

// respondError writes an error response with the standard envelope.
func respondError(w http.ResponseWriter, reqID string, status int, apiErr *model.APIError) {
	respondJSON(w, status, reqID, nil, nil, apiErr)
}

// respondErr maps a domain or internal error onto the envelope.
func respondErr(w http.ResponseWriter, reqID string, err error) {
	respondError(w, reqID, statusFor(err), model.ToAPIError(err))
}

// respondReport writes an outcome report. Rejected reports carry the error
// both in the envelope and inside the report.
func respondReport(w http.ResponseWriter, reqID string, report *model.OutcomeReport, err error) {
	if err != nil {
		respondJSON(w, statusFor(err), reqID, report, nil, model.ToAPIError(err))
		return
	}
	respondOK(w, reqID, report)
}

func respondJSON(w http.ResponseWriter, status int, reqID string, data any, pg *model.Pagination, apiErr *model.APIError) {
	resp := model.Response{
		RequestID:  reqID,
		Timestamp:  time.Now().UTC(),
		Data:       data,
		Pagination: pg,
		Error:      apiErr,
	}
	if apiErr != nil {
		resp.Status = "error"
	} else {
		resp.Status = "ok"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

// statusFor returns the HTTP status for an error code.
func statusFor(err error) int {
	switch model.CodeOf(err) {
	case model.ErrValidation:
		return http.StatusBadRequest
	case model.ErrNotFound:
		return http.StatusNotFound
	case model.ErrConflict, model.ErrDuplicateCompletion, model.ErrJobFull:
		return http.StatusConflict
	case model.ErrInvalidJobState:
		var stateErr *model.InvalidJobStateError
		if errors.As(err, &stateErr) && stateErr.UnknownJob() {
			return http.StatusNotFound
		}
		return http.StatusUnprocessableEntity
	case model.ErrDispatchTransport:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
