package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/me/hireflow/pkg/model"
)

// handleSubmitAssessment registers one completed assessment. The job ID in
// the path wins over any job_id in the body.
func (s *Server) handleSubmitAssessment(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	var sub model.Submission
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		respondError(w, reqID, http.StatusBadRequest, &model.APIError{
			Code:    model.ErrValidation,
			Message: "Invalid JSON body: " + err.Error(),
		})
		return
	}
	sub.JobID = chi.URLParam(r, "id")

	if err := s.validate.Struct(sub); err != nil {
		respondError(w, reqID, http.StatusBadRequest, validationError(err))
		return
	}

	report, err := s.orch.OnAssessmentSubmitted(r.Context(), sub)
	if report == nil {
		respondErr(w, reqID, err)
		return
	}
	if len(report.Failed()) > 0 {
		s.logger.Warn("submission accepted with failed invitations",
			"job_id", sub.JobID, "candidate_id", sub.CandidateID, "failed", len(report.Failed()))
	}
	respondReport(w, reqID, report, err)
}
