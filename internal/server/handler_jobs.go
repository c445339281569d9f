package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/me/hireflow/pkg/model"
)

type createJobRequest struct {
	ID            string   `json:"id" validate:"omitempty,max=128"`
	Title         string   `json:"title" validate:"required,max=200"`
	EnrolledCount int      `json:"enrolled_count" validate:"required,min=1"`
	Threshold     int      `json:"threshold" validate:"omitempty,min=1"`
	TopN          int      `json:"top_n" validate:"omitempty,min=1"`
	AnswerKey     []string `json:"answer_key" validate:"omitempty,dive,required"`
}

type resultsResponse struct {
	JobID   string               `json:"job_id"`
	Summary model.ResultSummary  `json:"summary"`
	Results []model.RankedResult `json:"results"`
}

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	var req createJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, reqID, http.StatusBadRequest, &model.APIError{
			Code:    model.ErrValidation,
			Message: "Invalid JSON body: " + err.Error(),
		})
		return
	}
	if err := s.validate.Struct(req); err != nil {
		respondError(w, reqID, http.StatusBadRequest, validationError(err))
		return
	}

	if req.ID != "" {
		existing, err := s.store.GetJob(r.Context(), req.ID)
		if err != nil {
			respondErr(w, reqID, err)
			return
		}
		if existing != nil {
			respondError(w, reqID, http.StatusConflict, &model.APIError{
				Code:    model.ErrConflict,
				Message: "job '" + req.ID + "' already exists",
			})
			return
		}
	}

	job := &model.JobPosting{
		ID:            req.ID,
		Title:         req.Title,
		EnrolledCount: req.EnrolledCount,
		Threshold:     req.Threshold,
		TopN:          req.TopN,
		AnswerKey:     req.AnswerKey,
	}
	if err := s.orch.CreateJob(r.Context(), job); err != nil {
		respondErr(w, reqID, err)
		return
	}
	respondCreated(w, reqID, job)
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	opts := model.DefaultListOptions()
	q := r.URL.Query()
	if status := q.Get("status"); status != "" {
		opts.Status = status
	}
	if v, err := strconv.Atoi(q.Get("limit")); err == nil {
		opts.Limit = v
	}
	if v, err := strconv.Atoi(q.Get("offset")); err == nil {
		opts.Offset = v
	}
	opts.Clamp()

	jobs, total, err := s.store.ListJobs(r.Context(), opts)
	if err != nil {
		respondErr(w, reqID, err)
		return
	}
	if jobs == nil {
		jobs = []*model.JobPosting{}
	}

	respondList(w, reqID, jobs, &model.Pagination{
		Total:   total,
		Limit:   opts.Limit,
		Offset:  opts.Offset,
		HasMore: opts.Offset+len(jobs) < total,
	})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	progress, err := s.orch.Progress(r.Context(), id)
	if err != nil {
		respondErr(w, reqID, err)
		return
	}
	respondOK(w, reqID, progress)
}

func (s *Server) handleListResults(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	ranked, summary, err := s.orch.Results(r.Context(), id)
	if err != nil {
		respondErr(w, reqID, err)
		return
	}
	if ranked == nil {
		ranked = []model.RankedResult{}
	}
	respondOK(w, reqID, resultsResponse{JobID: id, Summary: summary, Results: ranked})
}

func (s *Server) handleRedispatch(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	report, err := s.orch.Redispatch(r.Context(), id)
	if report == nil && err != nil {
		respondErr(w, reqID, err)
		return
	}
	respondReport(w, reqID, report, err)
}

func (s *Server) handleCloseJob(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	if err := s.orch.CloseJob(r.Context(), id); err != nil {
		respondErr(w, reqID, err)
		return
	}
	progress, err := s.orch.Progress(r.Context(), id)
	if err != nil {
		respondErr(w, reqID, err)
		return
	}
	respondOK(w, reqID, progress)
}
