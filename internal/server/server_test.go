package server

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/me/hireflow/internal/config"
	"github.com/me/hireflow/internal/dispatch"
	"github.com/me/hireflow/internal/scheduler"
	"github.com/me/hireflow/internal/store"
	"github.com/me/hireflow/pkg/model"
)

type countingMailer struct {
	mu   sync.Mutex
	sent []string
}

func (m *countingMailer) SendInvitation(_ context.Context, _ string, p *model.InvitationPayload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, p.CandidateID)
	return nil
}

func testServer(t *testing.T) (*Server, *countingMailer) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelError}))
	st, err := store.NewSQLiteStore(":memory:", logger)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	cfg := config.DefaultServerConfig()
	m := &countingMailer{}
	d := dispatch.New(st, m, dispatch.NewTemplater(),
		dispatch.Config{SlotDays: cfg.SlotDays, SlotsPerDay: cfg.SlotsPerDay, Concurrency: cfg.DispatchConcurrency}, logger)
	orch := scheduler.New(st, d, scheduler.Config{Threshold: cfg.Threshold, TopN: cfg.TopN}, logger)
	return New(cfg, st, orch, logger), m
}

// envelope is used to decode the standard response envelope.
type envelope struct {
	Status     string            `json:"status"`
	RequestID  string            `json:"request_id"`
	Timestamp  string            `json:"timestamp"`
	Data       json.RawMessage   `json:"data"`
	Pagination *model.Pagination `json:"pagination"`
	Error      *model.APIError   `json:"error"`
}

func do(t *testing.T, srv *Server, method, path, body string, wantStatus int) envelope {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	if w.Code != wantStatus {
		t.Fatalf("%s %s: status=%d, want %d, body=%s", method, path, w.Code, wantStatus, w.Body.String())
	}
	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("%s %s: invalid JSON: %v", method, path, err)
	}
	return env
}

func createJob(t *testing.T, srv *Server, id string, enrolled int) {
	t.Helper()
	body := `{"id":"` + id + `","title":"Backend Engineer","enrolled_count":` + itoa(enrolled) + `}`
	do(t, srv, "POST", "/api/v1/jobs", body, http.StatusCreated)
}

func submit(t *testing.T, srv *Server, jobID, candidate string, score int, wantStatus int) (envelope, model.OutcomeReport) {
	t.Helper()
	body := `{"candidate_id":"` + candidate + `","candidate_email":"` + candidate + `@example.com","score":` + itoa(score) + `}`
	env := do(t, srv, "POST", "/api/v1/jobs/"+jobID+"/submissions", body, wantStatus)
	var rep model.OutcomeReport
	if len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, &rep); err != nil {
			t.Fatalf("decode report: %v", err)
		}
	}
	return env, rep
}

func itoa(n int) string {
	b, _ := json.Marshal(n)
	return string(b)
}

func TestDiscovery(t *testing.T) {
	srv, _ := testServer(t)
	env := do(t, srv, "GET", "/api/v1/", "", http.StatusOK)
	if env.Status != "ok" {
		t.Errorf("status = %q, want ok", env.Status)
	}
	if env.RequestID == "" {
		t.Error("request_id is empty")
	}

	var data struct {
		Name      string `json:"name"`
		Endpoints []struct {
			Path string `json:"path"`
		} `json:"endpoints"`
	}
	json.Unmarshal(env.Data, &data)
	if data.Name != "hireflow API" {
		t.Errorf("name = %q, want hireflow API", data.Name)
	}
	if len(data.Endpoints) < 7 {
		t.Errorf("endpoints count = %d, want >= 7", len(data.Endpoints))
	}
}

func TestHealth(t *testing.T) {
	srv, _ := testServer(t)
	env := do(t, srv, "GET", "/api/v1/health", "", http.StatusOK)

	var data healthResponse
	json.Unmarshal(env.Data, &data)
	if data.Status != "healthy" {
		t.Errorf("status = %q, want healthy", data.Status)
	}
	if data.Store != "sqlite" || data.Mailer != "log" {
		t.Errorf("store=%q mailer=%q", data.Store, data.Mailer)
	}
}

func TestRequestIDPassthrough(t *testing.T) {
	srv, _ := testServer(t)
	req := httptest.NewRequest("GET", "/api/v1/health", nil)
	req.Header.Set("X-Request-ID", "form-42")
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	if got := w.Header().Get("X-Request-ID"); got != "form-42" {
		t.Errorf("X-Request-ID = %q, want form-42", got)
	}
}

func TestCreateJob(t *testing.T) {
	srv, _ := testServer(t)
	env := do(t, srv, "POST", "/api/v1/jobs", `{"title":"SRE","enrolled_count":5,"top_n":2}`, http.StatusCreated)

	var job model.JobPosting
	json.Unmarshal(env.Data, &job)
	if !strings.HasPrefix(job.ID, "job_") {
		t.Errorf("id = %q, want job_ prefix", job.ID)
	}
	if job.Threshold != 3 || job.TopN != 2 || job.Status != model.JobStatusActive {
		t.Errorf("job = %+v", job)
	}
}

func TestCreateJob_Validation(t *testing.T) {
	srv, _ := testServer(t)
	env := do(t, srv, "POST", "/api/v1/jobs", `{"enrolled_count":0}`, http.StatusBadRequest)
	if env.Error == nil || env.Error.Code != model.ErrValidation {
		t.Fatalf("error = %+v, want VALIDATION_ERROR", env.Error)
	}
	fields := map[string]bool{}
	for _, d := range env.Error.Details {
		fields[d.Field] = true
	}
	if !fields["title"] || !fields["enrolled_count"] {
		t.Errorf("details = %+v, want title and enrolled_count", env.Error.Details)
	}

	do(t, srv, "POST", "/api/v1/jobs", `not json`, http.StatusBadRequest)
}

func TestCreateJob_Conflict(t *testing.T) {
	srv, _ := testServer(t)
	createJob(t, srv, "job_x", 3)
	env := do(t, srv, "POST", "/api/v1/jobs", `{"id":"job_x","title":"again","enrolled_count":3}`, http.StatusConflict)
	if env.Error.Code != model.ErrConflict {
		t.Errorf("code = %s, want CONFLICT", env.Error.Code)
	}
}

func TestListJobs(t *testing.T) {
	srv, _ := testServer(t)
	for _, id := range []string{"j1", "j2", "j3"} {
		createJob(t, srv, id, 3)
	}
	env := do(t, srv, "GET", "/api/v1/jobs?limit=2", "", http.StatusOK)
	if env.Pagination == nil || env.Pagination.Total != 3 || !env.Pagination.HasMore {
		t.Errorf("pagination = %+v", env.Pagination)
	}
	var jobs []model.JobPosting
	json.Unmarshal(env.Data, &jobs)
	if len(jobs) != 2 {
		t.Errorf("len = %d, want 2", len(jobs))
	}
}

func TestGetJob_NotFound(t *testing.T) {
	srv, _ := testServer(t)
	env := do(t, srv, "GET", "/api/v1/jobs/missing", "", http.StatusNotFound)
	if env.Error.Code != model.ErrNotFound {
		t.Errorf("code = %s", env.Error.Code)
	}
}

func TestSubmit_SmallPool(t *testing.T) {
	srv, m := testServer(t)
	createJob(t, srv, "job_s", 2)

	_, rep := submit(t, srv, "job_s", "A", 80, http.StatusOK)
	if rep.Outcome != model.OutcomeSent || rep.Decision != model.DecisionFireImmediate {
		t.Errorf("report = %+v", rep)
	}
	_, rep = submit(t, srv, "job_s", "B", 60, http.StatusOK)
	if len(rep.Recipients) != 1 || rep.Recipients[0].CandidateID != "B" {
		t.Errorf("recipients = %+v", rep.Recipients)
	}
	if len(m.sent) != 2 {
		t.Errorf("sent = %v", m.sent)
	}

	env := do(t, srv, "GET", "/api/v1/jobs/job_s", "", http.StatusOK)
	var progress model.JobProgress
	json.Unmarshal(env.Data, &progress)
	if progress.State != model.JobStateDecided || progress.CompletedCount != 2 || progress.InvitationCount != 2 {
		t.Errorf("progress = %+v", progress)
	}
}

func TestSubmit_BatchScenario(t *testing.T) {
	srv, m := testServer(t)
	createJob(t, srv, "job_b", 5)

	for i, s := range []int{55, 65, 90, 75} {
		_, rep := submit(t, srv, "job_b", "s"+itoa(s), s, http.StatusOK)
		if rep.Outcome != model.OutcomeWaiting {
			t.Fatalf("submission %d outcome = %s, want WAITING", i, rep.Outcome)
		}
		if rep.Message != itoa(i+1)+"/5 completed" {
			t.Errorf("message = %q", rep.Message)
		}
	}
	_, rep := submit(t, srv, "job_b", "s85", 85, http.StatusOK)
	if rep.Decision != model.DecisionFireBatch {
		t.Fatalf("decision = %s", rep.Decision)
	}
	got := rep.Sent()
	want := []string{"s90", "s85", "s75"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("sent = %v, want %v", got, want)
	}
	if len(m.sent) != 3 {
		t.Errorf("mailer sent %d, want 3", len(m.sent))
	}

	env := do(t, srv, "GET", "/api/v1/jobs/job_b/results", "", http.StatusOK)
	var results resultsResponse
	json.Unmarshal(env.Data, &results)
	if len(results.Results) != 5 || results.Results[0].CandidateID != "s90" || results.Summary.Invited != 3 {
		t.Errorf("results = %+v", results)
	}
}

func TestSubmit_Rejections(t *testing.T) {
	srv, _ := testServer(t)
	createJob(t, srv, "job_r", 4)
	submit(t, srv, "job_r", "c1", 70, http.StatusOK)

	env, rep := submit(t, srv, "job_r", "c1", 90, http.StatusConflict)
	if env.Error.Code != model.ErrDuplicateCompletion || rep.Outcome != model.OutcomeRejected {
		t.Errorf("duplicate: error=%+v outcome=%s", env.Error, rep.Outcome)
	}

	env, _ = submit(t, srv, "unknown", "c1", 90, http.StatusNotFound)
	if env.Error.Code != model.ErrInvalidJobState {
		t.Errorf("unknown job code = %s", env.Error.Code)
	}

	for _, c := range []string{"c2", "c3", "c4"} {
		submit(t, srv, "job_r", c, 60, http.StatusOK)
	}
	env, _ = submit(t, srv, "job_r", "late", 99, http.StatusConflict)
	if env.Error.Code != model.ErrJobFull {
		t.Errorf("late code = %s, want JOB_FULL", env.Error.Code)
	}
}

func TestSubmit_Validation(t *testing.T) {
	srv, _ := testServer(t)
	createJob(t, srv, "job_v", 3)

	env := do(t, srv, "POST", "/api/v1/jobs/job_v/submissions",
		`{"candidate_id":"c1","candidate_email":"not-an-email","score":50}`, http.StatusBadRequest)
	if env.Error.Code != model.ErrValidation {
		t.Errorf("code = %s", env.Error.Code)
	}
	do(t, srv, "POST", "/api/v1/jobs/job_v/submissions", `{"candidate_id":"c1","score":101}`, http.StatusBadRequest)
	do(t, srv, "POST", "/api/v1/jobs/job_v/submissions", `{"score":50}`, http.StatusBadRequest)

	env = do(t, srv, "POST", "/api/v1/jobs/job_v/submissions", `{"candidate_id":"c1","score":50}`, http.StatusBadRequest)
	if len(env.Error.Details) == 0 || env.Error.Details[0].Field != "candidate_email" {
		t.Errorf("details = %+v, want candidate_email", env.Error.Details)
	}
	env = do(t, srv, "GET", "/api/v1/jobs/job_v", "", http.StatusOK)
	var progress model.JobProgress
	json.Unmarshal(env.Data, &progress)
	if progress.CompletedCount != 0 {
		t.Errorf("completed = %d, want 0 after rejected submissions", progress.CompletedCount)
	}
}

func TestCloseJob(t *testing.T) {
	srv, _ := testServer(t)
	createJob(t, srv, "job_c", 3)
	do(t, srv, "POST", "/api/v1/jobs/job_c/close", "", http.StatusOK)

	env, _ := submit(t, srv, "job_c", "c1", 80, http.StatusUnprocessableEntity)
	if env.Error.Code != model.ErrInvalidJobState {
		t.Errorf("code = %s", env.Error.Code)
	}
	do(t, srv, "POST", "/api/v1/jobs/missing/close", "", http.StatusNotFound)
}

func TestRedispatch(t *testing.T) {
	srv, _ := testServer(t)
	createJob(t, srv, "job_d", 4)
	submit(t, srv, "job_d", "c1", 80, http.StatusOK)

	env := do(t, srv, "POST", "/api/v1/jobs/job_d/dispatch", "", http.StatusUnprocessableEntity)
	if env.Error.Code != model.ErrInvalidJobState {
		t.Errorf("code = %s", env.Error.Code)
	}

	for _, c := range []string{"c2", "c3", "c4"} {
		submit(t, srv, "job_d", c, 70, http.StatusOK)
	}
	env = do(t, srv, "POST", "/api/v1/jobs/job_d/dispatch", "", http.StatusOK)
	var rep model.OutcomeReport
	json.Unmarshal(env.Data, &rep)
	if rep.Outcome != model.OutcomeAlreadyHandled {
		t.Errorf("outcome = %s, want ALREADY_HANDLED", rep.Outcome)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&model.DuplicateCompletionError{}, http.StatusConflict},
		{&model.JobFullError{}, http.StatusConflict},
		{&model.InvalidJobStateError{Reason: model.ReasonUnknownJob}, http.StatusNotFound},
		{&model.InvalidJobStateError{Reason: "job is closed"}, http.StatusUnprocessableEntity},
		{&model.DispatchTransportError{}, http.StatusBadGateway},
		{model.NewNotFoundError("job", "x"), http.StatusNotFound},
		{model.NewValidationError("bad"), http.StatusBadRequest},
		{context.DeadlineExceeded, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%T) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
