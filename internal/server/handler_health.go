package server

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/me/hireflow/pkg/model"
)

type healthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	GoVersion string `json:"go_version"`
	Uptime    string `json:"uptime"`
	Store     string `json:"store"`
	Mailer    string `json:"mailer"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	resp := healthResponse{
		Status:    "healthy",
		Version:   s.version,
		GoVersion: runtime.Version(),
		Uptime:    time.Since(s.startTime).Round(time.Second).String(),
		Store:     s.config.DBDriver,
		Mailer:    s.config.Mailer,
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if _, _, err := s.store.ListJobs(ctx, model.ListOptions{Limit: 1}); err != nil {
		s.logger.Warn("health check: store unavailable", "error", err)
		resp.Status = "degraded"
	}
	respondOK(w, reqID, resp)
}
