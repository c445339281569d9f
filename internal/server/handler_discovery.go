package server

import "net/http"

type endpointInfo struct {
	Path        string   `json:"path"`
	Methods     []string `json:"methods"`
	Description string   `json:"description"`
}

type discoveryResponse struct {
	Name        string         `json:"name"`
	Version     string         `json:"version"`
	Description string         `json:"description"`
	Endpoints   []endpointInfo `json:"endpoints"`
}

func (s *Server) handleDiscovery(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	respondOK(w, reqID, discoveryResponse{
		Name:        "hireflow API",
		Version:     "v1",
		Description: "Assessment completion tracking and interview invitation scheduling",
		Endpoints: []endpointInfo{
			{"/api/v1/jobs", []string{"GET", "POST"}, "Job posting management"},
			{"/api/v1/jobs/{id}", []string{"GET"}, "Job detail with completed count, state and invitations"},
			{"/api/v1/jobs/{id}/results", []string{"GET"}, "Assessment results in rank order"},
			{"/api/v1/jobs/{id}/submissions", []string{"POST"}, "Register a completed assessment"},
			{"/api/v1/jobs/{id}/dispatch", []string{"POST"}, "Retry invitations still lacking a record"},
			{"/api/v1/jobs/{id}/close", []string{"POST"}, "Stop accepting submissions"},
			{"/api/v1/health", []string{"GET"}, "Server health and version"},
		},
	})
}
