package api

import "net/http"

// handleHealth is the single unauthenticated endpoint (spec §4.9 "all
// JSON, bearer-auth except health").
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}
