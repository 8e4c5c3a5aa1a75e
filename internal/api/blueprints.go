package api

import "net/http"

// handleBlueprintsList returns the registry of known blueprints (spec
// §4.9 GET /api/v1/blueprints), as stored by internal/blueprint.
func (s *Server) handleBlueprintsList(w http.ResponseWriter, r *http.Request) {
	list, err := s.blueprints.List()
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}
