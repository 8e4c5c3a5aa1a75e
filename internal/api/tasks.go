package api

import "net/http"

// handleTaskGet returns the current Details snapshot for a task (spec
// §4.9 GET /api/v1/task/{uuid}).
func (s *Server) handleTaskGet(w http.ResponseWriter, r *http.Request) {
	details, err := s.tasks.GetTaskDetails(r.PathValue("uuid"))
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, details)
}

// handleTasksList returns every task the Manager still retains (spec
// §4.2 retention window, §4.9 GET /api/v1/tasks).
func (s *Server) handleTasksList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, TaskListResponse{Tasks: s.tasks.GetTaskList()})
}
