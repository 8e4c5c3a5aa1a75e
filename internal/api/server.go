// Package api implements the HTTP Surface (C9): the REST endpoints from
// spec §4.9, each building a state machine (C3) wired with handlers (C4)
// and handing it to the Task Manager (C2). Grounded on the teacher's
// main.go mux wiring (stdlib net/http, pattern-based routing,
// /healthz, graceful shutdown) and internal/handlers/helpers.go's shared
// App dependency bundle, adapted from WS-args to REST JSON bodies.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/scottyhq/scotty/internal/apperr"
	"github.com/scottyhq/scotty/internal/authcontract"
	"github.com/scottyhq/scotty/internal/blueprint"
	"github.com/scottyhq/scotty/internal/fsm"
	"github.com/scottyhq/scotty/internal/orchestration"
	"github.com/scottyhq/scotty/internal/task"
)

// Server wires the full HTTP surface against the shared application
// state. One Server is created per process (cmd/scottyd).
type Server struct {
	mux *http.ServeMux

	appState   *orchestration.AppState
	tasks      *task.Manager
	blueprints *blueprint.Store
	auth       authcontract.Authenticator
	ws         http.Handler // the /ws upgrade handler, typically *ws.Hub

	createAppMaxSizeBytes int64
}

// NewServer builds the full route table. wsHandler may be nil if the
// caller mounts /ws itself.
func NewServer(appState *orchestration.AppState, tasks *task.Manager, blueprints *blueprint.Store, auth authcontract.Authenticator, wsHandler http.Handler, createAppMaxSizeBytes int64) *Server {
	if auth == nil {
		auth = authcontract.NoopAuthenticator{}
	}
	s := &Server{
		appState:              appState,
		tasks:                 tasks,
		blueprints:            blueprints,
		auth:                  auth,
		ws:                    wsHandler,
		createAppMaxSizeBytes: createAppMaxSizeBytes,
	}
	s.routes()
	return s
}

// ServeHTTP makes Server an http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) routes() {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/health", s.handleHealth)
	mux.HandleFunc("GET /api/v1/apps/list", s.authenticated(s.handleAppsList))
	mux.HandleFunc("POST /api/v1/apps/create", s.authenticated(s.limitBody(s.handleAppsCreate)))
	mux.HandleFunc("GET /api/v1/apps/run/{name}", s.authenticated(s.handleAppsRun))
	mux.HandleFunc("GET /api/v1/apps/stop/{name}", s.authenticated(s.handleAppsStop))
	mux.HandleFunc("GET /api/v1/apps/purge/{name}", s.authenticated(s.handleAppsPurge))
	mux.HandleFunc("GET /api/v1/apps/rebuild/{name}", s.authenticated(s.handleAppsRebuild))
	mux.HandleFunc("GET /api/v1/apps/destroy/{name}", s.authenticated(s.handleAppsDestroy))
	mux.HandleFunc("GET /api/v1/apps/adopt/{name}", s.authenticated(s.handleAppsAdopt))
	mux.HandleFunc("POST /api/v1/apps/{name}/actions", s.authenticated(s.handleAppsCustomAction))
	mux.HandleFunc("GET /api/v1/task/{uuid}", s.authenticated(s.handleTaskGet))
	mux.HandleFunc("GET /api/v1/tasks", s.authenticated(s.handleTasksList))
	mux.HandleFunc("GET /api/v1/blueprints", s.authenticated(s.handleBlueprintsList))
	if s.ws != nil {
		mux.Handle("GET /ws", s.ws)
	}

	s.mux = mux
}

// authenticated wraps h with bearer-token authentication (spec §4.9 "all
// JSON, bearer-auth except health/info/login").
func (s *Server) authenticated(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := s.auth.Authenticate(r.Context(), bearerToken(r)); err != nil {
			writeError(w, http.StatusUnauthorized, err)
			return
		}
		h(w, r)
	}
}

func bearerToken(r *http.Request) string {
	const prefix = "Bearer "
	h := r.Header.Get("Authorization")
	if len(h) > len(prefix) && h[:len(prefix)] == prefix {
		return h[len(prefix):]
	}
	return ""
}

// limitBody enforces createAppMaxSizeBytes on requests carrying a body,
// returning 413 when exceeded (spec §6).
func (s *Server) limitBody(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.createAppMaxSizeBytes > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, s.createAppMaxSizeBytes)
		}
		h(w, r)
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorBody{Error: true, Message: err.Error()})
}

// writeAppError maps err through the apperr taxonomy to its HTTP status,
// except that a MaxBytesReader overflow anywhere in err's chain (bare, or
// wrapped as a decoding error by the handler) maps to 413.
func writeAppError(w http.ResponseWriter, err error) {
	status := apperr.HTTPStatus(err)
	if isBodyTooLarge(err) {
		status = http.StatusRequestEntityTooLarge
	}
	writeError(w, status, err)
}

func isBodyTooLarge(err error) bool {
	var maxBytesErr *http.MaxBytesError
	return err != nil && errors.As(err, &maxBytesErr)
}

// runMachine registers tk, spawns m against octx on a new goroutine, and
// immediately responds with the RunningAppContext shape every mutating
// endpoint shares (spec §4.9). The machine runs to completion in the
// background; the HTTP response reflects the task's state at the moment
// it was accepted, not its eventual outcome.
func (s *Server) runMachine(w http.ResponseWriter, command string, octx *orchestration.Context, m *orchestration.Machine) {
	tk := task.New(uuid.NewString(), command, octx.AppData.Name, s.appState.TaskOutput)
	octx.Task = tk

	if err := s.tasks.AddTask(tk.ID(), tk, cancelHandle{tk}); err != nil {
		writeAppError(w, err)
		return
	}

	var b fsm.Broadcaster = fsm.NopBroadcaster{}
	if s.appState.Broadcaster != nil {
		b = s.appState.Broadcaster
	}
	go m.Run(octx, tk, b)

	writeJSON(w, http.StatusAccepted, RunningAppContext{Task: tk.Details(), AppData: maskApp(octx.AppData)})
}

type cancelHandle struct{ t *task.Task }

func (h cancelHandle) Cancel() { h.t.RequestCancel() }
