package api

import (
	"encoding/json"
	"net/http"

	"github.com/scottyhq/scotty/internal/apperr"
	"github.com/scottyhq/scotty/internal/models"
	"github.com/scottyhq/scotty/internal/orchestration"
	"github.com/scottyhq/scotty/internal/slug"
)

// handleAppsList returns every registered app with its environment
// masked (spec §4.9 "sensitive env masked").
func (s *Server) handleAppsList(w http.ResponseWriter, r *http.Request) {
	apps := s.appState.Registry.GetAll()
	out := make([]MaskedAppData, 0, len(apps))
	for _, app := range apps {
		out = append(out, maskApp(app))
	}
	writeJSON(w, http.StatusOK, AppListResponse{Apps: out})
}

// handleAppsCreate builds the Create machine for a new app (spec §4.4,
// §4.9).
func (s *Server) handleAppsCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateAppRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAppError(w, apperr.Wrap(apperr.KindDecodingError, "malformed request body", err))
		return
	}

	name := slug.Slugify(req.Name)
	if name == "" {
		writeAppError(w, apperr.New(apperr.KindInput, "name must slugify to a non-empty value"))
		return
	}

	appData := &models.AppData{
		Name:              name,
		RootDirectory:     s.appRootDirectory(name),
		DockerComposePath: s.appComposePath(name),
		RequestedScopes:   models.DefaultScopes,
		// The app's directory is named after its slug, so the compose
		// project docker compose infers from that directory is the slug
		// itself (internal/models.AppData.ProjectName).
		ComposeProject: name,
	}

	octx := &orchestration.Context{
		AppState: s.appState,
		AppData:  appData,
		Files:    req.Files,
		Settings: req.Settings,
	}

	s.runMachine(w, "create "+name, octx, orchestration.BuildCreateMachine())
}

// handleAppsRun, Stop, Purge, Rebuild, Destroy, Adopt each fetch the
// named app and dispatch its corresponding machine (spec §4.4, §4.9).
func (s *Server) handleAppsRun(w http.ResponseWriter, r *http.Request) {
	s.dispatchExisting(w, r, "run", orchestration.BuildRunMachine(), nil)
}

func (s *Server) handleAppsStop(w http.ResponseWriter, r *http.Request) {
	s.dispatchExisting(w, r, "stop", orchestration.BuildStopMachine(), nil)
}

func (s *Server) handleAppsPurge(w http.ResponseWriter, r *http.Request) {
	s.dispatchExisting(w, r, "purge", orchestration.BuildPurgeMachine(orchestration.PurgeDown), nil)
}

func (s *Server) handleAppsRebuild(w http.ResponseWriter, r *http.Request) {
	name := slug.Slugify(r.PathValue("name"))
	app, err := s.appState.Registry.Get(name)
	if err != nil {
		writeAppError(w, err)
		return
	}

	var req CreateAppRequest
	_ = json.NewDecoder(r.Body).Decode(&req) // rebuild may carry updated files/settings; a malformed/empty body just rebuilds as-is

	octx := &orchestration.Context{
		AppState: s.appState,
		AppData:  app,
		Files:    req.Files,
		Settings: req.Settings,
	}
	if octx.Settings == nil {
		octx.Settings = app.Settings
	}

	s.runMachine(w, "rebuild "+name, octx, orchestration.BuildRebuildMachine())
}

func (s *Server) handleAppsDestroy(w http.ResponseWriter, r *http.Request) {
	name := slug.Slugify(r.PathValue("name"))
	app, err := s.appState.Registry.Get(name)
	if err != nil {
		writeAppError(w, err)
		return
	}

	octx := &orchestration.Context{AppState: s.appState, AppData: app}
	if err := orchestration.RequireManaged(octx); err != nil {
		writeAppError(w, err)
		return
	}

	s.runMachine(w, "destroy "+name, octx, orchestration.BuildDestroyMachine())
}

func (s *Server) handleAppsAdopt(w http.ResponseWriter, r *http.Request) {
	s.dispatchExisting(w, r, "adopt", orchestration.BuildAdoptMachine(), nil)
}

// handleAppsCustomAction runs a blueprint-defined custom action against
// the named app (spec §4.4 RunPostActions Custom(name) variant).
func (s *Server) handleAppsCustomAction(w http.ResponseWriter, r *http.Request) {
	name := slug.Slugify(r.PathValue("name"))
	app, err := s.appState.Registry.Get(name)
	if err != nil {
		writeAppError(w, err)
		return
	}

	var req CustomActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAppError(w, apperr.Wrap(apperr.KindDecodingError, "malformed request body", err))
		return
	}
	if req.ActionName == "" {
		writeAppError(w, apperr.New(apperr.KindInput, "action_name is required"))
		return
	}

	octx := &orchestration.Context{
		AppState:         s.appState,
		AppData:          app,
		Settings:         app.Settings,
		CustomActionName: req.ActionName,
	}

	s.runMachine(w, "action:"+req.ActionName+" "+name, octx, orchestration.BuildCustomActionMachine(req.ActionName))
}

// dispatchExisting fetches the named app from the registry and runs m
// against it, optionally populating extra Context fields via configure.
func (s *Server) dispatchExisting(w http.ResponseWriter, r *http.Request, command string, m *orchestration.Machine, configure func(*orchestration.Context)) {
	name := slug.Slugify(r.PathValue("name"))
	app, err := s.appState.Registry.Get(name)
	if err != nil {
		writeAppError(w, err)
		return
	}

	octx := &orchestration.Context{AppState: s.appState, AppData: app, Settings: app.Settings}
	if configure != nil {
		configure(octx)
	}

	s.runMachine(w, command+" "+name, octx, m)
}

func (s *Server) appRootDirectory(name string) string {
	return s.appState.AppsRootFolder + "/" + name
}

func (s *Server) appComposePath(name string) string {
	return s.appRootDirectory(name) + "/docker-compose.yml"
}
