package api

import (
	"github.com/scottyhq/scotty/internal/models"
	"github.com/scottyhq/scotty/internal/task"
)

// RunningAppContext is the response shape every mutating apps/* endpoint
// returns: the task driving the operation plus the app's current
// snapshot, with its environment masked the same way apps/list is (spec
// §4.9, §6, §8 invariant 6: "sensitive env keys never appear unmasked in
// any HTTP JSON response").
type RunningAppContext struct {
	Task    task.Details  `json:"task"`
	AppData MaskedAppData `json:"app_data"`
}

// AppListResponse is the body of GET /apps/list.
type AppListResponse struct {
	Apps []MaskedAppData `json:"apps"`
}

// MaskedAppData is models.AppData with its settings' environment masked
// on egress (spec §6 masking rule, §4.9 "sensitive env masked").
type MaskedAppData struct {
	*models.AppData
	Settings *MaskedAppSettings `json:"settings,omitempty"`
}

// MaskedAppSettings mirrors models.AppSettings but with Environment
// replaced by its masked form.
type MaskedAppSettings struct {
	models.AppSettings
	Environment map[string]string `json:"environment,omitempty"`
}

func maskApp(app *models.AppData) MaskedAppData {
	masked := MaskedAppData{AppData: app}
	if app.Settings != nil {
		s := *app.Settings
		masked.Settings = &MaskedAppSettings{
			AppSettings: s,
			Environment: app.Settings.MaskedEnvironment(),
		}
	}
	return masked
}

// TaskListResponse is the body of GET /tasks.
type TaskListResponse struct {
	Tasks []task.Details `json:"tasks"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// CreateAppRequest is the body of POST /apps/create.
type CreateAppRequest struct {
	Name     string              `json:"name"`
	Files    models.FileList     `json:"files"`
	Settings *models.AppSettings `json:"settings"`
}

// CustomActionRequest is the body of POST /apps/{name}/actions.
type CustomActionRequest struct {
	ActionName string `json:"action_name"`
}

// errorBody is the JSON shape every non-2xx response carries (spec §7
// "the body is {error:true, message}").
type errorBody struct {
	Error   bool   `json:"error"`
	Message string `json:"message"`
}
