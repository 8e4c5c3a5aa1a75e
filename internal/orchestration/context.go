// Package orchestration implements the Orchestration Handlers (C4): the
// concrete handlers wired into linear state machines for create,
// rebuild, run, stop, purge, destroy, adopt, and run-custom-action.
// Grounded on the teacher's handler-per-state construction style in
// internal/ws (small, composable units that each do one thing to a
// shared mutable context) and internal/compose/exec.go (the
// argv-building conventions RunDockerCompose reuses).
package orchestration

import (
	"context"

	"github.com/scottyhq/scotty/internal/blueprint"
	"github.com/scottyhq/scotty/internal/containerd"
	"github.com/scottyhq/scotty/internal/loadbalancer"
	"github.com/scottyhq/scotty/internal/models"
	"github.com/scottyhq/scotty/internal/notify"
	"github.com/scottyhq/scotty/internal/registry"
	"github.com/scottyhq/scotty/internal/task"
)

// Runner is the subset of compose.Runner the orchestration handlers need:
// spawn a process against a Task without finishing it, so several steps
// can share one Task before the machine's own SetFinished handler ends
// it. Declared here (rather than imported from compose) so tests can
// supply a fake without spawning real processes.
type Runner interface {
	RunStep(ctx context.Context, workingDir, program string, argv []string, env map[string]string, t *task.Task) error
}

// Broadcaster is notified of task and app-list changes; satisfied by
// both compose.Broadcaster and fsm.Broadcaster's identical method set.
type Broadcaster interface {
	TaskUpdated(id string)
}

// AppListBroadcaster additionally reports when the whole app list or one
// app's info changed, for the Hub to emit AppListUpdated/AppInfoUpdated.
type AppListBroadcaster interface {
	Broadcaster
	AppListUpdated()
	AppInfoUpdated(name string)
}

// AppState is the process-wide service bundle every orchestration
// handler reaches through its Context — a non-owning handle, not a
// parallel copy of app data (spec §9 "Cyclic references").
type AppState struct {
	Registry     *registry.Registry
	Runner       Runner
	Containers   containerd.Client
	Blueprints   *blueprint.Store
	Notifier     notify.Dispatcher
	LoadBalancer loadbalancer.GlobalSettings
	Broadcaster  AppListBroadcaster

	// DockerComposeProgram is "docker" with argv prefixed by "compose", or
	// a standalone "docker-compose" binary with no prefix, as set by the
	// caller (cmd/scottyd sets the v2 plugin form; nothing probes the host).
	DockerComposeProgram string
	DockerComposeArgvPrefix []string

	// RegistryCredentials resolves a registry key (AppSettings.Registry)
	// to login credentials for RunDockerLogin.
	RegistryCredentials func(registryKey string) (host, user, pass string, err error)

	// TaskOutput bounds the stdout/stderr capture of every task the HTTP
	// surface spawns (spec §4.2, §9 config "task OutputSettings").
	TaskOutput task.OutputSettings

	// AppsRootFolder is the directory new apps are created under (spec
	// §4.4 Create); existing apps are discovered independently by
	// internal/discovery and already carry their own RootDirectory.
	AppsRootFolder string
}

// ComposeArgv returns the full argv for invoking compose with the given
// trailing arguments, honoring DockerComposeProgram/ArgvPrefix.
func (s *AppState) ComposeArgv(args ...string) (program string, argv []string) {
	argv = append(append([]string(nil), s.DockerComposeArgvPrefix...), args...)
	return s.DockerComposeProgram, argv
}

// Context is the per-orchestration shared mutable state every handler
// receives (spec §3 "Context (per orchestration)"). It is not itself
// locked: handlers within one machine never run concurrently (spec
// §4.3), so field access needs no synchronization; only AppState's own
// owned resources (Registry, etc.) are independently thread-safe for
// access from outside the machine.
type Context struct {
	AppState *AppState
	AppData  *models.AppData
	Task     *task.Task

	// Files/Settings/Action carry the per-call inputs a handler consumes;
	// populated by whoever builds the Context (the HTTP handlers in
	// internal/api) before the machine is run.
	Files            models.FileList
	Settings         *models.AppSettings
	PostAction       blueprint.ActionKind
	CustomActionName string
	ComposeArgs      []string
	Notification     *notify.Notification
}
