package orchestration

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/scottyhq/scotty/internal/apperr"
	"github.com/scottyhq/scotty/internal/blueprint"
	"github.com/scottyhq/scotty/internal/fsm"
	"github.com/scottyhq/scotty/internal/loadbalancer"
	"github.com/scottyhq/scotty/internal/models"
)

// settingsFileName is the on-disk name of an app's persisted AppSettings
// (spec §6 "on-disk layout").
const settingsFileName = ".scotty.yml"

const overrideFileName = "docker-compose.override.yml"

// SetHoldStatus pins ctx.AppData.Status to status and commits it to the
// registry immediately, so a concurrent GET /apps/list observes
// Creating/Destroying while the machine is in flight instead of the
// app's last container-derived status (spec §3). Create and Destroy are
// the only machines that hold a status this way; every other operation
// leaves status derivation to UpdateAppData.
func SetHoldStatus(next State, status models.Status) fsm.Handler[State, *Context] {
	return func(from State, ctx *Context) (State, error) {
		ctx.AppData.DeriveStatus(status)
		ctx.AppState.Registry.Update(ctx.AppData)
		if ctx.AppState.Broadcaster != nil {
			ctx.AppState.Broadcaster.AppInfoUpdated(ctx.AppData.Name)
			ctx.AppState.Broadcaster.AppListUpdated()
		}
		return next, nil
	}
}

// CreateDirectory mkdir -p's the app's root_directory (spec §4.4).
func CreateDirectory(next State) fsm.Handler[State, *Context] {
	return func(from State, ctx *Context) (State, error) {
		if err := os.MkdirAll(ctx.AppData.RootDirectory, 0o755); err != nil {
			return from, fmt.Errorf("create app directory: %w", err)
		}
		return next, nil
	}
}

// SaveFiles writes ctx.Files into the app's root, rejecting any path that
// would escape it (spec §4.4, §8 invariant 2).
func SaveFiles(next State) fsm.Handler[State, *Context] {
	return func(from State, ctx *Context) (State, error) {
		for _, f := range ctx.Files {
			cleaned, err := models.CleanedPath(ctx.AppData.RootDirectory, f.Name)
			if err != nil {
				return from, err
			}
			if err := os.MkdirAll(filepath.Dir(cleaned), 0o755); err != nil {
				return from, fmt.Errorf("create parent dir for %q: %w", f.Name, err)
			}
			if err := os.WriteFile(cleaned, f.Content, 0o644); err != nil {
				return from, fmt.Errorf("write file %q: %w", f.Name, err)
			}
		}
		return next, nil
	}
}

// SaveSettings writes ctx.Settings as .scotty.yml into the app's root.
// Sensitive env values are written unmasked (spec §4.4): masking only
// ever applies at API egress.
func SaveSettings(next State) fsm.Handler[State, *Context] {
	return func(from State, ctx *Context) (State, error) {
		if ctx.Settings == nil {
			return next, nil
		}
		data, err := yaml.Marshal(ctx.Settings)
		if err != nil {
			return from, fmt.Errorf("marshal settings: %w", err)
		}
		path := filepath.Join(ctx.AppData.RootDirectory, settingsFileName)
		if err := os.WriteFile(path, data, 0o600); err != nil {
			return from, fmt.Errorf("write %s: %w", settingsFileName, err)
		}
		ctx.AppData.Settings = ctx.Settings
		return next, nil
	}
}

// CreateLoadBalancerConfig invokes the Load-Balancer Adapter (C5) and
// writes its output as docker-compose.override.yml next to the primary
// compose file (spec §4.4).
func CreateLoadBalancerConfig(next State) fsm.Handler[State, *Context] {
	return func(from State, ctx *Context) (State, error) {
		doc, err := loadbalancer.Generate(ctx.AppState.LoadBalancer, ctx.AppData.Name, ctx.Settings)
		if err != nil {
			return from, err
		}
		if doc == nil {
			return next, nil
		}
		path := filepath.Join(ctx.AppData.RootDirectory, overrideFileName)
		if err := os.WriteFile(path, doc, 0o644); err != nil {
			return from, fmt.Errorf("write %s: %w", overrideFileName, err)
		}
		return next, nil
	}
}

// RunDockerLogin logs into the registry named by ctx.Settings.Registry,
// if any (spec §4.4). A non-zero exit from `docker login` is fatal.
func RunDockerLogin(next State) fsm.Handler[State, *Context] {
	return func(from State, ctx *Context) (State, error) {
		if ctx.Settings == nil || ctx.Settings.Registry == "" {
			return next, nil
		}
		if ctx.AppState.RegistryCredentials == nil {
			return from, apperr.ErrRegistryNotFound
		}
		host, user, pass, err := ctx.AppState.RegistryCredentials(ctx.Settings.Registry)
		if err != nil {
			return from, apperr.Wrap(apperr.KindRegistryNotFound, "resolve registry credentials", err)
		}

		argv := []string{"login", host, "-u", user, "-p", pass}
		if err := ctx.AppState.Runner.RunStep(context.Background(), ctx.AppData.RootDirectory, "docker", argv, nil, ctx.Task); err != nil {
			return from, apperr.DockerLoginFailed(err)
		}
		return next, nil
	}
}

// RunDockerCompose invokes `docker compose <args>` against the app's
// compose directory (spec §4.4). Non-zero exit is fatal.
func RunDockerCompose(next State, args []string) fsm.Handler[State, *Context] {
	return func(from State, ctx *Context) (State, error) {
		program, argv := ctx.AppState.ComposeArgv(args...)
		var env map[string]string
		if ctx.Settings != nil {
			env = ctx.Settings.Environment
		}
		workingDir := filepath.Dir(ctx.AppData.DockerComposePath)
		if err := ctx.AppState.Runner.RunStep(context.Background(), workingDir, program, argv, env, ctx.Task); err != nil {
			return from, err
		}
		return next, nil
	}
}

// RunPostActions executes the blueprint scripts registered for action
// inside each named service, in order, stopping at the first failure
// (spec §4.4). A blueprint that declares no scripts for action, or an
// app with no blueprint configured, is a no-op, not an error.
func RunPostActions(next State, action blueprint.ActionKind) fsm.Handler[State, *Context] {
	return func(from State, ctx *Context) (State, error) {
		if ctx.Settings == nil || ctx.Settings.AppBlueprint == "" {
			return next, nil
		}
		bp, err := ctx.AppState.Blueprints.Get(ctx.Settings.AppBlueprint)
		if err != nil {
			return from, err
		}

		workingDir := filepath.Dir(ctx.AppData.DockerComposePath)
		for _, s := range bp.ScriptsFor(action) {
			program, argv := ctx.AppState.ComposeArgv("exec", s.Service, "sh", "-c", strings.Join(s.Script, ";"))
			if err := ctx.AppState.Runner.RunStep(context.Background(), workingDir, program, argv, nil, ctx.Task); err != nil {
				return from, fmt.Errorf("post-action on service %q: %w", s.Service, err)
			}
		}
		return next, nil
	}
}

// UpdateAppData re-inspects the app's containers via the container
// runtime and replaces the App Registry entry (spec §4.4).
func UpdateAppData(next State) fsm.Handler[State, *Context] {
	return func(from State, ctx *Context) (State, error) {
		services, err := ctx.AppState.Containers.ListProjectContainers(context.Background(), ctx.AppData.ProjectName())
		if err != nil {
			return from, fmt.Errorf("inspect containers: %w", err)
		}
		ctx.AppData.Services = services
		ctx.AppData.DeriveStatus("")
		ctx.AppState.Registry.Update(ctx.AppData)
		if ctx.AppState.Broadcaster != nil {
			ctx.AppState.Broadcaster.AppInfoUpdated(ctx.AppData.Name)
			ctx.AppState.Broadcaster.AppListUpdated()
		}
		return next, nil
	}
}

// RemoveFromRegistry deletes the app from the registry (Destroy).
func RemoveFromRegistry(next State) fsm.Handler[State, *Context] {
	return func(from State, ctx *Context) (State, error) {
		ctx.AppState.Registry.Remove(ctx.AppData.Name)
		if ctx.AppState.Broadcaster != nil {
			ctx.AppState.Broadcaster.AppListUpdated()
		}
		return next, nil
	}
}

// RemoveDirectory deletes the app's entire root directory tree (Destroy).
func RemoveDirectory(next State) fsm.Handler[State, *Context] {
	return func(from State, ctx *Context) (State, error) {
		if err := os.RemoveAll(ctx.AppData.RootDirectory); err != nil {
			return from, fmt.Errorf("remove app directory: %w", err)
		}
		return next, nil
	}
}

// AdoptReadSettings loads a sibling .scotty.yml if present, leaving the
// app legacy/Unsupported otherwise (spec §4.4 Adopt, §3 IsLegacy).
func AdoptReadSettings(next State) fsm.Handler[State, *Context] {
	return func(from State, ctx *Context) (State, error) {
		path := filepath.Join(ctx.AppData.RootDirectory, settingsFileName)
		data, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			return next, nil
		}
		if err != nil {
			return from, fmt.Errorf("read %s: %w", settingsFileName, err)
		}
		var settings models.AppSettings
		if err := yaml.Unmarshal(data, &settings); err != nil {
			return from, fmt.Errorf("unmarshal %s: %w", settingsFileName, err)
		}
		ctx.Settings = &settings
		ctx.AppData.Settings = &settings
		return next, nil
	}
}

// SetFinished marks the task Finished and broadcasts TaskInfoUpdated; if
// ctx.Notification is set it is enqueued (spec §4.4). This is the only
// handler that transitions the task's terminal state — every other
// handler uses RunStep/RecordExitCode so the task stays Running until
// here.
func SetFinished(next State) fsm.Handler[State, *Context] {
	return func(from State, ctx *Context) (State, error) {
		ctx.Task.Finish(0)
		if ctx.AppState.Broadcaster != nil {
			ctx.AppState.Broadcaster.TaskUpdated(ctx.Task.ID())
		}
		if ctx.Notification != nil && ctx.AppState.Notifier != nil && ctx.Settings != nil {
			_ = ctx.AppState.Notifier.Enqueue(context.Background(), ctx.Settings.NotificationReceivers(), *ctx.Notification)
		}
		return next, nil
	}
}
