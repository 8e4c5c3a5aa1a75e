// Package discovery implements the App Discovery + TTL Loop (C7): a
// periodic filesystem scan that reconciles the App Registry with what
// actually exists on disk and in the container runtime, plus a TTL
// sweep that force-stops apps that outlived their configured lifetime.
// Grounded on the teacher's internal/compose/watcher.go (fsnotify +
// debounce + retry/backoff loop) and internal/handlers/stack.go's
// StartStackWatcher (ticker-driven rescan).
package discovery

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/scottyhq/scotty/internal/compose"
	"github.com/scottyhq/scotty/internal/containerd"
	"github.com/scottyhq/scotty/internal/fsm"
	"github.com/scottyhq/scotty/internal/models"
	"github.com/scottyhq/scotty/internal/orchestration"
	"github.com/scottyhq/scotty/internal/registry"
	"github.com/scottyhq/scotty/internal/slug"
	"github.com/scottyhq/scotty/internal/task"
)

const settingsFileName = ".scotty.yml"

// Scanner owns one discovery cycle: walking the root folder, inspecting
// the container runtime, and reconciling the registry (spec §4.7).
type Scanner struct {
	RootFolder string
	MaxDepth   int
	Containers containerd.Client
	Registry   *registry.Registry
	AppState   *orchestration.AppState
	Tasks      *task.Manager
}

// Scan walks RootFolder up to MaxDepth, treating any directory holding a
// compose file as a candidate app, and replaces the registry's contents
// wholesale via SetAll so apps removed from disk disappear from the
// registry too (spec §4.7 "replace registry via set_all").
func (s *Scanner) Scan(ctx context.Context) error {
	var apps []*models.AppData

	err := walkToDepth(s.RootFolder, s.MaxDepth, func(dir string) {
		composePath := compose.FindComposeFile(dir)
		if composePath == "" {
			return
		}
		app, err := s.loadCandidate(ctx, dir, composePath)
		if err != nil {
			slog.Warn("discovery: skipping candidate", "dir", dir, "error", err)
			return
		}
		apps = append(apps, app)
	})
	if err != nil {
		return err
	}

	s.Registry.SetAll(apps)
	return nil
}

// loadCandidate builds one AppData from a directory known to contain a
// compose file: its name is the slugified directory name, its services
// come from the container runtime, and its settings come from a sibling
// .scotty.yml if present (absence means Unsupported, spec §4.7).
func (s *Scanner) loadCandidate(ctx context.Context, dir, composePath string) (*models.AppData, error) {
	project := filepath.Base(dir)
	name := slug.Slugify(project)

	app := &models.AppData{
		Name:              name,
		RootDirectory:     dir,
		DockerComposePath: composePath,
		ComposeProject:    project,
	}

	services, err := s.Containers.ListProjectContainers(ctx, app.ProjectName())
	if err != nil {
		return nil, err
	}
	app.Services = services

	settings, err := loadSettings(dir)
	if err != nil {
		return nil, err
	}
	app.Settings = settings

	app.DeriveStatus("")
	return app, nil
}

// loadSettings reads the sibling .scotty.yml, returning (nil, nil) if it
// does not exist: that marks the app legacy/Unsupported rather than an
// error (spec §4.7, §3 AppData.IsLegacy).
func loadSettings(dir string) (*models.AppSettings, error) {
	data, err := os.ReadFile(filepath.Join(dir, settingsFileName))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var settings models.AppSettings
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return nil, err
	}
	return &settings, nil
}

// walkToDepth calls visit(dir) for root and every descendant directory up
// to maxDepth levels below it (maxDepth<=0 means root only).
func walkToDepth(root string, maxDepth int, visit func(dir string)) error {
	return walkDir(root, 0, maxDepth, visit)
}

func walkDir(dir string, depth, maxDepth int, visit func(dir string)) error {
	if _, err := os.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	visit(dir)

	if depth >= maxDepth {
		return nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		slog.Warn("discovery: cannot read directory", "dir", dir, "error", err)
		return nil
	}
	for _, entry := range entries {
		if !entry.IsDir() || isHidden(entry.Name()) {
			continue
		}
		if err := walkDir(filepath.Join(dir, entry.Name()), depth+1, maxDepth, visit); err != nil {
			return err
		}
	}
	return nil
}

func isHidden(name string) bool {
	return len(name) > 0 && name[0] == '.'
}

// EnforceTTL sweeps every registered app and force-stops any whose
// max_service_age exceeds its TTL (spec §4.7 "TTL is a hint, not a hard
// deadline: the next tick enforces it").
func (s *Scanner) EnforceTTL(ctx context.Context) {
	now := time.Now()
	for _, app := range s.Registry.GetAll() {
		if app.Settings == nil {
			continue
		}
		age := app.MaxServiceAge(now)
		if !app.Settings.TTL.Expired(age) {
			continue
		}
		s.forceStop(app)
	}
}

// forceStop runs the Stop machine for app and waits for it to finish,
// the same path an operator-initiated Stop takes, so the TTL sweep produces the
// ordinary TaskInfoUpdated/AppInfoUpdated broadcasts (spec §4.7
// "force_stop_app").
func (s *Scanner) forceStop(app *models.AppData) {
	tk := task.New(uuid.NewString(), "ttl stop "+app.Name, app.Name, task.DefaultOutputSettings)
	if s.Tasks != nil {
		if err := s.Tasks.AddTask(tk.ID(), tk, cancelHandle{tk}); err != nil {
			slog.Warn("discovery: cannot register ttl-stop task", "app", app.Name, "error", err)
			return
		}
	}

	octx := &orchestration.Context{
		AppState: s.AppState,
		AppData:  app,
		Task:     tk,
	}

	var broadcaster fsm.Broadcaster = fsm.NopBroadcaster{}
	if s.AppState != nil && s.AppState.Broadcaster != nil {
		broadcaster = s.AppState.Broadcaster
	}
	<-orchestration.BuildStopMachine().Spawn(octx, tk, broadcaster)
}

// cancelHandle adapts a *task.Task to task.Handle so the Task Manager can
// request cooperative cancellation of a TTL-triggered stop.
type cancelHandle struct{ t *task.Task }

func (h cancelHandle) Cancel() { h.t.RequestCancel() }
