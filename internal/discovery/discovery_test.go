package discovery

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/scottyhq/scotty/internal/containerd"
	"github.com/scottyhq/scotty/internal/models"
	"github.com/scottyhq/scotty/internal/orchestration"
	"github.com/scottyhq/scotty/internal/registry"
	"github.com/scottyhq/scotty/internal/task"
)

func writeComposeApp(t *testing.T, root, name string, settingsYAML string) string {
	t.Helper()
	dir := filepath.Join(root, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "docker-compose.yml"), []byte("services: {}\n"), 0o644); err != nil {
		t.Fatalf("WriteFile compose: %v", err)
	}
	if settingsYAML != "" {
		if err := os.WriteFile(filepath.Join(dir, settingsFileName), []byte(settingsYAML), 0o644); err != nil {
			t.Fatalf("WriteFile settings: %v", err)
		}
	}
	return dir
}

func TestScanRegistersManagedAndLegacyApps(t *testing.T) {
	root := t.TempDir()
	writeComposeApp(t, root, "managed-app", "ttl: forever\n")
	writeComposeApp(t, root, "legacy-app", "")

	containers := containerd.NewFakeClient()
	reg := registry.New()
	s := &Scanner{RootFolder: root, MaxDepth: 2, Containers: containers, Registry: reg}

	if err := s.Scan(context.Background()); err != nil {
		t.Fatalf("Scan: %v", err)
	}

	managed, err := reg.Get("managed-app")
	if err != nil {
		t.Fatalf("expected managed-app registered: %v", err)
	}
	if managed.IsLegacy() {
		t.Error("managed-app should not be legacy (has .scotty.yml)")
	}

	legacy, err := reg.Get("legacy-app")
	if err != nil {
		t.Fatalf("expected legacy-app registered: %v", err)
	}
	if !legacy.IsLegacy() {
		t.Error("legacy-app should be legacy (no .scotty.yml)")
	}
	if legacy.Status != models.StatusUnsupported {
		t.Errorf("legacy-app status = %v, want Unsupported", legacy.Status)
	}
}

func TestScanReplacesRegistryWholesale(t *testing.T) {
	root := t.TempDir()
	writeComposeApp(t, root, "keep-me", "ttl: forever\n")

	containers := containerd.NewFakeClient()
	reg := registry.New()
	reg.Add(&models.AppData{Name: "stale-app"})

	s := &Scanner{RootFolder: root, MaxDepth: 2, Containers: containers, Registry: reg}
	if err := s.Scan(context.Background()); err != nil {
		t.Fatalf("Scan: %v", err)
	}

	if _, err := reg.Get("stale-app"); err == nil {
		t.Error("expected stale-app to be gone after set_all reconciliation")
	}
	if _, err := reg.Get("keep-me"); err != nil {
		t.Errorf("expected keep-me present: %v", err)
	}
}

func TestScanPopulatesServicesFromContainerRuntime(t *testing.T) {
	root := t.TempDir()
	writeComposeApp(t, root, "webapp", "ttl: forever\n")

	containers := containerd.NewFakeClient()
	containers.Projects["webapp"] = []models.ContainerState{
		{Service: "web", Status: models.ContainerRunning},
	}
	reg := registry.New()
	s := &Scanner{RootFolder: root, MaxDepth: 2, Containers: containers, Registry: reg}

	if err := s.Scan(context.Background()); err != nil {
		t.Fatalf("Scan: %v", err)
	}

	app, err := reg.Get("webapp")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if app.Status != models.StatusRunning {
		t.Errorf("Status = %v, want Running", app.Status)
	}
}

func TestEnforceTTLForceStopsExpiredApp(t *testing.T) {
	root := t.TempDir()
	dir := writeComposeApp(t, root, "expiring-app", "ttl: 1\n")

	started := time.Now().Add(-time.Hour)
	containers := containerd.NewFakeClient()
	containers.Projects["expiring-app"] = []models.ContainerState{
		{Service: "web", Status: models.ContainerRunning, StartedAt: &started},
	}

	reg := registry.New()
	runner := &fakeStopRunner{containers: containers, project: "expiring-app"}
	appState := &orchestration.AppState{
		Registry:                reg,
		Runner:                  runner,
		Containers:              containers,
		DockerComposeProgram:    "docker",
		DockerComposeArgvPrefix: []string{"compose"},
	}

	s := &Scanner{RootFolder: root, MaxDepth: 2, Containers: containers, Registry: reg, AppState: appState}
	if err := s.Scan(context.Background()); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	_ = dir

	s.EnforceTTL(context.Background())

	if !runner.called {
		t.Fatal("expected TTL sweep to invoke the Stop machine's compose runner")
	}

	app, err := reg.Get("expiring-app")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if app.Status != models.StatusStopped {
		t.Errorf("Status after force-stop = %v, want Stopped", app.Status)
	}
}

// fakeStopRunner simulates `compose stop` by marking the project's
// containers Exited the first time it runs, so UpdateAppData (which runs
// right after within the same machine) observes the post-stop state.
type fakeStopRunner struct {
	containers *containerd.FakeClient
	project    string
	called     bool
}

func (f *fakeStopRunner) RunStep(ctx context.Context, workingDir, program string, argv []string, env map[string]string, t *task.Task) error {
	f.called = true
	t.AppendStdout("stopped")
	t.RecordExitCode(0)

	services := f.containers.Projects[f.project]
	for i := range services {
		services[i].Status = models.ContainerExited
	}
	f.containers.Projects[f.project] = services
	return nil
}
