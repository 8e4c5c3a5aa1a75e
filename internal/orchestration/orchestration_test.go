package orchestration

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/scottyhq/scotty/internal/blueprint"
	"github.com/scottyhq/scotty/internal/containerd"
	"github.com/scottyhq/scotty/internal/loadbalancer"
	"github.com/scottyhq/scotty/internal/models"
	"github.com/scottyhq/scotty/internal/notify"
	"github.com/scottyhq/scotty/internal/registry"
	"github.com/scottyhq/scotty/internal/store"
	"github.com/scottyhq/scotty/internal/task"
)

type fakeRunner struct {
	calls     []string
	failOn    string
	exitCodes map[string]int
}

func (f *fakeRunner) RunStep(ctx context.Context, workingDir, program string, argv []string, env map[string]string, t *task.Task) error {
	label := program
	if len(argv) > 0 {
		label = argv[0]
	}
	if len(argv) > 1 && argv[0] == "compose" {
		label = argv[1]
	}
	f.calls = append(f.calls, label)
	t.AppendStdout("ran " + label)
	if label == f.failOn {
		t.RecordExitCode(1)
		return errors.New("step failed: " + label)
	}
	t.RecordExitCode(0)
	return nil
}

type fakeBroadcaster struct {
	taskUpdates    int
	appListUpdates int
	appInfoUpdates []string
}

func (f *fakeBroadcaster) TaskUpdated(string)     { f.taskUpdates++ }
func (f *fakeBroadcaster) AppListUpdated()        { f.appListUpdates++ }
func (f *fakeBroadcaster) AppInfoUpdated(name string) { f.appInfoUpdates = append(f.appInfoUpdates, name) }

func newTestAppState(t *testing.T, runner Runner, broadcaster *fakeBroadcaster) *AppState {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "scotty.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	return &AppState{
		Registry:   registry.New(),
		Runner:     runner,
		Containers: containerd.NewFakeClient(),
		Blueprints: blueprint.NewStore(s),
		Notifier:   notify.NewRegistry(),
		LoadBalancer: loadbalancer.GlobalSettings{
			Variant:      loadbalancer.VariantReverseProxyLabels,
			DomainSuffix: "apps.test",
		},
		Broadcaster:             broadcaster,
		DockerComposeProgram:    "docker",
		DockerComposeArgvPrefix: []string{"compose"},
	}
}

func TestCreateMachineRunsAllStepsAndFinishesTask(t *testing.T) {
	root := t.TempDir()
	appState := newTestAppState(t, &fakeRunner{}, &fakeBroadcaster{})
	appData := &models.AppData{
		Name:              "acme",
		RootDirectory:     filepath.Join(root, "acme"),
		DockerComposePath: filepath.Join(root, "acme", "docker-compose.yml"),
		RequestedScopes:   models.DefaultScopes,
	}
	tk := task.New("t1", "create acme", "acme", task.DefaultOutputSettings)

	ctx := &Context{
		AppState: appState,
		AppData:  appData,
		Files: models.FileList{
			{Name: "docker-compose.yml", Content: []byte("services: {}\n")},
		},
		Settings: &models.AppSettings{PublicServices: []models.PublicService{{Service: "web", Port: 8080}}},
		Task:     tk,
	}

	m := BuildCreateMachine()
	if err := m.Run(ctx, tk, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if _, err := os.Stat(appData.RootDirectory); err != nil {
		t.Errorf("expected app root directory to exist: %v", err)
	}
	if _, err := os.Stat(filepath.Join(appData.RootDirectory, "docker-compose.yml")); err != nil {
		t.Errorf("expected compose file to be written: %v", err)
	}
	if _, err := os.Stat(filepath.Join(appData.RootDirectory, ".scotty.yml")); err != nil {
		t.Errorf("expected settings file to be written: %v", err)
	}

	d := tk.Details()
	if d.State != task.StateFinished {
		t.Errorf("State = %v, want Finished", d.State)
	}
	if _, err := appState.Registry.Get("acme"); err != nil {
		t.Errorf("expected app registered after UpdateAppData: %v", err)
	}
}

func TestCreateMachineDirectoryTraversalAborts(t *testing.T) {
	root := t.TempDir()
	appState := newTestAppState(t, &fakeRunner{}, &fakeBroadcaster{})
	appData := &models.AppData{
		Name:              "acme",
		RootDirectory:     filepath.Join(root, "acme"),
		DockerComposePath: filepath.Join(root, "acme", "docker-compose.yml"),
	}
	tk := task.New("t1", "create acme", "acme", task.DefaultOutputSettings)

	ctx := &Context{
		AppState: appState,
		AppData:  appData,
		Files: models.FileList{
			{Name: "../evil", Content: []byte("x")},
		},
		Task: tk,
	}

	m := BuildCreateMachine()
	if err := m.Run(ctx, tk, nil); err == nil {
		t.Fatal("expected directory traversal to abort the machine")
	}

	if tk.Details().State != task.StateFailed {
		t.Error("expected task Failed after traversal rejection")
	}
	if _, err := os.Stat(filepath.Join(root, "evil")); err == nil {
		t.Error("file must not have been written outside the app root")
	}
}

func TestComposeFailureAbortsMachineBeforeSetFinished(t *testing.T) {
	root := t.TempDir()
	runner := &fakeRunner{failOn: "up"}
	appState := newTestAppState(t, runner, &fakeBroadcaster{})
	appData := &models.AppData{
		Name:              "acme",
		RootDirectory:     filepath.Join(root, "acme"),
		DockerComposePath: filepath.Join(root, "acme", "docker-compose.yml"),
	}
	tk := task.New("t1", "run acme", "acme", task.DefaultOutputSettings)

	ctx := &Context{AppState: appState, AppData: appData, Task: tk}

	m := BuildRunMachine()
	if err := m.Run(ctx, tk, nil); err == nil {
		t.Fatal("expected compose failure to abort the machine")
	}

	d := tk.Details()
	if d.State != task.StateFailed {
		t.Errorf("State = %v, want Failed", d.State)
	}
	if _, err := appState.Registry.Get("acme"); err == nil {
		t.Error("UpdateAppData must not have run after the aborting step")
	}
}

func TestDestroyRefusedForUnmanagedApp(t *testing.T) {
	appData := &models.AppData{Name: "legacy"}
	ctx := &Context{AppData: appData}

	if err := RequireManaged(ctx); err == nil {
		t.Fatal("expected RequireManaged to refuse a legacy app")
	}
}

func TestPurgeMachineChoosesArgvByMethod(t *testing.T) {
	root := t.TempDir()
	runner := &fakeRunner{}
	appState := newTestAppState(t, runner, &fakeBroadcaster{})
	appData := &models.AppData{
		Name:              "acme",
		RootDirectory:     filepath.Join(root, "acme"),
		DockerComposePath: filepath.Join(root, "acme", "docker-compose.yml"),
	}
	tk := task.New("t1", "purge acme", "acme", task.DefaultOutputSettings)
	ctx := &Context{AppState: appState, AppData: appData, Task: tk}

	m := BuildPurgeMachine(PurgeRm)
	if err := m.Run(ctx, tk, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(runner.calls) == 0 || runner.calls[0] != "rm" {
		t.Errorf("expected first compose call to be rm, got %v", runner.calls)
	}
}
