// Command scottyd is the Scotty control-plane daemon: it serves the HTTP
// and WebSocket surfaces (C8, C9) over the shared orchestration state,
// and runs the discovery + TTL loop (C7) in the background. Grounded on
// the teacher's main.go (component wiring order, graceful shutdown,
// slog setup), adapted from dockge's single-binary-plus-SPA shape to a
// headless control plane with no embedded frontend.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/scottyhq/scotty/internal/api"
	"github.com/scottyhq/scotty/internal/blueprint"
	"github.com/scottyhq/scotty/internal/compose"
	"github.com/scottyhq/scotty/internal/config"
	"github.com/scottyhq/scotty/internal/containerd"
	"github.com/scottyhq/scotty/internal/discovery"
	"github.com/scottyhq/scotty/internal/notify"
	"github.com/scottyhq/scotty/internal/orchestration"
	"github.com/scottyhq/scotty/internal/registry"
	"github.com/scottyhq/scotty/internal/store"
	"github.com/scottyhq/scotty/internal/task"
	"github.com/scottyhq/scotty/internal/ws"
)

func main() {
	cfg := config.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	})))
	slog.Info("starting scottyd",
		"bind", cfg.BindAddress,
		"apps_root", cfg.AppsRootFolder,
		"apps_max_depth", cfg.AppsMaxDepth,
	)

	db, err := store.Open(cfg.BlueprintDBPath)
	if err != nil {
		slog.Error("open store", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	containers, err := containerd.NewClient()
	if err != nil {
		slog.Error("container runtime client", "error", err)
		os.Exit(1)
	}

	appReg := registry.New()
	tasks := task.NewManager()
	blueprints := blueprint.NewStore(db)

	appState := &orchestration.AppState{
		Registry:                appReg,
		Containers:              containers,
		Blueprints:              blueprints,
		Notifier:                notify.NewRegistry(),
		LoadBalancer:            cfg.LoadBalancer,
		DockerComposeProgram:    "docker",
		DockerComposeArgvPrefix: []string{"compose"},
		TaskOutput:              cfg.TaskOutput,
		AppsRootFolder:          cfg.AppsRootFolder,
	}

	hub := ws.NewHub(nil, appState, tasks)
	appState.Broadcaster = hub
	appState.Runner = compose.NewRunner(hub)

	srv := api.NewServer(appState, tasks, blueprints, nil, hub, cfg.CreateAppMaxSizeBytes)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	scanner := &discovery.Scanner{
		RootFolder: cfg.AppsRootFolder,
		MaxDepth:   cfg.AppsMaxDepth,
		Containers: containers,
		Registry:   appReg,
		AppState:   appState,
		Tasks:      tasks,
	}
	go scanner.Run(ctx, discovery.LoopConfig{
		ScanInterval: cfg.DiscoveryInterval,
		TTLInterval:  cfg.TTLInterval,
	})
	go tasks.RunPruneLoop(ctx, cfg.TaskPruneInterval, cfg.TaskRetention)

	httpServer := &http.Server{
		Addr:         cfg.BindAddress,
		Handler:      srv,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // the WebSocket hub and log/shell streams hold connections open indefinitely
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("listening", "addr", cfg.BindAddress)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown", "error", err)
	}
}
