package discovery

import (
	"context"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"
)

// LoopConfig bounds how often the two sweeps run (spec §4.7).
type LoopConfig struct {
	ScanInterval time.Duration
	TTLInterval  time.Duration
}

const fastPathDebounce = 500 * time.Millisecond

// Run drives the discovery and TTL sweeps until ctx is canceled. An
// fsnotify watcher on RootFolder triggers an early, debounced rescan
// between ticks; the interval-driven scan remains the source of truth
// (spec §4.7, SPEC_FULL.md C7 "fsnotify only debounces an early wakeup").
// Watcher setup failures are logged and the loop falls back to
// interval-only scanning rather than aborting startup.
func (s *Scanner) Run(ctx context.Context, cfg LoopConfig) {
	if err := s.Scan(ctx); err != nil {
		slog.Error("discovery: initial scan failed", "error", err)
	}

	watcher, fastPath := s.watchRootFolder()
	if watcher != nil {
		defer watcher.Close()
	}

	scanTicker := time.NewTicker(cfg.ScanInterval)
	defer scanTicker.Stop()
	ttlTicker := time.NewTicker(cfg.TTLInterval)
	defer ttlTicker.Stop()

	var debounce *time.Timer

	for {
		select {
		case <-ctx.Done():
			return

		case <-scanTicker.C:
			if err := s.Scan(ctx); err != nil {
				slog.Error("discovery: scan failed", "error", err)
			}

		case <-ttlTicker.C:
			s.EnforceTTL(ctx)

		case <-fastPath:
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(fastPathDebounce, func() {
				if err := s.Scan(ctx); err != nil {
					slog.Error("discovery: fsnotify-triggered scan failed", "error", err)
				}
			})
		}
	}
}

// watchRootFolder sets up a best-effort fsnotify watcher on RootFolder,
// returning a channel that fires (non-blocking) on any relevant event. A
// nil watcher and channel are returned on setup failure; the caller
// treats that as "no fast path available," not a fatal error.
func (s *Scanner) watchRootFolder() (*fsnotify.Watcher, <-chan struct{}) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		slog.Warn("discovery: fsnotify unavailable, using interval-only scanning", "error", err)
		return nil, nil
	}
	if err := watcher.Add(s.RootFolder); err != nil {
		slog.Warn("discovery: cannot watch root folder, using interval-only scanning", "dir", s.RootFolder, "error", err)
		watcher.Close()
		return nil, nil
	}

	fastPath := make(chan struct{}, 1)
	go func() {
		for {
			select {
			case _, ok := <-watcher.Events:
				if !ok {
					return
				}
				select {
				case fastPath <- struct{}{}:
				default:
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Warn("discovery: fsnotify watcher error", "error", err)
			}
		}
	}()
	return watcher, fastPath
}
