package task

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/scottyhq/scotty/internal/apperr"
)

// Handle is whatever the spawner returns for a running unit of work; the
// Task Manager only needs to be able to ask it to stop. Grounded on the
// teacher's terminal.Manager pattern of pairing a buffer with a cancel
// function (internal/terminal/manager.go SetCancel/Close).
type Handle interface {
	// Cancel requests cooperative cancellation; the runner decides when to
	// escalate to a hard kill (spec §4.2: 5s grace period).
	Cancel()
}

type entry struct {
	mu     sync.Mutex
	task   *Task
	handle Handle
}

// Manager owns all in-flight and recently finished tasks (spec §4.2 C2).
// A single writer lock per id plus a shared read lock for list/get,
// matching the teacher's internal/ws.Server conns-map pattern.
type Manager struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

// NewManager creates an empty Task Manager.
func NewManager() *Manager {
	return &Manager{entries: make(map[string]*entry)}
}

// AddTask registers a new task under id. Returns apperr with KindInput if
// id is already registered (at-most-once insertion, spec §4.2).
func (m *Manager) AddTask(id string, t *Task, handle Handle) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.entries[id]; exists {
		return apperr.New(apperr.KindInput, "task id already registered: "+id)
	}
	m.entries[id] = &entry{task: t, handle: handle}
	return nil
}

// GetTaskDetails returns a snapshot of the task, or ErrTaskNotFound.
func (m *Manager) GetTaskDetails(id string) (Details, error) {
	t := m.getTask(id)
	if t == nil {
		return Details{}, apperr.ErrTaskNotFound
	}
	return t.Details(), nil
}

// GetTask returns the live *Task for internal callers (handlers appending
// output), or nil if not found.
func (m *Manager) GetTask(id string) *Task {
	return m.getTask(id)
}

func (m *Manager) getTask(id string) *Task {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[id]
	if !ok {
		return nil
	}
	return e.task
}

// GetTaskHandle returns the execution handle for id, or nil if not found
// or no handle was registered.
func (m *Manager) GetTaskHandle(id string) Handle {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[id]
	if !ok {
		return nil
	}
	return e.handle
}

// GetTaskList returns a point-in-time snapshot of all tasks ordered by
// start_time descending (spec §4.2).
func (m *Manager) GetTaskList() []Details {
	m.mu.RLock()
	entries := make([]*entry, 0, len(m.entries))
	for _, e := range m.entries {
		entries = append(entries, e)
	}
	m.mu.RUnlock()

	out := make([]Details, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.task.Details())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartTime.After(out[j].StartTime)
	})
	return out
}

// Cancel requests cooperative cancellation of the task's handle.
func (m *Manager) Cancel(id string) error {
	m.mu.RLock()
	e, ok := m.entries[id]
	m.mu.RUnlock()
	if !ok {
		return apperr.ErrTaskNotFound
	}

	e.task.RequestCancel()
	if e.handle != nil {
		e.handle.Cancel()
	}
	return nil
}

// Prune removes any task whose finish_time is older than retention
// (spec §4.2). Running tasks are never pruned.
func (m *Manager) Prune(retention time.Duration) {
	cutoff := time.Now().Add(-retention)

	m.mu.Lock()
	defer m.mu.Unlock()

	for id, e := range m.entries {
		ft := e.task.FinishTime()
		if ft != nil && ft.Before(cutoff) {
			delete(m.entries, id)
		}
	}
}

// RunPruneLoop calls Prune(retention) on every tick until ctx is
// canceled, the same ticker-driven shape as discovery.Scanner.Run, so
// finished tasks don't accumulate unbounded (spec §4.2 retention window).
func (m *Manager) RunPruneLoop(ctx context.Context, interval, retention time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Prune(retention)
		}
	}
}

// Len returns the number of tasks currently tracked.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
