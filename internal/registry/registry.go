// Package registry implements the App Registry (C6): the single
// in-memory map of AppName → AppData, with concurrent readers and
// serialized writers. Grounded on the teacher's internal/ws.Server
// conns-map pattern (one RWMutex guarding a map, snapshot copies
// returned to callers) and spec §4.6's "writers replace whole AppData
// values, reads return cloned snapshots" contract.
package registry

import (
	"sync"

	"github.com/scottyhq/scotty/internal/apperr"
	"github.com/scottyhq/scotty/internal/models"
)

// Registry is the shared, concurrency-safe map of app name to AppData.
type Registry struct {
	mu   sync.RWMutex
	apps map[string]*models.AppData
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{apps: make(map[string]*models.AppData)}
}

// Add inserts or replaces the entry for app.Name.
func (r *Registry) Add(app *models.AppData) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.apps[app.Name] = app.Clone()
}

// Get returns a cloned snapshot of the named app, or
// apperr.ErrAppNotFound.
func (r *Registry) Get(name string) (*models.AppData, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	app, ok := r.apps[name]
	if !ok {
		return nil, apperr.ErrAppNotFound
	}
	return app.Clone(), nil
}

// GetAll returns a cloned snapshot of every app, keyed by name. Callers
// never alias live registry state (spec §4.6).
func (r *Registry) GetAll() map[string]*models.AppData {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]*models.AppData, len(r.apps))
	for name, app := range r.apps {
		out[name] = app.Clone()
	}
	return out
}

// Update replaces the whole AppData value for app.Name (never a partial
// update, per spec §4.6). Update on an unknown name is equivalent to Add
// (orchestration relies on this to upsert without a separate existence
// check).
func (r *Registry) Update(app *models.AppData) {
	r.Add(app)
}

// Remove deletes the named app, used by Destroy (spec §3 AppData
// lifecycle). Discovery drops apps that vanished from disk through SetAll.
func (r *Registry) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.apps, name)
}

// SetAll atomically replaces the entire registry contents: the map is
// cleared and repopulated under one write lock (spec §4.6, §8 invariant
// 4: after SetAll(apps), GetAll() equals apps by name).
func (r *Registry) SetAll(apps []*models.AppData) {
	next := make(map[string]*models.AppData, len(apps))
	for _, app := range apps {
		next[app.Name] = app.Clone()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.apps = next
}

// Len returns the number of tracked apps.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.apps)
}
