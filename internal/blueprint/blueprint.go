// Package blueprint implements server-registered application blueprints:
// named templates describing an app family's required services and the
// scripted actions (PostCreate, PostRebuild, custom) run inside them.
// Supplements spec.md's RunPostActions handler (§4.4), which references
// "the blueprint referenced by settings" without specifying how
// blueprints are stored or loaded; grounded on the teacher's
// internal/models/setting.go bucket-scoped persistence pattern, now
// layered with YAML decoding the way internal/models/settings.go encodes
// AppSettings.
package blueprint

import (
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/scottyhq/scotty/internal/apperr"
	"github.com/scottyhq/scotty/internal/store"
)

// ActionKind names a point in an app's lifecycle a blueprint can hook.
type ActionKind string

const (
	ActionPostCreate  ActionKind = "PostCreate"
	ActionPostRebuild ActionKind = "PostRebuild"
)

// CustomAction builds the ActionKind for a named custom action (spec
// §4.4 RunPostActions' Custom(name) variant).
func CustomAction(name string) ActionKind {
	return ActionKind("Custom:" + name)
}

// ServiceScript is one service's scripted command for a given action.
type ServiceScript struct {
	Service string   `yaml:"service" json:"service"`
	Script  []string `yaml:"script" json:"script"`
}

// Blueprint is a server-side template for an app family.
type Blueprint struct {
	Name     string                       `yaml:"name" json:"name"`
	Services []string                     `yaml:"services" json:"services"`
	Actions  map[ActionKind][]ServiceScript `yaml:"actions" json:"actions"`
}

// Store persists blueprints in the shared bbolt database, under
// store.BucketBlueprints, keyed by name.
type Store struct {
	s *store.Store
}

// NewStore wraps a *store.Store for blueprint access.
func NewStore(s *store.Store) *Store {
	return &Store{s: s}
}

// Put upserts a blueprint definition.
func (bs *Store) Put(bp Blueprint) error {
	data, err := yaml.Marshal(bp)
	if err != nil {
		return fmt.Errorf("marshal blueprint %q: %w", bp.Name, err)
	}
	return bs.s.Set(store.BucketBlueprints, bp.Name, data)
}

// Get returns the blueprint registered under name, or
// apperr.ErrBlueprintNotFound.
func (bs *Store) Get(name string) (Blueprint, error) {
	data, err := bs.s.Get(store.BucketBlueprints, name)
	if err != nil {
		return Blueprint{}, err
	}
	if data == nil {
		return Blueprint{}, apperr.ErrBlueprintNotFound
	}
	var bp Blueprint
	if err := yaml.Unmarshal(data, &bp); err != nil {
		return Blueprint{}, fmt.Errorf("unmarshal blueprint %q: %w", name, err)
	}
	return bp, nil
}

// List returns every registered blueprint, sorted by name, for the
// GET /api/v1/blueprints endpoint (spec §4.9).
func (bs *Store) List() ([]Blueprint, error) {
	var out []Blueprint
	err := bs.s.ForEach(store.BucketBlueprints, func(key string, value []byte) error {
		var bp Blueprint
		if err := yaml.Unmarshal(value, &bp); err != nil {
			return fmt.Errorf("unmarshal blueprint %q: %w", key, err)
		}
		out = append(out, bp)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// ScriptsFor returns the per-service scripts registered for action, or
// nil if the blueprint declares no scripts for it (a no-op action, not
// an error: RunPostActions silently does nothing when a blueprint omits
// an action).
func (bp Blueprint) ScriptsFor(action ActionKind) []ServiceScript {
	return bp.Actions[action]
}
