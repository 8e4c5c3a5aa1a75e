package registry

import (
	"errors"
	"testing"

	"github.com/scottyhq/scotty/internal/apperr"
	"github.com/scottyhq/scotty/internal/models"
)

func TestRegistryAddGetRoundTrip(t *testing.T) {
	r := New()
	r.Add(&models.AppData{Name: "acme", Status: models.StatusStopped})

	app, err := r.Get("acme")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if app.Name != "acme" {
		t.Errorf("Name = %q, want acme", app.Name)
	}
}

func TestRegistryGetNotFound(t *testing.T) {
	r := New()
	_, err := r.Get("nope")
	if !errors.Is(err, apperr.ErrAppNotFound) {
		t.Errorf("expected ErrAppNotFound, got %v", err)
	}
}

func TestRegistryGetReturnsASnapshotNotAnAlias(t *testing.T) {
	r := New()
	r.Add(&models.AppData{Name: "acme", RequestedScopes: []string{"default"}})

	app, _ := r.Get("acme")
	app.RequestedScopes[0] = "mutated"

	again, _ := r.Get("acme")
	if again.RequestedScopes[0] != "default" {
		t.Error("mutating a returned snapshot must not affect the registry")
	}
}

func TestRegistrySetAllIsAtomicAndComplete(t *testing.T) {
	r := New()
	r.Add(&models.AppData{Name: "stale"})

	r.SetAll([]*models.AppData{
		{Name: "a"},
		{Name: "b"},
	})

	all := r.GetAll()
	if len(all) != 2 {
		t.Fatalf("expected 2 apps after SetAll, got %d", len(all))
	}
	if _, ok := all["stale"]; ok {
		t.Error("SetAll must clear apps absent from the new set")
	}
	if _, ok := all["a"]; !ok {
		t.Error("missing app a")
	}
}

func TestRegistryRemove(t *testing.T) {
	r := New()
	r.Add(&models.AppData{Name: "acme"})
	r.Remove("acme")

	if _, err := r.Get("acme"); !errors.Is(err, apperr.ErrAppNotFound) {
		t.Error("expected app to be gone after Remove")
	}
}
