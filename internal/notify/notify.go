// Package notify implements the notification dispatch contract the
// SetFinished handler (spec §4.4) enqueues to: best-effort delivery to
// whatever receivers an app's settings declare, where a transport
// failure logs and is discarded rather than failing the surrounding
// orchestration (spec §7). Concrete transports (webhook / chat /
// code-forge) are out of scope per spec.md §1; this package only owns
// the fan-out contract and an in-memory registry of transports a
// deployment can register against.
package notify

import (
	"context"
	"log/slog"
)

// Kind names a notification transport family.
type Kind string

// Notification is the payload enqueued after an orchestration completes.
type Notification struct {
	AppName string
	Message string
	Success bool
}

// Transport delivers one Notification. Implementations live outside this
// module; Scotty only calls them through this interface.
type Transport interface {
	Send(ctx context.Context, n Notification) error
}

// Dispatcher fans a Notification out to every transport registered for
// the receiver names an app's settings declare.
type Dispatcher interface {
	Enqueue(ctx context.Context, receivers []string, n Notification) error
}

// Registry is an in-memory Dispatcher: transports are registered by
// receiver name at startup (from server config), and Enqueue fans out to
// each named receiver, swallowing per-transport errors.
type Registry struct {
	transports map[string]Transport
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{transports: make(map[string]Transport)}
}

// Register associates a Transport with a receiver name.
func (r *Registry) Register(receiver string, t Transport) {
	r.transports[receiver] = t
}

// Enqueue sends n to every named receiver. Unknown receivers and
// transport failures are logged and discarded — never returned as an
// error — so a broken notification target can't fail the orchestration
// that triggered it (spec §7).
func (r *Registry) Enqueue(ctx context.Context, receivers []string, n Notification) error {
	for _, name := range receivers {
		t, ok := r.transports[name]
		if !ok {
			slog.Warn("notification receiver not registered", "receiver", name)
			continue
		}
		if err := t.Send(ctx, n); err != nil {
			slog.Warn("notification transport failed", "receiver", name, "error", err)
		}
	}
	return nil
}
