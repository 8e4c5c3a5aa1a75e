package ws

import (
	"context"
	"testing"

	"github.com/scottyhq/scotty/internal/authcontract"
	"github.com/scottyhq/scotty/internal/orchestration"
	"github.com/scottyhq/scotty/internal/registry"
	"github.com/scottyhq/scotty/internal/task"
)

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	appState := &orchestration.AppState{Registry: registry.New()}
	return NewHub(authcontract.NoopAuthenticator{}, appState, task.NewManager())
}

func TestHubBroadcastFansOutToAllClients(t *testing.T) {
	h := newTestHub(t)
	c1 := newClient(nil, authcontract.Claims{}, DefaultOutboundQueueSize)
	c2 := newClient(nil, authcontract.Claims{}, DefaultOutboundQueueSize)
	h.register(c1)
	h.register(c2)

	h.AppListUpdated()

	for _, c := range []*Client{c1, c2} {
		select {
		case f := <-c.send:
			if f.Tag != TagAppListUpdated {
				t.Errorf("got tag %v, want AppListUpdated", f.Tag)
			}
		default:
			t.Error("expected a queued frame for every registered client")
		}
	}
}

func TestHubAppInfoUpdatedCarriesName(t *testing.T) {
	h := newTestHub(t)
	c := newClient(nil, authcontract.Claims{}, DefaultOutboundQueueSize)
	h.register(c)

	h.AppInfoUpdated("acme")

	f := <-c.send
	if f.Tag != TagAppInfoUpdated {
		t.Fatalf("got tag %v, want AppInfoUpdated", f.Tag)
	}
}

func TestHubUnregisterStopsFutureBroadcasts(t *testing.T) {
	h := newTestHub(t)
	c := newClient(nil, authcontract.Claims{}, DefaultOutboundQueueSize)
	h.register(c)
	h.unregister(c)

	h.AppListUpdated()

	select {
	case f := <-c.send:
		t.Errorf("expected no frame after unregister, got %v", f.Tag)
	default:
	}
}

func TestHubTaskUpdatedIgnoresUnknownTask(t *testing.T) {
	h := newTestHub(t)
	c := newClient(nil, authcontract.Claims{}, DefaultOutboundQueueSize)
	h.register(c)

	h.TaskUpdated("does-not-exist")

	select {
	case f := <-c.send:
		t.Errorf("expected no broadcast for an unknown task id, got %v", f.Tag)
	default:
	}
}

func TestHubDispatchRespondsToPing(t *testing.T) {
	h := newTestHub(t)
	c := newClient(nil, authcontract.Claims{}, DefaultOutboundQueueSize)

	h.dispatch(context.Background(), c, newFrame(TagPing, nil))

	f := <-c.send
	if f.Tag != TagPong {
		t.Errorf("got tag %v, want Pong", f.Tag)
	}
}

func TestHubDispatchUnknownLogStreamAppReturnsError(t *testing.T) {
	h := newTestHub(t)
	c := newClient(nil, authcontract.Claims{}, DefaultOutboundQueueSize)

	h.dispatch(context.Background(), c, newFrame(TagLogStreamRequest, LogStreamRequestPayload{App: "nope", Service: "web"}))

	f := <-c.send
	if f.Tag != TagLogsStreamError {
		t.Errorf("got tag %v, want LogsStreamError", f.Tag)
	}
}
