package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/coder/websocket"

	"github.com/scottyhq/scotty/internal/authcontract"
	"github.com/scottyhq/scotty/internal/orchestration"
	"github.com/scottyhq/scotty/internal/task"
)

// Hub accepts WebSocket connections, authenticates them, and fans out
// domain events to every connected Client. It implements
// orchestration.AppListBroadcaster so AppState.Broadcaster can be wired
// directly to a *Hub. Grounded on the teacher's internal/ws/server.go
// accept/register/broadcast loop, generalized from a single conns map to
// also own per-client log-stream and shell-session subscriptions.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client

	auth      authcontract.Authenticator
	appState  *orchestration.AppState
	tasks     *task.Manager
	queueSize int

	shellMu sync.Mutex
	shells  map[string]*shellSession
}

// NewHub wires a Hub against the shared AppState and Task Manager. auth
// defaults to authcontract.NoopAuthenticator if nil, for local/dev use.
func NewHub(auth authcontract.Authenticator, appState *orchestration.AppState, tasks *task.Manager) *Hub {
	if auth == nil {
		auth = authcontract.NoopAuthenticator{}
	}
	return &Hub{
		clients:   make(map[string]*Client),
		auth:      auth,
		appState:  appState,
		tasks:     tasks,
		queueSize: DefaultOutboundQueueSize,
		shells:    make(map[string]*shellSession),
	}
}

// ServeHTTP upgrades the request to a WebSocket, authenticates it, and
// runs the connection's read/write pumps until it disconnects (spec
// §4.8). Failed authentication closes the socket with code 4401.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	claims, err := h.auth.Authenticate(r.Context(), bearerToken(r))
	if err != nil {
		conn, acceptErr := websocket.Accept(w, r, nil)
		if acceptErr != nil {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = conn.Close(closeCodeAuthFailed, "unauthenticated")
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		slog.Warn("ws accept", "error", err)
		return
	}
	conn.SetReadLimit(maxMessageSize)

	c := newClient(conn, claims, h.queueSize)
	h.register(c)
	defer h.unregister(c)

	ctx, cancel := context.WithCancel(r.Context())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.writePump(ctx)
	}()

	h.readPump(ctx, c)
	cancel()
	c.close(websocket.StatusNormalClosure, "")
	wg.Wait()
}

func bearerToken(r *http.Request) string {
	if tok, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return tok
	}
	return r.URL.Query().Get("token")
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c.ID()] = c
	h.mu.Unlock()
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	delete(h.clients, c.ID())
	h.mu.Unlock()
}

// readPump reads frames from c until the connection closes, dispatching
// the handful of tags a client may originate: Ping, LogStreamRequest,
// ShellSessionRequest, and ShellSessionData (stdin/resize). Every other
// tag is server-to-client only.
func (h *Hub) readPump(ctx context.Context, c *Client) {
	for {
		_, data, err := c.ws.Read(ctx)
		if err != nil {
			return
		}
		var f Frame
		if err := json.Unmarshal(data, &f); err != nil {
			c.Enqueue(newFrame(TagError, ErrorPayload{Message: "malformed frame"}))
			continue
		}
		h.dispatch(ctx, c, f)
	}
}

func (h *Hub) dispatch(ctx context.Context, c *Client, f Frame) {
	switch f.Tag {
	case TagPing:
		c.Enqueue(newFrame(TagPong, nil))
	case TagLogStreamRequest:
		var req LogStreamRequestPayload
		if err := json.Unmarshal(f.Payload, &req); err != nil {
			c.Enqueue(newFrame(TagError, ErrorPayload{Message: "malformed LogStreamRequest"}))
			return
		}
		h.startLogStream(ctx, c, req)
	case TagShellSessionRequest:
		var req ShellSessionRequestPayload
		if err := json.Unmarshal(f.Payload, &req); err != nil {
			c.Enqueue(newFrame(TagError, ErrorPayload{Message: "malformed ShellSessionRequest"}))
			return
		}
		h.startShellSession(ctx, c, req)
	case TagShellSessionData:
		var d ShellSessionDataPayload
		if err := json.Unmarshal(f.Payload, &d); err != nil {
			return
		}
		h.writeShellInput(d)
	default:
		slog.Debug("ws unhandled client frame", "tag", f.Tag)
	}
}

// TaskUpdated implements orchestration.Broadcaster: it re-fetches the
// task's current snapshot and pushes it to every client, since a client
// missing an intermediate update only needs the latest state.
func (h *Hub) TaskUpdated(id string) {
	if h.tasks == nil {
		return
	}
	d, err := h.tasks.GetTaskDetails(id)
	if err != nil {
		return
	}
	h.broadcast(newFrame(TagTaskInfoUpdated, TaskInfoUpdatedPayload{Task: d}))
	h.broadcast(newFrame(TagTaskListUpdated, nil))
}

// AppListUpdated implements orchestration.AppListBroadcaster.
func (h *Hub) AppListUpdated() {
	h.broadcast(newFrame(TagAppListUpdated, nil))
}

// AppInfoUpdated implements orchestration.AppListBroadcaster.
func (h *Hub) AppInfoUpdated(name string) {
	h.broadcast(newFrame(TagAppInfoUpdated, AppInfoUpdatedPayload{Name: name}))
}

func (h *Hub) broadcast(f Frame) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		c.Enqueue(f)
	}
}
