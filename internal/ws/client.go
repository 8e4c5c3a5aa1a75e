package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"

	"github.com/scottyhq/scotty/internal/authcontract"
)

const (
	writeTimeout = 10 * time.Second
	maxMessageSize = 1 << 20 // 1 MB

	// DefaultOutboundQueueSize is each client's bounded broadcast queue
	// (spec §4.8 "bounded outbound queue (default 256)").
	DefaultOutboundQueueSize = 256

	// closeCodeAuthFailed is pushed when a connection fails authentication
	// (spec §4.8 "close the socket with code 4401").
	closeCodeAuthFailed websocket.StatusCode = 4401
)

var clientIDCounter uint64

// Client is one connected WebSocket peer: a bounded outbound queue
// drained by a dedicated write goroutine, and an active-subscription
// table for log/shell streams this client has opened (spec §4.8
// "per-client subscriptions").
type Client struct {
	id     string
	ws     *websocket.Conn
	claims authcontract.Claims

	send chan Frame

	mu            sync.Mutex
	closed        bool
	subscriptions map[string]func() // subscription id -> cancel
}

func newClient(ws *websocket.Conn, claims authcontract.Claims, queueSize int) *Client {
	id := atomic.AddUint64(&clientIDCounter, 1)
	if queueSize <= 0 {
		queueSize = DefaultOutboundQueueSize
	}
	return &Client{
		id:            fmt.Sprintf("c%d", id),
		ws:            ws,
		claims:        claims,
		send:          make(chan Frame, queueSize),
		subscriptions: make(map[string]func()),
	}
}

// ID returns a unique per-connection identifier.
func (c *Client) ID() string { return c.id }

// Enqueue pushes a frame onto the client's outbound queue. On overflow
// the oldest pending frames are dropped to make room for both f and a
// trailing slow_consumer Error notice, so a slow client always sees its
// latest update plus a warning rather than silently losing it (spec §4.8
// "bounded channel with drop-oldest policy; producers never block").
func (c *Client) Enqueue(f Frame) {
	select {
	case c.send <- f:
		return
	default:
	}

	capacity := cap(c.send)
	threshold := capacity - 2
	if threshold < 0 {
		threshold = 0
	}
	for i := 0; i < capacity && len(c.send) > threshold; i++ {
		select {
		case <-c.send:
		default:
		}
	}

	select {
	case c.send <- f:
	default:
	}
	select {
	case c.send <- newFrame(TagError, ErrorPayload{Message: "slow_consumer"}):
	default:
	}
}

// addSubscription registers a cancel func under id, replacing + canceling
// any prior subscription with the same id.
func (c *Client) addSubscription(id string, cancel func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if old, ok := c.subscriptions[id]; ok {
		old()
	}
	c.subscriptions[id] = cancel
}

// cancelSubscription cancels and forgets id, if present.
func (c *Client) cancelSubscription(id string) {
	c.mu.Lock()
	cancel, ok := c.subscriptions[id]
	delete(c.subscriptions, id)
	c.mu.Unlock()
	if ok {
		cancel()
	}
}

func (c *Client) cancelAllSubscriptions() {
	c.mu.Lock()
	subs := c.subscriptions
	c.subscriptions = make(map[string]func())
	c.mu.Unlock()
	for _, cancel := range subs {
		cancel()
	}
}

// writePump drains the outbound queue until the connection is closed.
// Ordering per (client, subscription) is preserved because everything
// for one client flows through this single goroutine and one channel
// (spec §4.8 "per (client, subscription) frames are delivered in
// emission order").
func (c *Client) writePump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case f, ok := <-c.send:
			if !ok {
				return
			}
			data, err := json.Marshal(f)
			if err != nil {
				slog.Error("ws marshal frame", "tag", f.Tag, "error", err)
				continue
			}
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err = c.ws.Write(wctx, websocket.MessageText, data)
			cancel()
			if err != nil {
				slog.Debug("ws write", "client", c.id, "error", err)
				return
			}
		}
	}
}

func (c *Client) close(code websocket.StatusCode, reason string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	c.cancelAllSubscriptions()
	_ = c.ws.Close(code, reason)
}
