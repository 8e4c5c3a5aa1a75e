package ws

import (
	"bufio"
	"context"
	"io"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// startLogStream opens a follow-mode `compose logs` subprocess for one
// service and streams its output to c as LogsStreamData frames until the
// client disconnects or the process exits (spec §4.8 log-stream
// subscriptions). Each request gets a fresh subscription id; there is no
// per-subscription unsubscribe message.
func (h *Hub) startLogStream(ctx context.Context, c *Client, req LogStreamRequestPayload) {
	app, err := h.appState.Registry.Get(req.App)
	if err != nil {
		c.Enqueue(newFrame(TagLogsStreamError, LogsStreamErrorPayload{Message: err.Error()}))
		return
	}

	subID := uuid.NewString()
	streamCtx, cancel := context.WithCancel(ctx)
	c.addSubscription(subID, cancel)

	program, argv := h.appState.ComposeArgv("logs", "-f", "--no-color", "--tail", "200", req.Service)
	cmd := exec.CommandContext(streamCtx, program, argv...)
	cmd.Dir = filepath.Dir(app.DockerComposePath)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		c.Enqueue(newFrame(TagLogsStreamError, LogsStreamErrorPayload{SubscriptionID: subID, Message: err.Error()}))
		return
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		cancel()
		c.Enqueue(newFrame(TagLogsStreamError, LogsStreamErrorPayload{SubscriptionID: subID, Message: err.Error()}))
		return
	}

	if err := cmd.Start(); err != nil {
		cancel()
		c.Enqueue(newFrame(TagLogsStreamError, LogsStreamErrorPayload{SubscriptionID: subID, Message: err.Error()}))
		return
	}

	c.Enqueue(newFrame(TagLogsStreamInfo, LogsStreamInfoPayload{SubscriptionID: subID}))

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); emitLogLines(stdout, c, subID) }()
	go func() { defer wg.Done(); emitLogLines(stderr, c, subID) }()

	go func() {
		wg.Wait()
		err := cmd.Wait()
		c.cancelSubscription(subID)
		if err != nil && streamCtx.Err() == nil {
			c.Enqueue(newFrame(TagLogsStreamError, LogsStreamErrorPayload{SubscriptionID: subID, Message: err.Error()}))
			return
		}
		c.Enqueue(newFrame(TagLogsStreamEnd, LogsStreamEndPayload{SubscriptionID: subID}))
	}()
}

func emitLogLines(r io.Reader, c *Client, subID string) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)
	for scanner.Scan() {
		c.Enqueue(newFrame(TagLogsStreamData, LogsStreamDataPayload{
			SubscriptionID: subID,
			Line:           scanner.Text(),
			Timestamp:      time.Now(),
		}))
	}
}
