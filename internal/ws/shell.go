package ws

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/creack/pty"
	"github.com/google/uuid"
)

// shellSession tracks one interactive `compose exec` pty so inbound
// ShellSessionData frames (stdin, resize) can be routed to the right
// process (spec §4.8 shell sessions).
type shellSession struct {
	pty *os.File
}

// startShellSession opens an interactive shell in one service's container
// via a pty-backed `compose exec`, so the compose CLI sees a real
// terminal and behaves the way an operator's own shell would. Grounded on
// the teacher's internal/terminal/manager.go pty-spawn pattern.
func (h *Hub) startShellSession(ctx context.Context, c *Client, req ShellSessionRequestPayload) {
	app, err := h.appState.Registry.Get(req.App)
	if err != nil {
		c.Enqueue(newFrame(TagShellSessionError, ShellSessionErrorPayload{Message: err.Error()}))
		return
	}

	sessionID := uuid.NewString()
	sessionCtx, cancel := context.WithCancel(ctx)
	c.addSubscription(sessionID, cancel)

	program, argv := h.appState.ComposeArgv("exec", req.Service, "sh")
	cmd := exec.CommandContext(sessionCtx, program, argv...)
	cmd.Dir = filepath.Dir(app.DockerComposePath)

	ptmx, err := pty.Start(cmd)
	if err != nil {
		cancel()
		c.Enqueue(newFrame(TagShellSessionError, ShellSessionErrorPayload{SessionID: sessionID, Message: err.Error()}))
		return
	}

	h.shellMu.Lock()
	h.shells[sessionID] = &shellSession{pty: ptmx}
	h.shellMu.Unlock()

	c.Enqueue(newFrame(TagShellSessionInfo, ShellSessionInfoPayload{SessionID: sessionID}))

	go h.pumpShellOutput(c, sessionID, ptmx)
	go h.waitShellSession(c, sessionID, cmd, ptmx)
}

func (h *Hub) pumpShellOutput(c *Client, sessionID string, ptmx *os.File) {
	buf := make([]byte, 4096)
	for {
		n, err := ptmx.Read(buf)
		if n > 0 {
			data := append([]byte(nil), buf[:n]...)
			c.Enqueue(newFrame(TagShellSessionData, ShellSessionDataPayload{
				SessionID: sessionID,
				Kind:      ShellDataStdout,
				Data:      data,
			}))
		}
		if err != nil {
			return
		}
	}
}

func (h *Hub) waitShellSession(c *Client, sessionID string, cmd *exec.Cmd, ptmx *os.File) {
	err := cmd.Wait()
	ptmx.Close()

	h.shellMu.Lock()
	delete(h.shells, sessionID)
	h.shellMu.Unlock()
	c.cancelSubscription(sessionID)

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		c.Enqueue(newFrame(TagShellSessionEnd, ShellSessionEndPayload{SessionID: sessionID, ExitCode: exitErr.ExitCode()}))
		return
	}
	if err != nil {
		c.Enqueue(newFrame(TagShellSessionError, ShellSessionErrorPayload{SessionID: sessionID, Message: err.Error()}))
		return
	}
	c.Enqueue(newFrame(TagShellSessionEnd, ShellSessionEndPayload{SessionID: sessionID, ExitCode: 0}))
}

// writeShellInput routes a client-originated stdin write or terminal
// resize to its pty, ignoring frames for sessions that no longer exist
// (already ended, or never started due to a race with the client).
func (h *Hub) writeShellInput(d ShellSessionDataPayload) {
	h.shellMu.Lock()
	sess, ok := h.shells[d.SessionID]
	h.shellMu.Unlock()
	if !ok {
		return
	}
	switch d.Kind {
	case ShellDataStdin:
		_, _ = sess.pty.Write(d.Data)
	case ShellDataResize:
		if d.Cols > 0 && d.Rows > 0 {
			_ = pty.Setsize(sess.pty, &pty.Winsize{Cols: uint16(d.Cols), Rows: uint16(d.Rows)})
		}
	}
}
