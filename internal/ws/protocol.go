// Package ws implements the WebSocket Hub (C8): accepting clients,
// broadcasting domain events, and serving per-client log- and
// shell-session subscriptions. Grounded on the teacher's
// internal/ws/server.go + conn.go (RWMutex-guarded conn set, per-conn
// mutex-guarded write, read-pump/dispatch split), adapted from the
// teacher's socket.io-style ClientMessage/AckMessage/ServerMessage
// envelopes to spec.md §6's tagged-union JSON protocol.
package ws

import (
	"encoding/json"
	"time"

	"github.com/scottyhq/scotty/internal/task"
)

// Tag names one of spec §6's WebSocket message tags.
type Tag string

const (
	TagPing                Tag = "Ping"
	TagPong                Tag = "Pong"
	TagAppListUpdated      Tag = "AppListUpdated"
	TagAppInfoUpdated      Tag = "AppInfoUpdated"
	TagTaskListUpdated     Tag = "TaskListUpdated"
	TagTaskInfoUpdated     Tag = "TaskInfoUpdated"
	TagLogStreamRequest    Tag = "LogStreamRequest"
	TagLogsStreamInfo      Tag = "LogsStreamInfo"
	TagLogsStreamData      Tag = "LogsStreamData"
	TagLogsStreamEnd       Tag = "LogsStreamEnd"
	TagLogsStreamError     Tag = "LogsStreamError"
	TagShellSessionRequest Tag = "ShellSessionRequest"
	TagShellSessionInfo    Tag = "ShellSessionInfo"
	TagShellSessionData    Tag = "ShellSessionData"
	TagShellSessionEnd     Tag = "ShellSessionEnd"
	TagShellSessionError   Tag = "ShellSessionError"
	TagError               Tag = "Error"
)

// Frame is the wire envelope: a tag plus its tag-specific payload,
// carried as raw JSON so dispatch can defer unmarshaling until the tag is
// known (spec §6 "tagged-union JSON messages").
type Frame struct {
	Tag     Tag             `json:"tag"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// newFrame marshals payload into a Frame. A payload that fails to marshal
// (every caller passes a concrete struct defined in this package) is sent
// as an empty JSON object; newFrame never panics.
func newFrame(tag Tag, payload interface{}) Frame {
	if payload == nil {
		return Frame{Tag: tag}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		data = []byte(`{}`)
	}
	return Frame{Tag: tag, Payload: data}
}

// AppInfoUpdatedPayload names the app whose AppData changed; clients
// re-fetch via the HTTP surface.
type AppInfoUpdatedPayload struct {
	Name string `json:"name"`
}

// TaskInfoUpdatedPayload carries the full task snapshot, so clients
// polling task output don't need a round-trip per line.
type TaskInfoUpdatedPayload struct {
	Task task.Details `json:"task"`
}

// LogStreamRequestPayload begins a server→client log stream for one
// service of one app (spec §4.8).
type LogStreamRequestPayload struct {
	App     string `json:"app"`
	Service string `json:"service"`
}

// LogsStreamInfoPayload acknowledges a LogStreamRequest with the
// subscription id the client will see on subsequent frames.
type LogsStreamInfoPayload struct {
	SubscriptionID string `json:"subscription_id"`
}

// LogsStreamDataPayload is one line of log output.
type LogsStreamDataPayload struct {
	SubscriptionID string    `json:"subscription_id"`
	Line           string    `json:"line"`
	Timestamp      time.Time `json:"ts"`
}

// LogsStreamEndPayload signals a clean end of stream (unsubscribe or
// the underlying process exited).
type LogsStreamEndPayload struct {
	SubscriptionID string `json:"subscription_id"`
}

// LogsStreamErrorPayload signals the stream ended abnormally.
type LogsStreamErrorPayload struct {
	SubscriptionID string `json:"subscription_id"`
	Message        string `json:"message"`
}

// ShellDataKind distinguishes the four directions/kinds of
// ShellSessionData frames (spec §4.8).
type ShellDataKind string

const (
	ShellDataStdin  ShellDataKind = "Stdin"
	ShellDataStdout ShellDataKind = "Stdout"
	ShellDataStderr ShellDataKind = "Stderr"
	ShellDataResize ShellDataKind = "Resize"
)

// ShellSessionRequestPayload opens an interactive shell in one service.
type ShellSessionRequestPayload struct {
	App     string `json:"app"`
	Service string `json:"service"`
}

// ShellSessionInfoPayload acknowledges a shell session open.
type ShellSessionInfoPayload struct {
	SessionID string `json:"session_id"`
}

// ShellSessionDataPayload carries bytes in either direction, or a resize
// (Cols/Rows set, Data empty).
type ShellSessionDataPayload struct {
	SessionID string        `json:"session_id"`
	Kind      ShellDataKind `json:"kind"`
	Data      []byte        `json:"data,omitempty"`
	Cols      int           `json:"cols,omitempty"`
	Rows      int           `json:"rows,omitempty"`
}

// ShellSessionEndPayload signals a clean shell exit.
type ShellSessionEndPayload struct {
	SessionID string `json:"session_id"`
	ExitCode  int    `json:"exit_code"`
}

// ShellSessionErrorPayload signals an abnormal shell-session end.
type ShellSessionErrorPayload struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// ErrorPayload is pushed on protocol errors and slow-consumer drops.
type ErrorPayload struct {
	Message string `json:"message"`
}
