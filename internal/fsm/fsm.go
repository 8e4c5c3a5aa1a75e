// Package fsm implements the State Machine Runtime (C3): a generic typed
// FSM executing an ordered list of handlers over a shared mutable context.
// Grounded on the teacher's internal/ws generic envelope pattern (type
// parameters keyed by a small closed set) and internal/compose's
// sequential exec-then-advance control flow.
package fsm

import (
	"fmt"

	"github.com/scottyhq/scotty/internal/task"
)

// Handler transitions a machine from one state to the next, given the
// shared context. Returning an error aborts the machine (spec §4.3).
type Handler[S comparable, Ctx any] func(from S, ctx Ctx) (S, error)

// Broadcaster is notified when the task driving a machine changes state,
// so the caller can emit TaskInfoUpdated. Machines in C4 are normally
// constructed with the same broadcaster the Compose Runner uses.
type Broadcaster interface {
	TaskUpdated(id string)
}

// NopBroadcaster discards notifications.
type NopBroadcaster struct{}

func (NopBroadcaster) TaskUpdated(string) {}

// StateMachine is a generic, typed FSM: initial state, terminal state, and
// a handler registered per reachable non-terminal state (spec §3, §4.3).
type StateMachine[S comparable, Ctx any] struct {
	initial  S
	terminal S
	handlers map[S]Handler[S, Ctx]
}

// New creates a StateMachine with the given initial and terminal states.
func New[S comparable, Ctx any](initial, terminal S) *StateMachine[S, Ctx] {
	return &StateMachine[S, Ctx]{
		initial:  initial,
		terminal: terminal,
		handlers: make(map[S]Handler[S, Ctx]),
	}
}

// AddHandler registers the handler responsible for transitions out of
// state. Returns the receiver for chaining, matching the teacher's
// builder-style construction.
func (m *StateMachine[S, Ctx]) AddHandler(state S, h Handler[S, Ctx]) *StateMachine[S, Ctx] {
	m.handlers[state] = h
	return m
}

// Run executes the machine synchronously: loop while current != terminal,
// invoke the handler registered for current, advance on success. On
// error, t is marked Failed (the error message appended to stderr), the
// broadcaster is notified, and execution stops (spec §4.3). Handlers for
// the same machine never run concurrently (spec §4.3 determinism); Run's
// caller is expected to invoke it from the single background goroutine
// the Task Manager spawned for t.
func (m *StateMachine[S, Ctx]) Run(ctx Ctx, t *task.Task, b Broadcaster) error {
	if b == nil {
		b = NopBroadcaster{}
	}
	current := m.initial
	visited := make(map[S]bool)

	for current != m.terminal {
		if visited[current] {
			err := fmt.Errorf("state machine revisited state %v", current)
			t.Fail(err.Error())
			b.TaskUpdated(t.ID())
			return err
		}
		visited[current] = true

		h, ok := m.handlers[current]
		if !ok {
			err := fmt.Errorf("no handler registered for state %v", current)
			t.Fail(err.Error())
			b.TaskUpdated(t.ID())
			return err
		}

		next, err := h(current, ctx)
		if err != nil {
			t.Fail(err.Error())
			b.TaskUpdated(t.ID())
			return err
		}
		current = next
	}
	return nil
}

// Spawn runs the machine on a new goroutine and returns a channel closed
// when it completes, for callers that want a non-blocking handle (the
// Task Manager's AddTask/handle pairing typically owns this instead).
func (m *StateMachine[S, Ctx]) Spawn(ctx Ctx, t *task.Task, b Broadcaster) <-chan error {
	done := make(chan error, 1)
	go func() {
		done <- m.Run(ctx, t, b)
	}()
	return done
}
