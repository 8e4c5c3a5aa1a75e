package fsm

import (
	"errors"
	"testing"

	"github.com/scottyhq/scotty/internal/task"
)

type state int

const (
	stateStart state = iota
	stateMiddle
	stateDone
)

type testCtx struct {
	log *[]string
}

func TestStateMachineRunsHandlersInOrder(t *testing.T) {
	var log []string
	m := New[state, testCtx](stateStart, stateDone)
	m.AddHandler(stateStart, func(from state, c testCtx) (state, error) {
		*c.log = append(*c.log, "start")
		return stateMiddle, nil
	})
	m.AddHandler(stateMiddle, func(from state, c testCtx) (state, error) {
		*c.log = append(*c.log, "middle")
		return stateDone, nil
	})

	tk := task.New("t1", "noop", "app", task.DefaultOutputSettings)
	if err := m.Run(testCtx{log: &log}, tk, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(log) != 2 || log[0] != "start" || log[1] != "middle" {
		t.Errorf("unexpected handler order: %v", log)
	}
	if tk.Details().State != task.StateRunning {
		t.Error("Run must not itself finish the task; SetFinished handlers do")
	}
}

func TestStateMachineHandlerErrorFailsTask(t *testing.T) {
	m := New[state, testCtx](stateStart, stateDone)
	m.AddHandler(stateStart, func(from state, c testCtx) (state, error) {
		return stateStart, errors.New("boom")
	})

	tk := task.New("t1", "noop", "app", task.DefaultOutputSettings)
	err := m.Run(testCtx{log: &[]string{}}, tk, nil)
	if err == nil {
		t.Fatal("expected error from failing handler")
	}

	d := tk.Details()
	if d.State != task.StateFailed {
		t.Fatalf("State = %v, want Failed", d.State)
	}
	if d.Stderr == "" {
		t.Error("expected error message appended to stderr")
	}
}

func TestStateMachineMissingHandlerFailsTask(t *testing.T) {
	m := New[state, testCtx](stateStart, stateDone)
	// No handler registered for stateStart.

	tk := task.New("t1", "noop", "app", task.DefaultOutputSettings)
	if err := m.Run(testCtx{log: &[]string{}}, tk, nil); err == nil {
		t.Fatal("expected error for unregistered state")
	}
	if tk.Details().State != task.StateFailed {
		t.Error("expected task to be marked Failed")
	}
}

func TestStateMachineRevisitDetected(t *testing.T) {
	m := New[state, testCtx](stateStart, stateDone)
	m.AddHandler(stateStart, func(from state, c testCtx) (state, error) {
		return stateMiddle, nil
	})
	m.AddHandler(stateMiddle, func(from state, c testCtx) (state, error) {
		return stateStart, nil // cycles back, violating the linear-machine property
	})

	tk := task.New("t1", "noop", "app", task.DefaultOutputSettings)
	if err := m.Run(testCtx{log: &[]string{}}, tk, nil); err == nil {
		t.Fatal("expected error on revisited state")
	}
}

type countingBroadcaster struct{ n int }

func (b *countingBroadcaster) TaskUpdated(string) { b.n++ }

func TestStateMachineBroadcastsOnFailure(t *testing.T) {
	m := New[state, testCtx](stateStart, stateDone)
	m.AddHandler(stateStart, func(from state, c testCtx) (state, error) {
		return stateStart, errors.New("boom")
	})

	tk := task.New("t1", "noop", "app", task.DefaultOutputSettings)
	b := &countingBroadcaster{}
	_ = m.Run(testCtx{log: &[]string{}}, tk, b)

	if b.n != 1 {
		t.Errorf("expected exactly one broadcast, got %d", b.n)
	}
}
