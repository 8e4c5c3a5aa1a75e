package task

import (
	"testing"
	"time"
)

type fakeHandle struct {
	cancelled bool
}

func (h *fakeHandle) Cancel() { h.cancelled = true }

func TestManagerAddAndGet(t *testing.T) {
	m := NewManager()
	tk := New("t1", "docker compose up", "acme", DefaultOutputSettings)

	if err := m.AddTask("t1", tk, nil); err != nil {
		t.Fatalf("AddTask: %v", err)
	}

	if err := m.AddTask("t1", tk, nil); err == nil {
		t.Fatal("expected error re-adding the same id")
	}

	details, err := m.GetTaskDetails("t1")
	if err != nil {
		t.Fatalf("GetTaskDetails: %v", err)
	}
	if details.State != StateRunning {
		t.Errorf("State = %v, want Running", details.State)
	}
}

func TestManagerGetTaskDetailsNotFound(t *testing.T) {
	m := NewManager()
	if _, err := m.GetTaskDetails("nope"); err == nil {
		t.Fatal("expected error for unknown task")
	}
}

func TestManagerListOrderedByStartTimeDesc(t *testing.T) {
	m := NewManager()

	t1 := New("t1", "cmd1", "app", DefaultOutputSettings)
	_ = m.AddTask("t1", t1, nil)
	time.Sleep(2 * time.Millisecond)

	t2 := New("t2", "cmd2", "app", DefaultOutputSettings)
	_ = m.AddTask("t2", t2, nil)

	list := m.GetTaskList()
	if len(list) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(list))
	}
	if list[0].ID != "t2" || list[1].ID != "t1" {
		t.Errorf("expected [t2, t1], got [%s, %s]", list[0].ID, list[1].ID)
	}
}

func TestManagerCancelInvokesHandle(t *testing.T) {
	m := NewManager()
	tk := New("t1", "cmd", "app", DefaultOutputSettings)
	h := &fakeHandle{}
	_ = m.AddTask("t1", tk, h)

	if err := m.Cancel("t1"); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if !h.cancelled {
		t.Error("expected handle.Cancel to be called")
	}
	if !tk.CancelRequested() {
		t.Error("expected task to be marked cancel-requested")
	}
}

func TestManagerPruneRemovesOldFinishedOnly(t *testing.T) {
	m := NewManager()

	finished := New("finished", "cmd", "app", DefaultOutputSettings)
	finished.Finish(0)
	_ = m.AddTask("finished", finished, nil)

	running := New("running", "cmd", "app", DefaultOutputSettings)
	_ = m.AddTask("running", running, nil)

	// Prune with a negative-ish cutoff in the past guarantees "finished" is
	// older than the retention window.
	m.Prune(-time.Hour)

	if _, err := m.GetTaskDetails("finished"); err == nil {
		t.Error("expected finished task to be pruned")
	}
	if _, err := m.GetTaskDetails("running"); err != nil {
		t.Error("expected running task to survive prune")
	}
}

func TestTaskStateFinishTimeInvariant(t *testing.T) {
	tk := New("t1", "cmd", "app", DefaultOutputSettings)

	d := tk.Details()
	if d.State != StateRunning || d.FinishTime != nil || d.LastExitCode != nil {
		t.Fatal("new task must be Running with no finish_time/last_exit_code")
	}

	tk.Finish(0)
	d = tk.Details()
	if d.State != StateFinished || d.FinishTime == nil || d.LastExitCode == nil {
		t.Fatal("finished task must have finish_time and last_exit_code set")
	}

	// Subsequent appends/finish are no-ops once non-Running (frozen fields).
	tk.AppendStdout("ignored")
	tk.Finish(1)
	d2 := tk.Details()
	if d2.Stdout != "" || d2.State != StateFinished {
		t.Error("task fields must be frozen after first Finish")
	}
}

func TestTaskFailSetsNonZeroExit(t *testing.T) {
	tk := New("t1", "cmd", "app", DefaultOutputSettings)
	tk.Fail("spawn failed: no such file")

	d := tk.Details()
	if d.State != StateFailed {
		t.Errorf("State = %v, want Failed", d.State)
	}
	if d.LastExitCode == nil || *d.LastExitCode == 0 {
		t.Error("expected non-zero synthetic exit code")
	}
	if d.Stderr == "" {
		t.Error("expected synthetic stderr message")
	}
}

func TestRingBufferTruncatesAndEvicts(t *testing.T) {
	tk := New("t1", "cmd", "app", OutputSettings{MaxLines: 2, MaxLineLength: 4})
	tk.AppendStdout("123456789")
	tk.AppendStdout("line2")
	tk.AppendStdout("line3")

	d := tk.Details()
	// Only the last 2 lines survive, each capped to 4 bytes.
	want := "line\nline"
	if d.Stdout != want {
		t.Errorf("Stdout = %q, want %q", d.Stdout, want)
	}
}
