package compose

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/scottyhq/scotty/internal/apperr"
	"github.com/scottyhq/scotty/internal/task"
)

// broadcastCoalesceWindow caps TaskInfoUpdated emission to at most one
// event per 100ms per task (spec §4.1).
const broadcastCoalesceWindow = 100 * time.Millisecond

// hardKillGrace is how long a cancelled child process gets before the
// runner escalates to a hard termination (spec §4.2).
const hardKillGrace = 5 * time.Second

// Broadcaster is notified whenever a task's output or state changes, so
// the caller can emit a TaskInfoUpdated event on the WebSocket hub.
// Kept as a minimal interface (one method) so the compose package has no
// import-time dependency on the ws package, following the teacher's
// Composer-interface-with-one-real-implementation shape.
type Broadcaster interface {
	TaskUpdated(id string)
}

// NopBroadcaster discards all notifications; used by tests and callers
// that don't need live updates.
type NopBroadcaster struct{}

func (NopBroadcaster) TaskUpdated(string) {}

// Runner spawns docker compose / docker child processes and streams their
// output into a Task (spec §4.1 C1).
type Runner struct {
	Broadcaster Broadcaster
}

// NewRunner creates a Runner. If b is nil, output changes are not broadcast.
func NewRunner(b Broadcaster) *Runner {
	if b == nil {
		b = NopBroadcaster{}
	}
	return &Runner{Broadcaster: b}
}

// RunTask spawns program with argv in workingDir, with env merged over the
// inherited environment, and streams stdout/stderr line-by-line into t
// until the process exits or t is cancelled. It sets t's terminal state
// before returning (spec §4.1's direct contract: "on exit, sets
// last_exit_code, transitions state to Finished if exit code 0 else
// Failed"). Use this for a Task whose entire lifetime is one process
// invocation; for a Task shared across multiple steps of an
// orchestration machine, use RunStep instead so the task isn't frozen
// before the machine's own terminal handler runs.
func (r *Runner) RunTask(ctx context.Context, workingDir, program string, argv []string, env map[string]string, t *task.Task) error {
	exitCode, spawnErr := r.exec(ctx, workingDir, program, argv, env, t)
	if spawnErr != nil {
		t.Fail("spawn failed: " + spawnErr.Error())
		r.Broadcaster.TaskUpdated(t.ID())
		return nil
	}
	t.Finish(exitCode)
	r.Broadcaster.TaskUpdated(t.ID())
	return nil
}

// RunStep spawns program the same way as RunTask, but only records the
// exit code on t (via RecordExitCode) instead of transitioning its
// terminal state — for orchestration handlers (C4) that invoke several
// child processes against one Task before a final SetFinished handler
// ends it. Returns apperr.ComposeFailed(exitCode) when the process exits
// non-zero, for the caller (a handler) to propagate as a machine-aborting
// error (spec §4.4: "non-zero exit is fatal").
func (r *Runner) RunStep(ctx context.Context, workingDir, program string, argv []string, env map[string]string, t *task.Task) error {
	exitCode, spawnErr := r.exec(ctx, workingDir, program, argv, env, t)
	if spawnErr != nil {
		return fmt.Errorf("spawn %s: %w", program, spawnErr)
	}
	t.RecordExitCode(exitCode)
	r.Broadcaster.TaskUpdated(t.ID())
	if exitCode != 0 {
		return apperr.ComposeFailed(exitCode)
	}
	return nil
}

// exec spawns program and streams its output into t, returning the
// process's exit code. A non-nil error means the process never started
// (SpawnFailed); the returned exit code is meaningless in that case.
func (r *Runner) exec(ctx context.Context, workingDir, program string, argv []string, env map[string]string, t *task.Task) (int, error) {
	cmd := exec.CommandContext(ctx, program, argv...)
	cmd.Dir = workingDir
	cmd.Env = mergeEnv(os.Environ(), env)
	// Own process group, so cancellation reaches every process the child
	// spawned (which may hold the output pipes open), not just the child.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return 0, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return 0, err
	}
	if err := cmd.Start(); err != nil {
		return 0, err
	}

	coalescer := newCoalescer(r.Broadcaster, t.ID())

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		streamLines(stdout, t.AppendStdout, coalescer.notify)
	}()
	go func() {
		defer wg.Done()
		streamLines(stderr, t.AppendStderr, coalescer.notify)
	}()

	// Cooperative cancellation: poll the task's flag, interrupt the child's
	// process group, and escalate to a hard kill of the group if its output
	// streams haven't closed within the grace period.
	done := make(chan struct{})
	go func() {
		defer close(done)
		wg.Wait()
	}()

	cancelTicker := time.NewTicker(50 * time.Millisecond)
	defer cancelTicker.Stop()

	var killTimer *time.Timer
waitLoop:
	for {
		select {
		case <-done:
			break waitLoop
		case <-cancelTicker.C:
			if t.CancelRequested() && killTimer == nil {
				_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGINT)
				killTimer = time.AfterFunc(hardKillGrace, func() {
					_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
				})
			}
		}
	}
	if killTimer != nil {
		killTimer.Stop()
	}

	waitErr := cmd.Wait()
	coalescer.stop()

	return exitCodeFromError(waitErr), nil
}

// streamLines scans r line by line, calling append for each line and
// notify after each append (the coalescer decides actual broadcast
// frequency).
func streamLines(r io.Reader, append func(string), notify func()) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		append(scanner.Text())
		notify()
	}
}

// coalescer rate-limits Broadcaster.TaskUpdated calls to at most one per
// broadcastCoalesceWindow, matching spec §4.1's 100ms coalescing rule.
type coalescer struct {
	b      Broadcaster
	taskID string

	mu      sync.Mutex
	pending bool
	timer   *time.Timer
	stopped bool
}

func newCoalescer(b Broadcaster, taskID string) *coalescer {
	return &coalescer{b: b, taskID: taskID}
}

func (c *coalescer) notify() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}
	if c.timer != nil {
		c.pending = true
		return
	}
	c.b.TaskUpdated(c.taskID)
	c.timer = time.AfterFunc(broadcastCoalesceWindow, c.fire)
}

func (c *coalescer) fire() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timer = nil
	if c.stopped {
		return
	}
	if c.pending {
		c.pending = false
		c.b.TaskUpdated(c.taskID)
		c.timer = time.AfterFunc(broadcastCoalesceWindow, c.fire)
	}
}

func (c *coalescer) stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopped = true
	if c.timer != nil {
		c.timer.Stop()
	}
}

// mergeEnv layers extra over base, returning a new "KEY=VALUE" slice.
func mergeEnv(base []string, extra map[string]string) []string {
	out := append([]string(nil), base...)
	for k, v := range extra {
		out = append(out, k+"="+v)
	}
	return out
}

// exitCodeFromError extracts a process exit code from cmd.Wait's error,
// treating a nil error as success and any non-ExitError as a generic
// failure code.
func exitCodeFromError(err error) int {
	if err == nil {
		return 0
	}
	type exitCoder interface{ ExitCode() int }
	if ee, ok := err.(exitCoder); ok {
		if code := ee.ExitCode(); code >= 0 {
			return code
		}
	}
	return 1
}
