// Package pool is the local scheduling engine: tasks backed by child
// processes, fail-fast chains of tasks, and a bounded-concurrency pool of
// chains with cascading admission control.
package pool

import (
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/scitest/runtest/common/errors"
	"github.com/scitest/runtest/execer"
)

// TaskState is the lifecycle of a single task.
type TaskState int

const (
	PENDING TaskState = iota
	RUNNING
	COMPLETED
)

func (s TaskState) String() string {
	switch s {
	case RUNNING:
		return "RUNNING"
	case COMPLETED:
		return "COMPLETED"
	default:
		return "PENDING"
	}
}

// Listener is notified of a task lifecycle transition. Listeners run
// synchronously on the task's goroutine, in registration order.
type Listener func(*Task)

// Task is the smallest schedulable unit. It runs a work function on its own
// goroutine; process-backed tasks spawn a child process and wait on it.
// A spawn failure does not propagate: the task completes with a synthesized
// FAILED status carrying CouldNotSpawnExitCode.
type Task struct {
	name string
	work func(*Task) execer.ProcessStatus

	mu         sync.Mutex
	state      TaskState
	status     *execer.ProcessStatus
	process    execer.Process
	onStart    []Listener
	onComplete []Listener

	done chan struct{}
}

// NewTask returns a task running an arbitrary work function.
func NewTask(name string, work func() execer.ProcessStatus) *Task {
	return &Task{
		name: name,
		work: func(*Task) execer.ProcessStatus { return work() },
		done: make(chan struct{}),
	}
}

// NewProcessTask returns a task that spawns argv via e and waits for it.
// The task registers itself with reg at construction so an interrupt sweep
// can reach its process.
func NewProcessTask(name string, argv []string, e execer.Execer, reg *ProcessRegistry) *Task {
	t := &Task{
		name: name,
		done: make(chan struct{}),
	}
	t.work = func(t *Task) execer.ProcessStatus {
		p, err := e.Exec(execer.Command{Argv: argv})
		if err != nil {
			// Broken process: recover locally, complete normally.
			log.WithFields(log.Fields{
				"task":  name,
				"argv":  argv,
				"error": err,
			}).Warn("Could not spawn process")
			return execer.ProcessStatus{
				State:    execer.FAILED,
				ExitCode: errors.CouldNotSpawnExitCode,
				Error:    err.Error(),
			}
		}
		t.mu.Lock()
		t.process = p
		t.mu.Unlock()
		return p.Wait()
	}
	reg.Add(t)
	return t
}

func (t *Task) Name() string {
	return t.name
}

// OnStart registers l to run when the task transitions PENDING->RUNNING.
// Must be called before Start.
func (t *Task) OnStart(l Listener) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onStart = append(t.onStart, l)
}

// OnComplete registers l to run after the task's returncode is set.
// Must be called before Start.
func (t *Task) OnComplete(l Listener) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onComplete = append(t.onComplete, l)
}

func (t *Task) State() TaskState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Status returns the final status, nil until the task completed.
func (t *Task) Status() *execer.ProcessStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status == nil {
		return nil
	}
	st := *t.status
	return &st
}

// Returncode returns the task's exit code. ok is false until completion.
func (t *Task) Returncode() (code errors.ExitCode, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status == nil {
		return 0, false
	}
	return t.status.ExitCode, true
}

// Process returns the spawned child process, nil for non-process tasks or
// before the spawn happened.
func (t *Task) Process() execer.Process {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.process
}

// Start launches the task on a new goroutine.
func (t *Task) Start() {
	go t.run()
}

// Join blocks until the task completed.
func (t *Task) Join() {
	<-t.done
}

func (t *Task) run() {
	t.mu.Lock()
	t.state = RUNNING
	startListeners := t.onStart
	t.mu.Unlock()
	for _, l := range startListeners {
		l(t)
	}

	status := t.work(t)

	t.mu.Lock()
	// Returncode is set exactly once, before COMPLETED and before the
	// complete listeners observe the task.
	t.status = &status
	t.state = COMPLETED
	completeListeners := t.onComplete
	t.mu.Unlock()
	for _, l := range completeListeners {
		l(t)
	}
	close(t.done)
}
