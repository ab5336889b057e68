package pool

import (
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/scitest/runtest/common/errors"
	"github.com/scitest/runtest/execer"
)

// Progress reports the admission of unit index out of total. Format and
// destination are up to the caller.
type Progress func(index, total int)

// Chain is an ordered, fail-fast-capable sequence of tasks, one test case's
// pipeline (clean, run, compare). Exactly one subtask is in flight at a time.
// A Chain is itself a schedulable unit: the pool starts it and observes its
// lifecycle through the embedded task's listeners.
type Chain struct {
	*Task

	tasks       []*Task
	stopOnError bool
	progress    Progress

	mu      sync.Mutex
	index   int
	stopped bool
}

func NewChain(name string, stopOnError bool, tasks ...*Task) *Chain {
	c := &Chain{
		tasks:       tasks,
		stopOnError: stopOnError,
	}
	c.Task = &Task{
		name: name,
		work: func(*Task) execer.ProcessStatus { return c.runAll() },
		done: make(chan struct{}),
	}
	return c
}

// Add appends a subtask. Must be called before Start.
func (c *Chain) Add(t *Task) {
	c.tasks = append(c.tasks, t)
}

// SetProgress registers a progress sink invoked with (index, total) as each
// subtask is admitted. Must be called before Start.
func (c *Chain) SetProgress(p Progress) {
	c.progress = p
}

func (c *Chain) Len() int {
	return len(c.tasks)
}

// Tasks returns the chain's subtasks in order.
func (c *Chain) Tasks() []*Task {
	return c.tasks
}

// Stopped reports whether the chain halted before admitting every subtask.
func (c *Chain) Stopped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopped
}

// Stop prevents any further subtask from being admitted. In-flight subtasks
// are not interrupted here; process cleanup is the registry sweep's job.
func (c *Chain) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopped = true
}

// Returncode is the aggregate over completed subtasks: the max of their exit
// codes. ok is false if no subtask completed.
func (c *Chain) Returncode() (code errors.ExitCode, ok bool) {
	for _, t := range c.tasks {
		if rc, done := t.Returncode(); done {
			code = errors.Max(code, rc)
			ok = true
		}
	}
	return code, ok
}

// runNext admits the next pending subtask, waits for it to finish, and
// reports whether the chain should keep going.
func (c *Chain) runNext() bool {
	c.mu.Lock()
	if c.stopped || c.index >= len(c.tasks) {
		c.mu.Unlock()
		return false
	}
	c.index++
	t := c.tasks[c.index-1]
	c.mu.Unlock()

	if c.progress != nil {
		c.progress(c.index, len(c.tasks))
	}
	t.Start()
	t.Join()

	if rc, _ := t.Returncode(); c.stopOnError && rc != 0 {
		log.WithFields(log.Fields{
			"chain":      c.name,
			"task":       t.Name(),
			"returncode": rc,
		}).Info("Subtask failed, stopping chain")
		c.Stop()
		return false
	}
	return true
}

func (c *Chain) runAll() execer.ProcessStatus {
	for c.runNext() {
	}
	rc, ok := c.Returncode()
	if !ok {
		// Nothing ran; the chain itself did not fail.
		return execer.ProcessStatus{State: execer.COMPLETE, ExitCode: 0}
	}
	return execer.ProcessStatus{State: execer.COMPLETE, ExitCode: rc}
}
