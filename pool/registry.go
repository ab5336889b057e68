package pool

import (
	"sync"

	log "github.com/sirupsen/logrus"
)

// ProcessRegistry is the process-wide list of every process-backed task
// constructed during a run. It exists only so an interrupt or a pool-level
// failure can reach into live child processes; it is append-only and never
// pruned (bounded by process lifetime).
type ProcessRegistry struct {
	mu    sync.Mutex
	tasks []*Task
}

func NewProcessRegistry() *ProcessRegistry {
	return &ProcessRegistry{}
}

// Add registers a process-backed task. Called at task construction.
func (r *ProcessRegistry) Add(t *Task) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks = append(r.tasks, t)
}

// Snapshot returns the tasks registered so far.
func (r *ProcessRegistry) Snapshot() []*Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*Task(nil), r.tasks...)
}

// Sweep aborts the child process of every registered task that is still
// alive. Cleanup is best effort: a failure to terminate one process must not
// block the sweep of the rest, and a process finishing naturally between the
// liveness check and the abort is fine, Abort tolerates that race.
func (r *ProcessRegistry) Sweep() {
	tasks := r.Snapshot()
	swept := 0
	for _, t := range tasks {
		p := t.Process()
		if p == nil || !p.Running() {
			continue
		}
		log.WithFields(log.Fields{
			"task": t.Name(),
			"pid":  p.Pid(),
		}).Info("Terminating process")
		p.Abort()
		swept++
	}
	log.WithFields(log.Fields{
		"registered": len(tasks),
		"terminated": swept,
	}).Info("Process sweep finished")
}
