// Package batch tracks test cases submitted to a remote batch queue:
// submission, bulk status polling, and reconciliation of terminal jobs into
// returncodes. No threads; a single loop alternating between one bulk status
// query and a fixed sleep drives everything.
package batch

import (
	"github.com/scitest/runtest/cases"
)

// State is the lifecycle of a remote job. COMPLETED, FAILED and UNKNOWN are
// terminal.
type State int

const (
	QUEUED State = iota
	RUNNING
	COMPLETED
	FAILED
	UNKNOWN
)

func (s State) IsDone() bool {
	return s == COMPLETED || s == FAILED || s == UNKNOWN
}

func (s State) String() string {
	switch s {
	case QUEUED:
		return "queued"
	case RUNNING:
		return "running"
	case COMPLETED:
		return "completed"
	case FAILED:
		return "failed"
	default:
		return "unknown"
	}
}

// Job is a handle to one test case submitted to the batch queue.
type Job struct {
	// ID is the raw job identifier the queue returned at submission.
	ID string
	// Case is the owning test case.
	Case *cases.Case
	// Label is the display name used in logs and status lines.
	Label string

	state State
}

// State returns the job's last observed lifecycle state. Only the board
// mutates it.
func (j *Job) State() State {
	return j.state
}
