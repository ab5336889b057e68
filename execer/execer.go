// Package execer runs one Unix command. It is the process-execution boundary
// for the local scheduler: a way to spawn a child process, wait for it, and
// abort it, at the level of os/exec rather than exec-as-a-service.
package execer

import (
	"io"

	"github.com/scitest/runtest/common/errors"
)

type Command struct {
	Argv   []string
	Dir    string
	Stdout io.Writer
	Stderr io.Writer
}

type ProcessState int

const (
	UNKNOWN ProcessState = iota
	RUNNING
	COMPLETE
	FAILED
)

func (s ProcessState) IsDone() bool {
	return s == COMPLETE || s == FAILED
}

func (s ProcessState) String() string {
	switch s {
	case RUNNING:
		return "RUNNING"
	case COMPLETE:
		return "COMPLETE"
	case FAILED:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

type Execer interface {
	Exec(command Command) (Process, error)
}

type Process interface {
	// Wait blocks until the process is done and returns its final status.
	Wait() ProcessStatus
	// Abort terminates the process, escalating from a polite signal to a
	// forced kill. Returns the final status. Safe to call on a process that
	// already finished naturally.
	Abort() ProcessStatus
	// Pid of the underlying process, -1 if it never started.
	Pid() int
	// Running reports whether the process has started and not yet finished.
	Running() bool
}

type ProcessStatus struct {
	State    ProcessState
	ExitCode errors.ExitCode
	Error    string
}
