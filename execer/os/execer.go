// Package os implements execer.Execer on top of os/exec, with process-group
// kills so a test case's whole process tree dies with it.
package os

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/scitest/runtest/execer"
)

// AbortGracePeriod is how long Abort waits after SIGTERM before SIGKILL.
var AbortGracePeriod = 10 * time.Second

// Implements execer.Execer
type osExecer struct {
	grace time.Duration
}

func NewExecer() *osExecer {
	return &osExecer{grace: AbortGracePeriod}
}

// NewExecerWithGrace returns an execer whose Abort escalates to SIGKILL
// after the given grace period.
func NewExecerWithGrace(grace time.Duration) *osExecer {
	return &osExecer{grace: grace}
}

// Exec starts command and returns a process wrapper for it. The command runs
// in its own process group so Abort can kill stragglers it forked.
func (e *osExecer) Exec(command execer.Command) (execer.Process, error) {
	if len(command.Argv) == 0 {
		return nil, fmt.Errorf("no command specified")
	}

	cmd := exec.Command(command.Argv[0], command.Argv[1:]...)
	cmd.Dir = command.Dir
	cmd.Env = os.Environ()

	// Sets pgid of all child processes to cmd's pid
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	var wg sync.WaitGroup
	if command.Stdout != nil {
		stdoutPipe, err := cmd.StdoutPipe()
		if err != nil {
			return nil, err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			io.Copy(command.Stdout, stdoutPipe)
		}()
	}
	if command.Stderr != nil {
		stderrPipe, err := cmd.StderrPipe()
		if err != nil {
			return nil, err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			io.Copy(command.Stderr, stderrPipe)
		}()
	}

	if err := cmd.Start(); err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{
		"pid":  cmd.Process.Pid,
		"argv": command.Argv,
	}).Debug("Started process")

	return &process{cmd: cmd, wg: &wg, grace: e.grace, exitedCh: make(chan struct{})}, nil
}
