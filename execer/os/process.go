package os

import (
	"fmt"
	"os/exec"
	"sync"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/scitest/runtest/common/errors"
	"github.com/scitest/runtest/execer"
)

// Implements execer.Process
type process struct {
	cmd     *exec.Cmd
	wg      *sync.WaitGroup
	grace   time.Duration
	waiting bool
	result  *execer.ProcessStatus
	mutex   sync.Mutex
	// exitedCh is closed once Wait reaped the process.
	exitedCh chan struct{}
}

func (p *process) Pid() int {
	return p.cmd.Process.Pid
}

func (p *process) Running() bool {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.result == nil
}

// Wait for the process to finish.
// If the command finishes without error, return COMPLETE with exit code 0.
// If the command fails and the exit code is recoverable from the error,
// return COMPLETE with that exit code. Otherwise return FAILED and the error
// that prevented getting the exit code.
func (p *process) Wait() (result execer.ProcessStatus) {
	p.mutex.Lock()
	p.waiting = true
	p.mutex.Unlock()

	// Wait for the output goroutines to finish, then reap the process.
	p.wg.Wait()
	pid := p.cmd.Process.Pid
	err := p.cmd.Wait()
	close(p.exitedCh)
	log.WithFields(log.Fields{"pid": pid}).Debug("Finished waiting for process")

	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.waiting = false

	// Abort got here first and already synthesized a result.
	if p.result != nil {
		return *p.result
	}
	defer func() { p.result = &result }()

	if err == nil {
		result.State = execer.COMPLETE
		result.ExitCode = 0
		return result
	}
	if err, ok := err.(*exec.ExitError); ok {
		if status, ok := err.Sys().(syscall.WaitStatus); ok {
			result.State = execer.COMPLETE
			result.ExitCode = errors.ExitCode(status.ExitStatus())
			return result
		}
		result.State = execer.FAILED
		result.Error = "could not find WaitStatus from exiterr.Sys()"
		return result
	}

	result.State = execer.FAILED
	result.Error = err.Error()
	return result
}

// Abort attempts to SIGTERM the process, allowing a graceful exit, and
// SIGKILLs the process group once the grace period runs out.
func (p *process) Abort() execer.ProcessStatus {
	p.mutex.Lock()
	if p.result != nil {
		defer p.mutex.Unlock()
		return *p.result
	}
	p.result = &execer.ProcessStatus{
		State:    execer.FAILED,
		ExitCode: errors.AbortedExitCode,
		Error:    "Aborted",
	}
	wasWaiting := p.waiting
	p.mutex.Unlock()

	pid := p.cmd.Process.Pid
	if err := p.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		log.WithFields(log.Fields{"pid": pid, "error": err}).Error("Error aborting process via SIGTERM")
		p.killAndWait("SIGTERM failed")
		p.mutex.Lock()
		defer p.mutex.Unlock()
		return *p.result
	}
	log.WithFields(log.Fields{"pid": pid}).Info("Aborting process via SIGTERM")

	var exited <-chan struct{}
	if !wasWaiting {
		// Nothing else claimed the process, reap it ourselves.
		ch := make(chan struct{})
		go func() {
			p.cmd.Wait()
			close(ch)
		}()
		exited = ch
	} else {
		// Wait() holds the reaping call and closes exitedCh when done.
		exited = p.exitedCh
	}

	select {
	case <-exited:
		log.WithFields(log.Fields{"pid": pid}).Info("Process finished via SIGTERM")
	case <-time.After(p.grace):
		p.killAndWait(fmt.Sprintf("%s grace period exceeded", p.grace))
	}

	p.mutex.Lock()
	defer p.mutex.Unlock()
	return *p.result
}

// killAndWait SIGKILLs the process and every process in its group.
func (p *process) killAndWait(reason string) {
	pid := p.cmd.Process.Pid
	log.WithFields(log.Fields{"pid": pid, "reason": reason}).Info("Killing process group")
	if pgid, err := syscall.Getpgid(pid); err != nil {
		log.WithFields(log.Fields{"pid": pid, "error": err}).Error("Error finding pgid")
		p.cmd.Process.Kill()
	} else if err := syscall.Kill(-pgid, syscall.SIGKILL); err != nil {
		log.WithFields(log.Fields{"pgid": pgid, "error": err}).Error("Error killing process group")
	}
}
