// Package execers provides simulated implementations of execer.Execer for
// tests: deterministic processes scripted through their argv.
package execers

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/scitest/runtest/common/errors"
	"github.com/scitest/runtest/execer"
)

func NewSimExecer() *SimExecer {
	return &SimExecer{resumeCh: make(chan struct{})}
}

// SimExecer execs by simulating running argv.
// Each arg in command.Argv is simulated in order.
// Valid args are:
//
//	complete <exitcode int>
//	  complete with exitcode
//	pause
//	  pause until SimExecer.Resume() is called
//	sleep <millis int>
//	  sleep for millis milliseconds
//	stdout <message>
//	  write <message> to stdout
//	stderr <message>
//	  write <message> to stderr
type SimExecer struct {
	resumeCh chan struct{}

	mu      sync.Mutex
	aborted []int
	nextPid int
}

func (e *SimExecer) Exec(command execer.Command) (execer.Process, error) {
	steps, err := e.parse(command.Argv)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	e.nextPid++
	pid := e.nextPid
	e.mu.Unlock()
	p := &simProcess{stdout: command.Stdout, stderr: command.Stderr, pid: pid, owner: e, abortCh: make(chan struct{})}
	p.done = sync.NewCond(&p.mu)
	p.status.State = execer.RUNNING
	go p.run(steps)
	return p, nil
}

// Resume unblocks one process paused on a "pause" step.
func (e *SimExecer) Resume() {
	e.resumeCh <- struct{}{}
}

// AbortedPids returns the pids of simulated processes that were aborted.
func (e *SimExecer) AbortedPids() []int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]int(nil), e.aborted...)
}

func (e *SimExecer) recordAbort(pid int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.aborted = append(e.aborted, pid)
}

func (e *SimExecer) parse(argv []string) (steps []simStep, err error) {
	for _, arg := range argv {
		s, err := e.parseArg(arg)
		if err != nil {
			return nil, err
		}
		steps = append(steps, s)
	}
	return steps, nil
}

func (e *SimExecer) parseArg(arg string) (simStep, error) {
	if strings.HasPrefix(arg, "#") {
		return &noopStep{}, nil
	}
	splits := strings.SplitN(arg, " ", 2)
	opcode, rest := splits[0], ""
	if len(splits) == 2 {
		rest = splits[1]
	}
	switch opcode {
	case "complete":
		i, err := strconv.Atoi(rest)
		if err != nil {
			return nil, fmt.Errorf("error parsing <n> in complete <n>: %s", err)
		}
		return &completeStep{i}, nil
	case "pause":
		return &pauseStep{e.resumeCh}, nil
	case "sleep":
		i, err := strconv.Atoi(rest)
		if err != nil {
			return nil, fmt.Errorf("error parsing <n> in sleep <n>: %s", err)
		}
		return &sleepStep{time.Duration(i) * time.Millisecond}, nil
	case "stdout":
		return &stdoutStep{rest}, nil
	case "stderr":
		return &stderrStep{rest}, nil
	}
	return nil, fmt.Errorf("can't simulate arg: %v", arg)
}

type simProcess struct {
	status execer.ProcessStatus
	done   *sync.Cond
	mu      sync.Mutex
	pid     int
	owner   *SimExecer
	abortCh chan struct{}

	stdout io.Writer
	stderr io.Writer
}

func (p *simProcess) run(steps []simStep) {
	for _, step := range steps {
		status := p.getStatus()
		if status.State.IsDone() {
			break
		}
		p.setStatus(step.run(status, p))
	}
}

func (p *simProcess) Wait() execer.ProcessStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	for !p.status.State.IsDone() {
		p.done.Wait()
	}
	return p.status
}

func (p *simProcess) Abort() execer.ProcessStatus {
	p.mu.Lock()
	if !p.status.State.IsDone() {
		p.status = execer.ProcessStatus{
			State:    execer.FAILED,
			ExitCode: errors.AbortedExitCode,
			Error:    "Aborted",
		}
		close(p.abortCh)
		p.done.Broadcast()
		p.owner.recordAbort(p.pid)
	}
	st := p.status
	p.mu.Unlock()
	return st
}

func (p *simProcess) Pid() int {
	return p.pid
}

func (p *simProcess) Running() bool {
	return !p.getStatus().State.IsDone()
}

func (p *simProcess) setStatus(status execer.ProcessStatus) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.status.State.IsDone() {
		return
	}
	p.status = status
	if p.status.State.IsDone() {
		p.done.Broadcast()
	}
}

func (p *simProcess) getStatus() execer.ProcessStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

type simStep interface {
	run(status execer.ProcessStatus, p *simProcess) execer.ProcessStatus
}

type completeStep struct {
	exitCode int
}

func (s *completeStep) run(status execer.ProcessStatus, p *simProcess) execer.ProcessStatus {
	status.ExitCode = errors.ExitCode(s.exitCode)
	status.State = execer.COMPLETE
	return status
}

type pauseStep struct {
	resumeCh chan struct{}
}

func (s *pauseStep) run(status execer.ProcessStatus, p *simProcess) execer.ProcessStatus {
	select {
	case <-s.resumeCh:
	case <-p.abortCh:
	}
	return status
}

type sleepStep struct {
	duration time.Duration
}

func (s *sleepStep) run(status execer.ProcessStatus, p *simProcess) execer.ProcessStatus {
	time.Sleep(s.duration)
	return status
}

type stdoutStep struct {
	output string
}

func (s *stdoutStep) run(status execer.ProcessStatus, p *simProcess) execer.ProcessStatus {
	if p.stdout != nil {
		io.WriteString(p.stdout, s.output)
	}
	return status
}

type stderrStep struct {
	output string
}

func (s *stderrStep) run(status execer.ProcessStatus, p *simProcess) execer.ProcessStatus {
	if p.stderr != nil {
		io.WriteString(p.stderr, s.output)
	}
	return status
}

type noopStep struct{}

func (s *noopStep) run(status execer.ProcessStatus, p *simProcess) execer.ProcessStatus {
	return status
}
