package os_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/scitest/runtest/execer"
	osexecer "github.com/scitest/runtest/execer/os"
)

func TestExitCodes(t *testing.T) {
	ex := osexecer.NewExecer()

	p, err := ex.Exec(execer.Command{Argv: []string{"true"}})
	if err != nil {
		t.Fatalf("Couldn't run true: %v", err)
	}
	status := p.Wait()
	if status.State != execer.COMPLETE || status.ExitCode != 0 {
		t.Fatalf("Got unexpected status running true: %v", status)
	}

	p, err = ex.Exec(execer.Command{Argv: []string{"false"}})
	if err != nil {
		t.Fatalf("Couldn't run false: %v", err)
	}
	status = p.Wait()
	if status.State != execer.COMPLETE || status.ExitCode != 1 {
		t.Fatalf("Got unexpected status running false: %v", status)
	}
}

func TestOutput(t *testing.T) {
	ex := osexecer.NewExecer()

	var stdout, stderr bytes.Buffer
	stdoutExpected := "hello world"
	cmd := execer.Command{
		Argv:   []string{"echo", "-n", stdoutExpected},
		Stdout: &stdout,
		Stderr: &stderr,
	}
	p, err := ex.Exec(cmd)
	if err != nil {
		t.Fatalf("Couldn't run echo: %v", err)
	}
	status := p.Wait()
	if status.State != execer.COMPLETE || status.ExitCode != 0 {
		t.Fatalf("Got unexpected status running echo: %v", status)
	}
	if stdout.String() != stdoutExpected || stderr.String() != "" {
		t.Fatalf("Incorrect output, got %q and %q; expected %q and \"\"",
			stdout.String(), stderr.String(), stdoutExpected)
	}
}

func TestSpawnFailure(t *testing.T) {
	ex := osexecer.NewExecer()
	if _, err := ex.Exec(execer.Command{Argv: []string{"/no/such/binary-anywhere"}}); err == nil {
		t.Fatal("Expected an error spawning a nonexistent binary")
	}
	if _, err := ex.Exec(execer.Command{}); err == nil {
		t.Fatal("Expected an error spawning an empty argv")
	}
}

func TestAbort(t *testing.T) {
	ex := osexecer.NewExecerWithGrace(time.Second)

	p, err := ex.Exec(execer.Command{Argv: []string{"sleep", "60"}})
	if err != nil {
		t.Fatalf("Couldn't run sleep: %v", err)
	}
	if !p.Running() {
		t.Fatal("Expected process to report running")
	}
	if p.Pid() <= 0 {
		t.Fatalf("Expected a real pid, got %d", p.Pid())
	}

	waitCh := make(chan execer.ProcessStatus, 1)
	go func() { waitCh <- p.Wait() }()
	// Give Wait a moment to claim the process before aborting.
	time.Sleep(50 * time.Millisecond)

	status := p.Abort()
	if status.State != execer.FAILED {
		t.Fatalf("Got unexpected status aborting sleep: %v", status)
	}
	if p.Running() {
		t.Fatal("Aborted process still reports running")
	}

	select {
	case waited := <-waitCh:
		// The waiter sees the synthesized abort result, not a zero exit.
		if waited.State != execer.FAILED {
			t.Fatalf("Wait returned %v for an aborted process", waited)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Wait did not return after abort")
	}

	// Aborting again is a no-op returning the settled result.
	if again := p.Abort(); again.State != execer.FAILED {
		t.Fatalf("Second abort returned %v", again)
	}
}
