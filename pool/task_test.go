package pool

import (
	"testing"
	"time"

	"github.com/scitest/runtest/common/errors"
	"github.com/scitest/runtest/execer"
	"github.com/scitest/runtest/execer/execers"
)

func TestTaskListenerOrder(t *testing.T) {
	task := NewTask("t", func() execer.ProcessStatus {
		return execer.ProcessStatus{State: execer.COMPLETE, ExitCode: 0}
	})

	var calls []string
	for _, name := range []string{"a", "b", "c"} {
		name := name
		task.OnComplete(func(task *Task) {
			// Returncode must be settled before completion listeners fire.
			if _, ok := task.Returncode(); !ok {
				t.Error("complete listener fired before returncode was set")
			}
			calls = append(calls, name)
		})
	}
	task.OnStart(func(task *Task) {
		if task.State() != RUNNING {
			t.Errorf("start listener saw state %v", task.State())
		}
		calls = append(calls, "start")
	})

	task.Start()
	task.Join()

	want := []string{"start", "a", "b", "c"}
	if len(calls) != len(want) {
		t.Fatalf("got calls %v; want %v", calls, want)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Fatalf("got calls %v; want %v", calls, want)
		}
	}
}

func TestTaskStates(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	task := NewTask("t", func() execer.ProcessStatus {
		close(started)
		<-release
		return execer.ProcessStatus{State: execer.COMPLETE, ExitCode: 3}
	})

	if task.State() != PENDING {
		t.Fatalf("new task in state %v", task.State())
	}
	if _, ok := task.Returncode(); ok {
		t.Fatal("pending task has a returncode")
	}

	task.Start()
	<-started
	if task.State() != RUNNING {
		t.Fatalf("started task in state %v", task.State())
	}

	close(release)
	task.Join()
	if task.State() != COMPLETED {
		t.Fatalf("joined task in state %v", task.State())
	}
	if rc, ok := task.Returncode(); !ok || rc != 3 {
		t.Fatalf("got returncode %v, %v; want 3, true", rc, ok)
	}
}

func TestProcessTaskRegistersItself(t *testing.T) {
	reg := NewProcessRegistry()
	ex := execers.NewSimExecer()
	task := NewProcessTask("t", []string{"complete 0"}, ex, reg)

	snap := reg.Snapshot()
	if len(snap) != 1 || snap[0] != task {
		t.Fatalf("registry snapshot %v; want the constructed task", snap)
	}

	task.Start()
	task.Join()
	if rc, ok := task.Returncode(); !ok || rc != 0 {
		t.Fatalf("got returncode %v, %v; want 0, true", rc, ok)
	}
}

func TestBrokenProcessCompletesWithSentinel(t *testing.T) {
	reg := NewProcessRegistry()
	ex := execers.NewSimExecer()
	// The sim execer rejects this argv, standing in for a spawn failure.
	task := NewProcessTask("t", []string{"no such opcode"}, ex, reg)

	completed := false
	task.OnComplete(func(*Task) { completed = true })

	task.Start()
	task.Join()

	if !completed {
		t.Fatal("broken task did not fire its completion notification")
	}
	rc, ok := task.Returncode()
	if !ok || rc != errors.CouldNotSpawnExitCode {
		t.Fatalf("got returncode %v, %v; want sentinel %v", rc, ok, errors.CouldNotSpawnExitCode)
	}
	status := task.Status()
	if status == nil || status.State != execer.FAILED {
		t.Fatalf("got status %v; want tagged FAILED", status)
	}
}

func TestSweepToleratesNaturalCompletion(t *testing.T) {
	reg := NewProcessRegistry()
	ex := execers.NewSimExecer()

	done := NewProcessTask("done", []string{"complete 0"}, ex, reg)
	done.Start()
	done.Join()

	paused := NewProcessTask("paused", []string{"pause", "complete 0"}, ex, reg)
	paused.Start()
	waitStarted(t, paused)

	reg.Sweep()
	paused.Join()

	// Only the live process was terminated; the finished one was left alone.
	if pids := ex.AbortedPids(); len(pids) != 1 {
		t.Fatalf("sweep aborted pids %v; want exactly one", pids)
	}
	if rc, _ := paused.Returncode(); rc == 0 {
		t.Fatal("swept task completed successfully; want synthesized failure")
	}
}

func waitStarted(t *testing.T, task *Task) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if task.Process() != nil {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("task never spawned its process")
}
