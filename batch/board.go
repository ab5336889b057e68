package batch

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/scitest/runtest/common/errors"
	"github.com/scitest/runtest/execer"
)

// DefaultPollInterval is the fixed sleep between status rounds.
const DefaultPollInterval = 5 * time.Second

// QueryFunc issues one bulk status query covering ids and returns the state
// of every job the queue still knows about.
type QueryFunc func(ids []string) (map[string]State, error)

// Finisher reconciles one terminal job into a returncode. Called exactly
// once per job.
type Finisher func(*Job) errors.ExitCode

// Board tracks a set of remote jobs to completion. One Update round issues a
// single bulk query over all non-terminal jobs; jobs absent from the
// response go UNKNOWN rather than staying stale. Everything runs on the
// caller's goroutine; the fixed poll sleep in Watch is the sole suspension
// point of the remote path.
type Board struct {
	jobs     []*Job
	finished map[string]errors.ExitCode
	query    QueryFunc
	finish   Finisher
	interval time.Duration
}

func NewBoard(query QueryFunc, finish Finisher) *Board {
	return &Board{
		finished: map[string]errors.ExitCode{},
		query:    query,
		finish:   finish,
		interval: DefaultPollInterval,
	}
}

// NewExecBoard returns a board querying the queue through the adapter's bulk
// status command.
func NewExecBoard(a Adapter, e execer.Execer, finish Finisher) *Board {
	return NewBoard(execQuery(a, e), finish)
}

// SetInterval overrides the poll sleep.
func (b *Board) SetInterval(d time.Duration) {
	b.interval = d
}

func (b *Board) Add(j *Job) {
	b.jobs = append(b.jobs, j)
}

func (b *Board) Jobs() []*Job {
	return append([]*Job(nil), b.jobs...)
}

// IsRunning is true while at least one tracked job is non-terminal.
func (b *Board) IsRunning() bool {
	for _, j := range b.jobs {
		if !j.state.IsDone() {
			return true
		}
	}
	return false
}

// Update issues one bulk status query covering all non-terminal jobs and
// applies the result. A job missing from the response, or any query failure,
// marks the affected jobs UNKNOWN; a later Reconcile pass finishes them as
// failures instead of retrying forever.
func (b *Board) Update() {
	var pending []*Job
	var ids []string
	for _, j := range b.jobs {
		if !j.state.IsDone() {
			pending = append(pending, j)
			ids = append(ids, j.ID)
		}
	}
	if len(pending) == 0 {
		return
	}

	statuses, err := b.query(ids)
	if err != nil {
		log.WithFields(log.Fields{"error": err}).Warn("Status query failed, marking jobs unknown")
		statuses = nil
	}
	for _, j := range pending {
		next, ok := statuses[j.ID]
		if !ok {
			next = UNKNOWN
		}
		if next != j.state {
			log.WithFields(log.Fields{
				"job":  j.Label,
				"id":   j.ID,
				"from": j.state,
				"to":   next,
			}).Info("Job state changed")
			j.state = next
		}
	}
}

// Reconcile finishes every terminal job that has not been finished yet,
// exactly once per job, and stores its returncode.
func (b *Board) Reconcile() {
	for _, j := range b.jobs {
		if !j.state.IsDone() {
			continue
		}
		if _, done := b.finished[j.ID]; done {
			continue
		}
		rc := b.finish(j)
		b.finished[j.ID] = rc
		log.WithFields(log.Fields{
			"job":        j.Label,
			"id":         j.ID,
			"state":      j.state,
			"returncode": rc,
		}).Info("Job finished")
	}
}

// StatusLine renders aggregate counts per state, e.g.
// "2 queued, 1 running, 3 completed".
func (b *Board) StatusLine() string {
	counts := map[State]int{}
	for _, j := range b.jobs {
		counts[j.state]++
	}
	var parts []string
	for _, s := range []State{QUEUED, RUNNING, COMPLETED, FAILED, UNKNOWN} {
		if counts[s] > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", counts[s], s))
		}
	}
	if len(parts) == 0 {
		return "no jobs"
	}
	return strings.Join(parts, ", ")
}

// Returncode is the max over finished jobs' returncodes, or
// NoJobsFinishedExitCode if nothing ever finished, distinguishing "nothing
// completed" from "everything passed".
func (b *Board) Returncode() errors.ExitCode {
	if len(b.finished) == 0 {
		return errors.NoJobsFinishedExitCode
	}
	var code errors.ExitCode
	for _, rc := range b.finished {
		code = errors.Max(code, rc)
	}
	return code
}

// Watch polls until every job is terminal and reconciled, then returns the
// aggregate returncode.
func (b *Board) Watch() errors.ExitCode {
	b.Update()
	b.Reconcile()
	for b.IsRunning() {
		log.Info(b.StatusLine())
		time.Sleep(b.interval)
		b.Update()
		b.Reconcile()
	}
	log.WithFields(log.Fields{"status": b.StatusLine()}).Info("All jobs finished")
	return b.Returncode()
}

func execQuery(a Adapter, e execer.Execer) QueryFunc {
	return func(ids []string) (map[string]State, error) {
		var stdout bytes.Buffer
		p, err := e.Exec(execer.Command{Argv: a.QueryArgs(ids), Stdout: &stdout})
		if err != nil {
			return nil, err
		}
		if status := p.Wait(); status.State != execer.COMPLETE || status.ExitCode != 0 {
			return nil, fmt.Errorf("status query failed: %v", status)
		}
		return a.ParseStatuses(stdout.Bytes())
	}
}

// ExitFileFinisher reads the exit status the job script recorded for its
// case. A missing or unparsable file means the job never produced a result
// and counts as a failure.
func ExitFileFinisher(exitFile func(*Job) string) Finisher {
	return func(j *Job) errors.ExitCode {
		data, err := os.ReadFile(exitFile(j))
		if err != nil {
			log.WithFields(log.Fields{
				"job":   j.Label,
				"error": err,
			}).Warn("No exit file, counting job as failed")
			return errors.AbortedExitCode
		}
		n, err := strconv.Atoi(strings.TrimSpace(string(data)))
		if err != nil {
			return errors.AbortedExitCode
		}
		return errors.ExitCode(n)
	}
}
