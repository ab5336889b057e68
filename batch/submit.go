package batch

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/scitest/runtest/cases"
	"github.com/scitest/runtest/execer"
)

// ScriptContext is what an adapter's job-script template is rendered with.
type ScriptContext struct {
	Name        string
	Queue       string
	Procs       int
	PPN         int
	TimeLimit   string
	MemoryLimit string
	WorkDir     string
	// Commands are the case's steps, one shell line each.
	Commands []string
	// ExitFile is where the script records the run's exit status so the
	// finisher can reconcile a terminal job into a returncode.
	ExitFile string
}

// Submitter turns test cases into queued jobs.
type Submitter struct {
	adapter Adapter
	execer  execer.Execer
	// ScriptDir is where rendered job scripts and exit files land.
	ScriptDir string
	Queue     string
	PPN       int
}

func NewSubmitter(a Adapter, e execer.Execer, scriptDir string) *Submitter {
	return &Submitter{adapter: a, execer: e, ScriptDir: scriptDir, PPN: 1}
}

// Submit renders the job script for c, invokes the queue's submit command,
// and parses the returned job identifier.
func (s *Submitter) Submit(c *cases.Case) (*Job, error) {
	script, err := s.renderScript(c)
	if err != nil {
		return nil, err
	}
	path := filepath.Join(s.ScriptDir, c.Name+".sh")
	if err := os.WriteFile(path, []byte(script), 0755); err != nil {
		return nil, errors.Wrapf(err, "writing job script for %s", c.Name)
	}

	var stdout, stderr bytes.Buffer
	p, err := s.execer.Exec(execer.Command{
		Argv:   s.adapter.SubmitArgs(path),
		Stdout: &stdout,
		Stderr: &stderr,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "spawning submit command for %s", c.Name)
	}
	status := p.Wait()
	if status.State != execer.COMPLETE || status.ExitCode != 0 {
		return nil, errors.Errorf("submit command for %s failed: %v (stderr: %s)",
			c.Name, status, strings.TrimSpace(stderr.String()))
	}

	id, err := s.adapter.ParseJobID(stdout.Bytes())
	if err != nil {
		return nil, errors.Wrapf(err, "parsing job id for %s", c.Name)
	}
	log.WithFields(log.Fields{
		"case":  c.Name,
		"jobID": id,
	}).Info("Job inserted into queue")
	return &Job{
		ID:    id,
		Case:  c,
		Label: fmt.Sprintf("Case %s", c.Name),
		state: QUEUED,
	}, nil
}

// ExitFile returns where the job script for c records its exit status.
func (s *Submitter) ExitFile(c *cases.Case) string {
	return filepath.Join(s.ScriptDir, c.Name+".exit")
}

func (s *Submitter) renderScript(c *cases.Case) (string, error) {
	tmpl, err := template.New(s.adapter.Name()).Parse(s.adapter.Template())
	if err != nil {
		return "", errors.Wrapf(err, "parsing %s template", s.adapter.Name())
	}

	ctx := ScriptContext{
		Name:        c.Name,
		Queue:       s.Queue,
		Procs:       c.Procs,
		PPN:         s.PPN,
		TimeLimit:   c.TimeLimit,
		MemoryLimit: c.MemoryLimit,
		WorkDir:     c.WorkDir,
		ExitFile:    s.ExitFile(c),
	}
	for _, steps := range [][][]string{c.Clean, c.Run, c.Compare} {
		for _, argv := range steps {
			ctx.Commands = append(ctx.Commands, shellLine(argv))
		}
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, ctx); err != nil {
		return "", errors.Wrapf(err, "rendering %s script for %s", s.adapter.Name(), c.Name)
	}
	return buf.String(), nil
}

// shellLine renders argv as one shell line, quoting args with whitespace.
func shellLine(argv []string) string {
	parts := make([]string, len(argv))
	for i, a := range argv {
		if strings.ContainsAny(a, " \t\"'") {
			parts[i] = "'" + strings.ReplaceAll(a, "'", `'\''`) + "'"
		} else {
			parts[i] = a
		}
	}
	return strings.Join(parts, " ")
}
