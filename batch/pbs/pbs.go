// Package pbs adapts the batch boundary to PBS/Torque queues
// (qsub/qstat).
package pbs

import (
	"bufio"
	"bytes"
	"strings"

	"github.com/pkg/errors"

	"github.com/scitest/runtest/batch"
)

func init() {
	batch.Register(adapter{})
}

type adapter struct{}

func (adapter) Name() string {
	return "pbs"
}

const scriptTemplate = `#!/bin/bash
#PBS -N {{.Name}}
{{- if .Queue}}
#PBS -q {{.Queue}}
{{- end}}
#PBS -l nodes={{.Procs}}:ppn={{.PPN}}
{{- if .TimeLimit}}
#PBS -l walltime={{.TimeLimit}}
{{- end}}
{{- if .MemoryLimit}}
#PBS -l mem={{.MemoryLimit}}
{{- end}}

{{- if .WorkDir}}
cd {{.WorkDir}}
{{- end}}
rc=0
{{- range .Commands}}
if [ $rc -eq 0 ]; then
    {{.}} || rc=$?
fi
{{- end}}
echo $rc > {{.ExitFile}}
`

func (adapter) Template() string {
	return scriptTemplate
}

func (adapter) SubmitArgs(script string) []string {
	return []string{"qsub", script}
}

func (adapter) QueryArgs(ids []string) []string {
	return append([]string{"qstat"}, ids...)
}

// ParseJobID reads qsub output, a single line with the full job id
// (e.g. "1234.head-node").
func (adapter) ParseJobID(out []byte) (string, error) {
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			return line, nil
		}
	}
	return "", errors.New("qsub printed no job id")
}

// qstat job-state letters. E is "exiting", still consuming the node.
var pbsStates = map[string]batch.State{
	"Q": batch.QUEUED,
	"H": batch.QUEUED,
	"W": batch.QUEUED,
	"T": batch.QUEUED,
	"R": batch.RUNNING,
	"E": batch.RUNNING,
	"S": batch.RUNNING,
	"C": batch.COMPLETED,
	"F": batch.COMPLETED,
}

// ParseStatuses reads the default qstat table:
//
//	Job id            Name    User    Time Use S Queue
//	----------------  ------  ------  -------- - -----
//	123.head-node     case_a  hybs    00:00:00 R batch
func (adapter) ParseStatuses(out []byte) (map[string]batch.State, error) {
	statuses := map[string]batch.State{}
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 6 || strings.HasPrefix(fields[0], "-") || strings.EqualFold(fields[0], "Job") {
			continue
		}
		state, ok := pbsStates[fields[4]]
		if !ok {
			state = batch.UNKNOWN
		}
		statuses[fields[0]] = state
	}
	return statuses, scanner.Err()
}
