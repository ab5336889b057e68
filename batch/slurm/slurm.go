// Package slurm adapts the batch boundary to Slurm queues
// (sbatch/squeue).
package slurm

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
	return "slurm"
}

const scriptTemplate = `#!/bin/bash
#SBATCH --job-name={{.Name}}
{{- if .Queue}}
#SBATCH --partition={{.Queue}}
{{- end}}
#SBATCH --ntasks={{.Procs}}
{{- if .TimeLimit}}
#SBATCH --time={{.TimeLimit}}
{{- end}}
{{- if .MemoryLimit}}
#SBATCH --mem={{.MemoryLimit}}
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
	return []string{"sbatch", script}
}

func (adapter) QueryArgs(ids []string) []string {
	return []string{"squeue", "--noheader", "-o", "%i %T", "-j", strings.Join(ids, ",")}
}

// ParseJobID reads sbatch output, either "Submitted batch job 123" or a bare
// id from sbatch --parsable.
func (adapter) ParseJobID(out []byte) (string, error) {
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		return fields[len(fields)-1], nil
	}
	return "", errors.New("sbatch printed no job id")
}

var slurmStates = map[string]batch.State{
	"PENDING":       batch.QUEUED,
	"CONFIGURING":   batch.QUEUED,
	"SUSPENDED":     batch.QUEUED,
	"RUNNING":       batch.RUNNING,
	"COMPLETING":    batch.RUNNING,
	"COMPLETED":     batch.COMPLETED,
	"FAILED":        batch.FAILED,
	"CANCELLED":     batch.FAILED,
	"TIMEOUT":       batch.FAILED,
	"NODE_FAIL":     batch.FAILED,
	"PREEMPTED":     batch.FAILED,
	"OUT_OF_MEMORY": batch.FAILED,
}

// ParseStatuses reads "squeue --noheader -o '%i %T'" lines: "123 RUNNING".
// Finished jobs drop out of squeue; the board turns those into UNKNOWN and
// the finisher settles them from the exit file.
func (adapter) ParseStatuses(out []byte) (map[string]batch.State, error) {
	statuses := map[string]batch.State{}
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		state, ok := slurmStates[fields[1]]
		if !ok {
			state = batch.UNKNOWN
		}
		statuses[fields[0]] = state
	}
	return statuses, scanner.Err()
}
