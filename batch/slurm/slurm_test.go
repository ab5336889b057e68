package slurm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scitest/runtest/batch"
)

func TestParseJobID(t *testing.T) {
	a := adapter{}

	id, err := a.ParseJobID([]byte("Submitted batch job 4242\n"))
	require.NoError(t, err)
	assert.Equal(t, "4242", id)

	// sbatch --parsable prints the bare id.
	id, err = a.ParseJobID([]byte("4242\n"))
	require.NoError(t, err)
	assert.Equal(t, "4242", id)

	_, err = a.ParseJobID([]byte(""))
	assert.Error(t, err)
}

func TestParseStatuses(t *testing.T) {
	out := `101 PENDING
102 RUNNING
103 COMPLETED
104 FAILED
105 SPECIAL_STATE
`
	a := adapter{}
	statuses, err := a.ParseStatuses([]byte(out))
	require.NoError(t, err)

	assert.Equal(t, map[string]batch.State{
		"101": batch.QUEUED,
		"102": batch.RUNNING,
		"103": batch.COMPLETED,
		"104": batch.FAILED,
		"105": batch.UNKNOWN,
	}, statuses)
}

func TestQueryArgs(t *testing.T) {
	a := adapter{}
	assert.Equal(t,
		[]string{"squeue", "--noheader", "-o", "%i %T", "-j", "1,2,3"},
		a.QueryArgs([]string{"1", "2", "3"}))
}

func TestRegistered(t *testing.T) {
	a, err := batch.Lookup("slurm")
	require.NoError(t, err)
	assert.Equal(t, "slurm", a.Name())
}
