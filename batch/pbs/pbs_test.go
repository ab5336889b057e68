package pbs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scitest/runtest/batch"
)

func TestParseJobID(t *testing.T) {
	a := adapter{}

	id, err := a.ParseJobID([]byte("1234.head-node\n"))
	require.NoError(t, err)
	assert.Equal(t, "1234.head-node", id)

	_, err = a.ParseJobID([]byte("\n  \n"))
	assert.Error(t, err)
}

func TestParseStatuses(t *testing.T) {
	out := `Job id            Name    User    Time Use S Queue
----------------  ------  ------  -------- - -----
101.head-node     case_a  hybs    00:00:00 Q batch
102.head-node     case_b  hybs    00:01:12 R batch
103.head-node     case_c  hybs    00:03:44 C batch
104.head-node     case_d  hybs    00:00:00 X batch
`
	a := adapter{}
	statuses, err := a.ParseStatuses([]byte(out))
	require.NoError(t, err)

	assert.Equal(t, map[string]batch.State{
		"101.head-node": batch.QUEUED,
		"102.head-node": batch.RUNNING,
		"103.head-node": batch.COMPLETED,
		"104.head-node": batch.UNKNOWN,
	}, statuses)
}

func TestSubmitAndQueryArgs(t *testing.T) {
	a := adapter{}
	assert.Equal(t, []string{"qsub", "/tmp/case.sh"}, a.SubmitArgs("/tmp/case.sh"))
	assert.Equal(t, []string{"qstat", "1", "2"}, a.QueryArgs([]string{"1", "2"}))
}

func TestRegistered(t *testing.T) {
	a, err := batch.Lookup("pbs")
	require.NoError(t, err)
	assert.Equal(t, "pbs", a.Name())
}
