package batch

import (
	"sort"
	"sync"

	"github.com/pkg/errors"
)

// Adapter is the capability surface one batch-queue flavor must provide:
// rendering a submit invocation, parsing the raw job id it prints, building
// one bulk status query for many jobs, and parsing its output. Adapters are
// stateless; concrete ones live in batch/pbs and batch/slurm.
type Adapter interface {
	Name() string
	// Template is the job-script skeleton, rendered per case with
	// text/template against a ScriptContext.
	Template() string
	// SubmitArgs is the argv submitting the rendered script.
	SubmitArgs(script string) []string
	// QueryArgs is the argv of one bulk status query covering ids.
	QueryArgs(ids []string) []string
	// ParseJobID extracts the raw job identifier from submit output.
	ParseJobID(out []byte) (string, error)
	// ParseStatuses maps job ids found in query output to states. Ids absent
	// from the result are the caller's problem (they go UNKNOWN).
	ParseStatuses(out []byte) (map[string]State, error)
}

var (
	adaptersMu sync.Mutex
	adapters   = map[string]Adapter{}
)

// Register makes an adapter available under its name. Called from adapter
// package init; registering the same name twice panics.
func Register(a Adapter) {
	adaptersMu.Lock()
	defer adaptersMu.Unlock()
	if _, dup := adapters[a.Name()]; dup {
		panic("batch: adapter registered twice: " + a.Name())
	}
	adapters[a.Name()] = a
}

// Lookup resolves an adapter by name, once at startup.
func Lookup(name string) (Adapter, error) {
	adaptersMu.Lock()
	defer adaptersMu.Unlock()
	a, ok := adapters[name]
	if !ok {
		return nil, errors.Errorf("no batch adapter %q (have %v)", name, names())
	}
	return a, nil
}

func names() []string {
	ns := make([]string, 0, len(adapters))
	for n := range adapters {
		ns = append(ns, n)
	}
	sort.Strings(ns)
	return ns
}
