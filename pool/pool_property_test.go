//go:build property_test
// +build property_test

package pool

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/scitest/runtest/execer/execers"
)

// For all limits N and chain counts, a pool never runs more than N chains at
// once and a fully successful run aggregates to 0.
func Test_PoolConcurrencyCeiling(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("pool honors its concurrency limit", prop.ForAll(
		func(limit int, chains int) bool {
			ex := execers.NewSimExecer()
			reg := NewProcessRegistry()
			p := NewPool(limit, reg)

			tracker := &concurrencyTracker{}
			for i := 0; i < chains; i++ {
				chain := NewChain(fmt.Sprintf("case-%d", i), true,
					NewProcessTask(fmt.Sprintf("run-%d", i), []string{"sleep 1", "complete 0"}, ex, reg))
				tracker.wire(chain)
				p.Add(chain)
			}

			if rc := p.Run(); rc != 0 {
				return false
			}
			if len(tracker.Started()) != chains {
				return false
			}
			return tracker.Peak() <= limit
		},
		gen.IntRange(1, 5),
		gen.IntRange(0, 16),
	))

	properties.TestingRun(t)
}
