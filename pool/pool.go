package pool

import (
	"sync"

	metrics "github.com/rcrowley/go-metrics"
	log "github.com/sirupsen/logrus"

	"github.com/scitest/runtest/common/errors"
)

// Pool schedules many chains with a concurrency ceiling. Admission order is
// insertion order, gated by a counting semaphore released from completion
// notifications. On the first chain completing with a nonzero returncode the
// pool stops admitting, sweeps the process registry, and Run returns a
// nonzero aggregate. This is intentional fail-fast, not a retryable
// condition.
type Pool struct {
	limit    int
	registry *ProcessRegistry
	progress Progress

	gate     chan struct{}
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu          sync.Mutex
	chains      []*Chain
	running     int
	stopped     bool
	stopOnError bool

	runningGauge metrics.Gauge
	completedCtr metrics.Counter
	failedCtr    metrics.Counter
}

// NewPool returns a pool admitting at most limit chains at a time. Chains
// whose processes should be killed on failure must be built against reg.
func NewPool(limit int, reg *ProcessRegistry) *Pool {
	if limit < 1 {
		limit = 1
	}
	return &Pool{
		limit:       limit,
		registry:    reg,
		gate:        make(chan struct{}, limit),
		stopCh:      make(chan struct{}),
		stopOnError: true,
	}
}

// SetStopOnError controls pool-level fail-fast. Keep-going runs record every
// failure and still run everything. Must be called before Run.
func (p *Pool) SetStopOnError(stop bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopOnError = stop
}

// SetProgress registers a sink invoked with (index, total) as each chain is
// admitted. Must be called before Run.
func (p *Pool) SetProgress(pr Progress) {
	p.progress = pr
}

// RegisterMetrics publishes running/completed/failed chain metrics to r.
// Optional; must be called before Run.
func (p *Pool) RegisterMetrics(r metrics.Registry) {
	p.runningGauge = metrics.GetOrRegisterGauge("pool.chains.running", r)
	p.completedCtr = metrics.GetOrRegisterCounter("pool.chains.completed", r)
	p.failedCtr = metrics.GetOrRegisterCounter("pool.chains.failed", r)
}

// Add appends a chain and wires its lifecycle into the pool's counters.
// Must be called before Run.
func (p *Pool) Add(c *Chain) {
	c.OnStart(p.onChainStart)
	c.OnComplete(p.onChainComplete)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.chains = append(p.chains, c)
}

func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.chains)
}

// Chains returns the pool's chains in insertion order.
func (p *Pool) Chains() []*Chain {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*Chain(nil), p.chains...)
}

// Running returns how many chains are currently running.
func (p *Pool) Running() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Stopped reports whether the pool refuses further admissions.
func (p *Pool) Stopped() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopped
}

// Stop prevents any further chain from being admitted, regardless of free
// capacity, and unblocks the admission loop.
func (p *Pool) Stop() {
	p.mu.Lock()
	p.stopped = true
	chains := append([]*Chain(nil), p.chains...)
	p.mu.Unlock()
	// Already-running chains must not admit further subtasks either, or
	// they would spawn fresh processes after the registry sweep.
	for _, c := range chains {
		c.Stop()
	}
	p.stopOnce.Do(func() { close(p.stopCh) })
}

// Returncode is the aggregate over completed chains, the max of their
// aggregates. A stopped pool never reports success.
func (p *Pool) Returncode() errors.ExitCode {
	p.mu.Lock()
	chains := append([]*Chain(nil), p.chains...)
	stopped := p.stopped
	p.mu.Unlock()

	var code errors.ExitCode
	for _, c := range chains {
		if rc, ok := c.Returncode(); ok {
			code = errors.Max(code, rc)
		}
	}
	if stopped {
		code = errors.Max(code, errors.AbortedExitCode)
	}
	return code
}

// Run admits chains in insertion order as capacity frees up, waits for every
// admitted chain to finish, and returns the aggregate returncode.
func (p *Pool) Run() errors.ExitCode {
	total := p.Len()
	log.WithFields(log.Fields{
		"chains": total,
		"limit":  p.limit,
	}).Info("Starting pool")

	for i, c := range p.Chains() {
		select {
		case p.gate <- struct{}{}:
		case <-p.stopCh:
		}
		if p.Stopped() {
			break
		}
		if p.progress != nil {
			p.progress(i+1, total)
		}
		p.wg.Add(1)
		c.Start()
	}

	p.wg.Wait()
	rc := p.Returncode()
	log.WithFields(log.Fields{"returncode": rc}).Info("Pool finished")
	return rc
}

func (p *Pool) onChainStart(*Task) {
	p.mu.Lock()
	p.running++
	running := p.running
	p.mu.Unlock()
	if p.runningGauge != nil {
		p.runningGauge.Update(int64(running))
	}
}

// onChainComplete runs on the completing chain's goroutine; completions from
// different chains arrive concurrently, so all counter updates stay under
// the pool mutex.
func (p *Pool) onChainComplete(t *Task) {
	p.mu.Lock()
	p.running--
	running := p.running
	p.mu.Unlock()
	if p.runningGauge != nil {
		p.runningGauge.Update(int64(running))
	}

	rc, _ := t.Returncode()
	if rc != 0 {
		if p.failedCtr != nil {
			p.failedCtr.Inc(1)
		}
		p.mu.Lock()
		failFast := p.stopOnError
		p.mu.Unlock()
		if failFast {
			log.WithFields(log.Fields{
				"chain":      t.Name(),
				"returncode": rc,
			}).Error("Chain failed, aborting run")
			p.Stop()
			p.registry.Sweep()
		} else {
			log.WithFields(log.Fields{
				"chain":      t.Name(),
				"returncode": rc,
			}).Error("Chain failed")
		}
	} else if p.completedCtr != nil {
		p.completedCtr.Inc(1)
	}

	<-p.gate
	p.wg.Done()
}
