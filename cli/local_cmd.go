package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	metrics "github.com/rcrowley/go-metrics"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/scitest/runtest/cases"
	"github.com/scitest/runtest/common/errors"
	"github.com/scitest/runtest/execer"
	osexecer "github.com/scitest/runtest/execer/os"
	"github.com/scitest/runtest/pool"
)

// settleGrace bounds how long an interrupt waits for in-flight completion
// notifications after the kill sweep before forcing exit.
const settleGrace = 5 * time.Second

type localCmd struct {
	parallel  int
	keepGoing bool
	grace     time.Duration
}

func (c *localCmd) registerFlags() *cobra.Command {
	r := &cobra.Command{
		Use:   "local <manifest>...",
		Short: "run test cases on this machine",
		Args:  cobra.MinimumNArgs(1),
		RunE:  c.run,
	}
	r.Flags().IntVarP(&c.parallel, "parallel", "j", 2, "how many cases run concurrently")
	r.Flags().BoolVar(&c.keepGoing, "keep-going", false, "keep running remaining cases after a failure")
	r.Flags().DurationVar(&c.grace, "kill-grace", 10*time.Second, "SIGTERM to SIGKILL escalation period")
	return r
}

func (c *localCmd) run(cmd *cobra.Command, args []string) error {
	cs, err := loadManifests(args)
	if err != nil {
		return err
	}
	log.WithFields(log.Fields{"cases": len(cs)}).Info("Loaded test cases")

	reg := pool.NewProcessRegistry()
	e := osexecer.NewExecerWithGrace(c.grace)

	p := pool.NewPool(c.parallel, reg)
	p.SetStopOnError(!c.keepGoing)
	p.SetProgress(func(index, total int) {
		log.Infof("Case %02d of %02d", index, total)
	})
	p.RegisterMetrics(metrics.DefaultRegistry)
	for _, cse := range cs {
		p.Add(buildChain(cse, e, reg))
	}

	done := make(chan struct{})
	interrupted := watchSignals(p, reg, done)

	rc := p.Run()
	close(done)
	if interrupted() {
		rc = errors.Max(rc, errors.AbortedExitCode)
	}

	printSummary(p)
	if rc != 0 {
		return errors.NewError(fmt.Errorf("run failed"), rc)
	}
	return nil
}

// buildChain turns one case into its fail-fast pipeline: clean steps, then
// the simulation run, then comparisons.
func buildChain(c *cases.Case, e execer.Execer, reg *pool.ProcessRegistry) *pool.Chain {
	chain := pool.NewChain(c.Name, true)
	for i, argv := range c.Clean {
		chain.Add(pool.NewProcessTask(fmt.Sprintf("%s/clean-%d", c.Name, i+1), argv, e, reg))
	}
	for i, argv := range c.Run {
		chain.Add(pool.NewProcessTask(fmt.Sprintf("%s/run-%d", c.Name, i+1), argv, e, reg))
	}
	for i, argv := range c.Compare {
		chain.Add(pool.NewProcessTask(fmt.Sprintf("%s/compare-%d", c.Name, i+1), argv, e, reg))
	}
	chain.SetProgress(func(index, total int) {
		log.Debugf("%s: %02d of %02d", c.Name, index, total)
	})
	return chain
}

func loadManifests(paths []string) ([]*cases.Case, error) {
	var cs []*cases.Case
	for _, path := range paths {
		loaded, err := cases.Load(path)
		if err != nil {
			return nil, err
		}
		cs = append(cs, loaded...)
	}
	return cs, nil
}

// watchSignals terminates the run on SIGINT/SIGTERM: stop the pool, sweep
// every live child process, then wait a bounded grace for pending completion
// notifications before exiting. The returned func reports whether a signal
// arrived.
func watchSignals(p *pool.Pool, reg *pool.ProcessRegistry, done <-chan struct{}) func() bool {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	fired := make(chan struct{})
	go func() {
		select {
		case sig := <-sigCh:
			close(fired)
			log.WithFields(log.Fields{"signal": sig}).Error("Caught signal, terminating in a peaceful manner")
			p.Stop()
			reg.Sweep()
			select {
			case <-done:
			case <-time.After(settleGrace):
				log.Error("Timed out waiting for tasks to settle")
				os.Exit(int(errors.AbortedExitCode))
			}
		case <-done:
		}
	}()
	return func() bool {
		select {
		case <-fired:
			return true
		default:
			return false
		}
	}
}

func printSummary(p *pool.Pool) {
	log.Info("Summary:")
	for _, chain := range p.Chains() {
		rc, ok := chain.Returncode()
		switch {
		case !ok:
			log.Infof("[%6s]:    | Not run: %s", "SKIP", chain.Name())
		case rc == 0:
			log.Infof("[%6s]:%3d | Test passed: %s", "PASSED", rc, chain.Name())
		case rc == errors.CouldNotSpawnExitCode:
			log.Infof("[%6s]:%3d | Could not start: %s", "ERROR", rc, chain.Name())
		default:
			log.Infof("[%6s]:%3d | Test failed: %s", "FAILED", rc, chain.Name())
		}
	}
}
