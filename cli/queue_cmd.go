package cli

import (
	"fmt"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/scitest/runtest/batch"
	_ "github.com/scitest/runtest/batch/pbs"
	_ "github.com/scitest/runtest/batch/slurm"
	"github.com/scitest/runtest/common/errors"
	"github.com/scitest/runtest/config"
	osexecer "github.com/scitest/runtest/execer/os"
)

type queueCmd struct {
	host      string
	adapter   string
	hostsFile string
	queue     string
	ppn       int
	scriptDir string
	interval  time.Duration
}

func (c *queueCmd) registerFlags() *cobra.Command {
	r := &cobra.Command{
		Use:   "queue <manifest>...",
		Short: "submit test cases to a batch queue and wait for them",
		Args:  cobra.MinimumNArgs(1),
		RunE:  c.run,
	}
	r.Flags().StringVar(&c.host, "host", "", "hostname to resolve the batch adapter for (default: this host)")
	r.Flags().StringVar(&c.adapter, "adapter", "", "batch adapter name, bypasses the hosts table")
	r.Flags().StringVar(&c.hostsFile, "hosts-file", "hosts.yaml", "hosts table mapping hostname to adapter")
	r.Flags().StringVar(&c.queue, "queue", "", "queue/partition to submit into")
	r.Flags().IntVar(&c.ppn, "ppn", 1, "processes per node")
	r.Flags().StringVar(&c.scriptDir, "script-dir", ".", "where job scripts and exit files are written")
	r.Flags().DurationVar(&c.interval, "poll", batch.DefaultPollInterval, "sleep between status rounds")
	return r
}

func (c *queueCmd) run(cmd *cobra.Command, args []string) error {
	adapter, err := c.resolveAdapter()
	if err != nil {
		return err
	}
	log.WithFields(log.Fields{"adapter": adapter.Name()}).Info("Running in queue mode")

	cs, err := loadManifests(args)
	if err != nil {
		return err
	}

	e := osexecer.NewExecer()
	sub := batch.NewSubmitter(adapter, e, c.scriptDir)
	sub.Queue = c.queue
	sub.PPN = c.ppn

	board := batch.NewExecBoard(adapter, e, batch.ExitFileFinisher(func(j *batch.Job) string {
		return sub.ExitFile(j.Case)
	}))
	board.SetInterval(c.interval)

	for i, cse := range cs {
		log.Infof("Starting job %02d of %02d", i+1, len(cs))
		job, err := sub.Submit(cse)
		if err != nil {
			return err
		}
		board.Add(job)
	}
	log.WithFields(log.Fields{"jobs": len(cs)}).Info("Jobs inserted into queue")

	rc := board.Watch()
	if rc != 0 {
		return errors.NewError(fmt.Errorf("queue run failed"), rc)
	}
	return nil
}

// resolveAdapter picks the batch adapter once at startup: an explicit
// --adapter wins, otherwise the hosts table is consulted for --host or the
// local hostname.
func (c *queueCmd) resolveAdapter() (batch.Adapter, error) {
	name := c.adapter
	if name == "" {
		host := c.host
		if host == "" {
			h, err := os.Hostname()
			if err != nil {
				return nil, err
			}
			host = h
		}
		hosts, err := config.LoadHosts(c.hostsFile)
		if err != nil {
			return nil, err
		}
		name, err = hosts.Resolve(host)
		if err != nil {
			return nil, err
		}
	}
	return batch.Lookup(name)
}
