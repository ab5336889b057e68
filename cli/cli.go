// Package cli implements the runtest command tree: a local mode driving the
// bounded task pool and a queue mode submitting to a remote batch system.
package cli

import (
	uuid "github.com/nu7hatch/gouuid"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/scitest/runtest/common/errors"
)

type rootCmd struct {
	logLevel string
	runID    string
}

func (c *rootCmd) registerFlags() *cobra.Command {
	r := &cobra.Command{
		Use:           "runtest",
		Short:         "run simulation test cases locally or via a batch queue",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	r.PersistentFlags().StringVar(&c.logLevel, "log-level", "info", "log level: debug, info, warn, error")
	r.PersistentPreRunE = c.setup
	return r
}

func (c *rootCmd) setup(cmd *cobra.Command, args []string) error {
	level, err := log.ParseLevel(c.logLevel)
	if err != nil {
		return err
	}
	log.SetLevel(level)

	if id, err := uuid.NewV4(); err == nil {
		c.runID = id.String()
	}
	log.WithFields(log.Fields{"runID": c.runID}).Info("Starting runtest")
	return nil
}

// Execute runs the command tree and returns the process exit code: the
// aggregate returncode of the run, 0 only if every unit ran and succeeded.
func Execute() int {
	root := &rootCmd{}
	r := root.registerFlags()

	local := &localCmd{}
	r.AddCommand(local.registerFlags())
	queue := &queueCmd{}
	r.AddCommand(queue.registerFlags())

	if err := r.Execute(); err != nil {
		log.Error(err)
		return int(errors.CodeFromError(err))
	}
	return 0
}
