package main

import (
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/scitest/runtest/cli"
	"github.com/scitest/runtest/common/log/hooks"
)

// CLI binary orchestrating simulation test cases.
//	Supported commands: (see "-h" for all options)
//		local [manifest ...]
//		queue [manifest ...]
//	Global flags:
//		--log-level [<error|info|debug> level and above should be logged]

func main() {
	log.AddHook(hooks.NewContextHook())
	os.Exit(cli.Execute())
}
