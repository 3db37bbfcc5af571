// Copyright (c) 2024 Canonical Ltd
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License version 3 as
// published by the Free Software Foundation.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/canonical/go-flags"

	"github.com/venkatasivakesarla/resque-pool/internal/supervisor"
)

var shortWorkerHelp = "Run a single worker (internal, invoked by the pool master)"
var longWorkerHelp = `
The worker command is never run directly by an operator: the pool master
re-execs this same binary with "worker" to start each child process,
reading its queue-group and configuration from the environment.
`

type cmdWorker struct{}

func init() {
	addHiddenCommand("worker", shortWorkerHelp, longWorkerHelp, func() flags.Commander { return &cmdWorker{} })
}

func (cmd *cmdWorker) Execute(args []string) error {
	// A freshly exec'd process already has default signal dispositions;
	// this worker only needs to turn SIGQUIT/SIGTERM/SIGINT into its own
	// stop channel, and otherwise leaves every other signal alone.
	sigCh := make(chan os.Signal, 4)
	signal.Notify(sigCh, syscall.SIGQUIT, syscall.SIGTERM, syscall.SIGINT)

	stop := make(chan struct{})
	go func() {
		<-sigCh
		close(stop)
	}()

	// The master writes these two as time.Duration strings ("4s"); an
	// unparsable or missing value leaves zero, which New replaces with
	// its defaults.
	termTimeout, _ := time.ParseDuration(os.Getenv("RESQUE_POOL_TERM_TIMEOUT"))
	interval, _ := time.ParseDuration(os.Getenv("RESQUE_POOL_INTERVAL"))

	m := supervisor.New(supervisor.Options{
		TermTimeout:    termTimeout,
		Interval:       interval,
		TermChild:      os.Getenv("RESQUE_POOL_TERM_CHILD") == "true",
		RunAtExitHooks: os.Getenv("RESQUE_POOL_RUN_AT_EXIT_HOOKS") == "true",
		Logging:        isTruthy(os.Getenv("LOGGING")),
		Verbose:        isTruthy(os.Getenv("VERBOSE")),
		VVerbose:       isTruthy(os.Getenv("VVERBOSE")),
	})
	registerKinds(m)

	return m.RunWorker(stop)
}
