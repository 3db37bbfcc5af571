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
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/canonical/go-flags"

	"github.com/venkatasivakesarla/resque-pool/internal/adminapi"
	"github.com/venkatasivakesarla/resque-pool/internal/config"
	"github.com/venkatasivakesarla/resque-pool/internal/logger"
	"github.com/venkatasivakesarla/resque-pool/internal/supervisor"
)

var shortRunHelp = "Run the pool master"
var longRunHelp = `
The run command starts the pool master: it loads the configuration file,
spawns workers to match the declared counts, and supervises them until a
shutdown signal arrives.
`

type cmdRun struct {
	ConfigPath string `long:"config" value-name:"<path>" description:"Path to the queue-group configuration file"`
	HTTPAddr   string `long:"http" value-name:"<addr>" description:"Address for the read-only admin API (disabled if empty)"`
}

func init() {
	addCommand("run", shortRunHelp, longRunHelp, func() flags.Commander { return &cmdRun{ConfigPath: "resque-pool.yml"} })
}

func (cmd *cmdRun) Execute(args []string) error {
	opts := supervisor.Options{
		BinaryPath:  os.Args[0],
		ConfigPath:  cmd.ConfigPath,
		Environment: config.EnvironmentName(),

		DelayStep: envDuration("DELAY_SPAWN_LIMIT", 10*time.Second),
		DelayMax:  envDuration("DELAY_SPAWN_MAX", 600*time.Second),

		TermChild:      os.Getenv("TERM_CHILD") != "",
		SinglePgrp:     isTruthy(os.Getenv("RESQUE_SINGLE_PGRP")),
		TermTimeout:    envDuration("RESQUE_TERM_TIMEOUT", 4*time.Second),
		Interval:       envDuration("INTERVAL", 5*time.Second),
		RunAtExitHooks: isTruthy(os.Getenv("RUN_AT_EXIT_HOOKS")),
		Logging:        isTruthy(os.Getenv("LOGGING")),
		Verbose:        isTruthy(os.Getenv("VERBOSE")),
		VVerbose:       isTruthy(os.Getenv("VVERBOSE")),
		HandleWinch:    isTruthy(os.Getenv("RESQUE_POOL_HANDLE_WINCH")),
		TermBehavior:   termBehaviorFromEnv(),
		SpawnThrottle:  envDuration("SPAWN_THROTTLE", 0),
	}

	m := supervisor.New(opts)
	registerKinds(m)

	if cmd.HTTPAddr != "" {
		go func() {
			router := adminapi.NewRouter(m)
			if err := http.ListenAndServe(cmd.HTTPAddr, router); err != nil {
				logger.Noticef("admin API server stopped: %v", err)
			}
		}()
	}

	return m.Start()
}

func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	seconds, err := strconv.ParseFloat(v, 64)
	if err != nil {
		logger.Noticef("ignoring invalid %s=%q: %v", key, v, err)
		return def
	}
	return time.Duration(seconds * float64(time.Second))
}

// isTruthy matches the core's recognized truthy strings, case-insensitive.
func isTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "yes", "y", "true", "t", "1", "okay", "sure", "please":
		return true
	default:
		return false
	}
}

func termBehaviorFromEnv() supervisor.TermBehavior {
	switch strings.ToLower(os.Getenv("RESQUE_POOL_TERM_BEHAVIOR")) {
	case "graceful_worker_shutdown_and_wait":
		return supervisor.TermGracefulAndWait
	case "graceful_worker_shutdown":
		return supervisor.TermGracefulNoWait
	case "term_and_wait":
		return supervisor.TermAndWait
	default:
		return supervisor.TermImmediate
	}
}
