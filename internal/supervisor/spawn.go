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

package supervisor

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/venkatasivakesarla/resque-pool/internal/queuegroup"
	"github.com/venkatasivakesarla/resque-pool/internal/registry"
)

// buildSpawnSpec is the registry.SpawnBuilder this master hands to its
// Pool: it resolves a QueueGroup's kind, validates it against the
// registered set, and assembles the re-exec argv/env a worker child
// needs to reconstruct its WorkerHandle after crossing the exec
// boundary.
func (m *Master) buildSpawnSpec(group string) (registry.SpawnSpec, error) {
	kind, _ := queuegroup.Split(group)
	if !m.KnownKind(kind) {
		return registry.SpawnSpec{}, fmt.Errorf("unknown worker kind %q for queue-group %q", kind, group)
	}

	env := append(os.Environ(),
		"RESQUE_POOL_WORKER=1",
		"RESQUE_POOL_QUEUE_GROUP="+group,
		"RESQUE_POOL_MASTER_PID="+strconv.Itoa(m.masterPid),
		"RESQUE_POOL_TERM_TIMEOUT="+m.opts.TermTimeout.String(),
		"RESQUE_POOL_INTERVAL="+m.opts.Interval.String(),
		"RESQUE_POOL_TERM_CHILD="+strconv.FormatBool(m.opts.TermChild),
		"RESQUE_POOL_RUN_AT_EXIT_HOOKS="+strconv.FormatBool(m.opts.RunAtExitHooks),
	)

	return registry.SpawnSpec{
		QueueGroup: group,
		Kind:       kind,
		Argv:       []string{m.opts.BinaryPath, "worker"},
		Env:        env,
		SinglePgrp: m.opts.SinglePgrp,
	}, nil
}

// RunWorker is the child-side counterpart to buildSpawnSpec: invoked
// from the hidden "worker" CLI subcommand after it has re-registered
// the same kinds and hooks as the master (since exec replaced this
// process's memory, nothing from the parent survives but argv and
// envp). It reconstructs the WorkerHandle from the environment, runs
// AfterPrefork hooks, then the kind's work routine.
func (m *Master) RunWorker(stop <-chan struct{}) error {
	group := os.Getenv("RESQUE_POOL_QUEUE_GROUP")
	kind, queues := queuegroup.Split(group)

	m.mu.Lock()
	fn, ok := m.kinds[kind]
	hooks := make([]func(*WorkerHandle), len(m.afterFork))
	copy(hooks, m.afterFork)
	m.mu.Unlock()
	if !ok || fn == nil {
		return fmt.Errorf("supervisor: worker process has no work routine for kind %q", kind)
	}

	handle := &WorkerHandle{
		QueueGroup:      group,
		Kind:            kind,
		Queues:          queuegroup.Queues(queues),
		SpawnedAt:       time.Now(),
		WorkerParentPid: os.Getppid(),
		TermTimeout:     m.opts.TermTimeout,
		TermChild:       m.opts.TermChild,
		Interval:        m.opts.Interval,
		RunAtExitHooks:  m.opts.RunAtExitHooks,
		Logging:         m.opts.Logging,
		Verbose:         m.opts.Verbose,
		VVerbose:        m.opts.VVerbose,
	}
	if pid, err := strconv.Atoi(os.Getenv("RESQUE_POOL_MASTER_PID")); err == nil {
		handle.MasterPid = pid
	}

	for _, hook := range hooks {
		hook(handle)
	}

	return fn(stop, handle)
}
