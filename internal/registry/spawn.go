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

package registry

import (
	"fmt"
	"os/exec"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// SpawnSpec is everything Registry needs to fork-and-exec one worker.
// Kind resolution (is this a known worker kind?) and argv/env
// construction from a loaded Configuration happen one layer up, in
// internal/supervisor — this package only knows how to start a process
// and bookkeep it.
type SpawnSpec struct {
	QueueGroup string
	Kind       string
	Argv       []string // Argv[0] is the executable
	Env        []string // full environment for the child, nil inherits ours
	SinglePgrp bool      // RESQUE_SINGLE_PGRP: don't give the child its own pgrp
}

// Spawn starts a worker process per spec and inserts its WorkerRecord.
func (r *Registry) Spawn(spec SpawnSpec) (*WorkerRecord, error) {
	if len(spec.Argv) == 0 {
		return nil, fmt.Errorf("registry: spawn %s: empty argv", spec.QueueGroup)
	}

	cmd := exec.Command(spec.Argv[0], spec.Argv[1:]...)
	cmd.Env = spec.Env
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: !spec.SinglePgrp,
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("registry: spawn %s: %w", spec.QueueGroup, err)
	}

	rec := &WorkerRecord{
		Pid:        cmd.Process.Pid,
		QueueGroup: spec.QueueGroup,
		Kind:       spec.Kind,
		SpawnedAt:  time.Now(),
	}
	r.Insert(rec)

	// Reap owns the wait4 call for every child, not cmd.Wait — detach
	// the os/exec handle now so nothing but Reap ever waits on this pid.
	_ = cmd.Process.Release()

	return rec, nil
}

// ReapMode selects how Reap waits for dead children.
type ReapMode int

const (
	// NonBlocking reaps whatever has already exited and returns
	// immediately.
	NonBlocking ReapMode = iota
	// BlockingUntilEmpty polls until the registry has no live workers
	// left, or quitNow fires.
	BlockingUntilEmpty
)

// ErrQuitNow is returned by Reap when a BlockingUntilEmpty wait is
// interrupted by its cancellation channel.
var ErrQuitNow = fmt.Errorf("registry: reap interrupted by quit-now signal")

// Reap collects exited children with a non-blocking wait4 loop and
// removes them from the registry, grouped by QueueGroup so callers (the
// backoff governor) can judge each group's health independently.
//
// In BlockingUntilEmpty mode, Reap re-polls on a short interval until
// either every live worker has been reaped or quitNow is closed — a
// genuinely blocking wait4(-1, ...) can't be interrupted cleanly from
// another goroutine, so a poll loop stands in for it the way a
// non-reentrant signal handler would in a language with real signal
// delivery into a blocking syscall.
func (r *Registry) Reap(mode ReapMode, quitNow <-chan struct{}) (map[string][]time.Time, error) {
	out := make(map[string][]time.Time)

	for {
		for {
			var status unix.WaitStatus
			pid, err := unix.Wait4(-1, &status, unix.WNOHANG, nil)
			if err != nil {
				if err == unix.ECHILD {
					break
				}
				if err == unix.EINTR {
					continue
				}
				return out, fmt.Errorf("registry: wait4: %w", err)
			}
			if pid <= 0 {
				break
			}
			rec, ok := r.Remove(pid)
			if !ok {
				// Not one of ours (could be a grandchild reparented to
				// us); nothing to record.
				continue
			}
			out[rec.QueueGroup] = append(out[rec.QueueGroup], rec.SpawnedAt)
		}

		if mode == NonBlocking {
			return out, nil
		}
		if r.Empty() {
			return out, nil
		}

		select {
		case <-quitNow:
			return out, ErrQuitNow
		case <-time.After(50 * time.Millisecond):
		}
	}
}
