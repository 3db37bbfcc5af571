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
	"sort"
	"time"

	"golang.org/x/sys/unix"

	"github.com/venkatasivakesarla/resque-pool/internal/backoff"
	"github.com/venkatasivakesarla/resque-pool/internal/logger"
	"github.com/venkatasivakesarla/resque-pool/internal/metrics"
)

// SpawnBuilder turns a QueueGroup into the argv/env a child process
// needs, or an error if the group names an unknown worker kind. It is
// supplied by internal/supervisor, which owns the kind registry and the
// loaded Configuration; this package only consumes its output.
type SpawnBuilder func(queueGroup string) (SpawnSpec, error)

// Pool composes a Registry with its backoff governors and a
// SpawnBuilder into the delta/reconcile operations that drive live
// worker counts toward a declared target.
type Pool struct {
	Registry  *Registry
	Governors *backoff.Governors
	Build     SpawnBuilder

	// QuitSignal is sent to excess workers during a downward
	// reconciliation. It defaults to SIGQUIT (graceful) and is
	// overridden by TERM_CHILD.
	QuitSignal unix.Signal

	// SpawnThrottle, if positive, is slept after each individual spawn
	// to spread out a burst of forks instead of issuing them back to
	// back.
	SpawnThrottle time.Duration

	// warnedSpawnErr holds the last spawn-build error message logged
	// per group, so an unresolved failure (most commonly an unknown
	// <kind>: prefix) is reported once instead of once per loop
	// iteration until the condition changes or clears.
	warnedSpawnErr map[string]string
}

// NewPool wires a Pool from its collaborators.
func NewPool(reg *Registry, governors *backoff.Governors, build SpawnBuilder) *Pool {
	return &Pool{
		Registry:   reg,
		Governors:  governors,
		Build:      build,
		QuitSignal: unix.SIGQUIT,
	}
}

// Delta returns target - live for group, after folding in the group's
// current backoff state: if the governor says not to spawn right now,
// a positive delta is clamped to zero rather than requesting more
// forks into a throttled group.
func (p *Pool) Delta(group string, target int, now time.Time) int {
	live := p.Registry.Count(group)
	delta := target - live
	if delta <= 0 {
		return delta
	}
	if g, ok := p.Governors.Peek(group); ok && !g.ShouldSpawn(now) {
		return 0
	}
	return delta
}

// Reconcile walks the union of the configured groups and the groups
// currently holding live workers, and for each either spawns up to its
// target (subject to backoff) or signals the oldest excess workers to
// quit. Spawn failures are logged and skipped — a single bad worker
// kind must not abort reconciliation for every other group.
func (p *Pool) Reconcile(targets map[string]int, now time.Time) {
	groups := make(map[string]struct{}, len(targets))
	for g := range targets {
		groups[g] = struct{}{}
	}
	for _, g := range p.Registry.Groups() {
		groups[g] = struct{}{}
	}

	ordered := make([]string, 0, len(groups))
	for g := range groups {
		ordered = append(ordered, g)
	}
	sort.Strings(ordered)

	for _, group := range ordered {
		target := targets[group] // zero if group was dropped from config
		delta := p.Delta(group, target, now)
		switch {
		case delta > 0:
			p.spawnN(group, delta)
		case delta < 0:
			signaled := p.Registry.SignalGroup(group, p.quitSignal(), -delta)
			if len(signaled) > 0 {
				logger.Noticef("reconcile: signaled %d excess worker(s) in %q", len(signaled), group)
			}
		}
	}

	p.SyncMetrics(ordered, now)
}

func (p *Pool) quitSignal() unix.Signal {
	if p.QuitSignal == 0 {
		return unix.SIGQUIT
	}
	return p.QuitSignal
}

func (p *Pool) spawnN(group string, n int) {
	for i := 0; i < n; i++ {
		spec, err := p.Build(group)
		if err != nil {
			p.warnOnce(group, "reconcile: cannot spawn for %q: %v", group, err)
			return
		}
		if _, err := p.Registry.Spawn(spec); err != nil {
			p.warnOnce(group, "reconcile: spawn failed for %q: %v", group, err)
			return
		}
		delete(p.warnedSpawnErr, group)
		metrics.WorkersSpawnedTotal.WithLabelValues(group).Inc()
		if p.SpawnThrottle > 0 {
			time.Sleep(p.SpawnThrottle)
		}
	}
}

// warnOnce logs at most once per distinct error message per group,
// so a persistently misconfigured queue-group (e.g. an unregistered
// <kind>: prefix) doesn't re-log the identical complaint every
// reconcile tick.
func (p *Pool) warnOnce(group, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if p.warnedSpawnErr == nil {
		p.warnedSpawnErr = make(map[string]string)
	}
	if p.warnedSpawnErr[group] == msg {
		return
	}
	p.warnedSpawnErr[group] = msg
	logger.Noticef("%s", msg)
}

// ReapAndScore reaps dead children and applies the outcome of each
// affected QueueGroup's reap pass to its backoff governor.
func (p *Pool) ReapAndScore(mode ReapMode, quitNow <-chan struct{}) error {
	reaped, err := p.Registry.Reap(mode, quitNow)
	now := time.Now()
	for group, spawnedAts := range reaped {
		metrics.WorkersReapedTotal.WithLabelValues(group).Add(float64(len(spawnedAts)))
		oldest := spawnedAts[0]
		for _, t := range spawnedAts[1:] {
			if t.Before(oldest) {
				oldest = t
			}
		}
		p.Governors.ReapOutcome(group, oldest, now)
	}
	return err
}

// SyncMetrics refreshes the live-worker and backoff-delay gauges for
// every QueueGroup currently known (configured or live). Called at the
// end of every Reconcile.
func (p *Pool) SyncMetrics(groups []string, now time.Time) {
	for _, group := range groups {
		metrics.WorkersLive.WithLabelValues(group).Set(float64(p.Registry.Count(group)))
		if g, ok := p.Governors.Peek(group); ok {
			remaining := g.DelayUntil().Sub(now).Seconds()
			if remaining < 0 {
				remaining = 0
			}
			metrics.BackoffDelaySeconds.WithLabelValues(group).Set(remaining)
		} else {
			metrics.BackoffDelaySeconds.WithLabelValues(group).Set(0)
		}
	}
}
