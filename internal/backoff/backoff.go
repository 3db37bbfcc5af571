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

// Package backoff implements a per-QueueGroup exponential-backoff gate:
// throttle re-spawn when a queue-group's children die too quickly, to
// avoid a fork-storm.
//
// The exponential base is intentionally the same knob as the "too young
// to count as progress" threshold (DelayStep). That coupling may look
// coincidental but is preserved deliberately: splitting it into two
// independent knobs would change the observed backoff schedule for
// every existing deployment's tuning.
package backoff

import (
	"math"
	"sync"
	"time"
)

// Default tunables, overridden by DELAY_SPAWN_LIMIT / DELAY_SPAWN_MAX.
const (
	DefaultDelayStep = 10 * time.Second
	DefaultDelayMax  = 600 * time.Second
)

// Governor tracks backoff state for a single QueueGroup.
//
// State is the pair (failedCount, delayUntil), starting at (0, zero
// Time).
type Governor struct {
	DelayStep time.Duration
	DelayMax  time.Duration

	mu          sync.Mutex
	failedCount int
	delayUntil  time.Time // zero value means "not currently throttled"
}

// NewGovernor creates a Governor with no recorded failures.
func NewGovernor(delayStep, delayMax time.Duration) *Governor {
	if delayStep <= 0 {
		delayStep = DefaultDelayStep
	}
	if delayMax <= 0 {
		delayMax = DefaultDelayMax
	}
	return &Governor{DelayStep: delayStep, DelayMax: delayMax}
}

// ShouldSpawn reports whether a new worker may be spawned now.
func (g *Governor) ShouldSpawn(now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.delayUntil.IsZero() || !now.Before(g.delayUntil)
}

// DelaySpawns records that at least one child died too young and
// advances the backoff window. The delay is delay_step^failed_count
// seconds, clamped to delay_max — 10, 100, 1000, ... for the default
// 10s step, which the clamp brings back down to 600s almost
// immediately.
func (g *Governor) DelaySpawns(now time.Time) time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.failedCount++
	seconds := math.Pow(g.DelayStep.Seconds(), float64(g.failedCount))
	delay := time.Duration(seconds * float64(time.Second))
	if delay > g.DelayMax || delay <= 0 {
		// delay <= 0 guards against float overflow for a very high
		// failedCount turning into a negative or infinite duration.
		delay = g.DelayMax
	}
	g.delayUntil = now.Add(delay)
	return delay
}

// Reset clears backoff state, as if the QueueGroup had never failed.
func (g *Governor) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failedCount = 0
	g.delayUntil = time.Time{}
}

// FailedCount returns the current consecutive-failure counter, mostly
// useful for tests and the admin status endpoint.
func (g *Governor) FailedCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.failedCount
}

// DelayUntil returns the current delay deadline, or the zero Time if
// spawning isn't currently throttled.
func (g *Governor) DelayUntil() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.delayUntil
}

// Governors is the master's per-QueueGroup governor table. Entries are
// created lazily on first reference and removed once a queue-group's
// reap pass is judged healthy.
type Governors struct {
	mu    sync.Mutex
	byKey map[string]*Governor

	delayStep time.Duration
	delayMax  time.Duration
}

// NewGovernors creates an empty governor table using delayStep/delayMax
// as defaults for newly created Governors.
func NewGovernors(delayStep, delayMax time.Duration) *Governors {
	return &Governors{
		byKey:     make(map[string]*Governor),
		delayStep: delayStep,
		delayMax:  delayMax,
	}
}

// Get returns the Governor for key, creating it if absent.
func (gs *Governors) Get(key string) *Governor {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	g, ok := gs.byKey[key]
	if !ok {
		g = NewGovernor(gs.delayStep, gs.delayMax)
		gs.byKey[key] = g
	}
	return g
}

// Peek returns the Governor for key without creating one, and whether it
// existed.
func (gs *Governors) Peek(key string) (*Governor, bool) {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	g, ok := gs.byKey[key]
	return g, ok
}

// Discard removes the Governor for key entirely (equivalent to Reset
// plus forgetting it ever existed).
func (gs *Governors) Discard(key string) {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	delete(gs.byKey, key)
}

// ReapOutcome folds the outcome of one QueueGroup's reap pass into its
// governor: oldestSpawnedAt is the earliest spawned_at among the records
// reaped for that group. If the group made it past DelayStep before
// dying, its governor is discarded (healthy); otherwise it's penalized
// with DelaySpawns.
func (gs *Governors) ReapOutcome(key string, oldestSpawnedAt, now time.Time) {
	g := gs.Get(key)
	if now.Sub(oldestSpawnedAt) < g.DelayStep {
		g.DelaySpawns(now)
		return
	}
	gs.Discard(key)
}
