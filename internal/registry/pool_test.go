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

package registry_test

import (
	"errors"
	"strings"
	"time"

	. "gopkg.in/check.v1"

	"github.com/venkatasivakesarla/resque-pool/internal/backoff"
	"github.com/venkatasivakesarla/resque-pool/internal/logger"
	"github.com/venkatasivakesarla/resque-pool/internal/registry"
)

var _ = Suite(&poolSuite{})

type poolSuite struct{}

func (s *poolSuite) newPool() (*registry.Pool, *registry.Registry) {
	reg := registry.New()
	governors := backoff.NewGovernors(10*time.Second, 600*time.Second)
	build := func(group string) (registry.SpawnSpec, error) {
		return registry.SpawnSpec{
			QueueGroup: group,
			Kind:       "default",
			Argv:       []string{"/bin/sh", "-c", "exit 0"},
		}, nil
	}
	return registry.NewPool(reg, governors, build), reg
}

func (s *poolSuite) TestDeltaPositiveWhenUnderTarget(c *C) {
	pool, _ := s.newPool()
	c.Check(pool.Delta("normal", 3, time.Now()), Equals, 3)
}

func (s *poolSuite) TestDeltaNegativeWhenOverTarget(c *C) {
	pool, reg := s.newPool()
	reg.Insert(&registry.WorkerRecord{Pid: 1, QueueGroup: "normal", SpawnedAt: time.Now()})
	reg.Insert(&registry.WorkerRecord{Pid: 2, QueueGroup: "normal", SpawnedAt: time.Now()})
	c.Check(pool.Delta("normal", 1, time.Now()), Equals, -1)
}

func (s *poolSuite) TestDeltaClampedToZeroWhenThrottled(c *C) {
	pool, _ := s.newPool()
	now := time.Now()
	pool.Governors.Get("normal").DelaySpawns(now)
	c.Check(pool.Delta("normal", 3, now), Equals, 0)
}

func (s *poolSuite) TestReconcileSpawnsUpToTarget(c *C) {
	pool, reg := s.newPool()
	pool.Reconcile(map[string]int{"normal": 2}, time.Now())
	c.Check(reg.Count("normal"), Equals, 2)
}

func (s *poolSuite) TestReconcileSignalsExcessDown(c *C) {
	pool, reg := s.newPool()
	// The pids are far above any live process, so the SIGQUIT that
	// Reconcile sends to the two excess workers reaches nothing real.
	reg.Insert(&registry.WorkerRecord{Pid: 999997, QueueGroup: "normal", SpawnedAt: time.Now()})
	reg.Insert(&registry.WorkerRecord{Pid: 999998, QueueGroup: "normal", SpawnedAt: time.Now()})
	reg.Insert(&registry.WorkerRecord{Pid: 999999, QueueGroup: "normal", SpawnedAt: time.Now()})

	pool.QuitSignal = 0 // falls back to SIGQUIT inside quitSignal()
	pool.Reconcile(map[string]int{"normal": 1}, time.Now())
	// Reconcile only signals; signaled workers stay in the registry
	// until a reap removes them.
	c.Check(reg.Count("normal"), Equals, 3)
}

func (s *poolSuite) TestReconcileWarnsOnceForPersistentSpawnFailure(c *C) {
	reg := registry.New()
	governors := backoff.NewGovernors(10*time.Second, 600*time.Second)
	build := func(group string) (registry.SpawnSpec, error) {
		return registry.SpawnSpec{}, errors.New("unknown worker kind \"mailer\"")
	}
	pool := registry.NewPool(reg, governors, build)

	buf, restore := logger.MockLogger("")
	defer restore()

	pool.Reconcile(map[string]int{"mailer:high": 1}, time.Now())
	pool.Reconcile(map[string]int{"mailer:high": 1}, time.Now())
	pool.Reconcile(map[string]int{"mailer:high": 1}, time.Now())

	occurrences := strings.Count(buf.String(), "unknown worker kind")
	c.Check(occurrences, Equals, 1)
}

func (s *poolSuite) TestReapAndScorePenalizesYoungDeath(c *C) {
	pool, reg := s.newPool()
	reg.Insert(&registry.WorkerRecord{Pid: 1, QueueGroup: "normal", SpawnedAt: time.Now()})
	reg.Remove(1) // simulate it already having exited out from under Reap

	// ReapAndScore itself only scores groups it actually reaped via
	// wait4, so directly exercise the governor folding via a synthetic
	// reap outcome instead of relying on a real dead child here.
	pool.Governors.ReapOutcome("normal", time.Now(), time.Now())
	g, ok := pool.Governors.Peek("normal")
	c.Assert(ok, Equals, true)
	c.Check(g.FailedCount(), Equals, 1)
}
