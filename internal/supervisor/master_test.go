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
	"os"
	"path/filepath"
	"time"

	. "gopkg.in/check.v1"
	"golang.org/x/sys/unix"

	"github.com/venkatasivakesarla/resque-pool/internal/queuegroup"
	"github.com/venkatasivakesarla/resque-pool/internal/registry"
)

var _ = Suite(&masterSuite{})

type masterSuite struct{}

func (s *masterSuite) TestNewAppliesDefaults(c *C) {
	m := New(Options{})
	c.Check(m.opts.DelayStep, Equals, 10*time.Second)
	c.Check(m.opts.DelayMax, Equals, 600*time.Second)
	c.Check(m.opts.Interval, Equals, 5*time.Second)
	c.Check(m.opts.TermTimeout, Equals, 4*time.Second)
	c.Check(m.pool.QuitSignal, Equals, unix.Signal(unix.SIGQUIT))
}

func (s *masterSuite) TestNewTermChildSelectsSigterm(c *C) {
	m := New(Options{TermChild: true})
	c.Check(m.pool.QuitSignal, Equals, unix.Signal(unix.SIGTERM))
}

func (s *masterSuite) TestKnownKind(c *C) {
	m := New(Options{})
	c.Check(m.KnownKind(queuegroup.DefaultKind), Equals, true)
	c.Check(m.KnownKind("nonexistent"), Equals, false)

	m.RegisterKind("mailer", func(stop <-chan struct{}, w *WorkerHandle) error { return nil })
	c.Check(m.KnownKind("mailer"), Equals, true)
}

func (s *masterSuite) TestRegistrationPanicsAfterStart(c *C) {
	m := New(Options{})
	m.started = true
	c.Check(func() { m.RegisterKind("late", nil) }, PanicMatches, ".*RegisterKind called after Start.*")
	c.Check(func() { m.AfterPrefork(func(*WorkerHandle) {}) }, PanicMatches, ".*AfterPrefork called after Start.*")
	c.Check(func() { m.Poll(func(*Master) error { return nil }) }, PanicMatches, ".*Poll called after Start.*")
}

func (s *masterSuite) TestDispatchUsr1DoesNotStop(c *C) {
	m := New(Options{})
	c.Check(m.dispatch(unix.SIGUSR1), Equals, false)
}

func (s *masterSuite) TestDispatchWinchIgnoredWithoutOptIn(c *C) {
	m := New(Options{HandleWinch: false})
	c.Check(m.dispatch(unix.SIGWINCH), Equals, false)
}

func (s *masterSuite) TestDispatchQuitStops(c *C) {
	m := New(Options{})
	c.Check(m.dispatch(unix.SIGQUIT), Equals, true)
}

func (s *masterSuite) TestDispatchIntStops(c *C) {
	m := New(Options{})
	c.Check(m.dispatch(unix.SIGINT), Equals, true)
}

func (s *masterSuite) TestDispatchTermStops(c *C) {
	m := New(Options{})
	c.Check(m.dispatch(unix.SIGTERM), Equals, true)
}

func (s *masterSuite) TestDispatchUnknownSignalIgnored(c *C) {
	m := New(Options{})
	c.Check(m.dispatch(unix.SIGPIPE), Equals, false)
}

func (s *masterSuite) TestHandleHupReloadsAndReconciles(c *C) {
	dir := c.MkDir()
	path := filepath.Join(dir, "resque-pool.yml")
	err := os.WriteFile(path, []byte("normal: 1\n"), 0644)
	c.Assert(err, IsNil)

	// BinaryPath is pinned to a real, harmless binary: buildSpawnSpec
	// always appends a literal "worker" argv, and the default
	// (os.Args[0], the test binary itself) would otherwise be
	// re-exec'd with an argument it doesn't understand.
	m := New(Options{ConfigPath: path, BinaryPath: "/bin/true"})
	m.handleHup()
	c.Check(m.reg.Count("normal"), Equals, 1)
}

func (s *masterSuite) TestWaitingForSignalFastPath(c *C) {
	m := New(Options{})
	quitNow, waiting := m.setWaitingForReaper(true)
	c.Assert(waiting, Equals, true)

	stopped := m.waitingForSignal(unix.SIGINT)
	c.Check(stopped, Equals, true)

	select {
	case <-quitNow:
	default:
		c.Fatal("expected quitNow to be closed")
	}

	// A second INT/TERM while already closed must not double-close; it
	// simply reports that there's nothing left to fast-path.
	c.Check(m.waitingForSignal(unix.SIGTERM), Equals, false)
}

func (s *masterSuite) TestWaitingForSignalIgnoredWhenNotWaiting(c *C) {
	m := New(Options{})
	c.Check(m.waitingForSignal(unix.SIGINT), Equals, false)
}

func (s *masterSuite) TestRegistrySnapshotReflectsLiveWorkers(c *C) {
	m := New(Options{})
	m.reg.Insert(&registry.WorkerRecord{Pid: 7, QueueGroup: "normal", Kind: queuegroup.DefaultKind, SpawnedAt: time.Now()})

	snap := m.RegistrySnapshot()
	c.Assert(snap["normal"], HasLen, 1)
	c.Check(snap["normal"][0].Pid, Equals, 7)
}

func (s *masterSuite) TestWaitingForSignalIgnoresOtherSignals(c *C) {
	m := New(Options{})
	m.setWaitingForReaper(true)
	c.Check(m.waitingForSignal(unix.SIGHUP), Equals, false)
}
