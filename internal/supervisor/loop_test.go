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
	"time"

	. "gopkg.in/check.v1"
	"golang.org/x/sys/unix"
)

var _ = Suite(&loopSuite{})

type loopSuite struct{}

// TestJoinDrainsQueueAndStopsOnShutdownSignal exercises one full
// steady-state cycle without the signal-intake goroutine or OS signal delivery: a
// signal is pushed directly onto the queue, as installSignalIntake would
// have done, and join must drain and dispatch it before returning.
func (s *loopSuite) TestJoinDrainsQueueAndStopsOnShutdownSignal(c *C) {
	m := New(Options{})
	m.pipe.Init()
	defer m.pipe.Close()

	m.queue.push(unix.SIGINT)

	done := make(chan error, 1)
	go func() { done <- m.join() }()

	select {
	case err := <-done:
		c.Check(err, IsNil)
	case <-time.After(3 * time.Second):
		c.Fatal("join did not return after a shutdown signal was queued")
	}
}

// TestJoinRunsPollHooksEveryIteration verifies poll hooks fire before the
// loop decides there's nothing else to do, then shuts down via a queued
// signal so the goroutine doesn't run forever.
func (s *loopSuite) TestJoinRunsPollHooksEveryIteration(c *C) {
	m := New(Options{})
	m.pipe.Init()
	defer m.pipe.Close()

	hookCalls := make(chan struct{}, 4)
	m.pollHooks = append(m.pollHooks, func(*Master) error {
		select {
		case hookCalls <- struct{}{}:
		default:
		}
		return nil
	})

	done := make(chan error, 1)
	go func() { done <- m.join() }()

	select {
	case <-hookCalls:
	case <-time.After(3 * time.Second):
		c.Fatal("poll hook never ran")
	}

	m.queue.push(unix.SIGINT)
	m.pipe.Wake()

	select {
	case err := <-done:
		c.Check(err, IsNil)
	case <-time.After(3 * time.Second):
		c.Fatal("join did not return after a shutdown signal was queued")
	}
}
