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

package jobrunner_test

import (
	"testing"
	"time"

	. "gopkg.in/check.v1"

	"github.com/venkatasivakesarla/resque-pool/internal/jobrunner"
	"github.com/venkatasivakesarla/resque-pool/internal/supervisor"
)

// Hook up check.v1 into the "go test" runner
func Test(t *testing.T) { TestingT(t) }

var _ = Suite(&jobrunnerSuite{})

type jobrunnerSuite struct{}

func (s *jobrunnerSuite) TestRunStopsOnStopChannel(c *C) {
	stop := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		done <- jobrunner.Run(stop, &supervisor.WorkerHandle{
			Interval: time.Millisecond,
			Queues:   []string{"high", "low"},
		})
	}()

	close(stop)

	select {
	case err := <-done:
		c.Check(err, IsNil)
	case <-time.After(2 * time.Second):
		c.Fatal("Run did not return after stop was closed")
	}
}

func (s *jobrunnerSuite) TestRunDefaultsIntervalWhenUnset(c *C) {
	stop := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		done <- jobrunner.Run(stop, &supervisor.WorkerHandle{})
	}()

	time.Sleep(10 * time.Millisecond)
	close(stop)

	select {
	case err := <-done:
		c.Check(err, IsNil)
	case <-time.After(2 * time.Second):
		c.Fatal("Run did not return after stop was closed")
	}
}
