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

package selfpipe_test

import (
	"testing"

	. "gopkg.in/check.v1"

	"github.com/venkatasivakesarla/resque-pool/internal/selfpipe"
)

// Hook up check.v1 into the "go test" runner
func Test(t *testing.T) { TestingT(t) }

var _ = Suite(&selfpipeSuite{})

type selfpipeSuite struct{}

func (s *selfpipeSuite) TestWakeThenWaitReturnsTrue(c *C) {
	p := selfpipe.NewPipe()
	err := p.Init()
	c.Assert(err, IsNil)
	defer p.Close()

	err = p.Wake()
	c.Assert(err, IsNil)

	c.Check(p.Wait(1000), Equals, true)
}

func (s *selfpipeSuite) TestWaitTimesOutWithNoWake(c *C) {
	p := selfpipe.NewPipe()
	err := p.Init()
	c.Assert(err, IsNil)
	defer p.Close()

	c.Check(p.Wait(50), Equals, false)
}

func (s *selfpipeSuite) TestMultipleWakesCoalesceIntoOneReadyWait(c *C) {
	p := selfpipe.NewPipe()
	err := p.Init()
	c.Assert(err, IsNil)
	defer p.Close()

	for i := 0; i < 5; i++ {
		c.Assert(p.Wake(), IsNil)
	}
	c.Check(p.Wait(1000), Equals, true)
	// The pipe should be fully drained now.
	c.Check(p.Wait(50), Equals, false)
}

func (s *selfpipeSuite) TestInitIsReentrant(c *C) {
	p := selfpipe.NewPipe()
	c.Assert(p.Init(), IsNil)
	c.Assert(p.Init(), IsNil) // replaces the prior pipe without leaking fds
	p.Close()
}
