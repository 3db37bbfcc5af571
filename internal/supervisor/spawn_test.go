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
	"strings"
	"time"

	. "gopkg.in/check.v1"

	"github.com/venkatasivakesarla/resque-pool/internal/queuegroup"
)

var _ = Suite(&spawnSuite{})

type spawnSuite struct{}

func (s *spawnSuite) TestBuildSpawnSpecUnknownKind(c *C) {
	m := New(Options{})
	_, err := m.buildSpawnSpec("mailer:high,low")
	c.Check(err, ErrorMatches, `unknown worker kind "mailer".*`)
}

func (s *spawnSuite) TestBuildSpawnSpecKnownKind(c *C) {
	m := New(Options{BinaryPath: "/bin/poolmaster", TermTimeout: 3 * time.Second})
	m.masterPid = 4242

	spec, err := m.buildSpawnSpec("high,low")
	c.Assert(err, IsNil)
	c.Check(spec.Kind, Equals, queuegroup.DefaultKind)
	c.Check(spec.QueueGroup, Equals, "high,low")
	c.Check(spec.Argv, DeepEquals, []string{"/bin/poolmaster", "worker"})

	hasVar := func(key, val string) bool {
		for _, kv := range spec.Env {
			if kv == key+"="+val {
				return true
			}
		}
		return false
	}
	c.Check(hasVar("RESQUE_POOL_QUEUE_GROUP", "high,low"), Equals, true)
	c.Check(hasVar("RESQUE_POOL_MASTER_PID", "4242"), Equals, true)
	c.Check(hasVar("RESQUE_POOL_TERM_TIMEOUT", "3s"), Equals, true)
}

func (s *spawnSuite) TestRunWorkerInvokesRegisteredKind(c *C) {
	m := New(Options{TermTimeout: time.Second})

	called := make(chan *WorkerHandle, 1)
	m.RegisterKind(queuegroup.DefaultKind, func(stop <-chan struct{}, w *WorkerHandle) error {
		called <- w
		return nil
	})

	var hookRan bool
	m.AfterPrefork(func(w *WorkerHandle) { hookRan = true })

	os.Setenv("RESQUE_POOL_QUEUE_GROUP", "high,low")
	defer os.Unsetenv("RESQUE_POOL_QUEUE_GROUP")

	err := m.RunWorker(make(chan struct{}))
	c.Assert(err, IsNil)
	c.Check(hookRan, Equals, true)

	handle := <-called
	c.Check(handle.Kind, Equals, queuegroup.DefaultKind)
	c.Check(handle.Queues, DeepEquals, []string{"high", "low"})
}

func (s *spawnSuite) TestRunWorkerUnknownKind(c *C) {
	m := New(Options{})
	os.Setenv("RESQUE_POOL_QUEUE_GROUP", "mailer:high")
	defer os.Unsetenv("RESQUE_POOL_QUEUE_GROUP")

	err := m.RunWorker(make(chan struct{}))
	c.Assert(err, NotNil)
	c.Check(strings.Contains(err.Error(), "mailer"), Equals, true)
}
