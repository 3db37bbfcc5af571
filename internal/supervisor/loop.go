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
	"time"

	"github.com/venkatasivakesarla/resque-pool/internal/logger"
	"github.com/venkatasivakesarla/resque-pool/internal/proctitle"
	"github.com/venkatasivakesarla/resque-pool/internal/registry"
)

// Start performs the startup sequence — record pid, init the self-pipe,
// install signal handlers, reconcile once — then runs the steady-state
// loop until a shutdown signal is dispatched.
func (m *Master) Start() error {
	m.masterPid = os.Getpid()
	proctitle.Set("(initialized)")

	if err := m.pipe.Init(); err != nil {
		logger.Panicf("supervisor: cannot initialize self-pipe: %v", err)
	}

	m.mu.Lock()
	m.started = true
	m.mu.Unlock()

	m.installSignalIntake()
	proctitle.Set("(starting)")

	targets, err := m.loader.Load(m.opts.Environment)
	if err != nil {
		return fmt.Errorf("supervisor: initial configuration load: %w", err)
	}
	m.pool.Reconcile(targets, time.Now())
	m.setReady()

	proctitle.Set("(started)")
	return m.join()
}

// join is the steady-state loop, one iteration per call to the inner
// body: reap, poll hooks, dispatch one queued signal, wait, reload,
// reconcile.
func (m *Master) join() error {
	for {
		if err := m.pool.ReapAndScore(registry.NonBlocking, nil); err != nil {
			logger.Debugf("supervisor: non-blocking reap: %v", err)
		}

		m.runPollHooks()

		if sig, ok := m.queue.pop(); ok {
			if m.dispatch(sig) {
				proctitle.Set("(shutting down)")
				m.mu.Lock()
				started := m.started
				m.mu.Unlock()
				// The intake goroutine exists only once Start has run;
				// waiting on a tomb that never started would block forever.
				if started {
					m.intake.Kill(nil)
					_ = m.intake.Wait()
				}
				m.pipe.Close()
				return nil
			}
			continue
		}

		proctitle.Set(fmt.Sprintf("managing %v", m.reg.AllPids()))
		m.pipe.Wait(1000)

		m.loader.Reset()
		targets, err := m.loader.Load(m.opts.Environment)
		if err != nil {
			logger.Noticef("supervisor: configuration reload failed, keeping prior targets: %v", err)
			continue
		}
		m.pool.Reconcile(targets, time.Now())
	}
}

func (m *Master) runPollHooks() {
	m.mu.Lock()
	hooks := make([]func(*Master) error, len(m.pollHooks))
	copy(hooks, m.pollHooks)
	m.mu.Unlock()

	for _, hook := range hooks {
		if err := hook(m); err != nil {
			logger.Noticef("supervisor: poll hook error: %v", err)
		}
	}
}
