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

	"golang.org/x/sys/unix"

	"github.com/venkatasivakesarla/resque-pool/internal/logger"
	"github.com/venkatasivakesarla/resque-pool/internal/registry"
)

// dispatch handles one deferred signal token. It returns true if the
// master loop should stop after this call (every shutdown variant
// returns true).
func (m *Master) dispatch(sig unix.Signal) bool {
	switch sig {
	case unix.SIGUSR1, unix.SIGUSR2, unix.SIGCONT:
		m.reg.SignalAll(sig)
		return false

	case unix.SIGHUP:
		m.handleHup()
		return false

	case unix.SIGWINCH:
		if m.opts.HandleWinch {
			m.pool.Reconcile(map[string]int{}, time.Now())
		}
		return false

	case unix.SIGQUIT:
		if m.opts.TermChild {
			m.shutdownImmediate()
		} else {
			m.shutdownGracefulAndWait()
		}
		return true

	case unix.SIGINT:
		m.shutdownGracefulNoWait()
		return true

	case unix.SIGTERM:
		switch m.opts.TermBehavior {
		case TermGracefulAndWait:
			m.shutdownGracefulAndWait()
		case TermGracefulNoWait:
			m.shutdownGracefulNoWait()
		case TermAndWait:
			m.shutdownTermAndWait()
		default:
			m.shutdownImmediate()
		}
		return true

	default:
		logger.Debugf("supervisor: ignoring unexpected signal %v", sig)
		return false
	}
}

func (m *Master) handleHup() {
	m.loader.Reset()
	targets, err := m.loader.Load(m.opts.Environment)
	if err != nil {
		logger.Noticef("supervisor: reload on HUP failed, keeping workers as-is: %v", err)
		return
	}
	m.reg.SignalAll(m.quitSignal())
	m.pool.Reconcile(targets, time.Now())
}

func (m *Master) quitSignal() unix.Signal {
	if m.opts.TermChild {
		return unix.SIGTERM
	}
	return unix.SIGQUIT
}

func (m *Master) blockingReap() {
	quitNow, _ := m.setWaitingForReaper(true)
	defer m.setWaitingForReaper(false)
	if err := m.pool.ReapAndScore(registry.BlockingUntilEmpty, quitNow); err != nil {
		logger.Debugf("supervisor: blocking reap interrupted: %v", err)
	}
}

func (m *Master) shutdownGracefulAndWait() {
	m.reg.SignalAll(unix.SIGUSR2)
	m.reg.SignalAll(m.quitSignal())
	m.blockingReap()
}

func (m *Master) shutdownGracefulNoWait() {
	m.reg.SignalAll(unix.SIGUSR2)
	m.reg.SignalAll(m.quitSignal())
}

func (m *Master) shutdownImmediate() {
	m.reg.SignalAll(unix.SIGUSR2)
	sig := unix.SIGTERM
	if m.opts.TermChild {
		sig = unix.SIGQUIT
	}
	m.reg.SignalAll(sig)
}

func (m *Master) shutdownTermAndWait() {
	m.reg.SignalAll(unix.SIGUSR2)
	m.reg.SignalAll(unix.SIGTERM)
	m.blockingReap()
}
