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
	"os/signal"
	"syscall"

	"golang.org/x/sys/unix"
)

// watchedSignals is the full set the master reacts to.
var watchedSignals = []os.Signal{
	syscall.SIGUSR1,
	syscall.SIGUSR2,
	syscall.SIGCONT,
	syscall.SIGHUP,
	syscall.SIGWINCH,
	syscall.SIGQUIT,
	syscall.SIGINT,
	syscall.SIGTERM,
	syscall.SIGCHLD,
}

// installSignalIntake starts the goroutine translating asynchronous OS
// signals into SignalQueue pushes and self-pipe wakes. It is the
// channel-based analogue of an async-signal-safe handler: the actual
// work (queueing, dispatch) happens later, back on the master's own
// single logical thread of control.
func (m *Master) installSignalIntake() {
	ch := make(chan os.Signal, 16)
	signal.Notify(ch, watchedSignals...)

	m.intake.Go(func() error {
		for {
			select {
			case sig := <-ch:
				m.onSignal(sig)
			case <-m.intake.Dying():
				signal.Stop(ch)
				return nil
			}
		}
	})
}

// onSignal is the handler body. Any invocation observed with a pid
// other than the one captured at startup is a no-op — this can only
// happen if a forked child somehow still shared the parent's signal
// channel, which close-on-exec and a fresh os/signal.Notify call in the
// child's own entrypoint both prevent; the check is kept anyway as a
// cheap, explicit invariant rather than relying on those guarantees
// silently holding.
func (m *Master) onSignal(sig os.Signal) {
	if os.Getpid() != m.masterPid {
		return
	}

	unixSig, ok := sig.(syscall.Signal)
	if !ok {
		return
	}

	if unix.Signal(unixSig) == unix.SIGCHLD {
		// Never queued — its only job is to make sure the master wakes
		// up and reaps on its next iteration.
		_ = m.pipe.Wake()
		return
	}

	if m.waitingForSignal(unixSig) {
		return
	}

	m.queue.push(unix.Signal(unixSig))
	_ = m.pipe.Wake()
}

// waitingForSignal implements the "quit-now" fast path: while the
// master is blocked inside a blocking-until-empty reap, an INT or TERM
// must abort that reap immediately instead of waiting for the next loop
// iteration to drain the queue.
func (m *Master) waitingForSignal(sig syscall.Signal) bool {
	if unix.Signal(sig) != unix.SIGINT && unix.Signal(sig) != unix.SIGTERM {
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.waitingForReaper || m.quitNowClosed {
		return false
	}
	close(m.quitNow)
	m.quitNowClosed = true
	return true
}

// setWaitingForReaper toggles the quit-now fast path around a blocking
// reap, arming a fresh cancellation channel each time.
func (m *Master) setWaitingForReaper(v bool) (chan struct{}, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.waitingForReaper = v
	if v {
		m.quitNow = make(chan struct{})
		m.quitNowClosed = false
	}
	return m.quitNow, m.waitingForReaper
}
