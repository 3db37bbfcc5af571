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

// Package selfpipe implements the classic self-pipe trick: a pipe the
// master writes to from a signal handler (or any other async producer)
// so a blocking wait elsewhere can be interrupted.
//
// Go's os/signal already delivers signals onto a channel without the
// self-pipe trick being strictly necessary. This package keeps a real,
// non-blocking, close-on-exec pipe anyway, built directly on
// golang.org/x/sys/unix: it gives the master a single wakeup source
// usable from contexts other than the Go signal channel. In this module
// the signal-intake goroutine in internal/supervisor is what wakes it.
package selfpipe

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Pipe is a one-byte self-pipe waker. It is owned exclusively by the
// master; forked/exec'd children never touch it, and close-on-exec
// guards against them inheriting it by accident.
type Pipe struct {
	readFD  int
	writeFD int
	live    bool
}

// NewPipe returns an uninitialized Pipe; call Init before use.
func NewPipe() *Pipe {
	return &Pipe{}
}

// Init creates a new pipe pair, replacing (and best-effort closing) any
// prior one. Both ends are non-blocking and close-on-exec.
func (p *Pipe) Init() error {
	p.closeBestEffort()

	var pair [2]int
	if err := unix.Pipe2(pair[:], unix.O_NONBLOCK|unix.O_CLOEXEC); err != nil {
		return fmt.Errorf("selfpipe: cannot create pipe: %w", err)
	}
	p.readFD = pair[0]
	p.writeFD = pair[1]
	p.live = true
	return nil
}

func (p *Pipe) closeBestEffort() {
	if !p.live {
		return
	}
	_ = unix.Close(p.readFD)
	_ = unix.Close(p.writeFD)
	p.live = false
}

// Close releases both ends of the pipe.
func (p *Pipe) Close() {
	p.closeBestEffort()
}

// Wake writes a single byte to the write end, non-blocking. EAGAIN
// ("would block", i.e. the pipe is already full and the master is about
// to wake anyway) is swallowed outright; EINTR means the byte was never
// written, so the write is retried once. Any other error is returned so
// callers can log it, but a failed Wake is never fatal — the worst case
// is the master discovers the same condition on its next 1-second poll
// anyway.
func (p *Pipe) Wake() error {
	buf := [1]byte{0}
	for attempt := 0; attempt < 2; attempt++ {
		_, err := unix.Write(p.writeFD, buf[:])
		switch err {
		case nil, unix.EAGAIN:
			return nil
		case unix.EINTR:
			continue
		default:
			return err
		}
	}
	return nil
}

// Wait blocks until the pipe becomes readable or timeout elapses,
// whichever comes first, then drains every byte currently buffered
// without blocking. It returns true if the pipe was (or became)
// readable.
func (p *Pipe) Wait(timeout timeoutMillis) bool {
	fds := []unix.PollFd{{Fd: int32(p.readFD), Events: unix.POLLIN}}
	n, err := unix.Poll(fds, int(timeout))
	if err != nil || n == 0 {
		return false
	}
	p.drain()
	return true
}

// timeoutMillis documents that Wait's argument is milliseconds, without
// forcing every caller to import time just to pass a literal.
type timeoutMillis = int

func (p *Pipe) drain() {
	var buf [64]byte
	for {
		n, err := unix.Read(p.readFD, buf[:])
		if n <= 0 || err != nil {
			return
		}
	}
}
