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

// Package logger is a small ambient logging facility shared by every
// package in this module. It deliberately stays tiny: a Noticef for
// messages an operator should see, a Debugf gated on an environment
// variable, and a process-global default instance that can be swapped
// out in tests.
package logger

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

const timestampFormat = "2006-01-02T15:04:05.000Z07:00"

// A Logger is a fairly minimal logging tool.
type Logger interface {
	// Noticef is for messages the operator should see.
	Noticef(format string, v ...interface{})
	// Debugf is for messages useful when diagnosing a problem.
	Debugf(format string, v ...interface{})
}

type nullLogger struct{}

func (nullLogger) Noticef(string, ...interface{}) {}
func (nullLogger) Debugf(string, ...interface{})  {}

// NullLogger discards everything. Useful as a test default.
var NullLogger = nullLogger{}

var (
	mu  sync.Mutex
	log Logger = NullLogger
)

// Panicf notifies then panics. Reserved for fatal startup errors — e.g.
// inability to initialize the self-pipe or install signal handlers —
// nothing in the steady-state loop should ever call this.
func Panicf(format string, v ...interface{}) {
	msg := fmt.Sprintf(format, v...)
	mu.Lock()
	log.Noticef("PANIC %s", msg)
	mu.Unlock()
	panic(msg)
}

// Noticef logs a message the operator should see.
func Noticef(format string, v ...interface{}) {
	mu.Lock()
	defer mu.Unlock()
	log.Noticef(format, v...)
}

// Debugf logs a message gated on RESQUE_POOL_DEBUG.
func Debugf(format string, v ...interface{}) {
	mu.Lock()
	defer mu.Unlock()
	log.Debugf(format, v...)
}

// SetLogger replaces the global logger and returns the previous one.
// Must be called before any other goroutine is logging.
func SetLogger(l Logger) (old Logger) {
	mu.Lock()
	defer mu.Unlock()
	old = log
	log = l
	return old
}

// MockLogger installs a buffer-backed logger and returns it along with a
// restore function, for use in tests that want to assert on log output.
func MockLogger(prefix string) (buf *bytes.Buffer, restore func()) {
	buf = &bytes.Buffer{}
	old := SetLogger(New(buf, prefix))
	return buf, func() { SetLogger(old) }
}

type defaultLogger struct {
	w      io.Writer
	prefix string

	mu  sync.Mutex
	buf []byte
}

// Debugf only prints if RESQUE_POOL_DEBUG is set to a non-empty value.
func (l *defaultLogger) Debugf(format string, v ...interface{}) {
	if os.Getenv("RESQUE_POOL_DEBUG") != "" {
		l.Noticef("DEBUG "+format, v...)
	}
}

// Noticef writes a timestamped, prefixed line to the underlying writer.
func (l *defaultLogger) Noticef(format string, v ...interface{}) {
	msg := fmt.Sprintf(format, v...)

	l.mu.Lock()
	defer l.mu.Unlock()

	l.buf = l.buf[:0]
	l.buf = time.Now().UTC().AppendFormat(l.buf, timestampFormat)
	l.buf = append(l.buf, ' ')
	l.buf = append(l.buf, l.prefix...)
	l.buf = append(l.buf, msg...)
	if len(msg) == 0 || msg[len(msg)-1] != '\n' {
		l.buf = append(l.buf, '\n')
	}
	l.w.Write(l.buf)
}

// New creates a Logger writing to w, with prefix printed between the
// timestamp and the message.
func New(w io.Writer, prefix string) Logger {
	return &defaultLogger{w: w, prefix: prefix}
}
