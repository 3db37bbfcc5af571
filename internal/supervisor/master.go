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

// Package supervisor is the master control loop: it binds the backoff
// governors, self-pipe, signal intake, and worker registry into a
// single-threaded driver that reaps, polls hooks, dispatches signals,
// and reconciles live worker counts against a loaded configuration.
//
// All supervisor-wide state lives on the Master value itself rather
// than in package-level variables — there is exactly one Master per
// process, constructed once at program entry, so there is no benefit to
// a singleton and a real cost: it would make testing two independent
// masters in one test binary impossible.
package supervisor

import (
	"fmt"
	"os"
	"sync"
	"time"

	"golang.org/x/sys/unix"
	"gopkg.in/tomb.v2"

	"github.com/venkatasivakesarla/resque-pool/internal/backoff"
	"github.com/venkatasivakesarla/resque-pool/internal/config"
	"github.com/venkatasivakesarla/resque-pool/internal/logger"
	"github.com/venkatasivakesarla/resque-pool/internal/queuegroup"
	"github.com/venkatasivakesarla/resque-pool/internal/registry"
	"github.com/venkatasivakesarla/resque-pool/internal/selfpipe"
)

// TermBehavior selects what a TERM signal means for this master, since
// the right choice depends on whether workers run under a term-timeout
// wrapper that treats TERM as "finish the current job, then exit".
type TermBehavior int

const (
	// TermImmediate tells workers to stop now (the default).
	TermImmediate TermBehavior = iota
	TermGracefulAndWait
	TermGracefulNoWait
	TermAndWait
)

// KindFunc is the work routine a registered worker kind runs inside its
// forked-and-exec'd child process, after AfterPrefork hooks have run.
type KindFunc func(stop <-chan struct{}, w *WorkerHandle) error

// WorkerHandle is the capability set passed to AfterPrefork hooks and to
// a Kind's work routine: everything a child needs to know about why it
// was spawned.
type WorkerHandle struct {
	QueueGroup      string
	Kind            string
	Queues          []string
	SpawnedAt       time.Time
	MasterPid       int
	WorkerParentPid int
	TermTimeout     time.Duration
	TermChild       bool
	Interval        time.Duration
	RunAtExitHooks  bool
	Logging         bool
	Verbose         bool
	VVerbose        bool
}

// Options configures a Master. Zero values fall back to the documented
// defaults.
type Options struct {
	BinaryPath string // re-exec target, normally os.Args[0]
	ConfigPath string
	Environment string // resolved RACK_ENV/RAILS_ENV/RESQUE_ENV

	DelayStep time.Duration
	DelayMax  time.Duration

	TermChild     bool
	SinglePgrp    bool
	TermTimeout   time.Duration
	Interval      time.Duration
	RunAtExitHooks bool
	Logging       bool
	Verbose       bool
	VVerbose      bool
	HandleWinch   bool
	TermBehavior  TermBehavior
	SpawnThrottle time.Duration
}

// Master is the top-level supervisor value.
type Master struct {
	opts Options

	masterPid int
	pipe      *selfpipe.Pipe
	reg       *registry.Registry
	governors *backoff.Governors
	pool      *registry.Pool
	loader    *config.Loader

	queue *signalQueue

	mu         sync.Mutex
	kinds      map[string]KindFunc
	afterFork  []func(*WorkerHandle)
	pollHooks  []func(*Master) error
	started    bool

	waitingForReaper bool
	quitNow          chan struct{}
	quitNowClosed    bool
	ready            bool

	intake tomb.Tomb
}

// New constructs a Master from opts. Hooks and kinds may be registered
// until Start is called, after which registration panics — matching the
// "frozen before start()" rule.
func New(opts Options) *Master {
	if opts.DelayStep <= 0 {
		opts.DelayStep = backoff.DefaultDelayStep
	}
	if opts.DelayMax <= 0 {
		opts.DelayMax = backoff.DefaultDelayMax
	}
	if opts.Interval <= 0 {
		opts.Interval = 5 * time.Second
	}
	if opts.TermTimeout <= 0 {
		opts.TermTimeout = 4 * time.Second
	}
	if opts.BinaryPath == "" {
		opts.BinaryPath = os.Args[0]
	}

	reg := registry.New()
	governors := backoff.NewGovernors(opts.DelayStep, opts.DelayMax)

	m := &Master{
		opts:      opts,
		pipe:      selfpipe.NewPipe(),
		reg:       reg,
		governors: governors,
		loader:    config.NewLoader(opts.ConfigPath),
		queue:     newSignalQueue(5),
		kinds:     map[string]KindFunc{queuegroup.DefaultKind: nil},
		quitNow:   make(chan struct{}),
	}
	m.pool = registry.NewPool(reg, governors, m.buildSpawnSpec)
	m.pool.SpawnThrottle = opts.SpawnThrottle
	if opts.TermChild {
		m.pool.QuitSignal = unix.SIGTERM
	} else {
		m.pool.QuitSignal = unix.SIGQUIT
	}
	return m
}

// RegisterKind installs a non-default worker variant. Must be called
// before Start.
func (m *Master) RegisterKind(name string, fn KindFunc) {
	m.mustNotStarted("RegisterKind")
	m.mu.Lock()
	defer m.mu.Unlock()
	m.kinds[name] = fn
}

// AfterPrefork registers a hook run inside each freshly forked child,
// before its work routine starts. Must be called before Start.
func (m *Master) AfterPrefork(fn func(*WorkerHandle)) {
	m.mustNotStarted("AfterPrefork")
	m.mu.Lock()
	defer m.mu.Unlock()
	m.afterFork = append(m.afterFork, fn)
}

// Poll registers a hook invoked once per master loop iteration. A
// returned error is logged but never fatal. Must be called before
// Start.
func (m *Master) Poll(fn func(*Master) error) {
	m.mustNotStarted("Poll")
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pollHooks = append(m.pollHooks, fn)
}

func (m *Master) mustNotStarted(what string) {
	m.mu.Lock()
	started := m.started
	m.mu.Unlock()
	if started {
		panic(fmt.Sprintf("supervisor: %s called after Start", what))
	}
}

// KnownKind reports whether name is a registered worker kind.
func (m *Master) KnownKind(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.kinds[name]
	return ok
}

// Registry exposes the live-worker index, mainly for the admin API.
func (m *Master) Registry() *registry.Registry { return m.reg }

// Governors exposes the backoff table, mainly for the admin API.
func (m *Master) Governors() *backoff.Governors { return m.governors }

// Pid returns the pid captured at startup.
func (m *Master) Pid() int { return m.masterPid }

// Ready reports whether the master has completed its first reconcile,
// i.e. whether the configured worker counts have at least been acted
// on once. Used to gate the admin API's /healthz probe.
func (m *Master) Ready() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ready
}

func (m *Master) setReady() {
	m.mu.Lock()
	m.ready = true
	m.mu.Unlock()
}
