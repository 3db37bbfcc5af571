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

// Package registry tracks live worker processes: an in-memory
// QueueGroup -> {pid -> WorkerRecord} map, plus the fork, signal, and
// reap primitives that operate on it, and the delta/reconcile
// operations that bring it toward a declared set of target counts.
//
// The reap algorithm follows the usual unix.Wait4-with-WNOHANG pattern
// (ECHILD as the "nothing left to reap" terminal case), inlined directly
// against this Registry's pid index instead of a second, independent
// pid->channel map — this Registry is already the authoritative index,
// so there is nothing left for a second index to do.
package registry

import (
	"sort"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/venkatasivakesarla/resque-pool/internal/logger"
)

// WorkerRecord is per-live-child metadata.
type WorkerRecord struct {
	Pid        int
	QueueGroup string
	Kind       string
	SpawnedAt  time.Time
}

type bucket struct {
	order []int // insertion order, for reconcile's "first |delta| pids"
	byPid map[int]*WorkerRecord
}

func newBucket() *bucket {
	return &bucket{byPid: make(map[int]*WorkerRecord)}
}

func (b *bucket) add(rec *WorkerRecord) {
	b.order = append(b.order, rec.Pid)
	b.byPid[rec.Pid] = rec
}

func (b *bucket) remove(pid int) (*WorkerRecord, bool) {
	rec, ok := b.byPid[pid]
	if !ok {
		return nil, false
	}
	delete(b.byPid, pid)
	for i, p := range b.order {
		if p == pid {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
	return rec, true
}

// Registry is the master-private live-worker index. The master itself
// is a single logical thread of control; the mutex exists only to let
// the admin HTTP surface (internal/adminapi) read a consistent snapshot
// from a different goroutine.
type Registry struct {
	mu     sync.Mutex
	groups map[string]*bucket
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{groups: make(map[string]*bucket)}
}

// Insert adds rec under its QueueGroup. It is the caller's
// responsibility to have actually started the process — Insert only
// updates bookkeeping (used directly by Spawn, and by tests that want to
// seed a Registry without forking a real process).
func (r *Registry) Insert(rec *WorkerRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.groups[rec.QueueGroup]
	if !ok {
		b = newBucket()
		r.groups[rec.QueueGroup] = b
	}
	b.add(rec)
}

// Remove deletes pid from whichever QueueGroup bucket holds it (located
// by scanning every bucket), returning the removed record.
func (r *Registry) Remove(pid int) (*WorkerRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for group, b := range r.groups {
		if rec, ok := b.remove(pid); ok {
			if len(b.order) == 0 {
				delete(r.groups, group)
			}
			return rec, true
		}
	}
	return nil, false
}

// Count returns the number of live workers in group.
func (r *Registry) Count(group string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.groups[group]
	if !ok {
		return 0
	}
	return len(b.byPid)
}

// Groups returns every QueueGroup currently holding at least one live
// worker.
func (r *Registry) Groups() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.groups))
	for g := range r.groups {
		out = append(out, g)
	}
	sort.Strings(out)
	return out
}

// PidsInOrder returns the live pids for group in spawn (insertion) order.
func (r *Registry) PidsInOrder(group string) []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.groups[group]
	if !ok {
		return nil
	}
	out := make([]int, len(b.order))
	copy(out, b.order)
	return out
}

// AllPids returns every live pid across every QueueGroup, for
// signal_all.
func (r *Registry) AllPids() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []int
	for _, b := range r.groups {
		out = append(out, b.order...)
	}
	return out
}

// Snapshot returns a deep-enough copy of the whole registry for
// diagnostics (admin status endpoint, tests). Mutating the result has no
// effect on the Registry.
func (r *Registry) Snapshot() map[string][]WorkerRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string][]WorkerRecord, len(r.groups))
	for group, b := range r.groups {
		recs := make([]WorkerRecord, 0, len(b.order))
		for _, pid := range b.order {
			recs = append(recs, *b.byPid[pid])
		}
		out[group] = recs
	}
	return out
}

// Empty reports whether the registry currently has zero live workers.
func (r *Registry) Empty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.groups {
		if len(b.byPid) > 0 {
			return false
		}
	}
	return true
}

// SignalAll sends sig to every live pid. "No such process" is swallowed
// as a transient, expected race against a child that is already exiting.
func (r *Registry) SignalAll(sig unix.Signal) {
	for _, pid := range r.AllPids() {
		signalPid(pid, sig)
	}
}

// SignalGroup sends sig to the first n live pids of group, in insertion
// order, and returns the pids actually signaled. Used by reconcile's
// downward path: when a group has more workers than its target count,
// the oldest excess workers are told to quit first.
func (r *Registry) SignalGroup(group string, sig unix.Signal, n int) []int {
	pids := r.PidsInOrder(group)
	if n > len(pids) {
		n = len(pids)
	}
	pids = pids[:n]
	for _, pid := range pids {
		signalPid(pid, sig)
	}
	return pids
}

func signalPid(pid int, sig unix.Signal) {
	if err := unix.Kill(pid, sig); err != nil && err != unix.ESRCH {
		logger.Debugf("registry: signal %v to pid %d: %v", sig, pid, err)
	}
}
