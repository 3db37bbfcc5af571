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
	"sync"

	"golang.org/x/sys/unix"

	"github.com/venkatasivakesarla/resque-pool/internal/logger"
	"github.com/venkatasivakesarla/resque-pool/internal/metrics"
)

// signalQueue is the bounded FIFO of deferred signal tokens. Overflow
// policy is drop-newest-and-log: once full, further signals are
// discarded rather than evicting what's already queued, so the oldest
// pending work is never silently lost in favor of the newest.
type signalQueue struct {
	mu       sync.Mutex
	tokens   []unix.Signal
	capacity int
	dropped  int
}

func newSignalQueue(capacity int) *signalQueue {
	return &signalQueue{capacity: capacity}
}

// push enqueues sig, or drops it (and logs) if the queue is full.
func (q *signalQueue) push(sig unix.Signal) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.tokens) >= q.capacity {
		q.dropped++
		metrics.SignalsDroppedTotal.Inc()
		logger.Noticef("signal queue full (capacity %d): dropping %v", q.capacity, sig)
		return
	}
	q.tokens = append(q.tokens, sig)
	metrics.SignalQueueDepth.Set(float64(len(q.tokens)))
}

// pop removes and returns the head token, if any.
func (q *signalQueue) pop() (unix.Signal, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.tokens) == 0 {
		return 0, false
	}
	sig := q.tokens[0]
	q.tokens = q.tokens[1:]
	metrics.SignalQueueDepth.Set(float64(len(q.tokens)))
	return sig, true
}

// len reports the current queue depth.
func (q *signalQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tokens)
}

// droppedCount reports how many tokens have been dropped for overflow
// since startup.
func (q *signalQueue) droppedCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}
