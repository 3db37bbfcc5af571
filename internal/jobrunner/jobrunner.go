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

// Package jobrunner provides the default worker kind: a minimal,
// unattended poll loop standing in for the opaque job-execution
// capability a real resque-style worker would invoke. Job execution
// itself is out of scope — this just gives every spawned child
// something real to run, so the supervisor's fork/reap/backoff
// machinery has actual live processes to manage.
package jobrunner

import (
	"time"

	"github.com/venkatasivakesarla/resque-pool/internal/logger"
	"github.com/venkatasivakesarla/resque-pool/internal/supervisor"
)

// Run is the default kind's work routine: poll queues at the
// configured interval until told to stop. Replace with a real job
// dequeue-and-process loop to back this supervisor with actual work.
func Run(stop <-chan struct{}, w *supervisor.WorkerHandle) error {
	interval := w.Interval
	if interval <= 0 {
		interval = 5 * time.Second
	}

	logger.Noticef("worker %d: polling %v every %s", w.WorkerParentPid, w.Queues, interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return nil
		case <-ticker.C:
			logger.Debugf("worker: polling queues %v", w.Queues)
		}
	}
}
