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

package main

import (
	"github.com/venkatasivakesarla/resque-pool/internal/jobrunner"
	"github.com/venkatasivakesarla/resque-pool/internal/logger"
	"github.com/venkatasivakesarla/resque-pool/internal/queuegroup"
	"github.com/venkatasivakesarla/resque-pool/internal/supervisor"
)

// registerKinds installs every worker kind and hook this binary knows
// about. It is called identically from both the run (master) and
// worker (re-exec'd child) entrypoints: since exec replaces a process's
// memory wholesale, the only way a child can end up with the same kind
// registrations and hooks as its parent is to run this same function
// again for itself.
func registerKinds(m *supervisor.Master) {
	m.RegisterKind(queuegroup.DefaultKind, jobrunner.Run)

	m.AfterPrefork(func(w *supervisor.WorkerHandle) {
		logger.Noticef("worker for %q (kind %q) starting under parent %d", w.QueueGroup, w.Kind, w.WorkerParentPid)
	})
}
