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

// Package proctitle reports the master's current phase through the
// kernel process name (visible in ps/top), the Linux analogue of
// argv-rewriting in languages that support it directly. Every phase
// change, and any prctl failure, is also written as a debug log line,
// which appears only when RESQUE_POOL_DEBUG is set.
package proctitle

import (
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/venkatasivakesarla/resque-pool/internal/logger"
)

const maxNameLen = 15 // TASK_COMM_LEN - 1, the kernel's hard limit

// Set reports phase, truncating to the kernel's 15-byte process-name
// limit. A failure to set the kernel name is not fatal — it only
// degrades what "ps" shows, so it falls back to a debug log line.
func Set(phase string) {
	name := phase
	if len(name) > maxNameLen {
		name = name[:maxNameLen]
	}
	buf := append([]byte(name), 0)
	if err := unix.Prctl(unix.PR_SET_NAME, uintptr(unsafe.Pointer(&buf[0])), 0, 0, 0); err != nil {
		logger.Debugf("proctitle: prctl PR_SET_NAME failed: %v", err)
	}
	logger.Debugf("proctitle: %s", phase)
}
