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

// Package queuegroup parses the QueueGroup string key:
// "[<kind>:]<queue>[,<queue>]*". The master never interprets the queue
// names themselves — only the optional kind prefix, used to pick a
// worker constructor out of the kind registry.
package queuegroup

import (
	"regexp"
	"strings"
)

// DefaultKind is used when a QueueGroup carries no "<kind>:" prefix.
const DefaultKind = "default"

var kindPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Split returns the worker kind and the raw queue list for group. If
// group has no "kind:" prefix, or the text before the first colon isn't
// a valid kind identifier (so it's actually part of a queue name
// containing a colon-free list), kind is DefaultKind and queues is group
// unmodified.
func Split(group string) (kind string, queues string) {
	i := strings.IndexByte(group, ':')
	if i < 0 {
		return DefaultKind, group
	}
	prefix := group[:i]
	if !kindPattern.MatchString(prefix) {
		return DefaultKind, group
	}
	return prefix, group[i+1:]
}

// Queues splits the comma-separated queue list out of the raw queues
// string returned by Split.
func Queues(queues string) []string {
	if queues == "" {
		return nil
	}
	parts := strings.Split(queues, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
