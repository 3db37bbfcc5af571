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

// Package config loads the declared worker counts (QueueGroup -> int)
// from a YAML file, with an environment-keyed overlay in the style of a
// Rails config/resque-pool.yml: a top-level mapping is either flat
// (applies to every environment) or keyed by environment name, in which
// case a "common"-like default section is not assumed — each
// environment's section is the complete mapping for that environment.
package config

import (
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// Targets is the loaded configuration: QueueGroup -> worker count.
type Targets map[string]int

// Loader is the master's re-invocable collaborator: Load(env) returns
// the declared Targets for the named environment. It must be safe to
// call repeatedly (on every HUP).
type Loader struct {
	path string

	mu       sync.Mutex
	cached   *rawDocument
	cacheErr error
}

// rawDocument is the parsed YAML file: either a flat QueueGroup->count
// map, or a map of environment name -> QueueGroup->count map. Which one
// it is can only be known after parsing, because the distinguishing
// factor is the value type at the leaves.
type rawDocument struct {
	flat   Targets
	byEnv  map[string]Targets
	isFlat bool
}

// NewLoader creates a Loader reading from path. Nothing is read until
// the first Load call.
func NewLoader(path string) *Loader {
	return &Loader{path: path}
}

// Reset invalidates any cached file contents, forcing the next Load to
// re-read from disk. The master calls this before every reload so a HUP
// always observes the current file, matching the reset-hook contract.
func (l *Loader) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cached = nil
	l.cacheErr = nil
}

// Load returns the Targets declared for env. An empty env selects the
// flat document, or the "default" section of an environment-keyed one,
// if present.
func (l *Loader) Load(env string) (Targets, error) {
	doc, err := l.document()
	if err != nil {
		return nil, err
	}
	if doc.isFlat {
		return doc.flat, nil
	}
	if env == "" {
		env = "default"
	}
	t, ok := doc.byEnv[env]
	if !ok {
		return Targets{}, nil
	}
	return t, nil
}

func (l *Loader) document() (*rawDocument, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cached != nil {
		return l.cached, nil
	}
	if l.cacheErr != nil {
		return nil, l.cacheErr
	}

	data, err := os.ReadFile(l.path)
	if err != nil {
		l.cacheErr = fmt.Errorf("config: read %s: %w", l.path, err)
		return nil, l.cacheErr
	}

	doc, err := parseDocument(data)
	if err != nil {
		l.cacheErr = fmt.Errorf("config: parse %s: %w", l.path, err)
		return nil, l.cacheErr
	}
	l.cached = doc
	return doc, nil
}

func parseDocument(data []byte) (*rawDocument, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, err
	}
	if len(node.Content) == 0 {
		return &rawDocument{isFlat: true, flat: Targets{}}, nil
	}
	root := node.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("top-level document must be a mapping")
	}

	// A mapping is "flat" (QueueGroup -> count) if every value is a
	// scalar; it is environment-keyed if every value is itself a
	// mapping. Mixed documents are rejected rather than guessed at.
	allScalar, allMapping := true, true
	for i := 1; i < len(root.Content); i += 2 {
		switch root.Content[i].Kind {
		case yaml.ScalarNode:
			allMapping = false
		case yaml.MappingNode:
			allScalar = false
		default:
			allScalar, allMapping = false, false
		}
	}

	switch {
	case allScalar:
		var flat Targets
		if err := root.Decode(&flat); err != nil {
			return nil, err
		}
		return &rawDocument{isFlat: true, flat: flat}, nil
	case allMapping:
		var byEnv map[string]Targets
		if err := root.Decode(&byEnv); err != nil {
			return nil, err
		}
		return &rawDocument{isFlat: false, byEnv: byEnv}, nil
	default:
		return nil, fmt.Errorf("mixed flat/environment-keyed document not supported")
	}
}

// EnvironmentName resolves the environment name the loader should use,
// in the priority order the core requires: RACK_ENV, then RAILS_ENV,
// then RESQUE_ENV.
func EnvironmentName() string {
	for _, key := range []string{"RACK_ENV", "RAILS_ENV", "RESQUE_ENV"} {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	return ""
}
