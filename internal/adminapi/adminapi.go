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

// Package adminapi is a minimal, read-only HTTP surface over a running
// master: worker listing, a liveness probe, and Prometheus metrics. It
// deliberately exposes no mutating endpoints — reconfiguration stays a
// signal-only operation, matching the core's signal-driven design.
package adminapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/venkatasivakesarla/resque-pool/internal/metrics"
)

// MasterView is the subset of Master state the admin API needs, kept
// narrow so this package doesn't import internal/supervisor and create
// a dependency cycle back toward adminapi's eventual caller.
type MasterView interface {
	Pid() int
	RegistrySnapshot() map[string][]WorkerView
	Ready() bool
}

// WorkerView is one live worker's admin-visible state.
type WorkerView struct {
	Pid        int       `json:"pid"`
	QueueGroup string    `json:"queue_group"`
	Kind       string    `json:"kind"`
	SpawnedAt  time.Time `json:"spawned_at"`
}

// NewRouter builds the admin HTTP handler, a minimal gorilla/mux daemon
// router exposing a point-in-time registry snapshot: no asynchronous
// change model, just health, status, and metrics.
func NewRouter(m MasterView) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", handleHealthz(m)).Methods(http.MethodGet)
	r.HandleFunc("/status", handleStatus(m)).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	return r
}

// handleHealthz reports healthy only once the master has completed its
// first reconcile; before that, a load balancer or process supervisor
// probing this endpoint should not yet consider the master ready.
func handleHealthz(m MasterView) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if !m.Ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("not ready\n"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	}
}

type statusResponse struct {
	MasterPid int                     `json:"master_pid"`
	Workers   map[string][]WorkerView `json:"workers"`
}

func handleStatus(m MasterView) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := statusResponse{
			MasterPid: m.Pid(),
			Workers:   m.RegistrySnapshot(),
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}
