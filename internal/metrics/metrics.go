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

// Package metrics exposes the master's internal counters as Prometheus
// collectors: live worker counts, spawn/reap totals, backoff delay, and
// signal-queue health. It is consulted by internal/adminapi's /metrics
// handler and written to by internal/registry and internal/supervisor.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	WorkersLive = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "poolmaster_workers_live",
		Help: "Number of live worker processes, by queue group.",
	}, []string{"queue_group"})

	WorkersSpawnedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "poolmaster_workers_spawned_total",
		Help: "Total workers spawned, by queue group.",
	}, []string{"queue_group"})

	WorkersReapedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "poolmaster_workers_reaped_total",
		Help: "Total workers reaped, by queue group.",
	}, []string{"queue_group"})

	BackoffDelaySeconds = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "poolmaster_backoff_delay_seconds",
		Help: "Seconds remaining before a queue group's backoff governor allows spawning again.",
	}, []string{"queue_group"})

	SignalQueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "poolmaster_signal_queue_depth",
		Help: "Current depth of the deferred signal queue.",
	})

	SignalsDroppedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "poolmaster_signals_dropped_total",
		Help: "Total signals dropped due to a full signal queue.",
	})
)

// Registry is this package's own Prometheus registry, separate from the
// client library's default one. Every collector above is registered
// with it in init, and internal/adminapi serves it at /metrics.
var Registry = prometheus.NewRegistry()

func init() {
	Registry.MustRegister(
		WorkersLive,
		WorkersSpawnedTotal,
		WorkersReapedTotal,
		BackoffDelaySeconds,
		SignalQueueDepth,
		SignalsDroppedTotal,
	)
}
