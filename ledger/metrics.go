// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ledger

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type ledgerMetrics struct {
	totalSupply         prometheus.Gauge
	accumulatedFees     prometheus.Gauge
	escrowedFees        prometheus.Gauge
	transfersTotal      prometheus.Counter
	breedingRequests    prometheus.Counter
	breedingResolutions *prometheus.CounterVec
	dispatchQueueDepth  prometheus.Gauge
	collaboratorLatency prometheus.Histogram
}

func (m *ledgerMetrics) init(promRegistry prometheus.Registerer) {
	promautoFactory := promauto.With(promRegistry)
	m.totalSupply = promautoFactory.NewGauge(prometheus.GaugeOpts{
		Name: "slimy_ledger_total_supply",
		Help: "number of slimes ever minted",
	})
	m.accumulatedFees = promautoFactory.NewGauge(prometheus.GaugeOpts{
		Name: "slimy_ledger_accumulated_fees",
		Help: "claimable birth fees",
	})
	m.escrowedFees = promautoFactory.NewGauge(prometheus.GaugeOpts{
		Name: "slimy_ledger_escrowed_fees",
		Help: "birth fees held by pending breeding requests",
	})
	m.transfersTotal = promautoFactory.NewCounter(prometheus.CounterOpts{
		Name: "slimy_ledger_transfers_total",
		Help: "total slime transfers",
	})
	m.breedingRequests = promautoFactory.NewCounter(prometheus.CounterOpts{
		Name: "slimy_ledger_breeding_requests_total",
		Help: "total accepted breeding requests",
	})
	m.breedingResolutions = promautoFactory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slimy_ledger_breeding_resolutions_total",
			Help: "total resolved breeding requests by outcome",
		},
		[]string{"outcome"},
	)
	m.dispatchQueueDepth = promautoFactory.NewGauge(prometheus.GaugeOpts{
		Name: "slimy_ledger_dispatch_queue_depth",
		Help: "breeding requests waiting for a dispatch worker",
	})
	m.collaboratorLatency = promautoFactory.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "slimy_ledger_collaborator_latency_seconds",
			Help:    "latency of gene science collaborator calls",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms to ~16s
		},
	)
}
