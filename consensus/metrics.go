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

package consensus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type aggregatorMetrics struct {
	requests   prometheus.Counter
	reports    *prometheus.CounterVec
	finalized  *prometheus.CounterVec
	openRounds prometheus.Gauge
}

func newAggregatorMetrics(promRegistry prometheus.Registerer) *aggregatorMetrics {
	promautoFactory := promauto.With(promRegistry)
	return &aggregatorMetrics{
		requests: promautoFactory.NewCounter(prometheus.CounterOpts{
			Name: "flightsurety_status_requests_total",
			Help: "total flight status requests",
		}),
		reports: promautoFactory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flightsurety_oracle_reports_total",
				Help: "oracle reports by result",
			},
			[]string{"result"},
		),
		finalized: promautoFactory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flightsurety_rounds_finalized_total",
				Help: "finalized rounds by status",
			},
			[]string{"status"},
		),
		openRounds: promautoFactory.NewGauge(prometheus.GaugeOpts{
			Name: "flightsurety_rounds_open",
			Help: "rounds awaiting quorum",
		}),
	}
}
