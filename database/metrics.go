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

package database

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type projectorMetrics struct {
	events     *prometheus.CounterVec
	errors     prometheus.Counter
	journalSeq prometheus.Gauge
}

func newProjectorMetrics(promRegistry prometheus.Registerer) *projectorMetrics {
	promautoFactory := promauto.With(promRegistry)
	return &projectorMetrics{
		events: promautoFactory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flightsurety_projector_events_total",
				Help: "Events journaled and projected, by type",
			},
			[]string{"type"},
		),
		errors: promautoFactory.NewCounter(
			prometheus.CounterOpts{
				Name: "flightsurety_projector_errors_total",
				Help: "Events that failed to project",
			},
		),
		journalSeq: promautoFactory.NewGauge(
			prometheus.GaugeOpts{
				Name: "flightsurety_journal_seq",
				Help: "Sequence number of the newest journal entry",
			},
		),
	}
}
