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

package airline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type governanceMetrics struct {
	registered prometheus.Gauge
	votes      prometheus.Counter
	admissions *prometheus.CounterVec
	funded     prometheus.Counter
}

func newGovernanceMetrics(promRegistry prometheus.Registerer) *governanceMetrics {
	promautoFactory := promauto.With(promRegistry)
	return &governanceMetrics{
		registered: promautoFactory.NewGauge(prometheus.GaugeOpts{
			Name: "flightsurety_airlines_registered",
			Help: "current number of registered airlines",
		}),
		votes: promautoFactory.NewCounter(prometheus.CounterOpts{
			Name: "flightsurety_airline_votes_total",
			Help: "total admission votes recorded",
		}),
		admissions: promautoFactory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flightsurety_airline_admissions_total",
				Help: "airlines admitted, by admission path",
			},
			[]string{"path"},
		),
		funded: promautoFactory.NewCounter(prometheus.CounterOpts{
			Name: "flightsurety_airline_fundings_total",
			Help: "total accepted funding payments",
		}),
	}
}
