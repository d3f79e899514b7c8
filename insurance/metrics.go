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

package insurance

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type ledgerMetrics struct {
	policies    prometheus.Gauge
	premiums    prometheus.Gauge
	credits     prometheus.Counter
	withdrawals prometheus.Gauge
}

func newLedgerMetrics(promRegistry prometheus.Registerer) *ledgerMetrics {
	promautoFactory := promauto.With(promRegistry)
	return &ledgerMetrics{
		policies: promautoFactory.NewGauge(prometheus.GaugeOpts{
			Name: "flightsurety_policies",
			Help: "number of insurance policies",
		}),
		// A gauge so refunded premiums can be subtracted
		premiums: promautoFactory.NewGauge(prometheus.GaugeOpts{
			Name: "flightsurety_premiums",
			Help: "net premium value accepted",
		}),
		credits: promautoFactory.NewCounter(prometheus.CounterOpts{
			Name: "flightsurety_credits_issued_total",
			Help: "total credit value issued to insurees",
		}),
		// A gauge so reversed withdrawals can be subtracted
		withdrawals: promautoFactory.NewGauge(prometheus.GaugeOpts{
			Name: "flightsurety_credits_withdrawn",
			Help: "net credit value withdrawn by insurees",
		}),
	}
}
