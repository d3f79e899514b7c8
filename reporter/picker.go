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

package reporter

import (
	"math/rand/v2"
	"sync"

	"github.com/z-vasconcelos/flightsurety/consensus"
	"github.com/z-vasconcelos/flightsurety/types"
)

// StatusPicker chooses the status an oracle reports for a request
type StatusPicker interface {
	Pick(req consensus.StatusRequest, oracle types.Address) types.FlightStatus
}

// FixedPicker always reports the same status
type FixedPicker types.FlightStatus

func (f FixedPicker) Pick(consensus.StatusRequest, types.Address) types.FlightStatus {
	return types.FlightStatus(f)
}

// RandomPicker reports a uniformly chosen reportable status
type RandomPicker struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewRandomPicker(seed uint64) *RandomPicker {
	return &RandomPicker{
		rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)), //nolint:gosec
	}
}

func (r *RandomPicker) Pick(consensus.StatusRequest, types.Address) types.FlightStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return types.ReportableStatuses[r.rng.IntN(len(types.ReportableStatuses))]
}
