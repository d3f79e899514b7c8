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
	"fmt"
	"sync"
	"time"

	"github.com/z-vasconcelos/flightsurety/types"
)

// RoundKey identifies a round: the requested index and the flight
type RoundKey struct {
	Index  uint8
	Flight types.FlightKey
}

func (k RoundKey) String() string {
	return fmt.Sprintf("%d:%s", k.Index, k.Flight)
}

type RoundState uint8

const (
	RoundOpen RoundState = iota + 1
	RoundFinalized
)

func (s RoundState) String() string {
	switch s {
	case RoundOpen:
		return "Open"
	case RoundFinalized:
		return "Finalized"
	default:
		return fmt.Sprintf("RoundState(%d)", s)
	}
}

// RoundInfo is a point-in-time copy of a round
type RoundInfo struct {
	Key         RoundKey
	State       RoundState
	Status      types.FlightStatus
	Reports     map[types.Address]types.FlightStatus
	OpenedAt    time.Time
	FinalizedAt time.Time
}

type round struct {
	mu          sync.Mutex
	key         RoundKey
	state       RoundState
	status      types.FlightStatus
	reports     map[types.Address]types.FlightStatus
	tally       map[types.FlightStatus]int
	openedAt    time.Time
	finalizedAt time.Time
}

func newRound(key RoundKey, now time.Time) *round {
	return &round{
		key:      key,
		state:    RoundOpen,
		reports:  make(map[types.Address]types.FlightStatus),
		tally:    make(map[types.FlightStatus]int),
		openedAt: now,
	}
}

// record stores the reporter's latest status and returns the number of
// reporters currently agreeing on it. The caller holds r.mu.
func (r *round) record(reporter types.Address, status types.FlightStatus) int {
	if prev, ok := r.reports[reporter]; ok {
		if prev == status {
			return r.tally[status]
		}
		r.tally[prev]--
	}
	r.reports[reporter] = status
	r.tally[status]++
	return r.tally[status]
}
