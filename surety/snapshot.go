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

package surety

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/z-vasconcelos/flightsurety/airline"
	"github.com/z-vasconcelos/flightsurety/flight"
	"github.com/z-vasconcelos/flightsurety/insurance"
	"github.com/z-vasconcelos/flightsurety/oracle"
	"github.com/z-vasconcelos/flightsurety/types"
)

// Snapshot is the durable state of the application. Open consensus rounds
// are not part of it.
type Snapshot struct {
	// HasContract is set when the operating status and balance were persisted
	HasContract bool
	Operational bool
	Balance     decimal.Decimal
	Airlines    []airline.Airline
	Votes       map[types.Address][]types.Address
	Oracles     []oracle.Oracle
	Flights     []flight.Flight
	Policies    []insurance.Policy
}

// Empty reports whether nothing at all was persisted
func (s Snapshot) Empty() bool {
	return !s.HasContract &&
		len(s.Airlines) == 0 &&
		len(s.Votes) == 0 &&
		len(s.Oracles) == 0 &&
		len(s.Flights) == 0 &&
		len(s.Policies) == 0
}

// balanceResetter is implemented by vaults whose balance can be restored
type balanceResetter interface {
	Reset(balance decimal.Decimal)
}

// Snapshot captures the current state
func (a *App) Snapshot() (Snapshot, error) {
	ret := Snapshot{
		HasContract: true,
		Operational: a.IsOperational(),
		Balance:     a.vault.Balance(),
		Airlines:    a.governance.Roster().List(),
		Votes:       make(map[types.Address][]types.Address),
		Oracles:     a.oracles.List(),
		Flights:     a.flights.List(),
		Policies:    a.ledger.All(),
	}
	for _, al := range ret.Airlines {
		voters, err := a.governance.Voters(al.Address)
		if err != nil {
			return Snapshot{}, fmt.Errorf("voters for %s: %w", al.Address, err)
		}
		if len(voters) > 0 {
			ret.Votes[al.Address] = voters
		}
	}
	return ret, nil
}

// Restore replaces the current state with a snapshot. It must be called
// before the application starts serving callers. The founding airline is
// kept when no airline was persisted.
func (a *App) Restore(s Snapshot) error {
	if s.Empty() {
		return errors.New("snapshot is empty")
	}
	if len(s.Airlines) > 0 {
		a.governance.Restore(s.Airlines, s.Votes)
	}
	a.oracles.Restore(s.Oracles)
	a.flights.Restore(s.Flights)
	a.ledger.Restore(s.Policies)
	a.operational.Store(s.Operational)
	if r, ok := a.vault.(balanceResetter); ok {
		r.Reset(s.Balance)
	}
	a.logger.Info(
		"state restored",
		"airlines", len(s.Airlines),
		"oracles", len(s.Oracles),
		"flights", len(s.Flights),
		"policies", len(s.Policies),
	)
	return nil
}
