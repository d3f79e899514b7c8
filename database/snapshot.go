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
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/z-vasconcelos/flightsurety/airline"
	"github.com/z-vasconcelos/flightsurety/flight"
	"github.com/z-vasconcelos/flightsurety/insurance"
	"github.com/z-vasconcelos/flightsurety/oracle"
	"github.com/z-vasconcelos/flightsurety/surety"
	"github.com/z-vasconcelos/flightsurety/types"
)

// LoadSnapshot reads the projected state. The result is empty when nothing
// has been projected yet.
func (d *Database) LoadSnapshot() (surety.Snapshot, error) {
	md := d.Metadata()
	ret := surety.Snapshot{
		Operational: true,
		Balance:     decimal.Zero,
		Votes:       make(map[types.Address][]types.Address),
	}
	contract, found, err := md.GetContract()
	if err != nil {
		return surety.Snapshot{}, fmt.Errorf("load contract: %w", err)
	}
	if found {
		ret.HasContract = true
		ret.Operational = contract.Operational
		ret.Balance = contract.Balance
	}
	airlines, err := md.GetAirlines()
	if err != nil {
		return surety.Snapshot{}, fmt.Errorf("load airlines: %w", err)
	}
	ret.Airlines = make([]airline.Airline, 0, len(airlines))
	for _, a := range airlines {
		ret.Airlines = append(ret.Airlines, a.ToAirline())
	}
	votes, err := md.GetVotes()
	if err != nil {
		return surety.Snapshot{}, fmt.Errorf("load votes: %w", err)
	}
	for candidate, voters := range votes {
		tmp := make([]types.Address, len(voters))
		for i, v := range voters {
			tmp[i] = types.Address(v)
		}
		ret.Votes[types.Address(candidate)] = tmp
	}
	oracles, err := md.GetOracles()
	if err != nil {
		return surety.Snapshot{}, fmt.Errorf("load oracles: %w", err)
	}
	ret.Oracles = make([]oracle.Oracle, 0, len(oracles))
	for _, o := range oracles {
		ret.Oracles = append(ret.Oracles, o.ToOracle())
	}
	flights, err := md.GetFlights()
	if err != nil {
		return surety.Snapshot{}, fmt.Errorf("load flights: %w", err)
	}
	ret.Flights = make([]flight.Flight, 0, len(flights))
	for _, f := range flights {
		ret.Flights = append(ret.Flights, f.ToFlight())
	}
	policies, err := md.GetPolicies()
	if err != nil {
		return surety.Snapshot{}, fmt.Errorf("load policies: %w", err)
	}
	ret.Policies = make([]insurance.Policy, 0, len(policies))
	for _, p := range policies {
		ret.Policies = append(ret.Policies, p.ToPolicy())
	}
	return ret, nil
}
