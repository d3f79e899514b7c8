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
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/z-vasconcelos/flightsurety/consensus"
	"github.com/z-vasconcelos/flightsurety/flight"
	"github.com/z-vasconcelos/flightsurety/oracle"
	"github.com/z-vasconcelos/flightsurety/types"
)

// RegisterOracle registers caller as an oracle after depositing the fee
func (a *App) RegisterOracle(
	caller types.Address,
	fee decimal.Decimal,
) ([]uint8, error) {
	if err := a.requireOperational(); err != nil {
		return nil, err
	}
	prev, prevErr := a.oracles.Get(caller)
	o, err := a.oracles.Register(caller, fee)
	if err != nil {
		return nil, err
	}
	if err := a.vault.Deposit(caller, fee); err != nil {
		a.oracles.Revert(o, prev, prevErr == nil)
		return nil, fmt.Errorf("deposit registration fee: %w", err)
	}
	indexes := make([]int, len(o.Indexes))
	for i, idx := range o.Indexes {
		indexes[i] = int(idx)
	}
	a.publish(OracleRegisteredEventType, OracleRegisteredEvent{
		Oracle:  caller,
		Indexes: indexes,
		Fee:     fee,
	})
	return o.Indexes, nil
}

// GetMyIndexes returns the indexes assigned to caller
func (a *App) GetMyIndexes(caller types.Address) ([]uint8, error) {
	return a.oracles.IndexesOf(caller)
}

func (a *App) GetOracle(addr types.Address) (oracle.Oracle, error) {
	return a.oracles.Get(addr)
}

// GetOracles returns every registered oracle
func (a *App) GetOracles() []oracle.Oracle {
	return a.oracles.List()
}

// RegisterFlight adds a flight operated by caller
func (a *App) RegisterFlight(
	caller types.Address,
	code string,
	origin string,
	destination string,
	timestamp int64,
) (flight.Flight, error) {
	if err := a.requireOperational(); err != nil {
		return flight.Flight{}, err
	}
	f, err := a.flights.Register(caller, code, origin, destination, timestamp)
	if err != nil {
		return flight.Flight{}, err
	}
	a.publish(FlightRegisteredEventType, FlightRegisteredEvent{
		Flight:      f.Key,
		Origin:      f.Origin,
		Destination: f.Destination,
	})
	return f, nil
}

func (a *App) GetFlight(key types.FlightKey) (flight.Flight, error) {
	return a.flights.Get(key)
}

func (a *App) GetFlightByHash(hash string) (flight.Flight, error) {
	return a.flights.ByHash(hash)
}

func (a *App) GetFlightStatus(key types.FlightKey) (types.FlightStatus, error) {
	return a.flights.Status(key)
}

// GetFlights returns the flights registered by an airline
func (a *App) GetFlights(addr types.Address) []flight.Flight {
	return a.flights.ByAirline(addr)
}

// GetAllFlights returns every registered flight
func (a *App) GetAllFlights() []flight.Flight {
	return a.flights.List()
}

// RequestFlightStatus opens a status round for a flight and notifies the
// registered reporters
func (a *App) RequestFlightStatus(
	caller types.Address,
	key types.FlightKey,
) (consensus.StatusRequest, error) {
	if err := a.requireOperational(); err != nil {
		return consensus.StatusRequest{}, err
	}
	req, err := a.aggregator.RequestStatus(key, caller)
	if err != nil {
		return consensus.StatusRequest{}, err
	}
	a.publish(StatusRequestedEventType, StatusRequestedEvent{
		Index:       req.Index,
		Flight:      req.Flight,
		Requester:   req.Requester,
		RequestedAt: req.RequestedAt,
	})
	return req, nil
}

// SubmitOracleResponse records caller's report. When the report finalizes
// its round the flight status is published and covered policies are
// credited.
func (a *App) SubmitOracleResponse(
	caller types.Address,
	index uint8,
	key types.FlightKey,
	status types.FlightStatus,
) (consensus.Outcome, error) {
	if err := a.requireOperational(); err != nil {
		return consensus.Outcome{}, err
	}
	out, err := a.aggregator.SubmitReport(caller, index, key, status)
	if err != nil {
		return consensus.Outcome{}, err
	}
	if !out.Finalized {
		return out, nil
	}
	credits := a.ledger.OnFinalized(key, out.Status)
	a.publish(StatusFinalizedEventType, StatusFinalizedEvent{
		Index:  index,
		Flight: key,
		Status: out.Status,
	})
	for _, c := range credits {
		a.publish(CreditIssuedEventType, CreditIssuedEvent{
			Buyer:  c.Buyer,
			Flight: c.Flight,
			Amount: c.Amount,
		})
	}
	return out, nil
}

// GetRound returns a snapshot of a consensus round
func (a *App) GetRound(index uint8, key types.FlightKey) (consensus.RoundInfo, error) {
	return a.aggregator.Round(consensus.RoundKey{Index: index, Flight: key})
}

// OracleHoldsIndex reports whether an oracle may answer requests for index
func (a *App) OracleHoldsIndex(addr types.Address, index uint8) bool {
	return a.oracles.HasIndex(addr, index)
}
