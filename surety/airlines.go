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
	"github.com/z-vasconcelos/flightsurety/types"
)

// ApplyAirline submits candidate for admission on behalf of caller
func (a *App) ApplyAirline(
	caller types.Address,
	candidate types.Address,
	name string,
) (airline.Airline, error) {
	if err := a.requireOperational(); err != nil {
		return airline.Airline{}, err
	}
	ret, err := a.governance.Apply(candidate, name, caller)
	if err != nil {
		return airline.Airline{}, err
	}
	if ret.State == airline.StateRegistered {
		a.publish(AirlineRegisteredEventType, AirlineRegisteredEvent{
			Airline: candidate,
			Name:    name,
		})
	} else {
		a.publish(AirlineAppliedEventType, AirlineAppliedEvent{
			Airline: candidate,
			Name:    name,
			Sponsor: caller,
		})
	}
	return ret, nil
}

// VoteAirline records caller's vote for an applied candidate
func (a *App) VoteAirline(
	caller types.Address,
	candidate types.Address,
) (airline.VoteResult, error) {
	if err := a.requireOperational(); err != nil {
		return airline.VoteResult{}, err
	}
	res, err := a.governance.Vote(candidate, caller)
	if err != nil {
		return airline.VoteResult{}, err
	}
	a.publish(VoteRecordedEventType, VoteRecordedEvent{
		Candidate: candidate,
		Voter:     caller,
		Votes:     res.Votes,
	})
	if res.Admitted {
		rec, err := a.governance.Roster().Get(candidate)
		if err != nil {
			return airline.VoteResult{}, err
		}
		a.publish(AirlineRegisteredEventType, AirlineRegisteredEvent{
			Airline: candidate,
			Name:    rec.Name,
			Votes:   res.Votes,
		})
	}
	return res, nil
}

// FundAirline pays amount into the vault on behalf of a registered airline.
// The funding is reverted when the deposit fails.
func (a *App) FundAirline(
	caller types.Address,
	addr types.Address,
	amount decimal.Decimal,
) (airline.Airline, error) {
	if err := a.requireOperational(); err != nil {
		return airline.Airline{}, err
	}
	ret, err := a.governance.Fund(addr, amount, caller)
	if err != nil {
		return airline.Airline{}, err
	}
	if err := a.vault.Deposit(caller, amount); err != nil {
		if rerr := a.governance.RevertFunding(addr, amount); rerr != nil {
			err = errors.Join(err, rerr)
		}
		return airline.Airline{}, fmt.Errorf("deposit funding: %w", err)
	}
	a.publish(AirlineFundedEventType, AirlineFundedEvent{
		Airline: addr,
		Amount:  amount,
		Funds:   ret.Funds,
	})
	return ret, nil
}

func (a *App) IsAirlineRegistered(addr types.Address) bool {
	return a.governance.Roster().IsRegistered(addr)
}

func (a *App) IsAirlineFunded(addr types.Address) bool {
	return a.governance.Roster().IsFunded(addr)
}

func (a *App) GetVoteCount(candidate types.Address) (int, error) {
	return a.governance.VoteCount(candidate)
}

func (a *App) GetVoters(candidate types.Address) ([]types.Address, error) {
	return a.governance.Voters(candidate)
}

func (a *App) GetAirline(addr types.Address) (airline.Airline, error) {
	return a.governance.Roster().Get(addr)
}

func (a *App) GetAirlineByName(name string) (airline.Airline, error) {
	return a.governance.Roster().ByName(name)
}

// GetAirlines returns every airline in application order
func (a *App) GetAirlines() []airline.Airline {
	return a.governance.Roster().List()
}
