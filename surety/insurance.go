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

	"github.com/z-vasconcelos/flightsurety/insurance"
	"github.com/z-vasconcelos/flightsurety/types"
)

// BuyInsurance adds amount to caller's premium for a flight
func (a *App) BuyInsurance(
	caller types.Address,
	key types.FlightKey,
	amount decimal.Decimal,
) (insurance.Policy, error) {
	if err := a.requireOperational(); err != nil {
		return insurance.Policy{}, err
	}
	p, err := a.ledger.Buy(key, caller, amount)
	if err != nil {
		return insurance.Policy{}, err
	}
	if err := a.vault.Deposit(caller, amount); err != nil {
		a.ledger.Refund(key, caller, amount)
		return insurance.Policy{}, fmt.Errorf("deposit premium: %w", err)
	}
	a.publish(InsurancePurchasedEventType, InsurancePurchasedEvent{
		Flight: key,
		Buyer:  caller,
		Amount: amount,
		Paid:   p.Paid,
	})
	return p, nil
}

// GetInsuranceValue returns the premium buyer paid for a flight
func (a *App) GetInsuranceValue(
	buyer types.Address,
	key types.FlightKey,
) decimal.Decimal {
	return a.ledger.Value(key, buyer)
}

// GetInsureeCredits returns buyer's withdrawable credit
func (a *App) GetInsureeCredits(buyer types.Address) decimal.Decimal {
	return a.ledger.Credits(buyer)
}

// GetPolicy returns buyer's policy on a flight
func (a *App) GetPolicy(
	buyer types.Address,
	key types.FlightKey,
) (insurance.Policy, error) {
	return a.ledger.Policy(key, buyer)
}

func (a *App) GetPolicies(buyer types.Address) []insurance.Policy {
	return a.ledger.Policies(buyer)
}

func (a *App) GetFlightPolicies(key types.FlightKey) []insurance.Policy {
	return a.ledger.PoliciesFor(key)
}

// WithdrawCredit debits caller's credit and then pays it out of the vault.
// The debit is reversed when the payout fails.
func (a *App) WithdrawCredit(
	caller types.Address,
	amount decimal.Decimal,
) (insurance.Withdrawal, error) {
	if err := a.requireOperational(); err != nil {
		return insurance.Withdrawal{}, err
	}
	w, err := a.ledger.Withdraw(caller, amount)
	if err != nil {
		return insurance.Withdrawal{}, err
	}
	if err := a.vault.Payout(caller, amount); err != nil {
		a.ledger.Recredit(w)
		a.logger.Error(
			"payout failed",
			"buyer", caller,
			"amount", amount.String(),
			"error", err,
		)
		return insurance.Withdrawal{}, fmt.Errorf("pay out credit: %w", err)
	}
	a.publish(CreditWithdrawnEventType, CreditWithdrawnEvent{
		Buyer:     caller,
		Amount:    amount,
		Remaining: w.Remaining,
	})
	return w, nil
}
