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

// Package custody tracks the value held on behalf of the system: airline
// funding, oracle fees and premiums in, insuree payouts out.
package custody

import (
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/z-vasconcelos/flightsurety/types"
)

// Vault moves value in and out of the pooled balance
type Vault interface {
	Deposit(from types.Address, amount decimal.Decimal) error
	Payout(to types.Address, amount decimal.Decimal) error
	Balance() decimal.Decimal
}

// MemoryVault is a Vault that only keeps accounts in memory
type MemoryVault struct {
	mu       sync.Mutex
	balance  decimal.Decimal
	deposits map[types.Address]decimal.Decimal
	payouts  map[types.Address]decimal.Decimal
}

func NewMemoryVault(opening decimal.Decimal) *MemoryVault {
	return &MemoryVault{
		balance:  opening,
		deposits: make(map[types.Address]decimal.Decimal),
		payouts:  make(map[types.Address]decimal.Decimal),
	}
}

func (v *MemoryVault) Deposit(from types.Address, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return fmt.Errorf("negative deposit %s: %w", amount, types.ErrInvalidState)
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.balance = v.balance.Add(amount)
	v.deposits[from] = v.deposits[from].Add(amount)
	return nil
}

func (v *MemoryVault) Payout(to types.Address, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("payout must be positive, got %s: %w", amount, types.ErrInvalidState)
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if amount.GreaterThan(v.balance) {
		return fmt.Errorf(
			"payout %s exceeds balance %s: %w",
			amount,
			v.balance,
			types.ErrThresholdNotMet,
		)
	}
	v.balance = v.balance.Sub(amount)
	v.payouts[to] = v.payouts[to].Add(amount)
	return nil
}

func (v *MemoryVault) Balance() decimal.Decimal {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.balance
}

// Reset sets the pooled balance, as when restoring persisted state
func (v *MemoryVault) Reset(balance decimal.Decimal) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.balance = balance
}

// Deposited returns the total deposited by an address
func (v *MemoryVault) Deposited(from types.Address) decimal.Decimal {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.deposits[from]
}

// PaidOut returns the total paid out to an address
func (v *MemoryVault) PaidOut(to types.Address) decimal.Decimal {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.payouts[to]
}
