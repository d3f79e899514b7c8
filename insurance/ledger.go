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
	"cmp"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"github.com/z-vasconcelos/flightsurety/types"
)

var (
	DefaultMaxPremium       = decimal.NewFromInt(1)
	DefaultCreditMultiplier = decimal.RequireFromString("1.5")
)

var (
	ErrInsufficientCredit = fmt.Errorf(
		"withdrawal exceeds credit: %w",
		types.ErrThresholdNotMet,
	)
	ErrFlightClosed = fmt.Errorf(
		"flight no longer accepts premiums: %w",
		types.ErrInvalidState,
	)
)

// PremiumCapError is returned when a purchase would take the total paid for
// a flight past the cap
type PremiumCapError struct {
	Paid      decimal.Decimal
	Requested decimal.Decimal
	Cap       decimal.Decimal
}

func (e *PremiumCapError) Error() string {
	return fmt.Sprintf(
		"premium cap exceeded: paid %s, requested %s, cap %s",
		e.Paid,
		e.Requested,
		e.Cap,
	)
}

func (e *PremiumCapError) Unwrap() error {
	return types.ErrThresholdNotMet
}

type Policy struct {
	Flight      types.FlightKey
	Buyer       types.Address
	Paid        decimal.Decimal
	Credit      decimal.Decimal
	Credited    bool
	PurchasedAt time.Time
	CreditedAt  time.Time
}

// Credit is a payout issued to a buyer when a flight finalizes with the
// covered status
type Credit struct {
	Buyer  types.Address
	Flight types.FlightKey
	Amount decimal.Decimal
}

// Debit is the part of a withdrawal taken from one policy
type Debit struct {
	Flight types.FlightKey
	Amount decimal.Decimal
}

type Withdrawal struct {
	Buyer     types.Address
	Amount    decimal.Decimal
	Remaining decimal.Decimal
	Debits    []Debit
}

// FlightLookup returns the current status of a registered flight
type FlightLookup interface {
	Status(key types.FlightKey) (types.FlightStatus, error)
}

type LedgerConfig struct {
	Logger           *slog.Logger
	PromRegistry     prometheus.Registerer
	Flights          FlightLookup
	MaxPremium       decimal.Decimal
	CreditMultiplier decimal.Decimal
	// CoveredStatus is the finalized status that triggers credits
	CoveredStatus types.FlightStatus
	Now           func() time.Time
}

type account struct {
	mu       sync.Mutex
	policies map[types.FlightKey]*Policy
}

// Ledger tracks premiums and credits per buyer. Each buyer's policies are
// guarded by their own lock, so purchases, credits and withdrawals for one
// buyer are serialized while different buyers proceed in parallel.
//
// A flight stops accepting premiums once any round for it finalizes.
type Ledger struct {
	config   LedgerConfig
	logger   *slog.Logger
	metrics  *ledgerMetrics
	mu       sync.RWMutex
	accounts map[types.Address]*account
	byFlight map[types.FlightKey]map[types.Address]struct{}
	closed   map[types.FlightKey]struct{}
}

func NewLedger(cfg LedgerConfig) (*Ledger, error) {
	if cfg.Flights == nil {
		return nil, errors.New("ledger requires a flight lookup")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if !cfg.MaxPremium.IsPositive() {
		cfg.MaxPremium = DefaultMaxPremium
	}
	if !cfg.CreditMultiplier.IsPositive() {
		cfg.CreditMultiplier = DefaultCreditMultiplier
	}
	if cfg.CoveredStatus == types.StatusUnknown {
		cfg.CoveredStatus = types.StatusLateAirline
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	l := &Ledger{
		config:   cfg,
		logger:   cfg.Logger.With("component", "insurance"),
		accounts: make(map[types.Address]*account),
		byFlight: make(map[types.FlightKey]map[types.Address]struct{}),
		closed:   make(map[types.FlightKey]struct{}),
	}
	if cfg.PromRegistry != nil {
		l.metrics = newLedgerMetrics(cfg.PromRegistry)
	}
	return l, nil
}

func (l *Ledger) account(buyer types.Address, create bool) *account {
	if !create {
		l.mu.RLock()
		defer l.mu.RUnlock()
		return l.accounts[buyer]
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	acct, ok := l.accounts[buyer]
	if !ok {
		acct = &account{policies: make(map[types.FlightKey]*Policy)}
		l.accounts[buyer] = acct
	}
	return acct
}

// admit indexes buyer against a flight that still accepts premiums. It runs
// under the same lock OnFinalized takes to close the flight, so a purchase
// either lands before the buyers are collected or is rejected.
func (l *Ledger) admit(flight types.FlightKey, buyer types.Address) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	status, err := l.config.Flights.Status(flight)
	if err != nil {
		return err
	}
	_, closed := l.closed[flight]
	if closed || status != types.StatusUnknown {
		return fmt.Errorf(
			"flight %s already finalized as %s: %w",
			flight,
			status,
			ErrFlightClosed,
		)
	}
	buyers, ok := l.byFlight[flight]
	if !ok {
		buyers = make(map[types.Address]struct{})
		l.byFlight[flight] = buyers
	}
	buyers[buyer] = struct{}{}
	return nil
}

// closeFlight stops purchases on a flight and returns the buyers holding a
// policy on it
func (l *Ledger) closeFlight(flight types.FlightKey) []types.Address {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed[flight] = struct{}{}
	buyers := make([]types.Address, 0, len(l.byFlight[flight]))
	for buyer := range l.byFlight[flight] {
		buyers = append(buyers, buyer)
	}
	return buyers
}

// Buy adds amount to the buyer's premium for a flight. The cap applies to
// the accumulated total, and a rejected purchase leaves the policy as it was.
func (l *Ledger) Buy(
	flight types.FlightKey,
	buyer types.Address,
	amount decimal.Decimal,
) (Policy, error) {
	if _, err := l.config.Flights.Status(flight); err != nil {
		return Policy{}, err
	}
	if !amount.IsPositive() {
		return Policy{}, fmt.Errorf(
			"premium must be positive, got %s: %w",
			amount,
			types.ErrInvalidState,
		)
	}
	acct := l.account(buyer, true)
	acct.mu.Lock()
	defer acct.mu.Unlock()
	p, ok := acct.policies[flight]
	paid := decimal.Zero
	if ok {
		if p.Credited {
			return Policy{}, fmt.Errorf(
				"policy for %s already credited: %w",
				flight,
				types.ErrInvalidState,
			)
		}
		paid = p.Paid
	}
	total := paid.Add(amount)
	if total.GreaterThan(l.config.MaxPremium) {
		return Policy{}, &PremiumCapError{
			Paid:      paid,
			Requested: amount,
			Cap:       l.config.MaxPremium,
		}
	}
	if err := l.admit(flight, buyer); err != nil {
		return Policy{}, err
	}
	if !ok {
		p = &Policy{
			Flight:      flight,
			Buyer:       buyer,
			Credit:      decimal.Zero,
			PurchasedAt: l.config.Now(),
		}
		acct.policies[flight] = p
	}
	p.Paid = total
	if l.metrics != nil {
		l.metrics.premiums.Add(amount.InexactFloat64())
		if !ok {
			l.metrics.policies.Inc()
		}
	}
	l.logger.Info(
		"insurance purchased",
		"flight", flight.String(),
		"buyer", buyer,
		"amount", amount.String(),
		"paid", total.String(),
	)
	return *p, nil
}

// OnFinalized closes the flight to new premiums and, when status is the
// covered status, issues credits for every uncredited policy on it. A policy
// is credited at most once, from the amount paid, whatever later rounds
// finalize.
func (l *Ledger) OnFinalized(
	flight types.FlightKey,
	status types.FlightStatus,
) []Credit {
	buyers := l.closeFlight(flight)
	if status != l.config.CoveredStatus {
		return nil
	}
	slices.Sort(buyers)
	var ret []Credit
	now := l.config.Now()
	for _, buyer := range buyers {
		acct := l.account(buyer, false)
		if acct == nil {
			continue
		}
		acct.mu.Lock()
		p, ok := acct.policies[flight]
		if ok && !p.Credited {
			amount := p.Paid.Mul(l.config.CreditMultiplier)
			p.Credit = p.Credit.Add(amount)
			p.Credited = true
			p.CreditedAt = now
			ret = append(ret, Credit{Buyer: buyer, Flight: flight, Amount: amount})
		}
		acct.mu.Unlock()
	}
	for _, c := range ret {
		if l.metrics != nil {
			l.metrics.credits.Add(c.Amount.InexactFloat64())
		}
		l.logger.Info(
			"credit issued",
			"flight", flight.String(),
			"buyer", c.Buyer,
			"amount", c.Amount.String(),
		)
	}
	return ret
}

// Withdraw debits amount from the buyer's aggregate credit. It never moves
// value; the caller pays out after a successful debit.
func (l *Ledger) Withdraw(
	buyer types.Address,
	amount decimal.Decimal,
) (Withdrawal, error) {
	if !amount.IsPositive() {
		return Withdrawal{}, fmt.Errorf(
			"withdrawal must be positive, got %s: %w",
			amount,
			types.ErrInvalidState,
		)
	}
	acct := l.account(buyer, false)
	if acct == nil {
		return Withdrawal{}, fmt.Errorf(
			"requested %s, credit 0: %w",
			amount,
			ErrInsufficientCredit,
		)
	}
	acct.mu.Lock()
	defer acct.mu.Unlock()
	policies := sortedPolicies(acct.policies)
	available := decimal.Zero
	for _, p := range policies {
		available = available.Add(p.Credit)
	}
	if amount.GreaterThan(available) {
		return Withdrawal{}, fmt.Errorf(
			"requested %s, credit %s: %w",
			amount,
			available,
			ErrInsufficientCredit,
		)
	}
	ret := Withdrawal{
		Buyer:     buyer,
		Amount:    amount,
		Remaining: available.Sub(amount),
	}
	remaining := amount
	for _, p := range policies {
		if remaining.IsZero() {
			break
		}
		if !p.Credit.IsPositive() {
			continue
		}
		take := decimal.Min(p.Credit, remaining)
		p.Credit = p.Credit.Sub(take)
		remaining = remaining.Sub(take)
		ret.Debits = append(ret.Debits, Debit{Flight: p.Flight, Amount: take})
	}
	if l.metrics != nil {
		l.metrics.withdrawals.Add(amount.InexactFloat64())
	}
	l.logger.Info(
		"credit withdrawn",
		"buyer", buyer,
		"amount", amount.String(),
		"remaining", ret.Remaining.String(),
	)
	return ret, nil
}

// Refund takes back a purchase whose premium was never collected. A policy
// left with nothing paid is removed.
func (l *Ledger) Refund(flight types.FlightKey, buyer types.Address, amount decimal.Decimal) {
	acct := l.account(buyer, false)
	if acct == nil {
		return
	}
	acct.mu.Lock()
	defer acct.mu.Unlock()
	p, ok := acct.policies[flight]
	if !ok {
		return
	}
	amount = decimal.Min(amount, p.Paid)
	p.Paid = p.Paid.Sub(amount)
	if p.Credited {
		// Credited in the meantime: the uncollected part must not pay out
		p.Credit = decimal.Max(
			decimal.Zero,
			p.Credit.Sub(amount.Mul(l.config.CreditMultiplier)),
		)
	}
	removed := false
	if p.Paid.IsZero() && p.Credit.IsZero() {
		delete(acct.policies, flight)
		l.mu.Lock()
		delete(l.byFlight[flight], buyer)
		l.mu.Unlock()
		removed = true
	}
	if l.metrics != nil {
		l.metrics.premiums.Sub(amount.InexactFloat64())
		if removed {
			l.metrics.policies.Dec()
		}
	}
	l.logger.Warn(
		"premium refunded",
		"flight", flight.String(),
		"buyer", buyer,
		"amount", amount.String(),
	)
}

// Recredit reverses a withdrawal whose payout failed
func (l *Ledger) Recredit(w Withdrawal) {
	acct := l.account(w.Buyer, false)
	if acct == nil {
		return
	}
	acct.mu.Lock()
	defer acct.mu.Unlock()
	for _, d := range w.Debits {
		if p, ok := acct.policies[d.Flight]; ok {
			p.Credit = p.Credit.Add(d.Amount)
		}
	}
	if l.metrics != nil {
		l.metrics.withdrawals.Sub(w.Amount.InexactFloat64())
	}
	l.logger.Warn(
		"withdrawal reversed",
		"buyer", w.Buyer,
		"amount", w.Amount.String(),
	)
}

// Value returns the premium paid by buyer for a flight
func (l *Ledger) Value(flight types.FlightKey, buyer types.Address) decimal.Decimal {
	p, err := l.Policy(flight, buyer)
	if err != nil {
		return decimal.Zero
	}
	return p.Paid
}

// Policy returns a buyer's policy for a flight
func (l *Ledger) Policy(flight types.FlightKey, buyer types.Address) (Policy, error) {
	acct := l.account(buyer, false)
	if acct != nil {
		acct.mu.Lock()
		defer acct.mu.Unlock()
		if p, ok := acct.policies[flight]; ok {
			return *p, nil
		}
	}
	return Policy{}, fmt.Errorf(
		"policy for %s on %s: %w",
		buyer,
		flight,
		types.ErrNotFound,
	)
}

// Credits returns the buyer's aggregate withdrawable credit
func (l *Ledger) Credits(buyer types.Address) decimal.Decimal {
	ret := decimal.Zero
	for _, p := range l.Policies(buyer) {
		ret = ret.Add(p.Credit)
	}
	return ret
}

// Policies returns a buyer's policies ordered by flight hash
func (l *Ledger) Policies(buyer types.Address) []Policy {
	acct := l.account(buyer, false)
	if acct == nil {
		return []Policy{}
	}
	acct.mu.Lock()
	defer acct.mu.Unlock()
	policies := sortedPolicies(acct.policies)
	ret := make([]Policy, 0, len(policies))
	for _, p := range policies {
		ret = append(ret, *p)
	}
	return ret
}

// PoliciesFor returns every policy on a flight ordered by buyer
func (l *Ledger) PoliciesFor(flight types.FlightKey) []Policy {
	l.mu.RLock()
	buyers := make([]types.Address, 0, len(l.byFlight[flight]))
	for buyer := range l.byFlight[flight] {
		buyers = append(buyers, buyer)
	}
	l.mu.RUnlock()
	slices.Sort(buyers)
	ret := make([]Policy, 0, len(buyers))
	for _, buyer := range buyers {
		if p, err := l.Policy(flight, buyer); err == nil {
			ret = append(ret, p)
		}
	}
	return ret
}

// All returns every policy ordered by buyer then flight hash
func (l *Ledger) All() []Policy {
	l.mu.RLock()
	buyers := make([]types.Address, 0, len(l.accounts))
	for buyer := range l.accounts {
		buyers = append(buyers, buyer)
	}
	l.mu.RUnlock()
	slices.Sort(buyers)
	var ret []Policy
	for _, buyer := range buyers {
		ret = append(ret, l.Policies(buyer)...)
	}
	return ret
}

// Restore replaces the ledger contents with persisted policies
func (l *Ledger) Restore(policies []Policy) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.accounts = make(map[types.Address]*account)
	l.byFlight = make(map[types.FlightKey]map[types.Address]struct{})
	l.closed = make(map[types.FlightKey]struct{})
	for _, p := range policies {
		acct, ok := l.accounts[p.Buyer]
		if !ok {
			acct = &account{policies: make(map[types.FlightKey]*Policy)}
			l.accounts[p.Buyer] = acct
		}
		tmp := p
		acct.policies[p.Flight] = &tmp
		buyers, ok := l.byFlight[p.Flight]
		if !ok {
			buyers = make(map[types.Address]struct{})
			l.byFlight[p.Flight] = buyers
		}
		buyers[p.Buyer] = struct{}{}
	}
	if l.metrics != nil {
		l.metrics.policies.Set(float64(len(policies)))
	}
}

func sortedPolicies(policies map[types.FlightKey]*Policy) []*Policy {
	ret := make([]*Policy, 0, len(policies))
	for _, p := range policies {
		ret = append(ret, p)
	}
	slices.SortFunc(ret, func(a, b *Policy) int {
		return cmp.Compare(a.Flight.Hash(), b.Flight.Hash())
	})
	return ret
}
