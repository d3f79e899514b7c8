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

package airline

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/z-vasconcelos/flightsurety/types"
)

// State is the lifecycle state of an airline. States only move forward.
type State uint8

const (
	StateApplied State = iota + 1
	StateRegistered
	StateFunded
)

func (s State) String() string {
	switch s {
	case StateApplied:
		return "Applied"
	case StateRegistered:
		return "Registered"
	case StateFunded:
		return "Funded"
	default:
		return fmt.Sprintf("State(%d)", s)
	}
}

// AtLeast reports whether s is at or past other in the lifecycle
func (s State) AtLeast(other State) bool {
	return s >= other
}

type Airline struct {
	Address   types.Address
	Name      string
	State     State
	Funds     decimal.Decimal
	AppliedAt time.Time
	// Seq orders airlines by application
	Seq uint64
}

// Roster owns the airline records. Reads are available to any component;
// mutations are only reachable through Governance.
type Roster struct {
	mu         sync.RWMutex
	airlines   map[types.Address]*Airline
	registered int
	lastSeq    uint64
}

func newRoster() *Roster {
	return &Roster{
		airlines: make(map[types.Address]*Airline),
	}
}

// Get returns a copy of the airline record
func (r *Roster) Get(addr types.Address) (Airline, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.airlines[addr]
	if !ok {
		return Airline{}, fmt.Errorf("airline %s: %w", addr, types.ErrNotFound)
	}
	return *a, nil
}

// ByName returns the first airline, in application order, with the given name
func (r *Roster) ByName(name string) (Airline, error) {
	for _, a := range r.List() {
		if strings.EqualFold(a.Name, name) {
			return a, nil
		}
	}
	return Airline{}, fmt.Errorf("airline named %q: %w", name, types.ErrNotFound)
}

// List returns every airline in application order
func (r *Roster) List() []Airline {
	r.mu.RLock()
	ret := make([]Airline, 0, len(r.airlines))
	for _, a := range r.airlines {
		ret = append(ret, *a)
	}
	r.mu.RUnlock()
	slices.SortFunc(ret, func(a, b Airline) int {
		return cmp.Compare(a.Seq, b.Seq)
	})
	return ret
}

// RegisteredCount returns the number of airlines that are Registered or Funded
func (r *Roster) RegisteredCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.registered
}

func (r *Roster) hasState(addr types.Address, state State) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.airlines[addr]
	return ok && a.State.AtLeast(state)
}

// IsRegistered reports whether the airline is Registered or Funded
func (r *Roster) IsRegistered(addr types.Address) bool {
	return r.hasState(addr, StateRegistered)
}

// IsFunded reports whether the airline is Funded
func (r *Roster) IsFunded(addr types.Address) bool {
	return r.hasState(addr, StateFunded)
}

// add records a new airline. While fewer than bootstrapSize airlines are
// registered the new airline is admitted immediately. The count check and
// the insert happen under the same lock so concurrent applications cannot
// both pass the bootstrap limit.
func (r *Roster) add(
	addr types.Address,
	name string,
	bootstrapSize int,
	now time.Time,
) (Airline, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.airlines[addr]; ok {
		return Airline{}, fmt.Errorf("airline %s: %w", addr, ErrAlreadyApplied)
	}
	r.lastSeq++
	a := &Airline{
		Address:   addr,
		Name:      name,
		State:     StateApplied,
		Funds:     decimal.Zero,
		AppliedAt: now,
		Seq:       r.lastSeq,
	}
	if r.registered < bootstrapSize {
		a.State = StateRegistered
		r.registered++
	}
	r.airlines[addr] = a
	return *a, nil
}

// admit moves an Applied airline to Registered when quorum reports true for
// the current registered count
func (r *Roster) admit(
	addr types.Address,
	quorum func(registered int) bool,
) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.airlines[addr]
	if !ok {
		return false, fmt.Errorf("airline %s: %w", addr, types.ErrNotFound)
	}
	if a.State != StateApplied {
		return false, fmt.Errorf(
			"airline %s is %s: %w",
			addr,
			a.State,
			types.ErrInvalidState,
		)
	}
	if !quorum(r.registered) {
		return false, nil
	}
	a.State = StateRegistered
	r.registered++
	return true, nil
}

// fund adds to the airline's funds and marks it Funded
func (r *Roster) fund(addr types.Address, amount decimal.Decimal) (Airline, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.airlines[addr]
	if !ok {
		return Airline{}, fmt.Errorf("airline %s: %w", addr, types.ErrNotFound)
	}
	if !a.State.AtLeast(StateRegistered) {
		return Airline{}, fmt.Errorf(
			"airline %s is %s: %w",
			addr,
			a.State,
			types.ErrNotAuthorized,
		)
	}
	a.Funds = a.Funds.Add(amount)
	a.State = StateFunded
	return *a, nil
}

// unfund takes back funding that was never collected. The airline drops back
// to Registered when what remains is below minimum.
func (r *Roster) unfund(
	addr types.Address,
	amount decimal.Decimal,
	minimum decimal.Decimal,
) (Airline, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.airlines[addr]
	if !ok {
		return Airline{}, fmt.Errorf("airline %s: %w", addr, types.ErrNotFound)
	}
	a.Funds = decimal.Max(decimal.Zero, a.Funds.Sub(amount))
	if a.State == StateFunded && a.Funds.LessThan(minimum) {
		a.State = StateRegistered
	}
	return *a, nil
}

// restore replaces the roster contents with persisted records
func (r *Roster) restore(airlines []Airline) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.airlines = make(map[types.Address]*Airline, len(airlines))
	r.registered = 0
	r.lastSeq = 0
	for _, a := range airlines {
		tmp := a
		r.airlines[a.Address] = &tmp
		if a.State.AtLeast(StateRegistered) {
			r.registered++
		}
		r.lastSeq = max(r.lastSeq, a.Seq)
	}
}
