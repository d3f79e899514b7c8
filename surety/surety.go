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

// Package surety wires airline governance, the oracle registry, the flight
// catalog, status consensus and the insurance ledger behind the operations
// exposed to callers. Every caller-facing operation takes the caller's
// address explicitly.
package surety

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"go.uber.org/atomic"

	"github.com/z-vasconcelos/flightsurety/airline"
	"github.com/z-vasconcelos/flightsurety/consensus"
	"github.com/z-vasconcelos/flightsurety/custody"
	"github.com/z-vasconcelos/flightsurety/event"
	"github.com/z-vasconcelos/flightsurety/flight"
	"github.com/z-vasconcelos/flightsurety/insurance"
	"github.com/z-vasconcelos/flightsurety/oracle"
	"github.com/z-vasconcelos/flightsurety/types"
)

// Policy holds the tunable rules of the system
type Policy struct {
	BootstrapSize       int
	MinFunding          decimal.Decimal
	FundedParticipation bool
	RegistrationFee     decimal.Decimal
	IndexDomain         int
	IndexesPerOracle    int
	Quorum              int
	MaxPremium          decimal.Decimal
	CreditMultiplier    decimal.Decimal
}

func DefaultPolicy() Policy {
	return Policy{
		BootstrapSize:    airline.DefaultBootstrapSize,
		MinFunding:       airline.DefaultMinFunding,
		RegistrationFee:  oracle.DefaultRegistrationFee,
		IndexDomain:      oracle.DefaultIndexDomain,
		IndexesPerOracle: oracle.DefaultIndexesPerOracle,
		Quorum:           consensus.DefaultQuorum,
		MaxPremium:       insurance.DefaultMaxPremium,
		CreditMultiplier: insurance.DefaultCreditMultiplier,
	}
}

type Config struct {
	Logger       *slog.Logger
	PromRegistry prometheus.Registerer
	// EventBus is created, and stopped by Close, when not provided
	EventBus *event.EventBus
	// Vault defaults to an empty in-memory vault
	Vault               custody.Vault
	Source              oracle.IndexSource
	Owner               types.Address
	FoundingAirline     types.Address
	FoundingAirlineName string
	Policy              Policy
	Now                 func() time.Time
}

type App struct {
	config      Config
	logger      *slog.Logger
	bus         *event.EventBus
	ownsBus     bool
	vault       custody.Vault
	governance  *airline.Governance
	oracles     *oracle.Registry
	flights     *flight.Catalog
	aggregator  *consensus.Aggregator
	ledger      *insurance.Ledger
	operational *atomic.Bool
}

func New(cfg Config) (*App, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if cfg.Owner == "" {
		return nil, errors.New("contract owner is required")
	}
	if cfg.FoundingAirline == "" {
		cfg.FoundingAirline = cfg.Owner
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Vault == nil {
		cfg.Vault = custody.NewMemoryVault(decimal.Zero)
	}
	app := &App{
		config:      cfg,
		logger:      cfg.Logger.With("component", "surety"),
		bus:         cfg.EventBus,
		vault:       cfg.Vault,
		operational: atomic.NewBool(true),
	}
	if app.bus == nil {
		app.bus = event.NewEventBus(cfg.PromRegistry, cfg.Logger)
		app.ownsBus = true
	}
	var err error
	app.governance, err = airline.NewGovernance(airline.GovernanceConfig{
		Logger:              cfg.Logger,
		PromRegistry:        cfg.PromRegistry,
		Founder:             cfg.FoundingAirline,
		FounderName:         cfg.FoundingAirlineName,
		BootstrapSize:       cfg.Policy.BootstrapSize,
		MinFunding:          cfg.Policy.MinFunding,
		FundedParticipation: cfg.Policy.FundedParticipation,
		Now:                 cfg.Now,
	})
	if err != nil {
		return nil, fmt.Errorf("create governance: %w", err)
	}
	app.oracles = oracle.NewRegistry(oracle.RegistryConfig{
		Logger:           cfg.Logger,
		PromRegistry:     cfg.PromRegistry,
		Source:           cfg.Source,
		RegistrationFee:  cfg.Policy.RegistrationFee,
		IndexDomain:      cfg.Policy.IndexDomain,
		IndexesPerOracle: cfg.Policy.IndexesPerOracle,
		Now:              cfg.Now,
	})
	app.flights = flight.NewCatalog(flight.CatalogConfig{
		Logger:       cfg.Logger,
		PromRegistry: cfg.PromRegistry,
		Airlines:     app.governance.Roster(),
		Now:          cfg.Now,
	})
	app.aggregator, err = consensus.NewAggregator(consensus.AggregatorConfig{
		Logger:       cfg.Logger,
		PromRegistry: cfg.PromRegistry,
		Flights:      app.flights,
		Oracles:      app.oracles,
		Source:       cfg.Source,
		IndexDomain:  app.oracles.IndexDomain(),
		Quorum:       cfg.Policy.Quorum,
		Now:          cfg.Now,
	})
	if err != nil {
		return nil, fmt.Errorf("create aggregator: %w", err)
	}
	app.ledger, err = insurance.NewLedger(insurance.LedgerConfig{
		Logger:           cfg.Logger,
		PromRegistry:     cfg.PromRegistry,
		Flights:          app.flights,
		MaxPremium:       cfg.Policy.MaxPremium,
		CreditMultiplier: cfg.Policy.CreditMultiplier,
		CoveredStatus:    types.StatusLateAirline,
		Now:              cfg.Now,
	})
	if err != nil {
		return nil, fmt.Errorf("create ledger: %w", err)
	}
	return app, nil
}

// EventBus returns the bus on which the application publishes its events
func (a *App) EventBus() *event.EventBus {
	return a.bus
}

// Owner returns the contract owner
func (a *App) Owner() types.Address {
	return a.config.Owner
}

// Close stops the event bus when the application created it
func (a *App) Close() {
	if a.ownsBus {
		a.bus.Stop()
	}
}

func (a *App) publish(eventType event.EventType, data any) {
	a.bus.Publish(event.NewEvent(eventType, data))
}

func (a *App) requireOperational() error {
	if !a.operational.Load() {
		return types.ErrNotOperational
	}
	return nil
}

// IsOperational reports whether mutating operations are accepted
func (a *App) IsOperational() bool {
	return a.operational.Load()
}

// SetOperational pauses or resumes mutating operations. Only the owner may
// change the operating status.
func (a *App) SetOperational(caller types.Address, operational bool) error {
	if caller != a.config.Owner {
		return fmt.Errorf(
			"%s is not the contract owner: %w",
			caller,
			types.ErrNotAuthorized,
		)
	}
	if a.operational.Swap(operational) == operational {
		return nil
	}
	a.logger.Warn(
		"operating status changed",
		"operational", operational,
		"by", caller,
	)
	a.publish(OperationalEventType, OperationalEvent{
		Operational: operational,
		By:          caller,
	})
	return nil
}

// ContractBalance returns the value held by the vault
func (a *App) ContractBalance() decimal.Decimal {
	return a.vault.Balance()
}

// OnStatusRequested calls fn for every status request. The returned function
// cancels the registration.
func (a *App) OnStatusRequested(fn func(consensus.StatusRequest)) func() {
	subId := a.bus.SubscribeFunc(
		func(evt event.Event) {
			e, ok := evt.Data.(StatusRequestedEvent)
			if !ok {
				return
			}
			fn(consensus.StatusRequest{
				Index:       e.Index,
				Flight:      e.Flight,
				Requester:   e.Requester,
				RequestedAt: e.RequestedAt,
			})
		},
		StatusRequestedEventType,
	)
	return func() {
		a.bus.Unsubscribe(subId)
	}
}
