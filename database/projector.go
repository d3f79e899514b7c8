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
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"github.com/z-vasconcelos/flightsurety/airline"
	"github.com/z-vasconcelos/flightsurety/database/models"
	"github.com/z-vasconcelos/flightsurety/event"
	"github.com/z-vasconcelos/flightsurety/flight"
	"github.com/z-vasconcelos/flightsurety/insurance"
	"github.com/z-vasconcelos/flightsurety/oracle"
	"github.com/z-vasconcelos/flightsurety/surety"
	"github.com/z-vasconcelos/flightsurety/types"
)

// ProjectorCursor names the journal cursor kept by the projector
const ProjectorCursor = "projector"

// StateReader is the read side of the application used to refresh projected
// records
type StateReader interface {
	GetAirline(types.Address) (airline.Airline, error)
	GetVoters(types.Address) ([]types.Address, error)
	GetOracle(types.Address) (oracle.Oracle, error)
	GetFlight(types.FlightKey) (flight.Flight, error)
	GetPolicy(types.Address, types.FlightKey) (insurance.Policy, error)
	GetPolicies(types.Address) []insurance.Policy
	GetFlightPolicies(types.FlightKey) []insurance.Policy
	IsOperational() bool
	ContractBalance() decimal.Decimal
}

type ProjectorConfig struct {
	Logger       *slog.Logger
	PromRegistry prometheus.Registerer
	EventBus     *event.EventBus
	State        StateReader
	Database     *Database
}

// Projector journals every application event and keeps the metadata store
// in step with the application state. Events are handled one at a time in
// publish order.
type Projector struct {
	config  ProjectorConfig
	logger  *slog.Logger
	metrics *projectorMetrics
	subId   event.EventSubscriberId
	doneCh  chan struct{}
	mu      sync.Mutex
	running bool
}

func NewProjector(cfg ProjectorConfig) (*Projector, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if cfg.EventBus == nil {
		return nil, errors.New("event bus is required")
	}
	if cfg.State == nil {
		return nil, errors.New("state reader is required")
	}
	if cfg.Database == nil {
		return nil, errors.New("database is required")
	}
	p := &Projector{
		config: cfg,
		logger: cfg.Logger.With("component", "projector"),
	}
	if cfg.PromRegistry != nil {
		p.metrics = newProjectorMetrics(cfg.PromRegistry)
	}
	return p, nil
}

// Start subscribes to application events and starts the worker
func (p *Projector) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return errors.New("projector already running")
	}
	// Record the contract row even before the first event
	if err := p.saveContract(); err != nil {
		return err
	}
	subId, evtCh := p.config.EventBus.Subscribe(surety.EventTypes...)
	p.subId = subId
	p.doneCh = make(chan struct{})
	p.running = true
	go p.run(evtCh, p.doneCh)
	return nil
}

// Stop unsubscribes and waits until already delivered events are handled
func (p *Projector) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return
	}
	p.config.EventBus.Unsubscribe(p.subId)
	<-p.doneCh
	p.running = false
}

func (p *Projector) run(evtCh <-chan event.Event, doneCh chan struct{}) {
	defer close(doneCh)
	for evt := range evtCh {
		if err := p.handle(evt); err != nil {
			if p.metrics != nil {
				p.metrics.errors.Inc()
			}
			p.logger.Error(
				"failed to project event",
				"type", evt.Type,
				"error", err,
			)
		}
	}
}

func (p *Projector) handle(evt event.Event) error {
	entry, err := p.config.Database.AppendJournal(evt)
	if err != nil {
		return err
	}
	if err := p.project(evt); err != nil {
		return err
	}
	if err := p.saveContract(); err != nil {
		return err
	}
	md := p.config.Database.Metadata()
	if err := md.SetJournalCursor(ProjectorCursor, entry.Seq); err != nil {
		return fmt.Errorf("advance journal cursor: %w", err)
	}
	if p.metrics != nil {
		p.metrics.events.WithLabelValues(string(evt.Type)).Inc()
		p.metrics.journalSeq.Set(float64(entry.Seq))
	}
	p.logger.Debug(
		"projected event",
		"type", evt.Type,
		"seq", entry.Seq,
	)
	return nil
}

func (p *Projector) project(evt event.Event) error {
	switch e := evt.Data.(type) {
	case surety.AirlineAppliedEvent:
		return p.saveAirline(e.Airline)
	case surety.AirlineRegisteredEvent:
		return p.saveAirline(e.Airline)
	case surety.VoteRecordedEvent:
		if err := p.saveAirline(e.Candidate); err != nil {
			return err
		}
		return p.saveVotes(e.Candidate)
	case surety.AirlineFundedEvent:
		return p.saveAirline(e.Airline)
	case surety.OracleRegisteredEvent:
		o, err := p.config.State.GetOracle(e.Oracle)
		if err != nil {
			return err
		}
		return p.config.Database.Metadata().SaveOracle(models.NewOracle(o))
	case surety.FlightRegisteredEvent:
		return p.saveFlight(e.Flight)
	case surety.StatusFinalizedEvent:
		if err := p.saveFlight(e.Flight); err != nil {
			return err
		}
		return p.savePolicies(p.config.State.GetFlightPolicies(e.Flight))
	case surety.InsurancePurchasedEvent:
		return p.savePolicy(e.Buyer, e.Flight)
	case surety.CreditIssuedEvent:
		return p.savePolicy(e.Buyer, e.Flight)
	case surety.CreditWithdrawnEvent:
		return p.savePolicies(p.config.State.GetPolicies(e.Buyer))
	case surety.StatusRequestedEvent, surety.OperationalEvent:
		// Journal and contract row only
		return nil
	default:
		return fmt.Errorf("unexpected event payload %T", evt.Data)
	}
}

func (p *Projector) saveAirline(addr types.Address) error {
	a, err := p.config.State.GetAirline(addr)
	if err != nil {
		return err
	}
	return p.config.Database.Metadata().SaveAirline(models.NewAirline(a))
}

func (p *Projector) saveVotes(candidate types.Address) error {
	voters, err := p.config.State.GetVoters(candidate)
	if err != nil {
		return err
	}
	tmp := make([]string, len(voters))
	for i, v := range voters {
		tmp[i] = string(v)
	}
	return p.config.Database.Metadata().SaveVotes(string(candidate), tmp)
}

func (p *Projector) saveFlight(key types.FlightKey) error {
	f, err := p.config.State.GetFlight(key)
	if err != nil {
		return err
	}
	return p.config.Database.Metadata().SaveFlight(models.NewFlight(f))
}

func (p *Projector) savePolicy(buyer types.Address, key types.FlightKey) error {
	pol, err := p.config.State.GetPolicy(buyer, key)
	if err != nil {
		return err
	}
	return p.config.Database.Metadata().SavePolicy(models.NewPolicy(pol))
}

func (p *Projector) savePolicies(policies []insurance.Policy) error {
	for _, pol := range policies {
		if err := p.config.Database.Metadata().SavePolicy(models.NewPolicy(pol)); err != nil {
			return err
		}
	}
	return nil
}

func (p *Projector) saveContract() error {
	return p.config.Database.Metadata().SaveContract(models.Contract{
		Operational: p.config.State.IsOperational(),
		Balance:     p.config.State.ContractBalance(),
	})
}
