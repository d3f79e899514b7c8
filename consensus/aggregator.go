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

package consensus

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/z-vasconcelos/flightsurety/oracle"
	"github.com/z-vasconcelos/flightsurety/types"
)

const (
	DefaultQuorum = 3
)

// FlightCatalog is the view of registered flights used by the aggregator.
// SetStatus is only ever called on round finalization.
type FlightCatalog interface {
	Exists(key types.FlightKey) bool
	SetStatus(key types.FlightKey, status types.FlightStatus) error
}

// IndexChecker reports whether a reporter holds an index
type IndexChecker interface {
	HasIndex(addr types.Address, index uint8) bool
}

type AggregatorConfig struct {
	Logger       *slog.Logger
	PromRegistry prometheus.Registerer
	Flights      FlightCatalog
	Oracles      IndexChecker
	// Source picks the index of each new status request
	Source      oracle.IndexSource
	IndexDomain int
	// Quorum is the number of matching reports that finalizes a round
	Quorum int
	Now    func() time.Time
}

// StatusRequest is issued when a round is opened for a flight. Reporters
// holding Index are expected to answer it.
type StatusRequest struct {
	Index       uint8
	Flight      types.FlightKey
	Requester   types.Address
	RequestedAt time.Time
}

// Outcome describes the effect of a submitted report
type Outcome struct {
	// Ignored is set when the round had already been finalized
	Ignored   bool
	Finalized bool
	Status    types.FlightStatus
	// Count is the number of reports matching Status in the round
	Count int
}

// Aggregator collects reports per round and finalizes a round once Quorum
// reporters agree on a status
type Aggregator struct {
	config  AggregatorConfig
	logger  *slog.Logger
	metrics *aggregatorMetrics
	mu      sync.Mutex
	rounds  map[RoundKey]*round
}

func NewAggregator(cfg AggregatorConfig) (*Aggregator, error) {
	if cfg.Flights == nil || cfg.Oracles == nil {
		return nil, errors.New("aggregator requires a flight catalog and oracle registry")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if cfg.Quorum <= 0 {
		cfg.Quorum = DefaultQuorum
	}
	if cfg.IndexDomain <= 0 || cfg.IndexDomain > 256 {
		cfg.IndexDomain = oracle.DefaultIndexDomain
	}
	if cfg.Source == nil {
		cfg.Source = oracle.NewRandSource(uint64(time.Now().UnixNano())) //nolint:gosec
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	a := &Aggregator{
		config: cfg,
		logger: cfg.Logger.With("component", "consensus"),
		rounds: make(map[RoundKey]*round),
	}
	if cfg.PromRegistry != nil {
		a.metrics = newAggregatorMetrics(cfg.PromRegistry)
	}
	return a, nil
}

// RequestStatus opens a round at a pseudo-random index for a registered
// flight. A finalized round at the same key is replaced by a fresh one so
// that the status can be refreshed; an open round is kept.
func (a *Aggregator) RequestStatus(
	flight types.FlightKey,
	requester types.Address,
) (StatusRequest, error) {
	if !a.config.Flights.Exists(flight) {
		return StatusRequest{}, fmt.Errorf("flight %s: %w", flight, types.ErrNotFound)
	}
	now := a.config.Now()
	req := StatusRequest{
		Index:       uint8(a.config.Source.Intn(a.config.IndexDomain)), //nolint:gosec
		Flight:      flight,
		Requester:   requester,
		RequestedAt: now,
	}
	key := RoundKey{Index: req.Index, Flight: flight}
	a.mu.Lock()
	r, ok := a.rounds[key]
	reopened := false
	if ok {
		r.mu.Lock()
		reopened = r.state == RoundFinalized
		r.mu.Unlock()
	}
	if !ok || reopened {
		a.rounds[key] = newRound(key, now)
		if a.metrics != nil {
			a.metrics.openRounds.Inc()
		}
	}
	a.mu.Unlock()
	if a.metrics != nil {
		a.metrics.requests.Inc()
	}
	a.logger.Debug(
		"status requested",
		"flight", flight.String(),
		"index", req.Index,
		"requester", requester,
		"reopened", reopened,
	)
	return req, nil
}

// getRound returns the round for key, creating an open one if needed
func (a *Aggregator) getRound(key RoundKey) *round {
	a.mu.Lock()
	defer a.mu.Unlock()
	r, ok := a.rounds[key]
	if !ok {
		r = newRound(key, a.config.Now())
		a.rounds[key] = r
		if a.metrics != nil {
			a.metrics.openRounds.Inc()
		}
	}
	return r
}

// SubmitReport records a reporter's status for the round identified by index
// and flight. Reports arriving after the round was finalized are accepted
// and ignored.
func (a *Aggregator) SubmitReport(
	reporter types.Address,
	index uint8,
	flight types.FlightKey,
	status types.FlightStatus,
) (Outcome, error) {
	if !status.Reportable() {
		a.reportResult("rejected")
		return Outcome{}, fmt.Errorf(
			"status %s cannot be reported: %w",
			status,
			types.ErrInvalidState,
		)
	}
	if !a.config.Oracles.HasIndex(reporter, index) {
		a.reportResult("rejected")
		return Outcome{}, fmt.Errorf(
			"reporter %s does not hold index %d: %w",
			reporter,
			index,
			types.ErrIndexMismatch,
		)
	}
	if !a.config.Flights.Exists(flight) {
		a.reportResult("rejected")
		return Outcome{}, fmt.Errorf("flight %s: %w", flight, types.ErrNotFound)
	}
	r := a.getRound(RoundKey{Index: index, Flight: flight})
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == RoundFinalized {
		a.reportResult("ignored")
		a.logger.Debug(
			"ignoring report for finalized round",
			"flight", flight.String(),
			"index", index,
			"reporter", reporter,
			"status", status.String(),
		)
		return Outcome{
			Ignored: true,
			Status:  r.status,
			Count:   r.tally[r.status],
		}, nil
	}
	count := r.record(reporter, status)
	a.reportResult("accepted")
	ret := Outcome{Status: status, Count: count}
	if count < a.config.Quorum {
		return ret, nil
	}
	if err := a.config.Flights.SetStatus(flight, status); err != nil {
		return Outcome{}, fmt.Errorf("finalize round: %w", err)
	}
	r.state = RoundFinalized
	r.status = status
	r.finalizedAt = a.config.Now()
	ret.Finalized = true
	if a.metrics != nil {
		a.metrics.openRounds.Dec()
		a.metrics.finalized.WithLabelValues(status.String()).Inc()
	}
	a.logger.Info(
		"flight status finalized",
		"flight", flight.String(),
		"index", index,
		"status", status.String(),
		"reports", count,
	)
	return ret, nil
}

// Round returns a snapshot of a round
func (a *Aggregator) Round(key RoundKey) (RoundInfo, error) {
	a.mu.Lock()
	r, ok := a.rounds[key]
	a.mu.Unlock()
	if !ok {
		return RoundInfo{}, fmt.Errorf("round %s: %w", key, types.ErrNotFound)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return RoundInfo{
		Key:         r.key,
		State:       r.state,
		Status:      r.status,
		Reports:     maps.Clone(r.reports),
		OpenedAt:    r.openedAt,
		FinalizedAt: r.finalizedAt,
	}, nil
}

// OpenRounds returns the number of rounds that have not been finalized
func (a *Aggregator) OpenRounds() int {
	a.mu.Lock()
	rounds := make([]*round, 0, len(a.rounds))
	for _, r := range a.rounds {
		rounds = append(rounds, r)
	}
	a.mu.Unlock()
	ret := 0
	for _, r := range rounds {
		r.mu.Lock()
		if r.state == RoundOpen {
			ret++
		}
		r.mu.Unlock()
	}
	return ret
}

func (a *Aggregator) reportResult(result string) {
	if a.metrics != nil {
		a.metrics.reports.WithLabelValues(result).Inc()
	}
}
