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

// Package reporter runs a simulated fleet of oracles that answers flight
// status requests
package reporter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/z-vasconcelos/flightsurety/consensus"
	"github.com/z-vasconcelos/flightsurety/oracle"
	"github.com/z-vasconcelos/flightsurety/types"
)

const (
	DefaultCount         = 20
	DefaultWorkers       = 4
	DefaultAddressPrefix = "0xoracle"
	requestQueueSize     = 128
)

// Surety is the part of the application the fleet talks to
type Surety interface {
	RegisterOracle(types.Address, decimal.Decimal) ([]uint8, error)
	GetMyIndexes(types.Address) ([]uint8, error)
	SubmitOracleResponse(
		types.Address,
		uint8,
		types.FlightKey,
		types.FlightStatus,
	) (consensus.Outcome, error)
	OnStatusRequested(func(consensus.StatusRequest)) func()
}

type Config struct {
	Logger       *slog.Logger
	PromRegistry prometheus.Registerer
	Surety       Surety
	Picker       StatusPicker
	Fee          decimal.Decimal
	// AddressPrefix is followed by the oracle number to form its address
	AddressPrefix string
	Count         int
	Workers       int
}

// Member is one oracle of the fleet
type Member struct {
	Address types.Address
	Indexes []uint8
}

type Reporter struct {
	config  Config
	logger  *slog.Logger
	metrics *reporterMetrics
	members []Member
	queue   chan consensus.StatusRequest
	cancel  context.CancelFunc
	unsub   func()
	group   *errgroup.Group
	mu      sync.Mutex
	running bool
}

func New(cfg Config) (*Reporter, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if cfg.Surety == nil {
		return nil, errors.New("surety is required")
	}
	if cfg.Count <= 0 {
		cfg.Count = DefaultCount
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.Fee.IsZero() {
		cfg.Fee = oracle.DefaultRegistrationFee
	}
	if cfg.AddressPrefix == "" {
		cfg.AddressPrefix = DefaultAddressPrefix
	}
	if cfg.Picker == nil {
		cfg.Picker = NewRandomPicker(uint64(time.Now().UnixNano())) //nolint:gosec
	}
	r := &Reporter{
		config: cfg,
		logger: cfg.Logger.With("component", "reporter"),
	}
	if cfg.PromRegistry != nil {
		r.metrics = newReporterMetrics(cfg.PromRegistry)
	}
	return r, nil
}

// Start registers the fleet and begins answering status requests until ctx
// is done or Stop is called
func (r *Reporter) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return errors.New("reporter already running")
	}
	members := make([]Member, 0, r.config.Count)
	for i := range r.config.Count {
		addr := types.Address(fmt.Sprintf("%s%02d", r.config.AddressPrefix, i))
		// Oracles registered by an earlier run keep their indexes
		indexes, err := r.config.Surety.GetMyIndexes(addr)
		if errors.Is(err, types.ErrNotFound) {
			indexes, err = r.config.Surety.RegisterOracle(addr, r.config.Fee)
		}
		if err != nil {
			return fmt.Errorf("register oracle %s: %w", addr, err)
		}
		members = append(members, Member{Address: addr, Indexes: indexes})
	}
	r.members = members
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.queue = make(chan consensus.StatusRequest, requestQueueSize)
	g, gctx := errgroup.WithContext(ctx)
	r.group = g
	for range r.config.Workers {
		g.Go(func() error {
			r.worker(gctx)
			return nil
		})
	}
	queue := r.queue
	r.unsub = r.config.Surety.OnStatusRequested(func(req consensus.StatusRequest) {
		select {
		case queue <- req:
		case <-gctx.Done():
		}
	})
	r.running = true
	r.logger.Info(
		"oracle fleet started",
		"oracles", len(members),
		"workers", r.config.Workers,
	)
	return nil
}

// Stop cancels the subscription and waits for the workers to exit
func (r *Reporter) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.running {
		return nil
	}
	// Cancel first so a handler blocked on a full queue returns
	r.cancel()
	r.unsub()
	err := r.group.Wait()
	r.running = false
	return err
}

// Members returns the oracles of the fleet
func (r *Reporter) Members() []Member {
	r.mu.Lock()
	defer r.mu.Unlock()
	ret := make([]Member, len(r.members))
	for i, m := range r.members {
		ret[i] = Member{Address: m.Address, Indexes: slices.Clone(m.Indexes)}
	}
	return ret
}

func (r *Reporter) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-r.queue:
			r.answer(req)
		}
	}
}

// answer submits a report from every member holding the requested index,
// once for each matching index it holds
func (r *Reporter) answer(req consensus.StatusRequest) {
	for _, m := range r.members {
		status := r.config.Picker.Pick(req, m.Address)
		for _, idx := range m.Indexes {
			if idx != req.Index {
				continue
			}
			out, err := r.config.Surety.SubmitOracleResponse(
				m.Address,
				idx,
				req.Flight,
				status,
			)
			if err != nil {
				r.count("error")
				r.logger.Debug(
					"report rejected",
					"oracle", m.Address,
					"flight", req.Flight.String(),
					"index", idx,
					"error", err,
				)
				continue
			}
			switch {
			case out.Ignored:
				r.count("ignored")
			case out.Finalized:
				r.count("finalized")
				r.logger.Info(
					"flight status finalized",
					"flight", req.Flight.String(),
					"status", out.Status.String(),
				)
			default:
				r.count("accepted")
			}
		}
	}
}

func (r *Reporter) count(result string) {
	if r.metrics != nil {
		r.metrics.submissions.WithLabelValues(result).Inc()
	}
}
