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

package oracle

import (
	"cmp"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"

	"github.com/z-vasconcelos/flightsurety/types"
)

const (
	DefaultIndexDomain      = 10
	DefaultIndexesPerOracle = 3
)

var DefaultRegistrationFee = decimal.NewFromInt(1)

var ErrInsufficientFee = fmt.Errorf(
	"registration fee not met: %w",
	types.ErrThresholdNotMet,
)

type Oracle struct {
	Address      types.Address
	Indexes      []uint8
	RegisteredAt time.Time
}

type RegistryConfig struct {
	Logger          *slog.Logger
	PromRegistry    prometheus.Registerer
	Source          IndexSource
	RegistrationFee decimal.Decimal
	// IndexDomain bounds assigned indexes to [0, IndexDomain)
	IndexDomain      int
	IndexesPerOracle int
	Now              func() time.Time
}

// Registry assigns each paying oracle a fixed set of indexes. An oracle may
// only report for rounds whose index it holds.
type Registry struct {
	config     RegistryConfig
	logger     *slog.Logger
	mu         sync.RWMutex
	oracles    map[types.Address]Oracle
	registered prometheus.Gauge
}

func NewRegistry(cfg RegistryConfig) *Registry {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if cfg.IndexDomain <= 0 || cfg.IndexDomain > 256 {
		cfg.IndexDomain = DefaultIndexDomain
	}
	if cfg.IndexesPerOracle <= 0 {
		cfg.IndexesPerOracle = DefaultIndexesPerOracle
	}
	if cfg.RegistrationFee.IsZero() {
		cfg.RegistrationFee = DefaultRegistrationFee
	}
	if cfg.Source == nil {
		cfg.Source = NewRandSource(uint64(time.Now().UnixNano())) //nolint:gosec
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	r := &Registry{
		config:  cfg,
		logger:  cfg.Logger.With("component", "oracle"),
		oracles: make(map[types.Address]Oracle),
	}
	if cfg.PromRegistry != nil {
		r.registered = promauto.With(cfg.PromRegistry).NewGauge(
			prometheus.GaugeOpts{
				Name: "flightsurety_oracles_registered",
				Help: "current number of registered oracles",
			},
		)
	}
	return r
}

// IndexDomain returns the exclusive upper bound of assignable indexes
func (r *Registry) IndexDomain() int {
	return r.config.IndexDomain
}

// Register assigns indexes to an oracle that paid at least the registration
// fee. Registering again replaces the previous indexes.
func (r *Registry) Register(
	addr types.Address,
	feePaid decimal.Decimal,
) (Oracle, error) {
	if feePaid.LessThan(r.config.RegistrationFee) {
		return Oracle{}, fmt.Errorf(
			"paid %s, fee %s: %w",
			feePaid,
			r.config.RegistrationFee,
			ErrInsufficientFee,
		)
	}
	indexes := make([]uint8, r.config.IndexesPerOracle)
	for i := range indexes {
		indexes[i] = uint8(r.config.Source.Intn(r.config.IndexDomain)) //nolint:gosec
	}
	o := Oracle{
		Address:      addr,
		Indexes:      indexes,
		RegisteredAt: r.config.Now(),
	}
	r.mu.Lock()
	_, replaced := r.oracles[addr]
	r.oracles[addr] = o
	count := len(r.oracles)
	r.mu.Unlock()
	if r.registered != nil {
		r.registered.Set(float64(count))
	}
	r.logger.Debug(
		"oracle registered",
		"oracle", addr,
		"indexes", fmt.Sprint(indexes),
		"replaced", replaced,
	)
	return cloneOracle(o), nil
}

// Revert undoes the registration o whose fee could not be collected. The
// previous record is put back when there was one. Nothing changes when a
// later registration has already replaced o.
func (r *Registry) Revert(o Oracle, prev Oracle, hadPrev bool) {
	r.mu.Lock()
	cur, ok := r.oracles[o.Address]
	if !ok ||
		!cur.RegisteredAt.Equal(o.RegisteredAt) ||
		!slices.Equal(cur.Indexes, o.Indexes) {
		r.mu.Unlock()
		return
	}
	if hadPrev {
		r.oracles[o.Address] = cloneOracle(prev)
	} else {
		delete(r.oracles, o.Address)
	}
	count := len(r.oracles)
	r.mu.Unlock()
	if r.registered != nil {
		r.registered.Set(float64(count))
	}
	r.logger.Warn(
		"oracle registration reverted",
		"oracle", o.Address,
		"restored", hadPrev,
	)
}

// Get returns the oracle record
func (r *Registry) Get(addr types.Address) (Oracle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.oracles[addr]
	if !ok {
		return Oracle{}, fmt.Errorf("oracle %s: %w", addr, types.ErrNotFound)
	}
	return cloneOracle(o), nil
}

// IndexesOf returns the indexes assigned to an oracle
func (r *Registry) IndexesOf(addr types.Address) ([]uint8, error) {
	o, err := r.Get(addr)
	if err != nil {
		return nil, err
	}
	return o.Indexes, nil
}

// HasIndex reports whether the oracle is registered and holds the index
func (r *Registry) HasIndex(addr types.Address, index uint8) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.oracles[addr]
	return ok && slices.Contains(o.Indexes, index)
}

// Count returns the number of registered oracles
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.oracles)
}

// List returns every registered oracle ordered by address
func (r *Registry) List() []Oracle {
	r.mu.RLock()
	ret := make([]Oracle, 0, len(r.oracles))
	for _, o := range r.oracles {
		ret = append(ret, cloneOracle(o))
	}
	r.mu.RUnlock()
	slices.SortFunc(ret, func(a, b Oracle) int {
		return cmp.Compare(a.Address, b.Address)
	})
	return ret
}

// Restore replaces the registry contents with persisted records
func (r *Registry) Restore(oracles []Oracle) {
	r.mu.Lock()
	r.oracles = make(map[types.Address]Oracle, len(oracles))
	for _, o := range oracles {
		r.oracles[o.Address] = cloneOracle(o)
	}
	count := len(r.oracles)
	r.mu.Unlock()
	if r.registered != nil {
		r.registered.Set(float64(count))
	}
}

func cloneOracle(o Oracle) Oracle {
	o.Indexes = slices.Clone(o.Indexes)
	return o
}
