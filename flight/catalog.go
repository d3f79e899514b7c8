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

package flight

import (
	"cmp"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/z-vasconcelos/flightsurety/types"
)

var ErrAlreadyRegistered = fmt.Errorf(
	"flight already registered: %w",
	types.ErrAlreadyExists,
)

type Flight struct {
	Key          types.FlightKey
	Origin       string
	Destination  string
	Status       types.FlightStatus
	RegisteredAt time.Time
	UpdatedAt    time.Time
}

// FundingChecker reports whether an airline may register flights
type FundingChecker interface {
	IsFunded(addr types.Address) bool
}

type CatalogConfig struct {
	Logger       *slog.Logger
	PromRegistry prometheus.Registerer
	Airlines     FundingChecker
	Now          func() time.Time
}

// Catalog holds registered flights and their latest finalized status
type Catalog struct {
	config   CatalogConfig
	logger   *slog.Logger
	mu       sync.RWMutex
	flights  map[types.FlightKey]*Flight
	byHash   map[string]types.FlightKey
	statuses *prometheus.CounterVec
}

func NewCatalog(cfg CatalogConfig) *Catalog {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	c := &Catalog{
		config:  cfg,
		logger:  cfg.Logger.With("component", "flight"),
		flights: make(map[types.FlightKey]*Flight),
		byHash:  make(map[string]types.FlightKey),
	}
	if cfg.PromRegistry != nil {
		c.statuses = promauto.With(cfg.PromRegistry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "flightsurety_flight_status_updates_total",
				Help: "finalized flight status updates by status",
			},
			[]string{"status"},
		)
	}
	return c
}

// Register adds a flight for a funded airline
func (c *Catalog) Register(
	airline types.Address,
	code string,
	origin string,
	destination string,
	timestamp int64,
) (Flight, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return Flight{}, fmt.Errorf("empty flight code: %w", types.ErrInvalidState)
	}
	if timestamp <= 0 {
		return Flight{}, fmt.Errorf(
			"invalid flight timestamp %d: %w",
			timestamp,
			types.ErrInvalidState,
		)
	}
	if c.config.Airlines == nil || !c.config.Airlines.IsFunded(airline) {
		return Flight{}, fmt.Errorf(
			"airline %s is not funded: %w",
			airline,
			types.ErrNotAuthorized,
		)
	}
	key := types.FlightKey{Airline: airline, Code: code, Timestamp: timestamp}
	now := c.config.Now()
	f := &Flight{
		Key:          key,
		Origin:       origin,
		Destination:  destination,
		Status:       types.StatusUnknown,
		RegisteredAt: now,
		UpdatedAt:    now,
	}
	c.mu.Lock()
	if _, ok := c.flights[key]; ok {
		c.mu.Unlock()
		return Flight{}, fmt.Errorf("flight %s: %w", key, ErrAlreadyRegistered)
	}
	c.flights[key] = f
	c.byHash[key.Hash()] = key
	c.mu.Unlock()
	c.logger.Info(
		"flight registered",
		"flight", key.String(),
		"origin", origin,
		"destination", destination,
	)
	return *f, nil
}

// Get returns the flight for a key
func (c *Catalog) Get(key types.FlightKey) (Flight, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	f, ok := c.flights[key]
	if !ok {
		return Flight{}, fmt.Errorf("flight %s: %w", key, types.ErrNotFound)
	}
	return *f, nil
}

// Exists reports whether the flight is registered
func (c *Catalog) Exists(key types.FlightKey) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.flights[key]
	return ok
}

// ByHash returns the flight whose key hashes to hash
func (c *Catalog) ByHash(hash string) (Flight, error) {
	c.mu.RLock()
	key, ok := c.byHash[strings.ToLower(hash)]
	c.mu.RUnlock()
	if !ok {
		return Flight{}, fmt.Errorf("flight hash %s: %w", hash, types.ErrNotFound)
	}
	return c.Get(key)
}

// Status returns the latest finalized status of a flight
func (c *Catalog) Status(key types.FlightKey) (types.FlightStatus, error) {
	f, err := c.Get(key)
	if err != nil {
		return types.StatusUnknown, err
	}
	return f.Status, nil
}

// ByAirline returns the flights of an airline ordered by departure then code
func (c *Catalog) ByAirline(airline types.Address) []Flight {
	c.mu.RLock()
	ret := make([]Flight, 0)
	for key, f := range c.flights {
		if key.Airline == airline {
			ret = append(ret, *f)
		}
	}
	c.mu.RUnlock()
	sortFlights(ret)
	return ret
}

// List returns all flights ordered by departure then code
func (c *Catalog) List() []Flight {
	c.mu.RLock()
	ret := make([]Flight, 0, len(c.flights))
	for _, f := range c.flights {
		ret = append(ret, *f)
	}
	c.mu.RUnlock()
	sortFlights(ret)
	return ret
}

// SetStatus records a finalized status. It is called by the consensus
// aggregator only, and the newest finalized value wins.
func (c *Catalog) SetStatus(key types.FlightKey, status types.FlightStatus) error {
	c.mu.Lock()
	f, ok := c.flights[key]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("flight %s: %w", key, types.ErrNotFound)
	}
	f.Status = status
	f.UpdatedAt = c.config.Now()
	c.mu.Unlock()
	if c.statuses != nil {
		c.statuses.WithLabelValues(status.String()).Inc()
	}
	c.logger.Info(
		"flight status updated",
		"flight", key.String(),
		"status", status.String(),
	)
	return nil
}

// Restore replaces the catalog contents with persisted records
func (c *Catalog) Restore(flights []Flight) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flights = make(map[types.FlightKey]*Flight, len(flights))
	c.byHash = make(map[string]types.FlightKey, len(flights))
	for _, f := range flights {
		tmp := f
		c.flights[f.Key] = &tmp
		c.byHash[f.Key.Hash()] = f.Key
	}
}

func sortFlights(flights []Flight) {
	slices.SortFunc(flights, func(a, b Flight) int {
		return cmp.Or(
			cmp.Compare(a.Key.Timestamp, b.Key.Timestamp),
			cmp.Compare(a.Key.Code, b.Key.Code),
			cmp.Compare(a.Key.Airline, b.Key.Airline),
		)
	})
}
