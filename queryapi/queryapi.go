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

// Package queryapi serves a read-only JSON view of the application state
package queryapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"

	"github.com/z-vasconcelos/flightsurety/airline"
	"github.com/z-vasconcelos/flightsurety/flight"
	"github.com/z-vasconcelos/flightsurety/insurance"
	"github.com/z-vasconcelos/flightsurety/oracle"
	"github.com/z-vasconcelos/flightsurety/types"
)

const DefaultListenAddress = ":3000"

// Node is the read side of the application that the API exposes
type Node interface {
	IsOperational() bool
	ContractBalance() decimal.Decimal
	GetAirlines() []airline.Airline
	GetAirline(types.Address) (airline.Airline, error)
	GetVoteCount(types.Address) (int, error)
	GetFlights(types.Address) []flight.Flight
	GetAllFlights() []flight.Flight
	GetFlight(types.FlightKey) (flight.Flight, error)
	GetOracles() []oracle.Oracle
	GetMyIndexes(types.Address) ([]uint8, error)
	GetInsureeCredits(types.Address) decimal.Decimal
	GetPolicies(types.Address) []insurance.Policy
}

type Config struct {
	ListenAddress string
	Version       string
}

// QueryAPI is the read-only REST server
type QueryAPI struct {
	config     Config
	logger     *slog.Logger
	node       Node
	httpServer *http.Server
	mu         sync.Mutex
}

func New(
	cfg Config,
	node Node,
	logger *slog.Logger,
) *QueryAPI {
	if logger == nil {
		logger = slog.New(
			slog.NewJSONHandler(io.Discard, nil),
		)
	}
	logger = logger.With("component", "queryapi")
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = DefaultListenAddress
	}
	return &QueryAPI{
		config: cfg,
		logger: logger,
		node:   node,
	}
}

// Handler returns the router serving every API route
func (q *QueryAPI) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/", q.handleRoot)
	r.Get("/health", q.handleHealth)
	r.Route("/api/v0", func(r chi.Router) {
		r.Get("/status", q.handleStatus)
		r.Route("/airlines", func(r chi.Router) {
			r.Get("/", q.handleAirlines)
			r.Route("/{address}", func(r chi.Router) {
				r.Get("/", q.handleAirline)
				r.Get("/flights", q.handleAirlineFlights)
				r.Get("/flights/{code}/{timestamp}", q.handleFlight)
			})
		})
		r.Get("/oracles/{address}/indexes", q.handleOracleIndexes)
		r.Get("/insurees/{address}/credits", q.handleInsureeCredits)
		r.Get("/insurees/{address}/policies", q.handleInsureePolicies)
	})
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "Not Found", "no such route")
	})
	return r
}

// Start binds the listener and serves in a background goroutine until ctx
// is done or Stop is called
func (q *QueryAPI) Start(
	ctx context.Context,
) error {
	q.mu.Lock()
	if q.httpServer != nil {
		q.mu.Unlock()
		return errors.New("server already started")
	}
	server := &http.Server{
		Addr:              q.config.ListenAddress,
		Handler:           q.Handler(),
		ReadHeaderTimeout: 60 * time.Second,
	}
	q.httpServer = server
	q.mu.Unlock()

	ln, err := net.Listen("tcp", server.Addr)
	if err != nil {
		q.mu.Lock()
		q.httpServer = nil
		q.mu.Unlock()
		return fmt.Errorf("failed to listen for query API server: %w", err)
	}
	go func() {
		if err := server.Serve(ln); err != nil &&
			!errors.Is(err, http.ErrServerClosed) {
			q.logger.Error(
				"query API server error",
				"error", err,
			)
		}
	}()
	q.logger.Info(
		"query API listener started",
		"address", ln.Addr().String(),
	)

	go func() {
		<-ctx.Done()
		//nolint:contextcheck
		shutdownCtx, cancel := context.WithTimeout(
			context.Background(),
			30*time.Second,
		)
		defer cancel()
		//nolint:contextcheck
		if err := q.Stop(shutdownCtx); err != nil {
			q.logger.Error(
				"failed to shutdown query API server on context cancellation",
				"error", err,
			)
		}
	}()
	return nil
}

// Stop gracefully shuts down the HTTP server
func (q *QueryAPI) Stop(
	ctx context.Context,
) error {
	q.mu.Lock()
	srv := q.httpServer
	q.httpServer = nil
	q.mu.Unlock()

	if srv != nil {
		q.logger.Debug("shutting down query API server")
		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to shutdown query API server: %w", err)
		}
	}
	return nil
}
