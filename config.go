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

package flightsurety

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/z-vasconcelos/flightsurety/custody"
	"github.com/z-vasconcelos/flightsurety/oracle"
	"github.com/z-vasconcelos/flightsurety/reporter"
	"github.com/z-vasconcelos/flightsurety/surety"
	"github.com/z-vasconcelos/flightsurety/types"
)

type Config struct {
	promRegistry        prometheus.Registerer
	logger              *slog.Logger
	vault               custody.Vault
	indexSource         oracle.IndexSource
	reporterPicker      reporter.StatusPicker
	dataDir             string
	blobPlugin          string
	metadataPlugin      string
	metadataDSN         string
	owner               types.Address
	foundingAirline     types.Address
	foundingAirlineName string
	queryAPIAddress     string
	version             string
	policy              surety.Policy
	reporterCount       int
	reporterWorkers     int
	shutdownTimeout     time.Duration
	tracing             bool
	tracingStdout       bool
}

func (c *Config) validate() error {
	if c.owner == "" {
		return errors.New("contract owner is required")
	}
	if c.reporterCount < 0 {
		return fmt.Errorf("invalid reporter count: %d", c.reporterCount)
	}
	if c.policy.Quorum < 1 {
		return fmt.Errorf("invalid quorum: %d", c.policy.Quorum)
	}
	return nil
}

// ConfigOptionFunc is a type that represents functions that modify the node config
type ConfigOptionFunc func(*Config)

// NewConfig creates a new node config with the specified options
func NewConfig(opts ...ConfigOptionFunc) Config {
	c := Config{
		// Default logger will throw away logs
		// We do this so we don't have to add guards around every log operation
		logger: slog.New(slog.NewJSONHandler(io.Discard, nil)),
		policy: surety.DefaultPolicy(),
	}
	// Apply options
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

func WithLogger(logger *slog.Logger) ConfigOptionFunc {
	return func(c *Config) {
		c.logger = logger
	}
}

func WithPrometheusRegistry(registry prometheus.Registerer) ConfigOptionFunc {
	return func(c *Config) {
		c.promRegistry = registry
	}
}

// WithDataDir specifies the on-disk location of the journal and the
// metadata store. Both are kept in memory when it is empty.
func WithDataDir(dataDir string) ConfigOptionFunc {
	return func(c *Config) {
		c.dataDir = dataDir
	}
}

func WithBlobPlugin(plugin string) ConfigOptionFunc {
	return func(c *Config) {
		c.blobPlugin = plugin
	}
}

func WithMetadataPlugin(plugin string) ConfigOptionFunc {
	return func(c *Config) {
		c.metadataPlugin = plugin
	}
}

// WithMetadataDSN specifies the connection string used by the postgres and
// mysql metadata plugins
func WithMetadataDSN(dsn string) ConfigOptionFunc {
	return func(c *Config) {
		c.metadataDSN = dsn
	}
}

func WithOwner(owner types.Address) ConfigOptionFunc {
	return func(c *Config) {
		c.owner = owner
	}
}

// WithFoundingAirline specifies the airline registered at genesis. It
// defaults to the owner.
func WithFoundingAirline(addr types.Address, name string) ConfigOptionFunc {
	return func(c *Config) {
		c.foundingAirline = addr
		c.foundingAirlineName = name
	}
}

func WithPolicy(policy surety.Policy) ConfigOptionFunc {
	return func(c *Config) {
		c.policy = policy
	}
}

func WithVault(vault custody.Vault) ConfigOptionFunc {
	return func(c *Config) {
		c.vault = vault
	}
}

// WithIndexSource overrides the random source used to assign oracle indexes
func WithIndexSource(source oracle.IndexSource) ConfigOptionFunc {
	return func(c *Config) {
		c.indexSource = source
	}
}

// WithReporters enables the simulated oracle fleet. A nil picker reports
// random statuses.
func WithReporters(
	count int,
	workers int,
	picker reporter.StatusPicker,
) ConfigOptionFunc {
	return func(c *Config) {
		c.reporterCount = count
		c.reporterWorkers = workers
		c.reporterPicker = picker
	}
}

// WithQueryAPIAddress enables the read-only query API on the given address
func WithQueryAPIAddress(address string) ConfigOptionFunc {
	return func(c *Config) {
		c.queryAPIAddress = address
	}
}

func WithVersion(version string) ConfigOptionFunc {
	return func(c *Config) {
		c.version = version
	}
}

// WithTracing enables tracing. By default, spans are submitted to a HTTP(s) OTLP collector
// using the OTEL_EXPORTER_OTLP_* env vars
func WithTracing(tracing bool) ConfigOptionFunc {
	return func(c *Config) {
		c.tracing = tracing
	}
}

// WithTracingStdout enables tracing output to stdout. This also requires tracing to enabled separately. This is mostly useful for debugging
func WithTracingStdout(stdout bool) ConfigOptionFunc {
	return func(c *Config) {
		c.tracingStdout = stdout
	}
}

// WithShutdownTimeout sets the timeout for graceful shutdown
func WithShutdownTimeout(timeout time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.shutdownTimeout = timeout
	}
}
