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

package node

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	_ "net/http/pprof" // #nosec G108
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/z-vasconcelos/flightsurety"
	"github.com/z-vasconcelos/flightsurety/internal/config"
	"github.com/z-vasconcelos/flightsurety/internal/version"
	"github.com/z-vasconcelos/flightsurety/reporter"
	"github.com/z-vasconcelos/flightsurety/types"
)

// Options translates the loaded config into node options
func Options(
	cfg *config.Config,
	logger *slog.Logger,
) ([]flightsurety.ConfigOptionFunc, error) {
	policy, err := cfg.Policy()
	if err != nil {
		return nil, err
	}
	owner, err := types.ParseAddress(cfg.Owner)
	if err != nil {
		return nil, fmt.Errorf("invalid owner: %w", err)
	}
	var founder types.Address
	if cfg.FoundingAirline != "" {
		founder, err = types.ParseAddress(cfg.FoundingAirline)
		if err != nil {
			return nil, fmt.Errorf("invalid founding airline: %w", err)
		}
	}
	shutdownTimeout, err := cfg.ShutdownTimeoutDuration()
	if err != nil {
		return nil, err
	}
	fixedStatus, err := cfg.ReporterFixedStatus()
	if err != nil {
		return nil, err
	}
	var picker reporter.StatusPicker
	if fixedStatus != types.StatusUnknown {
		picker = reporter.FixedPicker(fixedStatus)
	}
	opts := []flightsurety.ConfigOptionFunc{
		flightsurety.WithLogger(logger),
		flightsurety.WithDataDir(cfg.DatabasePath),
		flightsurety.WithBlobPlugin(cfg.BlobPlugin),
		flightsurety.WithMetadataPlugin(cfg.MetadataPlugin),
		flightsurety.WithMetadataDSN(cfg.MetadataDsn),
		flightsurety.WithOwner(owner),
		flightsurety.WithFoundingAirline(founder, cfg.FoundingAirlineName),
		flightsurety.WithPolicy(policy),
		flightsurety.WithReporters(cfg.ReporterCount, cfg.ReporterWorkers, picker),
		flightsurety.WithVersion(version.Version),
		flightsurety.WithTracing(cfg.Tracing),
		flightsurety.WithTracingStdout(cfg.TracingStdout),
		flightsurety.WithShutdownTimeout(shutdownTimeout),
	}
	if cfg.ApiPort > 0 {
		opts = append(
			opts,
			flightsurety.WithQueryAPIAddress(
				fmt.Sprintf("%s:%d", cfg.BindAddr, cfg.ApiPort),
			),
		)
	}
	return opts, nil
}

// Run starts a node and the metrics listener and blocks until SIGINT or
// SIGTERM
func Run(cfg *config.Config, logger *slog.Logger) error {
	logger.Debug(fmt.Sprintf("config: %+v", cfg), "component", "node")
	opts, err := Options(cfg, logger)
	if err != nil {
		return err
	}
	shutdownTimeout, err := cfg.ShutdownTimeoutDuration()
	if err != nil {
		return err
	}
	opts = append(opts, flightsurety.WithPrometheusRegistry(prometheus.DefaultRegisterer))
	n, err := flightsurety.New(flightsurety.NewConfig(opts...))
	if err != nil {
		return err
	}

	var metricsServer *http.Server
	if cfg.MetricsPort > 0 {
		http.Handle("/metrics", promhttp.Handler())
		metricsAddr := fmt.Sprintf("%s:%d", cfg.BindAddr, cfg.MetricsPort)
		logger.Info(
			"serving prometheus metrics on "+metricsAddr,
			"component", "node",
		)
		metricsServer = &http.Server{
			Addr:              metricsAddr,
			ReadHeaderTimeout: 60 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil &&
				!errors.Is(err, http.ErrServerClosed) {
				logger.Error(
					fmt.Sprintf("failed to start metrics listener: %s", err),
					"component", "node",
				)
			}
		}()
	}
	shutdownMetrics := func() {
		if metricsServer == nil {
			return
		}
		shutdownCtx, cancel := context.WithTimeout(
			context.Background(),
			shutdownTimeout,
		)
		defer cancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics server shutdown error", "error", err)
		}
	}

	signalCtx, signalCtxStop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer signalCtxStop()

	runErr := n.Run(signalCtx)
	if runErr != nil {
		logger.Error("node error", "error", runErr)
	} else {
		logger.Info("signal received, initiating graceful shutdown")
	}
	shutdownMetrics()
	if err := n.Stop(); err != nil {
		logger.Error("shutdown errors occurred", "error", err)
		return errors.Join(runErr, err)
	}
	if runErr != nil {
		return runErr
	}
	logger.Info("shutdown complete")
	return nil
}
