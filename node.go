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
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/z-vasconcelos/flightsurety/database"
	"github.com/z-vasconcelos/flightsurety/event"
	"github.com/z-vasconcelos/flightsurety/queryapi"
	"github.com/z-vasconcelos/flightsurety/reporter"
	"github.com/z-vasconcelos/flightsurety/surety"
)

const DefaultShutdownTimeout = 30 * time.Second

type Node struct {
	eventBus      *event.EventBus
	db            *database.Database
	app           *surety.App
	projector     *database.Projector
	reporter      *reporter.Reporter
	queryAPI      *queryapi.QueryAPI
	shutdownFuncs []func(context.Context) error
	config        Config
	done          chan struct{}
	mu            sync.Mutex
	started       bool
	shutdownOnce  sync.Once
}

func New(cfg Config) (*Node, error) {
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	n := &Node{
		config:   cfg,
		eventBus: event.NewEventBus(cfg.promRegistry, cfg.logger),
		done:     make(chan struct{}),
	}
	return n, nil
}

// Run starts the node and blocks until ctx is done or Stop is called
func (n *Node) Run(ctx context.Context) error {
	if err := n.Start(ctx); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
	case <-n.done:
	}
	return nil
}

// Start opens the database, restores the persisted state and starts every
// enabled service
func (n *Node) Start(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.started {
		return errors.New("node already started")
	}
	n.started = true
	// Configure tracing
	if n.config.tracing {
		if err := n.setupTracing(ctx); err != nil {
			return err
		}
	}
	// Load database
	db, err := database.New(&database.Config{
		Logger:         n.config.logger,
		PromRegistry:   n.config.promRegistry,
		BlobPlugin:     n.config.blobPlugin,
		MetadataPlugin: n.config.metadataPlugin,
		DataDir:        n.config.dataDir,
		MetadataDSN:    n.config.metadataDSN,
	})
	if db != nil {
		n.db = db
	}
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	// Load application state
	app, err := surety.New(surety.Config{
		Logger:              n.config.logger,
		PromRegistry:        n.config.promRegistry,
		EventBus:            n.eventBus,
		Vault:               n.config.vault,
		Source:              n.config.indexSource,
		Owner:               n.config.owner,
		FoundingAirline:     n.config.foundingAirline,
		FoundingAirlineName: n.config.foundingAirlineName,
		Policy:              n.config.policy,
	})
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}
	n.app = app
	snap, err := db.LoadSnapshot()
	if err != nil {
		return fmt.Errorf("failed to load snapshot: %w", err)
	}
	if !snap.Empty() {
		if err := app.Restore(snap); err != nil {
			return fmt.Errorf("failed to restore snapshot: %w", err)
		}
	}
	// Persist every change from here on
	n.projector, err = database.NewProjector(database.ProjectorConfig{
		Logger:       n.config.logger,
		PromRegistry: n.config.promRegistry,
		EventBus:     n.eventBus,
		State:        app,
		Database:     db,
	})
	if err != nil {
		return fmt.Errorf("failed to create projector: %w", err)
	}
	if err := n.projector.Start(); err != nil {
		return fmt.Errorf("failed to start projector: %w", err)
	}
	// Simulated oracle fleet
	if n.config.reporterCount > 0 {
		n.reporter, err = reporter.New(reporter.Config{
			Logger:       n.config.logger,
			PromRegistry: n.config.promRegistry,
			Surety:       app,
			Picker:       n.config.reporterPicker,
			Fee:          n.config.policy.RegistrationFee,
			Count:        n.config.reporterCount,
			Workers:      n.config.reporterWorkers,
		})
		if err != nil {
			return fmt.Errorf("failed to create reporter: %w", err)
		}
		if err := n.reporter.Start(ctx); err != nil {
			return fmt.Errorf("failed to start reporter: %w", err)
		}
	}
	// Query API
	if n.config.queryAPIAddress != "" {
		n.queryAPI = queryapi.New(
			queryapi.Config{
				ListenAddress: n.config.queryAPIAddress,
				Version:       n.config.version,
			},
			app,
			n.config.logger,
		)
		if err := n.queryAPI.Start(ctx); err != nil {
			return fmt.Errorf("failed to start query API: %w", err)
		}
	}
	n.config.logger.Info(
		"node started",
		"component", "node",
		"airlines", len(app.GetAirlines()),
		"journal_seq", db.JournalSeq(),
	)
	return nil
}

// App returns the application once the node has started
func (n *Node) App() *surety.App {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.app
}

// Database returns the database once the node has started
func (n *Node) Database() *database.Database {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.db
}

func (n *Node) Stop() error {
	var err error
	n.shutdownOnce.Do(func() {
		err = n.shutdown()
	})
	return err
}

func (n *Node) shutdown() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	shutdownTimeout := DefaultShutdownTimeout
	if n.config.shutdownTimeout > 0 {
		shutdownTimeout = n.config.shutdownTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var err error

	n.config.logger.Debug("starting graceful shutdown", "component", "node")

	// Phase 1: Stop accepting new work
	if n.queryAPI != nil {
		if stopErr := n.queryAPI.Stop(ctx); stopErr != nil {
			err = errors.Join(err, fmt.Errorf("query API shutdown: %w", stopErr))
		}
	}
	if n.reporter != nil {
		if stopErr := n.reporter.Stop(); stopErr != nil {
			err = errors.Join(err, fmt.Errorf("reporter shutdown: %w", stopErr))
		}
	}

	// Phase 2: Flush state and close database
	if n.projector != nil {
		n.projector.Stop()
	}
	if n.app != nil {
		n.app.Close()
	}
	if n.eventBus != nil {
		n.eventBus.Stop()
	}
	if n.db != nil {
		if closeErr := n.db.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("database close: %w", closeErr))
		}
	}

	// Phase 3: Cleanup resources
	for _, fn := range n.shutdownFuncs {
		if fnErr := fn(ctx); fnErr != nil {
			err = errors.Join(err, fmt.Errorf("shutdown function: %w", fnErr))
		}
	}
	n.shutdownFuncs = nil

	n.config.logger.Debug("graceful shutdown complete", "component", "node")
	close(n.done)
	return err
}
