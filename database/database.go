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

	"github.com/z-vasconcelos/flightsurety/database/plugin"
	"github.com/z-vasconcelos/flightsurety/database/plugin/blob"
	"github.com/z-vasconcelos/flightsurety/database/plugin/metadata"
)

const (
	DefaultBlobPlugin     = "badger"
	DefaultMetadataPlugin = "sqlite"
)

type Config struct {
	Logger         *slog.Logger
	PromRegistry   prometheus.Registerer
	BlobPlugin     string
	MetadataPlugin string
	// DataDir selects on-disk storage. An empty value keeps everything in
	// memory.
	DataDir string
	// MetadataDSN is the connection string for networked metadata plugins
	MetadataDSN string
}

type Database struct {
	config   Config
	logger   *slog.Logger
	blob     blob.BlobStore
	metadata metadata.MetadataStore
	// journalMu serializes appends so that sequence numbers stay dense
	journalMu sync.Mutex
	lastSeq   uint64
}

// New opens the blob and metadata stores selected by the config
func New(cfg *Config) (*Database, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if cfg.BlobPlugin == "" {
		cfg.BlobPlugin = DefaultBlobPlugin
	}
	if cfg.MetadataPlugin == "" {
		cfg.MetadataPlugin = DefaultMetadataPlugin
	}
	opts := plugin.Options{
		Logger:       cfg.Logger,
		PromRegistry: cfg.PromRegistry,
		DataDir:      cfg.DataDir,
		DSN:          cfg.MetadataDSN,
	}
	blobDb, err := blob.New(cfg.BlobPlugin, opts)
	if err != nil {
		return nil, fmt.Errorf("open blob store: %w", err)
	}
	metadataDb, err := metadata.New(cfg.MetadataPlugin, opts)
	if err != nil {
		_ = blobDb.Close()
		return nil, fmt.Errorf("open metadata store: %w", err)
	}
	db := &Database{
		config:   *cfg,
		logger:   cfg.Logger.With("component", "database"),
		blob:     blobDb,
		metadata: metadataDb,
	}
	if err := db.init(); err != nil {
		// Database is available for recovery, so return it with error
		return db, err
	}
	return db, nil
}

func (d *Database) init() error {
	lastSeq, err := d.loadLastSeq()
	if err != nil {
		return fmt.Errorf("read journal tip: %w", err)
	}
	d.lastSeq = lastSeq
	d.logger.Debug(
		"database opened",
		"blob", d.config.BlobPlugin,
		"metadata", d.config.MetadataPlugin,
		"data_dir", d.config.DataDir,
		"journal_seq", lastSeq,
	)
	return nil
}

// Blob returns the underling blob store instance
func (d *Database) Blob() blob.BlobStore {
	return d.blob
}

// Metadata returns the underlying metadata store instance
func (d *Database) Metadata() metadata.MetadataStore {
	return d.metadata
}

// DataDir returns the path to the data directory used for storage
func (d *Database) DataDir() string {
	return d.config.DataDir
}

// Logger returns the logger instance
func (d *Database) Logger() *slog.Logger {
	return d.logger
}

// Close cleans up the database connections
func (d *Database) Close() error {
	var err error
	// Close metadata
	metadataErr := d.Metadata().Close()
	err = errors.Join(err, metadataErr)
	// Close blob
	blobErr := d.Blob().Close()
	err = errors.Join(err, blobErr)
	return err
}
