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

package badger

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/z-vasconcelos/flightsurety/database/types"
)

const DefaultGcInterval = 5 * time.Minute

// BlobStoreBadger stores all data in badger. Data is not persisted when no
// data directory is configured.
type BlobStoreBadger struct {
	promRegistry prometheus.Registerer
	db           *badger.DB
	logger       *slog.Logger
	metrics      *blobMetrics
	gcTicker     *time.Ticker
	gcStopCh     chan struct{}
	dataDir      string
	gcInterval   time.Duration
	gcWg         sync.WaitGroup
	mu           sync.RWMutex
	syncWrites   bool
}

// New creates a new database
func New(opts ...BadgerOptionFunc) (*BlobStoreBadger, error) {
	db := &BlobStoreBadger{
		gcInterval: DefaultGcInterval,
	}
	for _, opt := range opts {
		opt(db)
	}
	if db.logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		db.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return db, nil
}

func (d *BlobStoreBadger) open() error {
	var badgerOpts badger.Options
	if d.dataDir == "" {
		// No dataDir, use in-memory config
		badgerOpts = badger.DefaultOptions("").
			WithInMemory(true)
		d.gcInterval = 0
	} else {
		// Make sure that we can read data dir, and create if it doesn't exist
		if _, err := os.Stat(d.dataDir); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("failed to read data dir: %w", err)
			}
			if err := os.MkdirAll(d.dataDir, 0o755); err != nil {
				return fmt.Errorf("failed to create data dir: %w", err)
			}
		}
		badgerOpts = badger.DefaultOptions(filepath.Join(d.dataDir, "blob")).
			WithCompression(options.Snappy).
			WithSyncWrites(d.syncWrites)
	}
	badgerOpts = badgerOpts.
		WithLogger(NewBadgerLogger(d.logger)).
		// The default INFO logging is a bit verbose
		WithLoggingLevel(badger.WARNING)
	blobDb, err := badger.Open(badgerOpts)
	if err != nil {
		return err
	}
	d.db = blobDb
	if d.promRegistry != nil {
		d.metrics = newBlobMetrics(d.promRegistry)
	}
	if d.gcInterval > 0 {
		d.gcTicker = time.NewTicker(d.gcInterval)
		d.gcStopCh = make(chan struct{})
		d.gcWg.Add(1)
		go d.blobGc(d.gcTicker, d.gcStopCh)
	}
	return nil
}

func (d *BlobStoreBadger) blobGc(t *time.Ticker, stop <-chan struct{}) {
	defer d.gcWg.Done()
	for {
		select {
		case <-t.C:
			for {
				err := d.db.RunValueLogGC(0.5)
				if err == nil {
					// Run it again if it just ran successfully
					continue
				}
				if !errors.Is(err, badger.ErrNoRewrite) {
					d.logger.Warn(
						"blob DB: GC failure",
						"component", "database",
						"error", err,
					)
				}
				break
			}
		case <-stop:
			return
		}
	}
}

// Start implements the plugin.Plugin interface
func (d *BlobStoreBadger) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.db != nil {
		return nil
	}
	return d.open()
}

// Stop implements the plugin.Plugin interface
func (d *BlobStoreBadger) Stop() error {
	return d.Close()
}

// Close stops background GC and closes the badger database
func (d *BlobStoreBadger) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.gcTicker != nil {
		d.gcTicker.Stop()
		close(d.gcStopCh)
		// Wait for GC goroutine to finish
		d.gcWg.Wait()
		d.gcTicker = nil
	}
	if d.db == nil {
		return nil
	}
	err := d.db.Close()
	d.db = nil
	return err
}

// DB returns the database handle
func (d *BlobStoreBadger) DB() *badger.DB {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.db
}

func (d *BlobStoreBadger) handle() (*badger.DB, error) {
	db := d.DB()
	if db == nil {
		return nil, types.ErrBlobStoreUnavailable
	}
	return db, nil
}

// Get retrieves the value stored under key
func (d *BlobStoreBadger) Get(key []byte) ([]byte, error) {
	db, err := d.handle()
	if err != nil {
		return nil, err
	}
	d.countOp("get")
	var ret []byte
	err = db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return types.ErrBlobKeyNotFound
			}
			return err
		}
		ret, err = item.ValueCopy(nil)
		return err
	})
	return ret, err
}

// Set stores a key-value pair
func (d *BlobStoreBadger) Set(key []byte, val []byte) error {
	db, err := d.handle()
	if err != nil {
		return err
	}
	d.countOp("set")
	return db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, val)
	})
}

// Iterate calls fn for every key with prefix at or after start
func (d *BlobStoreBadger) Iterate(
	prefix []byte,
	start []byte,
	fn func(key, val []byte) error,
) error {
	db, err := d.handle()
	if err != nil {
		return err
	}
	d.countOp("iterate")
	if len(start) == 0 || bytes.Compare(start, prefix) < 0 {
		start = prefix
	}
	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{
			Prefix:         prefix,
			PrefetchValues: true,
			PrefetchSize:   100,
		})
		defer it.Close()
		for it.Seek(start); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if err := fn(item.KeyCopy(nil), val); err != nil {
				return err
			}
		}
		return nil
	})
	if errors.Is(err, types.ErrStopIteration) {
		return nil
	}
	return err
}

// Last returns the greatest key with prefix and its value
func (d *BlobStoreBadger) Last(prefix []byte) ([]byte, []byte, error) {
	db, err := d.handle()
	if err != nil {
		return nil, nil, err
	}
	d.countOp("last")
	var key, val []byte
	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{
			Prefix:  prefix,
			Reverse: true,
		})
		defer it.Close()
		// Reverse iteration seeks to the greatest key at or below the seek key
		seek := append(bytes.Clone(prefix), bytes.Repeat([]byte{0xff}, 16)...)
		it.Seek(seek)
		if !it.ValidForPrefix(prefix) {
			return types.ErrBlobKeyNotFound
		}
		item := it.Item()
		key = item.KeyCopy(nil)
		var err error
		val, err = item.ValueCopy(nil)
		return err
	})
	return key, val, err
}

func (d *BlobStoreBadger) countOp(op string) {
	if d.metrics != nil {
		d.metrics.ops.WithLabelValues(op).Inc()
	}
}
