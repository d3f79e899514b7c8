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

package blob

import (
	"fmt"

	"github.com/z-vasconcelos/flightsurety/database/plugin"
	// Register the bundled blob plugins
	_ "github.com/z-vasconcelos/flightsurety/database/plugin/blob/badger"
)

// BlobStore is an ordered key/value store
type BlobStore interface {
	plugin.Plugin
	Close() error
	Get(key []byte) ([]byte, error)
	Set(key []byte, val []byte) error
	// Iterate calls fn for each key with the given prefix that sorts at or
	// after start, in key order
	Iterate(prefix []byte, start []byte, fn func(key, val []byte) error) error
	// Last returns the greatest key with the given prefix
	Last(prefix []byte) ([]byte, []byte, error)
}

// New returns the started blob plugin selected by name
func New(pluginName string, opts plugin.Options) (BlobStore, error) {
	// Get and start the plugin
	p, err := plugin.StartPlugin(plugin.PluginTypeBlob, pluginName, opts)
	if err != nil {
		return nil, err
	}

	// Type assert to BlobStore interface
	blobStore, ok := p.(BlobStore)
	if !ok {
		_ = p.Stop()
		return nil, fmt.Errorf(
			"plugin '%s' does not implement BlobStore interface",
			pluginName,
		)
	}

	return blobStore, nil
}
