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

package metadata

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/z-vasconcelos/flightsurety/database/models"
	"github.com/z-vasconcelos/flightsurety/database/plugin"
	// Register the bundled metadata plugins
	_ "github.com/z-vasconcelos/flightsurety/database/plugin/metadata/mysql"
	_ "github.com/z-vasconcelos/flightsurety/database/plugin/metadata/postgres"
	_ "github.com/z-vasconcelos/flightsurety/database/plugin/metadata/sqlite"
)

// MetadataStore holds the queryable projection of the application state
type MetadataStore interface {
	plugin.Plugin
	Close() error
	DB() *gorm.DB

	SaveAirline(models.Airline) error
	SaveVotes(candidate string, voters []string) error
	SaveOracle(models.Oracle) error
	SaveFlight(models.Flight) error
	SavePolicy(models.Policy) error
	SaveContract(models.Contract) error
	SetJournalCursor(name string, seq uint64) error

	GetAirlines() ([]models.Airline, error)
	GetVotes() (map[string][]string, error)
	GetOracles() ([]models.Oracle, error)
	GetFlights() ([]models.Flight, error)
	GetPolicies() ([]models.Policy, error)
	GetContract() (models.Contract, bool, error)
	GetJournalCursor(name string) (uint64, error)
}

// New returns the started metadata plugin selected by name
func New(pluginName string, opts plugin.Options) (MetadataStore, error) {
	p, err := plugin.StartPlugin(plugin.PluginTypeMetadata, pluginName, opts)
	if err != nil {
		return nil, err
	}
	store, ok := p.(MetadataStore)
	if !ok {
		_ = p.Stop()
		return nil, fmt.Errorf(
			"plugin '%s' does not implement MetadataStore interface",
			pluginName,
		)
	}
	return store, nil
}
