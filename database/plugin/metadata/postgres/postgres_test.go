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

package postgres_test

import (
	"os"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/z-vasconcelos/flightsurety/database/models"
	"github.com/z-vasconcelos/flightsurety/database/plugin/metadata/postgres"
)

func TestDSNDefaults(t *testing.T) {
	store, err := postgres.New()
	require.NoError(t, err)
	assert.Equal(
		t,
		"host=localhost user=postgres password= dbname=postgres port=5432 sslmode=disable TimeZone=UTC",
		store.DSN(),
	)
}

func TestDSNOptions(t *testing.T) {
	store, err := postgres.New(
		postgres.WithHost("db"),
		postgres.WithPort(6543),
		postgres.WithUser("surety"),
		postgres.WithPassword("secret"),
		postgres.WithDatabase("flights"),
		postgres.WithSSLMode("require"),
	)
	require.NoError(t, err)
	assert.Equal(
		t,
		"host=db user=surety password=secret dbname=flights port=6543 sslmode=require TimeZone=UTC",
		store.DSN(),
	)

	store, err = postgres.New(postgres.WithDSN("  postgres://u@h/db  "))
	require.NoError(t, err)
	assert.Equal(t, "postgres://u@h/db", store.DSN())
}

// TestLiveDatabase runs against a real server when FLIGHTSURETY_TEST_POSTGRES_DSN
// is set
func TestLiveDatabase(t *testing.T) {
	dsn := os.Getenv("FLIGHTSURETY_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("FLIGHTSURETY_TEST_POSTGRES_DSN not set")
	}
	store, err := postgres.New(postgres.WithDSN(dsn))
	require.NoError(t, err)
	require.NoError(t, store.Start())
	defer store.Close()
	require.NoError(t, store.SaveContract(models.Contract{Operational: true, Balance: decimal.NewFromInt(1)}))
	c, found, err := store.GetContract()
	require.NoError(t, err)
	assert.True(t, found)
	assert.True(t, c.Operational)
}
