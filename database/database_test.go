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

package database_test

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/z-vasconcelos/flightsurety/database"
	"github.com/z-vasconcelos/flightsurety/event"
	"github.com/z-vasconcelos/flightsurety/oracle"
	"github.com/z-vasconcelos/flightsurety/surety"
	"github.com/z-vasconcelos/flightsurety/types"
)

const (
	owner types.Address = "0xowner"
	airA  types.Address = "0xa"
	buyer types.Address = "0xb"
)

var key = types.FlightKey{Airline: airA, Code: "F1", Timestamp: 1700000000}

func newTestDatabase(t *testing.T, dataDir string) *database.Database {
	t.Helper()
	db, err := database.New(&database.Config{DataDir: dataDir})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db
}

func newTestApp(t *testing.T) *surety.App {
	t.Helper()
	app, err := surety.New(surety.Config{
		Owner:           owner,
		FoundingAirline: airA,
		Source:          oracle.NewSequenceSource(2),
		Policy:          surety.DefaultPolicy(),
	})
	require.NoError(t, err)
	t.Cleanup(app.Close)
	return app
}

func TestJournal(t *testing.T) {
	db := newTestDatabase(t, "")
	assert.Zero(t, db.JournalSeq())
	for i := range 5 {
		entry, err := db.AppendJournal(event.NewEvent(
			surety.OperationalEventType,
			surety.OperationalEvent{Operational: i%2 == 0, By: owner},
		))
		require.NoError(t, err)
		assert.Equal(t, uint64(i+1), entry.Seq)
	}
	assert.Equal(t, uint64(5), db.JournalSeq())

	entries, err := db.Journal(0, 0)
	require.NoError(t, err)
	require.Len(t, entries, 5)
	assert.Equal(t, uint64(1), entries[0].Seq)
	assert.Equal(t, string(surety.OperationalEventType), entries[0].Type)
	var payload surety.OperationalEvent
	require.NoError(t, json.Unmarshal(entries[0].Data, &payload))
	assert.True(t, payload.Operational)
	assert.Equal(t, owner, payload.By)

	entries, err = db.Journal(3, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, uint64(3), entries[0].Seq)
	assert.Equal(t, uint64(4), entries[1].Seq)

	entries, err = db.Journal(6, 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestJournalSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	db, err := database.New(&database.Config{DataDir: dir})
	require.NoError(t, err)
	_, err = db.AppendJournal(event.NewEvent(surety.OperationalEventType, surety.OperationalEvent{}))
	require.NoError(t, err)
	require.NoError(t, db.Close())

	reopened := newTestDatabase(t, dir)
	assert.Equal(t, uint64(1), reopened.JournalSeq())
	entry, err := reopened.AppendJournal(event.NewEvent(surety.OperationalEventType, surety.OperationalEvent{}))
	require.NoError(t, err)
	assert.Equal(t, uint64(2), entry.Seq)
}

func TestUnknownPlugin(t *testing.T) {
	_, err := database.New(&database.Config{MetadataPlugin: "nope"})
	require.Error(t, err)
}

func TestProjectorRoundTrip(t *testing.T) {
	db := newTestDatabase(t, "")
	app := newTestApp(t)
	reg := prometheus.NewRegistry()
	proj, err := database.NewProjector(database.ProjectorConfig{
		PromRegistry: reg,
		EventBus:     app.EventBus(),
		State:        app,
		Database:     db,
	})
	require.NoError(t, err)
	require.NoError(t, proj.Start())

	for i := 1; i < 4; i++ {
		_, err := app.ApplyAirline(airA, types.Address(fmt.Sprintf("0xa%d", i)), "")
		require.NoError(t, err)
	}
	_, err = app.ApplyAirline(airA, "0xa4", "Late Air")
	require.NoError(t, err)
	_, err = app.VoteAirline("0xa1", "0xa4")
	require.NoError(t, err)
	_, err = app.FundAirline(airA, airA, decimal.NewFromInt(10))
	require.NoError(t, err)
	_, err = app.RegisterFlight(airA, key.Code, "LIS", "JFK", key.Timestamp)
	require.NoError(t, err)
	_, err = app.BuyInsurance(buyer, key, decimal.RequireFromString("0.4"))
	require.NoError(t, err)
	for i := range 3 {
		reporter := types.Address(fmt.Sprintf("0xo%d", i))
		_, err := app.RegisterOracle(reporter, decimal.NewFromInt(1))
		require.NoError(t, err)
		_, err = app.SubmitOracleResponse(reporter, 2, key, types.StatusLateAirline)
		require.NoError(t, err)
	}
	_, err = app.WithdrawCredit(buyer, decimal.RequireFromString("0.2"))
	require.NoError(t, err)

	proj.Stop()
	events, err := testutil.GatherAndCount(reg, "flightsurety_projector_events_total")
	require.NoError(t, err)
	assert.Positive(t, events)

	seq, err := db.Metadata().GetJournalCursor(database.ProjectorCursor)
	require.NoError(t, err)
	assert.Equal(t, db.JournalSeq(), seq)

	snap, err := db.LoadSnapshot()
	require.NoError(t, err)
	assert.True(t, snap.Operational)
	assert.True(t, app.ContractBalance().Equal(snap.Balance))
	assert.Len(t, snap.Airlines, 5)
	assert.Equal(t, []types.Address{"0xa1"}, snap.Votes["0xa4"])
	assert.Len(t, snap.Oracles, 3)
	require.Len(t, snap.Flights, 1)
	assert.Equal(t, types.StatusLateAirline, snap.Flights[0].Status)
	require.Len(t, snap.Policies, 1)
	assert.True(t, snap.Policies[0].Credited)

	restored := newTestApp(t)
	require.NoError(t, restored.Restore(snap))
	assert.True(t, restored.IsAirlineFunded(airA))
	assert.True(t, restored.GetInsureeCredits(buyer).Equal(decimal.RequireFromString("0.4")))
	count, err := restored.GetVoteCount("0xa4")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	a, err := restored.GetAirlineByName("late air")
	require.NoError(t, err)
	assert.Equal(t, types.Address("0xa4"), a.Address)
	status, err := restored.GetFlightStatus(key)
	require.NoError(t, err)
	assert.Equal(t, types.StatusLateAirline, status)
}

func TestProjectorStopsWithBus(t *testing.T) {
	db := newTestDatabase(t, "")
	app := newTestApp(t)
	proj, err := database.NewProjector(database.ProjectorConfig{
		EventBus: app.EventBus(),
		State:    app,
		Database: db,
	})
	require.NoError(t, err)
	require.NoError(t, proj.Start())
	require.Error(t, proj.Start())
	app.Close()
	done := make(chan struct{})
	go func() {
		proj.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("projector did not stop")
	}
}

func TestEmptySnapshot(t *testing.T) {
	db := newTestDatabase(t, "")
	snap, err := db.LoadSnapshot()
	require.NoError(t, err)
	assert.True(t, snap.Empty())
}

func TestContractOnlySnapshotIsNotEmpty(t *testing.T) {
	db := newTestDatabase(t, "")
	app := newTestApp(t)
	proj, err := database.NewProjector(database.ProjectorConfig{
		EventBus: app.EventBus(),
		State:    app,
		Database: db,
	})
	require.NoError(t, err)
	require.NoError(t, proj.Start())
	proj.Stop()
	snap, err := db.LoadSnapshot()
	require.NoError(t, err)
	assert.True(t, snap.HasContract)
	assert.False(t, snap.Empty())
}
