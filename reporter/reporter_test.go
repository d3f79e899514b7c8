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

package reporter_test

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/z-vasconcelos/flightsurety/consensus"
	"github.com/z-vasconcelos/flightsurety/internal/test/testutil"
	"github.com/z-vasconcelos/flightsurety/oracle"
	"github.com/z-vasconcelos/flightsurety/reporter"
	"github.com/z-vasconcelos/flightsurety/surety"
	"github.com/z-vasconcelos/flightsurety/types"
)

const airA types.Address = "0xa"

var key = types.FlightKey{Airline: airA, Code: "F1", Timestamp: 1700000000}

func newTestApp(t *testing.T) *surety.App {
	t.Helper()
	app, err := surety.New(surety.Config{
		Owner:  airA,
		Source: oracle.NewSequenceSource(3),
		Policy: surety.DefaultPolicy(),
	})
	require.NoError(t, err)
	_, err = app.FundAirline(airA, airA, decimal.NewFromInt(10))
	require.NoError(t, err)
	_, err = app.RegisterFlight(airA, key.Code, "", "", key.Timestamp)
	require.NoError(t, err)
	return app
}

func TestFleetFinalizesStatus(t *testing.T) {
	defer goleak.VerifyNone(t)
	app := newTestApp(t)
	defer app.Close()
	reg := prometheus.NewRegistry()
	r, err := reporter.New(reporter.Config{
		PromRegistry: reg,
		Surety:       app,
		Picker:       reporter.FixedPicker(types.StatusLateAirline),
		Count:        4,
		Workers:      2,
	})
	require.NoError(t, err)
	require.NoError(t, r.Start(context.Background()))
	defer func() {
		require.NoError(t, r.Stop())
	}()

	members := r.Members()
	require.Len(t, members, 4)
	assert.Equal(t, types.Address("0xoracle00"), members[0].Address)
	assert.Equal(t, []uint8{3, 3, 3}, members[0].Indexes)
	assert.Len(t, app.GetOracles(), 4)
	// Four registration fees plus the funding
	testutil.RequireAmount(t, "14", app.ContractBalance())

	_, err = app.RequestFlightStatus("0xb", key)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		status, err := app.GetFlightStatus(key)
		return err == nil && status == types.StatusLateAirline
	}, 2*time.Second, 10*time.Millisecond)
	testutil.WaitForCondition(t, func() bool {
		return submissions(t, reg, "finalized") == 1
	}, 2*time.Second, "finalizing submission not counted")
}

func TestStartTwice(t *testing.T) {
	app := newTestApp(t)
	defer app.Close()
	r, err := reporter.New(reporter.Config{Surety: app, Count: 1})
	require.NoError(t, err)
	require.NoError(t, r.Start(context.Background()))
	require.Error(t, r.Start(context.Background()))
	require.NoError(t, r.Stop())
	require.NoError(t, r.Stop())
}

func TestRestartAdoptsRegisteredOracles(t *testing.T) {
	app := newTestApp(t)
	defer app.Close()
	first, err := reporter.New(reporter.Config{Surety: app, Count: 2})
	require.NoError(t, err)
	require.NoError(t, first.Start(context.Background()))
	require.NoError(t, first.Stop())

	second, err := reporter.New(reporter.Config{Surety: app, Count: 3})
	require.NoError(t, err)
	require.NoError(t, second.Start(context.Background()))
	defer func() {
		require.NoError(t, second.Stop())
	}()
	assert.Equal(t, first.Members(), second.Members()[:2])
	assert.Len(t, app.GetOracles(), 3)
	// Only the new oracle paid a fee
	testutil.RequireAmount(t, "13", app.ContractBalance())
}

func TestRegistrationFailure(t *testing.T) {
	app := newTestApp(t)
	defer app.Close()
	require.NoError(t, app.SetOperational(airA, false))
	r, err := reporter.New(reporter.Config{Surety: app, Count: 1})
	require.NoError(t, err)
	require.ErrorIs(t, r.Start(context.Background()), types.ErrNotOperational)
}

func TestNewRequiresSurety(t *testing.T) {
	_, err := reporter.New(reporter.Config{})
	require.Error(t, err)
}

func TestPickers(t *testing.T) {
	req := consensus.StatusRequest{Index: 1, Flight: key}
	assert.Equal(
		t,
		types.StatusLateWeather,
		reporter.FixedPicker(types.StatusLateWeather).Pick(req, "0xo"),
	)
	picker := reporter.NewRandomPicker(42)
	for range 100 {
		assert.True(t, picker.Pick(req, "0xo").Reportable())
	}
}

func submissions(t *testing.T, reg *prometheus.Registry, result string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() != "flightsurety_reporter_submissions_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "result" && l.GetValue() == result {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}
