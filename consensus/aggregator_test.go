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

package consensus

import (
	"fmt"
	"slices"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/z-vasconcelos/flightsurety/oracle"
	"github.com/z-vasconcelos/flightsurety/types"
)

var testFlight = types.FlightKey{Airline: "0xa1", Code: "FS100", Timestamp: 1700000000}

type mockCatalog struct {
	mu       sync.Mutex
	flights  map[types.FlightKey]types.FlightStatus
	setCalls int
}

func (m *mockCatalog) Exists(key types.FlightKey) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.flights[key]
	return ok
}

func (m *mockCatalog) SetStatus(key types.FlightKey, status types.FlightStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flights[key] = status
	m.setCalls++
	return nil
}

func (m *mockCatalog) status(key types.FlightKey) types.FlightStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.flights[key]
}

// mockOracles gives every oracle the same index set
type mockOracles map[types.Address][]uint8

func (m mockOracles) HasIndex(addr types.Address, index uint8) bool {
	return slices.Contains(m[addr], index)
}

func newTestAggregator(t *testing.T, source oracle.IndexSource) (*Aggregator, *mockCatalog) {
	t.Helper()
	catalog := &mockCatalog{
		flights: map[types.FlightKey]types.FlightStatus{testFlight: types.StatusUnknown},
	}
	oracles := mockOracles{}
	for i := range 10 {
		oracles[reporter(i)] = []uint8{2, 5, 7}
	}
	agg, err := NewAggregator(AggregatorConfig{
		PromRegistry: prometheus.NewRegistry(),
		Flights:      catalog,
		Oracles:      oracles,
		Source:       source,
	})
	require.NoError(t, err)
	return agg, catalog
}

func reporter(i int) types.Address {
	return types.Address(fmt.Sprintf("0xo%d", i))
}

func TestNewAggregatorRequiresCollaborators(t *testing.T) {
	_, err := NewAggregator(AggregatorConfig{})
	require.Error(t, err)
}

func TestRequestStatus(t *testing.T) {
	agg, _ := newTestAggregator(t, oracle.NewSequenceSource(5))
	req, err := agg.RequestStatus(testFlight, "0xbuyer")
	require.NoError(t, err)
	assert.Equal(t, uint8(5), req.Index)
	assert.Equal(t, testFlight, req.Flight)
	assert.Equal(t, types.Address("0xbuyer"), req.Requester)
	info, err := agg.Round(RoundKey{Index: 5, Flight: testFlight})
	require.NoError(t, err)
	assert.Equal(t, RoundOpen, info.State)
	assert.Equal(t, 1, agg.OpenRounds())

	_, err = agg.RequestStatus(types.FlightKey{Code: "nope"}, "0xbuyer")
	require.ErrorIs(t, err, types.ErrNotFound)
}

func TestQuorumFinalizesOnce(t *testing.T) {
	agg, catalog := newTestAggregator(t, oracle.NewSequenceSource(5))
	_, err := agg.RequestStatus(testFlight, "")
	require.NoError(t, err)

	out, err := agg.SubmitReport(reporter(0), 5, testFlight, types.StatusLateAirline)
	require.NoError(t, err)
	assert.False(t, out.Finalized)
	assert.Equal(t, 1, out.Count)
	out, err = agg.SubmitReport(reporter(1), 5, testFlight, types.StatusOnTime)
	require.NoError(t, err)
	assert.False(t, out.Finalized)
	out, err = agg.SubmitReport(reporter(2), 5, testFlight, types.StatusLateAirline)
	require.NoError(t, err)
	assert.False(t, out.Finalized)
	assert.Equal(t, 2, out.Count)
	out, err = agg.SubmitReport(reporter(3), 5, testFlight, types.StatusLateAirline)
	require.NoError(t, err)
	assert.True(t, out.Finalized)
	assert.Equal(t, types.StatusLateAirline, out.Status)
	assert.Equal(t, 3, out.Count)
	assert.Equal(t, types.StatusLateAirline, catalog.status(testFlight))

	// Late reports are accepted no-ops
	for i := 4; i < 8; i++ {
		out, err = agg.SubmitReport(reporter(i), 5, testFlight, types.StatusOnTime)
		require.NoError(t, err)
		assert.True(t, out.Ignored)
		assert.False(t, out.Finalized)
		assert.Equal(t, types.StatusLateAirline, out.Status)
	}
	assert.Equal(t, types.StatusLateAirline, catalog.status(testFlight))
	assert.Equal(t, 1, catalog.setCalls)
	assert.Equal(t, 0, agg.OpenRounds())
	assert.InDelta(t, 4, testutil.ToFloat64(agg.metrics.reports.WithLabelValues("ignored")), 0)
}

func TestReportWithoutRequestOpensRound(t *testing.T) {
	agg, catalog := newTestAggregator(t, nil)
	for i := range 3 {
		_, err := agg.SubmitReport(reporter(i), 7, testFlight, types.StatusLateWeather)
		require.NoError(t, err)
	}
	assert.Equal(t, types.StatusLateWeather, catalog.status(testFlight))
}

func TestRepeatedReportDoesNotCountTwice(t *testing.T) {
	agg, _ := newTestAggregator(t, nil)
	for range 5 {
		out, err := agg.SubmitReport(reporter(0), 2, testFlight, types.StatusLateOther)
		require.NoError(t, err)
		assert.Equal(t, 1, out.Count)
		assert.False(t, out.Finalized)
	}
	// Changing a report moves the reporter's vote
	out, err := agg.SubmitReport(reporter(0), 2, testFlight, types.StatusOnTime)
	require.NoError(t, err)
	assert.Equal(t, 1, out.Count)
	info, err := agg.Round(RoundKey{Index: 2, Flight: testFlight})
	require.NoError(t, err)
	assert.Equal(t, types.StatusOnTime, info.Reports[reporter(0)])
}

func TestSubmitReportErrors(t *testing.T) {
	agg, _ := newTestAggregator(t, nil)
	_, err := agg.SubmitReport(reporter(0), 3, testFlight, types.StatusOnTime)
	require.ErrorIs(t, err, types.ErrIndexMismatch)
	_, err = agg.SubmitReport("0xunregistered", 2, testFlight, types.StatusOnTime)
	require.ErrorIs(t, err, types.ErrIndexMismatch)
	_, err = agg.SubmitReport(reporter(0), 2, testFlight, types.StatusUnknown)
	require.ErrorIs(t, err, types.ErrInvalidState)
	_, err = agg.SubmitReport(reporter(0), 2, testFlight, types.FlightStatus(11))
	require.ErrorIs(t, err, types.ErrInvalidState)
	_, err = agg.SubmitReport(reporter(0), 2, types.FlightKey{Code: "x"}, types.StatusOnTime)
	require.ErrorIs(t, err, types.ErrNotFound)
	assert.InDelta(t, 5, testutil.ToFloat64(agg.metrics.reports.WithLabelValues("rejected")), 0)
}

func TestRoundsAreIndependentPerIndex(t *testing.T) {
	agg, _ := newTestAggregator(t, nil)
	for i := range 2 {
		_, err := agg.SubmitReport(reporter(i), 2, testFlight, types.StatusOnTime)
		require.NoError(t, err)
	}
	out, err := agg.SubmitReport(reporter(2), 5, testFlight, types.StatusOnTime)
	require.NoError(t, err)
	assert.False(t, out.Finalized)
	assert.Equal(t, 1, out.Count)
}

func TestRequestReopensFinalizedRound(t *testing.T) {
	agg, catalog := newTestAggregator(t, oracle.NewSequenceSource(5))
	for i := range 3 {
		_, err := agg.SubmitReport(reporter(i), 5, testFlight, types.StatusOnTime)
		require.NoError(t, err)
	}
	require.Equal(t, types.StatusOnTime, catalog.status(testFlight))

	_, err := agg.RequestStatus(testFlight, "")
	require.NoError(t, err)
	info, err := agg.Round(RoundKey{Index: 5, Flight: testFlight})
	require.NoError(t, err)
	assert.Equal(t, RoundOpen, info.State)
	assert.Empty(t, info.Reports)

	for i := 3; i < 6; i++ {
		_, err := agg.SubmitReport(reporter(i), 5, testFlight, types.StatusLateTechnical)
		require.NoError(t, err)
	}
	assert.Equal(t, types.StatusLateTechnical, catalog.status(testFlight))
	assert.Equal(t, 2, catalog.setCalls)
}

func TestRequestKeepsOpenRound(t *testing.T) {
	agg, _ := newTestAggregator(t, oracle.NewSequenceSource(5))
	_, err := agg.SubmitReport(reporter(0), 5, testFlight, types.StatusOnTime)
	require.NoError(t, err)
	_, err = agg.RequestStatus(testFlight, "")
	require.NoError(t, err)
	info, err := agg.Round(RoundKey{Index: 5, Flight: testFlight})
	require.NoError(t, err)
	assert.Len(t, info.Reports, 1)
}

func TestConcurrentReportsFinalizeExactlyOnce(t *testing.T) {
	agg, catalog := newTestAggregator(t, nil)
	var wg sync.WaitGroup
	var mu sync.Mutex
	finalized := 0
	for i := range 10 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out, err := agg.SubmitReport(reporter(i), 7, testFlight, types.StatusLateAirline)
			assert.NoError(t, err)
			if out.Finalized {
				mu.Lock()
				finalized++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 1, finalized)
	assert.Equal(t, 1, catalog.setCalls)
}
