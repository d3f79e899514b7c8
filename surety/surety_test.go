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

package surety_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/z-vasconcelos/flightsurety/airline"
	"github.com/z-vasconcelos/flightsurety/consensus"
	"github.com/z-vasconcelos/flightsurety/custody"
	"github.com/z-vasconcelos/flightsurety/event"
	"github.com/z-vasconcelos/flightsurety/internal/test/testutil"
	"github.com/z-vasconcelos/flightsurety/oracle"
	"github.com/z-vasconcelos/flightsurety/surety"
	"github.com/z-vasconcelos/flightsurety/types"
)

const (
	owner   types.Address = "0xowner"
	airA    types.Address = "0xa"
	buyerB  types.Address = "0xb"
	flight1 string        = "F1"
	depart  int64         = 1700000000
)

var flightKey = types.FlightKey{Airline: airA, Code: flight1, Timestamp: depart}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertDecimal(t *testing.T, expected string, actual decimal.Decimal) {
	t.Helper()
	assert.True(t, d(expected).Equal(actual), "expected %s, got %s", expected, actual)
}

// newTestApp returns an app whose founding airline is airA. Every oracle
// registration and status request draws index 4.
func newTestApp(t *testing.T) *surety.App {
	t.Helper()
	app, err := surety.New(surety.Config{
		PromRegistry:    prometheus.NewRegistry(),
		Owner:           owner,
		FoundingAirline: airA,
		Source:          oracle.NewSequenceSource(4),
		Policy:          surety.DefaultPolicy(),
	})
	require.NoError(t, err)
	t.Cleanup(app.Close)
	return app
}

func reporter(i int) types.Address {
	return types.Address(fmt.Sprintf("0xo%d", i))
}

func TestNewRequiresOwner(t *testing.T) {
	_, err := surety.New(surety.Config{})
	require.Error(t, err)
}

func TestFounderDefaultsToOwner(t *testing.T) {
	app, err := surety.New(surety.Config{Owner: owner})
	require.NoError(t, err)
	defer app.Close()
	assert.True(t, app.IsAirlineRegistered(owner))
}

// A funded, F1@T registered, B buys 0.5, three reporters report LateAirline,
// the status finalizes, B is credited 0.75 and withdraws it once
func TestEndToEndDelayClaim(t *testing.T) {
	defer goleak.VerifyNone(t)
	app := newTestApp(t)
	defer app.Close()
	bus := app.EventBus()
	_, evtCh := bus.Subscribe(surety.EventTypes...)

	_, err := app.FundAirline(airA, airA, d("10"))
	require.NoError(t, err)
	require.True(t, app.IsAirlineFunded(airA))

	_, err = app.RegisterFlight(airA, flight1, "LIS", "OPO", depart)
	require.NoError(t, err)

	_, err = app.BuyInsurance(buyerB, flightKey, d("0.5"))
	require.NoError(t, err)
	assertDecimal(t, "0.5", app.GetInsuranceValue(buyerB, flightKey))

	for i := range 3 {
		indexes, err := app.RegisterOracle(reporter(i), d("1"))
		require.NoError(t, err)
		assert.Equal(t, []uint8{4, 4, 4}, indexes)
	}

	req, err := app.RequestFlightStatus(buyerB, flightKey)
	require.NoError(t, err)
	require.Equal(t, uint8(4), req.Index)

	for i := range 3 {
		out, err := app.SubmitOracleResponse(reporter(i), req.Index, flightKey, types.StatusLateAirline)
		require.NoError(t, err)
		assert.Equal(t, i == 2, out.Finalized)
	}
	status, err := app.GetFlightStatus(flightKey)
	require.NoError(t, err)
	assert.Equal(t, types.StatusLateAirline, status)
	assertDecimal(t, "0.75", app.GetInsureeCredits(buyerB))

	// 10 funding + 3 fees + 0.5 premium
	assertDecimal(t, "13.5", app.ContractBalance())
	w, err := app.WithdrawCredit(buyerB, d("0.75"))
	require.NoError(t, err)
	assert.True(t, w.Remaining.IsZero())
	assert.True(t, app.GetInsureeCredits(buyerB).IsZero())
	assertDecimal(t, "12.75", app.ContractBalance())

	_, err = app.WithdrawCredit(buyerB, d("0.75"))
	require.ErrorIs(t, err, types.ErrThresholdNotMet)

	// A late report neither errors nor changes anything
	_, err = app.RegisterOracle(reporter(3), d("1"))
	require.NoError(t, err)
	out, err := app.SubmitOracleResponse(reporter(3), 4, flightKey, types.StatusOnTime)
	require.NoError(t, err)
	assert.True(t, out.Ignored)
	status, err = app.GetFlightStatus(flightKey)
	require.NoError(t, err)
	assert.Equal(t, types.StatusLateAirline, status)

	var seen []event.EventType
	timeout := time.After(time.Second)
	for len(seen) < 11 {
		select {
		case evt := <-evtCh:
			seen = append(seen, evt.Type)
		case <-timeout:
			t.Fatalf("timed out waiting for events, got %v", seen)
		}
	}
	assert.Equal(
		t,
		[]event.EventType{
			surety.AirlineFundedEventType,
			surety.FlightRegisteredEventType,
			surety.InsurancePurchasedEventType,
			surety.OracleRegisteredEventType,
			surety.OracleRegisteredEventType,
			surety.OracleRegisteredEventType,
			surety.StatusRequestedEventType,
			surety.StatusFinalizedEventType,
			surety.CreditIssuedEventType,
			surety.CreditWithdrawnEventType,
			// The ignored late report publishes nothing
			surety.OracleRegisteredEventType,
		},
		seen,
	)
}

func TestBootstrapThenVoting(t *testing.T) {
	app := newTestApp(t)
	for i := 1; i < 4; i++ {
		a, err := app.ApplyAirline(airA, types.Address(fmt.Sprintf("0xa%d", i)), "")
		require.NoError(t, err)
		assert.Equal(t, airline.StateRegistered, a.State)
	}
	a, err := app.ApplyAirline(airA, "0xa4", "Fifth Air")
	require.NoError(t, err)
	assert.Equal(t, airline.StateApplied, a.State)
	assert.False(t, app.IsAirlineRegistered("0xa4"))

	res, err := app.VoteAirline(airA, "0xa4")
	require.NoError(t, err)
	assert.False(t, res.Admitted)
	res, err = app.VoteAirline("0xa1", "0xa4")
	require.NoError(t, err)
	assert.False(t, res.Admitted)
	count, err := app.GetVoteCount("0xa4")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	res, err = app.VoteAirline("0xa2", "0xa4")
	require.NoError(t, err)
	assert.True(t, res.Admitted)
	assert.True(t, app.IsAirlineRegistered("0xa4"))

	voters, err := app.GetVoters("0xa4")
	require.NoError(t, err)
	assert.Equal(t, []types.Address{airA, "0xa1", "0xa2"}, voters)
	byName, err := app.GetAirlineByName("fifth air")
	require.NoError(t, err)
	assert.Equal(t, types.Address("0xa4"), byName.Address)
	assert.Len(t, app.GetAirlines(), 5)
}

func TestRegisterFlightRequiresFunding(t *testing.T) {
	app := newTestApp(t)
	_, err := app.RegisterFlight(airA, flight1, "", "", depart)
	require.ErrorIs(t, err, types.ErrNotAuthorized)
	_, err = app.FundAirline(airA, airA, d("9"))
	require.ErrorIs(t, err, types.ErrThresholdNotMet)
	assert.True(t, app.ContractBalance().IsZero())
	_, err = app.FundAirline(airA, airA, d("10"))
	require.NoError(t, err)
	_, err = app.RegisterFlight(airA, flight1, "", "", depart)
	require.NoError(t, err)
	_, err = app.RegisterFlight(airA, flight1, "", "", depart)
	require.ErrorIs(t, err, types.ErrAlreadyExists)
	assert.Len(t, app.GetFlights(airA), 1)
	assert.Empty(t, app.GetFlights("0xother"))
}

func TestOracleErrors(t *testing.T) {
	app := newTestApp(t)
	_, err := app.RegisterOracle(reporter(0), d("0.5"))
	require.ErrorIs(t, err, types.ErrThresholdNotMet)
	_, err = app.GetMyIndexes(reporter(0))
	require.ErrorIs(t, err, types.ErrNotFound)

	_, err = app.FundAirline(airA, airA, d("10"))
	require.NoError(t, err)
	_, err = app.RegisterFlight(airA, flight1, "", "", depart)
	require.NoError(t, err)
	_, err = app.RegisterOracle(reporter(0), d("1"))
	require.NoError(t, err)
	_, err = app.SubmitOracleResponse(reporter(0), 5, flightKey, types.StatusOnTime)
	require.ErrorIs(t, err, types.ErrIndexMismatch)
	_, err = app.RequestFlightStatus(buyerB, types.FlightKey{Airline: airA, Code: "nope", Timestamp: 1})
	require.ErrorIs(t, err, types.ErrNotFound)
}

func TestOperationalSwitch(t *testing.T) {
	app := newTestApp(t)
	require.ErrorIs(t, app.SetOperational(airA, false), types.ErrNotAuthorized)
	require.NoError(t, app.SetOperational(owner, false))
	assert.False(t, app.IsOperational())

	_, err := app.FundAirline(airA, airA, d("10"))
	require.ErrorIs(t, err, types.ErrNotOperational)
	_, err = app.ApplyAirline(airA, "0xa1", "")
	require.ErrorIs(t, err, types.ErrInvalidState)
	_, err = app.RegisterOracle(reporter(0), d("1"))
	require.ErrorIs(t, err, types.ErrNotOperational)
	// Reads keep working
	assert.True(t, app.IsAirlineRegistered(airA))

	require.NoError(t, app.SetOperational(owner, true))
	_, err = app.FundAirline(airA, airA, d("10"))
	require.NoError(t, err)
}

func TestOnStatusRequested(t *testing.T) {
	defer goleak.VerifyNone(t)
	app := newTestApp(t)
	defer app.Close()
	_, err := app.FundAirline(airA, airA, d("10"))
	require.NoError(t, err)
	_, err = app.RegisterFlight(airA, flight1, "", "", depart)
	require.NoError(t, err)

	reqCh := make(chan consensus.StatusRequest, 1)
	cancel := app.OnStatusRequested(func(req consensus.StatusRequest) {
		reqCh <- req
	})
	_, err = app.RequestFlightStatus(buyerB, flightKey)
	require.NoError(t, err)
	got := testutil.RequireReceive(t, reqCh, time.Second, "status request not delivered")
	assert.Equal(t, flightKey, got.Flight)
	assert.Equal(t, buyerB, got.Requester)
	cancel()
}

func TestWithdrawPayoutFailureRecredits(t *testing.T) {
	app, err := surety.New(surety.Config{
		Owner:           owner,
		FoundingAirline: airA,
		Source:          oracle.NewSequenceSource(4),
		Vault:           &emptyVault{},
	})
	require.NoError(t, err)
	defer app.Close()
	_, err = app.FundAirline(airA, airA, d("10"))
	require.NoError(t, err)
	_, err = app.RegisterFlight(airA, flight1, "", "", depart)
	require.NoError(t, err)
	_, err = app.BuyInsurance(buyerB, flightKey, d("1"))
	require.NoError(t, err)
	for i := range 3 {
		_, err := app.RegisterOracle(reporter(i), d("1"))
		require.NoError(t, err)
		_, err = app.SubmitOracleResponse(reporter(i), 4, flightKey, types.StatusLateAirline)
		require.NoError(t, err)
	}
	assertDecimal(t, "1.5", app.GetInsureeCredits(buyerB))
	_, err = app.WithdrawCredit(buyerB, d("1"))
	require.ErrorIs(t, err, types.ErrThresholdNotMet)
	assertDecimal(t, "1.5", app.GetInsureeCredits(buyerB))
}

// emptyVault accepts deposits but can never pay out
type emptyVault struct{}

func (emptyVault) Deposit(types.Address, decimal.Decimal) error { return nil }

func (emptyVault) Payout(types.Address, decimal.Decimal) error {
	return fmt.Errorf("vault drained: %w", types.ErrThresholdNotMet)
}

func (emptyVault) Balance() decimal.Decimal { return decimal.Zero }

func TestSnapshotRestore(t *testing.T) {
	app := newTestApp(t)
	for i := 1; i < 4; i++ {
		_, err := app.ApplyAirline(airA, types.Address(fmt.Sprintf("0xa%d", i)), "")
		require.NoError(t, err)
	}
	_, err := app.ApplyAirline(airA, "0xa4", "")
	require.NoError(t, err)
	_, err = app.VoteAirline(airA, "0xa4")
	require.NoError(t, err)
	_, err = app.FundAirline(airA, airA, d("10"))
	require.NoError(t, err)
	_, err = app.RegisterFlight(airA, flight1, "", "", depart)
	require.NoError(t, err)
	_, err = app.BuyInsurance(buyerB, flightKey, d("0.5"))
	require.NoError(t, err)
	_, err = app.RegisterOracle(reporter(0), d("1"))
	require.NoError(t, err)

	snap, err := app.Snapshot()
	require.NoError(t, err)
	assert.Len(t, snap.Airlines, 5)
	assert.Equal(t, []types.Address{airA}, snap.Votes["0xa4"])

	restored := newTestApp(t)
	require.NoError(t, restored.Restore(snap))
	assert.True(t, restored.IsAirlineFunded(airA))
	assert.False(t, restored.IsAirlineRegistered("0xa4"))
	count, err := restored.GetVoteCount("0xa4")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assertDecimal(t, "0.5", restored.GetInsuranceValue(buyerB, flightKey))
	assertDecimal(t, "11.5", restored.ContractBalance())
	indexes, err := restored.GetMyIndexes(reporter(0))
	require.NoError(t, err)
	assert.Equal(t, []uint8{4, 4, 4}, indexes)

	require.Error(t, restored.Restore(surety.Snapshot{}))
}

func TestRestoreWithoutAirlinesKeepsFounder(t *testing.T) {
	app := newTestApp(t)
	snap := surety.Snapshot{
		HasContract: true,
		Operational: true,
		Balance:     d("2"),
		Oracles: []oracle.Oracle{
			{Address: reporter(0), Indexes: []uint8{1, 2, 3}},
			{Address: reporter(1), Indexes: []uint8{4, 5, 6}},
		},
	}
	assert.False(t, snap.Empty())
	require.NoError(t, app.Restore(snap))
	assert.True(t, app.IsAirlineRegistered(airA))
	assert.Len(t, app.GetOracles(), 2)
	assertDecimal(t, "2", app.ContractBalance())
	assert.True(t, surety.Snapshot{}.Empty())
}

func TestNoPurchaseAfterOutcomeKnown(t *testing.T) {
	app := newTestApp(t)
	_, err := app.FundAirline(airA, airA, d("10"))
	require.NoError(t, err)
	_, err = app.RegisterFlight(airA, flight1, "", "", depart)
	require.NoError(t, err)
	for i := range 3 {
		_, err := app.RegisterOracle(reporter(i), d("1"))
		require.NoError(t, err)
		_, err = app.SubmitOracleResponse(reporter(i), 4, flightKey, types.StatusLateAirline)
		require.NoError(t, err)
	}

	_, err = app.BuyInsurance("0xlate", flightKey, d("1"))
	require.ErrorIs(t, err, types.ErrInvalidState)
	assertDecimal(t, "13", app.ContractBalance())

	// A refresh round reaching quorum pays nobody who bought late
	req, err := app.RequestFlightStatus(buyerB, flightKey)
	require.NoError(t, err)
	for i := range 3 {
		out, err := app.SubmitOracleResponse(reporter(i), req.Index, flightKey, types.StatusLateAirline)
		require.NoError(t, err)
		assert.Equal(t, i == 2, out.Finalized)
	}
	assert.True(t, app.GetInsureeCredits("0xlate").IsZero())
	_, err = app.GetPolicy("0xlate", flightKey)
	require.ErrorIs(t, err, types.ErrNotFound)
}

var errVaultDown = errors.New("vault down")

// switchVault refuses deposits while down is set
type switchVault struct {
	*custody.MemoryVault
	down bool
}

func (v *switchVault) Deposit(from types.Address, amount decimal.Decimal) error {
	if v.down {
		return errVaultDown
	}
	return v.MemoryVault.Deposit(from, amount)
}

func TestFailedDepositLeavesNoState(t *testing.T) {
	vault := &switchVault{MemoryVault: custody.NewMemoryVault(decimal.Zero)}
	app, err := surety.New(surety.Config{
		Owner:           owner,
		FoundingAirline: airA,
		Source:          oracle.NewSequenceSource(4),
		Vault:           vault,
	})
	require.NoError(t, err)
	defer app.Close()

	vault.down = true
	_, err = app.FundAirline(airA, airA, d("10"))
	require.ErrorIs(t, err, errVaultDown)
	assert.False(t, app.IsAirlineFunded(airA))
	rec, err := app.GetAirline(airA)
	require.NoError(t, err)
	assert.Equal(t, airline.StateRegistered, rec.State)
	assert.True(t, rec.Funds.IsZero())

	_, err = app.RegisterOracle(reporter(0), d("1"))
	require.ErrorIs(t, err, errVaultDown)
	_, err = app.GetMyIndexes(reporter(0))
	require.ErrorIs(t, err, types.ErrNotFound)
	assert.Empty(t, app.GetOracles())

	vault.down = false
	_, err = app.FundAirline(airA, airA, d("10"))
	require.NoError(t, err)
	_, err = app.RegisterOracle(reporter(0), d("1"))
	require.NoError(t, err)
	// A failed re-registration keeps the earlier indexes
	vault.down = true
	_, err = app.RegisterOracle(reporter(0), d("1"))
	require.ErrorIs(t, err, errVaultDown)
	indexes, err := app.GetMyIndexes(reporter(0))
	require.NoError(t, err)
	assert.Equal(t, []uint8{4, 4, 4}, indexes)

	vault.down = false
	_, err = app.RegisterFlight(airA, flight1, "", "", depart)
	require.NoError(t, err)
	vault.down = true
	_, err = app.BuyInsurance(buyerB, flightKey, d("0.5"))
	require.ErrorIs(t, err, errVaultDown)
	_, err = app.GetPolicy(buyerB, flightKey)
	require.ErrorIs(t, err, types.ErrNotFound)

	vault.down = false
	_, err = app.BuyInsurance(buyerB, flightKey, d("0.4"))
	require.NoError(t, err)
	vault.down = true
	_, err = app.BuyInsurance(buyerB, flightKey, d("0.3"))
	require.ErrorIs(t, err, errVaultDown)
	assertDecimal(t, "0.4", app.GetInsuranceValue(buyerB, flightKey))
	assertDecimal(t, "11.4", app.ContractBalance())
}
