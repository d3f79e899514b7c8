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

package airline

import (
	"fmt"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/z-vasconcelos/flightsurety/types"
)

const founder types.Address = "0xa0"

func airlineAddr(i int) types.Address {
	return types.Address(fmt.Sprintf("0xa%d", i))
}

func newTestGovernance(t *testing.T, opts ...func(*GovernanceConfig)) *Governance {
	t.Helper()
	cfg := GovernanceConfig{
		Founder:      founder,
		FounderName:  "Founder Air",
		PromRegistry: prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	g, err := NewGovernance(cfg)
	require.NoError(t, err)
	return g
}

// withRegistered applies airlines 1..n-1 so that n airlines are registered
func withRegistered(t *testing.T, g *Governance, n int) {
	t.Helper()
	for i := 1; i < n; i++ {
		a, err := g.Apply(airlineAddr(i), fmt.Sprintf("Air %d", i), founder)
		require.NoError(t, err)
		require.Equal(t, StateRegistered, a.State)
	}
	require.Equal(t, n, g.Roster().RegisteredCount())
}

func TestNewGovernanceRequiresFounder(t *testing.T) {
	_, err := NewGovernance(GovernanceConfig{})
	require.ErrorIs(t, err, types.ErrInvalidState)
}

func TestFounderIsRegistered(t *testing.T) {
	g := newTestGovernance(t)
	assert.True(t, g.Roster().IsRegistered(founder))
	assert.False(t, g.Roster().IsFunded(founder))
	assert.Equal(t, 1, g.Roster().RegisteredCount())
}

func TestBootstrapApply(t *testing.T) {
	g := newTestGovernance(t)
	withRegistered(t, g, DefaultBootstrapSize)
	// The next applicant must wait for votes
	a, err := g.Apply("0xnew", "New Air", founder)
	require.NoError(t, err)
	assert.Equal(t, StateApplied, a.State)
	assert.False(t, g.Roster().IsRegistered("0xnew"))
	count, err := g.VoteCount("0xnew")
	require.NoError(t, err)
	assert.Equal(t, 0, count, "applying is not a vote")
}

func TestApplyErrors(t *testing.T) {
	g := newTestGovernance(t)
	_, err := g.Apply("0xb1", "B1", "0xstranger")
	require.ErrorIs(t, err, types.ErrNotAuthorized)

	_, err = g.Apply("0xb1", "B1", founder)
	require.NoError(t, err)
	_, err = g.Apply("0xb1", "B1 again", founder)
	require.ErrorIs(t, err, ErrAlreadyApplied)
	require.ErrorIs(t, err, types.ErrAlreadyExists)
}

func TestApplyByAppliedAirlineRejected(t *testing.T) {
	g := newTestGovernance(t)
	withRegistered(t, g, 4)
	_, err := g.Apply("0xc1", "C1", founder)
	require.NoError(t, err)
	_, err = g.Apply("0xc2", "C2", "0xc1")
	require.ErrorIs(t, err, types.ErrNotAuthorized)
}

func TestVoteMajority(t *testing.T) {
	testDefs := []struct {
		registered int
		required   int
	}{
		{registered: 4, required: 3},
		{registered: 5, required: 3},
		{registered: 6, required: 4},
		{registered: 7, required: 4},
	}
	for _, td := range testDefs {
		t.Run(fmt.Sprintf("registered=%d", td.registered), func(t *testing.T) {
			g := newTestGovernance(t)
			// Grow past bootstrap by voting everybody in
			withRegistered(t, g, DefaultBootstrapSize)
			for i := DefaultBootstrapSize; i < td.registered; i++ {
				addr := airlineAddr(i)
				_, err := g.Apply(addr, "", founder)
				require.NoError(t, err)
				for v := 0; !g.Roster().IsRegistered(addr); v++ {
					_, err := g.Vote(addr, airlineAddr(v))
					require.NoError(t, err)
				}
			}
			require.Equal(t, td.registered, g.Roster().RegisteredCount())

			candidate := types.Address("0xcandidate")
			_, err := g.Apply(candidate, "", founder)
			require.NoError(t, err)
			for v := 0; v < td.required-1; v++ {
				res, err := g.Vote(candidate, airlineAddr(v))
				require.NoError(t, err)
				assert.False(t, res.Admitted, "admitted one vote short")
				assert.Equal(t, v+1, res.Votes)
			}
			assert.False(t, g.Roster().IsRegistered(candidate))
			res, err := g.Vote(candidate, airlineAddr(td.required-1))
			require.NoError(t, err)
			assert.True(t, res.Admitted)
			assert.Equal(t, td.required, res.Votes)
			assert.Equal(t, td.registered, res.Registered)
			assert.True(t, g.Roster().IsRegistered(candidate))
		})
	}
}

func TestVoteErrors(t *testing.T) {
	g := newTestGovernance(t)
	// Voting is closed during bootstrap
	_, err := g.Vote(airlineAddr(1), founder)
	require.ErrorIs(t, err, types.ErrInvalidState)

	withRegistered(t, g, 4)
	_, err = g.Vote("0xnobody", founder)
	require.ErrorIs(t, err, types.ErrNotFound)

	// Registered airlines cannot be voted on
	_, err = g.Vote(airlineAddr(1), founder)
	require.ErrorIs(t, err, types.ErrInvalidState)

	_, err = g.Apply("0xc1", "C1", founder)
	require.NoError(t, err)
	_, err = g.Vote("0xc1", "0xstranger")
	require.ErrorIs(t, err, types.ErrNotAuthorized)

	_, err = g.Vote("0xc1", founder)
	require.NoError(t, err)
	_, err = g.Vote("0xc1", founder)
	require.ErrorIs(t, err, ErrDuplicateVote)
	count, err := g.VoteCount("0xc1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	voters, err := g.Voters("0xc1")
	require.NoError(t, err)
	assert.Equal(t, []types.Address{founder}, voters)

	_, err = g.VoteCount("0xnobody")
	require.ErrorIs(t, err, types.ErrNotFound)
}

func TestFund(t *testing.T) {
	g := newTestGovernance(t)
	_, err := g.Fund(founder, decimal.NewFromInt(10), "0xother")
	require.ErrorIs(t, err, types.ErrNotAuthorized)

	_, err = g.Fund(founder, decimal.RequireFromString("9.99"), founder)
	require.ErrorIs(t, err, ErrInsufficientFunding)
	require.ErrorIs(t, err, types.ErrThresholdNotMet)
	assert.False(t, g.Roster().IsFunded(founder))

	a, err := g.Fund(founder, decimal.NewFromInt(10), founder)
	require.NoError(t, err)
	assert.Equal(t, StateFunded, a.State)
	assert.True(t, g.Roster().IsFunded(founder))

	a, err = g.Fund(founder, decimal.NewFromInt(12), founder)
	require.NoError(t, err)
	assert.Equal(t, StateFunded, a.State)
	assert.True(t, a.Funds.Equal(decimal.NewFromInt(22)))
}

func TestFundAppliedAirlineRejected(t *testing.T) {
	g := newTestGovernance(t)
	withRegistered(t, g, 4)
	_, err := g.Apply("0xc1", "C1", founder)
	require.NoError(t, err)
	_, err = g.Fund("0xc1", decimal.NewFromInt(10), "0xc1")
	require.ErrorIs(t, err, types.ErrNotAuthorized)
	_, err = g.Fund("0xnobody", decimal.NewFromInt(10), "0xnobody")
	require.ErrorIs(t, err, types.ErrNotAuthorized)
}

func TestFundedParticipation(t *testing.T) {
	g := newTestGovernance(t, func(cfg *GovernanceConfig) {
		cfg.FundedParticipation = true
	})
	_, err := g.Apply("0xb1", "B1", founder)
	require.ErrorIs(t, err, types.ErrNotAuthorized)
	_, err = g.Fund(founder, decimal.NewFromInt(10), founder)
	require.NoError(t, err)
	_, err = g.Apply("0xb1", "B1", founder)
	require.NoError(t, err)
}

func TestConcurrentBootstrapApply(t *testing.T) {
	g := newTestGovernance(t)
	var wg sync.WaitGroup
	for i := 1; i <= 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := g.Apply(airlineAddr(i), "", founder)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, DefaultBootstrapSize, g.Roster().RegisteredCount())
	assert.Len(t, g.Roster().List(), 21)
}

func TestConcurrentVotesAdmitOnce(t *testing.T) {
	g := newTestGovernance(t)
	withRegistered(t, g, 4)
	_, err := g.Apply("0xc1", "C1", founder)
	require.NoError(t, err)
	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted := 0
	for v := range 4 {
		wg.Add(1)
		go func(v int) {
			defer wg.Done()
			res, err := g.Vote("0xc1", airlineAddr(v))
			if err != nil {
				// Late voters find the candidate already registered
				assert.ErrorIs(t, err, types.ErrInvalidState)
				return
			}
			if res.Admitted {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}(v)
	}
	wg.Wait()
	assert.Equal(t, 1, admitted)
	assert.Equal(t, 5, g.Roster().RegisteredCount())
}

func TestRosterListAndByName(t *testing.T) {
	g := newTestGovernance(t)
	withRegistered(t, g, 3)
	list := g.Roster().List()
	require.Len(t, list, 3)
	assert.Equal(t, founder, list[0].Address)
	assert.Equal(t, airlineAddr(2), list[2].Address)

	a, err := g.Roster().ByName("air 1")
	require.NoError(t, err)
	assert.Equal(t, airlineAddr(1), a.Address)
	_, err = g.Roster().ByName("Nope Air")
	require.ErrorIs(t, err, types.ErrNotFound)
}

func TestRestore(t *testing.T) {
	g := newTestGovernance(t)
	g.Restore(
		[]Airline{
			{Address: founder, State: StateFunded, Funds: decimal.NewFromInt(10), Seq: 1},
			{Address: "0xa1", State: StateRegistered, Seq: 2},
			{Address: "0xa2", State: StateRegistered, Seq: 3},
			{Address: "0xa3", State: StateRegistered, Seq: 4},
			{Address: "0xc1", State: StateApplied, Seq: 5},
		},
		map[types.Address][]types.Address{"0xc1": {founder, "0xa1"}},
	)
	assert.Equal(t, 4, g.Roster().RegisteredCount())
	assert.True(t, g.Roster().IsFunded(founder))
	res, err := g.Vote("0xc1", "0xa2")
	require.NoError(t, err)
	assert.True(t, res.Admitted)
	assert.Equal(t, 3, res.Votes)
	a, err := g.Apply("0xd1", "", founder)
	require.NoError(t, err)
	assert.Equal(t, uint64(6), a.Seq)
}

func TestGovernanceMetrics(t *testing.T) {
	g := newTestGovernance(t)
	withRegistered(t, g, 4)
	assert.InDelta(t, 4, testutil.ToFloat64(g.metrics.registered), 0)
	assert.InDelta(t, 3, testutil.ToFloat64(g.metrics.admissions.WithLabelValues("bootstrap")), 0)
}

func TestRevertFunding(t *testing.T) {
	g := newTestGovernance(t)
	_, err := g.Fund(founder, decimal.NewFromInt(10), founder)
	require.NoError(t, err)
	_, err = g.Fund(founder, decimal.NewFromInt(12), founder)
	require.NoError(t, err)

	// Still above the minimum after taking back the second payment
	require.NoError(t, g.RevertFunding(founder, decimal.NewFromInt(12)))
	a, err := g.Roster().Get(founder)
	require.NoError(t, err)
	assert.Equal(t, StateFunded, a.State)
	assert.True(t, a.Funds.Equal(decimal.NewFromInt(10)))

	require.NoError(t, g.RevertFunding(founder, decimal.NewFromInt(10)))
	a, err = g.Roster().Get(founder)
	require.NoError(t, err)
	assert.Equal(t, StateRegistered, a.State)
	assert.True(t, a.Funds.IsZero())
	assert.False(t, g.Roster().IsFunded(founder))

	require.ErrorIs(t, g.RevertFunding("0xnobody", decimal.NewFromInt(1)), types.ErrNotFound)
}
