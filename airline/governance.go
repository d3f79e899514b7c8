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
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"github.com/z-vasconcelos/flightsurety/types"
)

const (
	DefaultBootstrapSize = 4
)

var DefaultMinFunding = decimal.NewFromInt(10)

var (
	ErrAlreadyApplied = fmt.Errorf(
		"airline already applied: %w",
		types.ErrAlreadyExists,
	)
	ErrDuplicateVote = fmt.Errorf(
		"airline already voted for candidate: %w",
		types.ErrAlreadyExists,
	)
	ErrInsufficientFunding = fmt.Errorf(
		"funding below minimum: %w",
		types.ErrThresholdNotMet,
	)
)

type GovernanceConfig struct {
	Logger       *slog.Logger
	PromRegistry prometheus.Registerer
	// Founder is registered when the roster is created
	Founder     types.Address
	FounderName string
	// BootstrapSize is the number of registered airlines below which a
	// new applicant is admitted without a vote
	BootstrapSize int
	MinFunding    decimal.Decimal
	// FundedParticipation requires an airline to be Funded, rather than
	// merely Registered, before it may apply others or vote
	FundedParticipation bool
	// Now is used for timestamps; defaults to time.Now
	Now func() time.Time
}

// VoteResult describes the tally after a vote was recorded
type VoteResult struct {
	Votes      int
	Registered int
	Admitted   bool
}

type candidateVotes struct {
	mu     sync.Mutex
	voters []types.Address
}

// Governance admits airlines to the roster, either directly during bootstrap
// or by a strict majority of registered airlines afterwards, and records
// their funding
type Governance struct {
	config  GovernanceConfig
	logger  *slog.Logger
	metrics *governanceMetrics
	roster  *Roster
	votesMu sync.Mutex
	votes   map[types.Address]*candidateVotes
}

func NewGovernance(cfg GovernanceConfig) (*Governance, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if cfg.BootstrapSize <= 0 {
		cfg.BootstrapSize = DefaultBootstrapSize
	}
	if cfg.MinFunding.IsZero() {
		cfg.MinFunding = DefaultMinFunding
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Founder == "" {
		return nil, fmt.Errorf("founding airline address is required: %w", types.ErrInvalidState)
	}
	g := &Governance{
		config: cfg,
		logger: cfg.Logger.With("component", "airline"),
		roster: newRoster(),
		votes:  make(map[types.Address]*candidateVotes),
	}
	if cfg.PromRegistry != nil {
		g.metrics = newGovernanceMetrics(cfg.PromRegistry)
	}
	if _, err := g.roster.add(cfg.Founder, cfg.FounderName, cfg.BootstrapSize, cfg.Now()); err != nil {
		return nil, err
	}
	g.updateRegisteredGauge()
	return g, nil
}

// Roster returns the read view of the airline records
func (g *Governance) Roster() *Roster {
	return g.roster
}

func (g *Governance) participationState() State {
	if g.config.FundedParticipation {
		return StateFunded
	}
	return StateRegistered
}

func (g *Governance) checkParticipant(addr types.Address) error {
	if !g.roster.hasState(addr, g.participationState()) {
		return fmt.Errorf(
			"airline %s must be %s to participate: %w",
			addr,
			g.participationState(),
			types.ErrNotAuthorized,
		)
	}
	return nil
}

// Apply records a candidate airline on behalf of caller. The candidate is
// registered immediately while the roster is below the bootstrap size and
// otherwise waits in the Applied state for votes.
func (g *Governance) Apply(
	candidate types.Address,
	name string,
	caller types.Address,
) (Airline, error) {
	if err := g.checkParticipant(caller); err != nil {
		return Airline{}, err
	}
	a, err := g.roster.add(candidate, name, g.config.BootstrapSize, g.config.Now())
	if err != nil {
		return Airline{}, err
	}
	if a.State == StateRegistered {
		g.logger.Info(
			"airline registered during bootstrap",
			"airline", candidate,
			"sponsor", caller,
		)
		if g.metrics != nil {
			g.metrics.admissions.WithLabelValues("bootstrap").Inc()
		}
		g.updateRegisteredGauge()
	} else {
		g.logger.Info(
			"airline applied",
			"airline", candidate,
			"sponsor", caller,
		)
	}
	return a, nil
}

func (g *Governance) candidate(addr types.Address) *candidateVotes {
	g.votesMu.Lock()
	defer g.votesMu.Unlock()
	cv, ok := g.votes[addr]
	if !ok {
		cv = &candidateVotes{}
		g.votes[addr] = cv
	}
	return cv
}

// Vote records a vote by voter for an Applied candidate and admits the
// candidate once more than half of the registered airlines have voted for it
func (g *Governance) Vote(
	candidate types.Address,
	voter types.Address,
) (VoteResult, error) {
	if err := g.checkParticipant(voter); err != nil {
		return VoteResult{}, err
	}
	if g.roster.RegisteredCount() < g.config.BootstrapSize {
		return VoteResult{}, fmt.Errorf(
			"voting is not open below %d registered airlines: %w",
			g.config.BootstrapSize,
			types.ErrInvalidState,
		)
	}
	a, err := g.roster.Get(candidate)
	if err != nil {
		return VoteResult{}, err
	}
	if a.State != StateApplied {
		return VoteResult{}, fmt.Errorf(
			"airline %s is %s: %w",
			candidate,
			a.State,
			types.ErrInvalidState,
		)
	}
	cv := g.candidate(candidate)
	cv.mu.Lock()
	defer cv.mu.Unlock()
	if slices.Contains(cv.voters, voter) {
		return VoteResult{}, fmt.Errorf(
			"%s for %s: %w",
			voter,
			candidate,
			ErrDuplicateVote,
		)
	}
	ret := VoteResult{Votes: len(cv.voters) + 1}
	admitted, err := g.roster.admit(candidate, func(registered int) bool {
		ret.Registered = registered
		return ret.Votes > registered/2
	})
	if err != nil {
		return VoteResult{}, err
	}
	cv.voters = append(cv.voters, voter)
	ret.Admitted = admitted
	if g.metrics != nil {
		g.metrics.votes.Inc()
	}
	g.logger.Debug(
		"vote recorded",
		"airline", candidate,
		"voter", voter,
		"votes", ret.Votes,
		"registered", ret.Registered,
	)
	if admitted {
		g.logger.Info(
			"airline registered by vote",
			"airline", candidate,
			"votes", ret.Votes,
		)
		if g.metrics != nil {
			g.metrics.admissions.WithLabelValues("vote").Inc()
		}
		g.updateRegisteredGauge()
	}
	return ret, nil
}

// Fund adds amount to an airline's funds. Only the airline itself may fund,
// and a single payment must meet the minimum.
func (g *Governance) Fund(
	addr types.Address,
	amount decimal.Decimal,
	caller types.Address,
) (Airline, error) {
	if caller != addr {
		return Airline{}, fmt.Errorf(
			"%s cannot fund %s: %w",
			caller,
			addr,
			types.ErrNotAuthorized,
		)
	}
	if !g.roster.IsRegistered(addr) {
		return Airline{}, fmt.Errorf(
			"airline %s is not registered: %w",
			addr,
			types.ErrNotAuthorized,
		)
	}
	if amount.LessThan(g.config.MinFunding) {
		return Airline{}, fmt.Errorf(
			"paid %s, minimum %s: %w",
			amount,
			g.config.MinFunding,
			ErrInsufficientFunding,
		)
	}
	a, err := g.roster.fund(addr, amount)
	if err != nil {
		return Airline{}, err
	}
	if g.metrics != nil {
		g.metrics.funded.Inc()
	}
	g.logger.Info(
		"airline funded",
		"airline", addr,
		"amount", amount.String(),
		"funds", a.Funds.String(),
	)
	return a, nil
}

// RevertFunding undoes a Fund whose payment could not be collected
func (g *Governance) RevertFunding(addr types.Address, amount decimal.Decimal) error {
	a, err := g.roster.unfund(addr, amount, g.config.MinFunding)
	if err != nil {
		return err
	}
	g.logger.Warn(
		"airline funding reverted",
		"airline", addr,
		"amount", amount.String(),
		"funds", a.Funds.String(),
		"state", a.State.String(),
	)
	return nil
}

// VoteCount returns the number of distinct voters for a candidate
func (g *Governance) VoteCount(candidate types.Address) (int, error) {
	voters, err := g.Voters(candidate)
	if err != nil {
		return 0, err
	}
	return len(voters), nil
}

// Voters returns the voters for a candidate in voting order
func (g *Governance) Voters(candidate types.Address) ([]types.Address, error) {
	if _, err := g.roster.Get(candidate); err != nil {
		return nil, err
	}
	g.votesMu.Lock()
	cv, ok := g.votes[candidate]
	g.votesMu.Unlock()
	if !ok {
		return []types.Address{}, nil
	}
	cv.mu.Lock()
	defer cv.mu.Unlock()
	return slices.Clone(cv.voters), nil
}

// Restore replaces the roster and vote records with persisted state
func (g *Governance) Restore(
	airlines []Airline,
	votes map[types.Address][]types.Address,
) {
	g.roster.restore(airlines)
	g.votesMu.Lock()
	g.votes = make(map[types.Address]*candidateVotes, len(votes))
	for candidate, voters := range votes {
		g.votes[candidate] = &candidateVotes{voters: slices.Clone(voters)}
	}
	g.votesMu.Unlock()
	g.updateRegisteredGauge()
}

func (g *Governance) updateRegisteredGauge() {
	if g.metrics != nil {
		g.metrics.registered.Set(float64(g.roster.RegisteredCount()))
	}
}
