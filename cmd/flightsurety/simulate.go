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

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/z-vasconcelos/flightsurety/airline"
	"github.com/z-vasconcelos/flightsurety/event"
	"github.com/z-vasconcelos/flightsurety/internal/config"
	"github.com/z-vasconcelos/flightsurety/oracle"
	"github.com/z-vasconcelos/flightsurety/reporter"
	"github.com/z-vasconcelos/flightsurety/surety"
	"github.com/z-vasconcelos/flightsurety/types"
)

type simulateOptions struct {
	// source overrides seed when set
	source    oracle.IndexSource
	policy    surety.Policy
	premium   decimal.Decimal
	status    types.FlightStatus
	seed      uint64
	reporters int
	attempts  int
	wait      time.Duration
}

const (
	simOwner   types.Address = "0xowner"
	simBuyer   types.Address = "0xbuyer"
	simFlight                = "FS101"
	simAirline               = 5
)

func simAirlineAddr(i int) types.Address {
	return types.Address(fmt.Sprintf("0xairline%02d", i))
}

// simulate runs the governance, insurance and oracle lifecycle end to end on
// an in-memory application and narrates each step to w
func simulate(
	ctx context.Context,
	w io.Writer,
	logger *slog.Logger,
	opts simulateOptions,
) error {
	source := opts.source
	if source == nil && opts.seed != 0 {
		source = oracle.NewRandSource(opts.seed)
	}
	founder := simAirlineAddr(0)
	app, err := surety.New(surety.Config{
		Logger:              logger,
		Source:              source,
		Owner:               simOwner,
		FoundingAirline:     founder,
		FoundingAirlineName: "Founding Air",
		Policy:              opts.policy,
	})
	if err != nil {
		return err
	}
	defer app.Close()

	// Governance: bootstrap admissions, then a vote
	for i := 1; i < simAirline; i++ {
		a, err := app.ApplyAirline(founder, simAirlineAddr(i), fmt.Sprintf("Airline %d", i))
		if err != nil {
			return fmt.Errorf("apply airline %d: %w", i, err)
		}
		fmt.Fprintf(w, "airline %s applied: %s\n", a.Address, a.State)
	}
	candidate := simAirlineAddr(simAirline - 1)
	for i := range simAirline - 1 {
		a, err := app.GetAirline(candidate)
		if err != nil {
			return err
		}
		if a.State != airline.StateApplied {
			break
		}
		res, err := app.VoteAirline(simAirlineAddr(i), candidate)
		if err != nil {
			return fmt.Errorf("vote for %s: %w", candidate, err)
		}
		fmt.Fprintf(
			w,
			"airline %s voted for %s: %d votes of %d registered, admitted=%t\n",
			simAirlineAddr(i),
			candidate,
			res.Votes,
			res.Registered,
			res.Admitted,
		)
	}

	// Funding and flight registration
	a, err := app.FundAirline(founder, founder, opts.policy.MinFunding)
	if err != nil {
		return fmt.Errorf("fund airline: %w", err)
	}
	fmt.Fprintf(w, "airline %s funded with %s: %s\n", founder, a.Funds, a.State)
	f, err := app.RegisterFlight(founder, simFlight, "LIS", "JFK", time.Now().Add(24*time.Hour).Unix())
	if err != nil {
		return fmt.Errorf("register flight: %w", err)
	}
	fmt.Fprintf(w, "flight %s registered\n", f.Key)

	// Insurance
	p, err := app.BuyInsurance(simBuyer, f.Key, opts.premium)
	if err != nil {
		return fmt.Errorf("buy insurance: %w", err)
	}
	fmt.Fprintf(w, "buyer %s insured %s for %s\n", simBuyer, f.Key, p.Paid)

	// Oracles
	fleet, err := reporter.New(reporter.Config{
		Logger:  logger,
		Surety:  app,
		Picker:  reporter.FixedPicker(opts.status),
		Fee:     opts.policy.RegistrationFee,
		Count:   opts.reporters,
		Workers: reporter.DefaultWorkers,
	})
	if err != nil {
		return err
	}
	if err := fleet.Start(ctx); err != nil {
		return fmt.Errorf("start oracle fleet: %w", err)
	}
	defer func() {
		_ = fleet.Stop()
	}()
	fmt.Fprintf(w, "%d oracles registered\n", len(fleet.Members()))

	finalized := make(chan surety.StatusFinalizedEvent, 1)
	subId := app.EventBus().SubscribeFunc(
		func(evt event.Event) {
			if data, ok := evt.Data.(surety.StatusFinalizedEvent); ok {
				select {
				case finalized <- data:
				default:
				}
			}
		},
		surety.StatusFinalizedEventType,
	)
	defer app.EventBus().Unsubscribe(subId)

	// A request may land on an index too few oracles hold, so ask again
	var result *surety.StatusFinalizedEvent
	for attempt := 1; attempt <= opts.attempts && result == nil; attempt++ {
		req, err := app.RequestFlightStatus(simBuyer, f.Key)
		if err != nil {
			return fmt.Errorf("request flight status: %w", err)
		}
		fmt.Fprintf(w, "status requested for %s at index %d\n", f.Key, req.Index)
		select {
		case data := <-finalized:
			result = &data
		case <-time.After(opts.wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if result == nil {
		return fmt.Errorf("flight status did not finalize after %d requests", opts.attempts)
	}
	fmt.Fprintf(w, "flight %s finalized as %s at index %d\n", result.Flight, result.Status, result.Index)

	// Payout
	credit := app.GetInsureeCredits(simBuyer)
	fmt.Fprintf(w, "buyer %s credit: %s\n", simBuyer, credit)
	if credit.IsPositive() {
		wd, err := app.WithdrawCredit(simBuyer, credit)
		if err != nil {
			return fmt.Errorf("withdraw credit: %w", err)
		}
		fmt.Fprintf(w, "buyer %s withdrew %s, remaining %s\n", simBuyer, wd.Amount, wd.Remaining)
		if _, err := app.WithdrawCredit(simBuyer, credit); !errors.Is(err, types.ErrThresholdNotMet) {
			return fmt.Errorf("second withdrawal: expected threshold error, got %v", err)
		}
		fmt.Fprintf(w, "second withdrawal rejected: %s\n", types.Kind(types.ErrThresholdNotMet))
	}
	fmt.Fprintf(w, "contract balance: %s\n", app.ContractBalance())
	return nil
}

func simulateCommand() *cobra.Command {
	var statusName, premium string
	var seed uint64
	var attempts int
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run an in-memory end-to-end scenario and print each step",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := config.FromContext(cmd.Context())
			if cfg == nil {
				slog.Error("no config found in context")
				os.Exit(1)
			}
			logger := slog.Default()
			policy, err := cfg.Policy()
			if err != nil {
				slog.Error(err.Error())
				os.Exit(1)
			}
			status, err := types.ParseFlightStatus(statusName)
			if err != nil || !status.Reportable() {
				slog.Error(fmt.Sprintf("invalid status: %s", statusName))
				os.Exit(1)
			}
			amount, err := decimal.NewFromString(premium)
			if err != nil {
				slog.Error(fmt.Sprintf("invalid premium: %s", err))
				os.Exit(1)
			}
			reporters := cfg.ReporterCount
			if reporters <= 0 {
				reporters = reporter.DefaultCount
			}
			err = simulate(cmd.Context(), cmd.OutOrStdout(), logger, simulateOptions{
				policy:    policy,
				premium:   amount,
				status:    status,
				seed:      seed,
				reporters: reporters,
				attempts:  attempts,
				wait:      time.Second,
			})
			if err != nil {
				slog.Error(err.Error())
				os.Exit(1)
			}
		},
	}
	cmd.Flags().StringVar(&statusName, "status", "LateAirline", "status reported by every oracle")
	cmd.Flags().StringVar(&premium, "premium", "0.5", "premium paid by the buyer")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "seed for index assignment, 0 for a random seed")
	cmd.Flags().IntVar(&attempts, "attempts", 10, "status requests before giving up")
	return cmd
}
