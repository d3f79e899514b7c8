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

package surety

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/z-vasconcelos/flightsurety/event"
	"github.com/z-vasconcelos/flightsurety/types"
)

const (
	AirlineAppliedEventType     event.EventType = "airline.applied"
	AirlineRegisteredEventType  event.EventType = "airline.registered"
	VoteRecordedEventType       event.EventType = "airline.vote"
	AirlineFundedEventType      event.EventType = "airline.funded"
	OracleRegisteredEventType   event.EventType = "oracle.registered"
	FlightRegisteredEventType   event.EventType = "flight.registered"
	StatusRequestedEventType    event.EventType = "flight.status_requested"
	StatusFinalizedEventType    event.EventType = "flight.status_finalized"
	InsurancePurchasedEventType event.EventType = "insurance.purchased"
	CreditIssuedEventType       event.EventType = "insurance.credit_issued"
	CreditWithdrawnEventType    event.EventType = "insurance.credit_withdrawn"
	OperationalEventType        event.EventType = "contract.operational"
)

// EventTypes lists every event type published by the application
var EventTypes = []event.EventType{
	AirlineAppliedEventType,
	AirlineRegisteredEventType,
	VoteRecordedEventType,
	AirlineFundedEventType,
	OracleRegisteredEventType,
	FlightRegisteredEventType,
	StatusRequestedEventType,
	StatusFinalizedEventType,
	InsurancePurchasedEventType,
	CreditIssuedEventType,
	CreditWithdrawnEventType,
	OperationalEventType,
}

type AirlineAppliedEvent struct {
	Airline types.Address `json:"airline"`
	Name    string        `json:"name"`
	Sponsor types.Address `json:"sponsor"`
}

type AirlineRegisteredEvent struct {
	Airline types.Address `json:"airline"`
	Name    string        `json:"name"`
	// Votes is zero for airlines admitted during bootstrap
	Votes int `json:"votes"`
}

type VoteRecordedEvent struct {
	Candidate types.Address `json:"candidate"`
	Voter     types.Address `json:"voter"`
	Votes     int           `json:"votes"`
}

type AirlineFundedEvent struct {
	Airline types.Address   `json:"airline"`
	Amount  decimal.Decimal `json:"amount"`
	Funds   decimal.Decimal `json:"funds"`
}

type OracleRegisteredEvent struct {
	Oracle  types.Address   `json:"oracle"`
	Indexes []int           `json:"indexes"`
	Fee     decimal.Decimal `json:"fee"`
}

type FlightRegisteredEvent struct {
	Flight      types.FlightKey `json:"flight"`
	Origin      string          `json:"origin"`
	Destination string          `json:"destination"`
}

type StatusRequestedEvent struct {
	Index       uint8           `json:"index"`
	Flight      types.FlightKey `json:"flight"`
	Requester   types.Address   `json:"requester"`
	RequestedAt time.Time       `json:"requestedAt"`
}

type StatusFinalizedEvent struct {
	Index  uint8              `json:"index"`
	Flight types.FlightKey    `json:"flight"`
	Status types.FlightStatus `json:"status"`
}

type InsurancePurchasedEvent struct {
	Flight types.FlightKey `json:"flight"`
	Buyer  types.Address   `json:"buyer"`
	Amount decimal.Decimal `json:"amount"`
	Paid   decimal.Decimal `json:"paid"`
}

type CreditIssuedEvent struct {
	Buyer  types.Address   `json:"buyer"`
	Flight types.FlightKey `json:"flight"`
	Amount decimal.Decimal `json:"amount"`
}

type CreditWithdrawnEvent struct {
	Buyer     types.Address   `json:"buyer"`
	Amount    decimal.Decimal `json:"amount"`
	Remaining decimal.Decimal `json:"remaining"`
}

type OperationalEvent struct {
	Operational bool          `json:"operational"`
	By          types.Address `json:"by"`
}
