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

package queryapi

import (
	"time"

	"github.com/z-vasconcelos/flightsurety/airline"
	"github.com/z-vasconcelos/flightsurety/flight"
	"github.com/z-vasconcelos/flightsurety/insurance"
)

// RootResponse is returned by GET /
type RootResponse struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// HealthResponse is returned by GET /health
type HealthResponse struct {
	IsHealthy bool `json:"is_healthy"`
}

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	StatusCode int    `json:"status_code"`
	Error      string `json:"error"`
	Message    string `json:"message"`
}

// StatusResponse is returned by GET /api/v0/status
type StatusResponse struct {
	Operational bool   `json:"operational"`
	Balance     string `json:"balance"`
	Airlines    int    `json:"airlines"`
	Flights     int    `json:"flights"`
	Oracles     int    `json:"oracles"`
}

// AirlineResponse describes an airline and its governance state
type AirlineResponse struct {
	Address   string    `json:"address"`
	Name      string    `json:"name,omitempty"`
	State     string    `json:"state"`
	Funds     string    `json:"funds"`
	Votes     int       `json:"votes"`
	AppliedAt time.Time `json:"applied_at"`
}

// FlightResponse describes a registered flight
type FlightResponse struct {
	Hash         string    `json:"hash"`
	Airline      string    `json:"airline"`
	Code         string    `json:"code"`
	Timestamp    int64     `json:"timestamp"`
	Origin       string    `json:"origin,omitempty"`
	Destination  string    `json:"destination,omitempty"`
	Status       string    `json:"status"`
	StatusCode   uint8     `json:"status_code"`
	RegisteredAt time.Time `json:"registered_at"`
}

// IndexesResponse is returned by GET /api/v0/oracles/{address}/indexes
type IndexesResponse struct {
	Address string `json:"address"`
	// Indexes are ints so they encode as a JSON array rather than base64
	Indexes []int `json:"indexes"`
}

// CreditsResponse is returned by GET /api/v0/insurees/{address}/credits
type CreditsResponse struct {
	Address string `json:"address"`
	Credits string `json:"credits"`
}

// PolicyResponse describes one purchase of coverage
type PolicyResponse struct {
	FlightHash  string     `json:"flight_hash"`
	Airline     string     `json:"airline"`
	Code        string     `json:"code"`
	Timestamp   int64      `json:"timestamp"`
	Paid        string     `json:"paid"`
	Credit      string     `json:"credit"`
	Credited    bool       `json:"credited"`
	PurchasedAt time.Time  `json:"purchased_at"`
	CreditedAt  *time.Time `json:"credited_at,omitempty"`
}

func airlineResponse(a airline.Airline, votes int) AirlineResponse {
	return AirlineResponse{
		Address:   string(a.Address),
		Name:      a.Name,
		State:     a.State.String(),
		Funds:     a.Funds.String(),
		Votes:     votes,
		AppliedAt: a.AppliedAt,
	}
}

func flightResponse(f flight.Flight) FlightResponse {
	return FlightResponse{
		Hash:         f.Key.Hash(),
		Airline:      string(f.Key.Airline),
		Code:         f.Key.Code,
		Timestamp:    f.Key.Timestamp,
		Origin:       f.Origin,
		Destination:  f.Destination,
		Status:       f.Status.String(),
		StatusCode:   uint8(f.Status),
		RegisteredAt: f.RegisteredAt,
	}
}

func policyResponse(p insurance.Policy) PolicyResponse {
	ret := PolicyResponse{
		FlightHash:  p.Flight.Hash(),
		Airline:     string(p.Flight.Airline),
		Code:        p.Flight.Code,
		Timestamp:   p.Flight.Timestamp,
		Paid:        p.Paid.String(),
		Credit:      p.Credit.String(),
		Credited:    p.Credited,
		PurchasedAt: p.PurchasedAt,
	}
	if p.Credited {
		creditedAt := p.CreditedAt
		ret.CreditedAt = &creditedAt
	}
	return ret
}
