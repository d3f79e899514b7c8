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

package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/z-vasconcelos/flightsurety/airline"
	"github.com/z-vasconcelos/flightsurety/types"
)

type Airline struct {
	AppliedAt time.Time
	Funds     decimal.Decimal `gorm:"type:text"`
	Address   string          `gorm:"uniqueIndex;size:128"`
	Name      string          `gorm:"index;size:255"`
	ID        uint            `gorm:"primarykey"`
	Seq       uint64
	State     uint8
}

func (Airline) TableName() string {
	return "airline"
}

func NewAirline(a airline.Airline) Airline {
	return Airline{
		Address:   string(a.Address),
		Name:      a.Name,
		State:     uint8(a.State),
		Funds:     a.Funds,
		AppliedAt: a.AppliedAt,
		Seq:       a.Seq,
	}
}

func (a Airline) ToAirline() airline.Airline {
	return airline.Airline{
		Address:   types.Address(a.Address),
		Name:      a.Name,
		State:     airline.State(a.State),
		Funds:     a.Funds,
		AppliedAt: a.AppliedAt,
		Seq:       a.Seq,
	}
}

// AirlineVote is one vote cast for a candidate. Position preserves the order
// in which votes were cast.
type AirlineVote struct {
	Candidate string `gorm:"uniqueIndex:idx_airline_vote;size:128"`
	Voter     string `gorm:"uniqueIndex:idx_airline_vote;size:128"`
	ID        uint   `gorm:"primarykey"`
	Position  int
}

func (AirlineVote) TableName() string {
	return "airline_vote"
}
