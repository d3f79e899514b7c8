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

	"github.com/z-vasconcelos/flightsurety/insurance"
	"github.com/z-vasconcelos/flightsurety/types"
)

type Policy struct {
	PurchasedAt time.Time
	CreditedAt  time.Time
	Paid        decimal.Decimal `gorm:"type:text"`
	Credit      decimal.Decimal `gorm:"type:text"`
	FlightHash  string          `gorm:"uniqueIndex:idx_policy_flight_buyer;size:64"`
	Buyer       string          `gorm:"uniqueIndex:idx_policy_flight_buyer;index;size:128"`
	Airline     string          `gorm:"size:128"`
	Code        string          `gorm:"size:64"`
	ID          uint            `gorm:"primarykey"`
	Timestamp   int64
	Credited    bool
}

func (Policy) TableName() string {
	return "policy"
}

func NewPolicy(p insurance.Policy) Policy {
	return Policy{
		FlightHash:  p.Flight.Hash(),
		Airline:     string(p.Flight.Airline),
		Code:        p.Flight.Code,
		Timestamp:   p.Flight.Timestamp,
		Buyer:       string(p.Buyer),
		Paid:        p.Paid,
		Credit:      p.Credit,
		Credited:    p.Credited,
		PurchasedAt: p.PurchasedAt,
		CreditedAt:  p.CreditedAt,
	}
}

func (p Policy) ToPolicy() insurance.Policy {
	return insurance.Policy{
		Flight: types.FlightKey{
			Airline:   types.Address(p.Airline),
			Code:      p.Code,
			Timestamp: p.Timestamp,
		},
		Buyer:       types.Address(p.Buyer),
		Paid:        p.Paid,
		Credit:      p.Credit,
		Credited:    p.Credited,
		PurchasedAt: p.PurchasedAt,
		CreditedAt:  p.CreditedAt,
	}
}
