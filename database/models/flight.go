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

	"github.com/z-vasconcelos/flightsurety/flight"
	"github.com/z-vasconcelos/flightsurety/oracle"
	"github.com/z-vasconcelos/flightsurety/types"
)

type Oracle struct {
	RegisteredAt time.Time
	Address      string `gorm:"uniqueIndex;size:128"`
	Indexes      []byte
	ID           uint `gorm:"primarykey"`
}

func (Oracle) TableName() string {
	return "oracle"
}

func NewOracle(o oracle.Oracle) Oracle {
	return Oracle{
		Address:      string(o.Address),
		Indexes:      append([]byte(nil), o.Indexes...),
		RegisteredAt: o.RegisteredAt,
	}
}

func (o Oracle) ToOracle() oracle.Oracle {
	return oracle.Oracle{
		Address:      types.Address(o.Address),
		Indexes:      append([]uint8(nil), o.Indexes...),
		RegisteredAt: o.RegisteredAt,
	}
}

type Flight struct {
	RegisteredAt time.Time
	// Not named UpdatedAt so that gorm leaves it alone
	StatusAt    time.Time
	Hash        string `gorm:"uniqueIndex;size:64"`
	Airline     string `gorm:"index;size:128"`
	Code        string `gorm:"size:64"`
	Origin      string `gorm:"size:64"`
	Destination string `gorm:"size:64"`
	ID          uint   `gorm:"primarykey"`
	Timestamp   int64
	Status      uint8
}

func (Flight) TableName() string {
	return "flight"
}

func NewFlight(f flight.Flight) Flight {
	return Flight{
		Hash:         f.Key.Hash(),
		Airline:      string(f.Key.Airline),
		Code:         f.Key.Code,
		Timestamp:    f.Key.Timestamp,
		Origin:       f.Origin,
		Destination:  f.Destination,
		Status:       uint8(f.Status),
		RegisteredAt: f.RegisteredAt,
		StatusAt:     f.UpdatedAt,
	}
}

func (f Flight) Key() types.FlightKey {
	return types.FlightKey{
		Airline:   types.Address(f.Airline),
		Code:      f.Code,
		Timestamp: f.Timestamp,
	}
}

func (f Flight) ToFlight() flight.Flight {
	return flight.Flight{
		Key:          f.Key(),
		Origin:       f.Origin,
		Destination:  f.Destination,
		Status:       types.FlightStatus(f.Status),
		RegisteredAt: f.RegisteredAt,
		UpdatedAt:    f.StatusAt,
	}
}
