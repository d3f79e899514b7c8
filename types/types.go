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

package types

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// Address identifies a caller: an airline, an oracle, a buyer or the
// contract owner. Callers are trusted to present their own address.
type Address string

// ParseAddress normalizes an address and rejects the empty value
func ParseAddress(s string) (Address, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "", fmt.Errorf("empty address: %w", ErrInvalidState)
	}
	return Address(s), nil
}

func (a Address) String() string {
	return string(a)
}

// FlightStatus is the status code reported for a flight
type FlightStatus uint8

const (
	StatusUnknown       FlightStatus = 0
	StatusOnTime        FlightStatus = 10
	StatusLateAirline   FlightStatus = 20
	StatusLateWeather   FlightStatus = 30
	StatusLateTechnical FlightStatus = 40
	StatusLateOther     FlightStatus = 50
)

// ReportableStatuses lists every status an oracle may submit
var ReportableStatuses = []FlightStatus{
	StatusOnTime,
	StatusLateAirline,
	StatusLateWeather,
	StatusLateTechnical,
	StatusLateOther,
}

var statusNames = map[FlightStatus]string{
	StatusUnknown:       "Unknown",
	StatusOnTime:        "OnTime",
	StatusLateAirline:   "LateAirline",
	StatusLateWeather:   "LateWeather",
	StatusLateTechnical: "LateTechnical",
	StatusLateOther:     "LateOther",
}

func (s FlightStatus) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "FlightStatus(" + strconv.Itoa(int(s)) + ")"
}

// Valid reports whether the code is one of the defined status codes
func (s FlightStatus) Valid() bool {
	_, ok := statusNames[s]
	return ok
}

// Reportable reports whether an oracle may submit this status
func (s FlightStatus) Reportable() bool {
	return s.Valid() && s != StatusUnknown
}

// ParseFlightStatus accepts either a status name (case-insensitive) or its
// numeric code
func ParseFlightStatus(s string) (FlightStatus, error) {
	s = strings.TrimSpace(s)
	if code, err := strconv.ParseUint(s, 10, 8); err == nil {
		status := FlightStatus(code)
		if !status.Valid() {
			return 0, fmt.Errorf("unknown status code %d: %w", code, ErrInvalidState)
		}
		return status, nil
	}
	for status, name := range statusNames {
		if strings.EqualFold(name, s) {
			return status, nil
		}
	}
	return 0, fmt.Errorf("unknown status %q: %w", s, ErrInvalidState)
}

// FlightKey is the identity of a flight: the operating airline, the flight
// code and the scheduled departure as a unix timestamp
type FlightKey struct {
	Airline   Address `json:"airline"`
	Code      string  `json:"code"`
	Timestamp int64   `json:"timestamp"`
}

// Hash returns a stable hex digest of the key
func (k FlightKey) Hash() string {
	h := sha256.New()
	writeField := func(b []byte) {
		var lenBuf [8]byte
		binary.BigEndian.PutUint64(lenBuf[:], uint64(len(b)))
		h.Write(lenBuf[:])
		h.Write(b)
	}
	writeField([]byte(k.Airline))
	writeField([]byte(k.Code))
	var tsBuf [8]byte
	binary.BigEndian.PutUint64(tsBuf[:], uint64(k.Timestamp)) //nolint:gosec
	writeField(tsBuf[:])
	return hex.EncodeToString(h.Sum(nil))
}

func (k FlightKey) String() string {
	return fmt.Sprintf("%s/%s@%d", k.Airline, k.Code, k.Timestamp)
}
