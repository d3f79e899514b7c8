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
	"errors"
	"fmt"
)

var (
	ErrNotAuthorized   = errors.New("not authorized")
	ErrAlreadyExists   = errors.New("already exists")
	ErrIndexMismatch   = errors.New("index mismatch")
	ErrThresholdNotMet = errors.New("threshold not met")
	ErrNotFound        = errors.New("not found")
	ErrInvalidState    = errors.New("invalid state")

	// ErrNotOperational is returned by mutating operations while the
	// contract owner has paused the system
	ErrNotOperational = fmt.Errorf("contract is not operational: %w", ErrInvalidState)
)

var kinds = []struct {
	err  error
	name string
}{
	{ErrNotAuthorized, "NotAuthorized"},
	{ErrAlreadyExists, "AlreadyExists"},
	{ErrIndexMismatch, "IndexMismatch"},
	{ErrThresholdNotMet, "ThresholdNotMet"},
	{ErrNotFound, "NotFound"},
	{ErrInvalidState, "InvalidState"},
}

// Kind returns the taxonomy name of an error, or "Internal" for errors that
// do not wrap one of the sentinels above
func Kind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return "Internal"
}
