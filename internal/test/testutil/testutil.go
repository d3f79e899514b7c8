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

// Package testutil holds helpers shared by tests that wait on asynchronous
// delivery or compare decimal amounts
package testutil

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

const defaultPollInterval = 10 * time.Millisecond

// WaitForCondition polls condition until it returns true or the timeout
// expires
func WaitForCondition(
	t *testing.T,
	condition func() bool,
	timeout time.Duration,
	msg string,
) {
	t.Helper()
	require.Eventually(t, condition, timeout, defaultPollInterval, msg)
}

// RequireReceive waits for a value on ch or fails the test once the timeout
// expires
func RequireReceive[T any](
	t *testing.T,
	ch <-chan T,
	timeout time.Duration,
	msg string,
) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(timeout):
		t.Fatalf("timeout waiting for channel receive: %s", msg)
		var zero T
		return zero
	}
}

// RequireAmount fails unless got is numerically equal to the decimal literal
// want. Equal ignores exponent differences, so "1.50" matches "1.5".
func RequireAmount(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	expected := decimal.RequireFromString(want)
	require.Truef(
		t,
		expected.Equal(got),
		"expected amount %s, got %s",
		expected,
		got,
	)
}

// WaitForAmount polls get until it returns the decimal literal want
func WaitForAmount(
	t *testing.T,
	want string,
	get func() decimal.Decimal,
	timeout time.Duration,
) {
	t.Helper()
	expected := decimal.RequireFromString(want)
	require.Eventuallyf(
		t,
		func() bool { return expected.Equal(get()) },
		timeout,
		defaultPollInterval,
		"amount never reached %s",
		expected,
	)
}
