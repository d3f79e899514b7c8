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

package oracle

import (
	"fmt"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/z-vasconcelos/flightsurety/types"
)

func newTestRegistry(t *testing.T, source IndexSource) *Registry {
	t.Helper()
	return NewRegistry(RegistryConfig{
		PromRegistry: prometheus.NewRegistry(),
		Source:       source,
	})
}

func TestRegisterAssignsIndexes(t *testing.T) {
	r := newTestRegistry(t, NewSequenceSource(3, 7, 3, 12))
	o, err := r.Register("0xo1", decimal.NewFromInt(1))
	require.NoError(t, err)
	// Repeats are allowed
	assert.Equal(t, []uint8{3, 7, 3}, o.Indexes)

	indexes, err := r.IndexesOf("0xo1")
	require.NoError(t, err)
	assert.Equal(t, []uint8{3, 7, 3}, indexes)
	assert.True(t, r.HasIndex("0xo1", 7))
	assert.False(t, r.HasIndex("0xo1", 2))
	assert.False(t, r.HasIndex("0xo2", 3))
}

func TestRegisterIndexesInDomain(t *testing.T) {
	r := newTestRegistry(t, NewRandSource(42))
	for i := range 50 {
		o, err := r.Register(types.Address(fmt.Sprintf("0xo%d", i)), decimal.NewFromInt(2))
		require.NoError(t, err)
		require.Len(t, o.Indexes, DefaultIndexesPerOracle)
		for _, idx := range o.Indexes {
			assert.Less(t, int(idx), DefaultIndexDomain)
		}
	}
	assert.Equal(t, 50, r.Count())
	assert.InDelta(t, 50, testutil.ToFloat64(r.registered), 0)
}

func TestRegisterFeeTooLow(t *testing.T) {
	r := newTestRegistry(t, nil)
	_, err := r.Register("0xo1", decimal.RequireFromString("0.99"))
	require.ErrorIs(t, err, ErrInsufficientFee)
	require.ErrorIs(t, err, types.ErrThresholdNotMet)
	_, err = r.IndexesOf("0xo1")
	require.ErrorIs(t, err, types.ErrNotFound)
}

func TestReRegisterOverwrites(t *testing.T) {
	r := newTestRegistry(t, NewSequenceSource(1, 2, 3, 4, 5, 6))
	_, err := r.Register("0xo1", decimal.NewFromInt(1))
	require.NoError(t, err)
	o, err := r.Register("0xo1", decimal.NewFromInt(1))
	require.NoError(t, err)
	assert.Equal(t, []uint8{4, 5, 6}, o.Indexes)
	assert.Equal(t, 1, r.Count())
}

func TestReturnedIndexesAreCopies(t *testing.T) {
	r := newTestRegistry(t, NewSequenceSource(1, 2, 3))
	o, err := r.Register("0xo1", decimal.NewFromInt(1))
	require.NoError(t, err)
	o.Indexes[0] = 9
	assert.False(t, r.HasIndex("0xo1", 9))
}

func TestConcurrentRegister(t *testing.T) {
	r := newTestRegistry(t, NewRandSource(7))
	var wg sync.WaitGroup
	for i := range 32 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := r.Register(types.Address(fmt.Sprintf("0xo%d", i)), decimal.NewFromInt(1))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()
	assert.Len(t, r.List(), 32)
}

func TestRestore(t *testing.T) {
	r := newTestRegistry(t, nil)
	r.Restore([]Oracle{
		{Address: "0xo2", Indexes: []uint8{1, 1, 1}},
		{Address: "0xo1", Indexes: []uint8{4, 5, 6}},
	})
	list := r.List()
	require.Len(t, list, 2)
	assert.Equal(t, types.Address("0xo1"), list[0].Address)
	assert.True(t, r.HasIndex("0xo2", 1))
}

func TestSequenceSourceWraps(t *testing.T) {
	s := NewSequenceSource(11, -1)
	assert.Equal(t, 1, s.Intn(10))
	assert.Equal(t, 9, s.Intn(10))
	assert.Equal(t, 1, s.Intn(10))
	assert.Equal(t, 0, NewSequenceSource().Intn(10))
}

func TestRevert(t *testing.T) {
	r := newTestRegistry(t, NewSequenceSource(1, 2, 3, 4, 5, 6, 7, 8, 9))
	first, err := r.Register("0xo1", decimal.NewFromInt(1))
	require.NoError(t, err)
	r.Revert(first, Oracle{}, false)
	_, err = r.Get("0xo1")
	require.ErrorIs(t, err, types.ErrNotFound)
	assert.Zero(t, testutil.ToFloat64(r.registered))

	first, err = r.Register("0xo1", decimal.NewFromInt(1))
	require.NoError(t, err)
	second, err := r.Register("0xo1", decimal.NewFromInt(1))
	require.NoError(t, err)
	r.Revert(second, first, true)
	indexes, err := r.IndexesOf("0xo1")
	require.NoError(t, err)
	assert.Equal(t, first.Indexes, indexes)

	// A stale revert leaves a newer registration alone
	third, err := r.Register("0xo1", decimal.NewFromInt(1))
	require.NoError(t, err)
	r.Revert(second, first, true)
	indexes, err = r.IndexesOf("0xo1")
	require.NoError(t, err)
	assert.Equal(t, third.Indexes, indexes)
	assert.InDelta(t, 1, testutil.ToFloat64(r.registered), 0)
}
