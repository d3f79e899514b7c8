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
	"math/rand/v2"
	"sync"
)

// IndexSource supplies pseudo-random values in [0, n). Index assignment and
// round selection only need unpredictability, not cryptographic strength.
type IndexSource interface {
	Intn(n int) int
}

type randSource struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandSource returns a seeded, goroutine-safe IndexSource
func NewRandSource(seed uint64) IndexSource {
	return &randSource{
		rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)), //nolint:gosec
	}
}

func (s *randSource) Intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.IntN(n)
}

// SequenceSource replays a fixed list of values, wrapping around at the end.
// Values are reduced modulo n.
type SequenceSource struct {
	mu     sync.Mutex
	values []int
	pos    int
}

func NewSequenceSource(values ...int) *SequenceSource {
	return &SequenceSource{values: values}
}

func (s *SequenceSource) Intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.values) == 0 {
		return 0
	}
	v := s.values[s.pos%len(s.values)]
	s.pos++
	return ((v % n) + n) % n
}
