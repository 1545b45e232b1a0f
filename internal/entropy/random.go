// Package entropy provides the single seedable random source threaded through
// a simulation run. Every stochastic decision draws from one Source so a run
// is reproducible from its seed.
package entropy

import (
	"crypto/rand"
	"encoding/binary"
	"log/slog"
	mrand "math/rand"
)

// Source is a seeded pseudo-random generator. It is not safe for concurrent
// use; a run owns exactly one.
type Source struct {
	seed int64
	rng  *mrand.Rand
}

// New creates a source for the given seed. A zero seed draws a fresh one
// from crypto/rand.
func New(seed int64) *Source {
	if seed == 0 {
		seed = CryptoSeed()
		slog.Debug("drew random seed", "seed", seed)
	}
	return &Source{seed: seed, rng: mrand.New(mrand.NewSource(seed))}
}

// Seed returns the seed the source was created with.
func (s *Source) Seed() int64 {
	return s.seed
}

// Float64 returns a value in [0, 1).
func (s *Source) Float64() float64 {
	return s.rng.Float64()
}

// Intn returns a value in [0, n). n must be positive.
func (s *Source) Intn(n int) int {
	return s.rng.Intn(n)
}

// Read fills p with random bytes. It lets the source seed UUID generation.
func (s *Source) Read(p []byte) (int, error) {
	return s.rng.Read(p)
}

// Chance reports true with probability p.
func (s *Source) Chance(p float64) bool {
	return s.rng.Float64() < p
}

// ChooseWeighted picks an index with probability proportional to its weight.
// Non-positive weights are never chosen unless all weights are, in which
// case the choice is uniform. Returns -1 for an empty slice.
func (s *Source) ChooseWeighted(weights []float64) int {
	if len(weights) == 0 {
		return -1
	}
	total := 0.0
	for _, w := range weights {
		if w > 0 {
			total += w
		}
	}
	if total <= 0 {
		return s.rng.Intn(len(weights))
	}
	r := s.rng.Float64() * total
	last := -1
	for i, w := range weights {
		if w <= 0 {
			continue
		}
		last = i
		r -= w
		if r < 0 {
			return i
		}
	}
	// Rounding can leave r marginally non-negative.
	return last
}

// CryptoSeed returns a non-zero seed from crypto/rand.
func CryptoSeed() int64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 1
	}
	seed := int64(binary.LittleEndian.Uint64(buf[:]) >> 1)
	if seed == 0 {
		seed = 1
	}
	return seed
}
