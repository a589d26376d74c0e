// Package simrand provides the explicit pseudo-random source threaded
// through the simulation so runs can be reproduced from a seed.
package simrand

import (
	"encoding/binary"
	"io"
	"math/rand/v2"
)

// Rand is the subset of *rand.Rand the simulation draws from.
type Rand interface {
	// Float64 returns a value in [0, 1).
	Float64() float64
	// IntN returns a value in [0, n). n must be positive.
	IntN(n int) int
}

// New returns a PCG-backed generator for seed.
func New(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// NewReader returns a deterministic byte stream for seed, used to derive
// event identifiers.
func NewReader(seed uint64) io.Reader {
	var key [32]byte
	binary.LittleEndian.PutUint64(key[:8], seed)
	binary.LittleEndian.PutUint64(key[8:16], ^seed)
	return rand.NewChaCha8(key)
}

// IntRange returns an integer in the closed interval [lo, hi].
func IntRange(r Rand, lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + r.IntN(hi-lo+1)
}

// Chance reports true with probability p.
func Chance(r Rand, p float64) bool {
	return r.Float64() < p
}

// Scripted replays fixed values. It is meant for tests that need to steer
// individual random branches. When a list runs out, Float64 returns
// FloatDefault and IntN returns 0.
type Scripted struct {
	Floats       []float64
	Ints         []int
	FloatDefault float64

	fi, ii int
}

func (s *Scripted) Float64() float64 {
	if s.fi >= len(s.Floats) {
		return s.FloatDefault
	}
	v := s.Floats[s.fi]
	s.fi++
	return v
}

func (s *Scripted) IntN(n int) int {
	if s.ii >= len(s.Ints) || n <= 0 {
		return 0
	}
	v := s.Ints[s.ii]
	s.ii++
	if v < 0 {
		v = -v
	}
	return v % n
}
