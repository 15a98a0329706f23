// Package rand supplies the random source behind demand noise and
// maintenance draws. Everything that needs randomness takes a Source so
// tests can pin the sequence.
package rand

import (
	"time"

	"github.com/MichaelTJones/pcg"
)

// Source is the subset of math/rand the simulation uses.
type Source interface {
	// Float64 returns a value in [0, 1).
	Float64() float64
	// Intn returns a value in [0, n).
	Intn(n int) int
}

// Rand is a PCG32 generator. It is not safe for concurrent use; the
// engine only touches it under its state lock.
type Rand struct {
	r *pcg.PCG32
}

// New returns a generator seeded from seed, or from the clock if seed is 0.
func New(seed int64) *Rand {
	r := &Rand{r: pcg.NewPCG32()}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	r.Seed(seed)
	return r
}

func (r *Rand) Seed(s int64) {
	r.r.Seed(uint64(s), 0xda3e39cb94b95bdb)
}

func (r *Rand) Float64() float64 {
	return float64(r.r.Random()) / (1 << 32)
}

func (r *Rand) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	return int(r.r.Bounded(uint32(n)))
}

// Fixed replays a fixed sequence of Float64 values, wrapping around.
// Intn derives its result from the same sequence.
type Fixed struct {
	Values []float64
	i      int
}

func (f *Fixed) Float64() float64 {
	if len(f.Values) == 0 {
		return 0.5
	}
	v := f.Values[f.i%len(f.Values)]
	f.i++
	return v
}

func (f *Fixed) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	v := int(f.Float64() * float64(n))
	if v >= n {
		v = n - 1
	}
	return v
}
