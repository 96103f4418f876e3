// Package rng provides the single seeded random stream that every part of the
// market draws from. The full stream state can be exported and restored so a
// loaded game produces exactly the draws the saved one would have.
package rng

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
)

// ErrInvalidState is returned when restoring from a malformed state buffer.
var ErrInvalidState = errors.New("invalid random state")

// golden-ratio increment used to derive the second PCG word from the seed
const seedMix = 0x9E3779B97F4A7C15

// Random is a deterministic pseudo-random stream.
// It is not safe for concurrent use.
type Random struct {
	src *rand.PCG
	r   *rand.Rand

	// polar method produces values in pairs; the second one is kept here
	spare    float64
	hasSpare bool
}

// New creates a stream seeded with seed.
func New(seed int64) *Random {
	r := &Random{}
	r.Init(seed)
	return r
}

// Init resets the stream to the start of the sequence for seed.
func (r *Random) Init(seed int64) {
	r.src = rand.NewPCG(uint64(seed), uint64(seed)^seedMix)
	r.r = rand.New(r.src)
	r.spare = 0
	r.hasSpare = false
}

// Next returns a uniform integer in [min, max]. Bounds are swapped if inverted.
func (r *Random) Next(min, max int) int {
	if max < min {
		min, max = max, min
	}
	return min + r.r.IntN(max-min+1)
}

// NextDouble returns a uniform float in [0, 1).
func (r *Random) NextDouble() float64 {
	return r.r.Float64()
}

// NextGaussian draws from N(mean, stdDev) using the Marsaglia polar method.
func (r *Random) NextGaussian(mean, stdDev float64) float64 {
	if r.hasSpare {
		r.hasSpare = false
		return mean + stdDev*r.spare
	}

	var u, v, s float64
	for {
		u = r.r.Float64()*2 - 1
		v = r.r.Float64()*2 - 1
		s = u*u + v*v
		if s > 0 && s < 1 {
			break
		}
	}
	mul := math.Sqrt(-2 * math.Log(s) / s)
	r.spare = v * mul
	r.hasSpare = true
	return mean + stdDev*u*mul
}

// State serializes the complete stream state, including any buffered Gaussian.
func (r *Random) State() ([]byte, error) {
	pcg, err := r.src.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("marshal pcg: %w", err)
	}
	out := make([]byte, 0, len(pcg)+9)
	out = append(out, pcg...)
	if r.hasSpare {
		out = append(out, 1)
	} else {
		out = append(out, 0)
	}
	return binary.BigEndian.AppendUint64(out, math.Float64bits(r.spare)), nil
}

// Restore replaces the stream state with one produced by State.
func (r *Random) Restore(state []byte) error {
	if len(state) < 10 {
		return ErrInvalidState
	}
	n := len(state) - 9
	src := &rand.PCG{}
	if err := src.UnmarshalBinary(state[:n]); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	flag := state[n]
	if flag > 1 {
		return ErrInvalidState
	}

	r.src = src
	r.r = rand.New(src)
	r.hasSpare = flag == 1
	r.spare = math.Float64frombits(binary.BigEndian.Uint64(state[n+1:]))
	return nil
}

// Clone returns an independent stream positioned at the same point.
func (r *Random) Clone() (*Random, error) {
	st, err := r.State()
	if err != nil {
		return nil, err
	}
	c := &Random{}
	if err := c.Restore(st); err != nil {
		return nil, err
	}
	return c, nil
}

// StandardDeviation returns the population standard deviation of values.
func StandardDeviation(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(values)))
}

// Mean returns the arithmetic mean of values, or 0 for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
