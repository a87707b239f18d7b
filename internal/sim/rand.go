// Package sim holds the seeded generator threaded through every simulation step.
package sim

import (
	"fmt"
	"math"
	"math/rand/v2"
)

// streamSalt separates the second PCG word from the seed so that seed 0 is usable.
const streamSalt = 0x9e3779b97f4a7c15

// Rand is a deterministic generator owned by one episode. It is not safe for
// concurrent use; each episode advances its own value.
type Rand struct {
	src *rand.PCG
	r   *rand.Rand
}

// NewRand seeds a generator.
func NewRand(seed uint64) *Rand {
	return fromSource(rand.NewPCG(seed, seed^streamSalt))
}

// NewStream derives an independent generator for a named purpose at a step,
// so auxiliary draws (e.g. a scripted planner) never consume the episode stream.
func NewStream(seed uint64, stream uint64, step int) *Rand {
	return fromSource(rand.NewPCG(seed^(stream*streamSalt), uint64(step)+stream))
}

// Restore rebuilds a generator from a snapshot taken with State.
func Restore(state []byte) (*Rand, error) {
	src := &rand.PCG{}
	if err := src.UnmarshalBinary(state); err != nil {
		return nil, fmt.Errorf("restore generator: %w", err)
	}
	return fromSource(src), nil
}

func fromSource(src *rand.PCG) *Rand {
	return &Rand{src: src, r: rand.New(src)}
}

// State snapshots the generator so the next step resumes exactly where this one stopped.
func (g *Rand) State() []byte {
	b, err := g.src.MarshalBinary()
	if err != nil {
		// PCG.MarshalBinary never fails.
		panic(err)
	}
	return b
}

// Float64 returns a uniform draw in [0,1).
func (g *Rand) Float64() float64 { return g.r.Float64() }

// IntN returns a uniform integer in [0,n).
func (g *Rand) IntN(n int) int { return g.r.IntN(n) }

// Uniform returns a uniform draw in [lo,hi).
func (g *Rand) Uniform(lo, hi float64) float64 {
	return lo + (hi-lo)*g.r.Float64()
}

// IntRange returns a uniform integer in [lo,hi] inclusive.
func (g *Rand) IntRange(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + g.r.IntN(hi-lo+1)
}

// Normal returns a normal draw with the given standard deviation, or 0 when sd is 0
// (no draw is consumed in that case).
func (g *Rand) Normal(sd float64) float64 {
	if sd == 0 {
		return 0
	}
	return g.r.NormFloat64() * sd
}

// Symmetric returns a uniform draw in [-width,width], or 0 without consuming when width is 0.
func (g *Rand) Symmetric(width float64) float64 {
	if width == 0 {
		return 0
	}
	return (2*g.r.Float64() - 1) * width
}

// Pick draws an index proportionally to weights. Non-positive weights are never picked.
// It returns -1 when no weight is positive; a draw is consumed either way.
func (g *Rand) Pick(weights []float64) int {
	u := g.r.Float64()
	total := 0.0
	for _, w := range weights {
		if w > 0 {
			total += w
		}
	}
	if total <= 0 {
		return -1
	}
	target := u * total
	acc := 0.0
	last := -1
	for i, w := range weights {
		if w <= 0 {
			continue
		}
		acc += w
		last = i
		if target < acc {
			return i
		}
	}
	return last
}

// Clamp bounds v to [lo,hi].
func Clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}
