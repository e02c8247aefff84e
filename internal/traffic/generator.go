// Package traffic implements the lazy, per-agent inter-packet delay
// sequences described in spec.md §4.1.
package traffic

import (
	"math"
	"math/rand"
	"time"
)

// Generator produces an infinite sequence of inter-packet delays. A seeded
// Generator must reproduce the same sequence regardless of goroutine
// scheduling, since it is only ever driven by its owning Agent's goroutine.
type Generator interface {
	// Next returns the delay before the next packet should be sent.
	Next() time.Duration
	// Reset restores the generator to its initial state (including
	// reseeding any internal RNG to its original seed).
	Reset()
}

// Constant emits a fixed delay of 1/RatePPS between packets.
type Constant struct {
	RatePPS float64
}

func NewConstant(ratePPS float64) *Constant { return &Constant{RatePPS: ratePPS} }

func (c *Constant) Next() time.Duration {
	if c.RatePPS <= 0 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(float64(time.Second) / c.RatePPS)
}

func (c *Constant) Reset() {}

// Bursty emits BurstSize back-to-back (zero-delay) packets followed by one
// delay of Period, then repeats.
type Bursty struct {
	BurstSize int
	Period    time.Duration

	sent int
}

func NewBursty(burstSize int, period time.Duration) *Bursty {
	return &Bursty{BurstSize: burstSize, Period: period}
}

func (b *Bursty) Next() time.Duration {
	if b.BurstSize <= 0 {
		return b.Period
	}
	if b.sent < b.BurstSize-1 {
		b.sent++
		return 0
	}
	b.sent = 0
	return b.Period
}

func (b *Bursty) Reset() { b.sent = 0 }

// Poisson draws delays from an exponential distribution with mean 1/Rate.
// Given a nonzero Seed, the sequence is deterministic and reproducible
// independent of thread scheduling, since each Agent owns its own rng.
type Poisson struct {
	Rate float64
	Seed int64

	rng *rand.Rand
}

func NewPoisson(rate float64, seed int64) *Poisson {
	p := &Poisson{Rate: rate, Seed: seed}
	p.Reset()
	return p
}

func (p *Poisson) Next() time.Duration {
	if p.rng == nil {
		p.Reset()
	}
	if p.Rate <= 0 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(p.rng.ExpFloat64() / p.Rate * float64(time.Second))
}

func (p *Poisson) Reset() {
	seed := p.Seed
	if seed == 0 {
		seed = 1
	}
	p.rng = rand.New(rand.NewSource(seed))
}

// Peak is a piecewise-constant rate: for the first PeakDuration of every
// Cycle, use 1/PeakRate; for the remainder of the cycle, use 1/BaseRate.
type Peak struct {
	BaseRate     float64
	PeakRate     float64
	PeakDuration time.Duration
	Cycle        time.Duration

	elapsed time.Duration
}

func NewPeak(baseRate, peakRate float64, peakDuration, cycle time.Duration) *Peak {
	return &Peak{BaseRate: baseRate, PeakRate: peakRate, PeakDuration: peakDuration, Cycle: cycle}
}

func (p *Peak) Next() time.Duration {
	if p.Cycle <= 0 {
		return NewConstant(p.BaseRate).Next()
	}
	phase := p.elapsed % p.Cycle
	var delay time.Duration
	if phase < p.PeakDuration {
		delay = NewConstant(p.PeakRate).Next()
	} else {
		delay = NewConstant(p.BaseRate).Next()
	}
	p.elapsed += delay
	return delay
}

func (p *Peak) Reset() { p.elapsed = 0 }
