package strategy

import (
	"math/rand"
	"time"

	"github.com/Servus-Altissimi/FlockNet/internal/clock"
	"github.com/Servus-Altissimi/FlockNet/internal/packet"
)

const (
	pieTarget         = 20 * time.Millisecond
	pieUpdateInterval = 15 * time.Millisecond
	pieAlpha          = 0.125
	pieBeta           = 1.25
	pieMaxBurst       = 150 * time.Millisecond
)

// PIE implements the Proportional Integral controller Enhanced algorithm
// (spec.md §4.3): a periodic control law estimates queuing delay from the
// mean sojourn of recently-dequeued packets and drives an enqueue-time drop
// probability, with a burst allowance that suspends dropping for the first
// pieMaxBurst after the probability rises above zero.
type PIE struct {
	rng *rand.Rand

	p         float64
	prevDelay time.Duration

	lastUpdate clock.Timestamp
	haveUpdate bool

	burstAllowance time.Duration
}

func NewPIE(rng *rand.Rand) *PIE {
	return &PIE{rng: rng, burstAllowance: pieMaxBurst}
}

func (pi *PIE) Name() string { return "pie" }

func (pi *PIE) OnEnqueue(_ packet.Packet, _ int, _ clock.Timestamp) Decision {
	if pi.p <= 0 {
		return Accept
	}
	if pi.burstAllowance > 0 {
		return Accept
	}
	if pi.rng.Float64() < pi.p {
		return Drop
	}
	return Accept
}

func (pi *PIE) OnDequeue(int, clock.Timestamp) {}

// Update runs the PIE control law at most once per pieUpdateInterval, using
// avgSojourn as the current queuing-delay estimate. The burst allowance is
// drawn down by the time elapsed since the previous run.
func (pi *PIE) Update(_ int, avgSojourn time.Duration, now clock.Timestamp) {
	if !pi.haveUpdate {
		pi.lastUpdate = now
		pi.haveUpdate = true
		pi.prevDelay = avgSojourn
		return
	}
	elapsed := now.Sub(pi.lastUpdate)
	if elapsed < pieUpdateInterval {
		return
	}
	pi.lastUpdate = now

	delay := avgSojourn
	pi.p += pieAlpha*(delay-pieTarget).Seconds() + pieBeta*(delay-pi.prevDelay).Seconds()
	if pi.p < 0 {
		pi.p = 0
	}
	if pi.p > 1 {
		pi.p = 1
	}
	pi.prevDelay = delay

	if pi.p <= 0 {
		pi.burstAllowance = pieMaxBurst
	} else {
		pi.burstAllowance -= elapsed
		if pi.burstAllowance < 0 {
			pi.burstAllowance = 0
		}
	}
}

func (pi *PIE) Reset() {
	pi.p = 0
	pi.prevDelay = 0
	pi.haveUpdate = false
	pi.burstAllowance = pieMaxBurst
}

func (pi *PIE) Clone() Strategy {
	clone := *pi
	clone.rng = rand.New(rand.NewSource(pi.rng.Int63()))
	return &clone
}
