package strategy

import (
	"math/rand"
	"time"

	"github.com/Servus-Altissimi/FlockNet/internal/clock"
	"github.com/Servus-Altissimi/FlockNet/internal/packet"
)

// adaptiveInterval is the control-loop period for retuning max_p.
const adaptiveInterval = 500 * time.Millisecond

// AdaptiveRED is RED with a periodic control loop that multiplicatively
// retunes max_p toward a target EWMA band centered on (min_th+max_th)/2
// (spec.md §4.3).
type AdaptiveRED struct {
	red *RED

	targetLow  float64
	targetHigh float64

	lastUpdate clock.Timestamp
	haveUpdate bool
}

func NewAdaptiveRED(capacity int, rng *rand.Rand) *AdaptiveRED {
	red := NewRED(capacity, rng)
	mid := (red.minTh + red.maxTh) / 2
	band := (red.maxTh - red.minTh) / 2
	return &AdaptiveRED{
		red:        red,
		targetLow:  mid - band*0.5,
		targetHigh: mid + band*0.5,
	}
}

func (a *AdaptiveRED) Name() string { return "adaptive-red" }

func (a *AdaptiveRED) OnEnqueue(pkt packet.Packet, queueLen int, now clock.Timestamp) Decision {
	return a.red.OnEnqueue(pkt, queueLen, now)
}

func (a *AdaptiveRED) OnDequeue(queueLen int, now clock.Timestamp) {
	a.red.OnDequeue(queueLen, now)
}

func (a *AdaptiveRED) Update(queueLen int, avgSojourn time.Duration, now clock.Timestamp) {
	if !a.haveUpdate {
		a.lastUpdate = now
		a.haveUpdate = true
		return
	}
	if now.Sub(a.lastUpdate) < adaptiveInterval {
		return
	}
	a.lastUpdate = now

	switch {
	case a.red.avg > a.targetHigh:
		a.red.maxP = min64(a.red.maxP*1.5, 0.5)
	case a.red.avg < a.targetLow:
		a.red.maxP = max64(a.red.maxP*0.5, 0.01)
	}
}

func (a *AdaptiveRED) Reset() {
	a.red.Reset()
	a.red.maxP = 0.1
	a.haveUpdate = false
}

func (a *AdaptiveRED) Clone() Strategy {
	clone := *a
	clone.red = a.red.Clone().(*RED)
	return &clone
}

func min64(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func max64(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
