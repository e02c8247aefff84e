package strategy

import (
	"math/rand"
	"time"

	"github.com/Servus-Altissimi/FlockNet/internal/clock"
	"github.com/Servus-Altissimi/FlockNet/internal/packet"
)

// blueFreeze rate-limits BLUE's probability updates to once per window.
const blueFreeze = 100 * time.Millisecond

// BLUE drives its drop probability from overflow and link-idle events
// rather than from queue length (spec.md §4.3).
type BLUE struct {
	rng *rand.Rand

	delta1 float64
	delta2 float64

	p          float64
	lastUpdate clock.Timestamp
	haveUpdate bool
}

func NewBLUE(rng *rand.Rand) *BLUE {
	return &BLUE{rng: rng, delta1: 0.0025, delta2: 0.00025}
}

func (b *BLUE) Name() string { return "blue" }

func (b *BLUE) canUpdate(now clock.Timestamp) bool {
	if !b.haveUpdate {
		b.lastUpdate = now
		b.haveUpdate = true
		return true
	}
	if now.Sub(b.lastUpdate) < blueFreeze {
		return false
	}
	b.lastUpdate = now
	return true
}

// OnEnqueue implements the drop-with-probability-p admission test. The
// caller (ServerQueue) is responsible for calling MarkOverflow when this
// packet would additionally have overflowed capacity, per spec.md §4.4's
// "record a drop (strategy-drop or capacity-drop accordingly)" protocol.
func (b *BLUE) OnEnqueue(_ packet.Packet, _ int, _ clock.Timestamp) Decision {
	if b.rng.Float64() < b.p {
		return Drop
	}
	return Accept
}

// MarkOverflow increments the drop probability on a capacity overflow
// event, rate-limited to once per freeze window.
func (b *BLUE) MarkOverflow(now clock.Timestamp) {
	if !b.canUpdate(now) {
		return
	}
	b.p += b.delta1
	if b.p > 1 {
		b.p = 1
	}
}

// OnDequeue implements the link-idle half of BLUE: a dequeue that leaves
// the queue empty decays p.
func (b *BLUE) OnDequeue(queueLen int, now clock.Timestamp) {
	if queueLen != 0 {
		return
	}
	if !b.canUpdate(now) {
		return
	}
	b.p -= b.delta2
	if b.p < 0 {
		b.p = 0
	}
}

func (b *BLUE) Update(int, time.Duration, clock.Timestamp) {}

func (b *BLUE) Reset() {
	b.p = 0
	b.haveUpdate = false
}

func (b *BLUE) Clone() Strategy {
	clone := *b
	clone.rng = rand.New(rand.NewSource(b.rng.Int63()))
	return &clone
}
