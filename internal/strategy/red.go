package strategy

import (
	"math/rand"
	"time"

	"github.com/Servus-Altissimi/FlockNet/internal/clock"
	"github.com/Servus-Altissimi/FlockNet/internal/packet"
)

// RED implements Random Early Detection (spec.md §4.3): an EWMA of queue
// length drives a linearly-interpolated drop probability between min_th and
// max_th.
type RED struct {
	capacity int
	rng      *rand.Rand

	w     float64 // EWMA weight
	minTh float64
	maxTh float64
	maxP  float64

	avg float64
}

func NewRED(capacity int, rng *rand.Rand) *RED {
	r := &RED{
		capacity: capacity,
		rng:      rng,
		w:        0.002,
		minTh:    float64(capacity) * 0.1,
		maxTh:    float64(capacity) * 0.3,
		maxP:     0.1,
	}
	return r
}

func (r *RED) Name() string { return "red" }

func (r *RED) OnEnqueue(_ packet.Packet, queueLen int, _ clock.Timestamp) Decision {
	r.avg = (1-r.w)*r.avg + r.w*float64(queueLen)
	switch {
	case r.avg < r.minTh:
		return Accept
	case r.avg >= r.maxTh:
		return Drop
	default:
		p := r.maxP * (r.avg - r.minTh) / (r.maxTh - r.minTh)
		if r.rng.Float64() < p {
			return Drop
		}
		return Accept
	}
}

func (r *RED) OnDequeue(int, clock.Timestamp)             {}
func (r *RED) Update(int, time.Duration, clock.Timestamp) {}

func (r *RED) Reset() {
	r.avg = 0
}

func (r *RED) Clone() Strategy {
	clone := *r
	clone.rng = rand.New(rand.NewSource(r.rng.Int63()))
	return &clone
}
