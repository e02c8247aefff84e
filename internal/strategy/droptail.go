package strategy

import (
	"time"

	"github.com/Servus-Altissimi/FlockNet/internal/clock"
	"github.com/Servus-Altissimi/FlockNet/internal/packet"
)

// DropTail is plain tail-drop FIFO: accept while the queue has room, drop
// otherwise. It carries no internal state.
type DropTail struct {
	capacity int
}

func NewDropTail(capacity int) *DropTail {
	return &DropTail{capacity: capacity}
}

func (d *DropTail) Name() string { return "drop-tail" }

func (d *DropTail) OnEnqueue(_ packet.Packet, queueLen int, _ clock.Timestamp) Decision {
	if queueLen < d.capacity {
		return Accept
	}
	return Drop
}

func (d *DropTail) OnDequeue(int, clock.Timestamp)             {}
func (d *DropTail) Update(int, time.Duration, clock.Timestamp) {}
func (d *DropTail) Reset()                                     {}
func (d *DropTail) Clone() Strategy                            { return NewDropTail(d.capacity) }
