// Package queue implements ServerQueue, the bounded buffer + service
// scheduler that sits in front of each server's Strategy. It is owned and
// driven exclusively by one server's service goroutine; no locking is
// needed because it is never touched from any other goroutine.
package queue

import (
	"time"

	"github.com/Servus-Altissimi/FlockNet/internal/clock"
	"github.com/Servus-Altissimi/FlockNet/internal/packet"
	"github.com/Servus-Altissimi/FlockNet/internal/strategy"
)

// Outcome reports what happened to a packet presented to Accept.
type Outcome int

const (
	Accepted Outcome = iota
	DroppedStrategy
	DroppedCapacity
)

// ServerQueue is a bounded FIFO fronted by a pluggable Strategy. For
// strategies that manage their own storage (currently only FQ-CoDel), the
// FIFO is bypassed entirely and the Strategy's QueueOwner methods are used
// instead.
type ServerQueue struct {
	capacity int
	strat    strategy.Strategy
	owner    strategy.QueueOwner // non-nil iff strat implements QueueOwner
	reporter strategy.SojournReporter

	fifo []packet.Packet

	sojournSum   time.Duration
	sojournCount int
}

// New constructs a ServerQueue of the given capacity driven by strat.
func New(capacity int, strat strategy.Strategy) *ServerQueue {
	q := &ServerQueue{capacity: capacity, strat: strat}
	if owner, ok := strat.(strategy.QueueOwner); ok {
		q.owner = owner
	}
	if rep, ok := strat.(strategy.SojournReporter); ok {
		q.reporter = rep
	}
	return q
}

// Len returns the total number of packets currently buffered.
func (q *ServerQueue) Len() int {
	if q.owner != nil {
		return q.owner.Len()
	}
	return len(q.fifo)
}

// Accept runs the admission protocol from spec.md §4.4: consult the
// strategy, then enqueue only if it accepted and capacity remains. A packet
// arriving at a full buffer counts as a capacity drop whatever the strategy
// decided; otherwise a strategy Drop counts as a strategy drop.
func (q *ServerQueue) Accept(pkt packet.Packet, now clock.Timestamp) Outcome {
	decision := q.strat.OnEnqueue(pkt, q.Len(), now)
	if q.Len() >= q.capacity {
		q.MarkOverflow(now)
		return DroppedCapacity
	}
	if decision == strategy.Drop {
		return DroppedStrategy
	}
	if q.owner != nil {
		q.owner.Enqueue(pkt, now)
	} else {
		q.fifo = append(q.fifo, pkt)
	}
	return Accepted
}

// Service performs one service-tick dequeue. It returns the delivered
// packet and its sojourn when a packet is delivered, ok=false when the
// queue was empty (the caller should emit an Idle event), dropped=true when
// a sojourn-aware strategy (CoDel) retroactively dropped the packet instead
// of delivering it, and strategyDrops holding any additional packets a
// QueueOwner's own service order (FQ-CoDel) dropped internally while
// producing this result — the caller must emit a strategy-drop event for
// each of those too, or they vanish from metrics entirely.
func (q *ServerQueue) Service(now clock.Timestamp) (pkt packet.Packet, sojourn time.Duration, ok bool, dropped bool, strategyDrops []packet.Packet) {
	if q.owner != nil {
		p, has, internalDrops := q.owner.Dequeue(now)
		if !has {
			q.strat.OnDequeue(0, now)
			return packet.Packet{}, 0, false, false, internalDrops
		}
		sojourn = time.Duration(now - p.SentAt)
		q.recordSojourn(sojourn)
		q.strat.OnDequeue(q.owner.Len(), now)
		return p, sojourn, true, false, internalDrops
	}

	if len(q.fifo) == 0 {
		q.strat.OnDequeue(0, now)
		return packet.Packet{}, 0, false, false, nil
	}

	p := q.fifo[0]
	q.fifo = q.fifo[1:]
	sojourn = time.Duration(now - p.SentAt)

	if q.reporter != nil {
		decision := q.reporter.ReportDequeue(sojourn, len(q.fifo), now)
		if decision == strategy.Drop {
			return p, sojourn, true, true, nil
		}
	}

	q.recordSojourn(sojourn)
	q.strat.OnDequeue(len(q.fifo), now)
	return p, sojourn, true, false, nil
}

func (q *ServerQueue) recordSojourn(d time.Duration) {
	q.sojournSum += d
	q.sojournCount++
}

// Tick invokes the strategy's periodic update hook with the mean sojourn
// of packets dequeued since the previous call, then resets that window.
func (q *ServerQueue) Tick(now clock.Timestamp) {
	var avg time.Duration
	if q.sojournCount > 0 {
		avg = q.sojournSum / time.Duration(q.sojournCount)
	}
	q.strat.Update(q.Len(), avg, now)
	q.sojournSum = 0
	q.sojournCount = 0
}

// Strategy returns the underlying strategy, for components (metrics
// labeling, BLUE's overflow hook) that need to reach past the queue.
func (q *ServerQueue) Strategy() strategy.Strategy { return q.strat }

// MarkOverflow notifies a BLUE strategy of a capacity-drop event, per
// spec.md §4.3's "on overflow, p = min(p + δ1, 1)". No-op for strategies
// that don't track overflow.
func (q *ServerQueue) MarkOverflow(now clock.Timestamp) {
	if b, ok := q.strat.(*strategy.BLUE); ok {
		b.MarkOverflow(now)
	}
}
