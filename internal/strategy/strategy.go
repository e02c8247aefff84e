// Package strategy implements the pluggable AQM decision objects described
// in spec.md §4.3: Drop-Tail, RED, Adaptive RED, BLUE, CoDel, PIE and
// FQ-CoDel. Strategy state lives inside exactly one ServerQueue and is
// never shared across goroutines, so no internal locking is needed (spec.md
// §5, "no task holds a lock across a suspension point").
package strategy

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/Servus-Altissimi/FlockNet/internal/clock"
	"github.com/Servus-Altissimi/FlockNet/internal/packet"
	"github.com/Servus-Altissimi/FlockNet/internal/simerr"
)

// Decision is the admission verdict returned by OnEnqueue.
type Decision int

const (
	Accept Decision = iota
	Drop
)

func (d Decision) String() string {
	if d == Accept {
		return "accept"
	}
	return "drop"
}

// Strategy is the capability set every AQM plug-in implements (spec.md
// §4.3). A Strategy is owned by exactly one ServerQueue for the lifetime of
// one run.
type Strategy interface {
	// Name identifies the strategy in CLI output and Run records.
	Name() string
	// OnEnqueue is consulted before a packet enters the buffer.
	OnEnqueue(pkt packet.Packet, queueLen int, now clock.Timestamp) Decision
	// OnDequeue is called after a successful removal from the queue.
	OnDequeue(queueLen int, now clock.Timestamp)
	// Update is the ~100ms periodic hook used for EWMA/control-law timers.
	// avgSojourn is the mean sojourn of packets dequeued since the last
	// call, or 0 if none were dequeued.
	Update(queueLen int, avgSojourn time.Duration, now clock.Timestamp)
	// Reset restores the strategy to its freshly-constructed state.
	Reset()
	// Clone returns an independent copy for a new ServerQueue instance.
	Clone() Strategy
}

// QueueOwner is implemented by strategies that manage their own packet
// storage instead of relying on the ServerQueue's plain FIFO — currently
// only FQ-CoDel, whose flow sub-queues and DRR service order can't be
// expressed through the OnEnqueue/OnDequeue hooks alone.
type QueueOwner interface {
	Strategy
	// Enqueue stores pkt (the caller has already confirmed capacity
	// remains) and returns the resulting total queued-packet count.
	Enqueue(pkt packet.Packet, now clock.Timestamp) int
	// Dequeue removes and returns the next deliverable packet in this
	// strategy's service order, or ok=false if nothing is left to deliver.
	// A service order that retroactively drops packets internally (e.g.
	// FQ-CoDel's per-flow CoDel) reports every such packet in dropped
	// rather than discarding it silently, so the caller can still count it.
	Dequeue(now clock.Timestamp) (pkt packet.Packet, ok bool, dropped []packet.Packet)
	// Len returns the total number of packets queued across all
	// sub-queues.
	Len() int
}

// SojournReporter is implemented by strategies whose drop decisions depend
// on how long a specific packet actually waited (CoDel), rather than on
// queue occupancy at enqueue time. ServerQueue calls ReportDequeue
// immediately after removing a packet from the buffer; if it returns Drop,
// that packet is discarded instead of delivered and counts as a
// strategy-drop.
type SojournReporter interface {
	Strategy
	ReportDequeue(sojourn time.Duration, queueLen int, now clock.Timestamp) Decision
}

// Options carries the per-server construction parameters a strategy may
// need: its buffer capacity (Drop-Tail's limit and the RED/Adaptive RED
// thresholds scale off it; BLUE, CoDel, PIE and FQ-CoDel ignore it) and a
// seeded RNG (for the strategies that draw random numbers).
type Options struct {
	Capacity int
	RNG      *rand.Rand
}

// New constructs a fresh Strategy instance by name, or a StrategyUnknown
// simerr if name doesn't match a built-in.
func New(name string, opts Options) (Strategy, error) {
	if opts.RNG == nil {
		opts.RNG = rand.New(rand.NewSource(1))
	}
	switch name {
	case "drop-tail", "droptail", "fifo":
		return NewDropTail(opts.Capacity), nil
	case "red":
		return NewRED(opts.Capacity, opts.RNG), nil
	case "adaptive-red", "adaptivered":
		return NewAdaptiveRED(opts.Capacity, opts.RNG), nil
	case "blue":
		return NewBLUE(opts.RNG), nil
	case "codel":
		return NewCoDel(), nil
	case "pie":
		return NewPIE(opts.RNG), nil
	case "fq-codel", "fqcodel":
		return NewFQCoDel(), nil
	default:
		return nil, simerr.New(simerr.StrategyUnknown, "strategy.New", fmt.Errorf("unknown strategy %q", name))
	}
}

// Names lists the built-in strategies in the canonical order used by the
// `list` CLI subcommand.
func Names() []string {
	return []string{"drop-tail", "red", "adaptive-red", "blue", "codel", "pie", "fq-codel"}
}

// Describe returns a one-line description of a built-in strategy, for the
// `list` subcommand.
func Describe(name string) string {
	switch name {
	case "drop-tail":
		return "Tail-drop FIFO: accept while len < capacity, else drop."
	case "red":
		return "Random Early Detection: probabilistic drop on EWMA queue length."
	case "adaptive-red":
		return "RED with a control loop that retunes max_p toward a target EWMA band."
	case "blue":
		return "BLUE: drop probability driven by overflow/idle events, not queue length."
	case "codel":
		return "CoDel: drops to bound sojourn time once it persists above target."
	case "pie":
		return "PIE: periodic probability control law estimating queuing delay."
	case "fq-codel":
		return "FQ-CoDel: per-flow CoDel with deficit round-robin scheduling."
	default:
		return ""
	}
}
