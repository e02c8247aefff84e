// Package metrics implements the MetricsCollector from spec.md §4.5: a
// single-writer accumulator fed by a bounded multi-producer channel, with
// periodic snapshot derivation.
package metrics

import (
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"

	"github.com/Servus-Altissimi/FlockNet/internal/simerr"
)

// EventKind tags one of the event messages spec.md §4.5 defines.
type EventKind int

const (
	PacketSent EventKind = iota
	PacketDelivered
	DropStrategy
	DropCapacity
	QueueSample
	Idle
)

// Event is a single metrics message, always tagged with (server, agent, t).
type Event struct {
	Kind     EventKind
	ServerID uint32
	AgentID  uint32
	At       time.Duration // time since the Source epoch

	Sojourn  time.Duration // valid for PacketDelivered
	QueueLen int           // valid for QueueSample
}

// histMin/histMax bound the HdrHistogram-go latency range, recorded in
// nanoseconds: 1 nanosecond to 10 seconds, at 3 significant figures (sub-millisecond precision well
// inside the ±1ms accuracy spec.md §4.5 requires).
const (
	histMin            = 1
	histMax            = 10 * int64(time.Second)
	histSigFigs        = 3
	snapshotInterval   = 1 * time.Second
	agentJitterMinSamp = 2
)

// Snapshot is the point-in-time tuple from spec.md §3.
type Snapshot struct {
	T             time.Duration `json:"t"`
	ThroughputPPS float64       `json:"throughputPps"`
	MeanLatencyMs float64       `json:"meanLatencyMs"`
	P95LatencyMs  float64       `json:"p95LatencyMs"`
	LossRatio     float64       `json:"lossRatio"`
	MeanQueueLen  float64       `json:"meanQueueLen"`
	JitterMs      float64       `json:"jitterMs"`
}

// Accumulator is the running-total view over the whole run, always
// available alongside the snapshot series.
type Accumulator struct {
	Sent              uint64
	Delivered         uint64
	DroppedStrategy   uint64
	DroppedCapacity   uint64
	SumLatencyNanos   float64
	SumSqLatencyNanos float64
	SumQueueLen       float64
	QueueSamples      uint64
}

type agentState struct {
	lastSojourn time.Duration
	haveLast    bool
	diffSum     float64
	diffSumSq   float64
	diffCount   int
}

// Collector is the sole writer of accumulator state; all producers
// (Agents, Servers) communicate through Send.
type Collector struct {
	events chan Event

	hist *hdrhistogram.Histogram
	acc  Accumulator

	agents map[uint32]*agentState

	perServer map[uint32]*Accumulator

	windowStart time.Time

	// interval counters, reset on every snapshot
	winSent            uint64
	winDelivered       uint64
	winDroppedStrategy uint64
	winDroppedCapacity uint64
	winSumLatencyNanos float64
	winSumQueueLen     float64
	winQueueSamples    uint64
	winHist            *hdrhistogram.Histogram

	// snapshotsMu guards snapshots: Run's goroutine is the sole appender,
	// but Snapshots is also called concurrently by a live dashboard while
	// Run is still active, not just after Done.
	snapshotsMu sync.Mutex
	snapshots   []Snapshot

	overflowed uint64

	done chan struct{}
}

// NewCollector builds a Collector with a channel sized per spec.md §4.5's
// backpressure mandate: capacity must exceed bandwidthPPS*2 per server.
func NewCollector(bandwidthPPS float64, servers int) *Collector {
	capacity := int(bandwidthPPS*2)*servers + 64
	return &Collector{
		events:    make(chan Event, capacity),
		hist:      hdrhistogram.New(histMin, histMax, histSigFigs),
		winHist:   hdrhistogram.New(histMin, histMax, histSigFigs),
		agents:    make(map[uint32]*agentState),
		perServer: make(map[uint32]*Accumulator),
		done:      make(chan struct{}),
	}
}

// Events returns the channel producers send to. Send is non-blocking; a
// full channel is a MetricsOverflow error, per spec.md §4.5 ("overflow is
// a test failure, not runtime silence").
func (c *Collector) Events() chan<- Event { return c.events }

// Send attempts a non-blocking send, returning a MetricsOverflow simerr if
// the channel is saturated.
func (c *Collector) Send(ev Event) error {
	select {
	case c.events <- ev:
		return nil
	default:
		atomic.AddUint64(&c.overflowed, 1)
		return simerr.New(simerr.MetricsOverflow, "metrics.Send", nil)
	}
}

// Overflowed reports how many events were dropped because the channel was
// saturated. A nonzero count is fatal per spec.md §4.5/§7: the Simulation
// orchestrator checks this after Draining and fails the run if nonzero.
func (c *Collector) Overflowed() uint64 {
	return atomic.LoadUint64(&c.overflowed)
}

// Run is the Collector's single consumer loop. It returns when the events
// channel is closed and drained.
func (c *Collector) Run(tick <-chan time.Time) {
	for {
		select {
		case ev, ok := <-c.events:
			if !ok {
				close(c.done)
				return
			}
			c.apply(ev)
		case now := <-tick:
			c.snapshot(now)
		}
	}
}

// Done is closed once Run has drained the events channel after it closes.
func (c *Collector) Done() <-chan struct{} { return c.done }

func (c *Collector) apply(ev Event) {
	srv := c.serverAcc(ev.ServerID)
	switch ev.Kind {
	case PacketSent:
		c.acc.Sent++
		c.winSent++
		srv.Sent++
	case PacketDelivered:
		c.acc.Delivered++
		c.winDelivered++
		nanos := float64(ev.Sojourn)
		c.acc.SumLatencyNanos += nanos
		c.acc.SumSqLatencyNanos += nanos * nanos
		c.winSumLatencyNanos += nanos
		_ = c.hist.RecordValue(int64(ev.Sojourn))
		_ = c.winHist.RecordValue(int64(ev.Sojourn))
		c.recordJitter(ev.AgentID, ev.Sojourn)
		srv.Delivered++
		srv.SumLatencyNanos += nanos
		srv.SumSqLatencyNanos += nanos * nanos
	case DropStrategy:
		c.acc.DroppedStrategy++
		c.winDroppedStrategy++
		srv.DroppedStrategy++
	case DropCapacity:
		c.acc.DroppedCapacity++
		c.winDroppedCapacity++
		srv.DroppedCapacity++
	case QueueSample:
		c.acc.SumQueueLen += float64(ev.QueueLen)
		c.acc.QueueSamples++
		c.winSumQueueLen += float64(ev.QueueLen)
		c.winQueueSamples++
		srv.SumQueueLen += float64(ev.QueueLen)
		srv.QueueSamples++
	case Idle:
		// Idle events carry no accumulator state; BLUE/FQ-CoDel bookkeeping
		// happens inside the strategy itself via ServerQueue.Service.
	}
}

func (c *Collector) serverAcc(serverID uint32) *Accumulator {
	a, ok := c.perServer[serverID]
	if !ok {
		a = &Accumulator{}
		c.perServer[serverID] = a
	}
	return a
}

// PerServer returns a snapshot copy of each server's running totals, keyed
// by ServerID.
func (c *Collector) PerServer() map[uint32]Accumulator {
	out := make(map[uint32]Accumulator, len(c.perServer))
	for id, a := range c.perServer {
		out[id] = *a
	}
	return out
}

func (c *Collector) recordJitter(agentID uint32, sojourn time.Duration) {
	a, ok := c.agents[agentID]
	if !ok {
		a = &agentState{}
		c.agents[agentID] = a
	}
	if a.haveLast {
		diff := float64(sojourn - a.lastSojourn)
		a.diffSum += diff
		a.diffSumSq += diff * diff
		a.diffCount++
	}
	a.lastSojourn = sojourn
	a.haveLast = true
}

// snapshot derives a Snapshot from the interval window and appends it to
// the series, then resets interval counters (spec.md §4.5).
func (c *Collector) snapshot(now time.Time) {
	var t time.Duration
	if !c.windowStart.IsZero() {
		t = now.Sub(c.windowStart)
	}

	s := Snapshot{T: t}
	if c.winSent > 0 {
		s.ThroughputPPS = float64(c.winDelivered) / snapshotInterval.Seconds()
		total := c.winDelivered + c.winDroppedStrategy + c.winDroppedCapacity
		if total > 0 {
			s.LossRatio = float64(c.winDroppedStrategy+c.winDroppedCapacity) / float64(total)
		}
	}
	if c.winDelivered > 0 {
		s.MeanLatencyMs = (c.winSumLatencyNanos / float64(c.winDelivered)) / float64(time.Millisecond)
		s.P95LatencyMs = float64(c.winHist.ValueAtQuantile(95)) / float64(time.Millisecond)
	}
	if c.winQueueSamples > 0 {
		s.MeanQueueLen = c.winSumQueueLen / float64(c.winQueueSamples)
	}
	s.JitterMs = c.meanJitterMs()

	c.snapshotsMu.Lock()
	c.snapshots = append(c.snapshots, s)
	c.snapshotsMu.Unlock()

	c.winSent = 0
	c.winDelivered = 0
	c.winDroppedStrategy = 0
	c.winDroppedCapacity = 0
	c.winSumLatencyNanos = 0
	c.winSumQueueLen = 0
	c.winQueueSamples = 0
	c.winHist.Reset()
	c.agents = make(map[uint32]*agentState)
}

// meanJitterMs is the mean, across agents with at least two delivered
// packets in the current snapshot window, of the per-agent standard deviation of consecutive sojourn
// differences (spec.md §9 Open Question (c)).
func (c *Collector) meanJitterMs() float64 {
	var sum float64
	var n int
	for _, a := range c.agents {
		if a.diffCount < agentJitterMinSamp-1 {
			continue
		}
		mean := a.diffSum / float64(a.diffCount)
		variance := a.diffSumSq/float64(a.diffCount) - mean*mean
		if variance < 0 {
			variance = 0
		}
		sum += math.Sqrt(variance)
		n++
	}
	if n == 0 {
		return 0
	}
	return (sum / float64(n)) / float64(time.Millisecond)
}

// Snapshots returns the full snapshot series recorded so far. Safe to call
// concurrently with Run, e.g. from a live dashboard's push loop.
func (c *Collector) Snapshots() []Snapshot {
	c.snapshotsMu.Lock()
	defer c.snapshotsMu.Unlock()
	return append([]Snapshot{}, c.snapshots...)
}

// Accumulator returns the whole-run running totals.
func (c *Collector) Accumulator() Accumulator { return c.acc }

// P95LatencyMs returns the whole-run p95 sojourn latency.
func (c *Collector) P95LatencyMs() float64 {
	return float64(c.hist.ValueAtQuantile(95)) / float64(time.Millisecond)
}

// MeanLatencyMs returns the whole-run mean sojourn latency.
func (c *Collector) MeanLatencyMs() float64 {
	if c.acc.Delivered == 0 {
		return 0
	}
	return (c.acc.SumLatencyNanos / float64(c.acc.Delivered)) / float64(time.Millisecond)
}

// SetWindowStart anchors the t=0 instant for snapshot timestamps to the
// Simulation's clock Source epoch.
func (c *Collector) SetWindowStart(start time.Time) {
	c.windowStart = start
}
