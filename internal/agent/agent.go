// Package agent implements Agent, which drives one TrafficGenerator and
// emits packets to its assigned Server over a persistent TCP connection
// (spec.md §4.2).
package agent

import (
	"log"
	"net"
	"time"

	"github.com/Servus-Altissimi/FlockNet/internal/clock"
	"github.com/Servus-Altissimi/FlockNet/internal/metrics"
	"github.com/Servus-Altissimi/FlockNet/internal/packet"
	"github.com/Servus-Altissimi/FlockNet/internal/traffic"
)

const (
	reconnectAttempts = 3
	reconnectBackoff  = 100 * time.Millisecond
)

// Agent owns one TrafficGenerator and a persistent connection to its
// assigned server. It is driven entirely by its own goroutine; nothing
// else touches its state.
type Agent struct {
	ID       uint32
	ServerID uint32
	Addr     string

	gen   traffic.Generator
	clock *clock.Source
	coll  *metrics.Collector
	size  uint32

	seq uint64

	conn net.Conn

	logger *log.Logger
}

// New constructs an Agent. The connection is established lazily by Run, so
// construction never blocks or fails on dial errors.
func New(id, serverID uint32, addr string, gen traffic.Generator, src *clock.Source, coll *metrics.Collector, sizeBytes uint32, logger *log.Logger) *Agent {
	return &Agent{
		ID:       id,
		ServerID: serverID,
		Addr:     addr,
		gen:      gen,
		clock:    src,
		coll:     coll,
		size:     sizeBytes,
		logger:   logger,
	}
}

// Run drives the send loop until shutdown fires. A packet due while there
// is no live connection first makes up to 3 dial attempts, 100ms apart; if
// all fail, that packet is counted as a drop. The reconnect budget is per
// packet: the next packet makes a fresh round of attempts, so the agent
// never stops retrying while it runs.
func (a *Agent) Run(shutdown <-chan struct{}) {
	defer a.closeConn()

	for {
		select {
		case <-shutdown:
			return
		default:
		}

		delay := a.gen.Next()
		timer := time.NewTimer(delay)
		select {
		case <-shutdown:
			timer.Stop()
			return
		case <-timer.C:
		}

		a.sendOne(shutdown)
	}
}

func (a *Agent) sendOne(shutdown <-chan struct{}) {
	if a.conn == nil {
		if !a.reconnect(shutdown) {
			a.emit(metrics.Event{Kind: metrics.DropCapacity, ServerID: a.ServerID, AgentID: a.ID, At: time.Duration(a.clock.Now())})
			return
		}
	}

	a.seq++
	pkt := packet.Packet{
		SourceAgentID: a.ID,
		DestServerID:  a.ServerID,
		Sequence:      a.seq,
		SizeBytes:     a.size,
		SentAt:        a.clock.Now(),
	}

	// A blocking write models realistic backpressure: the agent stalls
	// when the server's socket buffer is full (spec.md §4.2).
	if err := pkt.Encode(a.conn); err != nil {
		a.logger.Printf("flocknet: agent %d write failed: %v", a.ID, err)
		a.closeConn()
		a.emit(metrics.Event{Kind: metrics.DropCapacity, ServerID: a.ServerID, AgentID: a.ID, At: time.Duration(pkt.SentAt)})
		a.reconnect(shutdown)
		return
	}

	a.emit(metrics.Event{Kind: metrics.PacketSent, ServerID: a.ServerID, AgentID: a.ID, At: time.Duration(pkt.SentAt)})
}

// emit forwards an event to the collector, logging (never blocking) on
// MetricsOverflow — spec.md §7 treats a saturated channel as fatal, which
// the Simulation orchestrator detects by checking the collector's error
// count at shutdown.
func (a *Agent) emit(ev metrics.Event) {
	if err := a.coll.Send(ev); err != nil {
		a.logger.Printf("flocknet: agent %d metrics overflow: %v", a.ID, err)
	}
}

func (a *Agent) reconnect(shutdown <-chan struct{}) bool {
	for attempt := 0; attempt < reconnectAttempts; attempt++ {
		conn, err := net.Dial("tcp", a.Addr)
		if err == nil {
			a.conn = conn
			return true
		}
		a.logger.Printf("flocknet: agent %d dial attempt %d failed: %v", a.ID, attempt+1, err)

		timer := time.NewTimer(reconnectBackoff)
		select {
		case <-shutdown:
			timer.Stop()
			return false
		case <-timer.C:
		}
	}
	a.logger.Printf("flocknet: agent %d exhausted reconnect attempts", a.ID)
	return false
}

func (a *Agent) closeConn() {
	if a.conn != nil {
		a.conn.Close()
		a.conn = nil
	}
}
