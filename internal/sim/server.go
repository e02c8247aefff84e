// Package sim implements the Server and Simulation orchestrator from
// spec.md §4.4/§4.6: a TCP-accepting service loop fronting one ServerQueue,
// and the top-level lifecycle state machine that wires agents to servers.
package sim

import (
	"log"
	"net"
	"time"

	"github.com/Servus-Altissimi/FlockNet/internal/clock"
	"github.com/Servus-Altissimi/FlockNet/internal/metrics"
	"github.com/Servus-Altissimi/FlockNet/internal/packet"
	"github.com/Servus-Altissimi/FlockNet/internal/queue"
	"github.com/Servus-Altissimi/FlockNet/internal/simerr"
	"github.com/Servus-Altissimi/FlockNet/internal/strategy"
)

const (
	bindRetryInitial = 50 * time.Millisecond
	bindRetryMax     = 3 * time.Second
	updateInterval   = 100 * time.Millisecond
	drainGrace       = 50 * time.Millisecond
)

// Server owns one net.Listener, one ServerQueue and the Strategy instance
// inside it. All mutation happens on its single service goroutine; reader
// goroutines per accepted connection only decode and forward, never touch
// queue state directly (spec.md §5's "no task holds a lock across a
// suspension point").
type Server struct {
	ID   uint32
	Addr string

	listener net.Listener
	queue    *queue.ServerQueue
	coll     *metrics.Collector
	clockSrc *clock.Source

	bandwidthPPS float64

	incoming chan packet.Packet
	shutdown chan struct{}
	stopped  chan struct{}

	logger *log.Logger
}

// NewServer binds a listener (with exponential backoff up to 3s, per
// spec.md §7's Bind error kind) and constructs the owning ServerQueue.
func NewServer(id uint32, addr string, capacity int, bandwidthPPS float64, strat strategy.Strategy, coll *metrics.Collector, src *clock.Source, logger *log.Logger) (*Server, error) {
	ln, err := bindWithRetry(addr)
	if err != nil {
		return nil, simerr.New(simerr.Bind, "sim.NewServer", err)
	}
	return &Server{
		ID:           id,
		Addr:         ln.Addr().String(),
		listener:     ln,
		queue:        queue.New(capacity, strat),
		coll:         coll,
		clockSrc:     src,
		bandwidthPPS: bandwidthPPS,
		incoming:     make(chan packet.Packet, capacity*2+16),
		shutdown:     make(chan struct{}),
		stopped:      make(chan struct{}),
		logger:       logger,
	}, nil
}

func bindWithRetry(addr string) (net.Listener, error) {
	backoff := bindRetryInitial
	var lastErr error
	deadline := time.Now().Add(bindRetryMax)
	for {
		ln, err := net.Listen("tcp", addr)
		if err == nil {
			return ln, nil
		}
		lastErr = err
		if time.Now().After(deadline) {
			return nil, lastErr
		}
		time.Sleep(backoff)
		backoff *= 2
		if backoff > bindRetryMax {
			backoff = bindRetryMax
		}
	}
}

// Run starts the accept loop and the owning service loop. It returns once
// Stop has been called and the drain grace period has elapsed; arrivals
// during the grace period are still admitted and serviced.
func (s *Server) Run() {
	go s.acceptLoop()
	s.serviceLoop()
	close(s.stopped)
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return // listener closed by Stop
		}
		go s.readLoop(conn)
	}
}

func (s *Server) readLoop(conn net.Conn) {
	defer conn.Close()
	for {
		pkt, err := packet.Decode(conn)
		if err != nil {
			return
		}
		select {
		case s.incoming <- pkt:
		case <-s.shutdown:
			return
		}
	}
}

// serviceLoop is the single goroutine that owns the ServerQueue and
// Strategy: admission on packet arrival, a service tick at 1/bandwidth_pps,
// and a ~100ms periodic update/QueueSample tick (spec.md §4.4).
func (s *Server) serviceLoop() {
	serviceTicker := time.NewTicker(time.Duration(float64(time.Second) / s.bandwidthPPS))
	defer serviceTicker.Stop()
	updateTicker := time.NewTicker(updateInterval)
	defer updateTicker.Stop()

	draining := false
	var drainDeadline <-chan time.Time
	shutdownCh := s.shutdown

	for {
		select {
		case pkt := <-s.incoming:
			now := s.clockSrc.Now()
			switch s.queue.Accept(pkt, now) {
			case queue.DroppedStrategy:
				s.emit(metrics.Event{Kind: metrics.DropStrategy, ServerID: s.ID, AgentID: pkt.SourceAgentID, At: time.Duration(now)})
			case queue.DroppedCapacity:
				s.emit(metrics.Event{Kind: metrics.DropCapacity, ServerID: s.ID, AgentID: pkt.SourceAgentID, At: time.Duration(now)})
			}

		case <-serviceTicker.C:
			now := s.clockSrc.Now()
			pkt, sojourn, ok, dropped, strategyDrops := s.queue.Service(now)
			for _, dp := range strategyDrops {
				s.emit(metrics.Event{Kind: metrics.DropStrategy, ServerID: s.ID, AgentID: dp.SourceAgentID, At: time.Duration(now)})
			}
			switch {
			case !ok:
				s.emit(metrics.Event{Kind: metrics.Idle, ServerID: s.ID, At: time.Duration(now)})
			case dropped:
				s.emit(metrics.Event{Kind: metrics.DropStrategy, ServerID: s.ID, AgentID: pkt.SourceAgentID, At: time.Duration(now)})
			default:
				s.emit(metrics.Event{Kind: metrics.PacketDelivered, ServerID: s.ID, AgentID: pkt.SourceAgentID, At: time.Duration(now), Sojourn: sojourn})
			}

		case <-updateTicker.C:
			now := s.clockSrc.Now()
			s.queue.Tick(now)
			s.emit(metrics.Event{Kind: metrics.QueueSample, ServerID: s.ID, At: time.Duration(now), QueueLen: s.queue.Len()})

		case <-shutdownCh:
			shutdownCh = nil // closed channel would otherwise always fire
			if !draining {
				draining = true
				timer := time.NewTimer(drainGrace)
				drainDeadline = timer.C
			}

		case <-drainDeadline:
			return
		}
	}
}

func (s *Server) emit(ev metrics.Event) {
	if err := s.coll.Send(ev); err != nil {
		s.logger.Printf("flocknet: server %d metrics overflow: %v", s.ID, err)
	}
}

// Stop closes the listener (no further Accepts) and signals the service
// loop to begin draining. It blocks until the service loop has exited.
func (s *Server) Stop() {
	s.listener.Close()
	close(s.shutdown)
	<-s.stopped
}
