package sim

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/Servus-Altissimi/FlockNet/internal/agent"
	"github.com/Servus-Altissimi/FlockNet/internal/clock"
	"github.com/Servus-Altissimi/FlockNet/internal/config"
	"github.com/Servus-Altissimi/FlockNet/internal/metrics"
	"github.com/Servus-Altissimi/FlockNet/internal/results"
	"github.com/Servus-Altissimi/FlockNet/internal/simerr"
	"github.com/Servus-Altissimi/FlockNet/internal/strategy"
	"github.com/Servus-Altissimi/FlockNet/internal/traffic"
)

// Phase names the Simulation's lifecycle state (spec.md §4.6). Reset is
// always full teardown and reconstruction, never in-place mutation, the
// way the teacher's Simulator.Reset rebuilds its LSM tree and metrics
// rather than zeroing fields in place.
type Phase int

const (
	Configured Phase = iota
	Initializing
	Running
	Draining
	Finalized
)

func (p Phase) String() string {
	switch p {
	case Configured:
		return "configured"
	case Initializing:
		return "initializing"
	case Running:
		return "running"
	case Draining:
		return "draining"
	case Finalized:
		return "finalized"
	default:
		return "unknown"
	}
}

const (
	snapshotTick  = 1 * time.Second
	watchdogExtra = 10 * time.Second

	statusOK = "ok"
)

// failedStatus renders the Run.Status vocabulary spec.md §7 names for a
// non-ok outcome: "failed(kind)".
func failedStatus(kind simerr.Kind) string {
	return fmt.Sprintf("failed(%s)", kind)
}

// Simulation is the top-level orchestrator: it owns the Collector, every
// Server, every Agent, and drives the Configured -> ... -> Finalized
// lifecycle exactly once per Run call. A Simulation is single-use; running
// the same strategy again means constructing a fresh Simulation, mirroring
// the teacher's full-reconstruction Reset rather than field-by-field reuse.
type Simulation struct {
	cfg    config.Config
	logger *log.Logger

	phase Phase

	clockSrc   *clock.Source
	coll       *metrics.Collector
	snapTicker *time.Ticker
	servers    []*Server
	agents     []*agent.Agent

	agentShutdown chan struct{}
	agentWG       sync.WaitGroup

	ready chan struct{}
}

// New validates cfg and constructs a Simulation in the Configured phase.
// Construction never binds ports or starts goroutines; that happens in Run.
func New(cfg config.Config, logger *log.Logger) (*Simulation, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Simulation{cfg: cfg, logger: logger, phase: Configured, ready: make(chan struct{})}, nil
}

// Ready is closed once Initializing has completed and Collector is safe to
// call, letting a caller attach a live dashboard mid-run.
func (s *Simulation) Ready() <-chan struct{} { return s.ready }

// Collector returns the run's metrics Collector. Only call after Ready has
// fired.
func (s *Simulation) Collector() *metrics.Collector { return s.coll }

// Run executes one full run to completion: Initializing, Running for
// cfg.Duration, Draining, then Finalized, returning the assembled Run
// record. The Running phase is bounded by a context derived from cfg.Duration
// so an early cancellation of ctx cuts a run short instead of being ignored;
// a further D+10s watchdog aborts the whole call with a partial Run record
// if the lifecycle still hasn't finished by then (e.g. drain hung).
func (s *Simulation) Run(ctx context.Context) (results.Run, error) {
	runCtx, cancel := context.WithTimeout(ctx, s.cfg.Duration)
	defer cancel()

	watchdogCtx, watchdogCancel := context.WithTimeout(ctx, s.cfg.Duration+watchdogExtra)
	defer watchdogCancel()

	done := make(chan struct{})
	var run results.Run
	var runErr error
	go func() {
		defer close(done)
		run, runErr = s.execute(runCtx)
	}()

	select {
	case <-done:
		return run, runErr
	case <-watchdogCtx.Done():
		return s.partialRun(simerr.Timeout), simerr.New(simerr.Timeout, "sim.Run", watchdogCtx.Err())
	}
}

// partialRun assembles the best Run record available without touching any
// state the execute goroutine might still be concurrently writing. Reading
// s.coll is only safe once Ready has fired (the happens-before edge is the
// channel close in initialize), so an unready Simulation yields a record
// with nothing but its Config and failure Status.
func (s *Simulation) partialRun(kind simerr.Kind) results.Run {
	run := results.Run{
		Name:   s.cfg.Strategy,
		Config: s.cfg,
		Status: failedStatus(kind),
	}
	select {
	case <-s.ready:
		run.Snapshots = s.coll.Snapshots()
	default:
	}
	return run
}

// execute runs Initializing -> Running -> Draining -> Finalized once. The
// Running phase ends either when runCtx's deadline (cfg.Duration) elapses or
// runCtx is cancelled early by the caller; either way drain always runs so
// every goroutine started in initialize is torn down before execute returns.
func (s *Simulation) execute(runCtx context.Context) (results.Run, error) {
	s.phase = Initializing
	if err := s.initialize(); err != nil {
		return results.Run{}, err
	}

	s.phase = Running
	<-runCtx.Done()

	s.phase = Draining
	run, err := s.drain()
	s.phase = Finalized
	return run, err
}

func (s *Simulation) initialize() error {
	s.clockSrc = clock.NewSource()
	s.coll = metrics.NewCollector(s.cfg.BandwidthPPS, s.cfg.Servers)
	s.coll.SetWindowStart(time.Now())
	s.agentShutdown = make(chan struct{})

	baseRNG := rand.New(rand.NewSource(s.cfg.Seed))
	canonical, err := strategy.New(s.cfg.Strategy, strategy.Options{Capacity: s.cfg.Capacity, RNG: baseRNG})
	if err != nil {
		return err
	}

	s.snapTicker = time.NewTicker(snapshotTick)
	go s.coll.Run(s.snapTicker.C)

	s.servers = make([]*Server, 0, s.cfg.Servers)
	for i := 0; i < s.cfg.Servers; i++ {
		addr := fmt.Sprintf("127.0.0.1:%d", s.cfg.BasePort+i)
		srv, err := NewServer(uint32(i), addr, s.cfg.Capacity, s.cfg.BandwidthPPS, canonical.Clone(), s.coll, s.clockSrc, s.logger)
		if err != nil {
			return err
		}
		s.servers = append(s.servers, srv)
		go srv.Run()
	}

	s.agents = make([]*agent.Agent, 0, s.cfg.Agents)
	for j := 0; j < s.cfg.Agents; j++ {
		srv := s.servers[j%len(s.servers)]
		gen := buildGenerator(s.cfg, s.cfg.Seed+int64(j)+1)
		ag := agent.New(uint32(j), srv.ID, srv.Addr, gen, s.clockSrc, s.coll, s.cfg.SizeBytes, s.logger)
		s.agents = append(s.agents, ag)
		s.agentWG.Add(1)
		go func() {
			defer s.agentWG.Done()
			ag.Run(s.agentShutdown)
		}()
	}

	close(s.ready)
	return nil
}

// buildGenerator constructs the per-agent TrafficGenerator named by
// cfg.Traffic, seeded independently of every other agent so the run is
// reproducible regardless of goroutine interleaving (spec.md §4.1).
func buildGenerator(cfg config.Config, seed int64) traffic.Generator {
	switch cfg.Traffic {
	case config.TrafficBursty:
		return traffic.NewBursty(cfg.BurstSize, cfg.BurstPeriod)
	case config.TrafficPoisson:
		return traffic.NewPoisson(cfg.BaseRatePPS, seed)
	case config.TrafficPeak:
		return traffic.NewPeak(cfg.BaseRatePPS, cfg.PeakRatePPS, cfg.PeakDuration, cfg.Cycle)
	default:
		return traffic.NewConstant(cfg.BaseRatePPS)
	}
}

func (s *Simulation) drain() (results.Run, error) {
	close(s.agentShutdown)
	// Every agent goroutine must have returned from Run (and so made its
	// last possible Collector.Send call) before the events channel closes
	// below, or that send panics on a closed-channel select case.
	s.agentWG.Wait()

	for _, srv := range s.servers {
		srv.Stop()
	}

	close(s.coll.Events())
	<-s.coll.Done()
	s.snapTicker.Stop()

	perServerAcc := s.coll.PerServer()
	perServer := make([]results.ServerResult, 0, len(s.servers))
	for _, srv := range s.servers {
		acc := perServerAcc[srv.ID]
		r := results.ServerResult{
			ServerID:        srv.ID,
			Sent:            acc.Sent,
			Delivered:       acc.Delivered,
			DroppedStrategy: acc.DroppedStrategy,
			DroppedCapacity: acc.DroppedCapacity,
		}
		if acc.Delivered > 0 {
			r.MeanLatencyMs = (acc.SumLatencyNanos / float64(acc.Delivered)) / float64(time.Millisecond)
		}
		perServer = append(perServer, r)
	}

	agg := results.BuildAggregate(perServer)
	agg.P95LatencyMs = s.coll.P95LatencyMs()

	run := results.Run{
		Name:      s.cfg.Strategy,
		Config:    s.cfg,
		PerServer: perServer,
		Aggregate: agg,
		Snapshots: s.coll.Snapshots(),
	}

	if overflow := s.coll.Overflowed(); overflow > 0 {
		run.Status = failedStatus(simerr.MetricsOverflow)
		return run, simerr.New(simerr.MetricsOverflow, "sim.drain", fmt.Errorf("%d events dropped", overflow))
	}

	run.Status = statusOK
	return run, nil
}

// Phase reports the Simulation's current lifecycle phase.
func (s *Simulation) Phase() Phase { return s.phase }
