// Package dashboard exposes a running Simulation's metrics two ways: a
// gorilla/websocket live Snapshot stream for a browser UI, and a
// prometheus /metrics endpoint for scraping, generalized from the
// teacher's LSM-tree gauges to the AQM gauges this harness tracks.
package dashboard

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Servus-Altissimi/FlockNet/internal/metrics"
)

const pushInterval = 500 * time.Millisecond

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// safeConn serializes concurrent WriteJSON calls, since the push loop and
// any future command-handling loop would otherwise race on the same
// connection (grounded on the teacher's identical wrapper).
type safeConn struct {
	*websocket.Conn
	writeMu sync.Mutex
}

func (sc *safeConn) WriteJSON(v interface{}) error {
	sc.writeMu.Lock()
	defer sc.writeMu.Unlock()
	return sc.Conn.WriteJSON(v)
}

// statusMessage is the envelope pushed to every connected browser client.
type statusMessage struct {
	Type     string            `json:"type"`
	Strategy string            `json:"strategy,omitempty"`
	Snapshot *metrics.Snapshot `json:"snapshot,omitempty"`
	Overflow uint64            `json:"overflow,omitempty"`
}

// gauges mirrors promMetrics from the teacher's cmd/server/prometheus.go,
// retargeted from write-amplification/L0-file gauges to AQM gauges.
type gauges struct {
	throughputPPS prometheus.Gauge
	lossRatio     prometheus.Gauge
	meanQueueLen  prometheus.Gauge
	p95LatencyMs  prometheus.Gauge
	meanLatencyMs prometheus.Gauge
	jitterMs      prometheus.Gauge
}

func newGauges(strategyName string) *gauges {
	labels := prometheus.Labels{"strategy": strategyName}
	g := &gauges{
		throughputPPS: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "flocknet_throughput_pps",
			Help:        "Delivered packets per second over the last snapshot window",
			ConstLabels: labels,
		}),
		lossRatio: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "flocknet_loss_ratio",
			Help:        "Fraction of packets dropped (strategy + capacity) over the last window",
			ConstLabels: labels,
		}),
		meanQueueLen: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "flocknet_mean_queue_len",
			Help:        "Mean queue occupancy sampled over the last window",
			ConstLabels: labels,
		}),
		p95LatencyMs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "flocknet_p95_latency_ms",
			Help:        "p95 sojourn latency in milliseconds over the last window",
			ConstLabels: labels,
		}),
		meanLatencyMs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "flocknet_mean_latency_ms",
			Help:        "Mean sojourn latency in milliseconds over the last window",
			ConstLabels: labels,
		}),
		jitterMs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "flocknet_jitter_ms",
			Help:        "Mean per-agent standard deviation of consecutive sojourn differences",
			ConstLabels: labels,
		}),
	}
	return g
}

func (g *gauges) register(reg *prometheus.Registry) {
	reg.MustRegister(g.throughputPPS, g.lossRatio, g.meanQueueLen, g.p95LatencyMs, g.meanLatencyMs, g.jitterMs)
}

func (g *gauges) update(s metrics.Snapshot) {
	g.throughputPPS.Set(s.ThroughputPPS)
	g.lossRatio.Set(s.LossRatio)
	g.meanQueueLen.Set(s.MeanQueueLen)
	g.p95LatencyMs.Set(s.P95LatencyMs)
	g.meanLatencyMs.Set(s.MeanLatencyMs)
	g.jitterMs.Set(s.JitterMs)
}

// Dashboard serves a live view of one Simulation's Collector: a websocket
// push stream at /ws and a Prometheus scrape endpoint at /metrics. The
// /metrics gauges are set from the /ws push loop, so they only change while
// at least one websocket client is connected.
type Dashboard struct {
	coll     *metrics.Collector
	strategy string
	logger   *log.Logger

	reg    *prometheus.Registry
	gauges *gauges

	server *http.Server
}

// New constructs a Dashboard bound to coll. It registers its own
// prometheus.Registry rather than the global one, so multiple Dashboards
// in one process never collide on metric names.
func New(coll *metrics.Collector, strategyName string, logger *log.Logger) *Dashboard {
	if logger == nil {
		logger = log.Default()
	}
	reg := prometheus.NewRegistry()
	g := newGauges(strategyName)
	g.register(reg)

	d := &Dashboard{coll: coll, strategy: strategyName, logger: logger, reg: reg, gauges: g}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", d.handleWebSocket)
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	d.server = &http.Server{Handler: mux}
	return d
}

// Serve listens on addr until Close is called. Run it in its own goroutine.
func (d *Dashboard) Serve(addr string) error {
	d.server.Addr = addr
	err := d.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Close shuts the HTTP server down.
func (d *Dashboard) Close() error {
	return d.server.Close()
}

func (d *Dashboard) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		d.logger.Printf("flocknet: dashboard upgrade failed: %v", err)
		return
	}
	defer conn.Close()
	sc := &safeConn{Conn: conn}

	ticker := time.NewTicker(pushInterval)
	defer ticker.Stop()

	lastSent := 0
	for range ticker.C {
		snaps := d.coll.Snapshots()
		if len(snaps) <= lastSent {
			continue
		}
		for _, s := range snaps[lastSent:] {
			d.gauges.update(s)
			msg := statusMessage{Type: "snapshot", Strategy: d.strategy, Snapshot: &s, Overflow: d.coll.Overflowed()}
			if err := sc.WriteJSON(msg); err != nil {
				return
			}
		}
		lastSent = len(snaps)
	}
}
