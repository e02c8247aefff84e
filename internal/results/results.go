// Package results implements the Run record and its on-disk artifact
// writers from spec.md §6: per-run CSV, JSON analysis, a plot.dat subset,
// and a multi-run comparison JSON.
package results

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Servus-Altissimi/FlockNet/internal/config"
	"github.com/Servus-Altissimi/FlockNet/internal/metrics"
)

// ServerResult is one server's final metrics within a Run record. Per-server
// p95 latency isn't tracked (only a whole-run histogram is kept); the
// Aggregate's P95LatencyMs covers that.
type ServerResult struct {
	ServerID        uint32  `json:"serverId"`
	Sent            uint64  `json:"sent"`
	Delivered       uint64  `json:"delivered"`
	DroppedStrategy uint64  `json:"droppedStrategy"`
	DroppedCapacity uint64  `json:"droppedCapacity"`
	MeanLatencyMs   float64 `json:"meanLatencyMs"`
}

// Aggregate holds run-wide totals, summed across servers.
type Aggregate struct {
	Sent            uint64  `json:"sent"`
	Delivered       uint64  `json:"delivered"`
	DroppedStrategy uint64  `json:"droppedStrategy"`
	DroppedCapacity uint64  `json:"droppedCapacity"`
	LossRatio       float64 `json:"lossRatio"`
	MeanLatencyMs   float64 `json:"meanLatencyMs"`
	P95LatencyMs    float64 `json:"p95LatencyMs"`
}

// Run is the record emitted exactly once at simulation end (spec.md §3).
type Run struct {
	Name      string             `json:"name"`
	Config    config.Config      `json:"config"`
	Status    string             `json:"status"`
	PerServer []ServerResult     `json:"perServer"`
	Aggregate Aggregate          `json:"aggregate"`
	Snapshots []metrics.Snapshot `json:"snapshots"`
}

// BuildAggregate sums per-server results into a run-wide Aggregate.
func BuildAggregate(perServer []ServerResult) Aggregate {
	var agg Aggregate
	var latSum float64
	for _, r := range perServer {
		agg.Sent += r.Sent
		agg.Delivered += r.Delivered
		agg.DroppedStrategy += r.DroppedStrategy
		agg.DroppedCapacity += r.DroppedCapacity
		latSum += r.MeanLatencyMs
	}
	total := agg.Delivered + agg.DroppedStrategy + agg.DroppedCapacity
	if total > 0 {
		agg.LossRatio = float64(agg.DroppedStrategy+agg.DroppedCapacity) / float64(total)
	}
	if n := len(perServer); n > 0 {
		agg.MeanLatencyMs = latSum / float64(n)
	}
	return agg
}

// WriteJSON writes `{name}_{timestamp}_analysis.json` under dir.
func WriteJSON(dir string, run Run, timestamp int64) (string, error) {
	path := filepath.Join(dir, fmt.Sprintf("%s_%d_analysis.json", run.Name, timestamp))
	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return path, os.WriteFile(path, data, 0o644)
}

// WriteCSV writes `{name}_{timestamp}.csv` with one row per snapshot, per
// spec.md §6's column contract.
func WriteCSV(dir string, run Run, timestamp int64) (string, error) {
	path := filepath.Join(dir, fmt.Sprintf("%s_%d.csv", run.Name, timestamp))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString("t,throughput_pps,mean_latency_ms,p95_latency_ms,loss_ratio,mean_queue_len,jitter_ms\n")
	for _, s := range run.Snapshots {
		fmt.Fprintf(&b, "%d,%f,%f,%f,%f,%f,%f\n",
			s.T.Nanoseconds(), s.ThroughputPPS, s.MeanLatencyMs, s.P95LatencyMs, s.LossRatio, s.MeanQueueLen, s.JitterMs)
	}
	return path, os.WriteFile(path, []byte(b.String()), 0o644)
}

// WritePlotDat writes a whitespace-separated subset of the snapshot series
// for external plotters, per spec.md §6.
func WritePlotDat(dir string, run Run, timestamp int64) (string, error) {
	path := filepath.Join(dir, fmt.Sprintf("%s_%d_plot.dat", run.Name, timestamp))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString("# t throughput_pps p95_latency_ms loss_ratio\n")
	for _, s := range run.Snapshots {
		fmt.Fprintf(&b, "%d %f %f %f\n", s.T.Nanoseconds(), s.ThroughputPPS, s.P95LatencyMs, s.LossRatio)
	}
	return path, os.WriteFile(path, []byte(b.String()), 0o644)
}

// WriteComparison writes `comparison_{timestamp}.json`: the array of Run
// records produced by the `compare` subcommand across strategies and
// repetitions.
func WriteComparison(dir string, runs []Run, timestamp int64) (string, error) {
	path := filepath.Join(dir, fmt.Sprintf("comparison_%d.json", timestamp))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	data, err := json.MarshalIndent(runs, "", "  ")
	if err != nil {
		return "", err
	}
	return path, os.WriteFile(path, data, 0o644)
}

// ReadRun loads a single Run record from an `_analysis.json` file.
func ReadRun(path string) (Run, error) {
	var run Run
	data, err := os.ReadFile(path)
	if err != nil {
		return run, err
	}
	err = json.Unmarshal(data, &run)
	return run, err
}

// ReadComparison loads a comparison JSON's array of Run records.
func ReadComparison(path string) ([]Run, error) {
	var runs []Run
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	err = json.Unmarshal(data, &runs)
	return runs, err
}
