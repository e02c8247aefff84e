// Command flocknet runs AQM strategy benchmarks and manages their results,
// with subcommands in the style of the teacher's cmd/sim_runner: flat flag
// sets, results printed or written as requested, stderr progress, and a
// process exit code mapped from the run's error kind.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/Servus-Altissimi/FlockNet/internal/config"
	"github.com/Servus-Altissimi/FlockNet/internal/dashboard"
	"github.com/Servus-Altissimi/FlockNet/internal/results"
	"github.com/Servus-Altissimi/FlockNet/internal/sim"
	"github.com/Servus-Altissimi/FlockNet/internal/simerr"
	"github.com/Servus-Altissimi/FlockNet/internal/strategy"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "list":
		err = cmdList(os.Args[2:])
	case "run":
		err = cmdRun(os.Args[2:])
	case "compare":
		err = cmdCompare(os.Args[2:])
	case "analyze":
		err = cmdAnalyze(os.Args[2:])
	case "export":
		err = cmdExport(os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "flocknet: unknown subcommand %q\n", os.Args[1])
		usage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "flocknet: %v\n", err)
		os.Exit(simerr.ExitCode(err))
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage: %s <list|run|compare|analyze|export> [flags]\n", os.Args[0])
}

func cmdList(args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	fs.Parse(args)
	for _, name := range strategy.Names() {
		fmt.Printf("%-14s %s\n", name, strategy.Describe(name))
	}
	return nil
}

// runFlags registers the Config-shaping flags shared by `run` and `compare`.
func runFlags(fs *flag.FlagSet, cfg *config.Config) {
	fs.IntVar(&cfg.Agents, "agents", cfg.Agents, "number of agents")
	fs.IntVar(&cfg.Servers, "servers", cfg.Servers, "number of servers")
	fs.DurationVar(&cfg.Duration, "duration", cfg.Duration, "run duration")
	fs.StringVar((*string)(&cfg.Traffic), "traffic", string(cfg.Traffic), "traffic pattern: constant|bursty|poisson|peak")
	fs.Float64Var(&cfg.BaseRatePPS, "base-rate", cfg.BaseRatePPS, "base send rate, packets/sec")
	fs.Float64Var(&cfg.PeakRatePPS, "peak-rate", cfg.PeakRatePPS, "peak send rate for the peak traffic pattern")
	fs.DurationVar(&cfg.PeakDuration, "peak-duration", cfg.PeakDuration, "peak window length within each cycle")
	fs.DurationVar(&cfg.Cycle, "cycle", cfg.Cycle, "peak traffic cycle length")
	fs.IntVar(&cfg.BurstSize, "burst-size", cfg.BurstSize, "packets per burst for the bursty traffic pattern")
	fs.DurationVar(&cfg.BurstPeriod, "burst-period", cfg.BurstPeriod, "delay between bursts")
	fs.IntVar(&cfg.Capacity, "capacity", cfg.Capacity, "per-server queue capacity")
	fs.Float64Var(&cfg.BandwidthPPS, "bandwidth", cfg.BandwidthPPS, "per-server service rate, packets/sec")
	fs.Int64Var(&cfg.Seed, "seed", cfg.Seed, "RNG seed")
	fs.IntVar(&cfg.BasePort, "base-port", cfg.BasePort, "first TCP port to bind; servers use consecutive ports")
}

func cmdRun(args []string) error {
	cfg := config.DefaultConfig()
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	strategyName := fs.String("strategy", cfg.Strategy, "AQM strategy name (see `list`)")
	outDir := fs.String("out", "results", "directory for result artifacts")
	dashAddr := fs.String("dashboard", "", "if set, serve a live websocket+prometheus dashboard on this address (e.g. :8090)")
	runFlags(fs, &cfg)
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg.Strategy = *strategyName

	if err := cfg.ApplyEnvOverrides(); err != nil {
		return err
	}

	run, err := runOne(cfg, *dashAddr)
	if err != nil {
		return err
	}

	return writeArtifacts(*outDir, run)
}

func runOne(cfg config.Config, dashAddr string) (results.Run, error) {
	logger := log.New(os.Stderr, "", log.LstdFlags)
	simn, err := sim.New(cfg, logger)
	if err != nil {
		return results.Run{}, err
	}

	fmt.Fprintf(os.Stderr, "flocknet: running %s for %s (%d agents, %d servers)\n", cfg.Strategy, cfg.Duration, cfg.Agents, cfg.Servers)

	if dashAddr != "" {
		go func() {
			<-simn.Ready()
			dash := dashboard.New(simn.Collector(), cfg.Strategy, logger)
			fmt.Fprintf(os.Stderr, "flocknet: dashboard listening on %s (/ws, /metrics)\n", dashAddr)
			if err := dash.Serve(dashAddr); err != nil {
				fmt.Fprintf(os.Stderr, "flocknet: dashboard stopped: %v\n", err)
			}
		}()
	}

	start := time.Now()
	run, err := simn.Run(context.Background())
	if err != nil {
		return results.Run{}, err
	}
	fmt.Fprintf(os.Stderr, "flocknet: completed in %s, loss ratio %.4f, p95 %.2fms\n", time.Since(start), run.Aggregate.LossRatio, run.Aggregate.P95LatencyMs)
	return run, nil
}

func writeArtifacts(dir string, run results.Run) error {
	ts := time.Now().Unix()
	if _, err := results.WriteJSON(dir, run, ts); err != nil {
		return err
	}
	if _, err := results.WriteCSV(dir, run, ts); err != nil {
		return err
	}
	path, err := results.WritePlotDat(dir, run, ts)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "flocknet: wrote %s and companion .csv/_analysis.json\n", path)
	return nil
}

func cmdCompare(args []string) error {
	cfg := config.DefaultConfig()
	fs := flag.NewFlagSet("compare", flag.ExitOnError)
	strategiesFlag := fs.String("strategies", "", "comma-separated strategy names, default: all built-ins")
	repetitions := fs.Int("repetitions", 1, "repetitions per strategy")
	outDir := fs.String("out", "results", "directory for result artifacts")
	runFlags(fs, &cfg)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := cfg.ApplyEnvOverrides(); err != nil {
		return err
	}

	names := strategy.Names()
	if *strategiesFlag != "" {
		names = splitCSV(*strategiesFlag)
	}

	var runs []results.Run
	port := cfg.BasePort
	for _, name := range names {
		for rep := 0; rep < *repetitions; rep++ {
			runCfg := cfg
			runCfg.Strategy = name
			runCfg.Seed = cfg.Seed + int64(rep)
			runCfg.BasePort = port
			port += cfg.Servers

			run, err := runOne(runCfg, "")
			if err != nil {
				fmt.Fprintf(os.Stderr, "flocknet: %s rep %d failed: %v\n", name, rep, err)
				continue
			}
			runs = append(runs, run)
		}
	}

	if len(runs) == 0 {
		return simerr.New(simerr.ConfigInvalid, "cmdCompare", fmt.Errorf("every run failed"))
	}

	path, err := results.WriteComparison(*outDir, runs, time.Now().Unix())
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "flocknet: wrote %s\n", path)
	return nil
}

func splitCSV(s string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	return out
}

func cmdAnalyze(args []string) error {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	fs.Parse(args)
	if fs.NArg() < 1 {
		return simerr.New(simerr.ConfigInvalid, "cmdAnalyze", fmt.Errorf("usage: flocknet analyze <comparison_or_analysis.json>"))
	}
	path := fs.Arg(0)

	runs, err := results.ReadComparison(path)
	if err != nil {
		run, singleErr := results.ReadRun(path)
		if singleErr != nil {
			return err
		}
		runs = []results.Run{run}
	}

	fmt.Printf("%-14s %8s %10s %10s %8s\n", "strategy", "sent", "loss", "p95_ms", "mean_ms")
	for _, r := range runs {
		fmt.Printf("%-14s %8d %10.4f %10.2f %8.2f\n", r.Name, r.Aggregate.Sent, r.Aggregate.LossRatio, r.Aggregate.P95LatencyMs, r.Aggregate.MeanLatencyMs)
	}
	return nil
}

func cmdExport(args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	outDir := fs.String("out", "results", "directory for result artifacts")
	fs.Parse(args)
	if fs.NArg() < 1 {
		return simerr.New(simerr.ConfigInvalid, "cmdExport", fmt.Errorf("usage: flocknet export <analysis.json>"))
	}

	run, err := results.ReadRun(fs.Arg(0))
	if err != nil {
		return err
	}
	ts := time.Now().Unix()
	if _, err := results.WriteCSV(*outDir, run, ts); err != nil {
		return err
	}
	path, err := results.WritePlotDat(*outDir, run, ts)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "flocknet: exported %s and companion .csv\n", path)
	return nil
}
