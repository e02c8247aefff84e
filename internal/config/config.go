// Package config holds FlockNet's typed run configuration: flat struct,
// JSON tags, a Validate method and a DefaultConfig constructor, mirroring
// the shape of simulator.SimConfig in the repo this harness grew out of.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/Servus-Altissimi/FlockNet/internal/simerr"
)

// TrafficKind names one of the built-in TrafficGenerator variants.
type TrafficKind string

const (
	TrafficConstant TrafficKind = "constant"
	TrafficBursty   TrafficKind = "bursty"
	TrafficPoisson  TrafficKind = "poisson"
	TrafficPeak     TrafficKind = "peak"
)

// Config is the Simulation orchestrator's input (spec.md §4.6).
type Config struct {
	Strategy string `json:"strategy"`

	Agents  int `json:"agents"`
	Servers int `json:"servers"`

	Duration time.Duration `json:"durationNanos"`

	Traffic      TrafficKind   `json:"traffic"`
	BaseRatePPS  float64       `json:"baseRatePps"`
	PeakRatePPS  float64       `json:"peakRatePps"`
	PeakDuration time.Duration `json:"peakDurationNanos"`
	Cycle        time.Duration `json:"cycleNanos"`
	BurstSize    int           `json:"burstSize"`
	BurstPeriod  time.Duration `json:"burstPeriodNanos"`

	Capacity     int     `json:"capacity"`
	BandwidthPPS float64 `json:"bandwidthPps"`
	SizeBytes    uint32  `json:"sizeBytes"`

	Seed     int64 `json:"seed"`
	BasePort int   `json:"basePort"`
}

// DefaultConfig returns a small, fast, deterministic default run.
func DefaultConfig() Config {
	return Config{
		Strategy:     "drop-tail",
		Agents:       10,
		Servers:      1,
		Duration:     10 * time.Second,
		Traffic:      TrafficConstant,
		BaseRatePPS:  50,
		PeakRatePPS:  200,
		PeakDuration: 1 * time.Second,
		Cycle:        5 * time.Second,
		BurstSize:    20,
		BurstPeriod:  1 * time.Second,
		Capacity:     100,
		BandwidthPPS: 500,
		SizeBytes:    64,
		Seed:         1,
		BasePort:     18000,
	}
}

// Validate checks the configuration for the ConfigInvalid conditions
// spec.md §7 requires to fail before init.
func (c *Config) Validate() error {
	if c.Agents < 0 {
		return simerr.Invalid("config.Validate", "agents must be >= 0")
	}
	if c.Servers <= 0 {
		return simerr.Invalid("config.Validate", "servers must be > 0")
	}
	if c.Duration < 0 {
		return simerr.Invalid("config.Validate", "duration must be >= 0")
	}
	if c.Capacity < 0 {
		return simerr.Invalid("config.Validate", "capacity must be >= 0")
	}
	if c.BandwidthPPS <= 0 {
		return simerr.Invalid("config.Validate", "bandwidth_pps must be > 0")
	}
	// size_bytes must be constant per run and large enough for the wire
	// header (spec.md §9 Open Question (a)): validated once here rather
	// than per-packet on the hot path.
	if c.SizeBytes < 28 {
		return simerr.Invalid("config.Validate", "size_bytes must be >= 28 (wire header size)")
	}
	switch c.Traffic {
	case TrafficConstant, TrafficBursty, TrafficPoisson, TrafficPeak:
	default:
		return simerr.Invalid("config.Validate", fmt.Sprintf("unknown traffic kind %q", c.Traffic))
	}
	if c.BaseRatePPS <= 0 {
		return simerr.Invalid("config.Validate", "base_rate_pps must be > 0")
	}
	if c.BasePort <= 0 || c.BasePort > 65535 {
		return simerr.Invalid("config.Validate", "base_port must be a valid TCP port")
	}
	return nil
}

// ApplyEnvOverrides applies the FLOCKNET_SEED and FLOCKNET_BASE_PORT
// environment variable overrides documented in spec.md §6.
func (c *Config) ApplyEnvOverrides() error {
	if v := os.Getenv("FLOCKNET_SEED"); v != "" {
		seed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return simerr.Invalid("config.ApplyEnvOverrides", "FLOCKNET_SEED must be an integer")
		}
		c.Seed = seed
	}
	if v := os.Getenv("FLOCKNET_BASE_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return simerr.Invalid("config.ApplyEnvOverrides", "FLOCKNET_BASE_PORT must be an integer")
		}
		c.BasePort = port
	}
	return nil
}
