package sim

import (
	"context"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Servus-Altissimi/FlockNet/internal/config"
)

func testConfig() config.Config {
	cfg := config.DefaultConfig()
	cfg.Strategy = "drop-tail"
	cfg.Agents = 3
	cfg.Servers = 1
	cfg.Duration = 200 * time.Millisecond
	cfg.BaseRatePPS = 200
	cfg.BandwidthPPS = 1000
	cfg.Capacity = 20
	cfg.BasePort = 19100
	cfg.Seed = 7
	return cfg
}

func TestSimulation_RunProducesNonEmptyRunRecord(t *testing.T) {
	cfg := testConfig()
	logger := log.New(newDiscard(), "", 0)

	s, err := New(cfg, logger)
	require.NoError(t, err)

	run, err := s.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, "ok", run.Status)
	require.Equal(t, "drop-tail", run.Name)
	require.NotEmpty(t, run.PerServer)
	require.Equal(t, Finalized, s.Phase())
}

func TestSimulation_NewRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Servers = 0
	_, err := New(cfg, nil)
	require.Error(t, err)
}

func TestSimulation_ReadyFiresBeforeRunCompletes(t *testing.T) {
	cfg := testConfig()
	cfg.BasePort = 19110
	logger := log.New(newDiscard(), "", 0)

	s, err := New(cfg, logger)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		s.Run(context.Background())
		close(done)
	}()

	select {
	case <-s.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("Ready never fired")
	}
	require.NotNil(t, s.Collector())
	<-done
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func newDiscard() discard { return discard{} }
