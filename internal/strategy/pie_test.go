package strategy

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Servus-Altissimi/FlockNet/internal/clock"
	"github.com/Servus-Altissimi/FlockNet/internal/packet"
)

func TestPIE_NeverDropsWhileProbabilityIsZero(t *testing.T) {
	p := NewPIE(rand.New(rand.NewSource(1)))
	require.Equal(t, Accept, p.OnEnqueue(packet.Packet{}, 10, 0))
}

func TestPIE_RaisesProbabilityWhenDelayAboveTarget(t *testing.T) {
	p := NewPIE(rand.New(rand.NewSource(1)))
	p.Update(0, 0, 0) // primes lastUpdate

	p.Update(0, 40*time.Millisecond, clock.Timestamp(pieUpdateInterval))
	require.Greater(t, p.p, 0.0)
}

func TestPIE_LowersProbabilityWhenDelayBelowTarget(t *testing.T) {
	p := NewPIE(rand.New(rand.NewSource(1)))
	p.p = 0.5
	p.Update(0, 0, 0)
	p.Update(0, 1*time.Millisecond, clock.Timestamp(pieUpdateInterval))
	require.Less(t, p.p, 0.5)
}

func TestPIE_BurstAllowanceSuppressesDropsAfterRefill(t *testing.T) {
	p := NewPIE(rand.New(rand.NewSource(1)))
	p.p = 0.9
	p.burstAllowance = pieMaxBurst
	require.Equal(t, Accept, p.OnEnqueue(packet.Packet{}, 10, 0))
}

func TestPIE_ResetRestoresDefaults(t *testing.T) {
	p := NewPIE(rand.New(rand.NewSource(1)))
	p.p = 0.7
	p.burstAllowance = 0
	p.Reset()
	require.Equal(t, 0.0, p.p)
	require.Equal(t, pieMaxBurst, p.burstAllowance)
}
