package strategy

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Servus-Altissimi/FlockNet/internal/clock"
)

func TestAdaptiveRED_RaisesMaxPWhenAverageHigh(t *testing.T) {
	a := NewAdaptiveRED(100, rand.New(rand.NewSource(1)))
	a.red.avg = a.targetHigh + 1
	initial := a.red.maxP

	a.Update(50, 0, 0)                                 // primes lastUpdate
	a.Update(50, 0, clock.Timestamp(adaptiveInterval)) // trips the interval

	require.Greater(t, a.red.maxP, initial)
	require.LessOrEqual(t, a.red.maxP, 0.5)
}

func TestAdaptiveRED_LowersMaxPWhenAverageLow(t *testing.T) {
	a := NewAdaptiveRED(100, rand.New(rand.NewSource(1)))
	a.red.avg = a.targetLow - 1
	initial := a.red.maxP

	a.Update(0, 0, 0)
	a.Update(0, 0, clock.Timestamp(adaptiveInterval))

	require.Less(t, a.red.maxP, initial)
	require.GreaterOrEqual(t, a.red.maxP, 0.01)
}

func TestAdaptiveRED_ResetRestoresDefaultMaxP(t *testing.T) {
	a := NewAdaptiveRED(100, rand.New(rand.NewSource(1)))
	a.red.maxP = 0.49
	a.Reset()
	require.Equal(t, 0.1, a.red.maxP)
}
