package strategy

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Servus-Altissimi/FlockNet/internal/clock"
)

func TestBLUE_OverflowRaisesP(t *testing.T) {
	b := NewBLUE(rand.New(rand.NewSource(1)))
	b.MarkOverflow(0)
	require.InDelta(t, 0.0025, b.p, 1e-9)
}

func TestBLUE_OverflowIsFrozenWithinWindow(t *testing.T) {
	b := NewBLUE(rand.New(rand.NewSource(1)))
	b.MarkOverflow(0)
	b.MarkOverflow(clock.Timestamp(1)) // well inside the 100ms freeze
	require.InDelta(t, 0.0025, b.p, 1e-9)
}

func TestBLUE_IdleDequeueLowersP(t *testing.T) {
	b := NewBLUE(rand.New(rand.NewSource(1)))
	b.p = 0.01
	b.OnDequeue(0, 0)
	require.InDelta(t, 0.01-0.00025, b.p, 1e-9)
}

func TestBLUE_NonEmptyDequeueDoesNotChangeP(t *testing.T) {
	b := NewBLUE(rand.New(rand.NewSource(1)))
	b.p = 0.01
	b.OnDequeue(3, 0)
	require.InDelta(t, 0.01, b.p, 1e-9)
}

func TestBLUE_PNeverExceedsOne(t *testing.T) {
	b := NewBLUE(rand.New(rand.NewSource(1)))
	b.p = 1
	b.haveUpdate = false
	b.MarkOverflow(0)
	require.Equal(t, 1.0, b.p)
}
