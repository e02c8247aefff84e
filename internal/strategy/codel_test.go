package strategy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Servus-Altissimi/FlockNet/internal/clock"
)

func TestCoDel_AcceptsWhileBelowTarget(t *testing.T) {
	c := NewCoDel()
	d := c.ReportDequeue(1*time.Millisecond, 3, 0)
	require.Equal(t, Accept, d)
}

func TestCoDel_EntersDroppingAfterPersistentOverTarget(t *testing.T) {
	c := NewCoDel()
	now := clock.Timestamp(0)

	// First over-target sojourn just arms first_above_time.
	require.Equal(t, Accept, c.ReportDequeue(10*time.Millisecond, 5, now))
	require.True(t, c.haveFirstAbove)

	// Advance past the interval while still above target: should drop.
	now = clock.Timestamp(codelInterval + time.Millisecond)
	require.Equal(t, Drop, c.ReportDequeue(10*time.Millisecond, 5, now))
	require.True(t, c.dropping)
}

func TestCoDel_ExitsDroppingWhenBelowTarget(t *testing.T) {
	c := NewCoDel()
	now := clock.Timestamp(0)
	c.ReportDequeue(10*time.Millisecond, 5, now)
	now = clock.Timestamp(codelInterval + time.Millisecond)
	c.ReportDequeue(10*time.Millisecond, 5, now)
	require.True(t, c.dropping)

	now += clock.Timestamp(time.Millisecond)
	d := c.ReportDequeue(1*time.Millisecond, 0, now)
	require.Equal(t, Accept, d)
	require.False(t, c.dropping)
}

func TestCoDel_EmptyQueueCountsAsBelowTarget(t *testing.T) {
	c := NewCoDel()
	d := c.ReportDequeue(50*time.Millisecond, 0, 0)
	require.Equal(t, Accept, d)
	require.False(t, c.haveFirstAbove)
}

func TestCoDel_ResetClearsState(t *testing.T) {
	c := NewCoDel()
	c.ReportDequeue(10*time.Millisecond, 5, 0)
	c.Reset()
	require.False(t, c.haveFirstAbove)
	require.False(t, c.dropping)
	require.Equal(t, 0, c.count)
}
