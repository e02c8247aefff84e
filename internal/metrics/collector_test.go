package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCollector_SendSucceedsWithinCapacity(t *testing.T) {
	c := NewCollector(10, 1)
	require.NoError(t, c.Send(Event{Kind: PacketSent, ServerID: 0}))
}

func TestCollector_SendOverflowsWhenChannelFull(t *testing.T) {
	c := NewCollector(1, 1)
	capacity := cap(c.events)
	for i := 0; i < capacity; i++ {
		require.NoError(t, c.Send(Event{Kind: PacketSent}))
	}
	err := c.Send(Event{Kind: PacketSent})
	require.Error(t, err)
	require.Equal(t, uint64(1), c.Overflowed())
}

func TestCollector_RunAccumulatesEventsAndPerServerTotals(t *testing.T) {
	c := NewCollector(100, 2)
	tick := make(chan time.Time)
	go c.Run(tick)

	require.NoError(t, c.Send(Event{Kind: PacketSent, ServerID: 0}))
	require.NoError(t, c.Send(Event{Kind: PacketDelivered, ServerID: 0, AgentID: 1, Sojourn: 5 * time.Millisecond}))
	require.NoError(t, c.Send(Event{Kind: DropCapacity, ServerID: 1}))

	close(c.events)
	<-c.Done()

	acc := c.Accumulator()
	require.Equal(t, uint64(1), acc.Sent)
	require.Equal(t, uint64(1), acc.Delivered)
	require.Equal(t, uint64(1), acc.DroppedCapacity)

	perServer := c.PerServer()
	require.Equal(t, uint64(1), perServer[0].Sent)
	require.Equal(t, uint64(1), perServer[1].DroppedCapacity)
}

func TestCollector_SnapshotDerivesWindowLatency(t *testing.T) {
	c := NewCollector(100, 1)
	tick := make(chan time.Time, 1)
	go c.Run(tick)

	require.NoError(t, c.Send(Event{Kind: PacketDelivered, ServerID: 0, AgentID: 1, Sojourn: 10 * time.Millisecond}))
	time.Sleep(10 * time.Millisecond)
	tick <- time.Now()
	time.Sleep(10 * time.Millisecond)

	close(c.events)
	<-c.Done()

	snaps := c.Snapshots()
	require.Len(t, snaps, 1)
	require.Greater(t, snaps[0].MeanLatencyMs, 0.0)
}

func TestCollector_MeanJitterZeroUntilTwoDifferences(t *testing.T) {
	c := NewCollector(100, 1)
	require.Equal(t, 0.0, c.meanJitterMs())

	c.recordJitter(1, 5*time.Millisecond)
	require.Equal(t, 0.0, c.meanJitterMs()) // only one sample so far

	c.recordJitter(1, 8*time.Millisecond)
	require.Equal(t, 0.0, c.meanJitterMs()) // one difference: its std dev is zero

	c.recordJitter(1, 9*time.Millisecond)
	require.Greater(t, c.meanJitterMs(), 0.0)
}
