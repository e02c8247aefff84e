package strategy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Servus-Altissimi/FlockNet/internal/clock"
	"github.com/Servus-Altissimi/FlockNet/internal/packet"
)

func TestFQCoDel_DifferentFlowsGetSeparateBuckets(t *testing.T) {
	f := NewFQCoDel()
	f.Enqueue(packet.Packet{SourceAgentID: 1, SizeBytes: 100}, 0)
	f.Enqueue(packet.Packet{SourceAgentID: 2, SizeBytes: 100}, 0)
	require.Equal(t, 2, f.Len())

	idx1 := fqHash(1)
	idx2 := fqHash(2)
	if idx1 != idx2 {
		require.Len(t, f.buckets[idx1].queue, 1)
		require.Len(t, f.buckets[idx2].queue, 1)
	}
}

func TestFQCoDel_DequeueReturnsAllEnqueuedPackets(t *testing.T) {
	f := NewFQCoDel()
	for i := 0; i < 5; i++ {
		f.Enqueue(packet.Packet{SourceAgentID: uint32(i % 2), Sequence: uint64(i), SizeBytes: 100}, 0)
	}
	require.Equal(t, 5, f.Len())

	got := map[uint64]bool{}
	for i := 0; i < 5; i++ {
		pkt, ok, dropped := f.Dequeue(clock.Timestamp(i))
		require.True(t, ok)
		require.Empty(t, dropped)
		got[pkt.Sequence] = true
	}
	require.Len(t, got, 5)
	require.Equal(t, 0, f.Len())
}

func TestFQCoDel_DequeueOnEmptyReturnsFalse(t *testing.T) {
	f := NewFQCoDel()
	_, ok, dropped := f.Dequeue(0)
	require.False(t, ok)
	require.Empty(t, dropped)
}

// TestFQCoDel_SurfacesInternalCoDelDrops exercises a bucket whose embedded
// CoDel enters its dropping state: the dropped packet must come back out of
// Dequeue instead of vanishing, per the QueueOwner contract.
func TestFQCoDel_SurfacesInternalCoDelDrops(t *testing.T) {
	f := NewFQCoDel()
	f.Enqueue(packet.Packet{SourceAgentID: 7, Sequence: 1, SizeBytes: 100}, 0)
	f.Enqueue(packet.Packet{SourceAgentID: 7, Sequence: 2, SizeBytes: 100}, 0)
	f.Enqueue(packet.Packet{SourceAgentID: 7, Sequence: 3, SizeBytes: 100}, 0)

	pkt1, ok, dropped := f.Dequeue(clock.Timestamp(200 * time.Millisecond))
	require.True(t, ok)
	require.Empty(t, dropped)
	require.Equal(t, uint64(1), pkt1.Sequence)

	pkt2, ok, dropped := f.Dequeue(clock.Timestamp(310 * time.Millisecond))
	require.True(t, ok)
	require.Equal(t, uint64(3), pkt2.Sequence)
	require.Len(t, dropped, 1)
	require.Equal(t, uint64(2), dropped[0].Sequence)

	require.Equal(t, 0, f.Len())
}

func TestFQCoDel_ResetClearsAllBuckets(t *testing.T) {
	f := NewFQCoDel()
	f.Enqueue(packet.Packet{SourceAgentID: 1, SizeBytes: 100}, 0)
	f.Reset()
	require.Equal(t, 0, f.Len())
	_, ok, _ := f.Dequeue(0)
	require.False(t, ok)
}
