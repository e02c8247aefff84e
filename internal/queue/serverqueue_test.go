package queue

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Servus-Altissimi/FlockNet/internal/packet"
	"github.com/Servus-Altissimi/FlockNet/internal/strategy"
)

func TestServerQueue_DropTailRespectsCapacity(t *testing.T) {
	q := New(2, strategy.NewDropTail(2))
	require.Equal(t, Accepted, q.Accept(packet.Packet{Sequence: 1}, 0))
	require.Equal(t, Accepted, q.Accept(packet.Packet{Sequence: 2}, 0))
	require.Equal(t, DroppedCapacity, q.Accept(packet.Packet{Sequence: 3}, 0))
	require.Equal(t, 2, q.Len())
}

func TestServerQueue_ServiceReturnsInFIFOOrder(t *testing.T) {
	q := New(10, strategy.NewDropTail(10))
	q.Accept(packet.Packet{Sequence: 1}, 0)
	q.Accept(packet.Packet{Sequence: 2}, 0)

	p1, _, ok1, dropped1, strategyDrops1 := q.Service(10)
	require.True(t, ok1)
	require.False(t, dropped1)
	require.Empty(t, strategyDrops1)
	require.Equal(t, uint64(1), p1.Sequence)

	p2, _, ok2, _, _ := q.Service(20)
	require.True(t, ok2)
	require.Equal(t, uint64(2), p2.Sequence)
}

func TestServerQueue_ServiceOnEmptyReportsNotOK(t *testing.T) {
	q := New(10, strategy.NewDropTail(10))
	_, _, ok, _, _ := q.Service(0)
	require.False(t, ok)
}

func TestServerQueue_FQCoDelUsesOwnerStorage(t *testing.T) {
	q := New(100, strategy.NewFQCoDel())
	q.Accept(packet.Packet{SourceAgentID: 1, Sequence: 1, SizeBytes: 100}, 0)
	q.Accept(packet.Packet{SourceAgentID: 2, Sequence: 2, SizeBytes: 100}, 0)
	require.Equal(t, 2, q.Len())

	_, _, ok, _, strategyDrops := q.Service(0)
	require.True(t, ok)
	require.Empty(t, strategyDrops)
	require.Equal(t, 1, q.Len())
}

func TestServerQueue_FQCoDelSurfacesInternalDrops(t *testing.T) {
	q := New(100, strategy.NewFQCoDel())
	q.Accept(packet.Packet{SourceAgentID: 7, Sequence: 1, SizeBytes: 100}, 0)
	q.Accept(packet.Packet{SourceAgentID: 7, Sequence: 2, SizeBytes: 100}, 0)
	q.Accept(packet.Packet{SourceAgentID: 7, Sequence: 3, SizeBytes: 100}, 0)

	_, _, ok, _, drops := q.Service(200 * 1000 * 1000)
	require.True(t, ok)
	require.Empty(t, drops)

	pkt, _, ok, _, drops := q.Service(310 * 1000 * 1000)
	require.True(t, ok)
	require.Equal(t, uint64(3), pkt.Sequence)
	require.Len(t, drops, 1)
	require.Equal(t, uint64(2), drops[0].Sequence)
}

func TestServerQueue_TickLeavesQueueWellFormed(t *testing.T) {
	r := strategy.NewRED(10, rand.New(rand.NewSource(1)))
	q := New(10, r)
	q.Accept(packet.Packet{Sequence: 1}, 0)
	q.Service(1000)
	// Update should not panic and should leave Len() well-formed.
	q.Tick(2000)
	require.Equal(t, 0, q.Len())
}
