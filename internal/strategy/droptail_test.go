package strategy

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Servus-Altissimi/FlockNet/internal/packet"
)

func TestDropTail_AcceptsBelowCapacity(t *testing.T) {
	d := NewDropTail(4)
	require.Equal(t, Accept, d.OnEnqueue(packet.Packet{}, 0, 0))
	require.Equal(t, Accept, d.OnEnqueue(packet.Packet{}, 3, 0))
}

func TestDropTail_DropsAtCapacity(t *testing.T) {
	d := NewDropTail(4)
	require.Equal(t, Drop, d.OnEnqueue(packet.Packet{}, 4, 0))
	require.Equal(t, Drop, d.OnEnqueue(packet.Packet{}, 5, 0))
}

func TestDropTail_CloneIsIndependent(t *testing.T) {
	d := NewDropTail(4)
	clone := d.Clone()
	require.Equal(t, d.Name(), clone.Name())
	require.Equal(t, Drop, clone.OnEnqueue(packet.Packet{}, 4, 0))
}
