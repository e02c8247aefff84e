package sim

import (
	"log"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Servus-Altissimi/FlockNet/internal/clock"
	"github.com/Servus-Altissimi/FlockNet/internal/metrics"
	"github.com/Servus-Altissimi/FlockNet/internal/packet"
	"github.com/Servus-Altissimi/FlockNet/internal/strategy"
)

func TestNewServer_BindsAndReportsBoundAddr(t *testing.T) {
	coll := metrics.NewCollector(100, 1)
	src := clock.NewSource()
	logger := log.New(newDiscard(), "", 0)

	s, err := NewServer(0, "127.0.0.1:0", 10, 100, strategy.NewDropTail(10), coll, src, logger)
	require.NoError(t, err)
	require.NotEmpty(t, s.Addr)
	s.Stop()
}

func TestNewServer_BindFailureOnOccupiedPort(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	coll := metrics.NewCollector(100, 1)
	src := clock.NewSource()
	logger := log.New(newDiscard(), "", 0)

	_, err = NewServer(0, ln.Addr().String(), 10, 100, strategy.NewDropTail(10), coll, src, logger)
	require.Error(t, err)
}

func TestServer_DeliversAcceptedPacket(t *testing.T) {
	coll := metrics.NewCollector(1000, 1)
	tick := make(chan time.Time)
	go coll.Run(tick)

	src := clock.NewSource()
	logger := log.New(newDiscard(), "", 0)

	s, err := NewServer(0, "127.0.0.1:0", 10, 1000, strategy.NewDropTail(10), coll, src, logger)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		s.Run()
		close(done)
	}()

	conn, err := net.Dial("tcp", s.Addr)
	require.NoError(t, err)

	pkt := packet.Packet{SourceAgentID: 1, DestServerID: 0, Sequence: 1, SizeBytes: 64, SentAt: src.Now()}
	require.NoError(t, pkt.Encode(conn))

	time.Sleep(50 * time.Millisecond)

	s.Stop()
	conn.Close()
	<-done

	close(coll.Events())
	<-coll.Done()
	require.Equal(t, uint64(1), coll.Accumulator().Delivered)
}
