// Package packet defines FlockNet's wire format: a fixed-layout
// little-endian record carried over the per-agent TCP stream to its
// assigned server.
package packet

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/Servus-Altissimi/FlockNet/internal/clock"
)

// HeaderSize is the fixed size, in bytes, of the wire header preceding the
// payload: source_agent_id(4) | dest_server_id(4) | sequence(8) |
// size_bytes(4) | sent_at_nanos(8).
const HeaderSize = 4 + 4 + 8 + 4 + 8

// Packet is an immutable unit of simulated traffic. Once sent, none of its
// fields change; it is a value type and is passed by value across the
// in-process pipeline and by encoded bytes across the socket boundary.
type Packet struct {
	SourceAgentID uint32
	DestServerID  uint32
	Sequence      uint64 // monotone within SourceAgentID
	SizeBytes     uint32 // constant per run, HeaderSize <= SizeBytes
	SentAt        clock.Timestamp
}

// Encode writes the wire representation of p to w, padding the payload with
// zero bytes out to SizeBytes.
func (p Packet) Encode(w io.Writer) error {
	if p.SizeBytes < HeaderSize {
		return fmt.Errorf("packet: size_bytes %d smaller than header %d", p.SizeBytes, HeaderSize)
	}
	var buf [HeaderSize]byte
	binary.LittleEndian.PutUint32(buf[0:4], p.SourceAgentID)
	binary.LittleEndian.PutUint32(buf[4:8], p.DestServerID)
	binary.LittleEndian.PutUint64(buf[8:16], p.Sequence)
	binary.LittleEndian.PutUint32(buf[16:20], p.SizeBytes)
	binary.LittleEndian.PutUint64(buf[20:28], p.SentAt.Nanos())
	if _, err := w.Write(buf[:]); err != nil {
		return err
	}
	if pad := int(p.SizeBytes) - HeaderSize; pad > 0 {
		if _, err := w.Write(make([]byte, pad)); err != nil {
			return err
		}
	}
	return nil
}

// Decode reads one wire-format Packet from r, including its payload.
func Decode(r io.Reader) (Packet, error) {
	var buf [HeaderSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return Packet{}, err
	}
	p := Packet{
		SourceAgentID: binary.LittleEndian.Uint32(buf[0:4]),
		DestServerID:  binary.LittleEndian.Uint32(buf[4:8]),
		Sequence:      binary.LittleEndian.Uint64(buf[8:16]),
		SizeBytes:     binary.LittleEndian.Uint32(buf[16:20]),
		SentAt:        clock.FromNanos(binary.LittleEndian.Uint64(buf[20:28])),
	}
	if pad := int(p.SizeBytes) - HeaderSize; pad > 0 {
		if _, err := io.CopyN(io.Discard, r, int64(pad)); err != nil {
			return Packet{}, err
		}
	}
	return p, nil
}
