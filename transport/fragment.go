// Copyright 2015 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package transport

import (
	"fmt"

	"github.com/maruel/go-fpd/fpd"
)

// DefaultPayloadSize is the default per-packet pixel payload size in bytes,
// per §4.D. Fragmenter.PayloadSize overrides it; a non-positive value falls
// back to this default, and larger values are not rejected.
const DefaultPayloadSize = 8192

// Clock returns the current wall-clock time as nanoseconds since epoch. The
// fragmenter takes one as a dependency (rather than calling time.Now()
// directly) so tests are deterministic, mirroring how the teacher's Dev
// takes an spi.Conn instead of opening a device file itself.
type Clock func() int64

// Fragmenter splits pixel matrices into frame transport packets. The frame
// number it stamps advances monotonically across successful calls to
// Fragment and wraps from 0xFFFFFFFF back to 0 (§4.D "wraparound ... is
// acceptable but implementations must document the chosen policy": this one
// wraps to zero rather than halting, since frame numbers here are a
// transport sequencing aid, not a uniqueness guarantee across a restart).
type Fragmenter struct {
	PayloadSize int
	Clock       Clock

	nextFrame uint32
}

// NewFragmenter returns a Fragmenter using DefaultPayloadSize and clock.
func NewFragmenter(clock Clock) *Fragmenter {
	return &Fragmenter{PayloadSize: DefaultPayloadSize, Clock: clock}
}

// Fragment splits m into frame transport packets under the next monotonic
// frame number, returning the assigned frame number and the packets.
func (f *Fragmenter) Fragment(m *fpd.Matrix) (uint32, [][]byte, error) {
	frameID := f.nextFrame
	pkts, err := f.FragmentAs(m, frameID)
	if err != nil {
		return 0, nil, err
	}
	f.nextFrame++ // wraps naturally: uint32 overflow goes to 0.
	return frameID, pkts, nil
}

// FragmentAs splits m into frame transport packets under an explicit frame
// ID, without touching the Fragmenter's internal counter. Used by the
// orchestrator, which owns frame numbering via the ring instead.
func (f *Fragmenter) FragmentAs(m *fpd.Matrix, frameID uint32) ([][]byte, error) {
	payloadSize := f.PayloadSize
	if payloadSize <= 0 {
		payloadSize = DefaultPayloadSize
	}
	bytes := m.Bytes()
	totalBytes := len(bytes)
	totalPackets := (totalBytes + payloadSize - 1) / payloadSize
	if totalPackets == 0 {
		totalPackets = 1
	}
	if totalPackets > 0xFFFF {
		return nil, fmt.Errorf("transport: frame too large for %d byte packets (%d packets)", payloadSize, totalPackets)
	}
	out := make([][]byte, 0, totalPackets)
	for i := 0; i < totalPackets; i++ {
		start := i * payloadSize
		end := start + payloadSize
		if end > totalBytes {
			end = totalBytes
		}
		var flags uint8
		if i == totalPackets-1 {
			flags |= FlagLastPacket
		}
		h := Header{
			Version:      Version,
			FrameID:      frameID,
			PacketSeq:    uint16(i),
			TotalPackets: uint16(totalPackets),
			TimestampNs:  uint64(f.Clock()),
			Rows:         uint16(m.Rows),
			Cols:         uint16(m.Cols),
			BitDepth:     uint8(m.BitDepth),
			Flags:        flags,
		}
		pkt := Encode(h)
		pkt = append(pkt, bytes[start:end]...)
		out = append(out, pkt)
	}
	return out, nil
}
