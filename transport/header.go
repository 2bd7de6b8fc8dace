// Copyright 2015 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package transport implements the frame transport protocol: fragmentation
// of a pixel matrix into UDP packets carrying a 32-byte header, and the
// host-side reassembly engine that reverses the process, per §4.D/§4.E/§6.
package transport

import (
	"encoding/binary"

	"github.com/maruel/go-fpd/fpderr"
	"github.com/maruel/go-fpd/internal/crc16"
)

// HeaderSize is the fixed frame transport header size in bytes, per §6.
const HeaderSize = 32

// Magic is the fixed frame transport magic number, little-endian on the
// wire.
const Magic uint32 = 0xD7E01234

// Version is the only wire version this codec understands.
const Version uint8 = 0x01

// Flag bits, per §3/§6.
const (
	FlagLastPacket = 1 << 0
	FlagFrameDrop  = 1 << 1
)

// Header is the decoded 32-byte frame transport header.
type Header struct {
	Version      uint8
	FrameID      uint32
	PacketSeq    uint16
	TotalPackets uint16
	TimestampNs  uint64
	Rows         uint16
	Cols         uint16
	CRC16        uint16
	BitDepth     uint8
	Flags        uint8
}

// LastPacket reports whether this is the final fragment of its frame.
func (h Header) LastPacket() bool { return h.Flags&FlagLastPacket != 0 }

// FrameDrop reports whether the sender marked this frame as dropped.
func (h Header) FrameDrop() bool { return h.Flags&FlagFrameDrop != 0 }

// Encode writes h into a fresh 32-byte header, computing CRC16 over bytes
// 0-27 last, per §9 ("implementers must ensure CRC is the last field
// written").
func Encode(h Header) []byte {
	b := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(b[0:4], Magic)
	b[4] = h.Version
	// b[5:8] reserved, left zero.
	binary.LittleEndian.PutUint32(b[8:12], h.FrameID)
	binary.LittleEndian.PutUint16(b[12:14], h.PacketSeq)
	binary.LittleEndian.PutUint16(b[14:16], h.TotalPackets)
	binary.LittleEndian.PutUint64(b[16:24], h.TimestampNs)
	binary.LittleEndian.PutUint16(b[24:26], h.Rows)
	binary.LittleEndian.PutUint16(b[26:28], h.Cols)
	b[30] = h.BitDepth
	b[31] = h.Flags
	crc := crc16.Checksum(b[0:28])
	binary.LittleEndian.PutUint16(b[28:30], crc)
	return b
}

// Decode parses a 32-byte header from the front of b. It validates magic
// (returning fpderr.Invalid, "drop silently" per §4.D) and CRC (returning
// fpderr.CRCError, "report CrcError for that packet" per §4.D) before
// returning the decoded fields.
func Decode(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, fpderr.EMsgSize
	}
	if binary.LittleEndian.Uint32(b[0:4]) != Magic {
		return Header{}, fpderr.Invalid
	}
	wantCRC := binary.LittleEndian.Uint16(b[28:30])
	gotCRC := crc16.Checksum(b[0:28])
	if gotCRC != wantCRC {
		return Header{}, fpderr.CRCError
	}
	return Header{
		Version:      b[4],
		FrameID:      binary.LittleEndian.Uint32(b[8:12]),
		PacketSeq:    binary.LittleEndian.Uint16(b[12:14]),
		TotalPackets: binary.LittleEndian.Uint16(b[14:16]),
		TimestampNs:  binary.LittleEndian.Uint64(b[16:24]),
		Rows:         binary.LittleEndian.Uint16(b[24:26]),
		Cols:         binary.LittleEndian.Uint16(b[26:28]),
		CRC16:        wantCRC,
		BitDepth:     b[30],
		Flags:        b[31],
	}, nil
}
