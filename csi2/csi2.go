// Copyright 2015 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package csi2 implements encoding and decoding of MIPI CSI-2 v1.3 short and
// long packets: FrameStart, FrameEnd, LineStart, LineEnd and LineData, with
// header ECC and payload CRC-16/CCITT as described by the detector's wire
// spec.
package csi2

import (
	"errors"

	"github.com/maruel/go-fpd/internal/crc16"
)

// DataType identifies the short-packet data identifier or the long-packet
// payload format.
type DataType uint8

// Data types and data identifiers recognized on the wire.
const (
	DTFrameStart DataType = 0x00
	DTFrameEnd   DataType = 0x01
	DTLineStart  DataType = 0x02
	DTLineEnd    DataType = 0x03
	DTRaw14      DataType = 0x2D
	DTRaw16      DataType = 0x2E
)

// ErrECC is returned, non-fatally, when a short packet's header ECC does not
// validate.
var ErrECC = errors.New("csi2: ecc mismatch")

// ErrCRC is returned when a long packet's payload CRC does not validate.
var ErrCRC = errors.New("csi2: crc mismatch")

// ErrShort is returned when a byte slice is too small to hold the packet
// kind being decoded.
var ErrShort = errors.New("csi2: packet truncated")

// ErrVC is returned for a virtual channel outside [0,3].
var ErrVC = errors.New("csi2: virtual channel out of range")

// Kind distinguishes the five packet variants this package understands.
type Kind int

const (
	KindFrameStart Kind = iota
	KindFrameEnd
	KindLineStart
	KindLineEnd
	KindLineData
)

// Packet is a decoded CSI-2 packet, short or long.
type Packet struct {
	Kind          Kind
	VirtualChannel uint8
	DataType      DataType
	// WordCount carries the frame number (FS/FE) or line number (LS/LE) for
	// short packets. Unused for LineData.
	WordCount uint16
	// Payload carries the pixel bytes for LineData, little-endian per pixel,
	// per §4.B/§6. Unused for short packets.
	Payload []byte
	// ECCError is set when a short packet's ECC did not validate; the
	// decoded fields are still returned so the caller may apply its own
	// self-consistency policy (§4.B "Failure semantics").
	ECCError bool
}

const shortPacketSize = 4 // header(1) + data-type... see header encoding below.

// header24 packs the 24-bit CSI-2 short-packet header: byte0 = (vc<<6)|dt,
// byte1-2 = word count as a big-endian word (high byte first, per big16,
// matching the teacher's VoSPI word convention). The ECC byte that follows
// on the wire is computed separately.
func header24(vc uint8, dt DataType, wc uint16) [3]byte {
	var h [3]byte
	h[0] = (vc << 6) | byte(dt)
	big16.PutUint16(h[1:3], wc)
	return h
}

// GenerateFrameStart produces a 4-byte FrameStart short packet for frame
// number frameNum.
func GenerateFrameStart(vc uint8, frameNum uint16) ([]byte, error) {
	return genShort(vc, DTFrameStart, frameNum)
}

// GenerateFrameEnd produces a 4-byte FrameEnd short packet for frame number
// frameNum.
func GenerateFrameEnd(vc uint8, frameNum uint16) ([]byte, error) {
	return genShort(vc, DTFrameEnd, frameNum)
}

// GenerateLineStart produces a 4-byte LineStart short packet for line
// number line.
func GenerateLineStart(vc uint8, line uint16) ([]byte, error) {
	return genShort(vc, DTLineStart, line)
}

// GenerateLineEnd produces a 4-byte LineEnd short packet for line number
// line.
func GenerateLineEnd(vc uint8, line uint16) ([]byte, error) {
	return genShort(vc, DTLineEnd, line)
}

func genShort(vc uint8, dt DataType, wc uint16) ([]byte, error) {
	if vc > 3 {
		return nil, ErrVC
	}
	h := header24(vc, dt, wc)
	ecc := hammingECC6(h)
	return []byte{h[0], h[1], h[2], ecc}, nil
}

// GenerateLineData produces a long packet: 4-byte header (WC = 2*len(pixels)
// bytes), the little-endian pixel payload, then a 2-byte CRC-16/CCITT over
// the payload. dt is the long-packet data type written into the header
// (DTRaw16 or DTRaw14). No line number is taken or encoded: CSI-2 long
// packets don't carry a line number field, the line is implied by packet
// ordering between LineStart/LineEnd.
func GenerateLineData(vc uint8, pixels []uint16, dt DataType) ([]byte, error) {
	if vc > 3 {
		return nil, ErrVC
	}
	payload := make([]byte, 2*len(pixels))
	for i, px := range pixels {
		payload[2*i] = byte(px)
		payload[2*i+1] = byte(px >> 8)
	}
	wc := uint16(len(payload))
	h := header24(vc, dt, wc)
	ecc := hammingECC6(h)
	crc := crc16.Checksum(payload)
	out := make([]byte, 0, 4+len(payload)+2)
	out = append(out, h[0], h[1], h[2], ecc)
	out = append(out, payload...)
	out = append(out, byte(crc), byte(crc>>8))
	return out, nil
}

// DecodeShort decodes a 4-byte short packet (FS/FE/LS/LE). ECC mismatch is
// reported via Packet.ECCError rather than an error return, per §4.B
// "Failure semantics" (the caller may still trust a self-consistent word
// count).
func DecodeShort(b []byte) (Packet, error) {
	if len(b) < shortPacketSize {
		return Packet{}, ErrShort
	}
	var h [3]byte
	copy(h[:], b[:3])
	ecc := b[3]
	vc := h[0] >> 6
	dt := DataType(h[0] & 0x3F)
	wc := big16.Uint16(h[1:3])
	p := Packet{
		VirtualChannel: vc,
		DataType:       dt,
		WordCount:      wc,
		ECCError:       hammingECC6(h) != ecc,
	}
	switch dt {
	case DTFrameStart:
		p.Kind = KindFrameStart
	case DTFrameEnd:
		p.Kind = KindFrameEnd
	case DTLineStart:
		p.Kind = KindLineStart
	case DTLineEnd:
		p.Kind = KindLineEnd
	default:
		p.Kind = KindFrameStart // unknown short DT; caller inspects DataType.
	}
	return p, nil
}

// IsShortDataType reports whether dt denotes a short packet (FS/FE/LS/LE) as
// opposed to a long packet's payload format.
func IsShortDataType(dt DataType) bool {
	switch dt {
	case DTFrameStart, DTFrameEnd, DTLineStart, DTLineEnd:
		return true
	default:
		return false
	}
}

// DecodeNext decodes the packet sitting at the front of b and reports how
// many bytes it consumed, so a caller fed a raw byte stream (rather than
// pre-split packets) can decode back-to-back without knowing packet
// boundaries ahead of time. It returns consumed == 0 and ErrShort when b
// does not yet hold a complete packet; the caller should buffer more bytes
// and retry rather than treat this as fatal.
func DecodeNext(b []byte) (Packet, int, error) {
	if len(b) < 3 {
		return Packet{}, 0, ErrShort
	}
	dt := DataType(b[0] & 0x3F)
	if IsShortDataType(dt) {
		if len(b) < shortPacketSize {
			return Packet{}, 0, ErrShort
		}
		p, err := DecodeShort(b[:shortPacketSize])
		return p, shortPacketSize, err
	}
	wc := big16.Uint16(b[1:3])
	total := shortPacketSize + int(wc) + 2
	if len(b) < total {
		return Packet{}, 0, ErrShort
	}
	p, err := DecodeLong(b[:total])
	return p, total, err
}

// DecodeLong decodes a long packet (LineData): 4-byte header, a payload
// whose length is carried by the header's word count, and a trailing 2-byte
// CRC. Returns ErrCRC (and Packet{} dropped, per §4.B "Long packet with bad
// CRC is dropped") on mismatch.
func DecodeLong(b []byte) (Packet, error) {
	if len(b) < shortPacketSize+2 {
		return Packet{}, ErrShort
	}
	var h [3]byte
	copy(h[:], b[:3])
	vc := h[0] >> 6
	dt := DataType(h[0] & 0x3F)
	wc := big16.Uint16(h[1:3])
	if len(b) < shortPacketSize+int(wc)+2 {
		return Packet{}, ErrShort
	}
	payload := b[shortPacketSize : shortPacketSize+int(wc)]
	crcOff := shortPacketSize + int(wc)
	wantCRC := uint16(b[crcOff]) | uint16(b[crcOff+1])<<8
	gotCRC := crc16.Checksum(payload)
	if gotCRC != wantCRC {
		return Packet{}, ErrCRC
	}
	out := make([]byte, len(payload))
	copy(out, payload)
	return Packet{Kind: KindLineData, VirtualChannel: vc, DataType: dt, Payload: out}, nil
}
