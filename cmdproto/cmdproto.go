// Copyright 2015 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package cmdproto implements the authenticated, replay-protected command
// protocol's wire codec described in §4.G/§6: fixed-prefix request and
// response frames, HMAC-SHA256 authenticated over everything but the MAC
// field itself.
package cmdproto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"

	"github.com/maruel/go-fpd/fpderr"
)

// RequestMagic and ResponseMagic are the fixed little-endian magic values
// distinguishing request and response frames, per §6.
const (
	RequestMagic  uint32 = 0xBEEFCAFE
	ResponseMagic uint32 = 0xCAFEBEEF
)

// CommandID identifies the operation a request frame carries.
type CommandID uint16

// Valid command IDs, per §6.
const (
	CmdSetConfig  CommandID = 0x10
	CmdStartScan  CommandID = 0x11
	CmdStopScan   CommandID = 0x12
	CmdGetStatus  CommandID = 0x13
	CmdReset      CommandID = 0x14
)

// Status is the response status code, reusing the CommandID field's wire
// position, per §6/§3.
type Status uint16

// Valid status codes.
const (
	StatusOK          Status = 0x00
	StatusInvalidCmd  Status = 0x01
	StatusAuthFailed  Status = 0x02
	StatusBusy        Status = 0x03
	StatusReplay      Status = 0x04
)

// HMACSize is the fixed MAC field size, per §6.
const HMACSize = 32

// PrefixSize is the fixed portion of a command/response frame preceding the
// payload, per §6 (magic+sequence+command_id/status+payload_len+hmac).
const PrefixSize = 4 + 4 + 2 + 2 + HMACSize

// macedPrefixSize is the portion of the frame that is hashed together with
// the payload: everything before the HMAC field (magic, sequence,
// command_id/status, payload_len), per §3 "HMAC is computed over bytes
// 0-11".
const macedPrefixSize = 4 + 4 + 2 + 2

// Frame is a decoded command or response frame.
type Frame struct {
	Magic      uint32
	Sequence   uint32
	CommandID  CommandID // command_id for requests, status for responses.
	PayloadLen uint16
	HMAC       [HMACSize]byte
	Payload    []byte
}

// Encode serializes f, recomputing PayloadLen from len(f.Payload) and the
// HMAC over the macedPrefixSize-byte prefix plus payload using key. The MAC
// is the last field computed, exactly mirroring the frame transport
// header's "CRC last" rule in §9.
func Encode(f Frame, key []byte) []byte {
	f.PayloadLen = uint16(len(f.Payload))
	out := make([]byte, PrefixSize+len(f.Payload))
	binary.LittleEndian.PutUint32(out[0:4], f.Magic)
	binary.LittleEndian.PutUint32(out[4:8], f.Sequence)
	binary.LittleEndian.PutUint16(out[8:10], uint16(f.CommandID))
	binary.LittleEndian.PutUint16(out[10:12], f.PayloadLen)
	copy(out[PrefixSize:], f.Payload)
	mac := ComputeHMAC(key, out[:macedPrefixSize], f.Payload)
	copy(out[12:12+HMACSize], mac)
	copy(f.HMAC[:], mac)
	return out
}

// Decode parses a frame from b. It does not verify the magic value or the
// HMAC; callers perform those checks explicitly per the dispatch sequence
// in §4.G (parse, then magic check, then replay check, then HMAC check).
func Decode(b []byte) (Frame, error) {
	if len(b) < PrefixSize {
		return Frame{}, fpderr.EMsgSize
	}
	f := Frame{
		Magic:      binary.LittleEndian.Uint32(b[0:4]),
		Sequence:   binary.LittleEndian.Uint32(b[4:8]),
		CommandID:  CommandID(binary.LittleEndian.Uint16(b[8:10])),
		PayloadLen: binary.LittleEndian.Uint16(b[10:12]),
	}
	copy(f.HMAC[:], b[12:12+HMACSize])
	if len(b) < PrefixSize+int(f.PayloadLen) {
		return Frame{}, fpderr.EMsgSize
	}
	f.Payload = append([]byte(nil), b[PrefixSize:PrefixSize+int(f.PayloadLen)]...)
	return f, nil
}

// ComputeHMAC computes HMAC-SHA256(key, prefix||payload).
func ComputeHMAC(key []byte, prefix, payload []byte) []byte {
	m := hmac.New(sha256.New, key)
	m.Write(prefix)
	m.Write(payload)
	return m.Sum(nil)
}

// VerifyHMAC recomputes the frame's HMAC over its macedPrefixSize prefix
// and payload and compares it against f.HMAC in constant time, per §4.A.
func VerifyHMAC(f Frame, key []byte) bool {
	prefix := make([]byte, macedPrefixSize)
	binary.LittleEndian.PutUint32(prefix[0:4], f.Magic)
	binary.LittleEndian.PutUint32(prefix[4:8], f.Sequence)
	binary.LittleEndian.PutUint16(prefix[8:10], uint16(f.CommandID))
	binary.LittleEndian.PutUint16(prefix[10:12], f.PayloadLen)
	want := ComputeHMAC(key, prefix, f.Payload)
	return hmac.Equal(want, f.HMAC[:])
}
