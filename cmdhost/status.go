// Copyright 2015 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package cmdhost

import (
	"encoding/binary"

	"github.com/maruel/go-fpd/fpderr"
	"github.com/maruel/go-fpd/scanfsm"
)

// StatusSize is the fixed GET_STATUS response payload size: it is chosen to
// fit in a single command/response frame without fragmentation (the command
// protocol, unlike the frame transport protocol, never fragments).
const StatusSize = 32

// StatusSnapshot is the concrete GET_STATUS payload shape described in
// SPEC_FULL.md §5.G. A by-value copy, mirroring the teacher's Stats()
// accessor idiom.
type StatusSnapshot struct {
	State          scanfsm.State
	Mode           scanfsm.Mode
	RetryCount     uint8
	FramesReceived uint32
	FramesSent     uint32
	Errors         uint32
	FramesDropped  uint32
	Overruns       uint32
	AuthFailures   uint32
	ReplayRejected uint32
}

// EncodeStatus serializes s into a fixed StatusSize-byte little-endian
// payload.
func EncodeStatus(s StatusSnapshot) []byte {
	b := make([]byte, StatusSize)
	b[0] = byte(s.State)
	b[1] = byte(s.Mode)
	b[2] = s.RetryCount
	// b[3] reserved.
	binary.LittleEndian.PutUint32(b[4:8], s.FramesReceived)
	binary.LittleEndian.PutUint32(b[8:12], s.FramesSent)
	binary.LittleEndian.PutUint32(b[12:16], s.Errors)
	binary.LittleEndian.PutUint32(b[16:20], s.FramesDropped)
	binary.LittleEndian.PutUint32(b[20:24], s.Overruns)
	binary.LittleEndian.PutUint32(b[24:28], s.AuthFailures)
	binary.LittleEndian.PutUint32(b[28:32], s.ReplayRejected)
	return b
}

// DecodeStatus parses a StatusSize-byte payload produced by EncodeStatus.
func DecodeStatus(b []byte) (StatusSnapshot, error) {
	if len(b) < StatusSize {
		return StatusSnapshot{}, fpderr.EMsgSize
	}
	return StatusSnapshot{
		State:          scanfsm.State(b[0]),
		Mode:           scanfsm.Mode(b[1]),
		RetryCount:     b[2],
		FramesReceived: binary.LittleEndian.Uint32(b[4:8]),
		FramesSent:     binary.LittleEndian.Uint32(b[8:12]),
		Errors:         binary.LittleEndian.Uint32(b[12:16]),
		FramesDropped:  binary.LittleEndian.Uint32(b[16:20]),
		Overruns:       binary.LittleEndian.Uint32(b[20:24]),
		AuthFailures:   binary.LittleEndian.Uint32(b[24:28]),
		ReplayRejected: binary.LittleEndian.Uint32(b[28:32]),
	}, nil
}
