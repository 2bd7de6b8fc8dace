// Copyright 2015 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package cmdhost

import (
	"sync"
	"sync/atomic"

	"github.com/maruel/go-fpd/cmdproto"
	"github.com/maruel/go-fpd/scanfsm"
)

// Config is the concrete SET_CONFIG payload shape described in
// SPEC_FULL.md §5.G: payload[0] = bit depth, payload[1:3] = little-endian
// fragmenter payload size, payload[3:5] = little-endian reassembly timeout
// in units of 10ms.
type Config struct {
	BitDepth        uint8
	PayloadSize     uint16
	TimeoutUnits10ms uint16
}

// DecodeConfig parses a SET_CONFIG payload. Returns the zero Config and
// false if payload is too short, in which case the caller should still
// accept the command (§3 "SET_CONFIG ... out-of-scope semantics") but apply
// nothing.
func DecodeConfig(payload []byte) (Config, bool) {
	if len(payload) < 5 {
		return Config{}, false
	}
	return Config{
		BitDepth:         payload[0],
		PayloadSize:      uint16(payload[1]) | uint16(payload[2])<<8,
		TimeoutUnits10ms: uint16(payload[3]) | uint16(payload[4])<<8,
	}, true
}

// Clock returns nanoseconds since epoch; injected for deterministic tests.
type Clock func() int64

// RingSnapshot is the subset of the frame ring's counters the status
// snapshot needs. Satisfied by fpd.RingStats.
type RingSnapshot struct {
	FramesDropped uint64
	Overruns      uint64
}

// Dispatcher is the command protocol's server side described in §4.G. It
// owns the replay guard and the auth/replay counters; it drives the scan
// FSM and reads ring statistics but does not own them.
type Dispatcher struct {
	Key      []byte
	FSM      *scanfsm.FSM
	Clients  *ClientTable
	Clock    Clock
	RingStat func() RingSnapshot // nil-safe: treated as zero snapshot.
	OnConfig func(Config)
	OnReset  func()

	authFailures   uint64
	replayRejected uint64
	mu             sync.Mutex // guards nothing beyond documenting intent; counters are atomic.
}

// NewDispatcher returns a Dispatcher wired to fsm and key, with a fresh
// MaxClients-capacity client table.
func NewDispatcher(key []byte, fsm *scanfsm.FSM, clock Clock) *Dispatcher {
	return &Dispatcher{
		Key:     key,
		FSM:     fsm,
		Clients: NewClientTable(MaxClients),
		Clock:   clock,
	}
}

// AuthFailures returns the running count of HMAC verification failures.
func (d *Dispatcher) AuthFailures() uint64 {
	return atomic.LoadUint64(&d.authFailures)
}

// ReplayRejected returns the running count of rejected replayed sequence
// numbers.
func (d *Dispatcher) ReplayRejected() uint64 {
	return atomic.LoadUint64(&d.replayRejected)
}

// Handle runs the full §4.G pipeline over a raw request frame from source,
// returning the raw response frame bytes to send back.
func (d *Dispatcher) Handle(reqBytes []byte, source string) []byte {
	req, err := cmdproto.Decode(reqBytes)
	if err != nil {
		// Truncated frames have no sequence/command to echo; respond with a
		// zeroed, unauthenticated-looking rejection rather than silently
		// dropping, so the caller always gets a frame back.
		return d.respond(0, cmdproto.StatusInvalidCmd, nil)
	}
	if req.Magic != cmdproto.RequestMagic {
		return d.respond(req.Sequence, cmdproto.StatusInvalidCmd, nil)
	}

	now := d.Clock()
	if !d.Clients.Check(source, req.Sequence, now) {
		atomic.AddUint64(&d.replayRejected, 1)
		return d.respond(req.Sequence, cmdproto.StatusReplay, nil)
	}

	if !cmdproto.VerifyHMAC(req, d.Key) {
		atomic.AddUint64(&d.authFailures, 1)
		return d.respond(req.Sequence, cmdproto.StatusAuthFailed, nil)
	}

	status, payload := d.dispatch(req.CommandID, req.Payload)
	d.Clients.Advance(source, req.Sequence, now)
	return d.respond(req.Sequence, status, payload)
}

func (d *Dispatcher) dispatch(cmd cmdproto.CommandID, payload []byte) (cmdproto.Status, []byte) {
	switch cmd {
	case cmdproto.CmdStartScan:
		mode := scanfsm.Single
		if len(payload) > 0 {
			mode = scanfsm.Mode(payload[0])
		}
		d.FSM.StartScan(mode)
		return cmdproto.StatusOK, nil
	case cmdproto.CmdStopScan:
		d.FSM.StopScan()
		return cmdproto.StatusOK, nil
	case cmdproto.CmdGetStatus:
		return cmdproto.StatusOK, EncodeStatus(d.snapshot())
	case cmdproto.CmdSetConfig:
		if cfg, ok := DecodeConfig(payload); ok && d.OnConfig != nil {
			d.OnConfig(cfg)
		}
		return cmdproto.StatusOK, nil
	case cmdproto.CmdReset:
		if d.OnReset != nil {
			d.OnReset()
		}
		return cmdproto.StatusOK, nil
	default:
		return cmdproto.StatusInvalidCmd, nil
	}
}

func (d *Dispatcher) snapshot() StatusSnapshot {
	var rs RingSnapshot
	if d.RingStat != nil {
		rs = d.RingStat()
	}
	st := d.FSM.Stats()
	return StatusSnapshot{
		State:          d.FSM.State(),
		Mode:           d.FSM.Mode(),
		RetryCount:     uint8(d.FSM.RetryCount()),
		FramesReceived: uint32(st.FramesReceived),
		FramesSent:     uint32(st.FramesSent),
		Errors:         uint32(st.Errors),
		FramesDropped:  uint32(rs.FramesDropped),
		Overruns:       uint32(rs.Overruns),
		AuthFailures:   uint32(d.AuthFailures()),
		ReplayRejected: uint32(d.ReplayRejected()),
	}
}

func (d *Dispatcher) respond(seq uint32, status cmdproto.Status, payload []byte) []byte {
	f := cmdproto.Frame{
		Magic:     cmdproto.ResponseMagic,
		Sequence:  seq,
		CommandID: cmdproto.CommandID(status),
		Payload:   payload,
	}
	return cmdproto.Encode(f, d.Key)
}
