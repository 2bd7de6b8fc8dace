// Copyright 2015 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package cmdhost

import (
	"testing"

	"github.com/maruel/go-fpd/cmdproto"
	"github.com/maruel/go-fpd/scanfsm"
)

var testKey = []byte("detector-shared-secret")

func fakeClock() int64 { return 1000 }

func newDispatcher() *Dispatcher {
	fsm := scanfsm.New(scanfsm.Callbacks{})
	return NewDispatcher(testKey, fsm, fakeClock)
}

func decodeResponse(t *testing.T, b []byte) cmdproto.Frame {
	t.Helper()
	f, err := cmdproto.Decode(b)
	if err != nil {
		t.Fatal(err)
	}
	return f
}

func TestHandleStartScanDispatchesToFSM(t *testing.T) {
	d := newDispatcher()
	req := cmdproto.Frame{
		Magic:     cmdproto.RequestMagic,
		Sequence:  1,
		CommandID: cmdproto.CmdStartScan,
		Payload:   []byte{byte(scanfsm.Single)},
	}
	resp := decodeResponse(t, d.Handle(cmdproto.Encode(req, testKey), "1.2.3.4:1"))
	if cmdproto.Status(resp.CommandID) != cmdproto.StatusOK {
		t.Fatalf("status = %v, want OK", resp.CommandID)
	}
	if d.FSM.State() != scanfsm.Scanning {
		t.Errorf("FSM.State() = %v, want SCANNING", d.FSM.State())
	}
}

func TestHandleReplaySecondIdenticalSequenceRejected(t *testing.T) {
	d := newDispatcher()
	req := cmdproto.Frame{Magic: cmdproto.RequestMagic, Sequence: 5, CommandID: cmdproto.CmdGetStatus}
	raw := cmdproto.Encode(req, testKey)

	first := decodeResponse(t, d.Handle(raw, "1.2.3.4:1"))
	if cmdproto.Status(first.CommandID) != cmdproto.StatusOK {
		t.Fatalf("first call status = %v, want OK", first.CommandID)
	}

	second := decodeResponse(t, d.Handle(raw, "1.2.3.4:1"))
	if cmdproto.Status(second.CommandID) != cmdproto.StatusReplay {
		t.Fatalf("replayed call status = %v, want Replay", second.CommandID)
	}
	if d.ReplayRejected() != 1 {
		t.Errorf("ReplayRejected() = %d, want 1", d.ReplayRejected())
	}
}

func TestHandleHMACTamperOnFirstContactRejectedAndFSMUntouched(t *testing.T) {
	d := newDispatcher()
	req := cmdproto.Frame{
		Magic:     cmdproto.RequestMagic,
		Sequence:  1,
		CommandID: cmdproto.CmdStartScan,
		Payload:   []byte{byte(scanfsm.Single)},
	}
	raw := cmdproto.Encode(req, testKey)
	raw[len(raw)-1] ^= 0xFF // tamper a payload byte, invalidating the HMAC.

	resp := decodeResponse(t, d.Handle(raw, "1.2.3.4:1"))
	if cmdproto.Status(resp.CommandID) != cmdproto.StatusAuthFailed {
		t.Fatalf("status = %v, want AuthFailed", resp.CommandID)
	}
	if d.FSM.State() != scanfsm.Idle {
		t.Errorf("FSM.State() = %v, want IDLE (dispatch must not run on auth failure)", d.FSM.State())
	}
	if d.AuthFailures() != 1 {
		t.Errorf("AuthFailures() = %d, want 1", d.AuthFailures())
	}
	// Since dispatch never ran, the sequence was never advanced: a
	// correctly-signed retry of the same sequence must still succeed.
	retry := decodeResponse(t, d.Handle(cmdproto.Encode(req, testKey), "1.2.3.4:1"))
	if cmdproto.Status(retry.CommandID) != cmdproto.StatusOK {
		t.Fatalf("retry status = %v, want OK", retry.CommandID)
	}
}

func TestHandleUnknownCommandRespondsInvalid(t *testing.T) {
	d := newDispatcher()
	req := cmdproto.Frame{Magic: cmdproto.RequestMagic, Sequence: 1, CommandID: cmdproto.CommandID(0xFF)}
	resp := decodeResponse(t, d.Handle(cmdproto.Encode(req, testKey), "1.2.3.4:1"))
	if cmdproto.Status(resp.CommandID) != cmdproto.StatusInvalidCmd {
		t.Fatalf("status = %v, want InvalidCmd", resp.CommandID)
	}
}

func TestHandleInvalidCommandStillAdvancesSequence(t *testing.T) {
	d := newDispatcher()
	req := cmdproto.Frame{Magic: cmdproto.RequestMagic, Sequence: 1, CommandID: cmdproto.CommandID(0xFF)}
	d.Handle(cmdproto.Encode(req, testKey), "1.2.3.4:1")
	// The invalid-command dispatch still ran (HMAC/replay checks passed), so
	// the sequence must have advanced: replaying it is now rejected.
	resp := decodeResponse(t, d.Handle(cmdproto.Encode(req, testKey), "1.2.3.4:1"))
	if cmdproto.Status(resp.CommandID) != cmdproto.StatusReplay {
		t.Fatalf("status = %v, want Replay", resp.CommandID)
	}
}

func TestHandleStopScanDispatchesToFSM(t *testing.T) {
	d := newDispatcher()
	start := cmdproto.Frame{Magic: cmdproto.RequestMagic, Sequence: 1, CommandID: cmdproto.CmdStartScan, Payload: []byte{byte(scanfsm.Continuous)}}
	d.Handle(cmdproto.Encode(start, testKey), "src")
	stop := cmdproto.Frame{Magic: cmdproto.RequestMagic, Sequence: 2, CommandID: cmdproto.CmdStopScan}
	d.Handle(cmdproto.Encode(stop, testKey), "src")
	if d.FSM.State() != scanfsm.Idle {
		t.Errorf("FSM.State() = %v, want IDLE", d.FSM.State())
	}
}

func TestHandleGetStatusReturnsSnapshot(t *testing.T) {
	d := newDispatcher()
	req := cmdproto.Frame{Magic: cmdproto.RequestMagic, Sequence: 1, CommandID: cmdproto.CmdGetStatus}
	resp := decodeResponse(t, d.Handle(cmdproto.Encode(req, testKey), "src"))
	snap, err := DecodeStatus(resp.Payload)
	if err != nil {
		t.Fatal(err)
	}
	if snap.State != scanfsm.Idle {
		t.Errorf("snapshot.State = %v, want IDLE", snap.State)
	}
}

func TestHandleSetConfigInvokesCallback(t *testing.T) {
	d := newDispatcher()
	var got Config
	d.OnConfig = func(c Config) { got = c }
	req := cmdproto.Frame{
		Magic:     cmdproto.RequestMagic,
		Sequence:  1,
		CommandID: cmdproto.CmdSetConfig,
		Payload:   []byte{16, 0x00, 0x20, 50, 0},
	}
	resp := decodeResponse(t, d.Handle(cmdproto.Encode(req, testKey), "src"))
	if cmdproto.Status(resp.CommandID) != cmdproto.StatusOK {
		t.Fatalf("status = %v, want OK", resp.CommandID)
	}
	if got.BitDepth != 16 || got.PayloadSize != 0x2000 || got.TimeoutUnits10ms != 50 {
		t.Errorf("OnConfig received %+v", got)
	}
}

func TestHandleResetInvokesCallback(t *testing.T) {
	d := newDispatcher()
	called := false
	d.OnReset = func() { called = true }
	req := cmdproto.Frame{Magic: cmdproto.RequestMagic, Sequence: 1, CommandID: cmdproto.CmdReset}
	d.Handle(cmdproto.Encode(req, testKey), "src")
	if !called {
		t.Error("OnReset not invoked")
	}
}

func TestHandleMalformedFrameRespondsInvalidCmd(t *testing.T) {
	d := newDispatcher()
	resp := decodeResponse(t, d.Handle([]byte{0x01, 0x02}, "src"))
	if cmdproto.Status(resp.CommandID) != cmdproto.StatusInvalidCmd {
		t.Fatalf("status = %v, want InvalidCmd", resp.CommandID)
	}
}
