// Copyright 2015 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package scanfsm implements the scan lifecycle state machine described in
// §4.F: a 7-state, 8-event enumerated tagged-state FSM, with state,
// transition and callback as pure data rather than dynamic dispatch,
// replacing any state-object pattern per §9.
package scanfsm

import "sync"

// State is one of the FSM's 7 states.
type State int

// Valid states.
const (
	Idle State = iota
	Configure
	Arm
	Scanning
	Streaming
	Complete
	Error
)

func (s State) String() string {
	switch s {
	case Idle:
		return "IDLE"
	case Configure:
		return "CONFIGURE"
	case Arm:
		return "ARM"
	case Scanning:
		return "SCANNING"
	case Streaming:
		return "STREAMING"
	case Complete:
		return "COMPLETE"
	case Error:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Mode governs post-STREAMING behavior, per §3.
type Mode int

// Valid modes.
const (
	Single Mode = iota
	Continuous
	Calibration
)

func (m Mode) String() string {
	switch m {
	case Single:
		return "SINGLE"
	case Continuous:
		return "CONTINUOUS"
	case Calibration:
		return "CALIBRATION"
	default:
		return "UNKNOWN"
	}
}

// Event is one of the FSM's 8 input events.
type Event int

// Valid events.
const (
	EventStartScan Event = iota
	EventConfigDone
	EventArmDone
	EventFrameReady
	EventComplete
	EventStopScan
	EventError
	EventErrorCleared
)

// MaxRetries bounds the retry counter, per §3 ("Retry counter ∈ [0, 3]").
const MaxRetries = 3

// Callbacks is the host-provided callback set driven by FSM edges, per
// §4.F "Callback contract". In a real deployment these issue SPI writes to
// the CONTROL register; the FSM itself never touches SPI.
type Callbacks struct {
	OnConfigure func(mode Mode)
	OnArm       func()
	OnStop      func()
	OnError     func(previous State, reason error)
}

// Stats mirrors the teacher's plain counters-struct idiom (Stats in
// lepton/interface.go): a snapshot is a by-value copy.
type Stats struct {
	FramesReceived uint64
	FramesSent     uint64
	Errors         uint64
	Retries        uint64
}

// FSM is the scan lifecycle state machine. The zero value is not usable;
// construct with New. All exported methods are safe for concurrent use.
type FSM struct {
	cb Callbacks

	mu         sync.Mutex
	state      State
	mode       Mode
	retryCount int
	stats      Stats
}

// New returns an FSM in IDLE with the given callbacks. A nil field in cb is
// filled with a no-op, except that nil OnConfigure/OnArm auto-generate the
// corresponding CONFIG_DONE/ARM_DONE event so the FSM can be exercised
// standalone, per §4.F "If no callback is wired...".
func New(cb Callbacks) *FSM {
	return &FSM{cb: cb, state: Idle}
}

// State returns the current state.
func (f *FSM) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Mode returns the current mode.
func (f *FSM) Mode() Mode {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mode
}

// RetryCount returns the current retry counter.
func (f *FSM) RetryCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.retryCount
}

// Stats returns a consistent snapshot of the FSM's counters.
func (f *FSM) Stats() Stats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stats
}

// StartScan fires EventStartScan(mode). Valid from IDLE and COMPLETE.
func (f *FSM) StartScan(mode Mode) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch f.state {
	case Idle:
		f.mode = mode
		f.state = Configure
		f.fireConfigureLocked(mode)
	case Complete:
		f.mode = mode
		f.state = Configure
		f.fireConfigureLocked(mode)
	default:
		// Invalid transitions are silently ignored, per §4.F.
	}
}

func (f *FSM) fireConfigureLocked(mode Mode) {
	if f.cb.OnConfigure != nil {
		f.cb.OnConfigure(mode)
	} else {
		// Auto-generate CONFIG_DONE so the FSM is exercisable standalone.
		f.configDoneLocked()
	}
}

// ConfigDone fires CONFIG_DONE. Valid from CONFIGURE.
func (f *FSM) ConfigDone() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != Configure {
		return
	}
	f.configDoneLocked()
}

func (f *FSM) configDoneLocked() {
	f.state = Arm
	if f.cb.OnArm != nil {
		f.cb.OnArm()
	} else {
		f.armDoneLocked()
	}
}

// ArmDone fires ARM_DONE. Valid from ARM.
func (f *FSM) ArmDone() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != Arm {
		return
	}
	f.armDoneLocked()
}

func (f *FSM) armDoneLocked() {
	f.state = Scanning
}

// FrameReady fires FRAME_READY. Valid from SCANNING, transitions to
// STREAMING and increments frames_received.
func (f *FSM) FrameReady() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != Scanning {
		return
	}
	f.state = Streaming
	f.stats.FramesReceived++
}

// FrameComplete fires COMPLETE. Valid from STREAMING. Increments
// frames_sent; if mode==SINGLE, transitions STREAMING->COMPLETE->IDLE (the
// two-step kept so observers can see COMPLETE, per §4.F); if mode is
// CONTINUOUS or CALIBRATION, returns to SCANNING.
func (f *FSM) FrameComplete() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != Streaming {
		return
	}
	f.stats.FramesSent++
	switch f.mode {
	case Single:
		f.state = Complete
	case Continuous, Calibration:
		f.state = Scanning
	}
}

// AdvanceFromComplete moves a SINGLE-mode scan from COMPLETE to IDLE. This
// is the second half of the two-step COMPLETE transition described above;
// the orchestrator calls it once it has observed COMPLETE.
func (f *FSM) AdvanceFromComplete() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == Complete {
		f.state = Idle
	}
}

// StopScan fires STOP_SCAN. Valid from CONFIGURE, ARM, SCANNING, STREAMING,
// COMPLETE and ERROR; all transition to IDLE and invoke OnStop.
func (f *FSM) StopScan() {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch f.state {
	case Configure, Arm, Scanning, Streaming, Complete, Error:
		f.state = Idle
		if f.cb.OnStop != nil {
			f.cb.OnStop()
		}
	}
}

// RaiseError fires ERROR from any state except ERROR itself, transitioning
// to ERROR and invoking OnError with the previous state and reason.
func (f *FSM) RaiseError(reason error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == Error {
		return
	}
	prev := f.state
	f.state = Error
	f.stats.Errors++
	if f.cb.OnError != nil {
		f.cb.OnError(prev, reason)
	}
}

// ErrorCleared fires ERROR_CLEARED. Valid only from ERROR: if retry_count <
// MaxRetries, retry_count advances and the FSM returns to IDLE; otherwise it
// stays in ERROR with no further recovery possible except STOP_SCAN.
func (f *FSM) ErrorCleared() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != Error {
		return
	}
	if f.retryCount < MaxRetries {
		f.retryCount++
		f.stats.Retries++
		f.state = Idle
	}
	// Else: stays in ERROR, silently.
}
