// Copyright 2015 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package fpd

import (
	"sync"

	"github.com/maruel/go-fpd/fpderr"
)

// SlotState is one of FREE, FILLING, READY, SENDING, per §3 "Frame slot".
type SlotState int

const (
	Free SlotState = iota
	Filling
	Ready
	Sending
)

func (s SlotState) String() string {
	switch s {
	case Free:
		return "FREE"
	case Filling:
		return "FILLING"
	case Ready:
		return "READY"
	case Sending:
		return "SENDING"
	default:
		return "UNKNOWN"
	}
}

// RingCapacity is the fixed ring size N, per §3.
const RingCapacity = 4

type slot struct {
	state   SlotState
	frameNo uint32
	valid   bool // frameNo has been assigned at least once.
	m       *Matrix
}

// RingStats is a by-value snapshot of the ring's counters, mirroring the
// teacher's Stats()-returns-a-copy idiom (lepton.go, interface.go).
type RingStats struct {
	FramesReceived uint64
	FramesSent     uint64
	FramesDropped  uint64
	Overruns       uint64
}

// Ring is the fixed-capacity, 4-slot frame buffer pool described in §4.C.
// It guarantees that slot state transitions are observed atomically by
// concurrent producers/consumers via a single mutex (the spec permits
// either lock-protected or lock-free realizations with equivalent
// observable ordering; a mutex is simplest and matches the single
// producer/single consumer model of §5).
type Ring struct {
	rows, cols, bitDepth int

	mu    sync.Mutex
	slots [RingCapacity]slot

	framesReceived uint64
	framesSent     uint64
	framesDropped  uint64
	overruns       uint64
}

// NewRing allocates a ring whose slots are sized for rows x cols frames at
// bitDepth.
func NewRing(rows, cols, bitDepth int) (*Ring, error) {
	r := &Ring{rows: rows, cols: cols, bitDepth: bitDepth}
	for i := range r.slots {
		m, err := NewMatrix(rows, cols, bitDepth)
		if err != nil {
			return nil, err
		}
		r.slots[i] = slot{state: Free, m: m}
	}
	return r, nil
}

// GetBuffer transitions one slot FREE->FILLING for frameNumber and returns
// its backing matrix. If no FREE slot exists, the oldest READY slot (lowest
// frame number; ties broken by lowest slot index, §9) is forcibly returned
// to FREE ("oldest-drop"), frames_dropped and overruns increment, and that
// slot is taken. Fails with fpderr.Busy only if every slot is FILLING or
// SENDING.
func (r *Ring) GetBuffer(frameNumber uint32) (*Matrix, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.slots {
		if r.slots[i].state == Free {
			return r.take(i, frameNumber), nil
		}
	}
	idx, ok := r.oldestReadyLocked()
	if !ok {
		return nil, fpderr.Busy
	}
	r.framesDropped++
	r.overruns++
	r.slots[idx].state = Free
	return r.take(idx, frameNumber), nil
}

func (r *Ring) take(idx int, frameNumber uint32) *Matrix {
	r.slots[idx].state = Filling
	r.slots[idx].frameNo = frameNumber
	r.slots[idx].valid = true
	return r.slots[idx].m
}

// CommitBuffer transitions the slot holding frameNumber FILLING->READY and
// increments frames_received. Fails with fpderr.InvalidState if the slot is
// not FILLING.
func (r *Ring) CommitBuffer(frameNumber uint32) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx, ok := r.findLocked(frameNumber, Filling)
	if !ok {
		return fpderr.InvalidState
	}
	r.slots[idx].state = Ready
	r.framesReceived++
	return nil
}

// GetReadyBuffer picks the oldest READY slot (lowest frame number) and
// transitions it READY->SENDING. Fails with fpderr.None if no READY slot
// exists.
func (r *Ring) GetReadyBuffer() (*Matrix, uint32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx, ok := r.oldestReadyLocked()
	if !ok {
		return nil, 0, fpderr.None
	}
	r.slots[idx].state = Sending
	return r.slots[idx].m, r.slots[idx].frameNo, nil
}

// ReleaseBuffer transitions the slot holding frameNumber SENDING->FREE and
// increments frames_sent. Fails with fpderr.InvalidState if not SENDING.
func (r *Ring) ReleaseBuffer(frameNumber uint32) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx, ok := r.findLocked(frameNumber, Sending)
	if !ok {
		return fpderr.InvalidState
	}
	r.slots[idx].state = Free
	r.framesSent++
	return nil
}

// Snapshot returns a consistent, by-value copy of the ring's counters.
func (r *Ring) Snapshot() RingStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return RingStats{
		FramesReceived: r.framesReceived,
		FramesSent:     r.framesSent,
		FramesDropped:  r.framesDropped,
		Overruns:       r.overruns,
	}
}

// SlotStates returns the current state of each slot, for diagnostics/tests.
func (r *Ring) SlotStates() [RingCapacity]SlotState {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out [RingCapacity]SlotState
	for i := range r.slots {
		out[i] = r.slots[i].state
	}
	return out
}

func (r *Ring) oldestReadyLocked() (int, bool) {
	best := -1
	for i := range r.slots {
		if r.slots[i].state != Ready {
			continue
		}
		if best == -1 || r.slots[i].frameNo < r.slots[best].frameNo {
			best = i
		}
	}
	return best, best != -1
}

func (r *Ring) findLocked(frameNumber uint32, want SlotState) (int, bool) {
	for i := range r.slots {
		if r.slots[i].state == want && r.slots[i].valid && r.slots[i].frameNo == frameNumber {
			return i, true
		}
	}
	return -1, false
}
