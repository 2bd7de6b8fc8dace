// Copyright 2015 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package transport

import (
	"sync"

	"github.com/maruel/go-fpd/fpd"
	"github.com/maruel/go-fpd/fpderr"
)

// Status is the outcome of feeding one packet into a SlotTable, per §4.E.
type Status int

// Valid Status values.
const (
	StatusProcessing Status = iota
	StatusComplete
	StatusDuplicate
	StatusCRCError
	StatusInvalid
	StatusOutOfRange
	StatusInconsistent
)

func (s Status) String() string {
	switch s {
	case StatusProcessing:
		return "Processing"
	case StatusComplete:
		return "Complete"
	case StatusDuplicate:
		return "Duplicate"
	case StatusCRCError:
		return "CrcError"
	case StatusInvalid:
		return "Invalid"
	case StatusOutOfRange:
		return "OutOfRange"
	case StatusInconsistent:
		return "Inconsistent"
	default:
		return "Unknown"
	}
}

// DefaultCapacity is the default slot table capacity K, per §3.
const DefaultCapacity = 8

// DefaultTimeoutNs is the default reassembly slot timeout (500ms), per §3.
const DefaultTimeoutNs = int64(500 * 1_000_000)

type reassemblySlot struct {
	frameID         uint32
	expected        uint16
	pixelsPerPacket int
	rows, cols      int
	bitDepth        uint8
	pix             []uint16
	bitmap          []bool
	received        int
	firstSeenNs     int64
}

// SlotTable is the host-side reassembly slot table described in §3/§4.E.
// Capacity K defaults to DefaultCapacity; on overflow the oldest slot by
// first-seen timestamp is evicted. On expiry (age > Timeout) the slot is
// removed whether complete or not.
type SlotTable struct {
	Capacity int
	Timeout  int64 // nanoseconds
	Clock    Clock
	Pool     *Pool

	mu    sync.Mutex
	slots map[uint32]*reassemblySlot

	FramesDropped uint64
}

// NewSlotTable returns a SlotTable with the given clock, using
// DefaultCapacity/DefaultTimeoutNs and a fresh Pool.
func NewSlotTable(clock Clock) *SlotTable {
	return &SlotTable{
		Capacity: DefaultCapacity,
		Timeout:  DefaultTimeoutNs,
		Clock:    clock,
		Pool:     NewPool(DefaultCapacity * 2),
		slots:    make(map[uint32]*reassemblySlot),
	}
}

// Feed decodes one frame transport packet and drives the reassembly state
// machine described in §4.E. On StatusComplete, the returned *fpd.Matrix is
// owned by the caller.
func (t *SlotTable) Feed(pkt []byte) (Status, *fpd.Matrix, error) {
	h, err := Decode(pkt)
	if err != nil {
		if err == fpderr.CRCError {
			return StatusCRCError, nil, err
		}
		return StatusInvalid, nil, err
	}
	payload := pkt[HeaderSize:]

	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.slots[h.FrameID]
	if ok && s.expected != h.TotalPackets {
		delete(t.slots, h.FrameID)
		t.Pool.Put(s.pix)
		t.FramesDropped++
		return StatusInconsistent, nil, nil
	}
	if !ok {
		if t.Capacity > 0 && len(t.slots) >= t.Capacity {
			t.evictOldestLocked()
		}
		pixelsPerPacket := len(payload) / 2
		expected := h.TotalPackets
		s = &reassemblySlot{
			frameID:         h.FrameID,
			expected:        expected,
			pixelsPerPacket: pixelsPerPacket,
			rows:            int(h.Rows),
			cols:            int(h.Cols),
			bitDepth:        h.BitDepth,
			pix:             t.Pool.Get(int(expected) * pixelsPerPacket),
			bitmap:          make([]bool, expected),
			firstSeenNs:     t.Clock(),
		}
		for i := range s.pix {
			s.pix[i] = 0
		}
		t.slots[h.FrameID] = s
	}

	if int(h.PacketSeq) >= len(s.bitmap) {
		return StatusOutOfRange, nil, nil
	}
	if s.bitmap[h.PacketSeq] {
		return StatusDuplicate, nil, nil
	}

	off := int(h.PacketSeq) * s.pixelsPerPacket
	n := len(payload) / 2
	for i := 0; i < n && off+i < len(s.pix); i++ {
		s.pix[off+i] = uint16(payload[2*i]) | uint16(payload[2*i+1])<<8
	}
	s.bitmap[h.PacketSeq] = true
	s.received++

	if s.received == int(s.expected) {
		m := t.finishLocked(s)
		return StatusComplete, m, nil
	}
	return StatusProcessing, nil, nil
}

// finishLocked builds the owned Matrix for a complete slot, returns its
// backing buffer to the pool, and removes the slot from the table. Must be
// called with t.mu held.
func (t *SlotTable) finishLocked(s *reassemblySlot) *fpd.Matrix {
	m := &fpd.Matrix{Rows: s.rows, Cols: s.cols, BitDepth: int(s.bitDepth), Pix: make([]uint16, s.rows*s.cols)}
	n := len(m.Pix)
	if n > len(s.pix) {
		n = len(s.pix)
	}
	copy(m.Pix, s.pix[:n])
	delete(t.slots, s.frameID)
	t.Pool.Put(s.pix)
	return m
}

func (t *SlotTable) evictOldestLocked() {
	var oldestID uint32
	var oldestTs int64
	first := true
	for id, s := range t.slots {
		if first || s.firstSeenNs < oldestTs {
			oldestID, oldestTs, first = id, s.firstSeenNs, false
		}
	}
	if first {
		return
	}
	s := t.slots[oldestID]
	delete(t.slots, oldestID)
	t.Pool.Put(s.pix)
	t.FramesDropped++
}

// CleanupExpiredFrames removes every slot older than Timeout, whether
// complete or not, returning the evicted frame IDs. Each eviction counts
// toward FramesDropped, per §7 "TIMEOUT ... contributes to frames_dropped".
func (t *SlotTable) CleanupExpiredFrames() []uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.Clock()
	var evicted []uint32
	for id, s := range t.slots {
		if now-s.firstSeenNs > t.Timeout {
			evicted = append(evicted, id)
			delete(t.slots, id)
			t.Pool.Put(s.pix)
			t.FramesDropped++
		}
	}
	return evicted
}

// FillMissingPackets forces completion of the slot for frameID, zeroing any
// packet region never received, and returns the resulting (possibly
// gapped) matrix. Returns fpderr.None if no such slot exists.
func (t *SlotTable) FillMissingPackets(frameID uint32) (*fpd.Matrix, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.slots[frameID]
	if !ok {
		return nil, fpderr.None
	}
	for i, got := range s.bitmap {
		if got {
			continue
		}
		off := i * s.pixelsPerPacket
		end := off + s.pixelsPerPacket
		if end > len(s.pix) {
			end = len(s.pix)
		}
		for j := off; j < end; j++ {
			s.pix[j] = 0
		}
	}
	return t.finishLocked(s), nil
}

// Len reports the number of frames currently in flight, for diagnostics.
func (t *SlotTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.slots)
}
