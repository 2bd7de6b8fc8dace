// Copyright 2015 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package csi2

import "github.com/maruel/go-fpd/fpd"

// GenerateFullFrame emits FS, then for each row optionally LS + LineData +
// LE, finally FE, matching §4.B. includeLineSync is optional for senders
// and receivers; when false, rows are carried as back-to-back LineData
// packets with no LS/LE framing.
func GenerateFullFrame(m *fpd.Matrix, vc uint8, frameNum uint16, dt DataType, includeLineSync bool) ([][]byte, error) {
	fs, err := GenerateFrameStart(vc, frameNum)
	if err != nil {
		return nil, err
	}
	out := [][]byte{fs}
	for row := 0; row < m.Rows; row++ {
		if includeLineSync {
			ls, err := GenerateLineStart(vc, uint16(row))
			if err != nil {
				return nil, err
			}
			out = append(out, ls)
		}
		ld, err := GenerateLineData(vc, m.Row(row), dt)
		if err != nil {
			return nil, err
		}
		out = append(out, ld)
		if includeLineSync {
			le, err := GenerateLineEnd(vc, uint16(row))
			if err != nil {
				return nil, err
			}
			out = append(out, le)
		}
	}
	fe, err := GenerateFrameEnd(vc, frameNum)
	if err != nil {
		return nil, err
	}
	out = append(out, fe)
	return out, nil
}

// Reader reconstructs a pixel matrix from a sequence of CSI-2 packets
// (decoded short/long) fed in wire order. It latches the most recent
// ECC/CRC error for status reporting; per-packet errors never abort the
// decode (§7 "per-packet errors ... do not halt the pipeline").
type Reader struct {
	rows, cols  int
	m           *fpd.Matrix
	row         int
	started     bool
	LastErr     error
	ECCErrors   int
	CRCErrors   int
}

// NewReader prepares a Reader for a frame of the given shape.
func NewReader(rows, cols, bitDepth int) (*Reader, error) {
	m, err := fpd.NewMatrix(rows, cols, bitDepth)
	if err != nil {
		return nil, err
	}
	return &Reader{rows: rows, cols: cols, m: m}, nil
}

// FeedShort processes a decoded short packet (FS/FE/LS/LE). FS resets the
// reader's row cursor; FE (if the frame is complete) has no further effect
// here, the caller detects completion via Done.
func (r *Reader) FeedShort(p Packet) {
	if p.ECCError {
		r.ECCErrors++
		r.LastErr = ErrECC
	}
	switch p.Kind {
	case KindFrameStart:
		r.row = 0
		r.started = true
	case KindFrameEnd:
		// no-op; Done() reflects whether every row was filled.
	}
}

// FeedLong processes a decoded LineData payload into the matrix's next row.
// Rows delivered beyond the matrix's height are ignored.
func (r *Reader) FeedLong(p Packet) {
	if r.row >= r.rows {
		return
	}
	row := r.m.Row(r.row)
	n := len(p.Payload) / 2
	if n > r.cols {
		n = r.cols
	}
	for i := 0; i < n; i++ {
		row[i] = uint16(p.Payload[2*i]) | uint16(p.Payload[2*i+1])<<8
	}
	r.row++
}

// FeedRawLong decodes and feeds a raw long-packet byte slice in one step,
// returning ErrCRC without aborting (the row is simply not advanced).
func (r *Reader) FeedRawLong(b []byte) error {
	p, err := DecodeLong(b)
	if err != nil {
		r.CRCErrors++
		r.LastErr = err
		return err
	}
	r.FeedLong(p)
	return nil
}

// Rows returns the frame height this Reader was built for.
func (r *Reader) Rows() int { return r.rows }

// Cols returns the frame width this Reader was built for.
func (r *Reader) Cols() int { return r.cols }

// BitDepth returns the pixel bit depth this Reader was built for.
func (r *Reader) BitDepth() int { return r.m.BitDepth }

// Done reports whether every row of the frame has been received.
func (r *Reader) Done() bool {
	return r.started && r.row >= r.rows
}

// Matrix returns the assembled matrix. Valid once Done returns true, though
// a partially filled matrix (zero rows for any row not yet received) is
// always safe to read.
func (r *Reader) Matrix() *fpd.Matrix {
	return r.m
}
