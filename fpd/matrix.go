// Copyright 2015 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package fpd holds the detector's core data model: the pixel matrix and the
// frame ring manager. It generalizes the teacher's fixed 80x60 LeptonBuffer
// into a variable-shape dense pixel matrix, and its channel-based image ring
// into an explicit 4-state slot machine.
package fpd

import (
	"fmt"
	"image"
	"image/color"
)

// MinDim and MaxDim bound the supported row/column count, per §3.
const (
	MinDim = 256
	MaxDim = 4096
)

// ValidBitDepths lists the supported sample bit depths.
var ValidBitDepths = [3]int{8, 14, 16}

// Matrix is a dense, row-major 16-bit pixel matrix. Values below full scale
// for BitDepth are stored in the low bits of each 16-bit cell, per §3.
type Matrix struct {
	Rows, Cols int
	BitDepth   int
	Pix        []uint16
}

// NewMatrix allocates a zeroed matrix of the given shape, validating bounds
// and bit depth.
func NewMatrix(rows, cols, bitDepth int) (*Matrix, error) {
	if rows < MinDim || rows > MaxDim || cols < MinDim || cols > MaxDim {
		return nil, fmt.Errorf("fpd: dimensions %dx%d out of range [%d,%d]", rows, cols, MinDim, MaxDim)
	}
	ok := false
	for _, d := range ValidBitDepths {
		if d == bitDepth {
			ok = true
			break
		}
	}
	if !ok {
		return nil, fmt.Errorf("fpd: unsupported bit depth %d", bitDepth)
	}
	return &Matrix{Rows: rows, Cols: cols, BitDepth: bitDepth, Pix: make([]uint16, rows*cols)}, nil
}

// Row returns the slice backing row r, for in-place writes by decoders.
func (m *Matrix) Row(r int) []uint16 {
	return m.Pix[r*m.Cols : (r+1)*m.Cols]
}

// At returns the sample at (row, col).
func (m *Matrix) At(row, col int) uint16 {
	return m.Pix[row*m.Cols+col]
}

// Set stores v at (row, col).
func (m *Matrix) Set(row, col int, v uint16) {
	m.Pix[row*m.Cols+col] = v
}

// Bytes returns the matrix as a little-endian byte slice, per §6's pixel
// payload convention. Newly allocated; safe for the caller to retain.
func (m *Matrix) Bytes() []byte {
	out := make([]byte, 2*len(m.Pix))
	for i, v := range m.Pix {
		out[2*i] = byte(v)
		out[2*i+1] = byte(v >> 8)
	}
	return out
}

// FromBytes overwrites m.Pix from a little-endian byte slice of the same
// total size produced by Bytes.
func (m *Matrix) FromBytes(b []byte) error {
	if len(b) != 2*len(m.Pix) {
		return fmt.Errorf("fpd: byte slice length %d does not match matrix size %d", len(b), 2*len(m.Pix))
	}
	for i := range m.Pix {
		m.Pix[i] = uint16(b[2*i]) | uint16(b[2*i+1])<<8
	}
	return nil
}

// Equal reports whether m and o have identical shape and samples.
func (m *Matrix) Equal(o *Matrix) bool {
	if o == nil || m.Rows != o.Rows || m.Cols != o.Cols || m.BitDepth != o.BitDepth {
		return false
	}
	for i, v := range m.Pix {
		if o.Pix[i] != v {
			return false
		}
	}
	return true
}

// ColorModel returns color.Gray16Model. Matrix itself does not satisfy
// image.Image (its At takes (row, col) and returns uint16); use AsImage to
// hand a Matrix to image/png as a preview.
func (m *Matrix) ColorModel() color.Model {
	return color.Gray16Model
}

// Bounds returns the image rectangle, Cols wide and Rows high.
func (m *Matrix) Bounds() image.Rectangle {
	return image.Rect(0, 0, m.Cols, m.Rows)
}

// ImageAt returns the sample at image coordinates (x, y), i.e. (col, row),
// as a color.Gray16; it backs the adapter's image.Image.At.
func (m *Matrix) ImageAt(x, y int) color.Color {
	return color.Gray16{Y: m.At(y, x)}
}

var _ image.Image = (*imageAdapter)(nil)

// imageAdapter satisfies image.Image.At without colliding with Matrix.At's
// (row, col) signature, which the rest of this package relies on.
type imageAdapter struct{ m *Matrix }

func (a *imageAdapter) ColorModel() color.Model  { return a.m.ColorModel() }
func (a *imageAdapter) Bounds() image.Rectangle  { return a.m.Bounds() }
func (a *imageAdapter) At(x, y int) color.Color  { return a.m.ImageAt(x, y) }

// AsImage adapts m to image.Image for use with image/png etc., mirroring
// how LeptonBuffer itself implemented image.Image directly (kept as a
// separate adapter here since Matrix.At has pixel-matrix semantics, not
// image.Image semantics).
func AsImage(m *Matrix) image.Image {
	return &imageAdapter{m: m}
}
