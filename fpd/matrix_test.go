// Copyright 2015 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package fpd

import (
	"image/color"
	"testing"
)

func TestNewMatrixRejectsOutOfRangeDims(t *testing.T) {
	if _, err := NewMatrix(MinDim-1, MinDim, 16); err == nil {
		t.Error("expected error for rows below MinDim")
	}
	if _, err := NewMatrix(MinDim, MaxDim+1, 16); err == nil {
		t.Error("expected error for cols above MaxDim")
	}
}

func TestNewMatrixRejectsBadBitDepth(t *testing.T) {
	if _, err := NewMatrix(MinDim, MinDim, 12); err == nil {
		t.Error("expected error for unsupported bit depth 12")
	}
}

func TestMatrixRowAndAt(t *testing.T) {
	m, err := NewMatrix(256, 256, 16)
	if err != nil {
		t.Fatal(err)
	}
	m.Set(1, 2, 0x1234)
	if got := m.At(1, 2); got != 0x1234 {
		t.Errorf("At(1,2) = %#04x, want 0x1234", got)
	}
	row := m.Row(1)
	if row[2] != 0x1234 {
		t.Errorf("Row(1)[2] = %#04x, want 0x1234", row[2])
	}
}

func TestMatrixBytesRoundTrip(t *testing.T) {
	m, err := NewMatrix(256, 256, 14)
	if err != nil {
		t.Fatal(err)
	}
	m.Set(0, 0, 0x3FFF)
	m.Set(255, 255, 0x0001)
	b := m.Bytes()

	other, err := NewMatrix(256, 256, 14)
	if err != nil {
		t.Fatal(err)
	}
	if err := other.FromBytes(b); err != nil {
		t.Fatal(err)
	}
	if !m.Equal(other) {
		t.Error("round-tripped matrix does not equal original")
	}
}

func TestMatrixFromBytesWrongSize(t *testing.T) {
	m, err := NewMatrix(256, 256, 16)
	if err != nil {
		t.Fatal(err)
	}
	if err := m.FromBytes([]byte{0, 1, 2}); err == nil {
		t.Error("expected error for mismatched byte slice length")
	}
}

func TestMatrixEqualDetectsShapeMismatch(t *testing.T) {
	a, _ := NewMatrix(256, 256, 16)
	b, _ := NewMatrix(256, 512, 16)
	if a.Equal(b) {
		t.Error("matrices with different column counts compared equal")
	}
}

func TestAsImageReflectsPixels(t *testing.T) {
	m, err := NewMatrix(256, 256, 16)
	if err != nil {
		t.Fatal(err)
	}
	m.Set(3, 4, 0xBEEF)
	img := AsImage(m)
	if img.Bounds().Dx() != 256 || img.Bounds().Dy() != 256 {
		t.Fatalf("unexpected bounds %v", img.Bounds())
	}
	wantR, wantG, wantB, wantA := (color.Gray16{Y: 0xBEEF}).RGBA()
	gotR, gotG, gotB, gotA := img.At(4, 3).RGBA()
	if gotR != wantR || gotG != wantG || gotB != wantB || gotA != wantA {
		t.Errorf("At(4,3) = %d,%d,%d,%d, want %d,%d,%d,%d", gotR, gotG, gotB, gotA, wantR, wantG, wantB, wantA)
	}
}
