// Copyright 2015 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package csi2

import (
	"testing"

	"github.com/maruel/go-fpd/fpd"
)

func TestShortRoundTrip(t *testing.T) {
	tests := []struct {
		gen  func(vc uint8, n uint16) ([]byte, error)
		kind Kind
		dt   DataType
	}{
		{GenerateFrameStart, KindFrameStart, DTFrameStart},
		{GenerateFrameEnd, KindFrameEnd, DTFrameEnd},
		{GenerateLineStart, KindLineStart, DTLineStart},
		{GenerateLineEnd, KindLineEnd, DTLineEnd},
	}
	for _, tt := range tests {
		b, err := tt.gen(1, 42)
		if err != nil {
			t.Fatalf("%v: generate: %s", tt.dt, err)
		}
		if len(b) != 4 {
			t.Fatalf("%v: got %d bytes, want 4", tt.dt, len(b))
		}
		p, err := DecodeShort(b)
		if err != nil {
			t.Fatalf("%v: decode: %s", tt.dt, err)
		}
		if p.ECCError {
			t.Errorf("%v: unexpected ECC error on a freshly generated packet", tt.dt)
		}
		if p.Kind != tt.kind {
			t.Errorf("%v: Kind = %v, want %v", tt.dt, p.Kind, tt.kind)
		}
		if p.WordCount != 42 {
			t.Errorf("%v: WordCount = %d, want 42", tt.dt, p.WordCount)
		}
		if p.VirtualChannel != 1 {
			t.Errorf("%v: VirtualChannel = %d, want 1", tt.dt, p.VirtualChannel)
		}
	}
}

func TestShortPacketECCDetectsSingleBitFlip(t *testing.T) {
	b, err := GenerateFrameStart(0, 7)
	if err != nil {
		t.Fatal(err)
	}
	// Flip one bit of the header; ECC must still detect it without aborting.
	corrupted := append([]byte(nil), b...)
	corrupted[0] ^= 0x01
	p, err := DecodeShort(corrupted)
	if err != nil {
		t.Fatalf("decode: %s", err)
	}
	if !p.ECCError {
		t.Error("expected ECCError on corrupted header, got none")
	}
}

func TestLineDataRoundTrip(t *testing.T) {
	pixels := []uint16{1, 2, 3, 0x3FFF, 0}
	b, err := GenerateLineData(2, pixels, DTRaw16)
	if err != nil {
		t.Fatal(err)
	}
	p, err := DecodeLong(b)
	if err != nil {
		t.Fatalf("decode: %s", err)
	}
	if p.Kind != KindLineData {
		t.Fatalf("Kind = %v, want KindLineData", p.Kind)
	}
	if p.VirtualChannel != 2 {
		t.Errorf("VirtualChannel = %d, want 2", p.VirtualChannel)
	}
	if len(p.Payload) != 2*len(pixels) {
		t.Fatalf("Payload length = %d, want %d", len(p.Payload), 2*len(pixels))
	}
	for i, want := range pixels {
		got := uint16(p.Payload[2*i]) | uint16(p.Payload[2*i+1])<<8
		if got != want {
			t.Errorf("pixel %d = %#04x, want %#04x", i, got, want)
		}
	}
}

func TestLineDataBadCRCDropped(t *testing.T) {
	b, err := GenerateLineData(0, []uint16{1, 2, 3}, DTRaw16)
	if err != nil {
		t.Fatal(err)
	}
	corrupted := append([]byte(nil), b...)
	corrupted[len(corrupted)-1] ^= 0xFF
	if _, err := DecodeLong(corrupted); err != ErrCRC {
		t.Errorf("DecodeLong with flipped trailing byte = %v, want ErrCRC", err)
	}
}

func TestDecodeShortTruncated(t *testing.T) {
	if _, err := DecodeShort([]byte{1, 2}); err != ErrShort {
		t.Errorf("DecodeShort(short) = %v, want ErrShort", err)
	}
}

func TestGenerateRejectsBadVirtualChannel(t *testing.T) {
	if _, err := GenerateFrameStart(4, 0); err != ErrVC {
		t.Errorf("GenerateFrameStart(vc=4) = %v, want ErrVC", err)
	}
}

func TestDecodeNextStream(t *testing.T) {
	fs, _ := GenerateFrameStart(0, 1)
	ld, _ := GenerateLineData(0, []uint16{10, 20}, DTRaw16)
	fe, _ := GenerateFrameEnd(0, 1)
	var stream []byte
	stream = append(stream, fs...)
	stream = append(stream, ld...)
	stream = append(stream, fe...)

	var kinds []Kind
	for len(stream) > 0 {
		p, n, err := DecodeNext(stream)
		if n == 0 {
			t.Fatalf("DecodeNext could not make progress on %d remaining bytes", len(stream))
		}
		if err != nil {
			t.Fatalf("DecodeNext: %s", err)
		}
		kinds = append(kinds, p.Kind)
		stream = stream[n:]
	}
	want := []Kind{KindFrameStart, KindLineData, KindFrameEnd}
	if len(kinds) != len(want) {
		t.Fatalf("got %d packets, want %d", len(kinds), len(want))
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("packet %d kind = %v, want %v", i, kinds[i], want[i])
		}
	}
}

func TestDecodeNextNeedsMoreBytes(t *testing.T) {
	fs, _ := GenerateFrameStart(0, 1)
	_, n, err := DecodeNext(fs[:2])
	if n != 0 || err != ErrShort {
		t.Errorf("DecodeNext(partial) = (%d, %v), want (0, ErrShort)", n, err)
	}
}

func TestReaderAssemblesFrame(t *testing.T) {
	// The smallest frame shape fpd.NewMatrix accepts.
	const rows, cols = fpd.MinDim, fpd.MinDim
	r, err := NewReader(rows, cols, 16)
	if err != nil {
		t.Fatal(err)
	}
	fs, _ := GenerateFrameStart(0, 1)
	p, _ := DecodeShort(fs)
	r.FeedShort(p)

	pixel := func(row, col int) uint16 { return uint16(row*cols + col) }
	for i := 0; i < rows; i++ {
		line := make([]uint16, cols)
		for j := range line {
			line[j] = pixel(i, j)
		}
		ld, _ := GenerateLineData(0, line, DTRaw16)
		if err := r.FeedRawLong(ld); err != nil {
			t.Fatalf("row %d: %s", i, err)
		}
	}
	if !r.Done() {
		t.Fatal("Reader not Done after every row fed")
	}
	m := r.Matrix()
	for i := 0; i < rows; i++ {
		got := m.Row(i)
		for j := 0; j < cols; j++ {
			if v := pixel(i, j); got[j] != v {
				t.Errorf("row %d col %d = %d, want %d", i, j, got[j], v)
			}
		}
	}
}
