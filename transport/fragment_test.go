// Copyright 2015 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package transport

import (
	"testing"

	"github.com/maruel/go-fpd/fpd"
)

func fakeClock() int64 { return 42 }

func TestFragmentLastPacketFlag(t *testing.T) {
	m, err := fpd.NewMatrix(3072, 3072, 16)
	if err != nil {
		t.Fatal(err)
	}
	f := NewFragmenter(fakeClock)
	pkts, err := f.FragmentAs(m, 1)
	if err != nil {
		t.Fatal(err)
	}
	totalBytes := 3072 * 3072 * 2
	wantPackets := (totalBytes + DefaultPayloadSize - 1) / DefaultPayloadSize
	if len(pkts) != wantPackets {
		t.Fatalf("got %d packets, want %d", len(pkts), wantPackets)
	}
	for i, p := range pkts {
		h, err := Decode(p)
		if err != nil {
			t.Fatalf("packet %d: decode: %s", i, err)
		}
		wantLast := i == len(pkts)-1
		if h.LastPacket() != wantLast {
			t.Errorf("packet %d LastPacket() = %v, want %v", i, h.LastPacket(), wantLast)
		}
		if int(h.PacketSeq) != i {
			t.Errorf("packet %d PacketSeq = %d, want %d", i, h.PacketSeq, i)
		}
		if int(h.TotalPackets) != wantPackets {
			t.Errorf("packet %d TotalPackets = %d, want %d", i, h.TotalPackets, wantPackets)
		}
	}
}

func TestFragmentAutoIncrementsFrameNumber(t *testing.T) {
	m, err := fpd.NewMatrix(256, 256, 16)
	if err != nil {
		t.Fatal(err)
	}
	f := NewFragmenter(fakeClock)
	id1, _, err := f.Fragment(m)
	if err != nil {
		t.Fatal(err)
	}
	id2, _, err := f.Fragment(m)
	if err != nil {
		t.Fatal(err)
	}
	if id2 != id1+1 {
		t.Errorf("frame IDs = %d, %d; want consecutive", id1, id2)
	}
}

func TestFragmentWrapsFrameNumber(t *testing.T) {
	m, err := fpd.NewMatrix(256, 256, 16)
	if err != nil {
		t.Fatal(err)
	}
	f := NewFragmenter(fakeClock)
	f.nextFrame = 0xFFFFFFFF
	id1, _, err := f.Fragment(m)
	if err != nil {
		t.Fatal(err)
	}
	id2, _, err := f.Fragment(m)
	if err != nil {
		t.Fatal(err)
	}
	if id1 != 0xFFFFFFFF || id2 != 0 {
		t.Errorf("got ids %d, %d; want 0xFFFFFFFF, 0", id1, id2)
	}
}

func TestFragmentSmallPayloadSizeMultiplePackets(t *testing.T) {
	m, err := fpd.NewMatrix(256, 256, 16)
	if err != nil {
		t.Fatal(err)
	}
	f := NewFragmenter(fakeClock)
	f.PayloadSize = 4 // 2 pixels/packet.
	pkts, err := f.FragmentAs(m, 7)
	if err != nil {
		t.Fatal(err)
	}
	wantPackets := (256 * 256 * 2) / 4
	if len(pkts) != wantPackets {
		t.Fatalf("got %d packets, want %d", len(pkts), wantPackets)
	}
}
