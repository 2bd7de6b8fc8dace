// Copyright 2015 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package csi2

import "math/bits"

// hammingECC6 computes the MIPI CSI-2 6-bit Hamming ECC over a 24-bit short
// packet header (h[0] = D[7:0], h[1] = D[15:8], h[2] = D[23:16]).
//
// This is the spec-conforming form called out by §9: a simplified XOR of the
// three header bytes (see xorECC6Buggy) is NOT equivalent and must not be
// used by a conforming codec.
func hammingECC6(h [3]byte) byte {
	d := uint32(h[0]) | uint32(h[1])<<8 | uint32(h[2])<<16
	var ecc byte
	for i, mask := range eccMasks {
		if bits.OnesCount32(d&mask)&1 != 0 {
			ecc |= 1 << uint(i)
		}
	}
	return ecc
}

// eccMasks[i] selects the data bits D[23:0] contributing to parity bit Pi of
// the CSI-2 packet header Hamming code (6 parity bits over 24 data bits).
var eccMasks = [6]uint32{
	0: bitMask(0, 1, 2, 4, 5, 7, 10, 11, 13, 16, 20, 21, 22, 23),
	1: bitMask(0, 1, 3, 4, 6, 8, 10, 12, 14, 17, 20, 21, 22, 23),
	2: bitMask(0, 2, 3, 5, 6, 9, 11, 12, 15, 18, 20, 21, 22),
	3: bitMask(1, 2, 3, 7, 8, 9, 13, 14, 15, 19, 20, 21, 23),
	4: bitMask(4, 5, 6, 7, 8, 9, 16, 17, 18, 19, 20, 22, 23),
	5: bitMask(10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 21, 22, 23),
}

func bitMask(bitsIdx ...int) uint32 {
	var m uint32
	for _, b := range bitsIdx {
		m |= 1 << uint(b)
	}
	return m
}

// xorECC6Buggy is the non-conforming ECC variant documented in §9: a plain
// XOR of the three header bytes masked to 6 bits. Kept only so the
// regression test can assert it disagrees with hammingECC6; the codec never
// calls this.
func xorECC6Buggy(h [3]byte) byte {
	return (h[0] ^ h[1] ^ h[2]) & 0x3F
}
