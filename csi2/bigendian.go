// Copyright 2015 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package csi2

// big16 reads/writes the CSI-2 short-packet header words (virtual-channel/
// data-type byte, word-count) which are conventionally carried as
// big-endian 16 bit words on the wire, independent of the payload pixel
// byte order (little-endian, per §4.B/§6).
var big16 bigEndian16

type bigEndian16 struct{}

func (bigEndian16) Uint16(b []byte) uint16 {
	_ = b[1]
	return uint16(b[1]) | uint16(b[0])<<8
}

func (bigEndian16) PutUint16(b []byte, v uint16) {
	_ = b[1]
	b[0] = byte(v >> 8)
	b[1] = byte(v)
}
