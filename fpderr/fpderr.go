// Copyright 2015 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package fpderr defines the sentinel errors shared across the detector
// core's components (§7 "Error taxonomy"). The core never panics and never
// surfaces exceptions; every failure is one of these values, returned
// through ordinary Go error returns and, at the command protocol boundary,
// translated to a response status code.
package fpderr

import "errors"

var (
	// Invalid marks malformed bytes, unknown magic, or an unknown command.
	Invalid = errors.New("fpd: invalid")
	// EMsgSize marks truncated input shorter than a fixed prefix.
	EMsgSize = errors.New("fpd: message truncated")
	// CRCError marks a payload or header checksum mismatch.
	CRCError = errors.New("fpd: crc mismatch")
	// ECCError marks a CSI-2 short-packet header ECC mismatch.
	ECCError = errors.New("fpd: ecc mismatch")
	// Auth marks an HMAC mismatch.
	Auth = errors.New("fpd: authentication failed")
	// Replay marks a command sequence number that is not strictly greater
	// than the stored value for its source.
	Replay = errors.New("fpd: replayed sequence number")
	// Busy marks a ring with no FREE slot and no READY slot to drop.
	Busy = errors.New("fpd: ring busy")
	// None marks a ring with no READY slot to drain.
	None = errors.New("fpd: nothing ready")
	// InvalidState marks a slot or FSM transition that is not permitted
	// from the caller's current state.
	InvalidState = errors.New("fpd: invalid state transition")
	// Timeout marks a reassembly slot that aged out before completion.
	Timeout = errors.New("fpd: reassembly timeout")
	// Fatal marks the FSM's ERROR state with retries exhausted, or an
	// uninitialized module.
	Fatal = errors.New("fpd: fatal, external reset required")
)
