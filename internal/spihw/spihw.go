// Copyright 2015 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package spihw is the detector's low-level hardware collaborator: a thin
// register read/write layer over an injected periph.io SPI connection and
// an optional reset GPIO pin, in the shape of the teacher's lepton.Dev
// (constructed from spi.Conn/gpio.PinOut rather than opening device files
// itself).
package spihw

import (
	"errors"
	"sync"

	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/spi"
)

// RegisterAddress is a control/status register on the detector's sensor
// head, addressed the way the teacher's lepton/bus.go addresses the FLIR
// Lepton's CCI registers.
type RegisterAddress uint16

// The control registers the scan FSM callbacks drive, per the placeholder
// layout in SPEC_FULL.md §5.F: a single CONTROL byte register takes one of
// the Control* command values below (the scan mode is not encoded); STATUS
// mirrors it back for read-back verification.
const (
	RegControl RegisterAddress = 0x00
	RegStatus  RegisterAddress = 0x02
)

// Control bit values written to RegControl.
const (
	ControlIdle    byte = 0x00
	ControlArm     byte = 0x01
	ControlScan    byte = 0x02
	ControlStop    byte = 0x03
	ControlReset   byte = 0xFF
)

// ErrClosed is returned by any operation performed after Close.
var ErrClosed = errors.New("spihw: device closed")

// Dev is the sensor head's register interface: every call issues one SPI
// transaction guarded by a mutex, mirroring the teacher's SPI.lock usage in
// lepton/low.go without that file's raw ioctl plumbing (periph.io already
// abstracts the device file open/ioctl dance via spi.Conn).
type Dev struct {
	conn   spi.Conn
	reset  gpio.PinOut
	mu     sync.Mutex
	closed bool
}

// New returns a Dev driving conn for register transfers and reset for the
// sensor head's hardware reset line. reset may be nil if the board doesn't
// expose it, matching the teacher's "breakout board doesn't expose
// PWR_DWN_L/RESET_L" caveat in lepton.go.
func New(conn spi.Conn, reset gpio.PinOut) *Dev {
	return &Dev{conn: conn, reset: reset}
}

// WriteControl writes value to RegControl in a single 4-byte SPI
// transaction: 2 bytes of big-endian register address followed by 1 byte of
// value and a reserved pad byte, keeping the transfer size fixed the way
// the Lepton's VoSPI word transfers are.
func (d *Dev) WriteControl(value byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	w := []byte{byte(RegControl >> 8), byte(RegControl), value, 0}
	return d.conn.Tx(w, nil)
}

// ReadStatus reads back RegStatus's single control byte.
func (d *Dev) ReadStatus() (byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return 0, ErrClosed
	}
	w := []byte{byte(RegStatus >> 8) | 0x80, byte(RegStatus), 0, 0}
	r := make([]byte, 4)
	if err := d.conn.Tx(w, r); err != nil {
		return 0, err
	}
	return r[2], nil
}

// Reset pulses the hardware reset line low then high, if present.
func (d *Dev) Reset() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	if d.reset == nil {
		return d.conn.Tx([]byte{byte(RegControl >> 8), byte(RegControl), ControlReset, 0}, nil)
	}
	if err := d.reset.Out(gpio.Low); err != nil {
		return err
	}
	return d.reset.Out(gpio.High)
}

// Close marks the device unusable. periph.io bus/port handles are owned by
// the caller and are not closed here, matching lepton.Dev's Close, which
// only tears down its own state.
func (d *Dev) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}
