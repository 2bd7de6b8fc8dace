// Copyright 2015 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package orchestrator wires the detector core's components — the CSI-2
// decoder, the frame ring, the frame transport protocol, the scan FSM and
// the command dispatcher — into the two running processes described in
// SPEC_FULL.md §5.H: the sensor-head-side detector loop and the host-side
// reassembly/dashboard loop. The wiring follows the teacher's main.go
// producer/consumer goroutine-and-ring shape, generalized from a single
// SPI-read loop to the CSI-2/ring/fragment/UDP pipeline.
package orchestrator

import (
	"log"
	"time"

	"github.com/maruel/go-fpd/cmdhost"
	"github.com/maruel/go-fpd/csi2"
	"github.com/maruel/go-fpd/fpd"
	"github.com/maruel/go-fpd/scanfsm"
	"github.com/maruel/go-fpd/transport"
	"github.com/maruel/interrupt"
)

// ByteSource is the CSI-2 packet byte stream, satisfied by an SPI/CSI-2
// receiver or, in tests, by fpdtest.ByteSource.
type ByteSource interface {
	Read(p []byte) (int, error)
}

// Socket is the UDP datagram sink the fragmenter writes to, satisfied by a
// real net.PacketConn wrapper or, in tests, by fpdtest.Socket.
type Socket interface {
	WriteTo(p []byte, addr string) (int, error)
}

// DetectorStats aggregates every subsystem's counters into one snapshot for
// logging/status reporting, mirroring the teacher's Stats struct-by-value
// pattern.
type DetectorStats struct {
	Ring   fpd.RingStats
	FSM    scanfsm.Stats
	ECCErrors int
	CRCErrors int
}

// Detector runs the sensor-head side of the pipeline: CSI-2 bytes in, UDP
// frame datagrams out, commands dispatched to the scan FSM.
type Detector struct {
	Ring       *fpd.Ring
	Reader     *csi2.Reader
	Frag       *transport.Fragmenter
	Sock       Socket
	DestAddr   string
	FSM        *scanfsm.FSM
	Dispatcher *cmdhost.Dispatcher

	pending     []byte // undecoded bytes left over from the last Read.
	frameCounter uint32
}

// NewDetector wires a fresh Detector around rows/cols/bitDepth, a
// destination UDP address string and the given hardware/network
// collaborators.
func NewDetector(rows, cols, bitDepth int, sock Socket, destAddr string, fsm *scanfsm.FSM, key []byte, clock transport.Clock) (*Detector, error) {
	ring, err := fpd.NewRing(rows, cols, bitDepth)
	if err != nil {
		return nil, err
	}
	reader, err := csi2.NewReader(rows, cols, bitDepth)
	if err != nil {
		return nil, err
	}
	frag := transport.NewFragmenter(clock)
	return &Detector{
		Ring:       ring,
		Reader:     reader,
		Frag:       frag,
		Sock:       sock,
		DestAddr:   destAddr,
		FSM:        fsm,
		Dispatcher: cmdhost.NewDispatcher(key, fsm, cmdhost.Clock(clock)),
	}, nil
}

// RunCapture pulls CSI-2 bytes from src and commits completed frames to the
// ring, restarting a fresh Reader after each frame the way the teacher's
// Lepton.ReadImg loop restarts currentLine at -1 after every image.
//
// It returns only when interrupt.IsSet() or src returns a non-nil error.
func (d *Detector) RunCapture(src ByteSource) error {
	buf := make([]byte, 4096)
	for !interrupt.IsSet() {
		n, err := src.Read(buf)
		if err != nil {
			return err
		}
		if n == 0 {
			continue
		}
		d.pending = append(d.pending, buf[:n]...)
		d.drainPending()
		if d.Reader.Done() {
			m := d.Reader.Matrix()
			frameNo := d.nextFrameNumber()
			if target, err := d.Ring.GetBuffer(frameNo); err == nil {
				copy(target.Pix, m.Pix)
				if err := d.Ring.CommitBuffer(frameNo); err != nil {
					log.Printf("orchestrator: commit frame %d: %s", frameNo, err)
				}
			} else {
				log.Printf("orchestrator: ring full, dropping frame %d: %s", frameNo, err)
			}
			newReader, err := csi2.NewReader(d.Reader.Rows(), d.Reader.Cols(), d.Reader.BitDepth())
			if err != nil {
				return err
			}
			d.Reader = newReader
		}
	}
	return nil
}

// drainPending decodes every complete packet currently buffered in
// d.pending, feeding short packets and line data to the Reader in wire
// order, and leaves any trailing partial packet for the next Read.
func (d *Detector) drainPending() {
	for {
		p, consumed, err := csi2.DecodeNext(d.pending)
		if consumed == 0 {
			return
		}
		d.pending = d.pending[consumed:]
		if err != nil {
			continue
		}
		if p.Kind == csi2.KindLineData {
			d.Reader.FeedLong(p)
		} else {
			d.Reader.FeedShort(p)
		}
	}
}

func (d *Detector) nextFrameNumber() uint32 {
	d.frameCounter++
	return d.frameCounter
}

// RunSend drains ready frames off the ring, fragments each and writes every
// fragment to Sock, releasing the slot once all fragments are sent.
func (d *Detector) RunSend() error {
	for !interrupt.IsSet() {
		m, frameNo, err := d.Ring.GetReadyBuffer()
		if err != nil {
			time.Sleep(time.Millisecond)
			continue
		}
		packets, err := d.Frag.FragmentAs(m, frameNo)
		if err != nil {
			log.Printf("orchestrator: fragment frame %d: %s", frameNo, err)
			d.Ring.ReleaseBuffer(frameNo)
			continue
		}
		for _, p := range packets {
			if _, err := d.Sock.WriteTo(p, d.DestAddr); err != nil {
				log.Printf("orchestrator: send frame %d: %s", frameNo, err)
				break
			}
		}
		if err := d.Ring.ReleaseBuffer(frameNo); err != nil {
			log.Printf("orchestrator: release frame %d: %s", frameNo, err)
		}
	}
	return nil
}

// HandleCommand runs one request frame through the Dispatcher and returns
// the response bytes to send back to source.
func (d *Detector) HandleCommand(req []byte, source string) []byte {
	return d.Dispatcher.Handle(req, source)
}

// Stats returns a snapshot of every subsystem's counters.
func (d *Detector) Stats() DetectorStats {
	return DetectorStats{
		Ring:      d.Ring.Snapshot(),
		FSM:       d.FSM.Stats(),
		ECCErrors: d.Reader.ECCErrors,
		CRCErrors: d.Reader.CRCErrors,
	}
}

// Host runs the host side: UDP datagrams in, reassembled frames pushed to a
// Dashboard.
type Host struct {
	Slots *transport.SlotTable
	Dash  *cmdhost.Dashboard
}

// NewHost wires a Host around a fresh SlotTable driven by clock.
func NewHost(clock transport.Clock) *Host {
	return &Host{
		Slots: transport.NewSlotTable(clock),
		Dash:  cmdhost.NewDashboard(),
	}
}

// Feed hands one received UDP datagram to the slot table, pushing the
// reassembled matrix to the dashboard on completion.
func (h *Host) Feed(pkt []byte) (transport.Status, error) {
	status, m, err := h.Slots.Feed(pkt)
	if status == transport.StatusComplete && m != nil {
		h.Dash.AddFrame(m)
	}
	return status, err
}

// RunCleanup periodically evicts timed-out reassembly slots until
// interrupt.IsSet().
func (h *Host) RunCleanup(period time.Duration) {
	for !interrupt.IsSet() {
		time.Sleep(period)
		if dropped := h.Slots.CleanupExpiredFrames(); len(dropped) > 0 {
			log.Printf("orchestrator: dropped %d stale frame(s): %v", len(dropped), dropped)
		}
	}
}
