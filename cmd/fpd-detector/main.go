// Copyright 2015 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// fpd-detector runs the sensor-head side of the flat panel detector
// pipeline: it decodes CSI-2 packets off a device file into frames, streams
// completed frames to a host over UDP, and answers authenticated commands
// that drive the scan state machine.
package main

import (
	"flag"
	"fmt"
	"net"
	"os"
	"runtime/pprof"
	"time"

	"github.com/maruel/go-fpd/internal/keyfile"
	"github.com/maruel/go-fpd/internal/spihw"
	"github.com/maruel/go-fpd/orchestrator"
	"github.com/maruel/go-fpd/scanfsm"
	"github.com/maruel/interrupt"
	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/gpio/gpioreg"
	"periph.io/x/periph/conn/spi"
	"periph.io/x/periph/conn/spi/spireg"
	"periph.io/x/periph/host"
)

// udpSocket adapts a *net.UDPConn to orchestrator.Socket.
type udpSocket struct {
	conn *net.UDPConn
}

func (u udpSocket) WriteTo(p []byte, addr string) (int, error) {
	dst, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return 0, err
	}
	return u.conn.WriteToUDP(p, dst)
}

func mainImpl() error {
	cpuprofile := flag.String("cpuprofile", "", "dump CPU profile in file")
	csiDevice := flag.String("csi-device", "/dev/csi0", "CSI-2 receiver device file")
	spiName := flag.String("spi", "", "periph SPI port to use, empty for the first available")
	spiHz := flag.Int("spihz", 10000000, "SPI bus speed")
	resetPin := flag.String("reset-pin", "", "periph GPIO pin name driving sensor reset, empty to skip")
	dest := flag.String("dest", "127.0.0.1:9700", "UDP host:port to stream frames to")
	listenPort := flag.Int("listen-port", 9701, "UDP port to receive command frames on")
	rows := flag.Int("rows", 3072, "detector matrix rows")
	cols := flag.Int("cols", 3072, "detector matrix cols")
	bitDepth := flag.Int("bit-depth", 16, "detector pixel bit depth")
	keyPath := flag.String("key-file", "/etc/fpd/command.key", "HMAC shared secret file")
	flag.Parse()

	if len(flag.Args()) != 0 {
		return fmt.Errorf("unexpected argument: %s", flag.Args())
	}

	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			return err
		}
		pprof.StartCPUProfile(f)
		defer pprof.StopCPUProfile()
	}

	interrupt.HandleCtrlC()

	if _, err := host.Init(); err != nil {
		return err
	}
	spiPort, err := spireg.Open(*spiName)
	if err != nil {
		return err
	}
	defer spiPort.Close()
	spiConn, err := spiPort.Connect(int64(*spiHz), spi.Mode3, 8)
	if err != nil {
		return err
	}
	var resetLine gpio.PinOut
	if *resetPin != "" {
		resetLine = gpioreg.ByName(*resetPin)
		if resetLine == nil {
			return fmt.Errorf("unknown GPIO pin %q", *resetPin)
		}
	}
	hw := spihw.New(spiConn, resetLine)
	defer hw.Close()

	key, err := keyfile.Load(*keyPath)
	if err != nil {
		return err
	}
	go func() {
		if err := key.Watch(); err != nil {
			fmt.Fprintf(os.Stderr, "fpd-detector: key watch: %s.\n", err)
		}
	}()

	fsm := scanfsm.New(scanfsm.Callbacks{
		OnConfigure: func(mode scanfsm.Mode) { hw.WriteControl(spihw.ControlArm) },
		OnArm:       func() { hw.WriteControl(spihw.ControlArm) },
		OnStop:      func() { hw.WriteControl(spihw.ControlStop) },
		OnError:     func(prev scanfsm.State, reason error) { hw.WriteControl(spihw.ControlReset) },
	})

	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: *listenPort})
	if err != nil {
		return err
	}
	defer conn.Close()

	det, err := orchestrator.NewDetector(*rows, *cols, *bitDepth, udpSocket{conn}, *dest, fsm, key.Key(), func() int64 { return time.Now().UnixNano() })
	if err != nil {
		return err
	}

	csiFile, err := os.Open(*csiDevice)
	if err != nil {
		return err
	}
	defer csiFile.Close()

	go func() {
		if err := det.RunCapture(csiFile); err != nil && !interrupt.IsSet() {
			fmt.Fprintf(os.Stderr, "fpd-detector: capture: %s.\n", err)
		}
	}()
	go func() {
		if err := det.RunSend(); err != nil && !interrupt.IsSet() {
			fmt.Fprintf(os.Stderr, "fpd-detector: send: %s.\n", err)
		}
	}()
	go func() {
		buf := make([]byte, 2048)
		for !interrupt.IsSet() {
			n, addr, err := conn.ReadFromUDP(buf)
			if err != nil {
				continue
			}
			resp := det.HandleCommand(buf[:n], addr.String())
			conn.WriteToUDP(resp, addr)
		}
	}()

	for !interrupt.IsSet() {
		stats := det.Stats()
		fmt.Printf("\rreceived=%d sent=%d dropped=%d overruns=%d ecc=%d crc=%d",
			stats.Ring.FramesReceived, stats.Ring.FramesSent, stats.Ring.FramesDropped, stats.Ring.Overruns, stats.ECCErrors, stats.CRCErrors)
		time.Sleep(time.Second)
	}
	fmt.Print("\n")
	return nil
}

func main() {
	if err := mainImpl(); err != nil {
		fmt.Fprintf(os.Stderr, "fpd-detector: %s.\n", err)
		os.Exit(1)
	}
}
