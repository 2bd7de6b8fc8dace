// Copyright 2015 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// fpd-host runs the host side of the flat panel detector pipeline: it
// receives fragmented UDP frame datagrams, reassembles them, and serves the
// result over an HTTP/WebSocket status dashboard.
package main

import (
	"flag"
	"fmt"
	"net"
	"os"
	"runtime/pprof"
	"time"

	"github.com/maruel/go-fpd/cmdhost"
	"github.com/maruel/go-fpd/orchestrator"
	"github.com/maruel/go-fpd/transport"
	"github.com/maruel/interrupt"
)

func mainImpl() error {
	cpuprofile := flag.String("cpuprofile", "", "dump CPU profile in file")
	listenPort := flag.Int("listen-port", 9700, "UDP port to receive frame datagrams on")
	httpPort := flag.Int("port", 8010, "HTTP port for the status dashboard")
	cleanupPeriod := flag.Duration("cleanup-period", 100*time.Millisecond, "reassembly slot cleanup sweep interval")
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

	host := orchestrator.NewHost(func() int64 { return time.Now().UnixNano() })
	host.Dash = cmdhost.StartServer(*httpPort)

	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: *listenPort})
	if err != nil {
		return err
	}
	defer conn.Close()

	go host.RunCleanup(*cleanupPeriod)

	go func() {
		buf := make([]byte, transport.HeaderSize+transport.DefaultPayloadSize)
		for !interrupt.IsSet() {
			n, _, err := conn.ReadFromUDP(buf)
			if err != nil {
				continue
			}
			pkt := make([]byte, n)
			copy(pkt, buf[:n])
			if _, err := host.Feed(pkt); err != nil {
				fmt.Fprintf(os.Stderr, "fpd-host: reassembly: %s.\n", err)
			}
		}
	}()

	for !interrupt.IsSet() {
		fmt.Printf("\rslots=%d dropped=%d", host.Slots.Len(), host.Slots.FramesDropped)
		time.Sleep(time.Second)
	}
	fmt.Print("\n")
	return nil
}

func main() {
	if err := mainImpl(); err != nil {
		fmt.Fprintf(os.Stderr, "fpd-host: %s.\n", err)
		os.Exit(1)
	}
}
