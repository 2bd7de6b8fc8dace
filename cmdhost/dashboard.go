// Copyright 2015 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package cmdhost

import (
	"bufio"
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"

	"github.com/gorilla/mux"
	"github.com/maruel/go-fpd/fpd"
	"github.com/maruel/interrupt"
	"golang.org/x/net/websocket"
)

// frameHistory is how many reassembled frames the dashboard keeps around for
// late-connecting websocket clients, mirroring the teacher's 9*10 ring of
// LeptonBuffers (roughly 10s of history at the detector's frame rate).
const frameHistory = 90

// Dashboard is the host-side status/frame viewer: it pushes every
// StatusSnapshot and reassembled fpd.Matrix to connected websocket clients,
// generalized from the teacher's WebServer (which only ever pushed raw
// LeptonBuffer frames).
type Dashboard struct {
	cond      sync.Cond
	frames    [frameHistory]*fpd.Matrix
	lastIndex int
	status    StatusSnapshot
}

// NewDashboard returns an empty Dashboard.
func NewDashboard() *Dashboard {
	return &Dashboard{
		cond:      *sync.NewCond(&sync.Mutex{}),
		lastIndex: -1,
	}
}

// AddFrame records m as the most recently reassembled frame and wakes any
// waiting stream handlers.
func (d *Dashboard) AddFrame(m *fpd.Matrix) {
	d.cond.L.Lock()
	defer d.cond.L.Unlock()
	d.lastIndex = (d.lastIndex + 1) % len(d.frames)
	d.frames[d.lastIndex] = m
	d.cond.Broadcast()
}

// SetStatus records the latest status snapshot, sent alongside each frame.
func (d *Dashboard) SetStatus(s StatusSnapshot) {
	d.cond.L.Lock()
	defer d.cond.L.Unlock()
	d.status = s
}

// LastFrame returns the most recently added frame, or nil if none has
// arrived yet.
func (d *Dashboard) LastFrame() *fpd.Matrix {
	d.cond.L.Lock()
	defer d.cond.L.Unlock()
	if d.lastIndex < 0 {
		return nil
	}
	return d.frames[d.lastIndex]
}

// StartServer starts listening on port and returns the Dashboard driving it,
// following the teacher's StartWebServer shape but routed through
// gorilla/mux rather than net/http's bare ServeMux.
func StartServer(port int) *Dashboard {
	d := NewDashboard()
	r := mux.NewRouter()
	r.HandleFunc("/", d.root).Methods("GET")
	r.HandleFunc("/status", d.httpStatus).Methods("GET")
	r.Handle("/stream", websocket.Handler(d.stream))
	fmt.Printf("Listening on %d\n", port)
	go http.ListenAndServe(fmt.Sprintf(":%d", port), loggingHandler{r})
	go func() {
		<-interrupt.Channel
		d.cond.Broadcast()
	}()
	return d
}

func (d *Dashboard) root(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	fmt.Fprint(w, "<html><body><h1>flat panel detector status</h1>"+
		"<p>GET /status for JSON, connect to /stream over WebSocket for live frames.</p></body></html>")
}

func (d *Dashboard) httpStatus(w http.ResponseWriter, r *http.Request) {
	d.cond.L.Lock()
	s := d.status
	d.cond.L.Unlock()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(&s)
}

// frameEnvelope is the per-frame metadata sent ahead of the raw pixel
// payload on the websocket stream, mirroring the teacher's
// json.Encode(&img.Metadata) line.
type frameEnvelope struct {
	Rows     int              `json:"rows"`
	Cols     int              `json:"cols"`
	BitDepth int              `json:"bit_depth"`
	Status   StatusSnapshot   `json:"status"`
}

// stream sends every new frame plus the latest status as WebSocket frames:
// a JSON envelope line followed by base64-encoded raw pixel data, exactly
// the shape of the teacher's stream handler generalized from LeptonBuffer
// to fpd.Matrix.
func (d *Dashboard) stream(w *websocket.Conn) {
	log.Printf("websocket %s", w.Config().Origin)
	defer w.Close()
	buf := &bytes.Buffer{}
	d.cond.L.Lock()
	defer d.cond.L.Unlock()
	lastIndex := d.lastIndex
	var err error
	for !interrupt.IsSet() && err == nil {
		d.cond.Wait()
		for ; !interrupt.IsSet() && err == nil && lastIndex != d.lastIndex; lastIndex = (lastIndex + 1) % len(d.frames) {
			m := d.frames[(lastIndex+1)%len(d.frames)]
			s := d.status
			d.cond.L.Unlock()

			if m != nil {
				env := frameEnvelope{Rows: m.Rows, Cols: m.Cols, BitDepth: m.BitDepth, Status: s}
				err = json.NewEncoder(buf).Encode(&env)
				if err == nil {
					buf.Write([]byte("\n"))
					encoder := base64.NewEncoder(base64.StdEncoding, buf)
					binary.Write(encoder, binary.LittleEndian, m.Pix)
					encoder.Close()
				}
				if err == nil {
					_, err = w.Write(buf.Bytes())
				}
				buf.Reset()
			}

			d.cond.L.Lock()
		}
	}
	if err == nil {
		log.Printf("websocket %s closed", w.Config().Origin)
	} else {
		log.Printf("websocket %s closed: %s", w.Config().Origin, err)
	}
}

// Private details.

type loggingHandler struct {
	handler http.Handler
}

type loggingResponseWriter struct {
	http.ResponseWriter
	length int
	status int
}

func (l *loggingResponseWriter) Write(data []byte) (size int, err error) {
	size, err = l.ResponseWriter.Write(data)
	l.length += size
	return
}

func (l *loggingResponseWriter) WriteHeader(status int) {
	l.ResponseWriter.WriteHeader(status)
	l.status = status
}

// Hijack is needed for websocket.
func (l *loggingResponseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h := l.ResponseWriter.(http.Hijacker)
	return h.Hijack()
}

// ServeHTTP logs each HTTP request.
func (l loggingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	lrw := &loggingResponseWriter{ResponseWriter: w}
	l.handler.ServeHTTP(lrw, r)
	log.Printf("%s - %3d %6db %4s %s\n", r.RemoteAddr, lrw.status, lrw.length, r.Method, r.RequestURI)
}
