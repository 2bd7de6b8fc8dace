// Copyright 2015 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package cmdhost

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/maruel/go-fpd/fpd"
	"github.com/maruel/go-fpd/scanfsm"
)

func TestDashboardLastFrameNilWhenEmpty(t *testing.T) {
	d := NewDashboard()
	if d.LastFrame() != nil {
		t.Error("LastFrame() should be nil before any AddFrame call")
	}
}

func TestDashboardAddFrameUpdatesLastFrame(t *testing.T) {
	d := NewDashboard()
	m1, _ := fpd.NewMatrix(256, 256, 16)
	m2, _ := fpd.NewMatrix(256, 256, 16)
	d.AddFrame(m1)
	if d.LastFrame() != m1 {
		t.Error("LastFrame() should return the first added frame")
	}
	d.AddFrame(m2)
	if d.LastFrame() != m2 {
		t.Error("LastFrame() should return the most recently added frame")
	}
}

func TestDashboardHTTPStatus(t *testing.T) {
	d := NewDashboard()
	d.SetStatus(StatusSnapshot{State: scanfsm.Streaming, FramesReceived: 7})

	r := mux.NewRouter()
	r.HandleFunc("/status", d.httpStatus).Methods("GET")
	srv := httptest.NewServer(r)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/status")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status code = %d, want 200", resp.StatusCode)
	}
	var got StatusSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.State != scanfsm.Streaming || got.FramesReceived != 7 {
		t.Errorf("decoded status = %+v", got)
	}
}
