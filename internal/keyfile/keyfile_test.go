// Copyright 2016 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package keyfile

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadReadsInitialContents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "key.bin")
	if err := os.WriteFile(path, []byte("initial-secret"), 0o600); err != nil {
		t.Fatal(err)
	}
	w, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(w.Key(), []byte("initial-secret")) {
		t.Errorf("Key() = %q, want %q", w.Key(), "initial-secret")
	}
}

func TestLoadMissingFileErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.bin")); err == nil {
		t.Error("Load of a missing file should error")
	}
}

func TestKeyReturnsIndependentCopy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "key.bin")
	if err := os.WriteFile(path, []byte("abc"), 0o600); err != nil {
		t.Fatal(err)
	}
	w, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	k := w.Key()
	k[0] = 'z'
	if w.Key()[0] != 'a' {
		t.Error("mutating the returned key slice should not affect the Watcher's internal state")
	}
}

func TestWatchReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "key.bin")
	if err := os.WriteFile(path, []byte("v1"), 0o600); err != nil {
		t.Fatal(err)
	}
	w, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	go w.Watch()

	if err := os.WriteFile(path, []byte("v2"), 0o600); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if bytes.Equal(w.Key(), []byte("v2")) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("Key() never reloaded to v2, still %q", w.Key())
}
