// Copyright 2016 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package keyfile watches the on-disk HMAC shared secret for changes,
// mirroring the teacher's cmd/lepton/watch_linux.go binary self-watch idiom
// but reloading a key instead of restarting a process.
package keyfile

import (
	"io/ioutil"
	"log"
	"sync"

	"github.com/maruel/interrupt"
	fsnotify "gopkg.in/fsnotify.v1"
)

// Watcher holds the current command protocol HMAC key, reloaded whenever
// the backing file changes on disk.
type Watcher struct {
	path string
	mu   sync.RWMutex
	key  []byte
}

// Load reads path once and returns a Watcher holding its contents.
func Load(path string) (*Watcher, error) {
	b, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return &Watcher{path: path, key: b}, nil
}

// Key returns the current key bytes. Safe for concurrent use with Watch's
// reloads.
func (w *Watcher) Key() []byte {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]byte, len(w.key))
	copy(out, w.key)
	return out
}

// Watch blocks, reloading the key file on every write event until
// interrupt.Channel fires or the watcher errors out, following the same
// select-loop shape as watchFile in the teacher's cmd/lepton package.
func (w *Watcher) Watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	if err := watcher.Add(w.path); err != nil {
		return err
	}
	for {
		select {
		case <-interrupt.Channel:
			return nil
		case err := <-watcher.Errors:
			return err
		case ev := <-watcher.Events:
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			b, err := ioutil.ReadFile(w.path)
			if err != nil {
				log.Printf("keyfile: reload %s failed: %s", w.path, err)
				continue
			}
			w.mu.Lock()
			w.key = b
			w.mu.Unlock()
			log.Printf("keyfile: reloaded %s", w.path)
		}
	}
}
