// Copyright 2015 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package cmdhost implements the command protocol's dispatch side: the
// replay-protected, HMAC-authenticated request handler that drives the
// scan FSM (§4.G), plus a small HTTP/WebSocket status dashboard built on
// the same shape as the teacher's cmd/lepton/server.go WebServer.
package cmdhost

import "sync"

// MaxClients bounds the replay-guard client map, per §3.
const MaxClients = 16

type clientEntry struct {
	lastSeq  uint32
	lastUsed int64
	// firstContact marks a client that has not yet had any sequence number
	// accepted. Per §6 "Persisted state", a server that reboots with an
	// empty client map accepts any sequence number from a never-seen source
	// and latches it, rather than requiring sequence 1.
	firstContact bool
}

// ClientTable is the per-source-identity replay guard described in §3
// "Client state". Capacity MaxClients; on overflow the least-recently-used
// entry is evicted.
type ClientTable struct {
	mu       sync.Mutex
	capacity int
	clients  map[string]*clientEntry
}

// NewClientTable returns an empty ClientTable with the given capacity (use
// MaxClients for the spec default).
func NewClientTable(capacity int) *ClientTable {
	return &ClientTable{capacity: capacity, clients: make(map[string]*clientEntry)}
}

// checkLocked reports whether seq is acceptable for source at time now,
// allocating a fresh entry (evicting LRU if full) if source is unseen.
// Must be called with c.mu held.
func (c *ClientTable) checkLocked(source string, seq uint32, now int64) (ok bool, entry *clientEntry) {
	e, ok2 := c.clients[source]
	if !ok2 {
		if len(c.clients) >= c.capacity {
			c.evictLRULocked()
		}
		e = &clientEntry{firstContact: true}
		c.clients[source] = e
	}
	e.lastUsed = now
	if e.firstContact {
		return true, e
	}
	return seq > e.lastSeq, e
}

// Check reports whether seq is acceptable (strictly greater than the
// stored last_seq for source, or source's first contact), per §4.G step 3.
// It never changes the stored last_seq, but it does allocate an entry for an
// unseen source (evicting the LRU entry if full) and refresh its last-used
// time.
func (c *ClientTable) Check(source string, seq uint32, now int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	ok, _ := c.checkLocked(source, seq, now)
	return ok
}

// Advance stores seq as source's new last_seq. Called only on successful
// dispatch, per §4.G step 6 / §3 "The stored value advances on successful
// dispatch only".
func (c *ClientTable) Advance(source string, seq uint32, now int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, e := c.checkLocked(source, seq, now)
	e.lastSeq = seq
	e.firstContact = false
	e.lastUsed = now
}

func (c *ClientTable) evictLRULocked() {
	var oldestSrc string
	var oldestTs int64
	first := true
	for src, e := range c.clients {
		if first || e.lastUsed < oldestTs {
			oldestSrc, oldestTs, first = src, e.lastUsed, false
		}
	}
	if !first {
		delete(c.clients, oldestSrc)
	}
}
