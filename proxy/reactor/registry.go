/*
 * MIT License
 *
 * Copyright (c) 2022 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Package reactor drives the single-threaded event loop: it owns the
// connection registry and the epoll instance, dispatches readiness events to
// the right Connection half, keeps each socket's registered interest in
// sync with what the Connection currently wants, and retires connections
// that reach CLOSED.
package reactor

import (
	"container/list"
	"fmt"
	"io"

	"github.com/nabbar/sniproxy/proxy/connection"
)

// Registry is an explicit, owned collection of live Connections, replacing
// the source's file-static intrusive list (see the design notes on why a
// reimplementation should make the registry a value the driver holds
// rather than process-global state). New connections are inserted at the
// head; Touch moves a connection to the head on activity, leaving the tail
// as a least-recently-active ordering an idle reaper could walk.
type Registry struct {
	l *list.List
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{l: list.New()}
}

// Insert adds c at the head of the registry and records its list element on
// c.Elem so future Touch/Remove calls are O(1).
func (r *Registry) Insert(c *connection.Connection) {
	c.Elem = r.l.PushFront(c)
}

// Touch moves c to the head, marking it most-recently-active. A no-op if c
// was never inserted.
func (r *Registry) Touch(c *connection.Connection) {
	if c.Elem == nil {
		return
	}
	r.l.MoveToFront(c.Elem)
}

// Remove drops c from the registry. A no-op if c was never inserted or was
// already removed.
func (r *Registry) Remove(c *connection.Connection) {
	if c.Elem == nil {
		return
	}
	r.l.Remove(c.Elem)
	c.Elem = nil
}

// Len returns the number of live connections.
func (r *Registry) Len() int {
	return r.l.Len()
}

// Walk calls fn for every Connection, head (most-recently-active) to tail
// (least-recently-active). fn must not mutate the registry.
func (r *Registry) Walk(fn func(*connection.Connection)) {
	for e := r.l.Front(); e != nil; e = e.Next() {
		fn(e.Value.(*connection.Connection))
	}
}

// Oldest returns the tail entry — the least-recently-active Connection — or
// nil if the registry is empty. This is the extension point §9 and §5
// describe for an idle reaper; the core itself never evicts on idleness.
func (r *Registry) Oldest() *connection.Connection {
	e := r.l.Back()
	if e == nil {
		return nil
	}
	return e.Value.(*connection.Connection)
}

// dump writes one human-readable line per live connection to w, head to
// tail, per spec.md §6's debug-dump interface: each line encodes state and
// per-half buffer occupancy.
func (r *Registry) dump(w io.Writer) error {
	i := 0
	for e := r.l.Front(); e != nil; e = e.Next() {
		c := e.Value.(*connection.Connection)
		cr, cs, cb := c.Stats(connection.SideClient)
		sr, ss, sb := c.Stats(connection.SideServer)

		_, err := fmt.Fprintf(w,
			"%d state=%s peer=%s backend=%s hostname=%q client(recv=%d sent=%d buffered=%d) server(recv=%d sent=%d buffered=%d)\n",
			i, c.State(), c.PeerAddress().String(), c.BackendAddress().String(), c.Hostname(),
			cr, cs, cb, sr, ss, sb,
		)
		if err != nil {
			return err
		}
		i++
	}
	return nil
}

// FreeAll implements §4.5's shutdown path: force-close every Connection and
// empty the registry. Safe to call after the reactor has stopped
// dispatching events.
func (r *Registry) FreeAll() {
	for e := r.l.Front(); e != nil; {
		next := e.Next()
		c := e.Value.(*connection.Connection)
		c.Shutdown()
		c.Elem = nil
		r.l.Remove(e)
		e = next
	}
}
