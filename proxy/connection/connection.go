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

package connection

import (
	"container/list"
	"syscall"

	liblog "github.com/nabbar/sniproxy/logger"
	"github.com/nabbar/sniproxy/proxy/address"
	"github.com/nabbar/sniproxy/proxy/buffer"
	"github.com/nabbar/sniproxy/proxy/parser"
	"github.com/nabbar/sniproxy/proxy/table"
)

// half is one directional endpoint of a Connection: a descriptor, the
// address it was accepted from or dialed to, and the ring buffer staging
// bytes in the direction this half receives.
type half struct {
	fd         int
	addr       address.Address
	buf        *buffer.Buffer
	connecting bool // server half only: non-blocking connect awaiting completion

	recvN uint64
	sentN uint64
}

// Connection is the per-flow state machine described by the core: it owns
// both sockets, both buffers, and advances through State as readiness
// events are delivered by the reactor. It is not safe for concurrent use;
// the reactor that owns it serializes all access via single-threaded
// dispatch.
type Connection struct {
	state    State
	client   half
	server   half
	hostname string
	listener Listener
	log      liblog.FuncLog

	// Elem is the registry's list element for this Connection, set by
	// whoever inserts it. The registry performs head-insertion and
	// move-to-head-on-activity; Connection itself never touches Elem.
	Elem *list.Element
}

// New constructs a Connection already in StateAccepted around an
// already-accepted, non-blocking-capable client descriptor. The core never
// represents a pre-accept NEW state explicitly: per the design notes, a
// Connection is never inserted into a registry before its client socket
// exists.
func New(clientFd int, peer address.Address, l Listener, bufCap int, log liblog.FuncLog) *Connection {
	_ = syscall.SetNonblock(clientFd, true)

	c := &Connection{
		state:    StateAccepted,
		listener: l,
		log:      log,
	}
	c.client.fd = clientFd
	c.client.addr = peer
	c.client.buf = buffer.New(bufCap)
	c.server.buf = buffer.New(bufCap)
	return c
}

// State returns the Connection's current stage.
func (c *Connection) State() State {
	return c.state
}

// Hostname returns the hostname extracted from the client's handshake, or
// "" if none was found and a fallback address is being used instead.
func (c *Connection) Hostname() string {
	return c.hostname
}

// PeerAddress returns the address the client connection was accepted from.
func (c *Connection) PeerAddress() address.Address {
	return c.client.addr
}

// BackendAddress returns the address the server half was (or is being)
// dialed to. The zero Address until RESOLVED.
func (c *Connection) BackendAddress() address.Address {
	return c.server.addr
}

// ClientFD returns the client descriptor, or -1 if the client half is
// closed. Openness is derived from state, per §9's design note, rather than
// tracked as a separate flag that could drift out of sync with it.
func (c *Connection) ClientFD() int {
	if !c.state.clientOpen() {
		return -1
	}
	return c.client.fd
}

// ServerFD returns the server descriptor, or -1 if the server half does not
// exist yet or has been closed.
func (c *Connection) ServerFD() int {
	if !c.state.serverOpen() {
		return -1
	}
	return c.server.fd
}

// Stats reports the conservation counters for one half: bytes received into
// its buffer, bytes sent out of it to the peer descriptor, and bytes still
// pending. recv always equals sent+buffered.
func (c *Connection) Stats(side Side) (recv, sent uint64, buffered int) {
	h := c.half(side)
	return h.recvN, h.sentN, h.buf.Len()
}

func (c *Connection) half(side Side) *half {
	if side == SideServer {
		return &c.server
	}
	return &c.client
}

// Interest reports the readiness a half currently wants registered with the
// reactor, per §4.3: read iff the inbound buffer has room and the state
// still accepts inbound data on that side; write iff the outbound buffer
// (or a pending non-blocking connect) demands it.
func (c *Connection) Interest(side Side) Interest {
	if side == SideServer {
		return c.serverInterest()
	}
	return c.clientInterest()
}

func (c *Connection) clientInterest() Interest {
	if !c.state.clientOpen() {
		return InterestNone
	}
	var i Interest
	switch c.state {
	case StateAccepted, StateConnected:
		if c.client.buf.Room() > 0 {
			i |= InterestRead
		}
	}
	if c.server.buf.Len() > 0 {
		i |= InterestWrite
	}
	return i
}

func (c *Connection) serverInterest() Interest {
	if !c.state.serverOpen() {
		return InterestNone
	}
	var i Interest
	if c.server.connecting {
		i |= InterestWrite
	}
	if c.state == StateConnected {
		if c.server.buf.Room() > 0 {
			i |= InterestRead
		}
	}
	if c.client.buf.Len() > 0 {
		i |= InterestWrite
	}
	return i
}

// Shutdown forces both halves closed regardless of current state and
// transitions directly to StateClosed, for §4.5's teardown path: after the
// reactor has stopped dispatching events, every remaining Connection is
// closed unconditionally rather than drained.
func (c *Connection) Shutdown() {
	if c.state.serverOpen() {
		closeHalf(&c.server)
	}
	if c.state.clientOpen() {
		closeHalf(&c.client)
	}
	c.state = StateClosed
}

// IsClosed reports whether the Connection has reached its terminal state.
// The registry removes and destroys a Connection exactly when this becomes
// true.
func (c *Connection) IsClosed() bool {
	return c.state == StateClosed
}

// OnReadable services a readiness event signalling side is readable.
func (c *Connection) OnReadable(side Side) error {
	if c.state == StateClosed {
		return nil
	}
	if side == SideServer {
		return c.handleServerReadable()
	}
	return c.handleClientReadable()
}

// OnWritable services a readiness event signalling side is writable.
func (c *Connection) OnWritable(side Side) error {
	if c.state == StateClosed {
		return nil
	}
	if side == SideServer {
		return c.handleServerWritable()
	}
	return c.handleClientWritable()
}

func (c *Connection) handleClientReadable() error {
	switch c.state {
	case StateAccepted:
		return c.onAcceptedReadable()
	case StateConnected:
		eof, err := c.recvInto(&c.client)
		if eof {
			return c.logAndClose("client recv", err, c.enterClientClosed)
		}
		return c.flushClientToServer()
	default:
		// ACCEPTED-only stages already folded PARSED/RESOLVED into one
		// callback pass; SERVER_CLOSED/CLIENT_CLOSED no longer read from
		// the client (see clientInterest), so nothing to do here.
		return nil
	}
}

func (c *Connection) handleClientWritable() error {
	switch c.state {
	case StateConnected, StateServerClosed:
		return c.flushServerToClient()
	default:
		return nil
	}
}

func (c *Connection) handleServerReadable() error {
	if c.state != StateConnected {
		return nil
	}
	eof, err := c.recvInto(&c.server)
	if eof {
		return c.logAndClose("server recv", err, c.enterServerClosed)
	}
	return c.flushServerToClient()
}

func (c *Connection) handleServerWritable() error {
	if c.server.connecting {
		if err := connectError(c.server.fd); err != nil {
			return c.logAndClose("connect", err, c.enterServerClosed)
		}
		c.server.connecting = false
		// Fall through: any client bytes already peeked/buffered during
		// ACCEPTED are still sitting in client.buf and can go out now.
	}
	switch c.state {
	case StateConnected, StateClientClosed:
		return c.flushClientToServer()
	default:
		return nil
	}
}

// onAcceptedReadable drains the client socket into the client buffer, then
// attempts to parse/resolve/connect in the same pass, per §5's ordering
// guarantee that a single callback may traverse several states.
func (c *Connection) onAcceptedReadable() error {
	eof, err := c.recvInto(&c.client)
	if eof {
		if err != nil {
			c.logError("client recv", err)
		}
		return c.failPreConnect()
	}

	var window [parser.PeekWindow]byte
	n := c.client.buf.Peek(window[:], len(window))
	name, res := c.listener.Parser()(window[:n])

	switch {
	case res == parser.Incomplete:
		return nil
	case res.Success():
		c.hostname = name
		c.state = StateParsed
		return c.advanceFromParsed()
	default:
		return c.advanceWithFallback()
	}
}

// advanceWithFallback implements the resolution of Open Question #1 in the
// design notes: "use fallback" is its own explicit outcome, not signalled by
// leaving hostname null. A parser result of NoHostname or Malformed, absent
// a configured fallback, closes the client.
func (c *Connection) advanceWithFallback() error {
	fb := c.listener.Fallback()
	if fb == nil {
		c.logError("parse", errNoHostname)
		return c.failPreConnect()
	}
	c.hostname = ""
	c.server.addr = *fb
	c.state = StateResolved
	return c.connectStep()
}

func (c *Connection) advanceFromParsed() error {
	addr, err := table.Resolve(c.listener.Table(), c.hostname, c.listener.Fallback())
	if err != nil {
		c.logError("route", err)
		return c.failPreConnect()
	}
	c.server.addr = addr
	c.state = StateResolved
	return c.connectStep()
}

func (c *Connection) connectStep() error {
	fd, inProgress, err := dialNonBlocking(c.server.addr)
	if err != nil {
		c.logError("connect", err)
		return c.enterServerClosed()
	}
	c.server.fd = fd
	c.server.connecting = inProgress
	c.state = StateConnected

	if !inProgress {
		return c.flushClientToServer()
	}
	return nil
}

func (c *Connection) recvInto(h *half) (eof bool, err error) {
	n, e := h.buf.Recv(h.fd)
	switch {
	case e == buffer.ErrWouldBlock:
		return false, nil
	case e != nil:
		return true, e
	case n == 0:
		return true, nil
	default:
		h.recvN += uint64(n)
		return false, nil
	}
}

func (c *Connection) sendOut(h *half, dstFD int) error {
	if h.buf.Empty() {
		return nil
	}
	n, err := h.buf.Send(dstFD)
	switch {
	case err == buffer.ErrWouldBlock:
		return nil
	case err != nil:
		return err
	default:
		h.sentN += uint64(n)
		return nil
	}
}

func (c *Connection) flushClientToServer() error {
	if !c.state.serverOpen() || c.server.connecting {
		return nil
	}
	if err := c.sendOut(&c.client, c.server.fd); err != nil {
		return c.logAndClose("server send", err, c.enterServerClosed)
	}
	if c.state == StateClientClosed && c.client.buf.Empty() {
		return c.finishClientClosed()
	}
	return nil
}

func (c *Connection) flushServerToClient() error {
	if !c.state.clientOpen() {
		return nil
	}
	if err := c.sendOut(&c.server, c.client.fd); err != nil {
		return c.logAndClose("client send", err, c.enterClientClosed)
	}
	if c.state == StateServerClosed && c.server.buf.Empty() {
		return c.finishServerClosed()
	}
	return nil
}

// failPreConnect implements the "any pre-CONNECTED failure" row: only the
// client socket can possibly be open this early, so it is the only one
// closed.
func (c *Connection) failPreConnect() error {
	if c.state.clientOpen() {
		closeHalf(&c.client)
	}
	c.state = StateClosed
	return nil
}

// enterServerClosed closes the server half (a no-op if it was never
// opened, e.g. on an immediate connect failure) and either finishes
// immediately, if nothing remains to deliver to the client, or waits in
// StateServerClosed for the server buffer to drain.
func (c *Connection) enterServerClosed() error {
	if c.state.serverOpen() {
		closeHalf(&c.server)
	}
	if c.server.buf.Empty() {
		if c.state.clientOpen() {
			closeHalf(&c.client)
		}
		c.state = StateClosed
		return nil
	}
	c.state = StateServerClosed
	return nil
}

func (c *Connection) finishServerClosed() error {
	if c.state.clientOpen() {
		closeHalf(&c.client)
	}
	c.state = StateClosed
	return nil
}

// enterClientClosed closes the client half and either finishes immediately
// or waits in StateClientClosed for the client buffer to drain to the
// server.
func (c *Connection) enterClientClosed() error {
	if c.state.clientOpen() {
		closeHalf(&c.client)
	}
	if c.client.buf.Empty() {
		if c.state.serverOpen() {
			closeHalf(&c.server)
		}
		c.state = StateClosed
		return nil
	}
	c.state = StateClientClosed
	return nil
}

func (c *Connection) finishClientClosed() error {
	if c.state.serverOpen() {
		closeHalf(&c.server)
	}
	c.state = StateClosed
	return nil
}

// closeHalf closes h's descriptor. Callers must check state.clientOpen()/
// serverOpen() before calling, since openness is derived from the state tag
// rather than tracked on half itself (see the design note on avoiding a
// separately-flipped flag that can drift out of sync with state).
func closeHalf(h *half) {
	_ = syscall.Close(h.fd)
	h.connecting = false
}

func (c *Connection) logAndClose(op string, err error, closeFn func() error) error {
	if err != nil {
		c.logError(op, err)
	}
	return closeFn()
}

func (c *Connection) logError(op string, err error) {
	if c.log == nil {
		return
	}
	l := c.log()
	if l == nil {
		return
	}
	l.Error("connection: "+op, err, "peer", c.client.addr.String(), "state", c.state.String())
}
