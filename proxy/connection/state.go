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

// Package connection implements the per-flow state machine the reactor
// drives: a Connection owns one client socket, one server socket, and the
// two directional buffers relaying bytes between them, and advances through
// a fixed sequence of states as readiness events arrive.
package connection

// State is one stage of a Connection's lifecycle. The zero value is never
// observed from outside the package: New always returns a Connection already
// in StateAccepted, matching the core's contract that a Connection is never
// registered before its client socket exists.
type State int8

const (
	StateAccepted State = iota
	StateParsed
	StateResolved
	StateConnected
	StateServerClosed
	StateClientClosed
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateAccepted:
		return "ACCEPTED"
	case StateParsed:
		return "PARSED"
	case StateResolved:
		return "RESOLVED"
	case StateConnected:
		return "CONNECTED"
	case StateServerClosed:
		return "SERVER_CLOSED"
	case StateClientClosed:
		return "CLIENT_CLOSED"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// clientOpen reports whether this state implies the client socket is open,
// per the core invariant: client open iff state is any of these five.
func (s State) clientOpen() bool {
	switch s {
	case StateAccepted, StateParsed, StateResolved, StateConnected, StateServerClosed:
		return true
	default:
		return false
	}
}

// serverOpen reports whether this state implies the server socket is open.
func (s State) serverOpen() bool {
	switch s {
	case StateConnected, StateClientClosed:
		return true
	default:
		return false
	}
}

// Side names one half of a Connection, for event dispatch and interest
// queries.
type Side uint8

const (
	SideClient Side = iota
	SideServer
)

func (s Side) String() string {
	if s == SideServer {
		return "server"
	}
	return "client"
}

// Interest is the set of I/O readiness a half currently wants registered
// with the reactor.
type Interest uint8

const (
	InterestNone  Interest = 0
	InterestRead  Interest = 1 << 0
	InterestWrite Interest = 1 << 1
)

func (i Interest) Readable() bool { return i&InterestRead != 0 }
func (i Interest) Writable() bool { return i&InterestWrite != 0 }
