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

// Package socket defines the minimal client and server contracts shared by
// the transports under socket/client and socket/server.
package socket

import (
	"context"
	"io"
)

// Client is a dial-on-demand network endpoint: a thin wrapper over net.Conn
// that knows how to (re)connect to the configured address.
type Client interface {
	io.WriteCloser

	// Connect dials the configured endpoint. Calling Connect on an already
	// connected Client redials it.
	Connect(ctx context.Context) error
}

// Context is one accepted peer: a stream connection or a single datagram
// source, handed to the server's Handler.
type Context interface {
	io.ReadWriteCloser
}

// Handler processes one accepted Context. For stream transports it is
// invoked once per accepted connection; for datagram transports it is
// invoked once for the lifetime of the listener.
type Handler func(c Context)

// Server accepts connections or datagrams on a bound address and dispatches
// each to the configured Handler.
type Server interface {
	// Listen binds the configured address and blocks, serving until ctx is
	// cancelled or Close is called.
	Listen(ctx context.Context) error

	// Close stops accepting new peers and unblocks Listen.
	Close() error

	// IsRunning reports whether Listen is currently serving.
	IsRunning() bool

	// IsGone reports whether the server has been closed and will not serve
	// again.
	IsGone() bool

	// OpenConnections reports the number of peers currently being handled by
	// stream-oriented servers. Datagram servers always report zero.
	OpenConnections() int64
}
