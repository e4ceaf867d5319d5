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

package server

import (
	"net"
	"sync"
)

// packetContext adapts a net.PacketConn to socket.Context, remembering the
// address of the last datagram's sender so Write can reply to it.
type packetContext struct {
	pc net.PacketConn

	mu   sync.Mutex
	last net.Addr
	err  error
}

func (c *packetContext) Read(p []byte) (int, error) {
	n, addr, err := c.pc.ReadFrom(p)

	c.mu.Lock()
	if addr != nil {
		c.last = addr
	}
	if err != nil {
		c.err = err
	}
	c.mu.Unlock()

	return n, err
}

func (c *packetContext) Write(p []byte) (int, error) {
	c.mu.Lock()
	addr := c.last
	c.mu.Unlock()

	if addr == nil {
		return 0, net.ErrClosed
	}

	return c.pc.WriteTo(p, addr)
}

func (c *packetContext) Close() error {
	return c.pc.Close()
}

func (c *packetContext) lastErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}
