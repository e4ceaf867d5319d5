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

// Package buffer implements the fixed-capacity ring buffer each half of a
// proxied connection uses to stage bytes between the socket and the peer.
package buffer

import (
	"errors"
	"syscall"
)

// DefaultCapacity is the ring size New uses for a non-positive capacity. At
// 16 KiB it holds the parser's 1460-byte peek window many times over.
const DefaultCapacity = 16 * 1024

// ErrWouldBlock is returned by Recv/Send when the underlying syscall reports
// EAGAIN, EWOULDBLOCK, or EINTR: the caller should simply wait for the next
// readiness event and retry. It is distinct from the (0, nil) a true peer EOF
// produces, so half-close detection never mistakes one for the other.
var ErrWouldBlock = errors.New("buffer: operation would block")

// Buffer is a byte ring of fixed capacity. It is not safe for concurrent use;
// callers own it exclusively for the lifetime of one connection half.
type Buffer struct {
	data []byte
	head int // next byte to read
	tail int // next free slot to write
	len  int // pending bytes
}

// New allocates a Buffer with the given capacity. A non-positive capacity is
// replaced with DefaultCapacity.
func New(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Buffer{data: make([]byte, capacity)}
}

// Len returns the number of pending (unsent) bytes.
func (b *Buffer) Len() int {
	return b.len
}

// Room returns the number of bytes that can still be received.
func (b *Buffer) Room() int {
	return len(b.data) - b.len
}

// Cap returns the buffer's fixed capacity.
func (b *Buffer) Cap() int {
	return len(b.data)
}

// Empty reports whether there are no pending bytes.
func (b *Buffer) Empty() bool {
	return b.len == 0
}

// Full reports whether there is no room left to receive.
func (b *Buffer) Full() bool {
	return b.len == len(b.data)
}

// Peek copies up to min(n, Len()) pending bytes into dst without consuming
// them. Calling Peek repeatedly returns the same prefix until Recv or Send
// advances the cursors.
func (b *Buffer) Peek(dst []byte, n int) int {
	if n > b.len {
		n = b.len
	}
	if n > len(dst) {
		n = len(dst)
	}
	if n <= 0 {
		return 0
	}

	first := len(b.data) - b.head
	if first > n {
		first = n
	}
	copy(dst[:first], b.data[b.head:b.head+first])
	if first < n {
		copy(dst[first:n], b.data[:n-first])
	}
	return n
}

// discard advances the read cursor by n bytes without copying, used after a
// successful Send.
func (b *Buffer) discard(n int) {
	b.head = (b.head + n) % len(b.data)
	b.len -= n
}

// Recv issues a single non-blocking read on fd, sized to the current room,
// and appends whatever was read. It returns the byte count, (0, nil) on peer
// EOF, (0, ErrWouldBlock) if the socket had nothing ready, or a negative
// value with the underlying error on fatal failure. A zero room is a no-op
// that returns (0, nil) without reading, which is the same pair a peer EOF
// produces.
func (b *Buffer) Recv(fd int) (int, error) {
	room := b.Room()
	if room <= 0 {
		return 0, nil
	}

	first := len(b.data) - b.tail
	if first > room {
		first = room
	}

	n, err := syscall.Read(fd, b.data[b.tail:b.tail+first])
	if n > 0 {
		b.tail = (b.tail + n) % len(b.data)
		b.len += n
	}

	if err != nil {
		if isTemporary(err) {
			return 0, ErrWouldBlock
		}
		return -1, err
	}

	return n, nil
}

// Send issues a single non-blocking write of the pending prefix on fd and
// consumes whatever was written. It returns the byte count written, (0,
// ErrWouldBlock) if the socket could not accept any bytes right now, or a
// negative value with the underlying error on fatal failure.
func (b *Buffer) Send(fd int) (int, error) {
	if b.len == 0 {
		return 0, nil
	}

	first := len(b.data) - b.head
	if first > b.len {
		first = b.len
	}

	n, err := syscall.Write(fd, b.data[b.head:b.head+first])
	if n > 0 {
		b.discard(n)
	}

	if err != nil {
		if isTemporary(err) {
			return 0, ErrWouldBlock
		}
		return -1, err
	}

	return n, nil
}

// isTemporary reports whether err is one of the transient conditions the
// caller should simply retry on the next readiness event.
func isTemporary(err error) bool {
	errno, ok := err.(syscall.Errno)
	if !ok {
		return false
	}
	return errno == syscall.EAGAIN || errno == syscall.EWOULDBLOCK || errno == syscall.EINTR
}
