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
	"errors"
	"syscall"

	"github.com/nabbar/sniproxy/proxy/address"
)

// errNoHostname marks a parse outcome of NoHostname or Malformed, for the
// log line emitted when no fallback is configured to absorb it.
var errNoHostname = errors.New("connection: no hostname extracted and no fallback configured")

// dialNonBlocking opens a non-blocking stream socket to addr and issues
// connect(2). A nil error with inProgress true means the connect is under
// way and completion must be confirmed by a subsequent writable event (see
// connectError). A nil error with inProgress false means the connect
// completed synchronously (typical for Unix domain sockets). Any other
// error is an immediate, final failure and fd is invalid.
func dialNonBlocking(addr address.Address) (fd int, inProgress bool, err error) {
	domain, sa, err := addr.Sockaddr()
	if err != nil {
		return -1, false, err
	}

	fd, err = syscall.Socket(domain, syscall.SOCK_STREAM, 0)
	if err != nil {
		return -1, false, err
	}

	if err = syscall.SetNonblock(fd, true); err != nil {
		_ = syscall.Close(fd)
		return -1, false, err
	}

	err = syscall.Connect(fd, sa)
	if err == nil {
		return fd, false, nil
	}
	if err == syscall.EINPROGRESS {
		return fd, true, nil
	}

	_ = syscall.Close(fd)
	return -1, false, err
}

// connectError resolves a pending non-blocking connect once its socket
// reports writable, via getsockopt(SO_ERROR). A nil return means the
// connect succeeded.
func connectError(fd int) error {
	errno, err := syscall.GetsockoptInt(fd, syscall.SOL_SOCKET, syscall.SO_ERROR)
	if err != nil {
		return err
	}
	if errno != 0 {
		return syscall.Errno(errno)
	}
	return nil
}
