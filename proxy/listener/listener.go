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

// Package listener binds the accept socket a reactor polls for incoming
// connections: a bound address, a non-blocking accept handler, the protocol
// parser chosen for it, and the routing table (plus optional fallback
// backend) consulted once a hostname is extracted.
package listener

import (
	"fmt"
	"net"
	"syscall"

	"github.com/nabbar/sniproxy/proxy/address"
	"github.com/nabbar/sniproxy/proxy/parser"
	"github.com/nabbar/sniproxy/proxy/table"
)

// Protocol selects which dissector a Listener binds.
type Protocol uint8

const (
	ProtocolTLS Protocol = iota
	ProtocolHTTP
)

func (p Protocol) String() string {
	if p == ProtocolHTTP {
		return "http"
	}
	return "tls"
}

// Listener owns one bound, listening, non-blocking accept socket.
type Listener struct {
	addr     address.Address
	fd       int
	proto    Protocol
	parse    parser.Func
	tbl      *table.Table
	fallback *address.Address
}

// New binds and listens on addr, and returns a Listener ready to be
// registered with a reactor's epoll instance. addr must be dialable
// (Unix, IPv4, or IPv6); backlog of 0 uses syscall.SOMAXCONN.
func New(addr address.Address, proto Protocol, tbl *table.Table, fallback *address.Address, backlog int) (*Listener, error) {
	if !addr.IsDialable() {
		return nil, fmt.Errorf("listener: %s is not a bindable address", addr.String())
	}

	domain, sa, err := addr.Sockaddr()
	if err != nil {
		return nil, err
	}

	fd, err := syscall.Socket(domain, syscall.SOCK_STREAM, 0)
	if err != nil {
		return nil, err
	}

	if domain != syscall.AF_UNIX {
		_ = syscall.SetsockoptInt(fd, syscall.SOL_SOCKET, syscall.SO_REUSEADDR, 1)
	}

	if err = syscall.Bind(fd, sa); err != nil {
		_ = syscall.Close(fd)
		return nil, err
	}

	if backlog <= 0 {
		backlog = syscall.SOMAXCONN
	}
	if err = syscall.Listen(fd, backlog); err != nil {
		_ = syscall.Close(fd)
		return nil, err
	}
	if err = syscall.SetNonblock(fd, true); err != nil {
		_ = syscall.Close(fd)
		return nil, err
	}

	l := &Listener{addr: addr, fd: fd, proto: proto, tbl: tbl, fallback: fallback}
	switch proto {
	case ProtocolHTTP:
		l.parse = parser.ParseHTTP
	default:
		l.parse = parser.ParseTLS
	}
	return l, nil
}

// FD returns the accept socket descriptor, for epoll registration.
func (l *Listener) FD() int { return l.fd }

// Protocol reports which dissector this Listener binds.
func (l *Listener) Protocol() Protocol { return l.proto }

// Parser satisfies connection.Listener.
func (l *Listener) Parser() parser.Func { return l.parse }

// Table satisfies connection.Listener.
func (l *Listener) Table() *table.Table { return l.tbl }

// Fallback satisfies connection.Listener.
func (l *Listener) Fallback() *address.Address { return l.fallback }

// Address satisfies connection.Listener.
func (l *Listener) Address() address.Address { return l.addr }

// Close releases the accept socket.
func (l *Listener) Close() error {
	return syscall.Close(l.fd)
}

// Accept accepts one pending connection. A nil error means fd and peer are
// valid and fd has been set non-blocking; syscall.EAGAIN means the accept
// queue is currently empty (the caller's level-triggered epoll event will
// fire again if another connection is already pending).
func (l *Listener) Accept() (fd int, peer address.Address, err error) {
	nfd, sa, err := syscall.Accept(l.fd)
	if err != nil {
		return -1, address.Address{}, err
	}
	if err = syscall.SetNonblock(nfd, true); err != nil {
		_ = syscall.Close(nfd)
		return -1, address.Address{}, err
	}
	return nfd, sockaddrToAddress(sa), nil
}

func sockaddrToAddress(sa syscall.Sockaddr) address.Address {
	switch v := sa.(type) {
	case *syscall.SockaddrInet4:
		ip := net.IP(v.Addr[:]).String()
		a, _ := address.Parse(net.JoinHostPort(ip, fmt.Sprint(v.Port)), uint16(v.Port))
		return a
	case *syscall.SockaddrInet6:
		ip := net.IP(v.Addr[:]).String()
		a, _ := address.Parse(net.JoinHostPort(ip, fmt.Sprint(v.Port)), uint16(v.Port))
		return a
	case *syscall.SockaddrUnix:
		return address.NewUnix(v.Name)
	default:
		return address.Address{}
	}
}
