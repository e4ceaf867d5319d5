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

// Package address holds the tagged address type backends and listeners are
// configured with: a Unix socket path, an IPv4 or IPv6 literal with port, or
// a bare hostname (valid only as a table pattern, never as a dial target).
package address

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"syscall"

	libptc "github.com/nabbar/sniproxy/network/protocol"
)

// Kind tags which variant an Address holds.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindUnix
	KindIPv4
	KindIPv6
	KindHostname
)

func (k Kind) String() string {
	switch k {
	case KindUnix:
		return "unix"
	case KindIPv4:
		return "ipv4"
	case KindIPv6:
		return "ipv6"
	case KindHostname:
		return "hostname"
	default:
		return "invalid"
	}
}

// Address is a tagged union over the forms a listener or backend endpoint
// can take. The zero value is KindInvalid.
type Address struct {
	kind Kind
	host string // unix: path; ip: literal; hostname: the name itself
	port uint16
}

// Kind reports which variant this Address holds.
func (a Address) Kind() Kind {
	return a.kind
}

// IsDialable reports whether this Address names a literal endpoint a
// connect(2) can target directly. Hostnames are never dialable: the core
// rejects hostname-valued backends at route time rather than resolving them.
func (a Address) IsDialable() bool {
	return a.kind == KindUnix || a.kind == KindIPv4 || a.kind == KindIPv6
}

// Host returns the address's host component: the filesystem path for Unix,
// the literal for IPv4/IPv6, or the name for a hostname pattern.
func (a Address) Host() string {
	return a.host
}

// Port returns the port component. Always zero for KindUnix.
func (a Address) Port() uint16 {
	return a.port
}

// Network returns the dial network for this Address's kind, suitable for
// net.Dial / net.Listen.
func (a Address) Network() libptc.NetworkProtocol {
	switch a.kind {
	case KindUnix:
		return libptc.NetworkUnix
	case KindIPv6:
		return libptc.NetworkTCP6
	default:
		return libptc.NetworkTCP
	}
}

// String renders the Address the way it would appear in the configuration
// grammar: "unix:<path>", "<ip>:<port>", or the bare hostname.
func (a Address) String() string {
	switch a.kind {
	case KindUnix:
		return "unix:" + a.host
	case KindIPv4:
		return net.JoinHostPort(a.host, strconv.Itoa(int(a.port)))
	case KindIPv6:
		return net.JoinHostPort(a.host, strconv.Itoa(int(a.port)))
	case KindHostname:
		return a.host
	default:
		return ""
	}
}

// DialString returns the string net.Dial expects for this Address: the
// socket path for Unix, or host:port for IPv4/IPv6.
func (a Address) DialString() string {
	if a.kind == KindUnix {
		return a.host
	}
	return net.JoinHostPort(a.host, strconv.Itoa(int(a.port)))
}

// Sockaddr builds the raw address family and syscall.Sockaddr pair a
// non-blocking connect(2)/bind(2) needs for this Address. It is an error to
// call this on a non-dialable Address.
func (a Address) Sockaddr() (domain int, sa syscall.Sockaddr, err error) {
	switch a.kind {
	case KindUnix:
		return syscall.AF_UNIX, &syscall.SockaddrUnix{Name: a.host}, nil
	case KindIPv4:
		ip := net.ParseIP(a.host).To4()
		if ip == nil {
			return 0, nil, fmt.Errorf("address: %q is not a valid IPv4 literal", a.host)
		}
		var b [4]byte
		copy(b[:], ip)
		return syscall.AF_INET, &syscall.SockaddrInet4{Port: int(a.port), Addr: b}, nil
	case KindIPv6:
		ip := net.ParseIP(a.host).To16()
		if ip == nil {
			return 0, nil, fmt.Errorf("address: %q is not a valid IPv6 literal", a.host)
		}
		var b [16]byte
		copy(b[:], ip)
		return syscall.AF_INET6, &syscall.SockaddrInet6{Port: int(a.port), Addr: b}, nil
	default:
		return 0, nil, fmt.Errorf("address: %s is not dialable", a.kind)
	}
}

// NewUnix returns a KindUnix Address for the given socket path.
func NewUnix(path string) Address {
	return Address{kind: KindUnix, host: path}
}

// NewHostname returns a KindHostname Address: a table pattern, never a dial
// target.
func NewHostname(name string) Address {
	return Address{kind: KindHostname, host: strings.ToLower(name)}
}

// Parse interprets one configuration-grammar address token: "unix:<path>",
// an IPv4 or IPv6 literal (with an optional port argument as a fallback),
// or a bare hostname. defaultPort is used when the token carries no port of
// its own and the caller expects a dialable result.
func Parse(token string, defaultPort uint16) (Address, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Address{}, fmt.Errorf("address: empty token")
	}

	if strings.HasPrefix(token, "unix:") {
		return NewUnix(strings.TrimPrefix(token, "unix:")), nil
	}

	host, portStr, err := net.SplitHostPort(token)
	if err != nil {
		// No port in the token; treat the whole thing as a host and fall
		// back to defaultPort.
		host = token
		portStr = ""
	}

	port := defaultPort
	if portStr != "" {
		p, e := strconv.ParseUint(portStr, 10, 16)
		if e != nil {
			return Address{}, fmt.Errorf("address: invalid port in %q: %w", token, e)
		}
		port = uint16(p)
	}

	if ip := net.ParseIP(host); ip != nil {
		if ip.To4() != nil {
			return Address{kind: KindIPv4, host: ip.String(), port: port}, nil
		}
		return Address{kind: KindIPv6, host: ip.String(), port: port}, nil
	}

	return Address{kind: KindHostname, host: strings.ToLower(host), port: port}, nil
}
