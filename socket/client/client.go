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

// Package client implements socket.Client over plain TCP, UDP and Unix
// dial-out sockets, with an optional TLS handshake for stream transports.
package client

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"sync"

	libptc "github.com/nabbar/sniproxy/network/protocol"
	libsck "github.com/nabbar/sniproxy/socket"
	sckcfg "github.com/nabbar/sniproxy/socket/config"
)

type client struct {
	m sync.Mutex
	c sckcfg.Client
	t *tls.Config
	n net.Conn
}

// New returns a socket.Client for the given configuration. The connection is
// not established until Connect is called. A non-nil tlsConfig is only
// honored for stream-oriented networks (tcp*, unix).
func New(cfg sckcfg.Client, tlsConfig *tls.Config) (libsck.Client, error) {
	if cfg.Network == libptc.NetworkEmpty {
		return nil, fmt.Errorf("socket/client: network protocol is required")
	} else if cfg.Address == "" {
		return nil, fmt.Errorf("socket/client: address is required")
	}

	return &client{
		c: cfg,
		t: tlsConfig,
	}, nil
}

func (c *client) Connect(ctx context.Context) error {
	c.m.Lock()
	defer c.m.Unlock()

	if c.n != nil {
		_ = c.n.Close()
		c.n = nil
	}

	d := &net.Dialer{}
	n, err := d.DialContext(ctx, c.c.Network.String(), c.c.Address)
	if err != nil {
		return err
	}

	if c.c.TLS.Enabled && !c.c.Network.IsUnix() {
		cfg := c.t
		if cfg == nil {
			cfg = &tls.Config{}
		}
		if cfg.ServerName == "" && c.c.TLS.ServerName != "" {
			cfg = cfg.Clone()
			cfg.ServerName = c.c.TLS.ServerName
		}
		n = tls.Client(n, cfg)
	}

	c.n = n
	return nil
}

func (c *client) Write(p []byte) (int, error) {
	c.m.Lock()
	n := c.n
	c.m.Unlock()

	if n == nil {
		return 0, fmt.Errorf("socket/client: not connected")
	}

	return n.Write(p)
}

func (c *client) Close() error {
	c.m.Lock()
	defer c.m.Unlock()

	if c.n == nil {
		return nil
	}

	err := c.n.Close()
	c.n = nil
	return err
}
