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

// Package server implements socket.Server over plain TCP/Unix stream
// listeners and Unix/UDP datagram sockets.
package server

import (
	"context"
	"fmt"
	"net"
	"os"
	"sync"
	"sync/atomic"

	libptc "github.com/nabbar/sniproxy/network/protocol"
	libsck "github.com/nabbar/sniproxy/socket"
	sckcfg "github.com/nabbar/sniproxy/socket/config"
)

type server struct {
	cfg sckcfg.Server
	fct libsck.Handler

	mu  sync.Mutex
	lis net.Listener
	pkt net.PacketConn

	running atomic.Bool
	gone    atomic.Bool
	conns   atomic.Int64
}

// New returns a socket.Server bound to cfg.Address on cfg.Network, dispatching
// accepted peers to fct. Binding itself happens lazily, in Listen.
func New(ctx context.Context, fct libsck.Handler, cfg sckcfg.Server) (libsck.Server, error) {
	if cfg.Network == libptc.NetworkEmpty {
		return nil, fmt.Errorf("socket/server: network protocol is required")
	} else if cfg.Address == "" {
		return nil, fmt.Errorf("socket/server: address is required")
	} else if fct == nil {
		return nil, fmt.Errorf("socket/server: handler is required")
	}

	return &server{
		cfg: cfg,
		fct: fct,
	}, nil
}

func (s *server) isDatagram() bool {
	switch s.cfg.Network {
	case libptc.NetworkUDP, libptc.NetworkUDP4, libptc.NetworkUDP6, libptc.NetworkUnixGram:
		return true
	default:
		return false
	}
}

func (s *server) chmodSocket() {
	if !s.cfg.Network.IsUnix() {
		return
	}
	if s.cfg.PermFile != 0 {
		_ = os.Chmod(s.cfg.Address, os.FileMode(s.cfg.PermFile))
	}
	if s.cfg.GroupPerm >= 0 {
		_ = os.Chown(s.cfg.Address, -1, s.cfg.GroupPerm)
	}
}

func (s *server) Listen(ctx context.Context) error {
	if s.gone.Load() {
		return fmt.Errorf("socket/server: already closed")
	}

	if s.isDatagram() {
		return s.listenPacket(ctx)
	}
	return s.listenStream(ctx)
}

func (s *server) listenPacket(ctx context.Context) error {
	pc, err := net.ListenPacket(s.cfg.Network.String(), s.cfg.Address)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.pkt = pc
	s.mu.Unlock()

	s.chmodSocket()
	s.running.Store(true)
	defer s.running.Store(false)

	c := &packetContext{pc: pc}
	go func() {
		<-ctx.Done()
		_ = s.Close()
	}()

	s.fct(c)
	return c.lastErr()
}

func (s *server) listenStream(ctx context.Context) error {
	l, err := net.Listen(s.cfg.Network.String(), s.cfg.Address)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.lis = l
	s.mu.Unlock()

	s.chmodSocket()
	s.running.Store(true)
	defer s.running.Store(false)

	go func() {
		<-ctx.Done()
		_ = s.Close()
	}()

	for {
		c, e := l.Accept()
		if e != nil {
			if s.gone.Load() {
				return nil
			}
			return e
		}

		s.conns.Add(1)
		go func() {
			defer s.conns.Add(-1)
			s.fct(c)
		}()
	}
}

func (s *server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.gone.Store(true)

	var err error
	if s.lis != nil {
		err = s.lis.Close()
	}
	if s.pkt != nil {
		if e := s.pkt.Close(); e != nil && err == nil {
			err = e
		}
	}

	return err
}

func (s *server) IsRunning() bool {
	return s.running.Load()
}

func (s *server) IsGone() bool {
	return s.gone.Load()
}

func (s *server) OpenConnections() int64 {
	return s.conns.Load()
}
