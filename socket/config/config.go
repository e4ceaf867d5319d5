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

// Package config describes the dial-side and bind-side parameters of a plain
// socket endpoint, shared by the logger's remote transports and the proxy's
// own listener/backend configuration.
package config

import (
	libptc "github.com/nabbar/sniproxy/network/protocol"
)

// TLSClient carries the subset of TLS dial options a plain socket client
// needs. The proxy core never terminates or originates TLS itself; this is
// only used by ambient collaborators (e.g. a syslog forwarder) that may sit
// behind a TLS-speaking relay.
type TLSClient struct {
	Enabled    bool
	ServerName string
}

// Client describes one dial target.
type Client struct {
	Network libptc.NetworkProtocol
	Address string
	TLS     TLSClient
}

// Server describes one bind target.
type Server struct {
	Network libptc.NetworkProtocol
	Address string
	TLS     TLSClient

	// PermFile is the mode applied to a Unix socket file after binding.
	// Ignored for non-Unix networks.
	PermFile uint32

	// GroupPerm chgrp's the socket file to this gid after binding. A
	// negative value leaves the group unchanged.
	GroupPerm int
}
