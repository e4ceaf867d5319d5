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

// Package config parses the proxy's configuration grammar — username,
// listener, and table stanzas — into the values cmd/sniproxy wires into a
// reactor. The grammar is small and line-structured enough that a hand-rolled
// scanner serves it better than dragging in a generic format.
package config

import (
	"fmt"

	"github.com/nabbar/sniproxy/proxy/address"
	"github.com/nabbar/sniproxy/proxy/listener"
	"github.com/nabbar/sniproxy/proxy/table"
)

// ListenerConfig describes one `listener` stanza: the address it binds, the
// protocol dissector it runs, and the name of the table it routes through.
type ListenerConfig struct {
	Addr     address.Address
	Protocol listener.Protocol
	Table    string
	Fallback *address.Address
}

// Config is the fully parsed configuration: the process identity to drop
// privileges to, every listener stanza, and every named table stanza
// (the anonymous table, if any, is stored under the empty-string key).
type Config struct {
	Username  string
	Listeners []ListenerConfig
	Tables    map[string]*table.Table
}

// ResolveTable returns the Table named by a listener stanza, or an error if
// no table stanza with that name was ever declared.
func (c *Config) ResolveTable(name string) (*table.Table, error) {
	t, ok := c.Tables[name]
	if !ok {
		return nil, fmt.Errorf("config: listener refers to undeclared table %q", name)
	}
	return t, nil
}
