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

// Package table holds the static hostname-to-backend routing tables a
// Listener consults after a hostname has been extracted from a connection.
package table

import (
	"fmt"
	"strings"

	"github.com/nabbar/sniproxy/proxy/address"
)

// Backend is one routing entry: a hostname pattern paired with the address
// connections matching it should be relayed to.
type Backend struct {
	Pattern string
	Addr    address.Address
}

// Table is an ordered sequence of Backend entries. Lookup is deterministic
// first-match: the first entry whose pattern matches wins, so entry order is
// significant for overlapping patterns.
type Table struct {
	name    string
	entries []Backend
}

// New returns an empty, named Table. The name corresponds to the optional
// identifier in the configuration grammar's `table [<name>] { ... }` stanza.
func New(name string) *Table {
	return &Table{name: name}
}

// Name returns the table's identifier ("" for the anonymous default table).
func (t *Table) Name() string {
	return t.name
}

// Add appends a Backend entry. A hostname-valued address is accepted here —
// validation that backends are dialable literals happens at route time, per
// the Non-goal on DNS resolution.
func (t *Table) Add(pattern string, addr address.Address) {
	t.entries = append(t.entries, Backend{Pattern: strings.ToLower(pattern), Addr: addr})
}

// Len returns the number of entries.
func (t *Table) Len() int {
	return len(t.entries)
}

// Lookup returns the first entry whose pattern matches hostname
// case-insensitively, and true. If no entry matches, it returns the zero
// Backend and false.
func (t *Table) Lookup(hostname string) (Backend, bool) {
	h := strings.ToLower(hostname)
	for _, e := range t.entries {
		if e.Pattern == h {
			return e, true
		}
	}
	return Backend{}, false
}

// Resolve looks hostname up in t, falling back to fallback when no entry
// matches and a fallback was configured. It returns an error when neither
// a match nor a fallback exists, or when the winning entry names a
// hostname-valued backend: the core never resolves DNS, so such entries are
// rejected at route time rather than dialed.
func Resolve(t *Table, hostname string, fallback *address.Address) (address.Address, error) {
	if t != nil {
		if b, ok := t.Lookup(hostname); ok {
			if !b.Addr.IsDialable() {
				return address.Address{}, fmt.Errorf("table: backend %q for %q is a hostname, not a literal address", b.Addr.Host(), hostname)
			}
			return b.Addr, nil
		}
	}

	if fallback != nil {
		return *fallback, nil
	}

	return address.Address{}, fmt.Errorf("table: no route for %q", hostname)
}
