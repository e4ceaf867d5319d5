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
	"github.com/nabbar/sniproxy/proxy/address"
	"github.com/nabbar/sniproxy/proxy/parser"
	"github.com/nabbar/sniproxy/proxy/table"
)

// Listener is the capability surface a Connection needs from the endpoint
// that accepted it: a non-owning, weak reference in the sense of §3 of the
// design — a Connection never outlives the listener it was accepted from,
// but it never manages the listener's lifetime either.
type Listener interface {
	// Parser returns the protocol dissector bound to this listener: TLS SNI
	// or HTTP Host extraction.
	Parser() parser.Func

	// Table returns the routing table consulted once a hostname has been
	// extracted. May be nil, in which case only Fallback can resolve.
	Table() *table.Table

	// Fallback returns the backend to use when no hostname was found, or
	// none matched the table. A nil return means no fallback is configured.
	Fallback() *address.Address

	// Address reports the listener's own bound address, used only for log
	// context.
	Address() address.Address
}
