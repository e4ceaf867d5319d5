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

package connection_test

import (
	"bytes"

	"github.com/nabbar/sniproxy/proxy/address"
	"github.com/nabbar/sniproxy/proxy/parser"
	"github.com/nabbar/sniproxy/proxy/table"
)

// fakeListener is a minimal connection.Listener used to drive the state
// machine without a real Listener/Reactor implementation.
type fakeListener struct {
	parse    parser.Func
	tbl      *table.Table
	fallback *address.Address
	addr     address.Address
}

func (f *fakeListener) Parser() parser.Func          { return f.parse }
func (f *fakeListener) Table() *table.Table          { return f.tbl }
func (f *fakeListener) Fallback() *address.Address   { return f.fallback }
func (f *fakeListener) Address() address.Address     { return f.addr }

// lineParser treats any prefix containing a newline as a complete message
// whose "hostname" is the fixed string name.
func lineParser(name string) parser.Func {
	return func(data []byte) (string, parser.Result) {
		if bytes.IndexByte(data, '\n') < 0 {
			return "", parser.Incomplete
		}
		return name, parser.Result(len(name))
	}
}

// noHostnameParser always reports a complete message carrying no hostname.
func noHostnameParser(data []byte) (string, parser.Result) {
	if bytes.IndexByte(data, '\n') < 0 {
		return "", parser.Incomplete
	}
	return "", parser.NoHostname
}
