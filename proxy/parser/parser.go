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

// Package parser implements the two hostname dissectors a Listener binds at
// configuration time: TLS ClientHello SNI extraction and HTTP Host header
// extraction. Both are pure functions over a byte window; neither retains or
// mutates the slice handed to them.
package parser

// PeekWindow is the largest prefix a Listener ever hands to a parser: one
// Ethernet MSS.
const PeekWindow = 1460

// Result classifies the outcome of a Parse call.
type Result int

const (
	// Incomplete means the window held a prefix of a valid message but not
	// enough to decide; the caller should wait for more bytes and retry.
	Incomplete Result = -1

	// NoHostname means the window held a complete, well-formed message that
	// carries no hostname (no SNI extension, no Host header).
	NoHostname Result = -2

	// Malformed means the window cannot be a well-formed message of this
	// protocol regardless of how many more bytes arrive.
	Malformed Result = -3
)

// Success reports whether r represents a successful extraction: by
// convention any non-negative result is success, matching the core's
// `>0 success / -1 incomplete / -2 no-hostname / <-2 malformed` contract
// (zero-length hostnames never occur, so the boundary is harmless).
func (r Result) Success() bool {
	return r >= 0
}

// Func is the polymorphic capability a Listener binds: parse a byte window
// and report either a hostname with a positive Result (byte length of the
// hostname), or one of the negative Result sentinels.
type Func func(data []byte) (hostname string, result Result)
