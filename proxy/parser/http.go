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

package parser

import (
	"bytes"
	"strings"
)

var crlf = []byte("\r\n")

// ParseHTTP extracts the hostname from an HTTP/1.x request's Host header.
// data is the peeked prefix of a client connection; it is read only, never
// mutated or retained. The request line and the Host header must each be
// terminated by a complete CRLF for a decision to be reached; everything
// else in the header block may still be arriving.
func ParseHTTP(data []byte) (string, Result) {
	if i := bytes.Index(data, crlf); i < 0 {
		if len(data) >= PeekWindow {
			return "", Malformed
		}
		return "", Incomplete
	} else if !looksLikeRequestLine(data[:i]) {
		return "", Malformed
	}

	rest := data
	for {
		i := bytes.Index(rest, crlf)
		if i < 0 {
			if len(data) >= PeekWindow {
				return "", Malformed
			}
			return "", Incomplete
		}

		line := rest[:i]
		rest = rest[i+2:]

		if len(line) == 0 {
			// Blank line: end of headers, no Host header seen.
			return "", NoHostname
		}

		if host, ok := hostHeaderValue(line); ok {
			if host == "" {
				return "", NoHostname
			}
			return host, Result(len(host))
		}
	}
}

func looksLikeRequestLine(line []byte) bool {
	parts := bytes.Fields(line)
	return len(parts) == 3 && bytes.HasPrefix(parts[2], []byte("HTTP/"))
}

func hostHeaderValue(line []byte) (string, bool) {
	const prefix = "host:"
	s := string(line)
	if len(s) <= len(prefix) || !strings.EqualFold(s[:len(prefix)], prefix) {
		return "", false
	}

	v := strings.TrimSpace(s[len(prefix):])
	if h, _, ok := strings.Cut(v, ":"); ok {
		// Strip an explicit port; the table matches on hostname alone.
		return strings.ToLower(h), true
	}
	return strings.ToLower(v), true
}
