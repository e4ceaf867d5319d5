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
	"encoding/binary"

	libtls "github.com/nabbar/sniproxy/certificates/tlsversion"
)

const (
	tlsContentTypeHandshake  = 0x16
	tlsHandshakeClientHello  = 0x01
	tlsExtensionServerName   = 0x0000
	tlsServerNameTypeHost    = 0x00
	tlsRecordHeaderLen       = 5
	tlsHandshakeHeaderLen    = 4
	tlsClientHelloFixedLen   = 2 + 32 // legacy version + random
)

// RecordVersion decodes the legacy protocol version carried in a TLS record
// header, for logging; it does not affect Parse's outcome.
func RecordVersion(data []byte) libtls.Version {
	if len(data) < 3 {
		return libtls.VersionUnknown
	}
	return libtls.Version(binary.BigEndian.Uint16(data[1:3]))
}

// ParseTLS extracts the SNI hostname from a TLS ClientHello. data is the
// peeked prefix of a client connection, up to PeekWindow bytes; it is read
// only, never mutated or retained.
func ParseTLS(data []byte) (string, Result) {
	if len(data) < tlsRecordHeaderLen {
		return "", Incomplete
	}

	if data[0] != tlsContentTypeHandshake {
		return "", Malformed
	}

	recordLen := int(binary.BigEndian.Uint16(data[3:5]))
	if recordLen == 0 {
		return "", Malformed
	}

	body := data[tlsRecordHeaderLen:]
	if len(body) < recordLen {
		// The record (and therefore the ClientHello) is still arriving.
		if len(data) >= PeekWindow {
			return "", Malformed
		}
		return "", Incomplete
	}
	body = body[:recordLen]

	if len(body) < tlsHandshakeHeaderLen {
		return "", Incomplete
	}
	if body[0] != tlsHandshakeClientHello {
		return "", Malformed
	}

	hsLen := int(body[1])<<16 | int(body[2])<<8 | int(body[3])
	hs := body[tlsHandshakeHeaderLen:]
	if len(hs) < hsLen {
		return "", Incomplete
	}
	hs = hs[:hsLen]

	return parseClientHelloBody(hs)
}

func parseClientHelloBody(hs []byte) (string, Result) {
	if len(hs) < tlsClientHelloFixedLen+1 {
		return "", Malformed
	}
	off := tlsClientHelloFixedLen

	sessIDLen := int(hs[off])
	off++
	if off+sessIDLen > len(hs) {
		return "", Malformed
	}
	off += sessIDLen

	if off+2 > len(hs) {
		return "", Malformed
	}
	cipherLen := int(binary.BigEndian.Uint16(hs[off : off+2]))
	off += 2
	if off+cipherLen > len(hs) {
		return "", Malformed
	}
	off += cipherLen

	if off+1 > len(hs) {
		return "", Malformed
	}
	compLen := int(hs[off])
	off++
	if off+compLen > len(hs) {
		return "", Malformed
	}
	off += compLen

	if off == len(hs) {
		// No extensions block at all: a legal ClientHello, just no SNI.
		return "", NoHostname
	}

	if off+2 > len(hs) {
		return "", Malformed
	}
	extTotalLen := int(binary.BigEndian.Uint16(hs[off : off+2]))
	off += 2
	if off+extTotalLen > len(hs) {
		return "", Malformed
	}

	ext := hs[off : off+extTotalLen]
	for len(ext) >= 4 {
		extType := binary.BigEndian.Uint16(ext[0:2])
		extLen := int(binary.BigEndian.Uint16(ext[2:4]))
		ext = ext[4:]
		if extLen > len(ext) {
			return "", Malformed
		}
		body := ext[:extLen]
		ext = ext[extLen:]

		if extType != tlsExtensionServerName {
			continue
		}

		name, ok := parseServerNameExtension(body)
		if !ok {
			return "", Malformed
		}
		if name == "" {
			return "", NoHostname
		}
		return name, Result(len(name))
	}

	return "", NoHostname
}

func parseServerNameExtension(body []byte) (string, bool) {
	if len(body) < 2 {
		return "", false
	}
	listLen := int(binary.BigEndian.Uint16(body[0:2]))
	body = body[2:]
	if listLen > len(body) {
		return "", false
	}
	body = body[:listLen]

	for len(body) >= 3 {
		nameType := body[0]
		nameLen := int(binary.BigEndian.Uint16(body[1:3]))
		body = body[3:]
		if nameLen > len(body) {
			return "", false
		}
		name := body[:nameLen]
		body = body[nameLen:]

		if nameType == tlsServerNameTypeHost {
			return string(name), true
		}
	}

	return "", true
}
