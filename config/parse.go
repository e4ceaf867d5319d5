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

package config

import (
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"

	"github.com/nabbar/sniproxy/proxy/address"
	"github.com/nabbar/sniproxy/proxy/listener"
	"github.com/nabbar/sniproxy/proxy/table"
)

const (
	defaultTLSPort  = 443
	defaultHTTPPort = 80
)

// Parse reads a whole configuration source and returns the parsed Config, or
// the first syntax or semantic error encountered. Syntax errors carry the
// offending token's line number; an address that fails to parse is reported
// by its token text, and a listener naming an undeclared table by its index
// among the listener stanzas.
func Parse(r io.Reader) (*Config, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("config: read: %w", err)
	}

	toks := tokenize(string(src))
	p := &parser{toks: toks}

	cfg := &Config{Tables: make(map[string]*table.Table)}

	for !p.atEnd() {
		switch p.peek().text {
		case "username":
			if err = p.parseUsername(cfg); err != nil {
				return nil, err
			}
		case "listener":
			if err = p.parseListener(cfg); err != nil {
				return nil, err
			}
		case "table":
			if err = p.parseTable(cfg); err != nil {
				return nil, err
			}
		default:
			return nil, p.errorf("unexpected token %q", p.peek().text)
		}
	}

	for i, l := range cfg.Listeners {
		if _, ok := cfg.Tables[l.Table]; !ok {
			return nil, fmt.Errorf("config: listener #%d refers to undeclared table %q", i, l.Table)
		}
	}

	return cfg, nil
}

// token is one lexical unit: a bare word, or one of the structural
// characters '{', '}', ';'.
type token struct {
	text string
	line int
}

// tokenize splits src into tokens. '#' introduces a line comment; '{', '}',
// and ';' are always their own token even when not surrounded by whitespace.
func tokenize(src string) []token {
	var toks []token
	line := 1
	var cur strings.Builder

	flush := func() {
		if cur.Len() > 0 {
			toks = append(toks, token{text: cur.String(), line: line})
			cur.Reset()
		}
	}

	runes := []rune(src)
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		switch {
		case c == '\n':
			flush()
			line++
		case c == '#':
			flush()
			for i < len(runes) && runes[i] != '\n' {
				i++
			}
			i--
		case c == ' ' || c == '\t' || c == '\r':
			flush()
		case c == '{' || c == '}' || c == ';':
			flush()
			toks = append(toks, token{text: string(c), line: line})
		default:
			cur.WriteRune(c)
		}
	}
	flush()

	return toks
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) atEnd() bool { return p.pos >= len(p.toks) }

func (p *parser) peek() token {
	if p.atEnd() {
		return token{text: "<eof>"}
	}
	return p.toks[p.pos]
}

func (p *parser) next() token {
	t := p.peek()
	if !p.atEnd() {
		p.pos++
	}
	return t
}

func (p *parser) errorf(format string, args ...interface{}) error {
	line := 0
	if !p.atEnd() {
		line = p.toks[p.pos].line
	} else if len(p.toks) > 0 {
		line = p.toks[len(p.toks)-1].line
	}
	return fmt.Errorf("config: line %d: %s", line, fmt.Sprintf(format, args...))
}

func (p *parser) expect(text string) (token, error) {
	if p.atEnd() || p.peek().text != text {
		return token{}, p.errorf("expected %q, got %q", text, p.peek().text)
	}
	return p.next(), nil
}

// peekIsPort reports whether the upcoming token looks like a bare port
// number rather than the start of the next construct ('{' or a keyword).
func (p *parser) peekIsPort() bool {
	if p.atEnd() {
		return false
	}
	_, err := strconv.ParseUint(p.peek().text, 10, 16)
	return err == nil
}

func (p *parser) parseUsername(cfg *Config) error {
	p.next() // "username"
	name, err := p.bareWord()
	if err != nil {
		return err
	}
	if _, err = p.expect(";"); err != nil {
		return err
	}
	cfg.Username = name
	return nil
}

func (p *parser) bareWord() (string, error) {
	if p.atEnd() {
		return "", p.errorf("unexpected end of input")
	}
	t := p.next()
	if t.text == "{" || t.text == "}" || t.text == ";" {
		return "", fmt.Errorf("config: line %d: expected a value, got %q", t.line, t.text)
	}
	return t.text, nil
}

func (p *parser) parseListener(cfg *Config) error {
	p.next() // "listener"

	addrTok, err := p.bareWord()
	if err != nil {
		return err
	}

	portTok := ""
	if p.peekIsPort() {
		portTok = p.next().text
	}

	if _, err = p.expect("{"); err != nil {
		return err
	}

	lc := ListenerConfig{Protocol: listener.ProtocolTLS}
	for {
		if p.atEnd() {
			return p.errorf("unterminated listener block")
		}
		if p.peek().text == "}" {
			p.next()
			break
		}

		switch p.peek().text {
		case "protocol":
			p.next()
			v, e := p.bareWord()
			if e != nil {
				return e
			}
			if _, e = p.expect(";"); e != nil {
				return e
			}
			switch strings.ToLower(v) {
			case "tls":
				lc.Protocol = listener.ProtocolTLS
			case "http":
				lc.Protocol = listener.ProtocolHTTP
			default:
				return p.errorf("unknown protocol %q", v)
			}
		case "table":
			p.next()
			v, e := p.bareWord()
			if e != nil {
				return e
			}
			if _, e = p.expect(";"); e != nil {
				return e
			}
			lc.Table = v
		case "fallback":
			p.next()
			fbAddrTok, e := p.bareWord()
			if e != nil {
				return e
			}
			fbPortTok := ""
			if p.peekIsPort() {
				fbPortTok = p.next().text
			}
			if _, e = p.expect(";"); e != nil {
				return e
			}
			fb, e := parseAddrAndPort(fbAddrTok, fbPortTok, 0)
			if e != nil {
				return e
			}
			lc.Fallback = &fb
		default:
			return p.errorf("unexpected token %q in listener block", p.peek().text)
		}
	}

	defPort := uint16(defaultTLSPort)
	if lc.Protocol == listener.ProtocolHTTP {
		defPort = defaultHTTPPort
	}
	addr, err := parseAddrAndPort(addrTok, portTok, defPort)
	if err != nil {
		return err
	}
	lc.Addr = addr

	cfg.Listeners = append(cfg.Listeners, lc)
	return nil
}

func (p *parser) parseTable(cfg *Config) error {
	p.next() // "table"

	name := ""
	if !p.atEnd() && p.peek().text != "{" {
		name = p.next().text
	}
	if _, ok := cfg.Tables[name]; ok {
		return p.errorf("table %q declared more than once", name)
	}

	if _, err := p.expect("{"); err != nil {
		return err
	}

	t := table.New(name)
	for {
		if p.atEnd() {
			return p.errorf("unterminated table block")
		}
		if p.peek().text == "}" {
			p.next()
			break
		}

		host, err := p.bareWord()
		if err != nil {
			return err
		}
		addrTok, err := p.bareWord()
		if err != nil {
			return err
		}
		portTok := ""
		if p.peekIsPort() {
			portTok = p.next().text
		}
		if _, err = p.expect(";"); err != nil {
			return err
		}

		addr, err := parseAddrAndPort(addrTok, portTok, 0)
		if err != nil {
			return err
		}
		t.Add(host, addr)
	}

	cfg.Tables[name] = t
	return nil
}

// parseAddrAndPort combines a grammar address token with an optional,
// separately-tokenized port into one address.Address. A unix: token never
// takes a port.
func parseAddrAndPort(addrTok, portTok string, defaultPort uint16) (address.Address, error) {
	if strings.HasPrefix(addrTok, "unix:") {
		if portTok != "" {
			return address.Address{}, fmt.Errorf("config: port is not valid for %q", addrTok)
		}
		return address.Parse(addrTok, 0)
	}
	if portTok == "" {
		return address.Parse(addrTok, defaultPort)
	}
	return address.Parse(net.JoinHostPort(addrTok, portTok), defaultPort)
}
