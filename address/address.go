// Copyright 2024 The Buswire Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package address parses D-Bus server address strings of the form
// "transport:key=value,key=value;transport:...", as found in the
// DBUS_SYSTEM_BUS_ADDRESS and DBUS_SESSION_BUS_ADDRESS environment
// variables.
package address

import (
	"fmt"
	"strings"
)

// Address is one entry of a server address string.
type Address struct {
	Transport string
	Options   map[string]string
}

// ParseError reports a malformed address string.
type ParseError struct {
	Addr   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("bad bus address %q: %s", e.Addr, e.Reason)
}

// Parse splits a server address string into its semicolon-separated
// entries. Entries are returned in listed order; the caller tries them
// first to last.
func Parse(addr string) ([]Address, error) {
	var out []Address
	for _, entry := range strings.Split(addr, ";") {
		if entry == "" {
			continue
		}
		transport, rest, ok := strings.Cut(entry, ":")
		if !ok || transport == "" {
			return nil, &ParseError{addr, "entry has no transport prefix"}
		}
		a := Address{Transport: transport, Options: map[string]string{}}
		if rest != "" {
			for _, pair := range strings.Split(rest, ",") {
				key, value, ok := strings.Cut(pair, "=")
				if !ok || key == "" {
					return nil, &ParseError{addr, fmt.Sprintf("option %q is not key=value", pair)}
				}
				if _, dup := a.Options[key]; dup {
					return nil, &ParseError{addr, fmt.Sprintf("duplicate option %q", key)}
				}
				decoded, err := unescape(value)
				if err != nil {
					return nil, &ParseError{addr, err.Error()}
				}
				a.Options[key] = decoded
			}
		}
		out = append(out, a)
	}
	if len(out) == 0 {
		return nil, &ParseError{addr, "no entries"}
	}
	return out, nil
}

// unescape decodes the %xx escapes the address format allows in option
// values.
func unescape(s string) (string, error) {
	if !strings.Contains(s, "%") {
		return s, nil
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '%' {
			b.WriteByte(s[i])
			continue
		}
		if i+2 >= len(s) {
			return "", fmt.Errorf("truncated escape in %q", s)
		}
		hi, ok1 := unhex(s[i+1])
		lo, ok2 := unhex(s[i+2])
		if !ok1 || !ok2 {
			return "", fmt.Errorf("invalid escape %q", s[i:i+3])
		}
		b.WriteByte(hi<<4 | lo)
		i += 2
	}
	return b.String(), nil
}

func unhex(c byte) (byte, bool) {
	switch {
	case '0' <= c && c <= '9':
		return c - '0', true
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10, true
	case 'A' <= c && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}
