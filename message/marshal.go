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

package message

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/buswire/buswire/wire"
)

// The protocol caps a whole message at 2^27 bytes and the header field
// array at 2^26.
const (
	maxMessageSize = 1 << 27
	maxFieldsSize  = 1 << 26
)

// ErrMissingSignature is returned for a message that carries a body but
// no signature header field.
var ErrMissingSignature = errors.New("message has a body but no signature field")

type fieldEntry struct {
	Code byte
	Val  wire.Variant
}

// Marshal returns the wire form of m: fixed header, header field
// array, padding to an 8 byte boundary, then the body. The Serial must
// have been assigned; the connection does this on send.
func (m *Message) Marshal() ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if m.Serial == 0 {
		return nil, errors.New("message serial is unassigned")
	}
	body := wire.NewEncoder()
	if err := body.Values(m.Body...); err != nil {
		return nil, err
	}
	if len(m.Body) > 0 && m.BodySignature() == "" {
		return nil, ErrMissingSignature
	}

	version := m.Version
	if version == 0 {
		version = protocolVersion
	}
	fields := make([]fieldEntry, 0, len(m.Fields))
	for code, val := range m.Fields {
		fields = append(fields, fieldEntry{byte(code), val})
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i].Code < fields[j].Code })

	e := wire.NewEncoder()
	e.Byte('l')
	e.Byte(byte(m.Type))
	e.Byte(byte(m.Flags))
	e.Byte(version)
	e.Uint32(uint32(body.Len()))
	e.Uint32(m.Serial)
	if err := e.Value(fields); err != nil {
		return nil, err
	}
	e.Pad(8)
	out := append(e.Bytes(), body.Bytes()...)
	if len(out) > maxMessageSize {
		return nil, fmt.Errorf("message of %d bytes exceeds maximum size", len(out))
	}
	return out, nil
}

// Unmarshal parses a complete wire-form message.
func Unmarshal(data []byte) (*Message, error) {
	return ReadFrom(bytes.NewReader(data))
}

// ReadFrom reads exactly one message from r. It reads the fixed header
// first, then the header field array and body, mirroring how a
// connection consumes its socket.
func ReadFrom(r io.Reader) (*Message, error) {
	fixed := make([]byte, 16)
	if _, err := io.ReadFull(r, fixed); err != nil {
		return nil, err
	}
	var order binary.ByteOrder
	m := empty(TypeInvalid)
	switch fixed[0] {
	case 'l':
		order = binary.LittleEndian
	case 'B':
		order = binary.BigEndian
		m.BigEndian = true
	default:
		return nil, fmt.Errorf("unknown endianness marker %#x", fixed[0])
	}
	m.Type = MessageType(fixed[1])
	m.Flags = Flags(fixed[2])
	m.Version = fixed[3]
	if m.Version != protocolVersion {
		return nil, fmt.Errorf("unsupported protocol version %d", m.Version)
	}
	bodyLen := order.Uint32(fixed[4:8])
	m.Serial = order.Uint32(fixed[8:12])
	fieldsLen := order.Uint32(fixed[12:16])
	if fieldsLen > maxFieldsSize || bodyLen > maxMessageSize {
		return nil, fmt.Errorf("declared sizes too large (fields %d, body %d)", fieldsLen, bodyLen)
	}

	// The body starts at the next 8 byte boundary after the field
	// array.
	pad := (8 - (16+int(fieldsLen))%8) % 8
	header := make([]byte, 16+int(fieldsLen)+pad)
	copy(header, fixed)
	if _, err := io.ReadFull(r, header[16:]); err != nil {
		return nil, err
	}
	dec := wire.NewDecoderAt(header, 12, order)
	raw, err := dec.Value("a(yv)")
	if err != nil {
		return nil, err
	}
	for _, entry := range raw.([]any) {
		st := entry.([]any)
		code := HeaderField(st[0].(byte))
		m.Fields[code] = st[1].(wire.Variant)
	}

	if bodyLen > 0 {
		sig := m.BodySignature()
		if sig == "" {
			return nil, ErrMissingSignature
		}
		body := make([]byte, bodyLen)
		if _, err := io.ReadFull(r, body); err != nil {
			return nil, err
		}
		bdec := wire.NewDecoder(body, order)
		if m.Body, err = bdec.Values(sig); err != nil {
			return nil, err
		}
	}
	return m, nil
}
