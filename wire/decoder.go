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

package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// DecodeError reports malformed wire data.
type DecodeError struct {
	Pos    int
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("bad wire data at offset %d: %s", e.Pos, e.Reason)
}

// ErrUnixFD is returned when decoding or encoding a UNIX_FD value,
// which this library does not transport.
var ErrUnixFD = errors.New("wire: unix fd passing is not supported")

// Decoder reads D-Bus wire data from a buffer. Alignment is computed
// from the start of the buffer, so the buffer must begin at a position
// that was 8-aligned in the original stream.
type Decoder struct {
	data  []byte
	pos   int
	order binary.ByteOrder
}

// NewDecoder returns a Decoder reading data in the given byte order.
func NewDecoder(data []byte, order binary.ByteOrder) *Decoder {
	return &Decoder{data: data, order: order}
}

// NewDecoderAt is like NewDecoder but starts decoding at offset pos,
// for buffers whose leading bytes were already consumed elsewhere.
func NewDecoderAt(data []byte, pos int, order binary.ByteOrder) *Decoder {
	return &Decoder{data: data, pos: pos, order: order}
}

// Pos returns the current read offset.
func (d *Decoder) Pos() int {
	return d.pos
}

// Rest returns the number of unread bytes.
func (d *Decoder) Rest() int {
	return len(d.data) - d.pos
}

func (d *Decoder) align(n int) error {
	for d.pos%n != 0 {
		if d.pos >= len(d.data) {
			return &DecodeError{d.pos, "truncated padding"}
		}
		if d.data[d.pos] != 0 {
			return &DecodeError{d.pos, "nonzero padding byte"}
		}
		d.pos++
	}
	return nil
}

func (d *Decoder) take(n int) ([]byte, error) {
	if len(d.data)-d.pos < n {
		return nil, &DecodeError{d.pos, "truncated value"}
	}
	b := d.data[d.pos : d.pos+n]
	d.pos += n
	return b, nil
}

// Byte reads a single byte.
func (d *Decoder) Byte() (byte, error) {
	b, err := d.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// Uint16 reads an aligned 16-bit integer.
func (d *Decoder) Uint16() (uint16, error) {
	if err := d.align(2); err != nil {
		return 0, err
	}
	b, err := d.take(2)
	if err != nil {
		return 0, err
	}
	return d.order.Uint16(b), nil
}

// Uint32 reads an aligned 32-bit integer.
func (d *Decoder) Uint32() (uint32, error) {
	if err := d.align(4); err != nil {
		return 0, err
	}
	b, err := d.take(4)
	if err != nil {
		return 0, err
	}
	return d.order.Uint32(b), nil
}

// Uint64 reads an aligned 64-bit integer.
func (d *Decoder) Uint64() (uint64, error) {
	if err := d.align(8); err != nil {
		return 0, err
	}
	b, err := d.take(8)
	if err != nil {
		return 0, err
	}
	return d.order.Uint64(b), nil
}

// String reads a D-Bus STRING and its NUL terminator.
func (d *Decoder) String() (string, error) {
	n, err := d.Uint32()
	if err != nil {
		return "", err
	}
	b, err := d.take(int(n) + 1)
	if err != nil {
		return "", err
	}
	if b[n] != 0 {
		return "", &DecodeError{d.pos - 1, "string missing NUL terminator"}
	}
	return string(b[:n]), nil
}

// ReadSignature reads a D-Bus SIGNATURE and validates it.
func (d *Decoder) ReadSignature() (Signature, error) {
	n, err := d.Byte()
	if err != nil {
		return "", err
	}
	b, err := d.take(int(n) + 1)
	if err != nil {
		return "", err
	}
	if b[n] != 0 {
		return "", &DecodeError{d.pos - 1, "signature missing NUL terminator"}
	}
	sig := Signature(b[:n])
	if err := sig.Valid(); err != nil {
		return "", err
	}
	return sig, nil
}

// Values decodes the sequence of complete types in sig. Container
// values come back as []any (STRUCT), []byte or []any (ARRAY),
// map[any]any (dict arrays) and Variant (VARIANT).
func (d *Decoder) Values(sig Signature) ([]any, error) {
	types, err := sig.Split()
	if err != nil {
		return nil, err
	}
	var out []any
	for _, t := range types {
		v, err := d.value(string(t))
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Value decodes the single complete type in sig.
func (d *Decoder) Value(sig Signature) (any, error) {
	if err := sig.Valid(); err != nil {
		return nil, err
	}
	types, err := sig.Split()
	if err != nil {
		return nil, err
	}
	if len(types) != 1 {
		return nil, &SignatureError{string(sig), "expected a single complete type"}
	}
	return d.value(string(sig))
}

func (d *Decoder) value(sig string) (any, error) {
	switch sig[0] {
	case 'y':
		return d.Byte()
	case 'b':
		v, err := d.Uint32()
		if err != nil {
			return nil, err
		}
		switch v {
		case 0:
			return false, nil
		case 1:
			return true, nil
		}
		return nil, &DecodeError{d.pos - 4, fmt.Sprintf("boolean value %d", v)}
	case 'n':
		v, err := d.Uint16()
		return int16(v), err
	case 'q':
		return d.Uint16()
	case 'i':
		v, err := d.Uint32()
		return int32(v), err
	case 'u':
		return d.Uint32()
	case 'x':
		v, err := d.Uint64()
		return int64(v), err
	case 't':
		return d.Uint64()
	case 'd':
		v, err := d.Uint64()
		return math.Float64frombits(v), err
	case 's':
		return d.String()
	case 'o':
		v, err := d.String()
		return ObjectPath(v), err
	case 'g':
		return d.ReadSignature()
	case 'h':
		return nil, ErrUnixFD
	case 'v':
		return d.variant()
	case 'a':
		return d.array(sig[1:])
	case '(':
		return d.structure(sig[1 : len(sig)-1])
	}
	return nil, &SignatureError{sig, fmt.Sprintf("unknown type code %q", sig[0])}
}

func (d *Decoder) variant() (Variant, error) {
	sig, err := d.ReadSignature()
	if err != nil {
		return Variant{}, err
	}
	v, err := d.Value(sig)
	if err != nil {
		return Variant{}, err
	}
	return Variant{Sig: sig, Value: v}, nil
}

func (d *Decoder) array(elemSig string) (any, error) {
	n, err := d.Uint32()
	if err != nil {
		return nil, err
	}
	if err := d.align(alignment(elemSig[0])); err != nil {
		return nil, err
	}
	end := d.pos + int(n)
	if end > len(d.data) {
		return nil, &DecodeError{d.pos, "array length past end of data"}
	}
	// Byte arrays are common enough to return as []byte.
	if elemSig == "y" {
		b, _ := d.take(int(n))
		return append([]byte(nil), b...), nil
	}
	if elemSig[0] == '{' {
		out := map[any]any{}
		for d.pos < end {
			if err := d.align(8); err != nil {
				return nil, err
			}
			key, err := d.value(string(elemSig[1:2]))
			if err != nil {
				return nil, err
			}
			valSig, err := Signature(elemSig[2 : len(elemSig)-1]).Split()
			if err != nil {
				return nil, err
			}
			val, err := d.value(string(valSig[0]))
			if err != nil {
				return nil, err
			}
			out[key] = val
		}
		if d.pos != end {
			return nil, &DecodeError{d.pos, "dict contents overran array length"}
		}
		return out, nil
	}
	out := []any{}
	for d.pos < end {
		v, err := d.value(elemSig)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if d.pos != end {
		return nil, &DecodeError{d.pos, "array contents overran array length"}
	}
	return out, nil
}

func (d *Decoder) structure(fieldSig string) ([]any, error) {
	if err := d.align(8); err != nil {
		return nil, err
	}
	fields, err := Signature(fieldSig).Split()
	if err != nil {
		return nil, err
	}
	out := make([]any, 0, len(fields))
	for _, f := range fields {
		v, err := d.value(string(f))
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
