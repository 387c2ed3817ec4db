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

// Package wire implements the D-Bus wire encoding: alignment-based
// marshaling of basic and container types, type signatures, and the
// mapping between Go values and D-Bus types.
//
// The encoder and decoder are low level tools. They do not ensure that
// their output forms a valid message; that is the message package's
// job.
package wire

import (
	"encoding/binary"
	"fmt"
	"math"
	"reflect"
	"sort"
)

// Encoder appends D-Bus wire data to a buffer, maintaining alignment
// relative to the start of the buffer. Encoded data is always
// little-endian, the only byte order this library emits.
type Encoder struct {
	buf []byte
}

// NewEncoder returns an empty Encoder.
func NewEncoder() *Encoder {
	return &Encoder{}
}

// Bytes returns the encoded data. The slice is owned by the encoder.
func (e *Encoder) Bytes() []byte {
	return e.buf
}

// Len returns the number of bytes encoded so far.
func (e *Encoder) Len() int {
	return len(e.buf)
}

// Pad appends zero bytes until the buffer length is a multiple of n.
func (e *Encoder) Pad(n int) {
	for len(e.buf)%n != 0 {
		e.buf = append(e.buf, 0)
	}
}

// Byte appends a single byte.
func (e *Encoder) Byte(b byte) {
	e.buf = append(e.buf, b)
}

// Uint16 appends an aligned 16-bit integer.
func (e *Encoder) Uint16(v uint16) {
	e.Pad(2)
	e.buf = binary.LittleEndian.AppendUint16(e.buf, v)
}

// Uint32 appends an aligned 32-bit integer.
func (e *Encoder) Uint32(v uint32) {
	e.Pad(4)
	e.buf = binary.LittleEndian.AppendUint32(e.buf, v)
}

// Uint64 appends an aligned 64-bit integer.
func (e *Encoder) Uint64(v uint64) {
	e.Pad(8)
	e.buf = binary.LittleEndian.AppendUint64(e.buf, v)
}

// String appends a D-Bus STRING: aligned length, bytes, NUL.
func (e *Encoder) String(s string) {
	e.Uint32(uint32(len(s)))
	e.buf = append(e.buf, s...)
	e.buf = append(e.buf, 0)
}

// Signature appends a D-Bus SIGNATURE: one-byte length, bytes, NUL.
func (e *Encoder) Signature(s Signature) {
	e.Byte(byte(len(s)))
	e.buf = append(e.buf, s...)
	e.buf = append(e.buf, 0)
}

// Value appends v using the Go to D-Bus conversion rules described in
// the package documentation.
func (e *Encoder) Value(v any) error {
	if v == nil {
		return &TypeError{Type: nil}
	}
	return e.value(reflect.ValueOf(v))
}

// Values appends each value in turn.
func (e *Encoder) Values(vals ...any) error {
	for _, v := range vals {
		if err := e.Value(v); err != nil {
			return err
		}
	}
	return nil
}

func (e *Encoder) value(rv reflect.Value) error {
	switch rv.Type() {
	case variantType:
		va := rv.Interface().(Variant)
		if err := va.Sig.Valid(); err != nil {
			return err
		}
		e.Signature(va.Sig)
		return e.Value(va.Value)
	case signatureType:
		e.Signature(rv.Interface().(Signature))
		return nil
	case objectPathType:
		e.String(rv.String())
		return nil
	}
	switch rv.Kind() {
	case reflect.Uint8:
		e.Byte(byte(rv.Uint()))
	case reflect.Bool:
		if rv.Bool() {
			e.Uint32(1)
		} else {
			e.Uint32(0)
		}
	case reflect.Int16:
		e.Uint16(uint16(rv.Int()))
	case reflect.Uint16:
		e.Uint16(uint16(rv.Uint()))
	case reflect.Int32:
		e.Uint32(uint32(rv.Int()))
	case reflect.Uint32:
		e.Uint32(uint32(rv.Uint()))
	case reflect.Int64:
		e.Uint64(uint64(rv.Int()))
	case reflect.Uint64:
		e.Uint64(rv.Uint())
	case reflect.Float64:
		e.Uint64(math.Float64bits(rv.Float()))
	case reflect.String:
		e.String(rv.String())
	case reflect.Ptr:
		if rv.IsNil() {
			return &TypeError{Type: rv.Type()}
		}
		return e.value(rv.Elem())
	case reflect.Slice, reflect.Array:
		return e.array(rv)
	case reflect.Map:
		return e.dict(rv)
	case reflect.Struct:
		e.Pad(8)
		for i := 0; i < rv.NumField(); i++ {
			f := rv.Type().Field(i)
			if !f.IsExported() || f.Tag.Get("dbus") == "-" {
				continue
			}
			if err := e.value(rv.Field(i)); err != nil {
				return err
			}
		}
	default:
		return &TypeError{Type: rv.Type()}
	}
	return nil
}

// array encodes an ARRAY: a length placeholder, padding to the element
// alignment, elements, then the length patched in. The length covers
// the elements only, not the post-length padding.
func (e *Encoder) array(rv reflect.Value) error {
	elemSig, err := sigOfType(rv.Type().Elem())
	if err != nil {
		return err
	}
	e.Uint32(0)
	lenPos := len(e.buf) - 4
	e.Pad(alignment(elemSig[0]))
	start := len(e.buf)
	for i := 0; i < rv.Len(); i++ {
		if err := e.value(rv.Index(i)); err != nil {
			return err
		}
	}
	e.patchLen(lenPos, start)
	return nil
}

func (e *Encoder) dict(rv reflect.Value) error {
	e.Uint32(0)
	lenPos := len(e.buf) - 4
	e.Pad(8)
	start := len(e.buf)
	keys := rv.MapKeys()
	// Map iteration order is random; sort for reproducible output.
	sort.Slice(keys, func(i, j int) bool {
		return fmt.Sprint(keys[i].Interface()) < fmt.Sprint(keys[j].Interface())
	})
	for _, k := range keys {
		e.Pad(8)
		if err := e.value(k); err != nil {
			return err
		}
		if err := e.value(rv.MapIndex(k)); err != nil {
			return err
		}
	}
	e.patchLen(lenPos, start)
	return nil
}

func (e *Encoder) patchLen(lenPos, start int) {
	binary.LittleEndian.PutUint32(e.buf[lenPos:lenPos+4], uint32(len(e.buf)-start))
}
