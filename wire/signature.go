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
	"fmt"
	"reflect"
)

// Signature is a D-Bus type signature, e.g. "a{sv}" or "(yyyyuu)".
type Signature string

// ObjectPath is a D-Bus object path, e.g. "/org/freedesktop/DBus".
type ObjectPath string

// Variant is a value tagged with its own signature, the D-Bus VARIANT
// type.
type Variant struct {
	Sig   Signature
	Value any
}

// NewVariant wraps v, computing its signature.
func NewVariant(v any) (Variant, error) {
	sig, err := SignatureOf(v)
	if err != nil {
		return Variant{}, err
	}
	return Variant{Sig: sig, Value: v}, nil
}

// MustVariant is like NewVariant but panics on unsupported types. It is
// meant for values whose type is statically known to be encodable.
func MustVariant(v any) Variant {
	va, err := NewVariant(v)
	if err != nil {
		panic(err)
	}
	return va
}

// SignatureError reports a malformed type signature.
type SignatureError struct {
	Sig    string
	Reason string
}

func (e *SignatureError) Error() string {
	return fmt.Sprintf("invalid signature %q: %s", e.Sig, e.Reason)
}

// The D-Bus specification caps signature length and container nesting.
const (
	maxSignatureLen = 255
	maxNestingDepth = 32
)

// Valid reports whether s is a well formed sequence of complete types.
func (s Signature) Valid() error {
	if len(s) > maxSignatureLen {
		return &SignatureError{string(s), "longer than 255 bytes"}
	}
	i := 0
	for i < len(s) {
		n, err := nextType(string(s), i, 0)
		if err != nil {
			return err
		}
		i = n
	}
	return nil
}

// Split breaks s into its sequence of single complete types.
func (s Signature) Split() ([]Signature, error) {
	var out []Signature
	i := 0
	for i < len(s) {
		n, err := nextType(string(s), i, 0)
		if err != nil {
			return nil, err
		}
		out = append(out, s[i:n])
		i = n
	}
	return out, nil
}

// nextType returns the index just past the single complete type starting
// at s[i].
func nextType(s string, i, depth int) (int, error) {
	if depth > maxNestingDepth {
		return 0, &SignatureError{s, "container nesting too deep"}
	}
	if i >= len(s) {
		return 0, &SignatureError{s, "truncated type"}
	}
	switch s[i] {
	case 'y', 'b', 'n', 'q', 'i', 'u', 'x', 't', 'd', 's', 'o', 'g', 'v', 'h':
		return i + 1, nil
	case 'a':
		return nextType(s, i+1, depth+1)
	case '(':
		j := i + 1
		for {
			if j >= len(s) {
				return 0, &SignatureError{s, "unterminated struct"}
			}
			if s[j] == ')' {
				if j == i+1 {
					return 0, &SignatureError{s, "empty struct"}
				}
				return j + 1, nil
			}
			n, err := nextType(s, j, depth+1)
			if err != nil {
				return 0, err
			}
			j = n
		}
	case '{':
		// Dict entries hold exactly one basic key and one value.
		j := i + 1
		if j >= len(s) {
			return 0, &SignatureError{s, "unterminated dict entry"}
		}
		if !isBasicType(s[j]) {
			return 0, &SignatureError{s, "dict entry key must be a basic type"}
		}
		j++
		n, err := nextType(s, j, depth+1)
		if err != nil {
			return 0, err
		}
		j = n
		if j >= len(s) || s[j] != '}' {
			return 0, &SignatureError{s, "dict entry must hold exactly two types"}
		}
		return j + 1, nil
	default:
		return 0, &SignatureError{s, fmt.Sprintf("unknown type code %q", s[i])}
	}
}

func isBasicType(c byte) bool {
	switch c {
	case 'y', 'b', 'n', 'q', 'i', 'u', 'x', 't', 'd', 's', 'o', 'g', 'h':
		return true
	}
	return false
}

// alignment returns the wire alignment of the type starting with code c.
func alignment(c byte) int {
	switch c {
	case 'y', 'g', 'v':
		return 1
	case 'n', 'q':
		return 2
	case 'b', 'i', 'u', 's', 'o', 'a', 'h':
		return 4
	case 'x', 't', 'd', '(', '{':
		return 8
	}
	return 1
}

// SignatureOf computes the concatenated signature of vals.
func SignatureOf(vals ...any) (Signature, error) {
	out := ""
	for _, v := range vals {
		if v == nil {
			return "", &TypeError{Type: nil}
		}
		s, err := sigOfType(reflect.TypeOf(v))
		if err != nil {
			return "", err
		}
		out += s
	}
	if len(out) > maxSignatureLen {
		return "", &SignatureError{out, "longer than 255 bytes"}
	}
	return Signature(out), nil
}

// TypeError reports a Go type with no D-Bus representation.
type TypeError struct {
	Type reflect.Type
}

func (e *TypeError) Error() string {
	if e.Type == nil {
		return "wire: cannot represent untyped nil"
	}
	return fmt.Sprintf("wire: cannot represent Go type %s", e.Type)
}

var (
	variantType    = reflect.TypeOf(Variant{})
	signatureType  = reflect.TypeOf(Signature(""))
	objectPathType = reflect.TypeOf(ObjectPath(""))
)

func sigOfType(t reflect.Type) (string, error) {
	switch t {
	case variantType:
		return "v", nil
	case signatureType:
		return "g", nil
	case objectPathType:
		return "o", nil
	}
	switch t.Kind() {
	case reflect.Uint8:
		return "y", nil
	case reflect.Bool:
		return "b", nil
	case reflect.Int16:
		return "n", nil
	case reflect.Uint16:
		return "q", nil
	case reflect.Int32:
		return "i", nil
	case reflect.Uint32:
		return "u", nil
	case reflect.Int64:
		return "x", nil
	case reflect.Uint64:
		return "t", nil
	case reflect.Float64:
		return "d", nil
	case reflect.String:
		return "s", nil
	case reflect.Ptr:
		return sigOfType(t.Elem())
	case reflect.Slice, reflect.Array:
		elem, err := sigOfType(t.Elem())
		if err != nil {
			return "", err
		}
		return "a" + elem, nil
	case reflect.Map:
		if !isBasicKind(t.Key()) {
			return "", &TypeError{Type: t}
		}
		key, err := sigOfType(t.Key())
		if err != nil {
			return "", err
		}
		val, err := sigOfType(t.Elem())
		if err != nil {
			return "", err
		}
		return "a{" + key + val + "}", nil
	case reflect.Struct:
		out := "("
		n := 0
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if !f.IsExported() || f.Tag.Get("dbus") == "-" {
				continue
			}
			s, err := sigOfType(f.Type)
			if err != nil {
				return "", err
			}
			out += s
			n++
		}
		if n == 0 {
			return "", &TypeError{Type: t}
		}
		return out + ")", nil
	}
	return "", &TypeError{Type: t}
}

func isBasicKind(t reflect.Type) bool {
	if t == signatureType || t == objectPathType {
		return true
	}
	switch t.Kind() {
	case reflect.Uint8, reflect.Bool, reflect.Int16, reflect.Uint16,
		reflect.Int32, reflect.Int, reflect.Uint32, reflect.Uint,
		reflect.Int64, reflect.Uint64, reflect.Float64, reflect.String:
		return true
	}
	return false
}
