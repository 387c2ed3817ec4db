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

// Package message constructs and parses D-Bus messages: the fixed
// header, the header field array and the signature-described body.
package message

import (
	"errors"
	"fmt"

	"github.com/buswire/buswire/wire"
)

// MessageType identifies the kind of message.
type MessageType byte

// The message types defined by the protocol.
const (
	TypeInvalid MessageType = iota
	TypeMethodCall
	TypeMethodReturn
	TypeError
	TypeSignal
)

func (t MessageType) String() string {
	switch t {
	case TypeMethodCall:
		return "method_call"
	case TypeMethodReturn:
		return "method_return"
	case TypeError:
		return "error"
	case TypeSignal:
		return "signal"
	}
	return fmt.Sprintf("invalid(%d)", byte(t))
}

// HeaderField identifies an entry of the header field array.
type HeaderField byte

// The header fields defined by the protocol.
const (
	FieldPath HeaderField = iota + 1
	FieldInterface
	FieldMember
	FieldErrorName
	FieldReplySerial
	FieldDestination
	FieldSender
	FieldSignature
	FieldUnixFDs
)

func (f HeaderField) String() string {
	switch f {
	case FieldPath:
		return "path"
	case FieldInterface:
		return "interface"
	case FieldMember:
		return "member"
	case FieldErrorName:
		return "error_name"
	case FieldReplySerial:
		return "reply_serial"
	case FieldDestination:
		return "destination"
	case FieldSender:
		return "sender"
	case FieldSignature:
		return "signature"
	case FieldUnixFDs:
		return "unix_fds"
	}
	return fmt.Sprintf("field(%d)", byte(f))
}

// Flags is the set of header flag bits.
type Flags byte

// The header flags defined by the protocol.
const (
	FlagNoReplyExpected Flags = 1 << iota
	FlagNoAutoStart
	FlagAllowInteractiveAuthorization
)

// protocolVersion is the only major protocol version this library
// speaks.
const protocolVersion = 1

// Message is a single D-Bus message.
type Message struct {
	Type      MessageType
	Flags     Flags
	Version   byte
	Serial    uint32
	BigEndian bool
	Fields    map[HeaderField]wire.Variant
	Body      []any
}

// NewMethodCall returns a method call message for the given
// destination, object path, interface and method name.
func NewMethodCall(destination string, path wire.ObjectPath, iface, method string) *Message {
	m := empty(TypeMethodCall)
	m.Fields[FieldDestination] = wire.MustVariant(destination)
	m.Fields[FieldPath] = wire.MustVariant(path)
	m.Fields[FieldInterface] = wire.MustVariant(iface)
	m.Fields[FieldMember] = wire.MustVariant(method)
	return m
}

// NewMethodReturn returns a reply to the method call with the given
// serial.
func NewMethodReturn(replySerial uint32) *Message {
	m := empty(TypeMethodReturn)
	m.Fields[FieldReplySerial] = wire.MustVariant(replySerial)
	return m
}

// NewError returns an error reply. name is the error name, e.g.
// "org.freedesktop.DBus.Error.UnknownMethod".
func NewError(name string, replySerial uint32) *Message {
	m := empty(TypeError)
	m.Fields[FieldErrorName] = wire.MustVariant(name)
	m.Fields[FieldReplySerial] = wire.MustVariant(replySerial)
	return m
}

// NewSignal returns a signal message emitted from path for the given
// interface member.
func NewSignal(path wire.ObjectPath, iface, member string) *Message {
	m := empty(TypeSignal)
	m.Fields[FieldPath] = wire.MustVariant(path)
	m.Fields[FieldInterface] = wire.MustVariant(iface)
	m.Fields[FieldMember] = wire.MustVariant(member)
	return m
}

func empty(t MessageType) *Message {
	return &Message{
		Type:    t,
		Version: protocolVersion,
		Fields:  map[HeaderField]wire.Variant{},
	}
}

// Append adds body arguments and keeps the signature header field in
// sync.
func (m *Message) Append(args ...any) error {
	sig, err := wire.SignatureOf(args...)
	if err != nil {
		return err
	}
	m.Body = append(m.Body, args...)
	m.Fields[FieldSignature] = wire.MustVariant(m.BodySignature() + sig)
	return nil
}

// BodySignature returns the value of the signature header field, or ""
// if unset.
func (m *Message) BodySignature() wire.Signature {
	if v, ok := m.Fields[FieldSignature]; ok {
		if sig, ok := v.Value.(wire.Signature); ok {
			return sig
		}
	}
	return ""
}

// Path returns the object path header field, or "".
func (m *Message) Path() wire.ObjectPath {
	if v, ok := m.Fields[FieldPath].Value.(wire.ObjectPath); ok {
		return v
	}
	return ""
}

// Member returns the member header field, or "".
func (m *Message) Member() string { return m.stringField(FieldMember) }

// Interface returns the interface header field, or "".
func (m *Message) Interface() string { return m.stringField(FieldInterface) }

// Destination returns the destination header field, or "".
func (m *Message) Destination() string { return m.stringField(FieldDestination) }

// Sender returns the sender header field, or "".
func (m *Message) Sender() string { return m.stringField(FieldSender) }

// ErrorName returns the error name header field, or "".
func (m *Message) ErrorName() string { return m.stringField(FieldErrorName) }

func (m *Message) stringField(f HeaderField) string {
	if v, ok := m.Fields[f].Value.(string); ok {
		return v
	}
	return ""
}

// ReplySerial returns the reply serial header field and whether it is
// set.
func (m *Message) ReplySerial() (uint32, bool) {
	v, ok := m.Fields[FieldReplySerial].Value.(uint32)
	return v, ok
}

// Validate checks the header fields the protocol requires for the
// message's type.
func (m *Message) Validate() error {
	switch m.Type {
	case TypeMethodCall:
		if m.Path() == "" || m.Member() == "" {
			return errors.New("method call requires path and member")
		}
	case TypeSignal:
		if m.Path() == "" || m.Interface() == "" || m.Member() == "" {
			return errors.New("signal requires path, interface and member")
		}
	case TypeMethodReturn:
		if _, ok := m.ReplySerial(); !ok {
			return errors.New("method return requires reply_serial")
		}
	case TypeError:
		if _, ok := m.ReplySerial(); !ok || m.ErrorName() == "" {
			return errors.New("error requires error_name and reply_serial")
		}
	default:
		return fmt.Errorf("invalid message type %d", byte(m.Type))
	}
	return nil
}
