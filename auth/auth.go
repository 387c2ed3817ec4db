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

// Package auth implements the client side of the SASL handshake that
// precedes the binary D-Bus protocol. The server speaks first only
// after the client's initial NUL byte, which the connection sends
// before calling into this package.
package auth

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strconv"
)

// ErrFailed is returned when the server rejects the handshake.
var ErrFailed = errors.New("authentication failed")

// External authenticates using the EXTERNAL mechanism with the
// caller's uid, which unix domain transports verify out of band.
func External(rw io.ReadWriter, uid int) error {
	id := hex.EncodeToString([]byte(strconv.Itoa(uid)))
	return exchange(rw, "AUTH EXTERNAL "+id)
}

// Anonymous authenticates using the ANONYMOUS mechanism. trace is an
// arbitrary string the server may log.
func Anonymous(rw io.ReadWriter, trace string) error {
	return exchange(rw, "AUTH ANONYMOUS "+hex.EncodeToString([]byte(trace)))
}

func exchange(rw io.ReadWriter, cmd string) error {
	if _, err := io.WriteString(rw, cmd+"\r\n"); err != nil {
		return err
	}
	resp, err := readLine(rw)
	if err != nil {
		return err
	}
	if len(resp) < 3 || resp[:3] != "OK " {
		return fmt.Errorf("%w: server said %q", ErrFailed, resp)
	}
	_, err = io.WriteString(rw, "BEGIN\r\n")
	return err
}

// readLine reads a CRLF terminated command line, one byte at a time so
// that no binary protocol data past the handshake is consumed.
func readLine(r io.Reader) (string, error) {
	var line []byte
	buf := make([]byte, 1)
	for {
		if _, err := io.ReadFull(r, buf); err != nil {
			return "", err
		}
		line = append(line, buf[0])
		n := len(line)
		if n >= 2 && line[n-2] == '\r' && line[n-1] == '\n' {
			return string(line[:n-2]), nil
		}
		if n > 4096 {
			return "", fmt.Errorf("%w: oversized response line", ErrFailed)
		}
	}
}
