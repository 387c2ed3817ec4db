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

package bus

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/buswire/buswire/address"
	"github.com/buswire/buswire/auth"
	"github.com/buswire/buswire/message"
	"github.com/google/go-cmp/cmp"
)

// testServer plays the bus side of a connection over an in-memory
// pipe.
type testServer struct {
	t      *testing.T
	c      net.Conn
	r      *bufio.Reader
	serial uint32
}

func (s *testServer) handshake() {
	nul := make([]byte, 1)
	if _, err := s.r.Read(nul); err != nil || nul[0] != 0 {
		s.t.Errorf("expected initial NUL byte, got %v, %v", nul, err)
		return
	}
	line, err := s.r.ReadString('\n')
	if err != nil || !strings.HasPrefix(line, "AUTH ") {
		s.t.Errorf("expected AUTH command, got %q, %v", line, err)
		return
	}
	if _, err := s.c.Write([]byte("OK 1234deadbeef\r\n")); err != nil {
		s.t.Error(err)
		return
	}
	if line, err = s.r.ReadString('\n'); err != nil || line != "BEGIN\r\n" {
		s.t.Errorf("expected BEGIN, got %q, %v", line, err)
	}
}

func (s *testServer) read() *message.Message {
	msg, err := message.ReadFrom(s.r)
	if err != nil {
		s.t.Errorf("server read: %v", err)
		return nil
	}
	return msg
}

func (s *testServer) write(m *message.Message) {
	s.serial++
	m.Serial = s.serial
	raw, err := m.Marshal()
	if err != nil {
		s.t.Errorf("server marshal: %v", err)
		return
	}
	if _, err := s.c.Write(raw); err != nil {
		s.t.Errorf("server write: %v", err)
	}
}

func (s *testServer) replyHello() {
	call := s.read()
	if call == nil {
		return
	}
	if call.Member() != "Hello" {
		s.t.Errorf("first call = %q, want Hello", call.Member())
	}
	reply := message.NewMethodReturn(call.Serial)
	if err := reply.Append(":1.7"); err != nil {
		s.t.Error(err)
		return
	}
	s.write(reply)
}

// newTestConn returns a connected Conn whose peer runs script after
// completing the handshake and Hello exchange.
func newTestConn(t *testing.T, script func(s *testServer)) *Conn {
	t.Helper()
	client, server := net.Pipe()
	s := &testServer{t: t, c: server, r: bufio.NewReader(server)}
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.handshake()
		s.replyHello()
		if script != nil {
			script(s)
		}
	}()
	conn, err := New(client, func(c net.Conn) error {
		return auth.Anonymous(c, "test")
	})
	if err != nil {
		client.Close()
		server.Close()
		<-done
		t.Fatal(err)
	}
	t.Cleanup(func() {
		conn.Close()
		server.Close()
		<-done
	})
	return conn
}

func TestConnectHandshake(t *testing.T) {
	t.Parallel()
	conn := newTestConn(t, nil)
	if got := conn.UniqueName(); got != ":1.7" {
		t.Errorf("UniqueName() = %q, want %q", got, ":1.7")
	}
}

func TestConnectAbstractSocket(t *testing.T) {
	t.Parallel()
	if runtime.GOOS != "linux" {
		t.Skip("abstract unix sockets are linux-only")
	}
	name := fmt.Sprintf("buswire-test-abstract-%d", os.Getpid())
	l, err := net.Listen("unix", "@"+name)
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		c, err := l.Accept()
		if err != nil {
			t.Error(err)
			return
		}
		defer c.Close()
		s := &testServer{t: t, c: c, r: bufio.NewReader(c)}
		s.handshake()
		s.replyHello()
	}()

	conn, err := connectEntry(address.Address{
		Transport: "unix",
		Options:   map[string]string{"abstract": name},
	})
	if err != nil {
		t.Fatalf("connectEntry(abstract) = %v", err)
	}
	defer conn.Close()
	<-done
	if got := conn.UniqueName(); got != ":1.7" {
		t.Errorf("UniqueName() = %q, want %q", got, ":1.7")
	}
}

func TestSendAssignsSerials(t *testing.T) {
	t.Parallel()
	conn := newTestConn(t, func(s *testServer) {
		s.read()
		s.read()
	})
	m1 := message.NewMethodCall("org.example", "/", "org.example", "A")
	m1.Flags = message.FlagNoReplyExpected
	m2 := message.NewMethodCall("org.example", "/", "org.example", "B")
	m2.Flags = message.FlagNoReplyExpected
	// Hello used serial 1.
	s1, err := conn.Send(m1)
	if err != nil {
		t.Fatal(err)
	}
	s2, err := conn.Send(m2)
	if err != nil {
		t.Fatal(err)
	}
	if s1 != 2 || s2 != 3 {
		t.Errorf("serials = %d, %d, want 2, 3", s1, s2)
	}
}

func TestCallQueuesUnrelatedMessages(t *testing.T) {
	t.Parallel()
	conn := newTestConn(t, func(s *testServer) {
		call := s.read()
		if call == nil {
			return
		}
		// An unrelated signal arrives before the reply; Call must
		// hold it for ReadMessage rather than dropping it.
		sig := message.NewSignal("/org/example", "org.example.Iface", "Changed")
		s.write(sig)
		reply := message.NewMethodReturn(call.Serial)
		if err := reply.Append(uint32(99)); err != nil {
			s.t.Error(err)
			return
		}
		s.write(reply)
	})

	call := message.NewMethodCall("org.example", "/org/example", "org.example.Iface", "Get")
	body, err := conn.Call(context.Background(), call)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]any{uint32(99)}, body); diff != "" {
		t.Errorf("reply body mismatch (-want +got):\n%s", diff)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	queued, err := conn.ReadMessage(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if queued.Type != message.TypeSignal || queued.Member() != "Changed" {
		t.Errorf("queued message = %s %q, want signal Changed", queued.Type, queued.Member())
	}
}

func TestCallErrorReply(t *testing.T) {
	t.Parallel()
	conn := newTestConn(t, func(s *testServer) {
		call := s.read()
		if call == nil {
			return
		}
		reply := message.NewError("org.freedesktop.DBus.Error.UnknownMethod", call.Serial)
		if err := reply.Append("no such method"); err != nil {
			s.t.Error(err)
			return
		}
		s.write(reply)
	})

	call := message.NewMethodCall("org.example", "/", "org.example", "Nope")
	_, err := conn.Call(context.Background(), call)
	var ce *CallError
	if !errors.As(err, &ce) {
		t.Fatalf("Call() = %v, want *CallError", err)
	}
	if ce.Name != "org.freedesktop.DBus.Error.UnknownMethod" {
		t.Errorf("CallError.Name = %q", ce.Name)
	}
	if got := ce.Error(); !strings.Contains(got, "no such method") {
		t.Errorf("CallError.Error() = %q, want the peer's message included", got)
	}
}

func TestCallContextCancellation(t *testing.T) {
	t.Parallel()
	conn := newTestConn(t, func(s *testServer) {
		// Swallow the call and never reply.
		s.read()
	})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	call := message.NewMethodCall("org.example", "/", "org.example", "Hang")
	_, err := conn.Call(ctx, call)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Call() = %v, want context.DeadlineExceeded", err)
	}
}

func TestCallArgumentChecks(t *testing.T) {
	t.Parallel()
	conn := newTestConn(t, nil)

	sig := message.NewSignal("/p", "org.example", "Changed")
	if _, err := conn.Call(context.Background(), sig); err == nil {
		t.Error("Call(signal) = nil, want error")
	}

	call := message.NewMethodCall("d", "/p", "i", "m")
	call.Flags = message.FlagNoReplyExpected
	if _, err := conn.Call(context.Background(), call); err == nil {
		t.Error("Call(NO_REPLY_EXPECTED) = nil, want error")
	}
}

func TestClosedConn(t *testing.T) {
	t.Parallel()
	conn := newTestConn(t, nil)
	if err := conn.Close(); err != nil {
		t.Fatal(err)
	}
	m := message.NewMethodCall("d", "/p", "i", "m")
	if _, err := conn.Send(m); !errors.Is(err, ErrClosed) {
		t.Errorf("Send() on closed conn = %v, want ErrClosed", err)
	}
	if _, err := conn.ReadMessage(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("ReadMessage() on closed conn = %v, want ErrClosed", err)
	}
}
