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

// Package bus manages connections to a D-Bus message bus: transport
// setup, authentication, registration, and sending and receiving
// messages.
package bus

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"sync"
	"time"

	"github.com/buswire/buswire/address"
	"github.com/buswire/buswire/auth"
	"github.com/buswire/buswire/message"
)

// Version of the buswire module.
var Version = [3]int{0, 1, 0}

const (
	busName      = "org.freedesktop.DBus"
	busPath      = "/org/freedesktop/DBus"
	busInterface = "org.freedesktop.DBus"

	systemBusDefault = "unix:path=/var/run/dbus/system_bus_socket"
)

var (
	// ErrNoEnvironment is returned by ConnectSession when
	// DBUS_SESSION_BUS_ADDRESS is unset.
	ErrNoEnvironment = errors.New("DBUS_SESSION_BUS_ADDRESS is not set")
	// ErrBadData is returned when the bus replies with something other
	// than what the protocol promises.
	ErrBadData = errors.New("unexpected data from the bus")
	// ErrClosed is returned for operations on a closed connection.
	ErrClosed = errors.New("connection is closed")
)

// CallError is a method call failure reported by the remote peer as an
// ERROR message.
type CallError struct {
	Name string
	Body []any
}

func (e *CallError) Error() string {
	if len(e.Body) > 0 {
		if s, ok := e.Body[0].(string); ok {
			return fmt.Sprintf("%s: %s", e.Name, s)
		}
	}
	return e.Name
}

// Conn is a connection to a message bus.
//
// Send, Call and ReadMessage may not be used concurrently with each
// other; the connection serializes them internally.
type Conn struct {
	mu         sync.Mutex
	sock       net.Conn
	nextSerial uint32
	queue      []*message.Message
	uniqueName string
	closed     bool
}

// Connect connects to the bus at the given server address string,
// trying its entries in order.
func Connect(addr string) (*Conn, error) {
	entries, err := address.Parse(addr)
	if err != nil {
		return nil, err
	}
	var firstErr error
	for _, entry := range entries {
		c, err := connectEntry(entry)
		if err == nil {
			return c, nil
		}
		if firstErr == nil {
			firstErr = err
		}
		log.Printf("bus: address entry %s: %s", entry.Transport, err)
	}
	return nil, firstErr
}

// ConnectSystem connects to the system bus, honoring
// DBUS_SYSTEM_BUS_ADDRESS.
func ConnectSystem() (*Conn, error) {
	if e := os.Getenv("DBUS_SYSTEM_BUS_ADDRESS"); e != "" {
		return Connect(e)
	}
	return Connect(systemBusDefault)
}

// ConnectSession connects to the session bus named by
// DBUS_SESSION_BUS_ADDRESS.
func ConnectSession() (*Conn, error) {
	if e := os.Getenv("DBUS_SESSION_BUS_ADDRESS"); e != "" {
		return Connect(e)
	}
	return nil, ErrNoEnvironment
}

func connectEntry(entry address.Address) (*Conn, error) {
	switch entry.Transport {
	case "unix":
		if path := entry.Options["path"]; path != "" {
			return ConnectUnix(path)
		}
		if abstract := entry.Options["abstract"]; abstract != "" {
			// net.Dial spells the abstract namespace with a leading "@".
			return ConnectUnix("@" + abstract)
		}
		return nil, fmt.Errorf("unix address has neither path nor abstract option")
	case "tcp":
		host, port := entry.Options["host"], entry.Options["port"]
		if host == "" || port == "" {
			return nil, fmt.Errorf("tcp address requires host and port options")
		}
		return ConnectTCP(net.JoinHostPort(host, port))
	}
	return nil, fmt.Errorf("unsupported transport %q", entry.Transport)
}

// ConnectUnix connects over a unix domain socket and authenticates
// with the EXTERNAL mechanism.
func ConnectUnix(path string) (*Conn, error) {
	sock, err := net.Dial("unix", path)
	if err != nil {
		return nil, err
	}
	return setup(sock, func(s net.Conn) error {
		return auth.External(s, os.Getuid())
	})
}

// ConnectTCP connects over TCP and authenticates with the ANONYMOUS
// mechanism, as TCP transports cannot verify a uid.
func ConnectTCP(hostport string) (*Conn, error) {
	sock, err := net.Dial("tcp", hostport)
	if err != nil {
		return nil, err
	}
	return setup(sock, func(s net.Conn) error {
		return auth.Anonymous(s, fmt.Sprintf("buswire %d.%d.%d", Version[0], Version[1], Version[2]))
	})
}

// New wraps an already-open transport, authenticating with fn and
// registering with the bus. It is used by the Connect functions and by
// tests that supply an in-memory transport.
func New(sock net.Conn, fn func(net.Conn) error) (*Conn, error) {
	return setup(sock, fn)
}

func setup(sock net.Conn, authFn func(net.Conn) error) (*Conn, error) {
	// The server speaks only after the client's initial NUL byte.
	if _, err := sock.Write([]byte{0}); err != nil {
		sock.Close()
		return nil, err
	}
	if err := authFn(sock); err != nil {
		sock.Close()
		return nil, err
	}
	c := &Conn{sock: sock, nextSerial: 1}
	name, err := c.hello()
	if err != nil {
		sock.Close()
		return nil, err
	}
	c.uniqueName = name
	log.Printf("bus: connected as %s", name)
	return c, nil
}

// hello registers the connection with the bus and returns the unique
// name it assigned.
func (c *Conn) hello() (string, error) {
	reply, err := c.Call(context.Background(), message.NewMethodCall(busName, busPath, busInterface, "Hello"))
	if err != nil {
		return "", err
	}
	if len(reply) != 1 {
		return "", ErrBadData
	}
	name, ok := reply[0].(string)
	if !ok {
		return "", ErrBadData
	}
	return name, nil
}

// UniqueName returns the name the bus assigned to this connection,
// e.g. ":1.42".
func (c *Conn) UniqueName() string {
	return c.uniqueName
}

// Close closes the underlying transport.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.sock.Close()
}

// Send assigns the next serial to msg and writes it to the bus,
// returning the serial so the reply can be identified.
func (c *Conn) Send(msg *message.Message) (uint32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sendLocked(msg)
}

func (c *Conn) sendLocked(msg *message.Message) (uint32, error) {
	if c.closed {
		return 0, ErrClosed
	}
	msg.Serial = c.nextSerial
	raw, err := msg.Marshal()
	if err != nil {
		return 0, err
	}
	c.nextSerial++
	if _, err := c.sock.Write(raw); err != nil {
		return 0, err
	}
	return msg.Serial, nil
}

// Call sends a method call and blocks until its reply arrives. Other
// messages received while waiting are queued for ReadMessage, not
// dropped. An ERROR reply is returned as a *CallError.
func (c *Conn) Call(ctx context.Context, msg *message.Message) ([]any, error) {
	if msg.Type != message.TypeMethodCall {
		return nil, fmt.Errorf("cannot wait for a reply to a %s message", msg.Type)
	}
	if msg.Flags&message.FlagNoReplyExpected != 0 {
		return nil, errors.New("cannot wait for a reply with NO_REPLY_EXPECTED set")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	serial, err := c.sendLocked(msg)
	if err != nil {
		return nil, err
	}
	// Messages that arrive before our reply stay ordered ahead of it
	// in the queue.
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		reply, err := c.readLocked(ctx)
		if err != nil {
			return nil, err
		}
		if rs, ok := reply.ReplySerial(); ok && rs == serial {
			switch reply.Type {
			case message.TypeMethodReturn:
				return reply.Body, nil
			case message.TypeError:
				return nil, &CallError{Name: reply.ErrorName(), Body: reply.Body}
			}
		}
		c.queue = append(c.queue, reply)
	}
}

// ReadMessage returns the next queued message, or blocks reading one
// from the bus.
func (c *Conn) ReadMessage(ctx context.Context) (*message.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.queue) > 0 {
		msg := c.queue[0]
		c.queue = c.queue[1:]
		return msg, nil
	}
	return c.readLocked(ctx)
}

// readLocked reads one message from the socket. Context cancellation
// interrupts the read through the socket deadline.
func (c *Conn) readLocked(ctx context.Context) (*message.Message, error) {
	if c.closed {
		return nil, ErrClosed
	}
	if err := c.sock.SetReadDeadline(time.Time{}); err != nil {
		return nil, err
	}
	stop := context.AfterFunc(ctx, func() {
		c.sock.SetReadDeadline(time.Now())
	})
	defer stop()
	msg, err := message.ReadFrom(c.sock)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, net.ErrClosed) {
			return nil, ErrClosed
		}
		return nil, err
	}
	return msg, nil
}
