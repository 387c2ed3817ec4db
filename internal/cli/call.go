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

package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/buswire/buswire/message"
	"github.com/buswire/buswire/wire"
	flag "github.com/spf13/pflag"
)

type callCmd struct {
	commandBase
	noAutoStart bool
}

func (*callCmd) Name() string {
	return "call"
}

func (*callCmd) Description() string {
	return "Call a method on the bus.\nUsage: call DESTINATION PATH INTERFACE METHOD [ARG...]\nArgs are strings by default; prefix with u: i: b: o: or d: to type them."
}

func (c *callCmd) SetFlags(f *flag.FlagSet) {
	c.commandBase.SetFlags(f)
	f.BoolVar(&c.noAutoStart, "no-auto-start", false, "do not start the destination service if it is not running")
}

func (c *callCmd) Execute(ctx context.Context, args []string) error {
	if len(args) < 4 {
		return errors.New("expected DESTINATION PATH INTERFACE METHOD [ARG...]")
	}
	cfg, err := c.options()
	if err != nil {
		return err
	}
	msg := message.NewMethodCall(args[0], wire.ObjectPath(args[1]), args[2], args[3])
	if c.noAutoStart {
		msg.Flags |= message.FlagNoAutoStart
	}
	for _, arg := range args[4:] {
		v, err := parseArg(arg)
		if err != nil {
			return err
		}
		if err := msg.Append(v); err != nil {
			return err
		}
	}

	conn, err := c.connect(cfg)
	if err != nil {
		return err
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(ctx, time.Duration(cfg.Timeout))
	defer cancel()
	reply, err := conn.Call(ctx, msg)
	if err != nil {
		return err
	}
	newPrinter().values(reply)
	return nil
}

// parseArg converts a typed command line argument. A "type:" prefix
// selects the D-Bus type, defaulting to string.
func parseArg(s string) (any, error) {
	prefix, rest, ok := strings.Cut(s, ":")
	if !ok {
		return s, nil
	}
	switch prefix {
	case "s":
		return rest, nil
	case "o":
		return wire.ObjectPath(rest), nil
	case "u":
		v, err := strconv.ParseUint(rest, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("argument %q: %w", s, err)
		}
		return uint32(v), nil
	case "i":
		v, err := strconv.ParseInt(rest, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("argument %q: %w", s, err)
		}
		return int32(v), nil
	case "b":
		v, err := strconv.ParseBool(rest)
		if err != nil {
			return nil, fmt.Errorf("argument %q: %w", s, err)
		}
		return v, nil
	case "d":
		v, err := strconv.ParseFloat(rest, 64)
		if err != nil {
			return nil, fmt.Errorf("argument %q: %w", s, err)
		}
		return v, nil
	}
	// Not a recognized type prefix; treat the whole token as a string.
	return s, nil
}
