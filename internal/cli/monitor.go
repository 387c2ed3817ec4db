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

	flag "github.com/spf13/pflag"
)

type monitorCmd struct {
	commandBase
	count int
}

func (*monitorCmd) Name() string {
	return "monitor"
}

func (*monitorCmd) Description() string {
	return "Print messages as they arrive from the bus."
}

func (c *monitorCmd) SetFlags(f *flag.FlagSet) {
	c.commandBase.SetFlags(f)
	f.IntVarP(&c.count, "count", "n", 0, "stop after this many messages, 0 for no limit")
}

func (c *monitorCmd) Execute(ctx context.Context, args []string) error {
	if len(args) != 0 {
		return errors.New("unsupported arguments")
	}
	cfg, err := c.options()
	if err != nil {
		return err
	}
	conn, err := c.connect(cfg)
	if err != nil {
		return err
	}
	defer conn.Close()

	p := newPrinter()
	for i := 0; c.count == 0 || i < c.count; i++ {
		msg, err := conn.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		p.message(msg)
	}
	return nil
}
