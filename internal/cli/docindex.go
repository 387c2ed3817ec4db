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
	"os"

	"github.com/buswire/buswire/docindex"
	flag "github.com/spf13/pflag"
)

type docindexCmd struct {
	out    string
	format string
	check  bool
}

func (*docindexCmd) Name() string {
	return "docindex"
}

func (*docindexCmd) Description() string {
	return "Emit the documentation sidebar index for the library's public API.\nWith --check, validate an existing sidebar index file instead."
}

func (c *docindexCmd) SetFlags(f *flag.FlagSet) {
	f.StringVarP(&c.out, "out", "o", "", "write to this file instead of stdout")
	f.StringVar(&c.format, "format", "js", "output format: js (initSidebarItems call) or json")
	f.BoolVar(&c.check, "check", false, "validate the sidebar index file given as argument")
}

func (c *docindexCmd) Execute(ctx context.Context, args []string) error {
	if c.check {
		if len(args) != 1 {
			return errors.New("--check expects exactly one file argument")
		}
		raw, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		x, err := docindex.Parse(raw)
		if err != nil {
			return err
		}
		total := 0
		for _, cat := range x.Categories {
			total += len(cat.Entries)
		}
		fmt.Fprintf(os.Stdout, "%s: %d categories, %d symbols\n", args[0], len(x.Categories), total)
		return nil
	}
	if len(args) != 0 {
		return errors.New("unsupported arguments")
	}

	x := docindex.Catalog()
	var raw []byte
	var err error
	switch c.format {
	case "js":
		raw, err = x.Render()
	case "json":
		raw, err = x.RenderJSON()
	default:
		return fmt.Errorf("unknown format %q", c.format)
	}
	if err != nil {
		return err
	}
	raw = append(raw, '\n')
	if c.out != "" {
		return os.WriteFile(c.out, raw, 0o666)
	}
	_, err = os.Stdout.Write(raw)
	return err
}
