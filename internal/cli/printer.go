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
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/buswire/buswire/message"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

// ansiCode is one of the simple SGR escape codes.
//
// https://en.wikipedia.org/wiki/ANSI_escape_code#SGR_.28Select_Graphic_Rendition.29_parameters
type ansiCode int

const (
	reset ansiCode = 0
	bold  ansiCode = 1

	fgRed     ansiCode = 31
	fgGreen   ansiCode = 32
	fgYellow  ansiCode = 33
	fgMagenta ansiCode = 35
	fgCyan    ansiCode = 36
)

func (a ansiCode) String() string {
	return fmt.Sprintf("\033[%dm", int(a))
}

// printer writes messages to a terminal-aware writer. Colors are only
// emitted on an interactive terminal.
type printer struct {
	out   io.Writer
	color bool
}

// newPrinter returns a printer on stdout.
func newPrinter() *printer {
	return &printer{
		out:   colorable.NewColorableStdout(),
		color: os.Getenv("TERM") != "dumb" && isatty.IsTerminal(os.Stdout.Fd()),
	}
}

func (p *printer) paint(c ansiCode, s string) string {
	if !p.color {
		return s
	}
	return c.String() + s + reset.String()
}

func typeColor(t message.MessageType) ansiCode {
	switch t {
	case message.TypeMethodCall:
		return fgCyan
	case message.TypeMethodReturn:
		return fgGreen
	case message.TypeError:
		return fgRed
	case message.TypeSignal:
		return fgYellow
	}
	return fgMagenta
}

// message prints one message: a summary line, then the header fields
// and body values indented.
func (p *printer) message(m *message.Message) {
	summary := fmt.Sprintf("%s serial=%d", p.paint(typeColor(m.Type), m.Type.String()), m.Serial)
	if s := m.Sender(); s != "" {
		summary += " sender=" + s
	}
	if d := m.Destination(); d != "" {
		summary += " destination=" + d
	}
	fmt.Fprintln(p.out, summary)

	codes := make([]int, 0, len(m.Fields))
	for code := range m.Fields {
		codes = append(codes, int(code))
	}
	sort.Ints(codes)
	for _, code := range codes {
		f := message.HeaderField(code)
		fmt.Fprintf(p.out, "  %s=%v\n", p.paint(bold, f.String()), m.Fields[f].Value)
	}
	for _, v := range m.Body {
		fmt.Fprintf(p.out, "  %s\n", formatValue(v))
	}
}

// values prints a reply body, one value per line.
func (p *printer) values(vals []any) {
	for _, v := range vals {
		fmt.Fprintln(p.out, formatValue(v))
	}
}

func formatValue(v any) string {
	switch x := v.(type) {
	case string:
		return fmt.Sprintf("%q", x)
	case []any:
		out := ""
		for i, e := range x {
			if i > 0 {
				out += " "
			}
			out += formatValue(e)
		}
		return "[" + out + "]"
	}
	return fmt.Sprintf("%v", v)
}
