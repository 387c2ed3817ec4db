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
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/buswire/buswire/docindex"
)

func TestMainHelp(t *testing.T) {
	data := []struct {
		args []string
		want string
	}{
		{nil, "Usage of buswire:\n"},
		{[]string{"buswire"}, "Usage of buswire:\n"},
		{[]string{"buswire", "--help"}, "Usage of buswire:\n"},
		{[]string{"buswire", "call", "--help"}, "Usage of buswire call:\n"},
		{[]string{"buswire", "docindex", "--help"}, "Usage of buswire docindex:\n"},
	}
	for i, line := range data {
		line := line
		t.Run(strconv.Itoa(i), func(t *testing.T) {
			b := getBuf(t)
			if Main(context.Background(), line.args) == nil {
				t.Fatal("expected error")
			}
			if s := b.String(); !strings.HasPrefix(s, line.want) {
				t.Fatalf("Got:\n%q", s)
			}
		})
	}
}

func TestDocindexCmd(t *testing.T) {
	out := filepath.Join(t.TempDir(), "sidebar-items.js")
	cmd := &docindexCmd{out: out, format: "js"}
	if err := cmd.Execute(context.Background(), nil); err != nil {
		t.Fatal(err)
	}
	raw, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	x, err := docindex.Parse(raw)
	if err != nil {
		t.Fatal(err)
	}
	if len(x.Category(docindex.TagFn)) == 0 {
		t.Error("generated index has no fn entries")
	}
}

func TestDocindexCheck(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sidebar-items.js")
	payload := `initSidebarItems({"fn":[["create_signal",""]]});`
	if err := os.WriteFile(path, []byte(payload), 0o666); err != nil {
		t.Fatal(err)
	}
	cmd := &docindexCmd{check: true}
	if err := cmd.Execute(context.Background(), []string{path}); err != nil {
		t.Fatal(err)
	}

	bad := filepath.Join(t.TempDir(), "bad.js")
	if err := os.WriteFile(bad, []byte(`initSidebarItems({"fn":[["",""]]});`), 0o666); err != nil {
		t.Fatal(err)
	}
	if err := cmd.Execute(context.Background(), []string{bad}); err == nil {
		t.Error("expected a validation error")
	}
}

func TestParseArg(t *testing.T) {
	t.Parallel()
	data := []struct {
		in   string
		want any
	}{
		{"hello", "hello"},
		{"s:u:typed", "u:typed"},
		{"u:42", uint32(42)},
		{"i:-7", int32(-7)},
		{"b:true", true},
		{"d:1.5", 1.5},
		{"org.freedesktop.DBus", "org.freedesktop.DBus"},
	}
	for _, line := range data {
		got, err := parseArg(line.in)
		if err != nil {
			t.Fatalf("parseArg(%q): %v", line.in, err)
		}
		if got != line.want {
			t.Errorf("parseArg(%q) = %v (%T), want %v (%T)", line.in, got, got, line.want, line.want)
		}
	}
	if _, err := parseArg("u:not-a-number"); err == nil {
		t.Error("parseArg(u:not-a-number) = nil, want error")
	}
}

type panicWrite struct{}

func (panicWrite) Write(b []byte) (int, error) {
	panic("unexpected write!")
}

func getBuf(t *testing.T) *bytes.Buffer {
	old := helpOut
	t.Cleanup(func() {
		helpOut = old
	})
	b := &bytes.Buffer{}
	helpOut = b
	return b
}

func init() {
	helpOut = panicWrite{}
}
