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

package docindex

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParse(t *testing.T) {
	t.Parallel()
	payload := `initSidebarItems({"constant":[["FLAGS_NO_REPLY_EXPECTED",""]],"fn":[["create_method_call","Create a method call."],["create_signal",""]],"struct":[["Message","A message."]]});`
	x, err := Parse([]byte(payload))
	if err != nil {
		t.Fatal(err)
	}
	want := &Index{Categories: []Category{
		{TagConstant, []Entry{{"FLAGS_NO_REPLY_EXPECTED", ""}}},
		{TagFn, []Entry{{"create_method_call", "Create a method call."}, {"create_signal", ""}}},
		{TagStruct, []Entry{{"Message", "A message."}}},
	}}
	if diff := cmp.Diff(want, x); diff != "" {
		t.Errorf("Parse() mismatch (-want +got):\n%s", diff)
	}
}

func TestParseBareObject(t *testing.T) {
	t.Parallel()
	x, err := Parse([]byte(`{"fn":[["a",""]]}`))
	if err != nil {
		t.Fatal(err)
	}
	if got := x.Category(TagFn); len(got) != 1 || got[0].Name != "a" {
		t.Errorf("Category(fn) = %v", got)
	}
}

func TestParseErrors(t *testing.T) {
	t.Parallel()
	data := []struct {
		name    string
		payload string
	}{
		{"unterminated call", `initSidebarItems({"fn":[]};`},
		{"not an object", `initSidebarItems([1,2]);`},
		{"three element entry", `{"fn":[["a","b","c"]]}`},
		{"one element entry", `{"fn":[["a"]]}`},
		{"empty name", `{"fn":[["",""]]}`},
		{"duplicate name", `{"fn":[["a",""],["a",""]]}`},
		{"duplicate category", `{"fn":[],"fn":[]}`},
		{"trailing data", `{"fn":[]} {}`},
		{"non-string entry", `{"fn":[[1,2]]}`},
	}
	for _, line := range data {
		line := line
		t.Run(line.name, func(t *testing.T) {
			t.Parallel()
			if _, err := Parse([]byte(line.payload)); err == nil {
				t.Errorf("Parse(%q) = nil, want error", line.payload)
			}
		})
	}
}

func TestRenderRoundTrip(t *testing.T) {
	t.Parallel()
	x := &Index{}
	x.Add(TagConstant, "A", "first")
	x.Add(TagFn, "do_thing", `with "quotes"`)
	x.Add(TagFn, "other", "")
	raw, err := x.Render()
	if err != nil {
		t.Fatal(err)
	}
	s := string(raw)
	if !strings.HasPrefix(s, "initSidebarItems({") || !strings.HasSuffix(s, "});") {
		t.Errorf("Render() = %q, want an initSidebarItems call", s)
	}
	if strings.ContainsAny(s, "\n") {
		t.Errorf("Render() output spans multiple lines: %q", s)
	}
	got, err := Parse(raw)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(x, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestRenderPreservesOrder(t *testing.T) {
	t.Parallel()
	x := &Index{}
	x.Add("zeta", "z", "")
	x.Add("alpha", "a", "")
	raw, err := x.RenderJSON()
	if err != nil {
		t.Fatal(err)
	}
	s := string(raw)
	if strings.Index(s, "zeta") > strings.Index(s, "alpha") {
		t.Errorf("categories were reordered: %s", s)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	x := &Index{}
	x.Add(TagFn, "a", "")
	x.Add(TagFn, "a", "")
	if err := x.Validate(); err == nil {
		t.Error("Validate() with duplicate names = nil, want error")
	}
}

func TestCatalog(t *testing.T) {
	t.Parallel()
	x := Catalog()
	if err := x.Validate(); err != nil {
		t.Fatalf("Catalog().Validate() = %v", err)
	}
	for _, tag := range []string{TagConstant, TagFn, TagStruct} {
		if len(x.Category(tag)) == 0 {
			t.Errorf("Catalog() has no %q entries", tag)
		}
	}
	for _, name := range []string{"NewMethodCall", "NewMethodReturn", "NewError", "NewSignal"} {
		found := false
		for _, e := range x.Category(TagFn) {
			if e.Name == name {
				found = true
			}
		}
		if !found {
			t.Errorf("Catalog() fn category is missing %q", name)
		}
	}
}
