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

// Package docindex models the sidebar index file a documentation site
// serves next to each rendered page: a mapping from symbol categories
// to ordered (name, description) pairs, wrapped in a single
// initSidebarItems(...) call.
package docindex

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// The category tags used by the generator. An Index may carry others;
// these are the ones the renderer groups into sections.
const (
	TagConstant = "constant"
	TagFn       = "fn"
	TagStruct   = "struct"
)

// Entry is one symbol in the index. The description may be empty.
type Entry struct {
	Name        string
	Description string
}

// Category is an ordered list of entries under one tag.
type Category struct {
	Tag     string
	Entries []Entry
}

// Index is a sidebar index record. Category and entry order is the
// order the generator emitted, and is preserved through Parse and
// Render.
type Index struct {
	Categories []Category
}

// Add appends an entry under tag, creating the category on first use.
func (x *Index) Add(tag, name, description string) {
	for i := range x.Categories {
		if x.Categories[i].Tag == tag {
			x.Categories[i].Entries = append(x.Categories[i].Entries, Entry{name, description})
			return
		}
	}
	x.Categories = append(x.Categories, Category{Tag: tag, Entries: []Entry{{name, description}}})
}

// Category returns the entries under tag, or nil.
func (x *Index) Category(tag string) []Entry {
	for _, c := range x.Categories {
		if c.Tag == tag {
			return c.Entries
		}
	}
	return nil
}

// Validate applies the structural rules of the format: unique category
// tags, non-empty unique symbol names.
func (x *Index) Validate() error {
	tags := map[string]struct{}{}
	for _, c := range x.Categories {
		if c.Tag == "" {
			return fmt.Errorf("empty category tag")
		}
		if _, dup := tags[c.Tag]; dup {
			return fmt.Errorf("duplicate category %q", c.Tag)
		}
		tags[c.Tag] = struct{}{}
		names := map[string]struct{}{}
		for i, e := range c.Entries {
			if e.Name == "" {
				return fmt.Errorf("category %q entry #%d has an empty name", c.Tag, i+1)
			}
			if _, dup := names[e.Name]; dup {
				return fmt.Errorf("category %q lists %q twice", c.Tag, e.Name)
			}
			names[e.Name] = struct{}{}
		}
	}
	return nil
}

const callPrefix = "initSidebarItems("

// Parse reads a sidebar index payload, either the full
// initSidebarItems({...}) call or the bare JSON object.
func Parse(data []byte) (*Index, error) {
	s := strings.TrimSpace(string(data))
	if strings.HasPrefix(s, callPrefix) {
		s = strings.TrimPrefix(s, callPrefix)
		s = strings.TrimSuffix(strings.TrimSpace(s), ";")
		var ok bool
		if s, ok = strings.CutSuffix(strings.TrimSpace(s), ")"); !ok {
			return nil, fmt.Errorf("unterminated %s call", callPrefix)
		}
	}

	// encoding/json maps would lose category order, so walk the token
	// stream instead.
	dec := json.NewDecoder(strings.NewReader(s))
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("sidebar index: %w", err)
	}
	if tok != json.Delim('{') {
		return nil, fmt.Errorf("sidebar index: expected an object, got %v", tok)
	}
	x := &Index{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("sidebar index: %w", err)
		}
		tag := tok.(string)
		var raw [][]string
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("sidebar index: category %q: %w", tag, err)
		}
		c := Category{Tag: tag, Entries: make([]Entry, 0, len(raw))}
		for i, pair := range raw {
			if len(pair) != 2 {
				return nil, fmt.Errorf("sidebar index: category %q entry #%d has %d elements, want 2", tag, i+1, len(pair))
			}
			c.Entries = append(c.Entries, Entry{Name: pair[0], Description: pair[1]})
		}
		x.Categories = append(x.Categories, c)
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("sidebar index: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("sidebar index: trailing data after object")
	}
	if err := x.Validate(); err != nil {
		return nil, fmt.Errorf("sidebar index: %w", err)
	}
	return x, nil
}

// Render serializes the index as the single-line call form the
// documentation renderer consumes. Output is deterministic: categories
// and entries appear in record order.
func (x *Index) Render() ([]byte, error) {
	if err := x.Validate(); err != nil {
		return nil, err
	}
	var b bytes.Buffer
	b.WriteString(callPrefix)
	if err := x.writeJSON(&b); err != nil {
		return nil, err
	}
	b.WriteString(");")
	return b.Bytes(), nil
}

// RenderJSON serializes only the object, without the call wrapper.
func (x *Index) RenderJSON() ([]byte, error) {
	if err := x.Validate(); err != nil {
		return nil, err
	}
	var b bytes.Buffer
	if err := x.writeJSON(&b); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

func (x *Index) writeJSON(b *bytes.Buffer) error {
	b.WriteByte('{')
	for i, c := range x.Categories {
		if i > 0 {
			b.WriteByte(',')
		}
		if err := writeString(b, c.Tag); err != nil {
			return err
		}
		b.WriteString(":[")
		for j, e := range c.Entries {
			if j > 0 {
				b.WriteByte(',')
			}
			b.WriteByte('[')
			if err := writeString(b, e.Name); err != nil {
				return err
			}
			b.WriteByte(',')
			if err := writeString(b, e.Description); err != nil {
				return err
			}
			b.WriteByte(']')
		}
		b.WriteByte(']')
	}
	b.WriteByte('}')
	return nil
}

func writeString(b *bytes.Buffer, s string) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	b.Write(raw)
	return nil
}
