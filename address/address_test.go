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

package address

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParse(t *testing.T) {
	t.Parallel()
	data := []struct {
		name string
		addr string
		want []Address
	}{
		{
			"unix path",
			"unix:path=/var/run/dbus/system_bus_socket",
			[]Address{{"unix", map[string]string{"path": "/var/run/dbus/system_bus_socket"}}},
		},
		{
			"tcp with multiple options",
			"tcp:host=localhost,port=12345",
			[]Address{{"tcp", map[string]string{"host": "localhost", "port": "12345"}}},
		},
		{
			"multiple entries",
			"unix:abstract=/tmp/x;tcp:host=a,port=1",
			[]Address{
				{"unix", map[string]string{"abstract": "/tmp/x"}},
				{"tcp", map[string]string{"host": "a", "port": "1"}},
			},
		},
		{
			"percent escapes",
			"unix:path=/tmp/with%20space",
			[]Address{{"unix", map[string]string{"path": "/tmp/with space"}}},
		},
		{
			"transport without options",
			"autolaunch:",
			[]Address{{"autolaunch", map[string]string{}}},
		},
	}
	for _, line := range data {
		line := line
		t.Run(line.name, func(t *testing.T) {
			t.Parallel()
			got, err := Parse(line.addr)
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(line.want, got); diff != "" {
				t.Errorf("Parse(%q) mismatch (-want +got):\n%s", line.addr, diff)
			}
		})
	}
}

func TestParseErrors(t *testing.T) {
	t.Parallel()
	data := []struct {
		name string
		addr string
	}{
		{"empty", ""},
		{"no transport", "path=/tmp/x"},
		{"bare option", "unix:path"},
		{"duplicate option", "unix:path=/a,path=/b"},
		{"bad escape", "unix:path=/tmp/%zz"},
		{"truncated escape", "unix:path=/tmp/%2"},
	}
	for _, line := range data {
		line := line
		t.Run(line.name, func(t *testing.T) {
			t.Parallel()
			if _, err := Parse(line.addr); err == nil {
				t.Errorf("Parse(%q) = nil, want error", line.addr)
			}
		})
	}
}
