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
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/buswire/buswire/docindex"
)

func TestSidebarHandler(t *testing.T) {
	t.Parallel()
	req := httptest.NewRequest("GET", "/sidebar-items.js", nil)
	w := httptest.NewRecorder()
	sidebarHandler(w, req)

	resp := w.Result()
	if resp.StatusCode != 200 {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Content-Type"); !strings.HasPrefix(got, "application/javascript") {
		t.Errorf("Content-Type = %q", got)
	}
	x, err := docindex.Parse(w.Body.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if len(x.Category(docindex.TagStruct)) == 0 {
		t.Error("served index has no struct entries")
	}
}
