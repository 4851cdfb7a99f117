/* Copyright 2026 The Coxswain Authors
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 * http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package tools

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/coxswain-io/coxswain/core"
	"github.com/coxswain-io/coxswain/script"
)

type action map[string]interface{}

func sampleOp() *core.Op[action] {
	return core.Concat(
		core.Do(action{"type": "a"}),
		core.Merge(
			core.Every(time.Second, "tick", action{"type": "tick"}),
			core.Cancel[action]("old"),
		),
	)
}

func TestDot(t *testing.T) {
	var buf bytes.Buffer
	if err := Dot(sampleOp(), &buf); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"digraph G", "concat", "merge", "tick", "@1s", "->"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in %s", want, out)
		}
	}
}

func TestDotNil(t *testing.T) {
	var buf bytes.Buffer
	if err := Dot[action](nil, &buf); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "digraph G") {
		t.Fatal(buf.String())
	}
}

func TestMermaid(t *testing.T) {
	var buf bytes.Buffer
	if err := Mermaid(sampleOp(), &buf, nil); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"graph TB", "concat", "merge", "tick", "-->", "style"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in %s", want, out)
		}
	}
}

func TestRenderDefHTML(t *testing.T) {
	def := &script.Def{
		Id:       "demo",
		Doc:      "# Demo\n\nBumps a *counter*.",
		Requires: []string{"file://lib.js"},
		Code:     "return null; // x < y",
		Refresh:  map[string]interface{}{"count": 0},
	}

	var buf bytes.Buffer
	if err := RenderDefHTML(def, &buf); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"counter", "x &lt; y", "initialState", "lib.js"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in %s", want, out)
		}
	}

	buf.Reset()
	if err := RenderDefPage(def, &buf, []string{"def.css"}); err != nil {
		t.Fatal(err)
	}
	out = buf.String()
	for _, want := range []string{"<title>demo</title>", "def.css", "<h1>demo</h1>"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in %s", want, out)
		}
	}
}
