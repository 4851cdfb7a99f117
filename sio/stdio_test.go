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

package sio

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coxswain-io/coxswain/script"
)

type safeBuffer struct {
	sync.Mutex
	buf bytes.Buffer
}

func (b *safeBuffer) Write(p []byte) (int, error) {
	b.Lock()
	defer b.Unlock()
	return b.buf.Write(p)
}

func (b *safeBuffer) String() string {
	b.Lock()
	defer b.Unlock()
	return b.buf.String()
}

func TestStdioIO(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	input := `# a comment

{"type":"go"}
quit
`
	buf := &safeBuffer{}
	s := &Stdio{
		In:       strings.NewReader(input),
		Out:      buf,
		Tags:     true,
		InputEOF: make(chan bool),
	}

	in, out, done, err := s.IO(ctx)
	if err != nil {
		t.Fatal(err)
	}

	select {
	case a := <-in:
		if a["type"] != "go" {
			t.Fatal(a)
		}
	case <-time.After(time.Second):
		t.Fatal("no action")
	}

	st := script.NewState()
	st.Refresh["count"] = 1
	out <- &Note{State: &st}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("no done")
	}

	deadline := time.Now().Add(time.Second)
	for !strings.Contains(buf.String(), `"count":1`) {
		if time.Now().After(deadline) {
			t.Fatalf("no state output: %s", buf.String())
		}
		time.Sleep(2 * time.Millisecond)
	}
	if !strings.Contains(buf.String(), "state ") {
		t.Fatalf("no tag: %s", buf.String())
	}

	cancel()
	if err := s.Stop(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestStdioBadInput(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	input := "this is not json\n{\"type\":\"ok\"}\nquit\n"
	s := &Stdio{
		In:       strings.NewReader(input),
		Out:      &safeBuffer{},
		InputEOF: make(chan bool),
	}

	in, _, _, err := s.IO(ctx)
	if err != nil {
		t.Fatal(err)
	}

	// The bad line is skipped, not fatal.
	select {
	case a := <-in:
		if a["type"] != "ok" {
			t.Fatal(a)
		}
	case <-time.After(time.Second):
		t.Fatal("no action")
	}
}
