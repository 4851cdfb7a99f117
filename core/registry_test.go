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

package core

import "testing"

func TestRegistryReplace(t *testing.T) {
	r := newRegistry()

	cancelled := 0
	r.addTask("x", func() { cancelled++ })
	// Same id, other table: the previous entry is cancelled, not
	// orphaned.
	r.addFlow("x", func() { cancelled++ })

	if cancelled != 1 {
		t.Fatal(cancelled)
	}
	if r.size() != 1 {
		t.Fatal(r.size())
	}

	r.cancel("x")
	if cancelled != 2 || r.size() != 0 {
		t.Fatalf("cancelled=%d size=%d", cancelled, r.size())
	}

	// Unknown ids are no-ops.
	r.cancel("x")
	r.cancel("never")
	if cancelled != 2 {
		t.Fatal(cancelled)
	}
}

func TestRegistryStaleRemove(t *testing.T) {
	r := newRegistry()

	old := r.addTask("x", func() {})
	r.addTask("x", func() {})

	// A stale goroutine finishing late must not clobber the new
	// registration.
	r.remove("x", old)
	if r.size() != 1 {
		t.Fatal(r.size())
	}
}

func TestRegistryCancelAll(t *testing.T) {
	r := newRegistry()
	n := 0
	r.addTask("a", func() { n++ })
	r.addFlow("b", func() { n++ })
	r.addFlow("c", func() { n++ })
	r.cancelAll()
	if n != 3 || r.size() != 0 {
		t.Fatalf("n=%d size=%d", n, r.size())
	}
}
