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

import (
	"context"
	"testing"
)

func TestHistoryRecords(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	red := ReducerFunc[testState, string](func(s *testState, a string) *Op[string] {
		s.Count++
		return nil
	})
	st := NewStore[testState, string](red, testState{})
	st.Same = sameCount
	st.History = NewHistory[testState, string]()
	st.Start(ctx)

	for _, a := range []string{"x", "y", "z"} {
		if err := st.Send(ctx, a); err != nil {
			t.Fatal(err)
		}
	}

	es := st.History.Entries()
	if len(es) != 3 {
		t.Fatal(es)
	}
	// Each entry snapshots the state after its action was reduced.
	for i, e := range es {
		if e.State.Count != i+1 {
			t.Fatalf("entry %d: %+v", i, e)
		}
	}
	if es[1].Action != "y" {
		t.Fatal(es[1].Action)
	}
	if st.History.Len() != 3 {
		t.Fatal(st.History.Len())
	}
}

func TestHistoryDisabledByDefault(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	red := ReducerFunc[testState, string](func(s *testState, a string) *Op[string] {
		return nil
	})
	st := NewStore[testState, string](red, testState{})
	st.Start(ctx)

	if err := st.Send(ctx, "x"); err != nil {
		t.Fatal(err)
	}
	if st.History != nil {
		t.Fatal("history should be opt-in")
	}
}
