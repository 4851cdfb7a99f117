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
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func contains(acts []string, a string) bool {
	for _, x := range acts {
		if x == a {
			return true
		}
	}
	return false
}

func TestTaskDelivers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	red := ReducerFunc[testState, string](func(s *testState, a string) *Op[string] {
		if a == "start" {
			return Task("X", func(context.Context) string {
				return "produced"
			})
		}
		return nil
	})
	st := NewStore[testState, string](red, testState{})
	st.Same = sameCount
	st.History = NewHistory[testState, string]()
	st.Start(ctx)

	if err := st.Send(ctx, "start"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, time.Second, func() bool {
		return contains(st.History.Actions(), "produced")
	})
}

func TestTaskCancelBeforeCompletion(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	slow := func(wctx context.Context) string {
		select {
		case <-time.After(50 * time.Millisecond):
		case <-wctx.Done():
		}
		return "produced"
	}

	red := ReducerFunc[testState, string](func(s *testState, a string) *Op[string] {
		if a == "start" {
			// Cancel lands before the producer can finish.
			return Concat(Task("X", slow), Cancel[string]("X"))
		}
		return nil
	})
	st := NewStore[testState, string](red, testState{})
	st.Same = sameCount
	st.History = NewHistory[testState, string]()
	st.Start(ctx)

	if err := st.Send(ctx, "start"); err != nil {
		t.Fatal(err)
	}
	if err := st.Drain(ctx); err != nil {
		t.Fatal(err)
	}
	time.Sleep(60 * time.Millisecond) // past when the producer would have finished
	if contains(st.History.Actions(), "produced") {
		t.Fatal("cancelled task's action was delivered")
	}
}

func TestRunSideEffect(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ran := make(chan struct{})
	red := ReducerFunc[testState, string](func(s *testState, a string) *Op[string] {
		if a == "start" {
			return Run[string]("R", func(context.Context) {
				close(ran)
			})
		}
		return nil
	})
	st := NewStore[testState, string](red, testState{})
	st.Same = sameCount
	st.History = NewHistory[testState, string]()
	st.Start(ctx)

	if err := st.Send(ctx, "start"); err != nil {
		t.Fatal(err)
	}
	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("run never executed")
	}
	if err := st.Drain(ctx); err != nil {
		t.Fatal(err)
	}
	// A run produces no action.
	if got := st.History.Actions(); len(got) != 1 || got[0] != "start" {
		t.Fatalf("got actions %v", got)
	}
}

func TestTimerFiresAndCancels(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	red := ReducerFunc[testState, string](func(s *testState, a string) *Op[string] {
		switch a {
		case "begin":
			return Every(10*time.Millisecond, "T", "tick")
		case "stop":
			return Cancel[string]("T")
		case "tick":
			s.Hits++
		}
		return nil
	})
	st := NewStore[testState, string](red, testState{})
	st.Same = sameCount
	st.Start(ctx)

	if err := st.Send(ctx, "begin"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, 2*time.Second, func() bool { return st.State().Hits >= 2 })

	if err := st.Send(ctx, "stop"); err != nil {
		t.Fatal(err)
	}
	// An in-flight firing dispatched before the cancel may still
	// land; let it settle, then the count must hold.
	time.Sleep(20 * time.Millisecond)
	n := st.State().Hits
	time.Sleep(60 * time.Millisecond)
	if got := st.State().Hits; got != n {
		t.Fatalf("timer fired after cancel: %d then %d", n, got)
	}
}

func TestTimerBadInterval(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	red := ReducerFunc[testState, string](func(s *testState, a string) *Op[string] {
		if a == "begin" {
			return Every(0, "T", "tick")
		}
		return nil
	})
	st := NewStore[testState, string](red, testState{})
	st.Same = sameCount
	st.Errors = make(chan error, 8)
	st.Start(ctx)

	if err := st.Send(ctx, "begin"); err != nil {
		t.Fatal(err)
	}
	select {
	case err := <-st.Errors:
		if !errors.Is(err, ErrBadInterval) {
			t.Fatalf("got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("no error reported")
	}
	if st.registry.size() != 0 {
		t.Fatal("bad timer was registered")
	}
}

func TestCronBadExpr(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	red := ReducerFunc[testState, string](func(s *testState, a string) *Op[string] {
		if a == "begin" {
			return Cron("not a cron expression", "C", "tick")
		}
		return nil
	})
	st := NewStore[testState, string](red, testState{})
	st.Same = sameCount
	st.Errors = make(chan error, 8)
	st.Start(ctx)

	if err := st.Send(ctx, "begin"); err != nil {
		t.Fatal(err)
	}
	select {
	case <-st.Errors:
	case <-time.After(time.Second):
		t.Fatal("no error reported")
	}
}

func TestMergeBothDelivered(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	red := ReducerFunc[testState, string](func(s *testState, a string) *Op[string] {
		if a == "go" {
			return Merge(
				Task("a", func(context.Context) string { return "A" }),
				Task("b", func(context.Context) string { return "B" }),
			)
		}
		return nil
	})
	st := NewStore[testState, string](red, testState{})
	st.Same = sameCount
	st.History = NewHistory[testState, string]()
	st.Start(ctx)

	if err := st.Send(ctx, "go"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, 2*time.Second, func() bool {
		acts := st.History.Actions()
		return contains(acts, "A") && contains(acts, "B")
	})

	// Both effects resolved before a later external send completes.
	if err := st.Send(ctx, "probe"); err != nil {
		t.Fatal(err)
	}
	acts := st.History.Actions()
	last := acts[len(acts)-1]
	if last != "probe" {
		t.Fatalf("got %v", acts)
	}
}

func TestMergeFullMailboxNoDeadlock(t *testing.T) {
	// A tiny mailbox forces merge branches to enqueue more than the
	// buffer can hold while the loop is parked in the merge join.
	saved := InCap
	InCap = 1
	defer func() { InCap = saved }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	const n = 8
	branch := func(prefix string) *Op[string] {
		ops := make([]*Op[string], 0, n)
		for i := 0; i < n; i++ {
			ops = append(ops, Do(fmt.Sprintf("%s%d", prefix, i)))
		}
		return Concat(ops...)
	}

	red := ReducerFunc[testState, string](func(s *testState, a string) *Op[string] {
		if a == "go" {
			return Merge(branch("L"), branch("R"))
		}
		s.Hits++
		return nil
	})
	st := NewStore[testState, string](red, testState{})
	st.Same = sameCount
	st.History = NewHistory[testState, string]()
	st.Start(ctx)

	if err := st.Send(ctx, "go"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, 2*time.Second, func() bool { return st.State().Hits == 2*n })

	// Branch interleaving is unspecified, but within one branch the
	// concat order still holds.
	var ls []string
	for _, a := range st.History.Actions() {
		if strings.HasPrefix(a, "L") {
			ls = append(ls, a)
		}
	}
	for i, a := range ls {
		if want := fmt.Sprintf("L%d", i); a != want {
			t.Fatalf("branch order broke: %v", ls)
		}
	}
}

func TestStreamOrder(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	in := make(chan string, 3)
	in <- "v1"
	in <- "v2"
	in <- "v3"
	close(in)

	red := ReducerFunc[testState, string](func(s *testState, a string) *Op[string] {
		if a == "sub" {
			return Stream("S", in, func(v string) string { return "got-" + v })
		}
		return nil
	})
	st := NewStore[testState, string](red, testState{})
	st.Same = sameCount
	st.History = NewHistory[testState, string]()
	st.Start(ctx)

	if err := st.Send(ctx, "sub"); err != nil {
		t.Fatal(err)
	}
	if err := st.Drain(ctx); err != nil {
		t.Fatal(err)
	}

	var got []string
	for _, a := range st.History.Actions() {
		if len(a) > 4 && a[:4] == "got-" {
			got = append(got, a)
		}
	}
	want := []string{"got-v1", "got-v2", "got-v3"}
	if len(got) != len(want) {
		t.Fatalf("got %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v want %v", got, want)
		}
	}
}

func TestStreamCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	in := make(chan string) // never written, never closed
	red := ReducerFunc[testState, string](func(s *testState, a string) *Op[string] {
		switch a {
		case "sub":
			return Stream("S", in, func(v string) string { return v })
		case "unsub":
			return Cancel[string]("S")
		}
		return nil
	})
	st := NewStore[testState, string](red, testState{})
	st.Same = sameCount
	st.Start(ctx)

	if err := st.Send(ctx, "sub"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, time.Second, func() bool { return st.registry.size() == 1 })

	if err := st.Send(ctx, "unsub"); err != nil {
		t.Fatal(err)
	}
	if err := st.Drain(ctx); err != nil {
		t.Fatal(err)
	}
	if st.registry.size() != 0 {
		t.Fatal("subscription still registered")
	}
}

func TestCancelUnknownIDIsNoop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	red := ReducerFunc[testState, string](func(s *testState, a string) *Op[string] {
		if a == "cancel" {
			return Cancel[string]("nobody")
		}
		s.Count++
		return nil
	})
	st := NewStore[testState, string](red, testState{})
	st.Same = sameCount
	st.Start(ctx)

	if err := st.Send(ctx, "cancel"); err != nil {
		t.Fatal(err)
	}
	if err := st.Send(ctx, "bump"); err != nil {
		t.Fatal(err)
	}
	if got := st.State().Count; got != 1 {
		t.Fatalf("got count %d", got)
	}
}

func TestReregisterCancelsPrevious(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	red := ReducerFunc[testState, string](func(s *testState, a string) *Op[string] {
		switch a {
		case "first":
			return Task("dup", func(wctx context.Context) string {
				<-wctx.Done()
				return "old"
			})
		case "second":
			return Task("dup", func(context.Context) string {
				return "new"
			})
		}
		return nil
	})
	st := NewStore[testState, string](red, testState{})
	st.Same = sameCount
	st.History = NewHistory[testState, string]()
	st.Start(ctx)

	if err := st.Send(ctx, "first"); err != nil {
		t.Fatal(err)
	}
	if err := st.Send(ctx, "second"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, time.Second, func() bool {
		return contains(st.History.Actions(), "new")
	})
	if err := st.Drain(ctx); err != nil {
		t.Fatal(err)
	}
	if contains(st.History.Actions(), "old") {
		t.Fatal("orphaned work delivered its action")
	}
}
