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
	"log"
	"reflect"
	"sync"
)

// InCap is the capacity of a store's mailbox.
var InCap = 1024

// message is one item in the store mailbox: either an action to reduce
// or a staged binding write.
type message[S, A any] struct {
	action A

	// write, when non-nil, marks this message as a binding write to
	// apply to the provisional state.  then optionally carries an
	// action to dispatch after the write lands.
	write func(*S)
	then  *A

	// done, when non-nil, is closed once the reducer has run and the
	// new state has been published (or, for writes, once the write
	// has been committed).
	done chan struct{}
}

// Store owns a State, serializes all transitions through one loop
// goroutine, and interprets the operations that transitions produce.
type Store[S, A any] struct {
	// Same reports whether the observed (refresh) portions of two
	// states are equal.  Change notifications fire exactly when Same
	// reports false.  When nil, reflect.DeepEqual of the whole state
	// is used.  See RefreshOf.
	Same func(prev, next S) bool

	// History, when non-nil, records every (state, action) pair.
	History *History[S, A]

	// Journal, when non-nil, receives every transition.
	Journal Journal

	// Errors receives asynchronous scheduler errors.  When nil (or
	// full), errors are logged instead.
	Errors chan error

	// Verbose turns on logging.
	Verbose bool

	reducer  Reducer[S, A]
	registry *registry

	mu        sync.RWMutex
	state     S
	started   bool
	observers []func(S)

	in   chan message[S, A]
	done chan struct{}

	// wg tracks spawned workers so Drain can wait for them.
	wg sync.WaitGroup
}

// NewStore makes a store with the given reducer and initial state.
//
// Configure the exported fields and call Observe before Start.
func NewStore[S, A any](reducer Reducer[S, A], initial S) *Store[S, A] {
	return &Store[S, A]{
		reducer:  reducer,
		registry: newRegistry(),
		state:    initial,
		in:       make(chan message[S, A], InCap),
		done:     make(chan struct{}),
	}
}

// Observe registers a change observer.  Observers run on the store
// loop, and only when the refresh portion of the state changed.
//
// Call before Start.
func (st *Store[S, A]) Observe(f func(S)) {
	st.mu.Lock()
	st.observers = append(st.observers, f)
	st.mu.Unlock()
}

// State returns a snapshot of the current state.
func (st *Store[S, A]) State() S {
	st.mu.RLock()
	s := st.state
	st.mu.RUnlock()
	return s
}

// Start launches the store loop.  The loop exits when ctx is done.
func (st *Store[S, A]) Start(ctx context.Context) {
	st.mu.Lock()
	if st.started {
		st.mu.Unlock()
		return
	}
	st.started = true
	st.mu.Unlock()
	go st.loop(ctx)
}

// Send hands an action to the store.  It returns after the reducer has
// run and the resulting state has been published; evaluation of the
// resulting operation continues on the store loop without blocking the
// caller.
//
// Send is safe to call from spawned effects: such calls are serialized
// against the loop in arrival order.
func (st *Store[S, A]) Send(ctx context.Context, a A) error {
	st.mu.RLock()
	started := st.started
	st.mu.RUnlock()
	if !started {
		return ErrNotStarted
	}

	m := message[S, A]{action: a, done: make(chan struct{})}
	select {
	case st.in <- m:
	case <-st.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-m.done:
		return nil
	case <-st.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CancelAll cancels all registered in-flight work.
func (st *Store[S, A]) CancelAll() {
	st.registry.cancelAll()
}

// Drain waits until all spawned workers have finished.  Repeating
// timers never finish on their own, so cancel them (or CancelAll)
// first.
func (st *Store[S, A]) Drain(ctx context.Context) error {
	quiet := make(chan struct{})
	go func() {
		st.wg.Wait()
		close(quiet)
	}()
	select {
	case <-quiet:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop cancels all in-flight work and waits for it to wind down.
func (st *Store[S, A]) Stop(ctx context.Context) error {
	st.CancelAll()
	return st.Drain(ctx)
}

func (st *Store[S, A]) loop(ctx context.Context) {
	st.Logf("Store.loop starting")
	defer close(st.done)
	for {
		select {
		case <-ctx.Done():
			st.Logf("Store.loop shutting down (ctx.Done)")
			st.registry.cancelAll()
			return
		case m := <-st.in:
			st.deliver(ctx, m)
		}
	}
}

func (st *Store[S, A]) deliver(ctx context.Context, m message[S, A]) {
	if m.write != nil {
		st.applyWrites(ctx, m)
		return
	}
	st.dispatch(ctx, m.action, m.done)
}

// dispatch runs one transition: reduce, commit, publish, record, then
// interpret the resulting operation.  Runs only on the store loop.
func (st *Store[S, A]) dispatch(ctx context.Context, a A, done chan struct{}) {
	s := st.State()
	op := st.reducer.Reduce(&s, a)
	st.commit(s)

	if st.History != nil {
		st.History.add(s, a)
	}
	if st.Journal != nil {
		if err := st.Journal.Record(ctx, s, a); err != nil {
			st.err(err)
		}
	}
	if done != nil {
		close(done)
	}

	st.interpret(ctx, op, nil)
}

// commit replaces the canonical state and notifies observers when the
// refresh portion changed.
func (st *Store[S, A]) commit(next S) {
	st.mu.Lock()
	prev := st.state
	st.state = next
	observers := st.observers
	st.mu.Unlock()

	same := st.Same
	if same == nil {
		same = func(a, b S) bool { return reflect.DeepEqual(a, b) }
	}
	if same(prev, next) {
		return
	}
	for _, f := range observers {
		f(next)
	}
}

// applyWrites stages binding writes against a provisional copy of the
// state.  Consecutive queued writes coalesce into a single commit (and
// a single publish decision) before the canonical state is replaced.
func (st *Store[S, A]) applyWrites(ctx context.Context, first message[S, A]) {
	provisional := st.State()

	pending := make([]message[S, A], 0, 4)
	pending = append(pending, first)
	first.write(&provisional)

	var trailing *message[S, A]
DRAIN:
	for {
		select {
		case m := <-st.in:
			if m.write == nil {
				// An action snuck in behind the writes.
				// Commit the writes first, then let it run.
				trailing = &m
				break DRAIN
			}
			m.write(&provisional)
			pending = append(pending, m)
		default:
			break DRAIN
		}
	}

	st.commit(provisional)

	for _, m := range pending {
		if m.done != nil {
			close(m.done)
		}
	}
	for _, m := range pending {
		if m.then != nil {
			st.dispatch(ctx, *m.then, nil)
		}
	}
	if trailing != nil {
		st.deliver(ctx, *trailing)
	}
}

// feed queues an action produced by a spawned worker.  It never runs on
// the store loop.
func (st *Store[S, A]) feed(ctx context.Context, a A) {
	select {
	case st.in <- message[S, A]{action: a}:
	case <-st.done:
	case <-ctx.Done():
	}
}

// Logf logs if st.Verbose.
func (st *Store[S, A]) Logf(format string, args ...interface{}) {
	if !st.Verbose {
		return
	}
	log.Printf(format, args...)
}

func (st *Store[S, A]) err(err error) {
	if st.Errors != nil {
		select {
		case st.Errors <- err:
			return
		default:
		}
	}
	log.Printf("Store error %s", err)
}
