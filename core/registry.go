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
	"sync"
)

// live is one registered unit of cancellable work.
type live struct {
	cancel context.CancelFunc
}

// registry tracks in-flight cancellable work by caller-chosen id.
//
// Timers and stream subscriptions live in flows; tasks and runs live in
// tasks.  The id namespace is flat across both tables: registering an
// id that is already live cancels and replaces the previous entry,
// whichever table it was in.
type registry struct {
	mu    sync.Mutex
	flows map[string]*live
	tasks map[string]*live
}

func newRegistry() *registry {
	return &registry{
		flows: make(map[string]*live, 32),
		tasks: make(map[string]*live, 32),
	}
}

func (r *registry) addFlow(id string, cancel context.CancelFunc) *live {
	return r.add(id, cancel, true)
}

func (r *registry) addTask(id string, cancel context.CancelFunc) *live {
	return r.add(id, cancel, false)
}

func (r *registry) add(id string, cancel context.CancelFunc, flow bool) *live {
	r.mu.Lock()
	r.evict(id)
	w := &live{cancel: cancel}
	if flow {
		r.flows[id] = w
	} else {
		r.tasks[id] = w
	}
	r.mu.Unlock()
	return w
}

// evict cancels and removes any entry under id.  Caller holds r.mu.
func (r *registry) evict(id string) {
	if w, have := r.flows[id]; have {
		delete(r.flows, id)
		w.cancel()
	}
	if w, have := r.tasks[id]; have {
		delete(r.tasks, id)
		w.cancel()
	}
}

// remove deletes the entry under id if it is still w.  Completed work
// calls remove so that a later registration under the same id isn't
// clobbered by a stale goroutine.
func (r *registry) remove(id string, w *live) {
	r.mu.Lock()
	if have, ok := r.flows[id]; ok && have == w {
		delete(r.flows, id)
	}
	if have, ok := r.tasks[id]; ok && have == w {
		delete(r.tasks, id)
	}
	r.mu.Unlock()
}

// cancel cancels whatever is registered under id.  An unknown id is a
// no-op, not an error.
func (r *registry) cancel(id string) {
	r.mu.Lock()
	r.evict(id)
	r.mu.Unlock()
}

func (r *registry) cancelAll() {
	r.mu.Lock()
	for id, w := range r.flows {
		delete(r.flows, id)
		w.cancel()
	}
	for id, w := range r.tasks {
		delete(r.tasks, id)
		w.cancel()
	}
	r.mu.Unlock()
}

// size reports the number of live entries (for tests).
func (r *registry) size() int {
	r.mu.Lock()
	n := len(r.flows) + len(r.tasks)
	r.mu.Unlock()
	return n
}
