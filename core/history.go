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

// Entry is one recorded transition: the state after the action was
// reduced, and the action itself.
type Entry[S, A any] struct {
	State  S `json:"state"`
	Action A `json:"action"`
}

// History is an append-only in-memory log of transitions.
//
// Attach one to Store.History to enable recording.  History is purely
// observational: the transition logic never consults it.
type History[S, A any] struct {
	mu      sync.Mutex
	entries []Entry[S, A]
}

func NewHistory[S, A any]() *History[S, A] {
	return &History[S, A]{
		entries: make([]Entry[S, A], 0, 64),
	}
}

func (h *History[S, A]) add(s S, a A) {
	h.mu.Lock()
	h.entries = append(h.entries, Entry[S, A]{State: s, Action: a})
	h.mu.Unlock()
}

// Entries returns a copy of the recorded transitions.
func (h *History[S, A]) Entries() []Entry[S, A] {
	h.mu.Lock()
	acc := make([]Entry[S, A], len(h.entries))
	copy(acc, h.entries)
	h.mu.Unlock()
	return acc
}

// Actions returns just the recorded actions, in order.
func (h *History[S, A]) Actions() []A {
	h.mu.Lock()
	acc := make([]A, len(h.entries))
	for i, e := range h.entries {
		acc[i] = e.Action
	}
	h.mu.Unlock()
	return acc
}

func (h *History[S, A]) Len() int {
	h.mu.Lock()
	n := len(h.entries)
	h.mu.Unlock()
	return n
}

// Journal receives every transition for durable logging.
//
// Package journal provides a bbolt-backed implementation.  A Journal,
// like History, is observational only.
type Journal interface {
	Record(ctx context.Context, state, action interface{}) error
}
