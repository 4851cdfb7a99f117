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

// Reducer is the transition function: given the current state and an
// action, mutate the state in place and describe the follow-up work.
//
// Reduce must be deterministic for a given (state, action) pair, and it
// is invoked only on the store loop, never concurrently for the same
// Store.  A reducer has no error channel: failures of external work
// arrive as ordinary result-bearing actions.
type Reducer[S, A any] interface {
	Reduce(s *S, a A) *Op[A]
}

// ReducerFunc adapts a function to the Reducer interface.
type ReducerFunc[S, A any] func(s *S, a A) *Op[A]

func (f ReducerFunc[S, A]) Reduce(s *S, a A) *Op[A] {
	return f(s, a)
}

// RefreshOf builds a state-sameness predicate from an accessor for the
// observed ("refresh") portion of the state.  A store publishes a
// change notification exactly when the predicate reports a difference;
// the rest of the state (counters, caches) can change silently.
func RefreshOf[S any, R comparable](get func(S) R) func(S, S) bool {
	return func(prev, next S) bool {
		return get(prev) == get(next)
	}
}
