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

import "context"

// Binding is a read-write accessor over one field of a store's state,
// built from an explicit getter/setter pair (a lens).  Reads return
// snapshots; writes are staged on the store loop against a provisional
// state, so rapid writes coalesce before the canonical state is
// replaced, and the refresh-equality notification rule applies to the
// commit as a whole.
type Binding[V any] struct {
	get func() V
	set func(context.Context, V) error
}

// Get returns the field from a snapshot of the current state.
func (b *Binding[V]) Get() V {
	return b.get()
}

// Set stages a write of the field.  It returns once the write is
// queued, not once it is committed.
func (b *Binding[V]) Set(ctx context.Context, v V) error {
	return b.set(ctx, v)
}

// Bind makes a Binding over the store's state using the given lens.
func Bind[S, A, V any](st *Store[S, A], get func(*S) V, set func(*S, V)) *Binding[V] {
	return bind(st, get, set, nil)
}

// BindSending is Bind plus a follow-up: after a staged write lands, the
// given action is dispatched.
func BindSending[S, A, V any](st *Store[S, A], get func(*S) V, set func(*S, V), then A) *Binding[V] {
	return bind(st, get, set, &then)
}

func bind[S, A, V any](st *Store[S, A], get func(*S) V, set func(*S, V), then *A) *Binding[V] {
	return &Binding[V]{
		get: func() V {
			s := st.State()
			return get(&s)
		},
		set: func(ctx context.Context, v V) error {
			// Writes staged before Start sit in the mailbox and
			// commit once the loop runs.
			m := message[S, A]{
				write: func(s *S) { set(s, v) },
				then:  then,
			}
			select {
			case st.in <- m:
				return nil
			case <-st.done:
				return ErrStopped
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	}
}
