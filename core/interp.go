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
	"fmt"
	"sync"
	"time"

	"github.com/gorhill/cronexpr"
)

// interpret walks an operation tree and executes each node.
//
// sp is nil when we are running on the store loop.  On the loop, an
// OpDo recurses into dispatch synchronously, fully interleaved in
// program order; off the loop (inside a Merge branch) the action goes
// through the branch's spool instead, since only the loop may touch
// state.
//
// For nodes that spawn concurrent work, interpreting the node only
// issues the spawn; it never waits for the spawned work to complete.
func (st *Store[S, A]) interpret(ctx context.Context, op *Op[A], sp *spool[S, A]) {
	if op == nil {
		return
	}
	st.Logf("Store.interpret %s", op)

	switch op.kind {
	case OpNone:

	case OpDo:
		if sp == nil {
			st.dispatch(ctx, op.action, nil)
		} else {
			sp.put(ctx, op.action)
		}

	case OpConcat:
		st.interpret(ctx, op.left, sp)
		st.interpret(ctx, op.right, sp)

	case OpMerge:
		// Fan out both subtrees and join before returning.  The
		// branches run off the loop, so their ordering relative
		// to each other is unspecified.  Branch actions go
		// through per-branch spools: the loop is parked here in
		// the join, so a full mailbox must not block a branch.
		var wg sync.WaitGroup
		wg.Add(2)
		st.wg.Add(2)
		go func() {
			defer st.wg.Done()
			defer wg.Done()
			st.interpret(ctx, op.left, &spool[S, A]{st: st})
		}()
		go func() {
			defer st.wg.Done()
			defer wg.Done()
			st.interpret(ctx, op.right, &spool[S, A]{st: st})
		}()
		wg.Wait()

	case OpCancel:
		st.registry.cancel(op.id)

	case OpTask:
		st.spawnTask(ctx, op)

	case OpRun:
		st.spawnRun(ctx, op)

	case OpStream:
		st.spawnStream(ctx, op)

	case OpTimer:
		st.spawnTimer(ctx, op)

	case OpCron:
		st.spawnCron(ctx, op)

	default:
		st.err(fmt.Errorf("unknown op kind %d", op.kind))
	}
}

// spool is an unbounded, order-preserving buffer between one merge
// branch and the mailbox.  put never blocks; a single drain goroutine
// feeds the queued actions once the loop is reading again.
type spool[S, A any] struct {
	st *Store[S, A]

	mu   sync.Mutex
	q    []A
	busy bool
}

func (sp *spool[S, A]) put(ctx context.Context, a A) {
	sp.mu.Lock()
	sp.q = append(sp.q, a)
	if sp.busy {
		sp.mu.Unlock()
		return
	}
	sp.busy = true
	sp.mu.Unlock()

	sp.st.wg.Add(1)
	go sp.drain(ctx)
}

func (sp *spool[S, A]) drain(ctx context.Context) {
	defer sp.st.wg.Done()
	for {
		sp.mu.Lock()
		if len(sp.q) == 0 {
			sp.busy = false
			sp.mu.Unlock()
			return
		}
		a := sp.q[0]
		sp.q = sp.q[1:]
		sp.mu.Unlock()
		sp.st.feed(ctx, a)
	}
}

// spawnTask registers the id and starts the producer off the loop.
// The produced action is delivered only if the id wasn't cancelled
// before the producer finished.
func (st *Store[S, A]) spawnTask(ctx context.Context, op *Op[A]) {
	wctx, cancel := context.WithCancel(ctx)
	w := st.registry.addTask(op.id, cancel)
	st.wg.Add(1)
	go func() {
		defer st.wg.Done()
		defer st.registry.remove(op.id, w)
		defer cancel()

		a := op.produce(wctx)
		if wctx.Err() != nil {
			// Cancelled before (or while) the producer ran:
			// the action must not be delivered.
			return
		}
		st.feed(wctx, a)
	}()
}

func (st *Store[S, A]) spawnRun(ctx context.Context, op *Op[A]) {
	wctx, cancel := context.WithCancel(ctx)
	w := st.registry.addTask(op.id, cancel)
	st.wg.Add(1)
	go func() {
		defer st.wg.Done()
		defer st.registry.remove(op.id, w)
		defer cancel()
		op.execute(wctx)
	}()
}

// spawnStream subscribes to the sequence.  Every yielded action goes
// through the mailbox, so emission order is preserved by the loop's own
// serialization.
func (st *Store[S, A]) spawnStream(ctx context.Context, op *Op[A]) {
	wctx, cancel := context.WithCancel(ctx)
	w := st.registry.addFlow(op.id, cancel)
	st.wg.Add(1)
	go func() {
		defer st.wg.Done()
		defer st.registry.remove(op.id, w)
		defer cancel()

		yield := func(a A) bool {
			select {
			case st.in <- message[S, A]{action: a}:
				return true
			case <-wctx.Done():
				return false
			case <-st.done:
				return false
			}
		}
		op.each(wctx, yield)
	}()
}

func (st *Store[S, A]) spawnTimer(ctx context.Context, op *Op[A]) {
	if op.every <= 0 {
		st.err(fmt.Errorf("%w: timer %q interval %s", ErrBadInterval, op.id, op.every))
		return
	}
	wctx, cancel := context.WithCancel(ctx)
	w := st.registry.addFlow(op.id, cancel)
	st.wg.Add(1)
	go func() {
		defer st.wg.Done()
		defer st.registry.remove(op.id, w)
		defer cancel()

		tick := time.NewTicker(op.every)
		defer tick.Stop()
		for {
			select {
			case <-wctx.Done():
				return
			case <-tick.C:
				st.feed(wctx, op.action)
			}
		}
	}()
}

func (st *Store[S, A]) spawnCron(ctx context.Context, op *Op[A]) {
	c, err := cronexpr.Parse(op.expr)
	if err != nil {
		st.err(fmt.Errorf("cron %q: %s", op.id, err))
		return
	}
	wctx, cancel := context.WithCancel(ctx)
	w := st.registry.addFlow(op.id, cancel)
	st.wg.Add(1)
	go func() {
		defer st.wg.Done()
		defer st.registry.remove(op.id, w)
		defer cancel()

		for {
			next := c.Next(time.Now())
			if next.IsZero() {
				return
			}
			timer := time.NewTimer(time.Until(next))
			select {
			case <-wctx.Done():
				timer.Stop()
				return
			case <-timer.C:
				st.feed(wctx, op.action)
			}
		}
	}()
}
