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
	"time"
)

// OpKind tags the variants of an Op tree.
type OpKind int

const (
	// OpNone is no follow-up work.  A nil *Op also means OpNone.
	OpNone OpKind = iota

	// OpDo synchronously re-enters the transition loop with an action.
	OpDo

	// OpTask runs a producer off the loop; its one action is fed back.
	OpTask

	// OpRun runs a side-effecting procedure off the loop; no action.
	OpRun

	// OpStream subscribes to a sequence of values, each mapped to an
	// action and fed back in emission order.
	OpStream

	// OpTimer re-enters the loop with an action once per interval
	// until cancelled.
	OpTimer

	// OpCron is a timer driven by a cron expression.
	OpCron

	// OpConcat dispatches its left subtree fully, then its right.
	OpConcat

	// OpMerge dispatches both subtrees concurrently.
	OpMerge

	// OpCancel cancels whatever work is registered under an id.
	OpCancel
)

func (k OpKind) String() string {
	switch k {
	case OpNone:
		return "none"
	case OpDo:
		return "do"
	case OpTask:
		return "task"
	case OpRun:
		return "run"
	case OpStream:
		return "stream"
	case OpTimer:
		return "timer"
	case OpCron:
		return "cron"
	case OpConcat:
		return "concat"
	case OpMerge:
		return "merge"
	case OpCancel:
		return "cancel"
	}
	return fmt.Sprintf("OpKind(%d)", int(k))
}

// Op describes follow-up work produced by a reducer.
//
// An Op is an immutable tree.  The zero value for follow-up work is a
// nil *Op, which the interpreter treats as OpNone.  Concat and Merge
// nest arbitrarily since children are boxed.
type Op[A any] struct {
	kind OpKind

	// action is the payload for OpDo, OpTimer, and OpCron.
	action A

	// id is the cancellation id for OpTask, OpRun, OpStream,
	// OpTimer, and OpCron, and the target id for OpCancel.
	id string

	every time.Duration
	expr  string

	produce func(context.Context) A
	execute func(context.Context)
	each    func(context.Context, func(A) bool)

	left  *Op[A]
	right *Op[A]
}

// None is no follow-up work.
func None[A any]() *Op[A] {
	return nil
}

// Do synchronously re-enters the transition loop with the given action.
func Do[A any](a A) *Op[A] {
	return &Op[A]{kind: OpDo, action: a}
}

// Task runs produce off the store loop.  The resulting action is fed
// back in unless the id was cancelled first.
func Task[A any](id string, produce func(context.Context) A) *Op[A] {
	return &Op[A]{kind: OpTask, id: id, produce: produce}
}

// Run is like Task but produces no action.
func Run[A any](id string, execute func(context.Context)) *Op[A] {
	return &Op[A]{kind: OpRun, id: id, execute: execute}
}

// Stream subscribes to in, mapping every received value to an action
// that is fed back in emission order.  The subscription ends when in is
// closed or the id is cancelled.
func Stream[V, A any](id string, in <-chan V, mapper func(V) A) *Op[A] {
	return StreamFunc[A](id, func(ctx context.Context, yield func(A) bool) {
		for {
			select {
			case <-ctx.Done():
				return
			case v, ok := <-in:
				if !ok {
					return
				}
				if !yield(mapper(v)) {
					return
				}
			}
		}
	})
}

// StreamFunc subscribes to a sequence given as a function.  each should
// call yield for every value, stopping when yield returns false or the
// context is done.
func StreamFunc[A any](id string, each func(context.Context, func(A) bool)) *Op[A] {
	return &Op[A]{kind: OpStream, id: id, each: each}
}

// Every re-enters the loop with the given action once per interval
// until the id is cancelled.  The interval must be positive.
func Every[A any](interval time.Duration, id string, a A) *Op[A] {
	return &Op[A]{kind: OpTimer, id: id, every: interval, action: a}
}

// Cron is like Every but fires per a cron expression.
func Cron[A any](expr string, id string, a A) *Op[A] {
	return &Op[A]{kind: OpCron, id: id, expr: expr, action: a}
}

// Concat evaluates its operations in order, each fully dispatched
// before the next starts.
func Concat[A any](ops ...*Op[A]) *Op[A] {
	return fold(OpConcat, ops)
}

// Merge evaluates its operations concurrently with no ordering
// guarantee between them.
func Merge[A any](ops ...*Op[A]) *Op[A] {
	return fold(OpMerge, ops)
}

// Cancel cancels any in-flight task, run, stream, or timer registered
// under the given id.  Cancelling an unknown id is a no-op.
func Cancel[A any](id string) *Op[A] {
	return &Op[A]{kind: OpCancel, id: id}
}

func fold[A any](kind OpKind, ops []*Op[A]) *Op[A] {
	var acc *Op[A]
	for _, op := range ops {
		if op == nil {
			continue
		}
		if acc == nil {
			acc = op
			continue
		}
		acc = &Op[A]{kind: kind, left: acc, right: op}
	}
	return acc
}

// Kind reports the variant.  A nil Op is OpNone.
func (o *Op[A]) Kind() OpKind {
	if o == nil {
		return OpNone
	}
	return o.kind
}

// ID returns the cancellation id (or cancel target), if any.
func (o *Op[A]) ID() string {
	if o == nil {
		return ""
	}
	return o.id
}

// Interval returns the timer interval for OpTimer.
func (o *Op[A]) Interval() time.Duration {
	if o == nil {
		return 0
	}
	return o.every
}

// Expr returns the cron expression for OpCron.
func (o *Op[A]) Expr() string {
	if o == nil {
		return ""
	}
	return o.expr
}

// Children returns the subtrees of OpConcat and OpMerge.
func (o *Op[A]) Children() []*Op[A] {
	if o == nil {
		return nil
	}
	switch o.kind {
	case OpConcat, OpMerge:
		return []*Op[A]{o.left, o.right}
	}
	return nil
}

func (o *Op[A]) String() string {
	if o == nil {
		return "none"
	}
	switch o.kind {
	case OpDo:
		return fmt.Sprintf("do(%v)", o.action)
	case OpTask, OpRun, OpStream:
		return fmt.Sprintf("%s(%s)", o.kind, o.id)
	case OpTimer:
		return fmt.Sprintf("timer(%s,%s)", o.id, o.every)
	case OpCron:
		return fmt.Sprintf("cron(%s,%s)", o.id, o.expr)
	case OpConcat, OpMerge:
		return fmt.Sprintf("%s(%s,%s)", o.kind, o.left, o.right)
	case OpCancel:
		return fmt.Sprintf("cancel(%s)", o.id)
	}
	return o.kind.String()
}
