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

// Package core implements the store, the operation interpreter, and the
// cancellation registry.
//
// A Store owns a single State value.  Send hands an Action to the
// Reducer on the store's one loop goroutine, which produces the next
// State plus an Op: a declarative tree of follow-up work.  The
// interpreter walks that tree, dispatching synchronous actions in
// place and spawning cancellable workers for tasks, streams, and
// timers.  Workers feed the actions they produce back through the same
// loop, so all state transitions are serialized.
package core
