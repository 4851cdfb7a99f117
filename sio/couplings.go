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

// Package sio couples a scripted store to the outside world.
//
// A Couplings implementation provides channels for in-bound actions
// and out-bound notes, and a Pilot runs a store against them.
package sio

import (
	"context"
	"time"

	"github.com/coxswain-io/coxswain/script"
)

// Note is one out-bound report from a Pilot: a state change or an
// asynchronous error.
type Note struct {
	// T is when the note was made.
	T time.Time `json:"t"`

	// State, when not nil, is the store's state after a change.
	State *script.State `json:"state,omitempty"`

	// Err, when not empty, reports an asynchronous error.
	Err string `json:"err,omitempty"`
}

// Couplings provide channels for action input and note output.
//
// For example, an implementation could couple a store to an MQTT
// broker.
type Couplings interface {
	// Start initializes the Couplings.
	Start(context.Context) error

	// IO returns the input, output, and termination channels.  The
	// done channel is closed when the coupling's input is exhausted.
	IO(context.Context) (chan script.Action, chan *Note, chan bool, error)

	// Stop shuts down the Couplings.
	Stop(context.Context) error
}
