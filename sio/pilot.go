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

package sio

import (
	"context"
	"log"
	"time"

	"github.com/coxswain-io/coxswain/core"
	"github.com/coxswain-io/coxswain/script"
)

// NoteCap is the Pilot's note buffer capacity.  When the coupling's
// output stalls, notes beyond this buffer are dropped (and logged).
var NoteCap = 1024

// Pilot runs a scripted store against a Couplings: in-bound actions
// are sent to the store, and state changes and asynchronous errors
// flow back out as Notes.
type Pilot struct {
	// Store is the store to drive.  The Pilot starts it, so hand
	// over an unstarted store.
	Store *core.Store[script.State, script.Action]

	// IO couples the store to the outside world.
	IO Couplings

	// Verbose turns on logging.
	Verbose bool

	notes chan *Note
}

// NewPilot creates a Pilot for the given (unstarted) store.
func NewPilot(store *core.Store[script.State, script.Action], io Couplings) *Pilot {
	return &Pilot{
		Store: store,
		IO:    io,
		notes: make(chan *Note, NoteCap),
	}
}

func (p *Pilot) logf(format string, args ...interface{}) {
	if p.Verbose {
		log.Printf(format, args...)
	}
}

// note queues a Note without blocking the caller.
func (p *Pilot) note(n *Note) {
	n.T = time.Now().UTC()
	select {
	case p.notes <- n:
	default:
		log.Printf("pilot dropped note %v", n)
	}
}

// Run starts the couplings and the store and then loops, forwarding
// actions and notes, until the input is exhausted or the context is
// canceled.
func (p *Pilot) Run(ctx context.Context) error {
	if err := p.IO.Start(ctx); err != nil {
		return err
	}

	in, out, done, err := p.IO.IO(ctx)
	if err != nil {
		return err
	}

	if p.Store.Errors == nil {
		p.Store.Errors = make(chan error, NoteCap)
	}

	p.Store.Observe(func(s script.State) {
		p.note(&Note{State: &s})
	})

	p.Store.Start(ctx)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case err := <-p.Store.Errors:
				if err != nil {
					p.note(&Note{Err: err.Error()})
				}
			}
		}
	}()

LOOP:
	for {
		select {
		case <-ctx.Done():
			break LOOP
		case <-done:
			p.logf("pilot input done")
			break LOOP
		case a := <-in:
			p.logf("pilot in-bound %v", a)
			if err := p.Store.Send(ctx, a); err != nil {
				p.note(&Note{Err: err.Error()})
			}
		case n := <-p.notes:
			select {
			case <-ctx.Done():
				break LOOP
			case out <- n:
			}
		}
	}

	return p.IO.Stop(ctx)
}
