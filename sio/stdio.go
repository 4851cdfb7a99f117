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
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/coxswain-io/coxswain/script"
)

// Stdio is a fairly simple Couplings that uses stdin for input and
// stdout for output.
//
// Input is one JSON action per line.  Blank lines and lines starting
// with '#' are skipped, and "quit" (or EOF) ends the input.
type Stdio struct {
	// In is coupled to store input.
	In io.Reader

	// Out is coupled to store output.
	Out io.Writer

	// Timestamps prepends a timestamp to each output line.
	Timestamps bool

	// EchoInput writes input lines (prepended with "input") to
	// the output.
	EchoInput bool

	// Tags prefixes tags indicating the type of output ("input",
	// "state", "err").
	Tags bool

	// PadTags adds some padding to tags used in output.
	PadTags bool

	// InputEOF will be closed on EOF from stdin.
	InputEOF chan bool

	WG sync.WaitGroup
}

// NewStdio creates a new Stdio coupled to os.Stdin and os.Stdout.
func NewStdio() *Stdio {
	return &Stdio{
		In:       os.Stdin,
		Out:      os.Stdout,
		InputEOF: make(chan bool),
	}
}

// Start does nothing.
func (s *Stdio) Start(ctx context.Context) error {
	return nil
}

// Stop waits until IO is complete or was terminated via its context.
func (s *Stdio) Stop(ctx context.Context) error {
	s.WG.Wait()
	return nil
}

// IO returns channels for reading from stdin and writing to stdout.
func (s *Stdio) IO(ctx context.Context) (chan script.Action, chan *Note, chan bool, error) {
	in := make(chan script.Action)
	done := make(chan bool)

	printf := func(tag, format string, args ...interface{}) {
		if s.PadTags {
			tag = fmt.Sprintf("% 10s", tag)
		}
		if s.Tags {
			format = tag + " " + format
		}
		if s.Timestamps {
			ts := fmt.Sprintf("%-31s", time.Now().UTC().Format(time.RFC3339Nano))
			format = ts + " " + format
		}

		fmt.Fprintf(s.Out, format, args...)
	}

	s.WG.Add(1)
	go func() {
		defer s.WG.Done()
		stdin := bufio.NewReader(s.In)
		for {
			select {
			case <-ctx.Done():
				return
			default:
				line, err := stdin.ReadString('\n')
				if err == io.EOF || strings.TrimSpace(line) == "quit" {
					close(done)
					close(s.InputEOF)
					return
				}
				if err != nil {
					log.Printf("stdin error %s", err)
					return
				}
				if s.EchoInput {
					printf("input", "%s", line)
				}
				if strings.HasPrefix(line, "#") || len(strings.TrimSpace(line)) == 0 {
					continue
				}

				var a script.Action
				if err := json.Unmarshal([]byte(line), &a); err != nil {
					fmt.Fprintf(os.Stderr, "bad input: %s\n", err)
					continue
				}

				select {
				case <-ctx.Done():
				case in <- a:
				}
			}
		}
	}()

	out := make(chan *Note)

	s.WG.Add(1)
	go func() {
		defer s.WG.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case n := <-out:
				if n == nil {
					return
				}
				if n.Err != "" {
					printf("err", "%s\n", n.Err)
					continue
				}
				if n.State != nil {
					js, err := json.Marshal(n.State)
					if err != nil {
						log.Printf("stdio marshal error %s", err)
						continue
					}
					printf("state", "%s\n", js)
				}
			}
		}
	}()

	return in, out, done, nil
}
