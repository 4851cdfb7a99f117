package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/coxswain-io/coxswain/core"
	"github.com/coxswain-io/coxswain/journal"
	"github.com/coxswain-io/coxswain/script"
	"github.com/coxswain-io/coxswain/sio"
	. "github.com/coxswain-io/coxswain/util/testutil"
)

// Service wires a scripted store to the coxd APIs: actions come in
// over HTTP, websockets, or stdin, and notes fan out to every
// listener.
type Service struct {
	Tracing bool

	def     *script.Def
	reducer *script.Reducer
	store   *core.Store[script.State, script.Action]
	journal *journal.Journal

	// ops is the websocket firehose (see WebSocketService).
	ops chan interface{}
}

func (s *Service) trf(format string, args ...interface{}) {
	if !s.Tracing {
		return
	}
	log.Printf("trace "+format, args...)
}

// NewService resolves the reducer definition, builds the (unstarted)
// store, and opens the journal (if any).
func NewService(ctx context.Context, conf *Config) (*Service, error) {
	if conf.Source == nil {
		return nil, fmt.Errorf("no reducer source")
	}

	def, err := script.ResolveSource(ctx, conf.Source)
	if err != nil {
		return nil, err
	}

	reducer, err := script.NewReducer(ctx, def)
	if err != nil {
		return nil, err
	}

	st := core.NewStore[script.State, script.Action](reducer, def.InitialState())
	st.Same = script.SameRefresh
	st.Errors = make(chan error, 8)
	st.Verbose = conf.Verbose

	s := &Service{
		def:     def,
		reducer: reducer,
		store:   st,
	}

	if conf.DBFile != "" {
		j, err := journal.NewJournal(conf.DBFile, def.Name())
		if err != nil {
			return nil, err
		}
		if err = j.Open(ctx); err != nil {
			return nil, err
		}
		st.Journal = j
		s.journal = j

		go func() {
			<-ctx.Done()
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if err := j.Close(ctx); err != nil {
				log.Printf("Service journal.Close error %s", err)
			}
		}()
	}

	return s, nil
}

// Start registers the note fan-out and starts the store's loop.
func (s *Service) Start(ctx context.Context) {
	s.store.Observe(func(state script.State) {
		s.op(ctx, &sio.Note{T: time.Now().UTC(), State: &state})
	})
	s.store.Start(ctx)
}

// Send forwards one action to the store.
func (s *Service) Send(ctx context.Context, a script.Action) error {
	s.trf("Service.Send %s", JS(a))
	return s.store.Send(ctx, a)
}

// op forwards x to the websocket firehose (if any).
func (s *Service) op(ctx context.Context, x interface{}) {
	if s.ops != nil {
		select {
		case s.ops <- Copy(x):
		default:
			log.Printf("Service ops chan blocked")
		}
	}
}

// Boot sends the actions in the given file (one JSON action per
// line; '#' comments and blank lines skipped).
func (s *Service) Boot(ctx context.Context, filename string) error {
	bs, err := os.ReadFile(filename)
	if err != nil {
		return err
	}
	for _, line := range strings.Split(string(bs), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		var a script.Action
		if err := json.Unmarshal([]byte(line), &a); err != nil {
			return fmt.Errorf("bad boot line '%s': %s", line, err)
		}
		if err := s.Send(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

// Listener reads actions (one JSON action per line) from in and
// sends them to the store.  Notes still go to the firehose, not to
// out; pass a non-nil out to also echo the state after each send.
func (s *Service) Listener(ctx context.Context, in *bufio.Reader, out io.Writer) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		line, err := in.ReadString('\n')
		if err == io.EOF || strings.TrimSpace(line) == "quit" {
			return nil
		}
		if err != nil {
			return err
		}
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		var a script.Action
		if err := json.Unmarshal([]byte(line), &a); err != nil {
			fmt.Fprintf(os.Stderr, "bad input: %s\n", err)
			continue
		}
		if err := s.Send(ctx, a); err != nil {
			return err
		}
		if out != nil {
			js, err := json.Marshal(s.store.State())
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s\n", js)
		}
	}
}
