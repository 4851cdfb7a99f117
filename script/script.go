// Package script provides a store reducer written in ECMAScript and
// executed with Goja.
//
// A scripted store works on JSON-shaped values: actions are maps, and
// the state is a pair of maps (refresh and static).  The script's
// 'reduce' code reads _.state and _.action, calls out(op) for each
// follow-up operation, and returns the next state.
//
// See https://github.com/dop251/goja.
package script

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"
	"time"

	"github.com/coxswain-io/coxswain/core"

	"github.com/dop251/goja"
	"github.com/google/uuid"
	"github.com/gorhill/cronexpr"
)

var (
	// InterruptedMessage is the string value of Interrupted.
	InterruptedMessage = "RuntimeError: timeout"

	// Interrupted is reported when script execution is interrupted.
	Interrupted = errors.New(InterruptedMessage)
)

// Action is a JSON-shaped action.
type Action map[string]interface{}

// State is the scripted store's state.  Refresh is the observed
// portion; Static can change without notifying observers.
type State struct {
	Refresh map[string]interface{} `json:"refresh"`
	Static  map[string]interface{} `json:"static"`
}

// NewState returns an empty State.
func NewState() State {
	return State{
		Refresh: map[string]interface{}{},
		Static:  map[string]interface{}{},
	}
}

// SameRefresh compares the JSON renderings of the two refresh maps.
func SameRefresh(prev, next State) bool {
	a, err := json.Marshal(prev.Refresh)
	if err != nil {
		return false
	}
	b, err := json.Marshal(next.Refresh)
	if err != nil {
		return false
	}
	return string(a) == string(b)
}

// Reducer executes a scripted 'reduce' definition.
//
// A JS exception does not fail the transition: it surfaces as an
// ordinary {"error": ...} action, since this runtime treats errors as
// data.
type Reducer struct {
	// Timeout, when positive, interrupts script executions that run
	// too long.
	Timeout time.Duration

	// Testing exposes some extra runtime capabilities (sleep).
	Testing bool

	// LibraryProvider resolves 'requires' names to JS source.  When
	// nil, DefaultLibraryProvider is used.
	LibraryProvider func(ctx context.Context, r *Reducer, name string) (string, error)

	def     *Def
	program *goja.Program
}

// NewReducer compiles the definition's code (with its required
// libraries inlined ahead of it).
func NewReducer(ctx context.Context, def *Def) (*Reducer, error) {
	return NewReducerWithProvider(ctx, def, nil)
}

// NewReducerWithProvider is NewReducer with an explicit library
// provider, which is consulted while resolving the definition's
// 'requires'.
func NewReducerWithProvider(ctx context.Context, def *Def, provider func(context.Context, *Reducer, string) (string, error)) (*Reducer, error) {
	r := &Reducer{def: def, LibraryProvider: provider}

	var libs string
	for _, name := range def.Requires {
		src, err := r.provide(ctx, name)
		if err != nil {
			return nil, err
		}
		libs += src + "\n"
	}

	code := libs + wrapSrc(def.Code)
	program, err := goja.Compile(def.Name(), code, true)
	if err != nil {
		return nil, errors.New(err.Error() + ": " + code)
	}
	r.program = program
	return r, nil
}

// Def returns the definition this reducer was compiled from.
func (r *Reducer) Def() *Def {
	return r.def
}

func (r *Reducer) provide(ctx context.Context, name string) (string, error) {
	if r.LibraryProvider != nil {
		return r.LibraryProvider(ctx, r, name)
	}
	return DefaultLibraryProvider(ctx, r, name)
}

func wrapSrc(src string) string {
	return fmt.Sprintf("(function() {\n%s\n}());\n", src)
}

func protest(o *goja.Runtime, x interface{}) {
	panic(o.ToValue(x))
}

// Reduce implements core.Reducer[State, Action].
func (r *Reducer) Reduce(s *State, a Action) *core.Op[Action] {
	next, rawOps, err := r.exec(s, a)
	if err != nil {
		return core.Do(Action{"error": err.Error()})
	}
	if next != nil {
		if refresh, have := next["refresh"]; have {
			if m, is := refresh.(map[string]interface{}); is {
				s.Refresh = m
			}
		}
		if static, have := next["static"]; have {
			if m, is := static.(map[string]interface{}); is {
				s.Static = m
			}
		}
	}
	op, err := ParseOps(rawOps)
	if err != nil {
		return core.Do(Action{"error": err.Error()})
	}
	return op
}

// exec runs the compiled program against a fresh runtime, returning the
// exported state (if any) and the raw op maps passed to out().
func (r *Reducer) exec(s *State, a Action) (map[string]interface{}, []interface{}, error) {
	o := goja.New()

	rawOps := make([]interface{}, 0, 4)

	// The script gets its own deep copies.  A script that mutates
	// _.state and returns null must not touch the committed state.
	refresh, err := deepCopy(s.Refresh)
	if err != nil {
		return nil, nil, err
	}
	static, err := deepCopy(s.Static)
	if err != nil {
		return nil, nil, err
	}
	action, err := deepCopy(a)
	if err != nil {
		return nil, nil, err
	}

	env := map[string]interface{}{
		"state": map[string]interface{}{
			"refresh": refresh,
			"static":  static,
		},
		"action": action,
	}

	// out adds the given op map to the list of follow-up operations.
	env["out"] = func(x interface{}) interface{} {
		if v, is := x.(goja.Value); is {
			x = v.Export()
		}
		x, err := canonicalize(x)
		if err != nil {
			protest(o, err.Error())
		}
		rawOps = append(rawOps, x)
		return x
	}

	env["gensym"] = func() interface{} {
		return uuid.NewString()
	}

	env["cronNext"] = func(x interface{}) interface{} {
		if v, is := x.(goja.Value); is {
			x = v.Export()
		}
		expr, is := x.(string)
		if !is {
			protest(o, "not a string")
		}
		c, err := cronexpr.Parse(expr)
		if err != nil {
			protest(o, err.Error())
		}
		return c.Next(time.Now()).UTC().Format(time.RFC3339Nano)
	}

	env["esc"] = func(x interface{}) interface{} {
		if v, is := x.(goja.Value); is {
			x = v.Export()
		}
		str, is := x.(string)
		if !is {
			protest(o, "not a string")
		}
		return url.QueryEscape(str)
	}

	env["log"] = func(x interface{}) interface{} {
		if v, is := x.(goja.Value); is {
			x = v.Export()
		}
		js, err := json.Marshal(&x)
		if err != nil {
			log.Println("script.log (can't marshal: " + err.Error() + ")")
		} else {
			log.Println(string(js))
		}
		return x
	}

	if r.Testing {
		o.Set("sleep", func(ms int) {
			time.Sleep(time.Duration(ms) * time.Millisecond)
		})
	}

	o.Set("_", env)

	if r.Timeout > 0 {
		ictx, cancel := context.WithTimeout(context.Background(), r.Timeout)
		defer cancel()
		go func() {
			<-ictx.Done()
			// If we get here after RunProgram returned, the
			// interrupt has no one to bother.
			o.Interrupt(InterruptedMessage)
		}()
	}

	v, err := o.RunProgram(r.program)
	if err != nil {
		if _, is := err.(*goja.InterruptedError); is {
			return nil, nil, Interrupted
		}
		return nil, nil, err
	}

	x := v.Export()
	switch vv := x.(type) {
	case nil:
		return nil, rawOps, nil
	case map[string]interface{}:
		next, err := canonicalize(vv)
		if err != nil {
			return nil, nil, err
		}
		return next.(map[string]interface{}), rawOps, nil
	default:
		return nil, nil, fmt.Errorf("%#v (%T) isn't a state", x, x)
	}
}

// deepCopy renders the map through JSON to get a copy that shares
// nothing with the original, nested values included.
func deepCopy(m map[string]interface{}) (map[string]interface{}, error) {
	if m == nil {
		return map[string]interface{}{}, nil
	}
	x, err := canonicalize(m)
	if err != nil {
		return nil, err
	}
	return x.(map[string]interface{}), nil
}

// canonicalize renders x through JSON so that scripts only ever see
// plain maps, slices, and scalars.
func canonicalize(x interface{}) (interface{}, error) {
	js, err := json.Marshal(&x)
	if err != nil {
		return nil, err
	}
	var y interface{}
	if err := json.Unmarshal(js, &y); err != nil {
		return nil, err
	}
	return y, nil
}
