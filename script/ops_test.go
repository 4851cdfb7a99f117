package script

import (
	"testing"
	"time"

	"github.com/coxswain-io/coxswain/core"
)

func TestParseOpEmit(t *testing.T) {
	op, err := ParseOp(map[string]interface{}{
		"emit": map[string]interface{}{"type": "done"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if op.Kind() != core.OpDo {
		t.Fatal(op)
	}
}

func TestParseOpCancel(t *testing.T) {
	op, err := ParseOp(map[string]interface{}{"cancel": "X"})
	if err != nil {
		t.Fatal(err)
	}
	if op.Kind() != core.OpCancel || op.ID() != "X" {
		t.Fatal(op)
	}

	if _, err := ParseOp(map[string]interface{}{"cancel": 42}); err == nil {
		t.Fatal("expected an error")
	}
}

func TestParseOpTimer(t *testing.T) {
	op, err := ParseOp(map[string]interface{}{
		"timer": map[string]interface{}{
			"id":       "ticker",
			"interval": "250ms",
			"action":   map[string]interface{}{"type": "tick"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if op.Kind() != core.OpTimer || op.ID() != "ticker" {
		t.Fatal(op)
	}
	if op.Interval() != 250*time.Millisecond {
		t.Fatal(op.Interval())
	}

	// A bare number is milliseconds.
	op, err = ParseOp(map[string]interface{}{
		"timer": map[string]interface{}{
			"id":       "ticker",
			"interval": float64(100),
			"action":   map[string]interface{}{"type": "tick"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if op.Interval() != 100*time.Millisecond {
		t.Fatal(op.Interval())
	}

	if _, err := ParseOp(map[string]interface{}{
		"timer": map[string]interface{}{"interval": "1s"},
	}); err == nil {
		t.Fatal("timer without an id should fail")
	}
}

func TestParseOpCron(t *testing.T) {
	op, err := ParseOp(map[string]interface{}{
		"cron": map[string]interface{}{
			"id":     "hourly",
			"expr":   "0 * * * *",
			"action": map[string]interface{}{"type": "sweep"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if op.Kind() != core.OpCron || op.Expr() != "0 * * * *" {
		t.Fatal(op)
	}
}

func TestParseOpBranches(t *testing.T) {
	branches := []interface{}{
		map[string]interface{}{"emit": map[string]interface{}{"type": "a"}},
		map[string]interface{}{"emit": map[string]interface{}{"type": "b"}},
	}

	op, err := ParseOp(map[string]interface{}{"concat": branches})
	if err != nil {
		t.Fatal(err)
	}
	if op.Kind() != core.OpConcat {
		t.Fatal(op)
	}

	op, err = ParseOp(map[string]interface{}{"merge": branches})
	if err != nil {
		t.Fatal(err)
	}
	if op.Kind() != core.OpMerge {
		t.Fatal(op)
	}
}

func TestParseOpTask(t *testing.T) {
	op, err := ParseOp(map[string]interface{}{
		"task": map[string]interface{}{
			"id": "fetch",
			"http": map[string]interface{}{
				"url": "http://example.com",
				"testResponse": map[string]interface{}{
					"statusCode": 200,
					"body":       "hello",
				},
			},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if op.Kind() != core.OpTask || op.ID() != "fetch" {
		t.Fatal(op)
	}

	if _, err := ParseOp(map[string]interface{}{
		"task": map[string]interface{}{"id": "idle"},
	}); err == nil {
		t.Fatal("task without work should fail")
	}
}

func TestParseOpUnknown(t *testing.T) {
	if _, err := ParseOp(map[string]interface{}{"warp": 9}); err == nil {
		t.Fatal("expected an error")
	}
	if _, err := ParseOp("nope"); err == nil {
		t.Fatal("expected an error")
	}
}

func TestParseOpsFolds(t *testing.T) {
	op, err := ParseOps([]interface{}{
		map[string]interface{}{"emit": map[string]interface{}{"type": "a"}},
		map[string]interface{}{"cancel": "X"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if op.Kind() != core.OpConcat {
		t.Fatal(op)
	}

	op, err = ParseOps(nil)
	if err != nil {
		t.Fatal(err)
	}
	if op != nil {
		t.Fatal(op)
	}
}

func TestAsInterval(t *testing.T) {
	if d, err := asInterval("1s"); err != nil || d != time.Second {
		t.Fatal(d, err)
	}
	if d, err := asInterval(float64(10)); err != nil || d != 10*time.Millisecond {
		t.Fatal(d, err)
	}
	if _, err := asInterval(true); err == nil {
		t.Fatal("expected an error")
	}
}
