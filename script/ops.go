package script

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/coxswain-io/coxswain/core"

	"github.com/google/uuid"
)

// ParseOps converts the op maps a script passed to out() into one
// operation, folded sequentially in out() order.
func ParseOps(xs []interface{}) (*core.Op[Action], error) {
	ops := make([]*core.Op[Action], 0, len(xs))
	for _, x := range xs {
		op, err := ParseOp(x)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	return core.Concat(ops...), nil
}

// ParseOp converts one scripted op map into an operation.
//
// Recognized forms:
//
//	{"emit": ACTION}
//	{"log": X, "id": ID?}
//	{"task": {"id": ID?, "http": REQUEST}}
//	{"timer": {"id": ID, "interval": "10s", "action": ACTION}}
//	{"cron": {"id": ID, "expr": "0 * * * *", "action": ACTION}}
//	{"cancel": ID}
//	{"concat": [OP, ...]}
//	{"merge": [OP, ...]}
func ParseOp(x interface{}) (*core.Op[Action], error) {
	m, is := x.(map[string]interface{})
	if !is {
		return nil, fmt.Errorf("bad op (%T)", x)
	}

	if y, have := m["emit"]; have {
		a, is := y.(map[string]interface{})
		if !is {
			return nil, fmt.Errorf("bad emit action (%T)", y)
		}
		return core.Do(Action(a)), nil
	}

	if y, have := m["log"]; have {
		id := optID(m)
		js, err := json.Marshal(&y)
		if err != nil {
			return nil, err
		}
		line := string(js)
		return core.Run[Action](id, func(context.Context) {
			log.Println(line)
		}), nil
	}

	if y, have := m["task"]; have {
		return parseTask(y)
	}

	if y, have := m["timer"]; have {
		return parseTimer(y)
	}

	if y, have := m["cron"]; have {
		return parseCron(y)
	}

	if y, have := m["cancel"]; have {
		id, is := y.(string)
		if !is {
			return nil, fmt.Errorf("bad cancel id (%T)", y)
		}
		return core.Cancel[Action](id), nil
	}

	if y, have := m["concat"]; have {
		return parseBranches(y, core.Concat[Action])
	}

	if y, have := m["merge"]; have {
		return parseBranches(y, core.Merge[Action])
	}

	return nil, fmt.Errorf("unrecognized op %v", m)
}

func parseBranches(y interface{}, fold func(...*core.Op[Action]) *core.Op[Action]) (*core.Op[Action], error) {
	xs, is := y.([]interface{})
	if !is {
		return nil, fmt.Errorf("bad op branches (%T)", y)
	}
	ops := make([]*core.Op[Action], 0, len(xs))
	for _, x := range xs {
		op, err := ParseOp(x)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	return fold(ops...), nil
}

func parseTask(y interface{}) (*core.Op[Action], error) {
	m, is := y.(map[string]interface{})
	if !is {
		return nil, fmt.Errorf("bad task (%T)", y)
	}
	id := optID(m)

	spec, have := m["http"]
	if !have {
		return nil, fmt.Errorf("task %s has no work", id)
	}
	req, err := asHTTPRequest(spec)
	if err != nil {
		return nil, err
	}
	return core.Task(id, func(ctx context.Context) Action {
		resp := req.Do(ctx)
		body, err := canonicalize(resp)
		if err != nil {
			return Action{"error": err.Error(), "id": id}
		}
		return Action{"http": body, "id": id}
	}), nil
}

func parseTimer(y interface{}) (*core.Op[Action], error) {
	m, is := y.(map[string]interface{})
	if !is {
		return nil, fmt.Errorf("bad timer (%T)", y)
	}
	id, is := m["id"].(string)
	if !is {
		return nil, fmt.Errorf("timer needs an id")
	}
	d, err := asInterval(m["interval"])
	if err != nil {
		return nil, err
	}
	a, is := m["action"].(map[string]interface{})
	if !is {
		return nil, fmt.Errorf("timer %s needs an action", id)
	}
	return core.Every(d, id, Action(a)), nil
}

func parseCron(y interface{}) (*core.Op[Action], error) {
	m, is := y.(map[string]interface{})
	if !is {
		return nil, fmt.Errorf("bad cron (%T)", y)
	}
	id, is := m["id"].(string)
	if !is {
		return nil, fmt.Errorf("cron needs an id")
	}
	expr, is := m["expr"].(string)
	if !is {
		return nil, fmt.Errorf("cron %s needs an expr", id)
	}
	a, is := m["action"].(map[string]interface{})
	if !is {
		return nil, fmt.Errorf("cron %s needs an action", id)
	}
	return core.Cron(expr, id, Action(a)), nil
}

// asInterval accepts a duration string ("250ms") or a number of
// milliseconds.
func asInterval(x interface{}) (time.Duration, error) {
	switch vv := x.(type) {
	case string:
		return time.ParseDuration(vv)
	case float64:
		return time.Duration(vv) * time.Millisecond, nil
	case int:
		return time.Duration(vv) * time.Millisecond, nil
	case int64:
		return time.Duration(vv) * time.Millisecond, nil
	}
	return 0, fmt.Errorf("bad interval (%T)", x)
}

func optID(m map[string]interface{}) string {
	if id, is := m["id"].(string); is {
		return id
	}
	return uuid.NewString()
}
