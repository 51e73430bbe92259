package script

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/d5/tengo/v2"
	"go.uber.org/zap"

	"github.com/milk9111/motiongraph/motion"
)

// Condition runs a tengo program that assigns a global named result.
type Condition struct {
	name string
	rt   *runtime
	// failed is set after the first runtime error so it is logged once.
	failed bool
}

// NewCondition compiles src, which must assign result.
func NewCondition(name, src string) (*Condition, error) {
	rt, err := compile(name, src, nil)
	if err != nil {
		return nil, err
	}
	if !rt.compiled.IsDefined("result") {
		return nil, fmt.Errorf("script: %s does not assign result", name)
	}
	return &Condition{name: name, rt: rt}, nil
}

// NewExpression compiles a single boolean expression.
func NewExpression(name, expr string) (*Condition, error) {
	return NewCondition(name, fmt.Sprintf("result := (%s) ? true : false\n", expr))
}

func (c *Condition) Evaluate(ctx *motion.EvalContext) bool {
	err := c.rt.run(scope{
		params:    ctx.Params,
		logger:    loggerOf(ctx.Logger),
		state:     ctx.State,
		stateTime: ctx.StateTime,
	})
	if err != nil {
		if !c.failed {
			loggerOf(ctx.Logger).Warn("script condition failed", zap.String("script", c.name), zap.Error(err))
			c.failed = true
		}
		return false
	}
	return c.rt.compiled.Get("result").Bool()
}

const lifecycleDispatch = `
if __phase == "enter" {
	onEnter(__engine, __state)
} else if __phase == "update" {
	update(__engine, __state, __dt)
} else if __phase == "exit" {
	onExit(__engine, __state)
}
`

// Behaviour runs a tengo program defining onEnter(engine, state),
// update(engine, state, dt) and onExit(engine, state). state is a map kept
// between calls; it is cleared on entry unless the behaviour is persistent.
type Behaviour struct {
	name  string
	rt    *runtime
	state *tengo.Map
}

func NewBehaviour(name, src string) (*Behaviour, error) {
	rt, err := compile(name, src+"\n"+lifecycleDispatch, map[string]any{
		"__phase": "",
		"__state": map[string]any{},
		"__dt":    0.0,
	})
	if err != nil {
		return nil, err
	}
	return &Behaviour{name: name, rt: rt, state: newState()}, nil
}

func newState() *tengo.Map {
	return &tengo.Map{Value: map[string]tengo.Object{}}
}

func (b *Behaviour) OnEnter(ctx *motion.ActionContext) {
	b.runPhase(ctx, "enter", 0)
}

func (b *Behaviour) OnExit(ctx *motion.ActionContext) {
	b.runPhase(ctx, "exit", 0)
}

func (b *Behaviour) Update(ctx *motion.ActionContext, dt float64) {
	b.runPhase(ctx, "update", dt)
}

func (b *Behaviour) Reset() {
	b.state = newState()
}

func (b *Behaviour) runPhase(ctx *motion.ActionContext, phase string, dt float64) {
	c := b.rt.compiled
	for name, v := range map[string]any{"__phase": phase, "__state": b.state, "__dt": dt} {
		if err := c.Set(name, v); err != nil {
			loggerOf(ctx.Logger).Warn("script behaviour", zap.String("script", b.name), zap.Error(err))
			return
		}
	}
	err := b.rt.run(scope{
		params:    ctx.Params,
		logger:    loggerOf(ctx.Logger),
		state:     ctx.State,
		stateTime: ctx.StateTime,
	})
	if err != nil {
		loggerOf(ctx.Logger).Warn("script behaviour failed",
			zap.String("script", b.name),
			zap.String("phase", phase),
			zap.Error(err))
	}
}

// Value reads a key of the script's state map.
func (b *Behaviour) Value(key string) any {
	return objectToAny(b.state.Value[key])
}

func (b *Behaviour) MarshalState() (json.RawMessage, error) {
	return json.Marshal(objectToAny(b.state))
}

func (b *Behaviour) UnmarshalState(data json.RawMessage) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	if raw == nil {
		b.state = newState()
		return nil
	}
	obj, err := tengo.FromInterface(fromJSON(raw))
	if err != nil {
		return err
	}
	m, ok := obj.(*tengo.Map)
	if !ok {
		return fmt.Errorf("script: state of %s is %s, not a map", b.name, obj.TypeName())
	}
	b.state = m
	return nil
}

// fromJSON turns json.Numbers back into ints where they are whole so
// scripts see the types they stored.
func fromJSON(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		f, _ := t.Float64()
		return f
	case map[string]any:
		for k, item := range t {
			t[k] = fromJSON(item)
		}
		return t
	case []any:
		for i, item := range t {
			t[i] = fromJSON(item)
		}
		return t
	}
	return v
}

func loggerOf(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
