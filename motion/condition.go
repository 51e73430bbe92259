package motion

import (
	"fmt"

	"go.uber.org/zap"
)

// Condition is a predicate over the parameter store and the injected
// services. Evaluating it twice with the same inputs in one tick must return
// the same result.
type Condition interface {
	Evaluate(ctx *EvalContext) bool
}

// OutputWriter is implemented by conditions that write side-channel
// parameters while evaluating.
type OutputWriter interface {
	WritesOutputs() bool
}

// Resetter clears per-entry runtime state. Conditions are reset when their
// source state is entered; behaviours when their state is entered unless
// they are persistent.
type Resetter interface {
	Reset()
}

// ConditionFunc adapts a function to Condition.
type ConditionFunc func(ctx *EvalContext) bool

func (f ConditionFunc) Evaluate(ctx *EvalContext) bool {
	return f(ctx)
}

// EvalContext is passed to every condition evaluation.
type EvalContext struct {
	Services

	Params *Store
	Logger *zap.Logger
	State  StateID
	// StateTime is the elapsed simulated time since the state was entered.
	StateTime  float64
	StateTicks int
	Tick       uint64

	groups func(id GroupID) bool
}

// GroupResult returns another group's boolean for the current tick.
// Unknown groups and contexts without an instance report false.
func (c *EvalContext) GroupResult(id GroupID) bool {
	if c == nil || c.groups == nil {
		return false
	}
	return c.groups(id)
}

// Group is an AND-combined list of conditions.
type Group struct {
	ID         GroupID
	Conditions []Condition

	outputs []bool
}

func NewGroup(id GroupID, conds ...Condition) *Group {
	g := &Group{ID: id, Conditions: conds}
	g.index()
	return g
}

func (g *Group) index() {
	g.outputs = make([]bool, len(g.Conditions))
	for i, c := range g.Conditions {
		if w, ok := c.(OutputWriter); ok && w.WritesOutputs() {
			g.outputs[i] = true
		}
	}
}

// WritesOutputs reports whether any member writes side channels.
func (g *Group) WritesOutputs() bool {
	if len(g.outputs) != len(g.Conditions) {
		g.index()
	}
	for _, o := range g.outputs {
		if o {
			return true
		}
	}
	return false
}

// evaluate runs the group in declared order. The boolean stops at the first
// false condition; under FreshSideChannels later output writers still run.
func (g *Group) evaluate(ctx *EvalContext, policy SideChannelPolicy) bool {
	if len(g.outputs) != len(g.Conditions) {
		g.index()
	}
	satisfied := true
	for i, c := range g.Conditions {
		if !satisfied {
			if policy == ShortCircuit {
				break
			}
			if g.outputs[i] {
				safeEvaluate(ctx, g.ID, c)
			}
			continue
		}
		if !safeEvaluate(ctx, g.ID, c) {
			satisfied = false
		}
	}
	return satisfied
}

// refreshOutputs runs only the output-writing members. It is used for groups
// visited after the connection is already decided, so pure conditions, and
// the pulses they would consume, are left alone.
func (g *Group) refreshOutputs(ctx *EvalContext) {
	if len(g.outputs) != len(g.Conditions) {
		g.index()
	}
	for i, c := range g.Conditions {
		if g.outputs[i] {
			safeEvaluate(ctx, g.ID, c)
		}
	}
}

func (g *Group) reset() {
	for _, c := range g.Conditions {
		if r, ok := c.(Resetter); ok {
			r.Reset()
		}
	}
}

// safeEvaluate isolates a single condition: a panic counts as false.
func safeEvaluate(ctx *EvalContext, group GroupID, c Condition) (result bool) {
	defer func() {
		if r := recover(); r != nil {
			result = false
			if ctx != nil && ctx.Logger != nil {
				ctx.Logger.Error("condition panicked",
					zap.String("state", string(ctx.State)),
					zap.String("group", string(group)),
					zap.String("condition", fmt.Sprintf("%T", c)),
					zap.Any("panic", r))
			}
		}
	}()
	return c.Evaluate(ctx)
}
