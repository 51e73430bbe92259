// Package conditions holds the built-in condition kinds evaluated by motion
// graph connections.
package conditions

import (
	"fmt"
	"math"
	"strings"

	"github.com/milk9111/motiongraph/motion"
)

// Op is a comparison operator.
type Op int

const (
	Eq Op = iota
	Ne
	Gt
	Ge
	Lt
	Le
)

var opNames = map[string]Op{
	"==": Eq, "=": Eq, "eq": Eq,
	"!=": Ne, "ne": Ne,
	">": Gt, "gt": Gt,
	">=": Ge, "ge": Ge,
	"<": Lt, "lt": Lt,
	"<=": Le, "le": Le,
}

// ParseOp accepts the symbolic and word forms of an operator. An empty
// string means equality.
func ParseOp(s string) (Op, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return Eq, nil
	}
	op, ok := opNames[s]
	if !ok {
		return 0, fmt.Errorf("conditions: unknown operator %q", s)
	}
	return op, nil
}

func (o Op) String() string {
	switch o {
	case Eq:
		return "=="
	case Ne:
		return "!="
	case Gt:
		return ">"
	case Ge:
		return ">="
	case Lt:
		return "<"
	case Le:
		return "<="
	}
	return "?"
}

// epsilon absorbs float drift in equality tests.
const epsilon = 1e-9

func (o Op) Apply(a, b float64) bool {
	switch o {
	case Eq:
		return math.Abs(a-b) <= epsilon
	case Ne:
		return math.Abs(a-b) > epsilon
	case Gt:
		return a > b
	case Ge:
		return a >= b
	case Lt:
		return a < b
	case Le:
		return a <= b
	}
	return false
}

// Compare tests a Float, Int or Switch parameter against a constant, or
// against another parameter when Other is set. Switches compare as 0 and 1.
type Compare struct {
	Param motion.ParamID
	Op    Op
	Value float64
	Other motion.ParamID
}

func (c *Compare) Evaluate(ctx *motion.EvalContext) bool {
	lhs := ctx.Params.Number(c.Param)
	rhs := c.Value
	if c.Other != 0 {
		rhs = ctx.Params.Number(c.Other)
	}
	return c.Op.Apply(lhs, rhs)
}

// Component selects what part of a vector is compared.
type Component int

const (
	X Component = iota
	Y
	Z
	Magnitude
)

func ParseComponent(s string) (Component, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "x":
		return X, nil
	case "y":
		return Y, nil
	case "z":
		return Z, nil
	case "", "magnitude", "length", "len":
		return Magnitude, nil
	}
	return 0, fmt.Errorf("conditions: unknown vector component %q", s)
}

// Vector compares one component of a Vector3 parameter with a constant.
type Vector struct {
	Param     motion.ParamID
	Component Component
	Op        Op
	Value     float64
}

func (c *Vector) Evaluate(ctx *motion.EvalContext) bool {
	v := ctx.Params.Vector(c.Param)
	var lhs float64
	switch c.Component {
	case X:
		lhs = v.X
	case Y:
		lhs = v.Y
	case Z:
		lhs = v.Z
	default:
		lhs = v.Len()
	}
	return c.Op.Apply(lhs, c.Value)
}

// Trigger consumes a Trigger or Event parameter.
type Trigger struct {
	Param motion.ParamID
}

func (c *Trigger) Evaluate(ctx *motion.EvalContext) bool {
	return ctx.Params.Consume(c.Param)
}

// StateTime compares the seconds spent in the current state.
type StateTime struct {
	Op      Op
	Seconds float64
}

func (c *StateTime) Evaluate(ctx *motion.EvalContext) bool {
	return c.Op.Apply(ctx.StateTime, c.Seconds)
}

// GroupRef reads another group's result for this tick.
type GroupRef struct {
	Group motion.GroupID
}

func (c *GroupRef) Evaluate(ctx *motion.EvalContext) bool {
	return ctx.GroupResult(c.Group)
}

// Operation polls an external multi-tick operation. Without an
// operations service nothing ever completes.
type Operation struct {
	Name   string
	Expect bool
}

func (c *Operation) Evaluate(ctx *motion.EvalContext) bool {
	done := false
	if ctx.Operations != nil {
		done = ctx.Operations.Completed(c.Name)
	}
	return done == c.Expect
}

// Not negates a condition and forwards its optional capabilities.
type Not struct {
	Inner motion.Condition
}

func Invert(c motion.Condition) motion.Condition {
	if n, ok := c.(*Not); ok {
		return n.Inner
	}
	return &Not{Inner: c}
}

func (n *Not) Evaluate(ctx *motion.EvalContext) bool {
	return !n.Inner.Evaluate(ctx)
}

func (n *Not) WritesOutputs() bool {
	w, ok := n.Inner.(motion.OutputWriter)
	return ok && w.WritesOutputs()
}

func (n *Not) Reset() {
	if r, ok := n.Inner.(motion.Resetter); ok {
		r.Reset()
	}
}
