// Package behaviours holds the built-in behaviour kinds attached to motion
// graph states.
package behaviours

import (
	"fmt"
	"strings"

	"github.com/milk9111/motiongraph/common"
	"github.com/milk9111/motiongraph/motion"
)

// ParamOp is the operation a Param behaviour applies to its target.
type ParamOp int

const (
	Set ParamOp = iota
	Reset
	Add
	Subtract
	Multiply
	Normalize
	Clamp
)

func ParseParamOp(s string) (ParamOp, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "set", "fire", "copy":
		return Set, nil
	case "reset":
		return Reset, nil
	case "add":
		return Add, nil
	case "subtract", "sub":
		return Subtract, nil
	case "multiply", "mul", "scale":
		return Multiply, nil
	case "normalize":
		return Normalize, nil
	case "clamp":
		return Clamp, nil
	}
	return 0, fmt.Errorf("behaviours: unknown parameter operation %q", s)
}

// Param applies an operation to a parameter. Enter is the operand used on
// entry and by Update; Exit, when HasExit is set, is used on exit. Source
// replaces the operand with the current value of another parameter, which is
// how entity references are copied between parameters.
type Param struct {
	motion.Base

	Target  motion.ParamID
	Op      ParamOp
	Enter   motion.Value
	Exit    motion.Value
	HasExit bool
	Source  motion.ParamID
	Min     float64
	Max     float64
}

func (p *Param) OnEnter(ctx *motion.ActionContext) {
	p.apply(ctx.Params, p.Enter)
}

func (p *Param) OnExit(ctx *motion.ActionContext) {
	if p.HasExit {
		p.apply(ctx.Params, p.Exit)
		return
	}
	p.apply(ctx.Params, p.Enter)
}

func (p *Param) Update(ctx *motion.ActionContext, dt float64) {
	p.apply(ctx.Params, p.Enter)
}

func (p *Param) apply(s *motion.Store, operand motion.Value) {
	if p.Source != 0 {
		operand = s.Peek(p.Source)
	}
	def, ok := s.Def(p.Target)
	if !ok {
		// logged by the store
		s.SetValue(p.Target, operand)
		return
	}
	cur := s.Peek(p.Target)

	switch p.Op {
	case Reset:
		s.Reset(p.Target)
	case Set:
		if def.Type.Pulse() {
			s.SetBool(p.Target, operand.Bool || operand.Type == 0)
			return
		}
		s.SetValue(p.Target, coerce(def.Type, operand))
	case Add, Subtract:
		sign := 1.0
		if p.Op == Subtract {
			sign = -1
		}
		switch def.Type {
		case motion.ParamFloat:
			s.SetFloat(p.Target, cur.Float+sign*operand.Number())
		case motion.ParamInt:
			s.SetInt(p.Target, cur.Int+int(sign)*int(operand.Number()))
		case motion.ParamVector:
			s.SetVector(p.Target, cur.Vector.Add(operand.Vector.Scale(sign)))
		default:
			s.SetValue(p.Target, operand)
		}
	case Multiply:
		switch def.Type {
		case motion.ParamFloat:
			s.SetFloat(p.Target, cur.Float*operand.Number())
		case motion.ParamInt:
			s.SetInt(p.Target, int(float64(cur.Int)*operand.Number()))
		case motion.ParamVector:
			if operand.Type == motion.ParamVector {
				s.SetVector(p.Target, cur.Vector.Mul(operand.Vector))
			} else {
				s.SetVector(p.Target, cur.Vector.Scale(operand.Number()))
			}
		default:
			s.SetValue(p.Target, operand)
		}
	case Normalize:
		s.SetVector(p.Target, cur.Vector.Normalize())
	case Clamp:
		switch def.Type {
		case motion.ParamFloat:
			s.SetFloat(p.Target, common.Clamp(cur.Float, p.Min, p.Max))
		case motion.ParamInt:
			s.SetInt(p.Target, int(common.Clamp(float64(cur.Int), p.Min, p.Max)))
		case motion.ParamVector:
			s.SetVector(p.Target, cur.Vector.ClampLen(p.Max))
		default:
			s.SetValue(p.Target, operand)
		}
	}
}

// coerce converts numeric operands between Float and Int so authored
// constants need not match the parameter type exactly.
func coerce(t motion.ParamType, v motion.Value) motion.Value {
	if v.Type == t {
		return v
	}
	switch t {
	case motion.ParamFloat:
		return motion.FloatValue(v.Number())
	case motion.ParamInt:
		return motion.IntValue(int(v.Number()))
	case motion.ParamBool:
		return motion.BoolValue(v.Number() != 0)
	}
	return v
}
