package conditions

import (
	"fmt"
	"strings"

	"github.com/milk9111/motiongraph/common"
	"github.com/milk9111/motiongraph/motion"
)

// ContactKind is a body flag read by Contact.
type ContactKind int

const (
	Grounded ContactKind = iota
	Water
)

func ParseContact(s string) (ContactKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "grounded", "ground":
		return Grounded, nil
	case "water", "in_water", "swimming":
		return Water, nil
	}
	return 0, fmt.Errorf("conditions: unknown contact %q", s)
}

// Contact tests a contact flag of the agent body. Without a body there is no
// contact.
type Contact struct {
	Kind   ContactKind
	Expect bool
}

func (c *Contact) Evaluate(ctx *motion.EvalContext) bool {
	touching := false
	if ctx.Body != nil {
		switch c.Kind {
		case Grounded:
			touching = ctx.Body.Grounded()
		case Water:
			touching = ctx.Body.InWater()
		}
	}
	return touching == c.Expect
}

// Direction selects how a ShapeCast picks its sweep.
type Direction int

const (
	// Static sweeps along a fixed authored vector.
	Static Direction = iota
	// FromParam sweeps along a Vector3 parameter.
	FromParam
	// Lookahead sweeps along the body velocity.
	Lookahead
)

func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "static":
		return Static, nil
	case "parameter", "param":
		return FromParam, nil
	case "lookahead", "velocity":
		return Lookahead, nil
	}
	return 0, fmt.Errorf("conditions: unknown cast direction %q", s)
}

// CastOutputs are the parameters a ShapeCast writes on every evaluation.
// Zero ids are not written.
type CastOutputs struct {
	HitPoint     motion.ParamID
	HitNormal    motion.ParamID
	HitEntity    motion.ParamID
	HitTransform motion.ParamID
	HitDistance  motion.ParamID
	ClimbHeight  motion.ParamID
}

func (o CastOutputs) any() bool {
	return o.HitPoint != 0 || o.HitNormal != 0 || o.HitEntity != 0 ||
		o.HitTransform != 0 || o.HitDistance != 0 || o.ClimbHeight != 0
}

// ShapeCast sweeps a sphere or capsule from the body and reports whether
// the result matches ExpectHit. With no physics service nothing is hit.
//
// In Lookahead mode with LookaheadTime set the sweep length is the distance
// travelled at the current velocity over that time; otherwise it is the
// normalized velocity times Distance.
type ShapeCast struct {
	Shape         motion.ShapeKind
	Radius        float64
	Height        float64
	Offset        common.Vec3
	Direction     Direction
	Static        common.Vec3
	Param         motion.ParamID
	Distance      float64
	LookaheadTime float64
	Layers        uint32
	ExpectHit     bool
	Out           CastOutputs
}

func (c *ShapeCast) WritesOutputs() bool {
	return c.Out.any()
}

func (c *ShapeCast) Evaluate(ctx *motion.EvalContext) bool {
	var feet common.Vec3
	if ctx.Body != nil {
		feet = ctx.Body.Position()
	}
	q := motion.CastQuery{
		Shape:    c.Shape,
		Origin:   feet.Add(c.Offset),
		Distance: c.Distance,
		Radius:   c.Radius,
		Height:   c.Height,
		Layers:   c.Layers,
	}
	switch c.Direction {
	case FromParam:
		q.Direction = ctx.Params.Vector(c.Param)
	case Lookahead:
		var vel common.Vec3
		if ctx.Body != nil {
			vel = ctx.Body.Velocity()
		}
		q.Direction = vel.Normalize()
		if c.LookaheadTime > 0 {
			q.Distance = vel.Len() * c.LookaheadTime
		}
	default:
		q.Direction = c.Static
	}

	hit, ok := motion.CastHit{}, false
	if ctx.Physics != nil && !q.Direction.IsZero() && q.Distance > 0 {
		hit, ok = ctx.Physics.ShapeCast(q)
	}
	c.write(ctx.Params, feet, q, hit, ok)
	return ok == c.ExpectHit
}

func (c *ShapeCast) write(p *motion.Store, feet common.Vec3, q motion.CastQuery, hit motion.CastHit, ok bool) {
	if !c.Out.any() {
		return
	}
	if !ok {
		hit = motion.CastHit{Distance: q.Distance}
	}
	if c.Out.HitPoint != 0 {
		p.SetVector(c.Out.HitPoint, hit.Point)
	}
	if c.Out.HitNormal != 0 {
		p.SetVector(c.Out.HitNormal, hit.Normal)
	}
	if c.Out.HitEntity != 0 {
		p.SetEntity(c.Out.HitEntity, hit.Entity)
	}
	if c.Out.HitTransform != 0 {
		p.SetEntity(c.Out.HitTransform, hit.Entity)
	}
	if c.Out.HitDistance != 0 {
		p.SetFloat(c.Out.HitDistance, hit.Distance)
	}
	if c.Out.ClimbHeight != 0 {
		climb := 0.0
		if ok {
			climb = hit.Point.Y - feet.Y
		}
		p.SetFloat(c.Out.ClimbHeight, climb)
	}
}
