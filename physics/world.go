// Package physics is a Chipmunk backed host for motion graphs: static level
// solids, water volumes, agent bodies and the shape cast service.
//
// World units are metres with +Y up. Only X and Y of motion vectors are
// used.
package physics

import (
	"math"

	"github.com/jakecoffman/cp"

	"github.com/milk9111/motiongraph/common"
	"github.com/milk9111/motiongraph/motion"
)

const (
	collisionTypeSolid cp.CollisionType = iota + 1
	collisionTypeWater
	collisionTypeBody
	collisionTypeGroundSensor
)

// agentCategory is carried by agent shapes and never matched by casts, so an
// agent does not hit itself.
const agentCategory uint = 1 << 31

// groundGrace is how many steps an agent stays grounded after its sensor
// last touched a solid.
const groundGrace = 4

// Solid is a static axis-aligned box of the level.
type Solid struct {
	Entity  common.EntityRef
	Min     common.Vec3
	Max     common.Vec3
	Surface string
	// Layers are the cast layers the solid belongs to. Zero means layer 1.
	Layers uint32
}

func (s *Solid) center() common.Vec3 {
	return s.Min.Add(s.Max).Scale(0.5)
}

// World owns the Chipmunk space.
type World struct {
	space *cp.Space

	solids map[*cp.Shape]*Solid
	ground map[*cp.Shape]*Body
	water  map[*cp.Shape]*Body
}

// NewWorld creates a world with the given downward gravity.
func NewWorld(gravity float64) *World {
	space := cp.NewSpace()
	space.Iterations = 20
	space.SetGravity(cp.Vector{X: 0, Y: -gravity})

	w := &World{
		space:  space,
		solids: make(map[*cp.Shape]*Solid),
		ground: make(map[*cp.Shape]*Body),
		water:  make(map[*cp.Shape]*Body),
	}
	w.setupHandlers()
	return w
}

// Space returns the underlying Chipmunk space.
func (w *World) Space() *cp.Space {
	return w.space
}

// AddSolid adds a static box.
func (w *World) AddSolid(s Solid) *Solid {
	solid := &s
	bb := cp.BB{L: s.Min.X, B: s.Min.Y, R: s.Max.X, T: s.Max.Y}
	shape := cp.NewBox2(w.space.StaticBody, bb, 0)
	shape.SetFriction(0.8)
	shape.SetCollisionType(collisionTypeSolid)
	layers := uint(s.Layers)
	if layers == 0 {
		layers = 1
	}
	shape.SetFilter(cp.NewShapeFilter(cp.NO_GROUP, layers, cp.ALL_CATEGORIES))
	shape.UserData = solid
	w.space.AddShape(shape)
	w.solids[shape] = solid
	return solid
}

// AddWater adds a water volume. Bodies overlapping it report InWater.
func (w *World) AddWater(min, max common.Vec3) {
	bb := cp.BB{L: min.X, B: min.Y, R: max.X, T: max.Y}
	shape := cp.NewBox2(w.space.StaticBody, bb, 0)
	shape.SetSensor(true)
	shape.SetCollisionType(collisionTypeWater)
	w.space.AddShape(shape)
}

// Solids returns every static box, for debug drawing.
func (w *World) Solids() []*Solid {
	out := make([]*Solid, 0, len(w.solids))
	for _, s := range w.solids {
		out = append(out, s)
	}
	return out
}

// AddBody creates an upright dynamic box whose feet are at pos.
func (w *World) AddBody(pos common.Vec3, width, height float64) *Body {
	mass := 1.0
	cpBody := cp.NewBody(mass, math.Inf(1))
	cpBody.SetPosition(cp.Vector{X: pos.X, Y: pos.Y + height/2})
	w.space.AddBody(cpBody)

	shape := cp.NewBox(cpBody, width, height, 0)
	shape.SetFriction(0.8)
	shape.SetCollisionType(collisionTypeBody)
	shape.SetFilter(cp.NewShapeFilter(cp.NO_GROUP, agentCategory, cp.ALL_CATEGORIES))
	w.space.AddShape(shape)

	sensor := cp.NewBox2(cpBody, cp.BB{
		L: -width * 0.45,
		B: -height/2 - 0.05,
		R: width * 0.45,
		T: -height/2 + 0.05,
	}, 0)
	sensor.SetSensor(true)
	sensor.SetCollisionType(collisionTypeGroundSensor)
	sensor.SetFilter(cp.NewShapeFilter(cp.NO_GROUP, agentCategory, cp.ALL_CATEGORIES))
	w.space.AddShape(sensor)

	b := &Body{body: cpBody, shape: shape, height: height}
	w.ground[sensor] = b
	w.water[shape] = b
	return b
}

// Step advances the simulation.
func (w *World) Step(dt float64) {
	for _, b := range w.ground {
		if b.grace > 0 {
			b.grace--
		}
	}
	w.space.Step(dt)
}

func (w *World) setupHandlers() {
	groundHandler := w.space.NewCollisionHandler(collisionTypeGroundSensor, collisionTypeSolid)
	groundHandler.UserData = w
	groundHandler.PreSolveFunc = func(arb *cp.Arbiter, space *cp.Space, userData interface{}) bool {
		world, ok := userData.(*World)
		if !ok {
			return true
		}
		a, b := arb.Shapes()
		if body, ok := world.ground[a]; ok {
			body.grace = groundGrace
		} else if body, ok := world.ground[b]; ok {
			body.grace = groundGrace
		}
		return true
	}

	waterHandler := w.space.NewCollisionHandler(collisionTypeBody, collisionTypeWater)
	waterHandler.UserData = w
	waterHandler.BeginFunc = func(arb *cp.Arbiter, space *cp.Space, userData interface{}) bool {
		if body := userData.(*World).waterBody(arb); body != nil {
			body.submerged++
		}
		return true
	}
	waterHandler.SeparateFunc = func(arb *cp.Arbiter, space *cp.Space, userData interface{}) {
		if body := userData.(*World).waterBody(arb); body != nil && body.submerged > 0 {
			body.submerged--
		}
	}
}

func (w *World) waterBody(arb *cp.Arbiter) *Body {
	a, b := arb.Shapes()
	if body, ok := w.water[a]; ok {
		return body
	}
	return w.water[b]
}

// ShapeCast implements motion.PhysicsQuery. A capsule is swept as its two
// end spheres and its centre sphere; the nearest hit wins.
func (w *World) ShapeCast(q motion.CastQuery) (motion.CastHit, bool) {
	dir := cp.Vector{X: q.Direction.X, Y: q.Direction.Y}
	if dir.Length() == 0 || q.Distance <= 0 {
		return motion.CastHit{}, false
	}
	dir = dir.Normalize()
	travel := dir.Mult(q.Distance)

	mask := cp.ALL_CATEGORIES
	if q.Layers != 0 {
		mask = uint(q.Layers)
	}
	filter := cp.NewShapeFilter(cp.NO_GROUP, cp.ALL_CATEGORIES, mask&^agentCategory)

	origins := []cp.Vector{{X: q.Origin.X, Y: q.Origin.Y}}
	if q.Shape == motion.ShapeCapsule && q.Height > 0 {
		half := q.Height / 2
		origins = append(origins,
			cp.Vector{X: q.Origin.X, Y: q.Origin.Y - half},
			cp.Vector{X: q.Origin.X, Y: q.Origin.Y + half})
	}

	var (
		best  cp.SegmentQueryInfo
		found bool
	)
	for _, o := range origins {
		info := w.space.SegmentQueryFirst(o, o.Add(travel), q.Radius, filter)
		if info.Shape == nil {
			continue
		}
		if !found || info.Alpha < best.Alpha {
			best, found = info, true
		}
	}
	if !found {
		return motion.CastHit{}, false
	}

	hit := motion.CastHit{
		Point:    common.V3(best.Point.X, best.Point.Y, 0),
		Normal:   common.V3(best.Normal.X, best.Normal.Y, 0),
		Distance: best.Alpha * q.Distance,
	}
	if s, ok := best.Shape.UserData.(*Solid); ok {
		hit.Entity = s.Entity
		hit.Surface = s.Surface
		hit.Transform = common.Transform{Position: s.center()}
	}
	return hit, true
}
