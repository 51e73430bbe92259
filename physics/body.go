package physics

import (
	"github.com/jakecoffman/cp"

	"github.com/milk9111/motiongraph/common"
)

// Body is an agent in the world. It implements motion.Body; Position is the
// bottom centre of the box.
type Body struct {
	body   *cp.Body
	shape  *cp.Shape
	height float64

	grace     int
	submerged int
}

func (b *Body) Position() common.Vec3 {
	p := b.body.Position()
	return common.V3(p.X, p.Y-b.height/2, 0)
}

func (b *Body) Velocity() common.Vec3 {
	v := b.body.Velocity()
	return common.V3(v.X, v.Y, 0)
}

func (b *Body) SetVelocity(v common.Vec3) {
	b.body.SetVelocityVector(cp.Vector{X: v.X, Y: v.Y})
}

func (b *Body) ApplyImpulse(impulse common.Vec3) {
	b.body.ApplyImpulseAtWorldPoint(cp.Vector{X: impulse.X, Y: impulse.Y}, b.body.Position())
}

func (b *Body) Grounded() bool { return b.grace > 0 }
func (b *Body) InWater() bool  { return b.submerged > 0 }

// Size returns the box width and height.
func (b *Body) Size() (float64, float64) {
	bb := b.shape.BB()
	return bb.R - bb.L, bb.T - bb.B
}
