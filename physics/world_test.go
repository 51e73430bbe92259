package physics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/milk9111/motiongraph/common"
	"github.com/milk9111/motiongraph/motion"
)

var (
	_ motion.Body         = (*Body)(nil)
	_ motion.PhysicsQuery = (*World)(nil)
)

func floorWorld() *World {
	w := NewWorld(20)
	w.AddSolid(Solid{Entity: 7, Min: common.V3(-10, -1, 0), Max: common.V3(10, 0, 0), Surface: "grass"})
	return w
}

func TestShapeCastSphere(t *testing.T) {
	w := floorWorld()

	hit, ok := w.ShapeCast(motion.CastQuery{
		Shape:     motion.ShapeSphere,
		Origin:    common.V3(0, 2, 0),
		Direction: common.V3(0, -3, 0),
		Distance:  5,
		Radius:    0.1,
	})
	require.True(t, ok)
	assert.InDelta(t, 0, hit.Point.Y, 1e-3)
	assert.InDelta(t, 1, hit.Normal.Y, 1e-3)
	assert.InDelta(t, 1.9, hit.Distance, 1e-3)
	assert.Equal(t, common.EntityRef(7), hit.Entity)
	assert.Equal(t, "grass", hit.Surface)
	assert.Equal(t, common.V3(0, -0.5, 0), hit.Transform.Position)

	_, ok = w.ShapeCast(motion.CastQuery{Origin: common.V3(0, 2, 0), Direction: common.V3(0, 1, 0), Distance: 5})
	assert.False(t, ok, "casting away from the floor")

	_, ok = w.ShapeCast(motion.CastQuery{Origin: common.V3(0, 2, 0), Direction: common.V3(0, -1, 0), Distance: 1})
	assert.False(t, ok, "floor out of range")

	_, ok = w.ShapeCast(motion.CastQuery{Origin: common.V3(0, 2, 0), Distance: 5})
	assert.False(t, ok, "zero direction")
}

func TestShapeCastLayers(t *testing.T) {
	w := NewWorld(20)
	w.AddSolid(Solid{Entity: 3, Min: common.V3(-1, -1, 0), Max: common.V3(1, 0, 0), Layers: 2})
	q := motion.CastQuery{Origin: common.V3(0, 1, 0), Direction: common.V3(0, -1, 0), Distance: 3, Radius: 0.1}

	q.Layers = 1
	_, ok := w.ShapeCast(q)
	assert.False(t, ok)

	q.Layers = 2
	hit, ok := w.ShapeCast(q)
	require.True(t, ok)
	assert.Equal(t, common.EntityRef(3), hit.Entity)

	q.Layers = 0
	_, ok = w.ShapeCast(q)
	assert.True(t, ok, "no layers means every layer")
}

func TestShapeCastCapsuleReachesLedge(t *testing.T) {
	w := NewWorld(20)
	w.AddSolid(Solid{Entity: 9, Min: common.V3(2, 1, 0), Max: common.V3(3, 2, 0)})
	q := motion.CastQuery{
		Shape:     motion.ShapeSphere,
		Origin:    common.V3(0, 0.5, 0),
		Direction: common.V3(1, 0, 0),
		Distance:  5,
		Radius:    0.1,
	}
	_, ok := w.ShapeCast(q)
	assert.False(t, ok, "sphere passes under the ledge")

	q.Shape = motion.ShapeCapsule
	q.Height = 2
	hit, ok := w.ShapeCast(q)
	require.True(t, ok)
	assert.Equal(t, common.EntityRef(9), hit.Entity)
	assert.InDelta(t, 1.9, hit.Distance, 1e-3)
	assert.InDelta(t, 2, hit.Point.X, 1e-3)
}

func TestBody(t *testing.T) {
	w := floorWorld()
	b := w.AddBody(common.V3(1, 0, 0), 1, 2)
	assert.Equal(t, common.V3(1, 0, 0), b.Position(), "position is the feet")

	width, height := b.Size()
	assert.InDelta(t, 1, width, 1e-9)
	assert.InDelta(t, 2, height, 1e-9)

	_, ok := w.ShapeCast(motion.CastQuery{
		Origin:    common.V3(1, 1, 0),
		Direction: common.V3(1, 0, 0),
		Distance:  0.4,
		Radius:    0.05,
	})
	assert.False(t, ok, "casts ignore agent bodies")

	b.ApplyImpulse(common.V3(2, 0, 0))
	assert.InDelta(t, 2, b.Velocity().X, 1e-9)
	b.SetVelocity(common.Vec3{})

	assert.False(t, b.Grounded())
	for i := 0; i < 10; i++ {
		w.Step(1.0 / 60)
	}
	assert.True(t, b.Grounded())
	assert.False(t, b.InWater())
}

func TestWater(t *testing.T) {
	w := floorWorld()
	w.AddWater(common.V3(-5, 0, 0), common.V3(5, 5, 0))
	b := w.AddBody(common.V3(0, 0, 0), 1, 2)

	w.Step(1.0 / 60)
	assert.True(t, b.InWater())
}
