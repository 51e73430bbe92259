package obj

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/milk9111/motiongraph/common"
	"github.com/milk9111/motiongraph/motion"
)

func TestInputApply(t *testing.T) {
	store, err := motion.NewStore([]motion.ParamDef{
		{ID: 1, Name: "move_x", Type: motion.ParamFloat},
		{ID: 2, Name: "jump", Type: motion.ParamTrigger},
		{ID: 3, Name: "crouch", Type: motion.ParamBool},
		{ID: 4, Name: "swim_dir", Type: motion.ParamVector},
	}, nil)
	require.NoError(t, err)

	in := &Input{MoveX: 1, MoveY: 1, JumpPressed: true, CrouchHeld: true, DashPressed: true}
	in.Apply(store)
	assert.Equal(t, 1.0, store.Float(1))
	assert.True(t, store.Bool(3))
	assert.InDelta(t, 1, store.Vector(4).Len(), 1e-9, "diagonal input is clamped")
	assert.True(t, store.Consume(2))

	in = &Input{}
	in.Apply(store)
	assert.Zero(t, store.Float(1))
	assert.False(t, store.Bool(3))
	assert.False(t, store.Consume(2), "jump only fires on press")
}

func TestLayers(t *testing.T) {
	l := NewLayers()
	h, ok := l.Handle("swim")
	require.True(t, ok)
	again, _ := l.Handle("swim")
	assert.Equal(t, h, again)

	l.SetBool(h, true)
	assert.True(t, l.On("swim"))
	other, _ := l.Handle("locomotion")
	l.SetFloat(other, -0.5)
	assert.Equal(t, -0.5, l.Value("locomotion"))
	assert.Zero(t, l.Value("missing"))
	assert.Equal(t, []string{"locomotion", "swim"}, l.Names())
}

func TestClock(t *testing.T) {
	c := NewClock()
	assert.Equal(t, 1.0, c.TimeScale())
	c.SetTimeScale(0.5)
	assert.Equal(t, 0.25, c.Scaled(0.5))
	c.SetTimeScale(-1)
	assert.Zero(t, c.TimeScale())
}

func TestCamera(t *testing.T) {
	cam := NewCamera(640, 320, 32)
	cam.SetWorldBounds(common.V3(40, 20, 0))
	cam.SnapTo(common.V3(20, 10, 0))

	x, y := cam.ToScreen(20, 10)
	assert.Equal(t, 320.0, x)
	assert.Equal(t, 160.0, y)
	x, y = cam.ToScreen(21, 11)
	assert.Equal(t, 352.0, x)
	assert.Equal(t, 128.0, y, "up in the world is up on screen")

	cam.SnapTo(common.V3(0, 0, 0))
	assert.Equal(t, 10.0, cam.PosX, "clamped to half a view from the edge")
	assert.Equal(t, 5.0, cam.PosY)

	cam.Update(common.V3(20, 5, 0))
	assert.Greater(t, cam.PosX, 10.0)
	assert.Less(t, cam.PosX, 20.0)
}
