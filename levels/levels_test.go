package levels

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/milk9111/motiongraph/common"
	"github.com/milk9111/motiongraph/motion"
	"github.com/milk9111/motiongraph/physics"
)

func TestPlayground(t *testing.T) {
	lvl, err := LoadLevelFromFS("playground.json")
	require.NoError(t, err)
	assert.Equal(t, common.V3(3.5, 2, 0), lvl.Spawn())
	assert.Equal(t, common.V3(28, 12, 0), lvl.Bounds())

	w := physics.NewWorld(20)
	lvl.Build(w)
	assert.Len(t, w.Solids(), 24, "tile runs merge into boxes")

	hit, ok := w.ShapeCast(motion.CastQuery{
		Origin:    lvl.Spawn().Add(common.V3(0, 1, 0)),
		Direction: common.V3(0, -1, 0),
		Distance:  3,
		Radius:    0.1,
	})
	require.True(t, ok)
	assert.InDelta(t, 2, hit.Point.Y, 1e-3)
	assert.Equal(t, "stone", hit.Surface)

	b := w.AddBody(common.V3(20, 1, 0), 0.8, 1.8)
	w.Step(1.0 / 60)
	assert.True(t, b.InWater())
}

func TestParseErrors(t *testing.T) {
	for name, src := range map[string]string{
		"not json":    `{`,
		"no size":     `{"width": 0, "height": 2}`,
		"short layer": `{"width": 2, "height": 2, "layers": [[1, 1, 1]]}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := parse([]byte(src))
			assert.Error(t, err)
		})
	}
}

func TestLoadLevelFallsBackToEmbedded(t *testing.T) {
	lvl, err := LoadLevel("playground.json")
	require.NoError(t, err)
	assert.Equal(t, 28, lvl.Width)
	assert.Equal(t, 1.0, lvl.TileSize)
}
