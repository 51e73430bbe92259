package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/milk9111/motiongraph/common"
	"github.com/milk9111/motiongraph/graphs"
	"github.com/milk9111/motiongraph/motion"
)

const jumpTimeline = `
graph: locomotion
dt: 0.016666666666666666
steps:
  - ticks: 1
  - fire: [jump]
  - ticks: 60
`

func runner(t *testing.T) *Runner {
	t.Helper()
	def, err := graphs.Load("", "locomotion")
	require.NoError(t, err)
	r, err := NewRunner(def, motion.Services{}, motion.Options{Logger: zaptest.NewLogger(t)})
	require.NoError(t, err)
	return r
}

func TestRunJump(t *testing.T) {
	tl, err := ParseTimeline([]byte(jumpTimeline))
	require.NoError(t, err)
	assert.Equal(t, "locomotion", tl.Graph)

	r := runner(t)
	res, err := r.Run(tl)
	require.NoError(t, err)

	var trace []motion.StateID
	for _, tr := range res.Transitions {
		if tr.Depth == 0 {
			trace = append(trace, tr.To)
		}
	}
	assert.Equal(t, []motion.StateID{"idle", "jump", "fall", "land", "idle"}, trace)
	assert.Equal(t, []motion.StateID{"idle"}, res.Final)
	assert.Equal(t, uint64(62), res.Ticks)
	assert.Equal(t, "false", res.Params["jump"], "the trigger was consumed")
	require.NotEmpty(t, r.Body.Impulses)
	assert.Equal(t, common.V3(0, 9, 0), r.Body.Impulses[0])
}

func TestRunSetsBodyAndParams(t *testing.T) {
	tl, err := ParseTimeline([]byte(`
steps:
  - body: {water: true, grounded: false}
    set:
      swim_dir: [1, 0, 0]
    ticks: 2
`))
	require.NoError(t, err)
	assert.InDelta(t, 1.0/60, tl.DT, 1e-12, "dt defaults to 60Hz")

	r := runner(t)
	res, err := r.Run(tl)
	require.NoError(t, err)
	assert.Equal(t, []motion.StateID{"swim", "stroke"}, res.Final)
	assert.Equal(t, "(1, 0, 0)", res.Params["swim_dir"])
}

func TestRunErrors(t *testing.T) {
	for name, src := range map[string]string{
		"unknown set":  "steps: [{set: {nope: 1}}]",
		"unknown fire": "steps: [{fire: [nope]}]",
		"bad value":    "steps: [{set: {crouch: {a: 1}}}]",
		"bad force":    "steps: [{force: nowhere}]",
	} {
		t.Run(name, func(t *testing.T) {
			tl, err := ParseTimeline([]byte(src))
			require.NoError(t, err)
			_, err = runner(t).Run(tl)
			assert.Error(t, err)
		})
	}
}

func TestParseTimelineRejectsGarbage(t *testing.T) {
	_, err := ParseTimeline([]byte("steps: {"))
	assert.Error(t, err)
}
