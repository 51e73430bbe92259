package curve

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEffectTweenCompletes(t *testing.T) {
	e := NewEffect(Linear(), Tween, 1, 0)
	e.Retarget(10)

	assert.True(t, e.Running)
	assert.InDelta(t, 2.5, e.Step(0.25), 1e-9)
	assert.InDelta(t, 5, e.Step(0.25), 1e-9)
	assert.InDelta(t, 10, e.Step(1), 1e-9)
	assert.False(t, e.Running)
	assert.Equal(t, 1.0, e.Progress())
}

func TestEffectRetargetCapturesInFlightValue(t *testing.T) {
	e := NewEffect(Linear(), Tween, 1, 0)
	e.Retarget(10)
	e.Step(0.4)
	inFlight := e.Value()
	assert.InDelta(t, 4, inFlight, 1e-9)

	e.Retarget(10)
	assert.Equal(t, inFlight, e.From, "restart must start from the in-flight value")
	assert.Equal(t, 0.0, e.Progress())
	assert.InDelta(t, inFlight, e.Value(), 1e-9, "no snap on restart")

	e.Step(0.5)
	assert.InDelta(t, 7, e.Value(), 1e-9)
}

func TestEffectPulseReturnsToRest(t *testing.T) {
	c, _ := Preset("bump")
	e := NewEffect(c, Pulse, 1, 1)
	e.Amplitude = 2
	e.Retarget(1)

	assert.InDelta(t, 3, e.Step(0.5), 1e-9)
	assert.InDelta(t, 1, e.Step(0.5), 1e-9)
	assert.False(t, e.Running)
}

func TestEffectZeroDurationSnaps(t *testing.T) {
	e := NewEffect(nil, Tween, 0, 0)
	e.Retarget(3)
	assert.False(t, e.Running)
	assert.Equal(t, 3.0, e.Value())
}
