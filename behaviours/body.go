package behaviours

import (
	"github.com/milk9111/motiongraph/common"
	"github.com/milk9111/motiongraph/motion"
)

// Force applies an impulse to the agent body. The impulse is Impulse, or the
// Vector3 parameter Param when set, times Multiplier and the optional Scale
// parameter. In Update the impulse is spread over dt.
type Force struct {
	motion.Base

	Impulse    common.Vec3
	Param      motion.ParamID
	Scale      motion.ParamID
	Multiplier float64
}

func (f *Force) vector(p *motion.Store) common.Vec3 {
	v := f.Impulse
	if f.Param != 0 {
		v = p.Vector(f.Param)
	}
	m := f.Multiplier
	if m == 0 {
		m = 1
	}
	if f.Scale != 0 {
		m *= p.Number(f.Scale)
	}
	return v.Scale(m)
}

func (f *Force) OnEnter(ctx *motion.ActionContext) {
	if ctx.Body != nil {
		ctx.Body.ApplyImpulse(f.vector(ctx.Params))
	}
}

func (f *Force) OnExit(ctx *motion.ActionContext) {
	f.OnEnter(ctx)
}

func (f *Force) Update(ctx *motion.ActionContext, dt float64) {
	if ctx.Body != nil {
		ctx.Body.ApplyImpulse(f.vector(ctx.Params).Scale(dt))
	}
}

// Drain moves a Float parameter by Rate per second, then optionally decays it
// toward DecayTarget at Decay per second, and clamps it to [Min, Max] when
// Max > Min.
type Drain struct {
	motion.Base

	Param       motion.ParamID
	Rate        float64
	Min         float64
	Max         float64
	Decay       float64
	DecayTarget float64
}

func (d *Drain) Update(ctx *motion.ActionContext, dt float64) {
	v := ctx.Params.Float(d.Param) - d.Rate*dt
	if d.Decay > 0 {
		v = common.MoveTowards(v, d.DecayTarget, d.Decay*dt)
	}
	if d.Max > d.Min {
		v = common.Clamp(v, d.Min, d.Max)
	}
	ctx.Params.SetFloat(d.Param, v)
}

// TimeScale sets the host time scale on entry and restores the previous
// scale on exit. With Decay set the scale eases toward Target while active.
type TimeScale struct {
	motion.Base

	Scale  float64
	Target float64
	Decay  float64

	saved  float64
	active bool
}

func (t *TimeScale) OnEnter(ctx *motion.ActionContext) {
	if ctx.Time == nil {
		return
	}
	if !t.active {
		t.saved = ctx.Time.TimeScale()
		t.active = true
	}
	ctx.Time.SetTimeScale(t.Scale)
}

func (t *TimeScale) Update(ctx *motion.ActionContext, dt float64) {
	if ctx.Time == nil || t.Decay <= 0 {
		return
	}
	ctx.Time.SetTimeScale(common.MoveTowards(ctx.Time.TimeScale(), t.Target, t.Decay*dt))
}

func (t *TimeScale) OnExit(ctx *motion.ActionContext) {
	if ctx.Time == nil || !t.active {
		return
	}
	ctx.Time.SetTimeScale(t.saved)
	t.active = false
}
