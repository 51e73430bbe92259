package behaviours

import (
	"github.com/milk9111/motiongraph/common"
	"github.com/milk9111/motiongraph/motion"
)

// Animator writes a named value to the animation sink. OnEnter writes Enter,
// OnExit writes Exit, and Update mirrors the Mirror parameter when set.
type Animator struct {
	motion.Base

	Name   string
	Bool   bool
	Enter  float64
	Exit   float64
	Mirror motion.ParamID

	handle   motion.AnimHandle
	resolved motion.AnimationSink
}

func (a *Animator) lookup(sink motion.AnimationSink) (motion.AnimHandle, bool) {
	if sink == nil {
		return 0, false
	}
	if a.resolved != sink {
		h, ok := sink.Handle(a.Name)
		if !ok {
			return 0, false
		}
		a.handle, a.resolved = h, sink
	}
	return a.handle, true
}

func (a *Animator) write(sink motion.AnimationSink, v float64) {
	h, ok := a.lookup(sink)
	if !ok {
		return
	}
	if a.Bool {
		sink.SetBool(h, v != 0)
		return
	}
	sink.SetFloat(h, v)
}

func (a *Animator) OnEnter(ctx *motion.ActionContext) {
	a.write(ctx.Animation, a.Enter)
}

func (a *Animator) OnExit(ctx *motion.ActionContext) {
	a.write(ctx.Animation, a.Exit)
}

func (a *Animator) Update(ctx *motion.ActionContext, dt float64) {
	if a.Mirror != 0 {
		a.write(ctx.Animation, ctx.Params.Number(a.Mirror))
		return
	}
	a.write(ctx.Animation, a.Enter)
}

// Audio plays a clip on entry. With SurfaceProbe set a downward cast from the
// body picks a clip from Surfaces by the material tag of what it hits. Looping
// clips stop on exit, or when the state is entered again while one still
// plays. Volume and Pitch are used as given.
type Audio struct {
	motion.Base

	Clip         string
	Surfaces     map[string]string
	SurfaceProbe float64
	Volume       float64
	Pitch        float64
	Loop         bool

	playing motion.LoopID
}

func (a *Audio) clip(ctx *motion.ActionContext) string {
	if a.SurfaceProbe <= 0 || ctx.Physics == nil || len(a.Surfaces) == 0 {
		return a.Clip
	}
	var origin common.Vec3
	if ctx.Body != nil {
		origin = ctx.Body.Position()
	}
	hit, ok := ctx.Physics.ShapeCast(motion.CastQuery{
		Shape:     motion.ShapeSphere,
		Origin:    origin,
		Direction: common.V3(0, -1, 0),
		Distance:  a.SurfaceProbe,
		Radius:    0.05,
	})
	if !ok {
		return a.Clip
	}
	if c, ok := a.Surfaces[hit.Surface]; ok {
		return c
	}
	return a.Clip
}

func (a *Audio) OnEnter(ctx *motion.ActionContext) {
	if ctx.Audio == nil {
		return
	}
	clip := a.clip(ctx)
	if clip == "" {
		return
	}
	if a.playing != 0 {
		ctx.Audio.Stop(a.playing)
		a.playing = 0
	}
	id := ctx.Audio.Play(motion.AudioRequest{Clip: clip, Volume: a.Volume, Pitch: a.Pitch, Loop: a.Loop})
	if a.Loop {
		a.playing = id
	}
}

func (a *Audio) OnExit(ctx *motion.ActionContext) {
	if a.playing == 0 {
		return
	}
	if ctx.Audio != nil {
		ctx.Audio.Stop(a.playing)
	}
	a.playing = 0
}
