package behaviours

import (
	"encoding/json"

	"github.com/milk9111/motiongraph/curve"
	"github.com/milk9111/motiongraph/motion"
)

// Spring drives a Float parameter and/or an animator value along a curve.
// Entering the state retargets the effect to To (or the current value of
// ToParam) starting from wherever the value is now, so re-entering mid-flight
// never jumps. Pulse mode behaves the same but adds Amplitude*curve on top of
// the linear path, e.g. a landing squash.
type Spring struct {
	motion.Base

	Effect  *curve.Effect
	To      float64
	ToParam motion.ParamID
	Param   motion.ParamID
	Anim    *Animator
}

// NewSpring returns a tween toward to resting at rest.
func NewSpring(c *curve.Curve, duration, rest, to float64) *Spring {
	return &Spring{Effect: curve.NewEffect(c, curve.Tween, duration, rest), To: to}
}

// NewPulse returns a pulse of the given amplitude around rest.
func NewPulse(c *curve.Curve, duration, rest, amplitude float64) *Spring {
	e := curve.NewEffect(c, curve.Pulse, duration, rest)
	e.Amplitude = amplitude
	return &Spring{Effect: e, To: rest}
}

func (s *Spring) OnEnter(ctx *motion.ActionContext) {
	to := s.To
	if s.ToParam != 0 {
		to = ctx.Params.Number(s.ToParam)
	}
	s.Effect.Retarget(to)
	s.publish(ctx, s.Effect.Value())
}

func (s *Spring) Update(ctx *motion.ActionContext, dt float64) {
	s.publish(ctx, s.Effect.Step(dt))
}

func (s *Spring) publish(ctx *motion.ActionContext, v float64) {
	if s.Param != 0 {
		ctx.Params.SetFloat(s.Param, v)
	}
	if s.Anim != nil {
		s.Anim.write(ctx.Animation, v)
	}
}

func (s *Spring) MarshalState() (json.RawMessage, error) {
	return json.Marshal(s.Effect)
}

func (s *Spring) UnmarshalState(data json.RawMessage) error {
	return json.Unmarshal(data, s.Effect)
}

// Timer sets Param after Duration seconds in the state: a Trigger or Event is
// fired and a Switch is turned on. With Repeat it keeps firing every
// Duration.
type Timer struct {
	motion.Base

	Duration float64        `json:"-"`
	Param    motion.ParamID `json:"-"`
	Repeat   bool           `json:"-"`

	Elapsed float64 `json:"elapsed"`
	Done    bool    `json:"done"`
}

func (t *Timer) Reset() {
	t.Elapsed = 0
	t.Done = false
}

func (t *Timer) Update(ctx *motion.ActionContext, dt float64) {
	if t.Done {
		return
	}
	t.Elapsed += dt
	if t.Elapsed < t.Duration {
		return
	}
	ctx.Params.SetBool(t.Param, true)
	if t.Repeat && t.Duration > 0 {
		for t.Elapsed >= t.Duration {
			t.Elapsed -= t.Duration
		}
		return
	}
	t.Done = true
}

func (t *Timer) MarshalState() (json.RawMessage, error) {
	return json.Marshal(t)
}

func (t *Timer) UnmarshalState(data json.RawMessage) error {
	return json.Unmarshal(data, t)
}
