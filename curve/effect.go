package curve

import "github.com/milk9111/motiongraph/common"

// Mode selects how an Effect maps curve output to a value.
type Mode int

const (
	// Tween moves from From to To along the curve.
	Tween Mode = iota
	// Pulse moves linearly from From to To and adds Amplitude*curve on top.
	// Pulse curves are expected to start and end at 0.
	Pulse
)

// Effect is a multi-tick curve-driven value. It never blocks: Step advances
// it by dt and the caller applies Value wherever it needs to.
type Effect struct {
	Mode      Mode    `json:"mode"`
	Duration  float64 `json:"duration"`
	Amplitude float64 `json:"amplitude,omitempty"`
	From      float64 `json:"from"`
	To        float64 `json:"to"`
	Elapsed   float64 `json:"elapsed"`
	Running   bool    `json:"running"`
	Current   float64 `json:"current"`

	curve *Curve
}

// NewEffect returns an idle effect resting at rest.
func NewEffect(c *Curve, mode Mode, duration float64, rest float64) *Effect {
	if c == nil {
		c = Linear()
	}
	return &Effect{
		Mode:     mode,
		Duration: duration,
		From:     rest,
		To:       rest,
		Current:  rest,
		curve:    c,
	}
}

// SetCurve swaps the curve, e.g. after restoring from a snapshot.
func (e *Effect) SetCurve(c *Curve) {
	if c == nil {
		c = Linear()
	}
	e.curve = c
}

// Retarget restarts the effect toward to, capturing the current value as the
// new from endpoint so there is no discontinuity.
func (e *Effect) Retarget(to float64) {
	e.From = e.Current
	e.To = to
	e.Elapsed = 0
	e.Running = true
	if e.Duration <= 0 {
		e.finish()
	}
}

// Jump places the effect at value v without animating.
func (e *Effect) Jump(v float64) {
	e.From = v
	e.To = v
	e.Current = v
	e.Elapsed = 0
	e.Running = false
}

// Progress is the elapsed ratio in [0, 1].
func (e *Effect) Progress() float64 {
	if e.Duration <= 0 {
		if e.Running {
			return 0
		}
		return 1
	}
	return common.Clamp01(e.Elapsed / e.Duration)
}

func (e *Effect) Value() float64 {
	return e.Current
}

// Step advances the effect and returns the new value.
func (e *Effect) Step(dt float64) float64 {
	if !e.Running {
		return e.Current
	}
	e.Elapsed += dt
	if e.Elapsed >= e.Duration {
		e.finish()
		return e.Current
	}
	e.Current = e.sample(e.Progress())
	return e.Current
}

func (e *Effect) finish() {
	e.Elapsed = e.Duration
	e.Running = false
	e.Current = e.sample(1)
}

func (e *Effect) sample(ratio float64) float64 {
	switch e.Mode {
	case Pulse:
		return common.Lerp(e.From, e.To, ratio) + e.Amplitude*e.curve.Evaluate(ratio)
	default:
		return common.Lerp(e.From, e.To, e.curve.Evaluate(ratio))
	}
}
