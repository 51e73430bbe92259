package obj

import "github.com/milk9111/motiongraph/motion"

// Clock is the playground's time scale. Graphs slow it for hit stop and
// slow motion effects; the game scales its fixed step by it.
type Clock struct {
	scale float64
}

var _ motion.TimeScaler = (*Clock)(nil)

func NewClock() *Clock {
	return &Clock{scale: 1}
}

func (c *Clock) TimeScale() float64 { return c.scale }

func (c *Clock) SetTimeScale(scale float64) {
	if scale < 0 {
		scale = 0
	}
	c.scale = scale
}

// Scaled returns dt scaled by the current time scale.
func (c *Clock) Scaled(dt float64) float64 {
	return dt * c.scale
}
