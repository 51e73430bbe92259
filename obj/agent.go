package obj

import (
	"image/color"
	"math"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"golang.org/x/image/colornames"

	"github.com/milk9111/motiongraph/common"
	"github.com/milk9111/motiongraph/motion"
	"github.com/milk9111/motiongraph/physics"
)

const (
	// horizontal speed limit in m/s; graphs push the body with impulses
	maxRunSpeed = 8.0
	// much stronger braking when no input
	brakeFactor = 0.2
)

// Agent is the playable body driven by a motion graph instance.
type Agent struct {
	Body     *physics.Body
	Instance *motion.Instance
	Layers   *Layers

	facing float64
}

func NewAgent(body *physics.Body, in *motion.Instance, layers *Layers) *Agent {
	return &Agent{Body: body, Instance: in, Layers: layers, facing: 1}
}

// Update runs after the graph tick: it brakes the body when there is no
// horizontal input and caps its run speed.
func (a *Agent) Update(input *Input) {
	v := a.Body.Velocity()
	if input.MoveX == 0 && a.Body.Grounded() {
		v.X -= v.X * brakeFactor
	}
	v.X = common.Clamp(v.X, -maxRunSpeed, maxRunSpeed)
	a.Body.SetVelocity(v)

	if input.MoveX < 0 {
		a.facing = -1
	} else if input.MoveX > 0 {
		a.facing = 1
	}
}

func (a *Agent) squash() float64 {
	store := a.Instance.Params()
	if id, ok := store.ID("squash"); ok {
		if s := store.Float(id); s > 0 {
			return s
		}
	}
	return 1
}

func (a *Agent) color() color.RGBA {
	switch {
	case a.Layers.On("swim"):
		return colornames.Deepskyblue
	case a.Layers.On("climb"):
		return colornames.Violet
	case a.Layers.On("airborne"):
		return colornames.Orange
	}
	return colornames.Tomato
}

// Draw renders the body as a box squashed by the squash parameter, with a
// tick on the facing side scaled by the locomotion layer.
func (a *Agent) Draw(screen *ebiten.Image, cam *Camera) {
	w, h := a.Body.Size()
	s := a.squash()
	// keep volume roughly constant
	drawW, drawH := w/math.Sqrt(s), h*s
	feet := a.Body.Position()

	x, y := cam.ToScreen(feet.X-drawW/2, feet.Y+drawH)
	vector.FillRect(screen, float32(x), float32(y), float32(drawW*cam.Zoom()), float32(drawH*cam.Zoom()), a.color(), false)

	lean := math.Abs(a.Layers.Value("locomotion"))
	ex, ey := cam.ToScreen(feet.X+a.facing*(drawW/2+0.2+0.3*lean), feet.Y+drawH*0.7)
	cx, cy := cam.ToScreen(feet.X, feet.Y+drawH*0.7)
	vector.StrokeLine(screen, float32(cx), float32(cy), float32(ex), float32(ey), 2, colornames.White, true)
}
