package obj

import (
	"math"

	"github.com/milk9111/motiongraph/common"
)

// Camera maps world metres (+Y up) to screen pixels (+Y down), following a
// target with smoothing.
type Camera struct {
	// PosX, PosY are the world point at the centre of the view.
	PosX float64
	PosY float64

	screenW int
	screenH int
	// pixels per metre
	zoom float64

	// smoothing factor (0..1). higher -> faster follow. e.g. 0.15
	smooth float64
	// world bounds in metres (0 means unbounded)
	worldW float64
	worldH float64
}

func NewCamera(screenW, screenH int, zoom float64) *Camera {
	return &Camera{screenW: screenW, screenH: screenH, zoom: zoom, smooth: 0.15}
}

func (c *Camera) Zoom() float64 {
	return c.zoom
}

// SetWorldBounds sets the world size used for clamping the view.
func (c *Camera) SetWorldBounds(size common.Vec3) {
	c.worldW = size.X
	c.worldH = size.Y
}

// Update moves the camera toward target. Call from the fixed-rate Update
// loop to get consistent smoothing.
func (c *Camera) Update(target common.Vec3) {
	if c.smooth <= 0 {
		c.PosX, c.PosY = target.X, target.Y
	} else {
		c.PosX += (target.X - c.PosX) * c.smooth
		c.PosY += (target.Y - c.PosY) * c.smooth
	}
	c.clamp()
}

// SnapTo centres the view on target immediately.
func (c *Camera) SnapTo(target common.Vec3) {
	c.PosX, c.PosY = target.X, target.Y
	c.clamp()
}

func (c *Camera) clamp() {
	// snap to the pixel grid so tiles do not shimmer
	c.PosX = math.Round(c.PosX*c.zoom) / c.zoom
	c.PosY = math.Round(c.PosY*c.zoom) / c.zoom

	halfW := float64(c.screenW) / c.zoom / 2
	halfH := float64(c.screenH) / c.zoom / 2
	if c.worldW > 0 {
		if c.worldW < 2*halfW {
			c.PosX = c.worldW / 2
		} else {
			c.PosX = common.Clamp(c.PosX, halfW, c.worldW-halfW)
		}
	}
	if c.worldH > 0 {
		if c.worldH < 2*halfH {
			c.PosY = c.worldH / 2
		} else {
			c.PosY = common.Clamp(c.PosY, halfH, c.worldH-halfH)
		}
	}
}

// ToScreen converts a world point to screen pixels.
func (c *Camera) ToScreen(x, y float64) (float64, float64) {
	sx := (x-c.PosX)*c.zoom + float64(c.screenW)/2
	sy := (c.PosY-y)*c.zoom + float64(c.screenH)/2
	return sx, sy
}
