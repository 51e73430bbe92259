package obj

import (
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"github.com/milk9111/motiongraph/common"
	"github.com/milk9111/motiongraph/motion"
)

// Input holds the current frame's controls.
type Input struct {
	// MoveX is -1 for left, 0 for none, +1 for right.
	MoveX float64
	// MoveY is -1 for down, +1 for up, used while swimming.
	MoveY float64
	// JumpPressed is true on the frame the jump key is pressed.
	JumpPressed bool
	// DashPressed is true on the frame the dash key/button was pressed.
	DashPressed bool
	CrouchHeld  bool
	GrabPressed bool

	PausePressed     bool
	DebugPressed     bool
	QuickSavePressed bool
	QuickLoadPressed bool
}

func NewInput() *Input {
	return &Input{}
}

// Update polls the keyboard and the first gamepad.
func (i *Input) Update() {
	var moveX, moveY float64
	if ebiten.IsKeyPressed(ebiten.KeyA) || ebiten.IsKeyPressed(ebiten.KeyLeft) {
		moveX -= 1
	}
	if ebiten.IsKeyPressed(ebiten.KeyD) || ebiten.IsKeyPressed(ebiten.KeyRight) {
		moveX += 1
	}
	if ebiten.IsKeyPressed(ebiten.KeyW) || ebiten.IsKeyPressed(ebiten.KeyUp) {
		moveY += 1
	}
	if ebiten.IsKeyPressed(ebiten.KeyS) || ebiten.IsKeyPressed(ebiten.KeyDown) {
		moveY -= 1
	}

	var gpJump, gpDash, gpCrouch, gpGrab bool
	if ids := ebiten.GamepadIDs(); len(ids) > 0 {
		gid := ids[0]
		leftX := ebiten.StandardGamepadAxisValue(gid, ebiten.StandardGamepadAxisLeftStickHorizontal)
		if leftX < -0.3 || leftX > 0.3 {
			moveX = leftX
		}
		// stick Y is down-positive
		leftY := ebiten.StandardGamepadAxisValue(gid, ebiten.StandardGamepadAxisLeftStickVertical)
		if leftY < -0.3 || leftY > 0.3 {
			moveY = -leftY
		}
		gpJump = inpututil.IsStandardGamepadButtonJustPressed(gid, ebiten.StandardGamepadButtonRightBottom)
		gpDash = inpututil.IsStandardGamepadButtonJustPressed(gid, ebiten.StandardGamepadButtonRightLeft)
		gpCrouch = ebiten.IsStandardGamepadButtonPressed(gid, ebiten.StandardGamepadButtonRightRight)
		gpGrab = inpututil.IsStandardGamepadButtonJustPressed(gid, ebiten.StandardGamepadButtonRightTop)
	}

	i.MoveX = moveX
	i.MoveY = moveY
	i.JumpPressed = inpututil.IsKeyJustPressed(ebiten.KeySpace) || gpJump
	i.DashPressed = inpututil.IsKeyJustPressed(ebiten.KeyShiftLeft) || gpDash
	i.CrouchHeld = ebiten.IsKeyPressed(ebiten.KeyControlLeft) || ebiten.IsKeyPressed(ebiten.KeyC) || gpCrouch
	i.GrabPressed = inpututil.IsKeyJustPressed(ebiten.KeyE) || gpGrab

	i.PausePressed = inpututil.IsKeyJustPressed(ebiten.KeyEscape)
	i.DebugPressed = inpututil.IsKeyJustPressed(ebiten.KeyF3)
	i.QuickSavePressed = inpututil.IsKeyJustPressed(ebiten.KeyF5)
	i.QuickLoadPressed = inpututil.IsKeyJustPressed(ebiten.KeyF9)
}

// Apply writes the controls into the graph parameters of the same names.
// Parameters the graph does not declare are skipped.
func (i *Input) Apply(store *motion.Store) {
	if id, ok := store.ID("move_x"); ok {
		store.SetFloat(id, i.MoveX)
	}
	if id, ok := store.ID("swim_dir"); ok {
		store.SetVector(id, common.V3(i.MoveX, i.MoveY, 0).ClampLen(1))
	}
	if id, ok := store.ID("crouch"); ok {
		store.SetBool(id, i.CrouchHeld)
	}
	fire := func(name string, pressed bool) {
		if !pressed {
			return
		}
		if id, ok := store.ID(name); ok {
			store.Fire(id)
		}
	}
	fire("jump", i.JumpPressed)
	fire("dash", i.DashPressed)
	fire("use", i.GrabPressed)
}
