package motion

import "github.com/milk9111/motiongraph/common"

type ShapeKind int

const (
	ShapeSphere ShapeKind = iota
	ShapeCapsule
)

// CastQuery describes a swept shape. Direction need not be normalized;
// Distance is the sweep length along it.
type CastQuery struct {
	Shape     ShapeKind
	Origin    common.Vec3
	Direction common.Vec3
	Distance  float64
	Radius    float64
	// Height is the capsule's segment length between its sphere centers.
	Height float64
	Layers uint32
}

type CastHit struct {
	Point     common.Vec3
	Normal    common.Vec3
	Distance  float64
	Entity    common.EntityRef
	Transform common.Transform
	// Surface is a host-defined material tag, used by surface-dependent audio.
	Surface string
}

// PhysicsQuery is the host's synchronous, side-effect free cast service.
type PhysicsQuery interface {
	ShapeCast(q CastQuery) (CastHit, bool)
}

type AnimHandle int

// AnimationSink receives named animation layer values.
type AnimationSink interface {
	Handle(name string) (AnimHandle, bool)
	SetFloat(h AnimHandle, v float64)
	SetBool(h AnimHandle, v bool)
}

type AudioRequest struct {
	Clip   string
	Volume float64
	Pitch  float64
	Loop   bool
}

// LoopID identifies a looping playback. Zero means none.
type LoopID int

// AudioSink is fire-and-forget playback.
type AudioSink interface {
	Play(req AudioRequest) LoopID
	Stop(id LoopID)
}

// Body is the agent's physical presence in the host simulation.
type Body interface {
	Position() common.Vec3
	Velocity() common.Vec3
	ApplyImpulse(impulse common.Vec3)
	Grounded() bool
	InWater() bool
}

type TimeScaler interface {
	TimeScale() float64
	SetTimeScale(scale float64)
}

// Operations exposes multi-tick work owned by other modules (reloads,
// interactions) as pollable completion flags.
type Operations interface {
	Completed(name string) bool
}

// Services are the external collaborators injected into an instance. Any of
// them may be nil; plug-ins fall back to a safe default.
type Services struct {
	Physics    PhysicsQuery
	Animation  AnimationSink
	Audio      AudioSink
	Body       Body
	Time       TimeScaler
	Operations Operations
}
