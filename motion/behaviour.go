package motion

import (
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
)

// Behaviour is an action bound to a state's lifecycle. Which hooks run is
// decided by the Lifecycle it is attached with. Hooks must not block: effects
// spanning several ticks keep their own progress and advance in Update.
type Behaviour interface {
	OnEnter(ctx *ActionContext)
	OnExit(ctx *ActionContext)
	Update(ctx *ActionContext, dt float64)
}

// Persister is implemented by behaviours whose runtime state survives a
// save/load when they are attached as persistent.
type Persister interface {
	MarshalState() (json.RawMessage, error)
	UnmarshalState(data json.RawMessage) error
}

// Phase tells a hook which transition step invoked it.
type Phase int

const (
	PhaseEnter Phase = iota
	PhaseUpdate
	PhaseExit
)

// ActionContext is passed to every behaviour hook.
type ActionContext struct {
	Services

	Params     *Store
	Logger     *zap.Logger
	State      StateID
	StateTime  float64
	StateTicks int
	Tick       uint64
	Phase      Phase
}

// Base is embedded by behaviours that implement only some hooks.
type Base struct{}

func (Base) OnEnter(*ActionContext)         {}
func (Base) OnExit(*ActionContext)          {}
func (Base) Update(*ActionContext, float64) {}

// Binding attaches a behaviour to a state.
type Binding struct {
	Behaviour  Behaviour
	When       Lifecycle
	Persistent bool
	// Name is an optional label used in logs.
	Name string
}

func safeHook(ctx *ActionContext, b *Binding, fn func()) {
	defer func() {
		if r := recover(); r != nil && ctx != nil && ctx.Logger != nil {
			ctx.Logger.Error("behaviour panicked",
				zap.String("state", string(ctx.State)),
				zap.String("behaviour", bindingName(b)),
				zap.Int("phase", int(ctx.Phase)),
				zap.Any("panic", r))
		}
	}()
	fn()
}

func bindingName(b *Binding) string {
	if b.Name != "" {
		return b.Name
	}
	return fmt.Sprintf("%T", b.Behaviour)
}
