// Package motion is the motion graph runtime: a typed parameter store, pluggable
// conditions and behaviours, condition-gated connections between states and
// the fixed-step tick loop that drives one agent's active state.
package motion

import (
	"errors"
	"fmt"
	"strings"

	"github.com/milk9111/motiongraph/common"
)

var (
	ErrUnknownState   = errors.New("motion: unknown state")
	ErrDuplicateState = errors.New("motion: duplicate state")
	ErrDuplicateGroup = errors.New("motion: duplicate condition group")
	ErrDuplicateParam = errors.New("motion: duplicate parameter")
	ErrNoInitialState = errors.New("motion: missing initial state")
	ErrNilPlugin      = errors.New("motion: nil condition or behaviour")
)

// ParamID is the stable, authored identity of a parameter. It must survive
// graph edits so saved games keep loading.
type ParamID int

// StateID names a state within one graph.
type StateID string

// GroupID identifies a condition group. Unique across a graph and its
// sub-graphs.
type GroupID string

type ParamType int

const (
	ParamFloat ParamType = iota + 1
	ParamInt
	ParamBool
	ParamVector
	ParamEntity
	ParamTrigger
	ParamEvent
)

// ParamSwitch is the authoring name for a held boolean.
const ParamSwitch = ParamBool

var paramTypeNames = map[ParamType]string{
	ParamFloat:   "float",
	ParamInt:     "int",
	ParamBool:    "bool",
	ParamVector:  "vector3",
	ParamEntity:  "entity",
	ParamTrigger: "trigger",
	ParamEvent:   "event",
}

var paramTypeAliases = map[string]ParamType{
	"float":     ParamFloat,
	"int":       ParamInt,
	"integer":   ParamInt,
	"bool":      ParamBool,
	"switch":    ParamBool,
	"vector":    ParamVector,
	"vector3":   ParamVector,
	"vec3":      ParamVector,
	"entity":    ParamEntity,
	"entityref": ParamEntity,
	"transform": ParamEntity,
	"trigger":   ParamTrigger,
	"event":     ParamEvent,
}

func (t ParamType) String() string {
	if s, ok := paramTypeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("ParamType(%d)", int(t))
}

// ParseParamType accepts the authoring names and their aliases.
func ParseParamType(s string) (ParamType, error) {
	t, ok := paramTypeAliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return 0, fmt.Errorf("motion: unknown parameter type %q", s)
	}
	return t, nil
}

func (t ParamType) MarshalText() ([]byte, error) {
	if _, ok := paramTypeNames[t]; !ok {
		return nil, fmt.Errorf("motion: invalid parameter type %d", int(t))
	}
	return []byte(t.String()), nil
}

func (t *ParamType) UnmarshalText(b []byte) error {
	v, err := ParseParamType(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// Pulse reports whether the type is fire-and-consume.
func (t ParamType) Pulse() bool {
	return t == ParamTrigger || t == ParamEvent
}

// Value is a tagged parameter value. Only the field matching Type is used;
// Trigger and Event store their armed flag in Bool.
type Value struct {
	Type   ParamType        `json:"type"`
	Float  float64          `json:"float,omitempty"`
	Int    int              `json:"int,omitempty"`
	Bool   bool             `json:"bool,omitempty"`
	Vector common.Vec3      `json:"vector,omitempty"`
	Entity common.EntityRef `json:"entity,omitempty"`
}

func FloatValue(v float64) Value           { return Value{Type: ParamFloat, Float: v} }
func IntValue(v int) Value                 { return Value{Type: ParamInt, Int: v} }
func BoolValue(v bool) Value               { return Value{Type: ParamBool, Bool: v} }
func VectorValue(v common.Vec3) Value      { return Value{Type: ParamVector, Vector: v} }
func EntityValue(v common.EntityRef) Value { return Value{Type: ParamEntity, Entity: v} }

// Number returns the value as a float for numeric comparisons. Bools map to
// 0/1 and vectors to their length.
func (v Value) Number() float64 {
	switch v.Type {
	case ParamFloat:
		return v.Float
	case ParamInt:
		return float64(v.Int)
	case ParamBool, ParamTrigger, ParamEvent:
		if v.Bool {
			return 1
		}
		return 0
	case ParamVector:
		return v.Vector.Len()
	case ParamEntity:
		return float64(v.Entity)
	}
	return 0
}

func (v Value) String() string {
	switch v.Type {
	case ParamFloat:
		return fmt.Sprintf("%g", v.Float)
	case ParamInt:
		return fmt.Sprintf("%d", v.Int)
	case ParamBool, ParamTrigger, ParamEvent:
		return fmt.Sprintf("%t", v.Bool)
	case ParamVector:
		return fmt.Sprintf("(%g, %g, %g)", v.Vector.X, v.Vector.Y, v.Vector.Z)
	case ParamEntity:
		return fmt.Sprintf("entity#%d", v.Entity)
	}
	return "<invalid>"
}

// ParamDef is the authoring-time definition of a parameter.
type ParamDef struct {
	ID      ParamID
	Name    string
	Type    ParamType
	Default Value
}

// Lifecycle selects which hooks of a behaviour are invoked. Flags combine.
type Lifecycle uint8

const (
	OnEnter Lifecycle = 1 << iota
	OnExit
	Continuous

	OnEnterAndExit = OnEnter | OnExit
)

func (l Lifecycle) Has(f Lifecycle) bool {
	return l&f != 0
}

func (l Lifecycle) String() string {
	var parts []string
	if l.Has(OnEnter) {
		parts = append(parts, "enter")
	}
	if l.Has(OnExit) {
		parts = append(parts, "exit")
	}
	if l.Has(Continuous) {
		parts = append(parts, "continuous")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// ParseLifecycle accepts enter, exit, both (or enter_and_exit), continuous
// (or update) and "|" separated combinations.
func ParseLifecycle(s string) (Lifecycle, error) {
	var out Lifecycle
	for _, part := range strings.Split(s, "|") {
		switch strings.ToLower(strings.TrimSpace(part)) {
		case "enter", "on_enter":
			out |= OnEnter
		case "exit", "on_exit":
			out |= OnExit
		case "both", "enter_and_exit", "on_enter_and_exit":
			out |= OnEnterAndExit
		case "continuous", "update", "while":
			out |= Continuous
		default:
			return 0, fmt.Errorf("motion: unknown lifecycle %q", part)
		}
	}
	return out, nil
}

// SideChannelPolicy decides whether output-writing conditions keep running
// once a group's result is already known.
type SideChannelPolicy int

const (
	// DefaultSideChannels defers to the graph definition, and to
	// FreshSideChannels when the graph names no policy either.
	DefaultSideChannels SideChannelPolicy = iota
	// FreshSideChannels evaluates every output-writing condition of every
	// group of a connection under evaluation, even after the boolean is
	// decided. Pure conditions still short-circuit.
	FreshSideChannels
	// ShortCircuit stops at the first false condition and at the first
	// satisfied group; later side channels keep their previous values.
	ShortCircuit
)

func ParseSideChannelPolicy(s string) (SideChannelPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "default":
		return DefaultSideChannels, nil
	case "fresh":
		return FreshSideChannels, nil
	case "short_circuit", "shortcircuit", "stale":
		return ShortCircuit, nil
	}
	return 0, fmt.Errorf("motion: unknown side channel policy %q", s)
}
