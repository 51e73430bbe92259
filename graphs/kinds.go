package graphs

import (
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/milk9111/motiongraph/behaviours"
	"github.com/milk9111/motiongraph/common"
	"github.com/milk9111/motiongraph/conditions"
	"github.com/milk9111/motiongraph/curve"
	"github.com/milk9111/motiongraph/motion"
	"github.com/milk9111/motiongraph/script"
)

// ConditionFactory builds a condition from its authored entry.
type ConditionFactory func(b *Binder, spec *PluginSpec) (motion.Condition, error)

// BehaviourFactory builds a behaviour and returns the lifecycle used when
// the entry does not say when it runs.
type BehaviourFactory func(b *Binder, spec *PluginSpec) (motion.Behaviour, motion.Lifecycle, error)

var numeric = []motion.ParamType{motion.ParamFloat, motion.ParamInt, motion.ParamBool}

// ordered also admits entity references, which compare by id.
var ordered = append(numeric[:len(numeric):len(numeric)], motion.ParamEntity)

var conditionRegistry = map[string]ConditionFactory{
	"compare": func(b *Binder, spec *PluginSpec) (motion.Condition, error) {
		var args struct {
			Param string    `yaml:"param"`
			Op    string    `yaml:"op"`
			Value yaml.Node `yaml:"value"`
			Other string    `yaml:"other"`
		}
		if err := spec.Decode(&args); err != nil {
			return nil, err
		}
		op, err := conditions.ParseOp(args.Op)
		if err != nil {
			return nil, err
		}
		value, err := number(&args.Value)
		if err != nil {
			return nil, err
		}
		return &conditions.Compare{
			Param: b.Param(args.Param, ordered...),
			Op:    op,
			Value: value,
			Other: b.Optional(args.Other, ordered...),
		}, nil
	},
	"vector": func(b *Binder, spec *PluginSpec) (motion.Condition, error) {
		var args struct {
			Param     string  `yaml:"param"`
			Component string  `yaml:"component"`
			Op        string  `yaml:"op"`
			Value     float64 `yaml:"value"`
		}
		if err := spec.Decode(&args); err != nil {
			return nil, err
		}
		op, err := conditions.ParseOp(args.Op)
		if err != nil {
			return nil, err
		}
		comp, err := conditions.ParseComponent(args.Component)
		if err != nil {
			return nil, err
		}
		return &conditions.Vector{Param: b.Param(args.Param, motion.ParamVector), Component: comp, Op: op, Value: args.Value}, nil
	},
	"trigger": func(b *Binder, spec *PluginSpec) (motion.Condition, error) {
		var args struct {
			Param string `yaml:"param"`
		}
		if err := spec.Decode(&args); err != nil {
			return nil, err
		}
		return &conditions.Trigger{Param: b.Param(args.Param, motion.ParamTrigger, motion.ParamEvent)}, nil
	},
	"state_time": func(b *Binder, spec *PluginSpec) (motion.Condition, error) {
		var args struct {
			Op      string  `yaml:"op"`
			Seconds float64 `yaml:"seconds"`
		}
		args.Op = ">="
		if err := spec.Decode(&args); err != nil {
			return nil, err
		}
		op, err := conditions.ParseOp(args.Op)
		if err != nil {
			return nil, err
		}
		return &conditions.StateTime{Op: op, Seconds: args.Seconds}, nil
	},
	"contact": func(b *Binder, spec *PluginSpec) (motion.Condition, error) {
		args := struct {
			Contact string `yaml:"contact"`
			Expect  bool   `yaml:"expect"`
		}{Expect: true}
		if err := spec.Decode(&args); err != nil {
			return nil, err
		}
		kind, err := conditions.ParseContact(args.Contact)
		if err != nil {
			return nil, err
		}
		return &conditions.Contact{Kind: kind, Expect: args.Expect}, nil
	},
	"shape_cast": buildShapeCast,
	"group": func(b *Binder, spec *PluginSpec) (motion.Condition, error) {
		var args struct {
			Group string `yaml:"group"`
		}
		if err := spec.Decode(&args); err != nil {
			return nil, err
		}
		return &conditions.GroupRef{Group: b.Group(args.Group)}, nil
	},
	"operation": func(b *Binder, spec *PluginSpec) (motion.Condition, error) {
		args := struct {
			Operation string `yaml:"operation"`
			Expect    bool   `yaml:"expect"`
		}{Expect: true}
		if err := spec.Decode(&args); err != nil {
			return nil, err
		}
		if args.Operation == "" {
			return nil, fmt.Errorf("operation name required")
		}
		return &conditions.Operation{Name: args.Operation, Expect: args.Expect}, nil
	},
	"script": func(b *Binder, spec *PluginSpec) (motion.Condition, error) {
		var args struct {
			Expr   string `yaml:"expr"`
			Source string `yaml:"source"`
			File   string `yaml:"file"`
		}
		if err := spec.Decode(&args); err != nil {
			return nil, err
		}
		name := scriptName(b, spec, args.File)
		if args.Expr != "" {
			return script.NewExpression(name, args.Expr)
		}
		return script.NewCondition(name, b.Script(args.Source, args.File))
	},
}

func buildShapeCast(b *Binder, spec *PluginSpec) (motion.Condition, error) {
	var args struct {
		Shape         string    `yaml:"shape"`
		Radius        float64   `yaml:"radius"`
		Height        float64   `yaml:"height"`
		Offset        yaml.Node `yaml:"offset"`
		Direction     string    `yaml:"direction"`
		Vector        yaml.Node `yaml:"vector"`
		Param         string    `yaml:"param"`
		Distance      float64   `yaml:"distance"`
		LookaheadTime float64   `yaml:"lookahead_time"`
		Layers        uint32    `yaml:"layers"`
		Expect        string    `yaml:"expect"`
		Outputs       struct {
			HitPoint     string `yaml:"hit_point"`
			HitNormal    string `yaml:"hit_normal"`
			HitEntity    string `yaml:"hit_entity"`
			HitTransform string `yaml:"hit_transform"`
			HitDistance  string `yaml:"hit_distance"`
			ClimbHeight  string `yaml:"climb_height"`
		} `yaml:"outputs"`
	}
	if err := spec.Decode(&args); err != nil {
		return nil, err
	}
	c := &conditions.ShapeCast{
		Radius:        args.Radius,
		Height:        args.Height,
		Distance:      args.Distance,
		LookaheadTime: args.LookaheadTime,
		Layers:        args.Layers,
	}
	switch args.Shape {
	case "", "sphere", "circle":
		c.Shape = motion.ShapeSphere
	case "capsule":
		c.Shape = motion.ShapeCapsule
	default:
		return nil, fmt.Errorf("unknown cast shape %q", args.Shape)
	}
	switch args.Expect {
	case "", "hit":
		c.ExpectHit = true
	case "miss":
	default:
		return nil, fmt.Errorf("expect must be hit or miss, got %q", args.Expect)
	}
	dir, err := conditions.ParseDirection(args.Direction)
	if err != nil {
		return nil, err
	}
	c.Direction = dir
	if c.Offset, err = vector(&args.Offset); err != nil {
		return nil, err
	}
	switch dir {
	case conditions.Static:
		if c.Static, err = vector(&args.Vector); err != nil {
			return nil, err
		}
		if c.Static.IsZero() {
			c.Static = common.V3(0, -1, 0)
		}
	case conditions.FromParam:
		c.Param = b.Param(args.Param, motion.ParamVector)
	}
	c.Out = conditions.CastOutputs{
		HitPoint:     b.Optional(args.Outputs.HitPoint, motion.ParamVector),
		HitNormal:    b.Optional(args.Outputs.HitNormal, motion.ParamVector),
		HitEntity:    b.Optional(args.Outputs.HitEntity, motion.ParamEntity),
		HitTransform: b.Optional(args.Outputs.HitTransform, motion.ParamEntity),
		HitDistance:  b.Optional(args.Outputs.HitDistance, motion.ParamFloat),
		ClimbHeight:  b.Optional(args.Outputs.ClimbHeight, motion.ParamFloat),
	}
	return c, nil
}

var behaviourRegistry = map[string]BehaviourFactory{
	"param": func(b *Binder, spec *PluginSpec) (motion.Behaviour, motion.Lifecycle, error) {
		var args struct {
			Param  string    `yaml:"param"`
			Op     string    `yaml:"op"`
			Value  yaml.Node `yaml:"value"`
			Exit   yaml.Node `yaml:"exit"`
			Source string    `yaml:"source"`
			Min    float64   `yaml:"min"`
			Max    float64   `yaml:"max"`
		}
		if err := spec.Decode(&args); err != nil {
			return nil, 0, err
		}
		op, err := behaviours.ParseParamOp(args.Op)
		if err != nil {
			return nil, 0, err
		}
		target := b.Param(args.Param)
		t := b.Type(target)
		operand := t
		if op == behaviours.Multiply && t == motion.ParamVector && args.Value.Kind == yaml.ScalarNode {
			operand = motion.ParamFloat
		}
		p := &behaviours.Param{
			Target: target,
			Op:     op,
			Source: b.Optional(args.Source, t),
			Min:    args.Min,
			Max:    args.Max,
		}
		if t != 0 {
			// an omitted value on a trigger or event fires it
			if args.Value.Kind != 0 || !t.Pulse() {
				p.Enter = b.Value(operand, args.Value)
			}
			if args.Exit.Kind != 0 {
				p.Exit = b.Value(operand, args.Exit)
				p.HasExit = true
			}
		}
		when := motion.OnEnter
		if p.HasExit {
			when = motion.OnEnterAndExit
		}
		return p, when, nil
	},
	"force": func(b *Binder, spec *PluginSpec) (motion.Behaviour, motion.Lifecycle, error) {
		var args struct {
			Impulse    yaml.Node `yaml:"impulse"`
			Param      string    `yaml:"param"`
			Scale      string    `yaml:"scale"`
			Multiplier float64   `yaml:"multiplier"`
		}
		if err := spec.Decode(&args); err != nil {
			return nil, 0, err
		}
		impulse, err := vector(&args.Impulse)
		if err != nil {
			return nil, 0, err
		}
		return &behaviours.Force{
			Impulse:    impulse,
			Param:      b.Optional(args.Param, motion.ParamVector),
			Scale:      b.Optional(args.Scale, numeric...),
			Multiplier: args.Multiplier,
		}, motion.OnEnter, nil
	},
	"animator": func(b *Binder, spec *PluginSpec) (motion.Behaviour, motion.Lifecycle, error) {
		var args struct {
			Layer  string    `yaml:"layer"`
			Bool   bool      `yaml:"bool"`
			Value  yaml.Node `yaml:"value"`
			Exit   yaml.Node `yaml:"exit"`
			Mirror string    `yaml:"mirror"`
		}
		if err := spec.Decode(&args); err != nil {
			return nil, 0, err
		}
		if args.Layer == "" {
			return nil, 0, fmt.Errorf("animator layer required")
		}
		enter, err := number(&args.Value)
		if err != nil {
			return nil, 0, err
		}
		exit, err := number(&args.Exit)
		if err != nil {
			return nil, 0, err
		}
		a := &behaviours.Animator{
			Name:   args.Layer,
			Bool:   args.Bool,
			Enter:  enter,
			Exit:   exit,
			Mirror: b.Optional(args.Mirror, numeric...),
		}
		when := motion.OnEnter
		switch {
		case a.Mirror != 0:
			when = motion.Continuous
		case args.Exit.Kind != 0:
			when = motion.OnEnterAndExit
		}
		return a, when, nil
	},
	"audio": func(b *Binder, spec *PluginSpec) (motion.Behaviour, motion.Lifecycle, error) {
		args := struct {
			Clip         string            `yaml:"clip"`
			Surfaces     map[string]string `yaml:"surfaces"`
			SurfaceProbe float64           `yaml:"surface_probe"`
			Volume       float64           `yaml:"volume"`
			Pitch        float64           `yaml:"pitch"`
			Loop         bool              `yaml:"loop"`
		}{Volume: 1, Pitch: 1}
		if err := spec.Decode(&args); err != nil {
			return nil, 0, err
		}
		if args.Clip == "" && len(args.Surfaces) == 0 {
			return nil, 0, fmt.Errorf("audio needs a clip or surfaces")
		}
		return &behaviours.Audio{
			Clip:         args.Clip,
			Surfaces:     args.Surfaces,
			SurfaceProbe: args.SurfaceProbe,
			Volume:       args.Volume,
			Pitch:        args.Pitch,
			Loop:         args.Loop,
		}, motion.OnEnterAndExit, nil
	},
	"drain": func(b *Binder, spec *PluginSpec) (motion.Behaviour, motion.Lifecycle, error) {
		var args struct {
			Param       string  `yaml:"param"`
			Rate        float64 `yaml:"rate"`
			Min         float64 `yaml:"min"`
			Max         float64 `yaml:"max"`
			Decay       float64 `yaml:"decay"`
			DecayTarget float64 `yaml:"decay_target"`
		}
		if err := spec.Decode(&args); err != nil {
			return nil, 0, err
		}
		return &behaviours.Drain{
			Param:       b.Param(args.Param, motion.ParamFloat),
			Rate:        args.Rate,
			Min:         args.Min,
			Max:         args.Max,
			Decay:       args.Decay,
			DecayTarget: args.DecayTarget,
		}, motion.Continuous, nil
	},
	"time_scale": func(b *Binder, spec *PluginSpec) (motion.Behaviour, motion.Lifecycle, error) {
		args := struct {
			Scale  float64 `yaml:"scale"`
			Target float64 `yaml:"target"`
			Decay  float64 `yaml:"decay"`
		}{Scale: 1, Target: 1}
		if err := spec.Decode(&args); err != nil {
			return nil, 0, err
		}
		return &behaviours.TimeScale{Scale: args.Scale, Target: args.Target, Decay: args.Decay},
			motion.OnEnterAndExit | motion.Continuous, nil
	},
	"spring": func(b *Binder, spec *PluginSpec) (motion.Behaviour, motion.Lifecycle, error) {
		args := struct {
			Curve    *curve.Curve `yaml:"curve"`
			Duration float64      `yaml:"duration"`
			From     float64      `yaml:"from"`
			To       float64      `yaml:"to"`
			ToParam  string       `yaml:"to_param"`
			Param    string       `yaml:"param"`
			Layer    string       `yaml:"layer"`
		}{Duration: 0.25}
		if err := spec.Decode(&args); err != nil {
			return nil, 0, err
		}
		s := behaviours.NewSpring(args.Curve, args.Duration, args.From, args.To)
		s.ToParam = b.Optional(args.ToParam, numeric...)
		bindCurveOutputs(b, s, args.Param, args.Layer)
		return s, motion.OnEnter | motion.Continuous, nil
	},
	"pulse": func(b *Binder, spec *PluginSpec) (motion.Behaviour, motion.Lifecycle, error) {
		args := struct {
			Curve     *curve.Curve `yaml:"curve"`
			Duration  float64      `yaml:"duration"`
			Rest      float64      `yaml:"rest"`
			Amplitude float64      `yaml:"amplitude"`
			Param     string       `yaml:"param"`
			Layer     string       `yaml:"layer"`
		}{Duration: 0.25}
		if err := spec.Decode(&args); err != nil {
			return nil, 0, err
		}
		c := args.Curve
		if c == nil {
			c, _ = curve.Preset("bump")
		}
		s := behaviours.NewPulse(c, args.Duration, args.Rest, args.Amplitude)
		bindCurveOutputs(b, s, args.Param, args.Layer)
		return s, motion.OnEnter | motion.Continuous, nil
	},
	"timer": func(b *Binder, spec *PluginSpec) (motion.Behaviour, motion.Lifecycle, error) {
		var args struct {
			Duration float64 `yaml:"duration"`
			Param    string  `yaml:"param"`
			Repeat   bool    `yaml:"repeat"`
		}
		if err := spec.Decode(&args); err != nil {
			return nil, 0, err
		}
		return &behaviours.Timer{
			Duration: args.Duration,
			Param:    b.Param(args.Param, motion.ParamTrigger, motion.ParamEvent, motion.ParamSwitch),
			Repeat:   args.Repeat,
		}, motion.Continuous, nil
	},
	"script": func(b *Binder, spec *PluginSpec) (motion.Behaviour, motion.Lifecycle, error) {
		var args struct {
			Source string `yaml:"source"`
			File   string `yaml:"file"`
		}
		if err := spec.Decode(&args); err != nil {
			return nil, 0, err
		}
		beh, err := script.NewBehaviour(scriptName(b, spec, args.File), b.Script(args.Source, args.File))
		if err != nil {
			return nil, 0, err
		}
		return beh, motion.OnEnterAndExit | motion.Continuous, nil
	},
}

func bindCurveOutputs(b *Binder, s *behaviours.Spring, param, layer string) {
	s.Param = b.Optional(param, motion.ParamFloat)
	if layer != "" {
		s.Anim = &behaviours.Animator{Name: layer}
	}
	if s.Param == 0 && s.Anim == nil {
		b.Errorf("%w: curve effect writes neither a parameter nor a layer", ErrMissingParam)
	}
}

func scriptName(b *Binder, spec *PluginSpec, file string) string {
	switch {
	case spec.Name != "":
		return spec.Name
	case file != "":
		return file
	}
	return b.where
}

// RegisterCondition adds or replaces a condition kind.
func RegisterCondition(kind string, f ConditionFactory) {
	conditionRegistry[kind] = f
}

// RegisterBehaviour adds or replaces a behaviour kind.
func RegisterBehaviour(kind string, f BehaviourFactory) {
	behaviourRegistry[kind] = f
}

// ConditionKinds lists the registered condition kinds.
func ConditionKinds() []string {
	return sortedKeys(conditionRegistry)
}

// BehaviourKinds lists the registered behaviour kinds.
func BehaviourKinds() []string {
	return sortedKeys(behaviourRegistry)
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
