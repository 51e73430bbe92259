// Package script provides tengo scripted condition and behaviour kinds.
//
// Scripts talk to the graph through the __engine map:
//
//	param(name)           current value (pulses are consumed)
//	peek(name)            current value without consuming
//	set_param(name, v)    write a parameter
//	fire(name)            arm a Trigger or Event
//	state_time()          seconds in the current state
//	state()               current state id
//	log(msg...)           debug log line
package script

import (
	"fmt"
	"strings"

	"github.com/d5/tengo/v2"
	"github.com/d5/tengo/v2/stdlib"
	"go.uber.org/zap"

	"github.com/milk9111/motiongraph/common"
	"github.com/milk9111/motiongraph/motion"
)

// scope is what the engine functions see during one run.
type scope struct {
	params    *motion.Store
	logger    *zap.Logger
	state     motion.StateID
	stateTime float64
}

type runtime struct {
	compiled *tengo.Compiled
	scope    scope
	engine   *tengo.ImmutableMap
}

func compile(name, src string, globals map[string]any) (*runtime, error) {
	s := tengo.NewScript([]byte(src))
	_ = s.Add("__engine", map[string]any{})
	for k, v := range globals {
		if err := s.Add(k, v); err != nil {
			return nil, fmt.Errorf("script: %s: %w", name, err)
		}
	}
	s.SetImports(stdlib.GetModuleMap(stdlib.AllModuleNames()...))

	compiled, err := s.Compile()
	if err != nil {
		return nil, fmt.Errorf("script: compile %s: %w", name, err)
	}
	rt := &runtime{compiled: compiled}
	rt.engine = rt.buildEngine()
	return rt, nil
}

func (rt *runtime) run(sc scope) error {
	if sc.logger == nil {
		sc.logger = zap.NewNop()
	}
	rt.scope = sc
	if err := rt.compiled.Set("__engine", rt.engine); err != nil {
		return err
	}
	return rt.compiled.Run()
}

func (rt *runtime) buildEngine() *tengo.ImmutableMap {
	values := map[string]tengo.Object{}

	values["param"] = &tengo.UserFunction{Name: "param", Value: func(args ...tengo.Object) (tengo.Object, error) {
		id, ok := rt.resolve(args)
		if !ok {
			return tengo.UndefinedValue, nil
		}
		def, _ := rt.scope.params.Def(id)
		if def.Type.Pulse() {
			return boolObject(rt.scope.params.Consume(id)), nil
		}
		return valueToObject(rt.scope.params.Peek(id)), nil
	}}

	values["peek"] = &tengo.UserFunction{Name: "peek", Value: func(args ...tengo.Object) (tengo.Object, error) {
		id, ok := rt.resolve(args)
		if !ok {
			return tengo.UndefinedValue, nil
		}
		return valueToObject(rt.scope.params.Peek(id)), nil
	}}

	values["set_param"] = &tengo.UserFunction{Name: "set_param", Value: func(args ...tengo.Object) (tengo.Object, error) {
		if len(args) < 2 {
			return tengo.FalseValue, nil
		}
		id, ok := rt.resolve(args)
		if !ok {
			return tengo.FalseValue, nil
		}
		def, _ := rt.scope.params.Def(id)
		v, err := objectToValue(def.Type, args[1])
		if err != nil {
			rt.scope.logger.Warn("script set_param", zap.String("param", def.Name), zap.Error(err))
			return tengo.FalseValue, nil
		}
		if def.Type.Pulse() {
			rt.scope.params.SetBool(id, v.Bool)
			return tengo.TrueValue, nil
		}
		return boolObject(rt.scope.params.SetValue(id, v)), nil
	}}

	values["fire"] = &tengo.UserFunction{Name: "fire", Value: func(args ...tengo.Object) (tengo.Object, error) {
		id, ok := rt.resolve(args)
		if !ok {
			return tengo.FalseValue, nil
		}
		rt.scope.params.Fire(id)
		return tengo.TrueValue, nil
	}}

	values["state_time"] = &tengo.UserFunction{Name: "state_time", Value: func(args ...tengo.Object) (tengo.Object, error) {
		return &tengo.Float{Value: rt.scope.stateTime}, nil
	}}

	values["state"] = &tengo.UserFunction{Name: "state", Value: func(args ...tengo.Object) (tengo.Object, error) {
		return &tengo.String{Value: string(rt.scope.state)}, nil
	}}

	values["log"] = &tengo.UserFunction{Name: "log", Value: func(args ...tengo.Object) (tengo.Object, error) {
		parts := make([]string, 0, len(args))
		for _, a := range args {
			parts = append(parts, objectAsString(a))
		}
		rt.scope.logger.Debug("script", zap.String("state", string(rt.scope.state)), zap.String("msg", strings.Join(parts, " ")))
		return tengo.UndefinedValue, nil
	}}

	return &tengo.ImmutableMap{Value: values}
}

func (rt *runtime) resolve(args []tengo.Object) (motion.ParamID, bool) {
	if len(args) < 1 || rt.scope.params == nil {
		return 0, false
	}
	name := strings.TrimSpace(objectAsString(args[0]))
	id, ok := rt.scope.params.ID(name)
	if !ok {
		rt.scope.logger.Warn("script references unknown parameter", zap.String("param", name))
	}
	return id, ok
}

func boolObject(b bool) tengo.Object {
	if b {
		return tengo.TrueValue
	}
	return tengo.FalseValue
}

func valueToObject(v motion.Value) tengo.Object {
	switch v.Type {
	case motion.ParamFloat:
		return &tengo.Float{Value: v.Float}
	case motion.ParamInt:
		return &tengo.Int{Value: int64(v.Int)}
	case motion.ParamEntity:
		return &tengo.Int{Value: int64(v.Entity)}
	case motion.ParamVector:
		return &tengo.Array{Value: []tengo.Object{
			&tengo.Float{Value: v.Vector.X},
			&tengo.Float{Value: v.Vector.Y},
			&tengo.Float{Value: v.Vector.Z},
		}}
	case motion.ParamBool, motion.ParamTrigger, motion.ParamEvent:
		return boolObject(v.Bool)
	}
	return tengo.UndefinedValue
}

func objectToValue(t motion.ParamType, obj tengo.Object) (motion.Value, error) {
	raw := objectToAny(obj)
	switch t {
	case motion.ParamFloat:
		return motion.FloatValue(asFloat(raw)), nil
	case motion.ParamInt:
		return motion.IntValue(int(asFloat(raw))), nil
	case motion.ParamEntity:
		return motion.EntityValue(common.EntityRef(asFloat(raw))), nil
	case motion.ParamBool, motion.ParamTrigger, motion.ParamEvent:
		return motion.Value{Type: t, Bool: !obj.IsFalsy()}, nil
	case motion.ParamVector:
		list, ok := raw.([]any)
		if !ok || len(list) < 2 {
			return motion.Value{}, fmt.Errorf("vector needs [x, y] or [x, y, z], got %s", obj.TypeName())
		}
		v := common.V3(asFloat(list[0]), asFloat(list[1]), 0)
		if len(list) > 2 {
			v.Z = asFloat(list[2])
		}
		return motion.VectorValue(v), nil
	}
	return motion.Value{}, fmt.Errorf("unsupported parameter type %s", t)
}

func asFloat(v any) float64 {
	switch t := v.(type) {
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case float64:
		return t
	case bool:
		if t {
			return 1
		}
	}
	return 0
}

func objectAsString(obj tengo.Object) string {
	if obj == nil {
		return ""
	}
	switch v := obj.(type) {
	case *tengo.String:
		return v.Value
	default:
		return strings.Trim(v.String(), "\"")
	}
}

func objectToAny(obj tengo.Object) any {
	if obj == nil {
		return nil
	}
	switch v := obj.(type) {
	case *tengo.String:
		return v.Value
	case *tengo.Int:
		return int(v.Value)
	case *tengo.Float:
		return v.Value
	case *tengo.Bool:
		return !v.IsFalsy()
	case *tengo.Array:
		out := make([]any, 0, len(v.Value))
		for _, item := range v.Value {
			out = append(out, objectToAny(item))
		}
		return out
	case *tengo.Map:
		out := make(map[string]any, len(v.Value))
		for k, item := range v.Value {
			out[k] = objectToAny(item)
		}
		return out
	case *tengo.ImmutableMap:
		out := make(map[string]any, len(v.Value))
		for k, item := range v.Value {
			out[k] = objectToAny(item)
		}
		return out
	case *tengo.Undefined:
		return nil
	default:
		return v.String()
	}
}
