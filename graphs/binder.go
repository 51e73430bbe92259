package graphs

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/milk9111/motiongraph/common"
	"github.com/milk9111/motiongraph/motion"
)

// Binder resolves the parameter and group names a factory refers to. Binding
// problems are collected rather than returned so one compile reports all of
// them.
type Binder struct {
	graph  string
	where  string
	line   int
	params map[string]motion.ParamDef
	errs   []error
	refs   []groupRef
	groups map[motion.GroupID]bool
	dir    string
}

type groupRef struct {
	id    motion.GroupID
	where string
}

func newBinder(graph string, defs []motion.ParamDef, dir string) *Binder {
	b := &Binder{
		graph:  graph,
		params: make(map[string]motion.ParamDef, len(defs)),
		groups: make(map[motion.GroupID]bool),
		dir:    dir,
	}
	for _, d := range defs {
		if d.Name != "" {
			b.params[d.Name] = d
		}
	}
	return b
}

func (b *Binder) at(where string, line int) {
	b.where, b.line = where, line
}

// Errorf records a problem at the entry being compiled.
func (b *Binder) Errorf(format string, args ...any) {
	b.errs = append(b.errs, b.wrap(fmt.Errorf(format, args...)))
}

func (b *Binder) wrap(err error) error {
	if b.line > 0 {
		return fmt.Errorf("graphs: %s: %s (line %d): %w", b.graph, b.where, b.line, err)
	}
	return fmt.Errorf("graphs: %s: %s: %w", b.graph, b.where, err)
}

// Param resolves a required parameter whose type is one of types. An empty
// types list accepts any type.
func (b *Binder) Param(name string, types ...motion.ParamType) motion.ParamID {
	if strings.TrimSpace(name) == "" {
		b.Errorf("%w: parameter name required", ErrMissingParam)
		return 0
	}
	return b.Optional(name, types...)
}

// Optional is Param for arguments that may be left out. It returns 0 for an
// empty name.
func (b *Binder) Optional(name string, types ...motion.ParamType) motion.ParamID {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0
	}
	d, ok := b.params[name]
	if !ok {
		b.Errorf("%w: %q", ErrMissingParam, name)
		return 0
	}
	if len(types) == 0 {
		return d.ID
	}
	for _, t := range types {
		if d.Type == t {
			return d.ID
		}
	}
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = t.String()
	}
	b.Errorf("%w: %q is %s, want %s", ErrParamType, name, d.Type, strings.Join(names, " or "))
	return d.ID
}

// Type returns the type of a bound parameter.
func (b *Binder) Type(id motion.ParamID) motion.ParamType {
	for _, d := range b.params {
		if d.ID == id {
			return d.Type
		}
	}
	return 0
}

// Value converts an authored constant to a value of type t.
func (b *Binder) Value(t motion.ParamType, node yaml.Node) motion.Value {
	v, err := ParseValue(t, &node)
	if err != nil {
		b.Errorf("%w", err)
	}
	return v
}

// Group records a reference to another group, checked once every group of
// the graph is known.
func (b *Binder) Group(id string) motion.GroupID {
	gid := motion.GroupID(strings.TrimSpace(id))
	if gid == "" {
		b.Errorf("group reference needs a group id")
		return ""
	}
	b.refs = append(b.refs, groupRef{id: gid, where: b.where})
	return gid
}

// Script returns inline source, or the contents of the named script file.
func (b *Binder) Script(inline, file string) string {
	if inline != "" {
		return inline
	}
	if file == "" {
		b.Errorf("script needs source or file")
		return ""
	}
	data, err := ReadScript(b.dir, file)
	if err != nil {
		b.Errorf("script %s: %w", file, err)
		return ""
	}
	return string(data)
}

// ParseValue decodes node as a constant of type t. An empty node is the zero
// value.
func ParseValue(t motion.ParamType, node *yaml.Node) (motion.Value, error) {
	if node == nil || node.Kind == 0 {
		return motion.Value{Type: t}, nil
	}
	switch t {
	case motion.ParamFloat:
		f, err := number(node)
		return motion.FloatValue(f), err
	case motion.ParamInt:
		f, err := number(node)
		return motion.IntValue(int(f)), err
	case motion.ParamBool, motion.ParamTrigger, motion.ParamEvent:
		var v bool
		if err := node.Decode(&v); err != nil {
			return motion.Value{Type: t}, fmt.Errorf("%s value: %w", t, err)
		}
		return motion.Value{Type: t, Bool: v}, nil
	case motion.ParamVector:
		v, err := vector(node)
		return motion.VectorValue(v), err
	case motion.ParamEntity:
		var v uint64
		if err := node.Decode(&v); err != nil {
			return motion.EntityValue(0), fmt.Errorf("entity value: %w", err)
		}
		return motion.EntityValue(common.EntityRef(v)), nil
	}
	return motion.Value{}, fmt.Errorf("value of invalid type %d", int(t))
}

// number decodes a numeric constant; booleans read as 0 and 1.
func number(node *yaml.Node) (float64, error) {
	if node == nil || node.Kind == 0 {
		return 0, nil
	}
	var f float64
	if err := node.Decode(&f); err == nil {
		return f, nil
	}
	var v bool
	if err := node.Decode(&v); err != nil {
		return 0, fmt.Errorf("line %d: %q is not a number", node.Line, node.Value)
	}
	if v {
		return 1, nil
	}
	return 0, nil
}

// vector accepts [x, y], [x, y, z] or {x:, y:, z:}.
func vector(node *yaml.Node) (common.Vec3, error) {
	if node == nil || node.Kind == 0 {
		return common.Vec3{}, nil
	}
	if node.Kind == yaml.SequenceNode {
		var list []float64
		if err := node.Decode(&list); err != nil {
			return common.Vec3{}, fmt.Errorf("vector: %w", err)
		}
		if len(list) < 2 || len(list) > 3 {
			return common.Vec3{}, fmt.Errorf("line %d: vector needs 2 or 3 components", node.Line)
		}
		v := common.V3(list[0], list[1], 0)
		if len(list) == 3 {
			v.Z = list[2]
		}
		return v, nil
	}
	var v common.Vec3
	if err := node.Decode(&v); err != nil {
		return common.Vec3{}, fmt.Errorf("vector: %w", err)
	}
	return v, nil
}
