package graphs

import (
	"errors"
	"fmt"
	"strings"

	"github.com/milk9111/motiongraph/conditions"
	"github.com/milk9111/motiongraph/motion"
)

var (
	ErrUnknownKind    = errors.New("graphs: unknown kind")
	ErrMissingParam   = errors.New("graphs: unknown parameter")
	ErrParamType      = errors.New("graphs: parameter type mismatch")
	ErrDanglingTarget = errors.New("graphs: connection to unknown state")
	ErrUnknownGroup   = errors.New("graphs: reference to unknown condition group")
)

// Definition is a compiled graph definition. Plug-ins carry runtime state,
// so every instance gets its own graph from Build.
type Definition struct {
	Spec   *GraphSpec
	Policy motion.SideChannelPolicy

	dir string
}

// Compile checks spec against the registered kinds and its own parameters.
// All problems are reported together.
func Compile(spec *GraphSpec, dir string) (*Definition, error) {
	if spec == nil {
		return nil, errors.New("graphs: nil definition")
	}
	policy, err := motion.ParseSideChannelPolicy(spec.SideChannels)
	if err != nil {
		return nil, fmt.Errorf("graphs: %s: %w", graphName(spec), err)
	}
	d := &Definition{Spec: spec, Policy: policy, dir: dir}
	if _, err := d.Build(); err != nil {
		return nil, err
	}
	return d, nil
}

// Load reads, parses and compiles the named definition.
func Load(dir, name string) (*Definition, error) {
	spec, err := LoadSpec(dir, name)
	if err != nil {
		return nil, err
	}
	if spec.Name == "" {
		spec.Name = strings.TrimSuffix(cleanDefPath(name), ".yaml")
	}
	return Compile(spec, dir)
}

func (d *Definition) Name() string {
	return graphName(d.Spec)
}

// Build returns a fresh graph with new plug-in instances.
func (d *Definition) Build() (*motion.Graph, error) {
	return build(d.Spec, d.dir)
}

// NewInstance builds a graph and starts an unstarted instance on it. The
// definition's side channel policy applies unless opts names one.
func (d *Definition) NewInstance(services motion.Services, opts motion.Options) (*motion.Instance, error) {
	g, err := d.Build()
	if err != nil {
		return nil, err
	}
	if opts.SideChannels == motion.DefaultSideChannels {
		opts.SideChannels = d.Policy
	}
	return motion.NewInstance(g, services, opts)
}

func graphName(spec *GraphSpec) string {
	if spec.Name == "" {
		return "graph"
	}
	return spec.Name
}

func build(spec *GraphSpec, dir string) (*motion.Graph, error) {
	name := graphName(spec)
	defs, errs := paramDefs(name, spec.Params)
	b := newBinder(name, defs, dir)
	g := motion.NewGraph(name, defs)
	b.level(g, spec.Initial, spec.States)

	for _, ref := range b.refs {
		if !b.groups[ref.id] {
			b.at(ref.where, 0)
			b.Errorf("%w: %q", ErrUnknownGroup, ref.id)
		}
	}
	errs = append(errs, b.errs...)
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("graphs: %s: %w", name, err)
	}
	return g, nil
}

func paramDefs(graph string, specs []ParamSpec) ([]motion.ParamDef, []error) {
	var errs []error
	defs := make([]motion.ParamDef, 0, len(specs))
	ids := make(map[int]string, len(specs))
	names := make(map[string]bool, len(specs))
	for i, ps := range specs {
		where := fmt.Sprintf("graphs: %s: params[%d] %q", graph, i, ps.Name)
		t, err := motion.ParseParamType(ps.Type)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w: %w", where, ErrParamType, err))
			continue
		}
		if ps.ID <= 0 {
			errs = append(errs, fmt.Errorf("%s: id must be positive, got %d", where, ps.ID))
			continue
		}
		if prev, dup := ids[ps.ID]; dup {
			errs = append(errs, fmt.Errorf("%s: %w: id %d already used by %q", where, motion.ErrDuplicateParam, ps.ID, prev))
			continue
		}
		if ps.Name == "" || names[ps.Name] {
			errs = append(errs, fmt.Errorf("%s: %w: name must be unique and non-empty", where, motion.ErrDuplicateParam))
			continue
		}
		def, err := ParseValue(t, &ps.Default)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: default: %w", where, err))
			continue
		}
		ids[ps.ID] = ps.Name
		names[ps.Name] = true
		defs = append(defs, motion.ParamDef{ID: motion.ParamID(ps.ID), Name: ps.Name, Type: t, Default: def})
	}
	return defs, errs
}

// level fills g from states. States are added first so connections may
// point forward.
func (b *Binder) level(g *motion.Graph, initial string, states []StateSpec) {
	for i, ss := range states {
		b.at(fmt.Sprintf("%s states[%d]", g.Name, i), 0)
		if ss.ID == "" {
			b.Errorf("state needs an id")
			continue
		}
		if _, err := g.AddState(motion.StateID(ss.ID)); err != nil {
			b.Errorf("%w", err)
		}
	}
	if initial != "" {
		b.at(g.Name, 0)
		if err := g.SetInitial(motion.StateID(initial)); err != nil {
			b.Errorf("%w", err)
		}
	}

	for _, ss := range states {
		st, ok := g.State(motion.StateID(ss.ID))
		if !ok {
			continue
		}
		prefix := g.Name + "/" + ss.ID
		for i := range ss.Behaviours {
			b.behaviour(st, prefix, i, &ss.Behaviours[i])
		}
		for ci, cs := range ss.Connections {
			b.connection(g, st, prefix, ci, cs)
		}
		if ss.Sub != nil {
			sub := motion.NewGraph(prefix, nil)
			b.level(sub, ss.Sub.Initial, ss.Sub.States)
			st.Sub = sub
		}
	}
}

func (b *Binder) behaviour(st *motion.State, prefix string, i int, ps *PluginSpec) {
	b.at(fmt.Sprintf("%s behaviours[%d] (%s)", prefix, i, ps.Kind), ps.Args.Line)
	f, ok := behaviourRegistry[ps.Kind]
	if !ok {
		b.Errorf("%w: behaviour %q", ErrUnknownKind, ps.Kind)
		return
	}
	if ps.Invert {
		b.Errorf("invert only applies to conditions")
	}
	beh, when, err := f(b, ps)
	if err != nil {
		b.Errorf("%w", err)
		return
	}
	if ps.When != "" {
		if when, err = motion.ParseLifecycle(ps.When); err != nil {
			b.Errorf("%w", err)
			return
		}
	}
	name := ps.Name
	if name == "" {
		name = ps.Kind
	}
	st.Bind(motion.Binding{Behaviour: beh, When: when, Persistent: ps.Persistent, Name: name})
}

func (b *Binder) connection(g *motion.Graph, st *motion.State, prefix string, ci int, cs ConnectionSpec) {
	where := fmt.Sprintf("%s connections[%d]", prefix, ci)
	b.at(where, 0)
	target, ok := g.Index(motion.StateID(cs.To))
	if !ok {
		b.Errorf("%w: %q", ErrDanglingTarget, cs.To)
		return
	}
	groups := make([]*motion.Group, 0, len(cs.Groups))
	for gi, gs := range cs.Groups {
		id := motion.GroupID(gs.ID)
		if id != "" {
			if b.groups[id] {
				b.at(where, 0)
				b.Errorf("%w: %q", motion.ErrDuplicateGroup, id)
			}
			b.groups[id] = true
		}
		conds := make([]motion.Condition, 0, len(gs.Conditions))
		for ki := range gs.Conditions {
			ps := &gs.Conditions[ki]
			b.at(fmt.Sprintf("%s groups[%d] conditions[%d] (%s)", where, gi, ki, ps.Kind), ps.Args.Line)
			if c := b.condition(ps); c != nil {
				conds = append(conds, c)
			}
		}
		groups = append(groups, motion.NewGroup(id, conds...))
	}
	st.Connections = append(st.Connections, motion.Connection{Target: target, Groups: groups})
}

func (b *Binder) condition(ps *PluginSpec) motion.Condition {
	f, ok := conditionRegistry[ps.Kind]
	if !ok {
		b.Errorf("%w: condition %q", ErrUnknownKind, ps.Kind)
		return nil
	}
	c, err := f(b, ps)
	if err != nil {
		b.Errorf("%w", err)
		return nil
	}
	if ps.Invert {
		c = conditions.Invert(c)
	}
	return c
}
