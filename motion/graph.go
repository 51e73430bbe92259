package motion

import (
	"errors"
	"fmt"
)

// Connection is a directed edge gated by condition groups. It is satisfied
// when any group is satisfied. A connection without groups is unconditional.
type Connection struct {
	// Target is the arena index of the destination state.
	Target int
	Groups []*Group
}

// State is one node of a graph. Behaviours and connections run in declared
// order. A state may own a nested graph which runs while the state is active.
type State struct {
	ID          StateID
	Behaviours  []Binding
	Connections []Connection
	Sub         *Graph

	enter  []int
	update []int
	exit   []int
}

// AddBehaviour attaches b with the given lifecycle.
func (s *State) AddBehaviour(b Behaviour, when Lifecycle, persistent bool) {
	s.Behaviours = append(s.Behaviours, Binding{Behaviour: b, When: when, Persistent: persistent})
	s.reindex()
}

// Bind attaches a prepared binding.
func (s *State) Bind(bind Binding) {
	s.Behaviours = append(s.Behaviours, bind)
	s.reindex()
}

func (s *State) reindex() {
	s.enter, s.update, s.exit = s.enter[:0], s.update[:0], s.exit[:0]
	for i, b := range s.Behaviours {
		if b.When.Has(OnEnter) {
			s.enter = append(s.enter, i)
		}
		if b.When.Has(Continuous) {
			s.update = append(s.update, i)
		}
		if b.When.Has(OnExit) {
			s.exit = append(s.exit, i)
		}
	}
}

// Graph is a compiled, immutable-after-validation motion graph. States live
// in an arena and connections refer to them by index, so cycles and
// self-loops need no special handling.
type Graph struct {
	Name   string
	Params []ParamDef
	States []*State
	// Initial is the arena index of the starting state.
	Initial int

	index map[StateID]int
}

// NewGraph creates an empty graph. Params are only read from the root graph;
// sub-graphs share their root's store.
func NewGraph(name string, params []ParamDef) *Graph {
	return &Graph{
		Name:    name,
		Params:  params,
		Initial: -1,
		index:   make(map[StateID]int),
	}
}

// AddState appends a new state. The first state added becomes the initial
// state until SetInitial says otherwise.
func (g *Graph) AddState(id StateID) (*State, error) {
	if g.index == nil {
		g.index = make(map[StateID]int)
	}
	if _, dup := g.index[id]; dup {
		return nil, fmt.Errorf("%w: %q in graph %q", ErrDuplicateState, id, g.Name)
	}
	st := &State{ID: id}
	g.index[id] = len(g.States)
	g.States = append(g.States, st)
	if g.Initial < 0 {
		g.Initial = 0
	}
	return st, nil
}

// MustState is AddState for hand-built graphs and tests.
func (g *Graph) MustState(id StateID) *State {
	st, err := g.AddState(id)
	if err != nil {
		panic(err)
	}
	return st
}

func (g *Graph) SetInitial(id StateID) error {
	i, ok := g.Index(id)
	if !ok {
		return fmt.Errorf("%w: initial %q in graph %q", ErrUnknownState, id, g.Name)
	}
	g.Initial = i
	return nil
}

// Index returns the arena index of id.
func (g *Graph) Index(id StateID) (int, bool) {
	i, ok := g.index[id]
	return i, ok
}

func (g *Graph) State(id StateID) (*State, bool) {
	i, ok := g.Index(id)
	if !ok {
		return nil, false
	}
	return g.States[i], true
}

// Connect appends a connection from -> to. Both states must exist.
func (g *Graph) Connect(from, to StateID, groups ...*Group) error {
	src, ok := g.State(from)
	if !ok {
		return fmt.Errorf("%w: connection source %q in graph %q", ErrUnknownState, from, g.Name)
	}
	dst, ok := g.Index(to)
	if !ok {
		return fmt.Errorf("%w: connection target %q from %q in graph %q", ErrUnknownState, to, from, g.Name)
	}
	src.Connections = append(src.Connections, Connection{Target: dst, Groups: groups})
	return nil
}

// Validate checks the structural invariants the runtime relies on across the
// graph and all of its sub-graphs.
func (g *Graph) Validate() error {
	groups := make(map[GroupID]string)
	return g.validate(groups)
}

func (g *Graph) validate(groups map[GroupID]string) error {
	var errs []error
	if len(g.States) == 0 || g.Initial < 0 || g.Initial >= len(g.States) {
		errs = append(errs, fmt.Errorf("%w: graph %q", ErrNoInitialState, g.Name))
	}
	for _, st := range g.States {
		for bi, b := range st.Behaviours {
			if b.Behaviour == nil {
				errs = append(errs, fmt.Errorf("%w: state %q behaviour %d", ErrNilPlugin, st.ID, bi))
			}
		}
		for ci, c := range st.Connections {
			if c.Target < 0 || c.Target >= len(g.States) {
				errs = append(errs, fmt.Errorf("%w: state %q connection %d targets index %d", ErrUnknownState, st.ID, ci, c.Target))
			}
			for _, grp := range c.Groups {
				if grp == nil {
					errs = append(errs, fmt.Errorf("%w: state %q connection %d has a nil group", ErrNilPlugin, st.ID, ci))
					continue
				}
				if grp.ID != "" {
					if owner, dup := groups[grp.ID]; dup {
						errs = append(errs, fmt.Errorf("%w: %q in %q and %s/%s", ErrDuplicateGroup, grp.ID, owner, g.Name, st.ID))
					}
					groups[grp.ID] = g.Name + "/" + string(st.ID)
				}
				for ki, cond := range grp.Conditions {
					if cond == nil {
						errs = append(errs, fmt.Errorf("%w: group %q condition %d", ErrNilPlugin, grp.ID, ki))
					}
				}
			}
		}
		if st.Sub != nil {
			if err := st.Sub.validate(groups); err != nil {
				errs = append(errs, fmt.Errorf("sub-graph of %q: %w", st.ID, err))
			}
		}
	}
	return errors.Join(errs...)
}

// groupTable collects every identified group of g and its sub-graphs.
func (g *Graph) groupTable(into map[GroupID]*Group) {
	for _, st := range g.States {
		for _, c := range st.Connections {
			for _, grp := range c.Groups {
				if grp != nil && grp.ID != "" {
					into[grp.ID] = grp
				}
			}
		}
		if st.Sub != nil {
			st.Sub.groupTable(into)
		}
	}
}
