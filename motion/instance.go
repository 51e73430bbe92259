package motion

import (
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Options configure an Instance.
type Options struct {
	Logger       *zap.Logger
	SideChannels SideChannelPolicy
}

// Transition describes one state change, reported after entry completes.
type Transition struct {
	Graph string
	Depth int
	From  StateID
	To    StateID
	// Connection is the index of the connection that fired in From, or -1
	// for external transitions.
	Connection int
	Tick       uint64
}

// level is the runtime of one graph in the active chain: the root graph or a
// sub-graph owned by the active state of the level above.
type level struct {
	graph      *Graph
	depth      int
	active     int
	stateTime  float64
	stateTicks int
	sub        *level
}

func (l *level) state() *State {
	return l.graph.States[l.active]
}

type groupCache struct {
	valid      bool
	tick       uint64
	value      bool
	evaluating bool
}

// Instance is one running copy of a graph bound to one agent. It owns the
// parameter store and advances only when Tick is called. An instance must be
// confined to one goroutine.
type Instance struct {
	id       uuid.UUID
	graph    *Graph
	params   *Store
	services Services
	policy   SideChannelPolicy
	logger   *zap.Logger

	root    *level
	started bool
	tick    uint64

	groups    map[GroupID]*Group
	cache     map[GroupID]*groupCache
	observers []func(Transition)
}

// NewInstance validates g and creates a stopped instance with every
// parameter at its default. Behaviours keep runtime state on the graph's
// states, so a graph must back exactly one instance; build a fresh graph
// from its definition for every agent.
func NewInstance(g *Graph, services Services, opts Options) (*Instance, error) {
	if g == nil {
		return nil, fmt.Errorf("motion: nil graph")
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	params, err := NewStore(g.Params, logger)
	if err != nil {
		return nil, err
	}
	policy := opts.SideChannels
	if policy == DefaultSideChannels {
		policy = FreshSideChannels
	}
	in := &Instance{
		id:       uuid.New(),
		graph:    g,
		params:   params,
		services: services,
		policy:   policy,
		groups:   make(map[GroupID]*Group),
		cache:    make(map[GroupID]*groupCache),
	}
	in.logger = logger.With(zap.String("graph", g.Name), zap.String("instance", in.id.String()))
	g.groupTable(in.groups)
	return in, nil
}

func (in *Instance) ID() uuid.UUID      { return in.id }
func (in *Instance) Graph() *Graph      { return in.graph }
func (in *Instance) Params() *Store     { return in.params }
func (in *Instance) Started() bool      { return in.started }
func (in *Instance) TickCount() uint64  { return in.tick }

// SideChannels reports the policy the instance evaluates with.
func (in *Instance) SideChannels() SideChannelPolicy { return in.policy }
func (in *Instance) Services() Services { return in.services }

// SetServices swaps the injected collaborators, e.g. after a level reload.
func (in *Instance) SetServices(s Services) {
	in.services = s
}

// OnTransition registers an observer called after every transition.
func (in *Instance) OnTransition(fn func(Transition)) {
	if fn != nil {
		in.observers = append(in.observers, fn)
	}
}

// Active returns the active state of the root graph.
func (in *Instance) Active() StateID {
	if in.root == nil {
		return ""
	}
	return in.root.state().ID
}

// ActivePath returns the active state of every live level, root first.
func (in *Instance) ActivePath() []StateID {
	var out []StateID
	for l := in.root; l != nil; l = l.sub {
		out = append(out, l.state().ID)
	}
	return out
}

// StateTime is the time since the root's active state was entered.
func (in *Instance) StateTime() float64 {
	if in.root == nil {
		return 0
	}
	return in.root.stateTime
}

// Start enters the initial state. It is called by the first Tick when the
// host has not called it.
func (in *Instance) Start() {
	if in.started {
		return
	}
	in.started = true
	in.root = &level{graph: in.graph, active: in.graph.Initial}
	in.enter(in.root)
	in.notify(Transition{Graph: in.graph.Name, To: in.root.state().ID, Connection: -1, Tick: in.tick})
}

// Tick advances the instance by one fixed simulation step: the deepest
// sub-graph runs first, then each level runs its update behaviours and at
// most one of its connections fires.
func (in *Instance) Tick(dt float64) {
	in.tick++
	in.params.BeginTick(in.tick)
	if !in.started {
		in.Start()
	}
	in.step(in.root, dt)
	in.params.EndTick()
}

// ForceState performs an external transition of the root graph, running exit
// and entry behaviours as a connection would.
func (in *Instance) ForceState(id StateID) error {
	target, ok := in.graph.Index(id)
	if !ok {
		return fmt.Errorf("%w: %q in graph %q", ErrUnknownState, id, in.graph.Name)
	}
	if !in.started {
		in.Start()
	}
	in.transition(in.root, target, -1)
	return nil
}

func (in *Instance) step(l *level, dt float64) {
	if l.sub != nil {
		in.step(l.sub, dt)
	}

	l.stateTime += dt
	l.stateTicks++

	st := l.state()
	actx := in.actionContext(l, PhaseUpdate)
	for _, i := range st.update {
		b := &st.Behaviours[i]
		safeHook(actx, b, func() { b.Behaviour.Update(actx, dt) })
	}

	ectx := in.evalContext(l)
	for ci := range st.Connections {
		c := &st.Connections[ci]
		if in.connectionSatisfied(ectx, c) {
			in.transition(l, c.Target, ci)
			return
		}
	}
}

func (in *Instance) connectionSatisfied(ctx *EvalContext, c *Connection) bool {
	if len(c.Groups) == 0 {
		return true
	}
	satisfied := false
	for _, g := range c.Groups {
		if satisfied {
			if in.policy != ShortCircuit && g.WritesOutputs() {
				in.refreshOutputs(ctx, g)
			}
			continue
		}
		if in.groupValue(ctx, g) {
			satisfied = true
		}
	}
	return satisfied
}

// refreshOutputs keeps g's side channels current without deciding its
// boolean. A group already evaluated this tick has written them.
func (in *Instance) refreshOutputs(ctx *EvalContext, g *Group) {
	if g.ID != "" {
		if entry := in.cache[g.ID]; entry != nil && entry.valid && entry.tick == in.tick {
			return
		}
	}
	g.refreshOutputs(ctx)
}

// groupValue evaluates g at most once per tick.
func (in *Instance) groupValue(ctx *EvalContext, g *Group) bool {
	if g.ID == "" {
		return g.evaluate(ctx, in.policy)
	}
	entry := in.cache[g.ID]
	if entry == nil {
		entry = &groupCache{}
		in.cache[g.ID] = entry
	}
	if entry.valid && entry.tick == in.tick {
		if entry.evaluating {
			in.logger.Warn("cyclic condition group reference", zap.String("group", string(g.ID)))
			return false
		}
		return entry.value
	}
	entry.valid = true
	entry.tick = in.tick
	entry.evaluating = true
	entry.value = g.evaluate(ctx, in.policy)
	entry.evaluating = false
	return entry.value
}

// groupByID backs EvalContext.GroupResult.
func (in *Instance) groupByID(ctx *EvalContext, id GroupID) bool {
	g, ok := in.groups[id]
	if !ok {
		in.logger.Warn("unknown condition group reference", zap.String("group", string(id)))
		return false
	}
	return in.groupValue(ctx, g)
}

// transition atomically exits the active state of l (and its sub-graph chain,
// deepest first) and enters target. Nothing else is evaluated in between.
func (in *Instance) transition(l *level, target int, connection int) {
	from := l.state().ID
	in.exit(l)
	l.active = target
	l.stateTime = 0
	l.stateTicks = 0
	l.sub = nil
	in.enter(l)
	in.notify(Transition{
		Graph:      l.graph.Name,
		Depth:      l.depth,
		From:       from,
		To:         l.state().ID,
		Connection: connection,
		Tick:       in.tick,
	})
}

func (in *Instance) exit(l *level) {
	if l.sub != nil {
		in.exit(l.sub)
		l.sub = nil
	}
	st := l.state()
	actx := in.actionContext(l, PhaseExit)
	for _, i := range st.exit {
		b := &st.Behaviours[i]
		safeHook(actx, b, func() { b.Behaviour.OnExit(actx) })
	}
}

// enter resets non-persistent runtime state, runs the entry behaviours and
// then starts the state's sub-graph from its initial state.
func (in *Instance) enter(l *level) {
	st := l.state()
	in.resetRuntime(st)
	actx := in.actionContext(l, PhaseEnter)
	for _, i := range st.enter {
		b := &st.Behaviours[i]
		safeHook(actx, b, func() { b.Behaviour.OnEnter(actx) })
	}
	if st.Sub != nil {
		l.sub = &level{graph: st.Sub, depth: l.depth + 1, active: st.Sub.Initial}
		in.enter(l.sub)
	}
}

func (in *Instance) resetRuntime(st *State) {
	for i := range st.Behaviours {
		b := &st.Behaviours[i]
		if b.Persistent {
			continue
		}
		if r, ok := b.Behaviour.(Resetter); ok {
			r.Reset()
		}
	}
	for _, c := range st.Connections {
		for _, g := range c.Groups {
			g.reset()
		}
	}
}

func (in *Instance) actionContext(l *level, phase Phase) *ActionContext {
	return &ActionContext{
		Services:   in.services,
		Params:     in.params,
		Logger:     in.logger,
		State:      l.state().ID,
		StateTime:  l.stateTime,
		StateTicks: l.stateTicks,
		Tick:       in.tick,
		Phase:      phase,
	}
}

func (in *Instance) evalContext(l *level) *EvalContext {
	ctx := &EvalContext{
		Services:   in.services,
		Params:     in.params,
		Logger:     in.logger,
		State:      l.state().ID,
		StateTime:  l.stateTime,
		StateTicks: l.stateTicks,
		Tick:       in.tick,
	}
	ctx.groups = func(id GroupID) bool { return in.groupByID(ctx, id) }
	return ctx
}

func (in *Instance) notify(t Transition) {
	if t.Depth == 0 {
		in.logger.Debug("state transition",
			zap.String("from", string(t.From)),
			zap.String("to", string(t.To)),
			zap.Uint64("tick", t.Tick))
	}
	for _, fn := range in.observers {
		fn(t)
	}
}
