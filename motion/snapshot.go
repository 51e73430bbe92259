package motion

import (
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
)

// Snapshot is the persisted state of an instance: the active state chain,
// every non-event parameter and the runtime state of persistent behaviours.
type Snapshot struct {
	Graph      string                     `json:"graph"`
	Started    bool                       `json:"started"`
	Tick       uint64                     `json:"tick"`
	Active     *ActiveState               `json:"active,omitempty"`
	Params     []ParamSnapshot            `json:"params"`
	Behaviours map[string]json.RawMessage `json:"behaviours,omitempty"`
}

// ActiveState is one level of the active chain.
type ActiveState struct {
	State      StateID      `json:"state"`
	StateTime  float64      `json:"state_time"`
	StateTicks int          `json:"state_ticks"`
	Sub        *ActiveState `json:"sub,omitempty"`
}

type ParamSnapshot struct {
	ID    ParamID `json:"id"`
	Name  string  `json:"name,omitempty"`
	Value Value   `json:"value"`
}

// Snapshot captures the instance between ticks.
func (in *Instance) Snapshot() (*Snapshot, error) {
	snap := &Snapshot{
		Graph:   in.graph.Name,
		Started: in.started,
		Tick:    in.tick,
	}
	for _, d := range in.params.Defs() {
		if d.Type == ParamEvent {
			continue
		}
		v, _ := in.params.Value(d.ID)
		snap.Params = append(snap.Params, ParamSnapshot{ID: d.ID, Name: d.Name, Value: v})
	}
	if !in.started {
		return snap, nil
	}

	tail := &snap.Active
	for l := in.root; l != nil; l = l.sub {
		as := &ActiveState{State: l.state().ID, StateTime: l.stateTime, StateTicks: l.stateTicks}
		*tail = as
		tail = &as.Sub
	}

	err := walkPersistent(in.graph, func(key string, p Persister) error {
		data, err := p.MarshalState()
		if err != nil {
			return fmt.Errorf("motion: snapshot behaviour %s: %w", key, err)
		}
		if snap.Behaviours == nil {
			snap.Behaviours = make(map[string]json.RawMessage)
		}
		snap.Behaviours[key] = data
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// Restore replaces the instance's state with snap without running any entry
// or exit behaviours. Parameters unknown to the graph, or whose type changed,
// are skipped with a diagnostic so older saves keep loading. A snapshot taken
// before the instance started leaves it stopped, so the next Tick enters the
// initial state normally. A failed Restore leaves the instance unchanged.
func (in *Instance) Restore(snap *Snapshot) error {
	if snap == nil {
		return fmt.Errorf("motion: nil snapshot")
	}
	var (
		root  *level
		fresh []*level
	)
	if snap.Started {
		if snap.Active == nil {
			return fmt.Errorf("motion: started snapshot without active state")
		}
		var err error
		root, err = in.restoreLevel(in.graph, snap.Active, 0, &fresh)
		if err != nil {
			return err
		}
	}

	if err := in.restoreBehaviours(snap.Behaviours); err != nil {
		return err
	}

	in.params.ResetAll()
	for _, p := range snap.Params {
		d, ok := in.params.Def(p.ID)
		if !ok {
			in.logger.Warn("snapshot parameter not in graph", zap.Int("param", int(p.ID)), zap.String("name", p.Name))
			continue
		}
		if d.Type != p.Value.Type {
			in.logger.Warn("snapshot parameter type changed",
				zap.Int("param", int(p.ID)),
				zap.Stringer("saved", p.Value.Type),
				zap.Stringer("defined", d.Type))
			continue
		}
		in.params.SetValue(p.ID, p.Value)
	}

	in.root = root
	in.started = snap.Started
	in.tick = snap.Tick
	in.params.BeginTick(snap.Tick)
	in.cache = make(map[GroupID]*groupCache)
	for _, l := range fresh {
		in.enter(l)
	}
	return nil
}

// restoreBehaviours applies saved behaviour state. If any behaviour rejects
// its payload, the ones already applied are put back as they were.
func (in *Instance) restoreBehaviours(saved map[string]json.RawMessage) error {
	type applied struct {
		p    Persister
		prev json.RawMessage
	}
	var done []applied
	rollback := func() {
		for i := len(done) - 1; i >= 0; i-- {
			if err := done[i].p.UnmarshalState(done[i].prev); err != nil {
				in.logger.Error("behaviour state rollback failed", zap.Error(err))
			}
		}
	}
	err := walkPersistent(in.graph, func(key string, p Persister) error {
		data, ok := saved[key]
		if !ok {
			return nil
		}
		prev, err := p.MarshalState()
		if err != nil {
			return fmt.Errorf("motion: restore behaviour %s: %w", key, err)
		}
		if err := p.UnmarshalState(data); err != nil {
			return fmt.Errorf("motion: restore behaviour %s: %w", key, err)
		}
		done = append(done, applied{p: p, prev: prev})
		return nil
	})
	if err != nil {
		rollback()
	}
	return err
}

func (in *Instance) restoreLevel(g *Graph, as *ActiveState, depth int, fresh *[]*level) (*level, error) {
	idx, ok := g.Index(as.State)
	if !ok {
		return nil, fmt.Errorf("%w: saved state %q in graph %q", ErrUnknownState, as.State, g.Name)
	}
	l := &level{graph: g, depth: depth, active: idx, stateTime: as.StateTime, stateTicks: as.StateTicks}
	st := g.States[idx]
	if st.Sub == nil {
		return l, nil
	}
	if as.Sub == nil {
		// the saved graph had no sub-graph here; it is entered once the
		// parameters are restored
		l.sub = &level{graph: st.Sub, depth: depth + 1, active: st.Sub.Initial}
		*fresh = append(*fresh, l.sub)
		return l, nil
	}
	sub, err := in.restoreLevel(st.Sub, as.Sub, depth+1, fresh)
	if err != nil {
		return nil, err
	}
	l.sub = sub
	return l, nil
}

// walkPersistent visits persistent behaviours that can save their state, in
// a stable order, keyed by graph/state#index.
func walkPersistent(g *Graph, fn func(key string, p Persister) error) error {
	for _, st := range g.States {
		for i := range st.Behaviours {
			b := &st.Behaviours[i]
			if !b.Persistent {
				continue
			}
			p, ok := b.Behaviour.(Persister)
			if !ok {
				continue
			}
			if err := fn(fmt.Sprintf("%s/%s#%d", g.Name, st.ID, i), p); err != nil {
				return err
			}
		}
		if st.Sub != nil {
			if err := walkPersistent(st.Sub, fn); err != nil {
				return err
			}
		}
	}
	return nil
}
