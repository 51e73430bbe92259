// Package sim drives a graph instance headlessly from a scripted timeline of
// inputs and records what it did.
package sim

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/milk9111/motiongraph/common"
	"github.com/milk9111/motiongraph/graphs"
	"github.com/milk9111/motiongraph/motion"
)

// Timeline is a sequence of input steps. Each step applies its inputs and
// then ticks the instance Ticks times.
type Timeline struct {
	Graph string  `yaml:"graph"`
	DT    float64 `yaml:"dt"`
	Steps []Step  `yaml:"steps"`
}

type Step struct {
	Ticks int                  `yaml:"ticks"`
	Set   map[string]yaml.Node `yaml:"set"`
	Fire  []string             `yaml:"fire"`
	Body  *BodyState           `yaml:"body"`
	// Complete marks named operations as finished from this step on.
	Complete []string `yaml:"complete"`
	// Force performs an external transition before ticking.
	Force string `yaml:"force"`
}

type BodyState struct {
	Grounded *bool        `yaml:"grounded"`
	Water    *bool        `yaml:"water"`
	Position *common.Vec3 `yaml:"position"`
	Velocity *common.Vec3 `yaml:"velocity"`
}

func LoadTimeline(path string) (*Timeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("sim: load %s: %w", path, err)
	}
	return ParseTimeline(data)
}

func ParseTimeline(data []byte) (*Timeline, error) {
	var tl Timeline
	if err := yaml.Unmarshal(data, &tl); err != nil {
		return nil, fmt.Errorf("sim: unmarshal timeline: %w", err)
	}
	if tl.DT <= 0 {
		tl.DT = 1.0 / 60
	}
	return &tl, nil
}

// Body is a scripted motion.Body. Impulses are recorded, not integrated.
type Body struct {
	grounded bool
	water    bool
	position common.Vec3
	velocity common.Vec3
	Impulses []common.Vec3
}

func (b *Body) Position() common.Vec3            { return b.position }
func (b *Body) Velocity() common.Vec3            { return b.velocity }
func (b *Body) ApplyImpulse(impulse common.Vec3) { b.Impulses = append(b.Impulses, impulse) }
func (b *Body) Grounded() bool                   { return b.grounded }
func (b *Body) InWater() bool                    { return b.water }

func (b *Body) apply(s *BodyState) {
	if s == nil {
		return
	}
	if s.Grounded != nil {
		b.grounded = *s.Grounded
	}
	if s.Water != nil {
		b.water = *s.Water
	}
	if s.Position != nil {
		b.position = *s.Position
	}
	if s.Velocity != nil {
		b.velocity = *s.Velocity
	}
}

// Operations is a set of completed operation names.
type Operations map[string]bool

func (o Operations) Completed(name string) bool { return o[name] }

// Result is what a run produced.
type Result struct {
	Transitions []motion.Transition
	Final       []motion.StateID
	Ticks       uint64
	Params      map[string]string
}

// Runner owns the instance a timeline drives, so a run can be continued or
// snapshotted afterwards.
type Runner struct {
	Instance *motion.Instance
	Body     *Body
	Ops      Operations

	transitions []motion.Transition
}

// NewRunner builds an instance of def wired to a scripted body.
func NewRunner(def *graphs.Definition, services motion.Services, opts motion.Options) (*Runner, error) {
	r := &Runner{Body: &Body{grounded: true}, Ops: Operations{}}
	if services.Body == nil {
		services.Body = r.Body
	}
	if services.Operations == nil {
		services.Operations = r.Ops
	}
	in, err := def.NewInstance(services, opts)
	if err != nil {
		return nil, err
	}
	in.OnTransition(func(t motion.Transition) {
		r.transitions = append(r.transitions, t)
	})
	r.Instance = in
	return r, nil
}

// Run plays tl. Unknown parameters and bad values stop the run.
func (r *Runner) Run(tl *Timeline) (*Result, error) {
	store := r.Instance.Params()
	for i, st := range tl.Steps {
		r.Body.apply(st.Body)
		for _, name := range st.Complete {
			r.Ops[name] = true
		}
		names := make([]string, 0, len(st.Set))
		for name := range st.Set {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			id, ok := store.ID(name)
			if !ok {
				return nil, fmt.Errorf("sim: step %d: unknown parameter %q", i, name)
			}
			def, _ := store.Def(id)
			node := st.Set[name]
			v, err := graphs.ParseValue(def.Type, &node)
			if err != nil {
				return nil, fmt.Errorf("sim: step %d: %s: %w", i, name, err)
			}
			if def.Type.Pulse() {
				store.SetBool(id, v.Bool)
				continue
			}
			store.SetValue(id, v)
		}
		for _, name := range st.Fire {
			id, ok := store.ID(name)
			if !ok {
				return nil, fmt.Errorf("sim: step %d: unknown parameter %q", i, name)
			}
			store.Fire(id)
		}
		if st.Force != "" {
			if err := r.Instance.ForceState(motion.StateID(st.Force)); err != nil {
				return nil, fmt.Errorf("sim: step %d: %w", i, err)
			}
		}
		ticks := st.Ticks
		if ticks <= 0 {
			ticks = 1
		}
		for n := 0; n < ticks; n++ {
			r.Instance.Tick(tl.DT)
		}
	}
	return r.result(), nil
}

func (r *Runner) result() *Result {
	res := &Result{
		Transitions: append([]motion.Transition(nil), r.transitions...),
		Final:       r.Instance.ActivePath(),
		Ticks:       r.Instance.TickCount(),
		Params:      make(map[string]string),
	}
	store := r.Instance.Params()
	for _, d := range store.Defs() {
		res.Params[d.Name] = store.Peek(d.ID).String()
	}
	return res
}
