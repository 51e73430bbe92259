package motion

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const dt = 1.0 / 60

// recorder appends "<name>:<hook>" to a shared log and runs optional hooks.
type recorder struct {
	name   string
	log    *[]string
	enter  func(ctx *ActionContext)
	exit   func(ctx *ActionContext)
	update func(ctx *ActionContext, dt float64)
	resets int
}

func (r *recorder) OnEnter(ctx *ActionContext) {
	*r.log = append(*r.log, r.name+":enter")
	if r.enter != nil {
		r.enter(ctx)
	}
}

func (r *recorder) OnExit(ctx *ActionContext) {
	*r.log = append(*r.log, r.name+":exit")
	if r.exit != nil {
		r.exit(ctx)
	}
}

func (r *recorder) Update(ctx *ActionContext, dt float64) {
	*r.log = append(*r.log, r.name+":update")
	if r.update != nil {
		r.update(ctx, dt)
	}
}

func (r *recorder) Reset() { r.resets++ }

func boolCond(v *bool) Condition {
	return ConditionFunc(func(*EvalContext) bool { return *v })
}

func switchCond(id ParamID) Condition {
	return ConditionFunc(func(ctx *EvalContext) bool { return ctx.Params.Bool(id) })
}

// outputCond writes val to id every time it is evaluated and returns result.
type outputCond struct {
	id     ParamID
	val    float64
	result bool
	calls  int
}

func (c *outputCond) Evaluate(ctx *EvalContext) bool {
	c.calls++
	ctx.Params.SetFloat(c.id, c.val)
	return c.result
}

func (c *outputCond) WritesOutputs() bool { return true }

func newInstance(t *testing.T, g *Graph, opts Options) *Instance {
	t.Helper()
	in, err := NewInstance(g, Services{}, opts)
	require.NoError(t, err)
	return in
}

func TestOrOfAndEvaluation(t *testing.T) {
	cases := []struct {
		a, b, c bool
		fires   bool
	}{
		{true, false, true, true},
		{true, false, false, false},
		{true, true, false, true},
		{false, true, false, false},
		{false, false, true, true},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("a=%v_b=%v_c=%v", tc.a, tc.b, tc.c), func(t *testing.T) {
			a, b, c := tc.a, tc.b, tc.c
			g := NewGraph("or_of_and", nil)
			g.MustState("idle")
			g.MustState("moving")
			require.NoError(t, g.Connect("idle", "moving",
				NewGroup("g1", boolCond(&a), boolCond(&b)),
				NewGroup("g2", boolCond(&c)),
			))

			in := newInstance(t, g, Options{})
			in.Tick(dt)

			want := StateID("idle")
			if tc.fires {
				want = "moving"
			}
			assert.Equal(t, want, in.Active())
		})
	}
}

func TestFirstMatchWins(t *testing.T) {
	var log []string
	yes := true
	g := NewGraph("first_match", nil)
	g.MustState("idle")
	g.MustState("run").AddBehaviour(&recorder{name: "run", log: &log}, OnEnter, false)
	g.MustState("jump").AddBehaviour(&recorder{name: "jump", log: &log}, OnEnter, false)
	require.NoError(t, g.Connect("idle", "run", NewGroup("c1", boolCond(&yes))))
	require.NoError(t, g.Connect("idle", "jump", NewGroup("c2", boolCond(&yes))))

	in := newInstance(t, g, Options{})
	var transitions []Transition
	in.OnTransition(func(tr Transition) { transitions = append(transitions, tr) })
	in.Tick(dt)

	assert.Equal(t, StateID("run"), in.Active())
	assert.Equal(t, []string{"run:enter"}, log)
	require.Len(t, transitions, 2, "start plus one transition")
	assert.Equal(t, 0, transitions[1].Connection)
}

func TestAtomicTransitionOrdering(t *testing.T) {
	defs := []ParamDef{
		{ID: 1, Name: "handoff", Type: ParamFloat},
		{ID: 2, Name: "go", Type: ParamSwitch},
	}
	var log []string
	var seenOnEnter float64

	g := NewGraph("atomic", defs)
	a := g.MustState("a")
	a.AddBehaviour(&recorder{name: "a1", log: &log, exit: func(ctx *ActionContext) {
		ctx.Params.SetFloat(1, 7.5)
	}}, OnExit, false)
	a.AddBehaviour(&recorder{name: "a2", log: &log}, OnEnterAndExit, false)
	b := g.MustState("b")
	b.AddBehaviour(&recorder{name: "b1", log: &log, enter: func(ctx *ActionContext) {
		seenOnEnter = ctx.Params.Float(1)
	}}, OnEnter, false)
	b.AddBehaviour(&recorder{name: "b2", log: &log}, OnEnterAndExit, false)
	require.NoError(t, g.Connect("a", "b", NewGroup("go", switchCond(2))))

	in := newInstance(t, g, Options{})
	in.Tick(dt)
	log = nil

	in.Params().SetBool(2, true)
	in.Tick(dt)

	assert.Equal(t, []string{"a1:exit", "a2:exit", "b1:enter", "b2:enter"}, log)
	assert.Equal(t, 7.5, seenOnEnter, "exit writes are visible to entry behaviours in the same tick")
}

func TestSingleActiveStateAcrossTicks(t *testing.T) {
	defs := []ParamDef{{ID: 1, Name: "flip", Type: ParamTrigger}}
	g := NewGraph("pingpong", defs)
	g.MustState("a")
	g.MustState("b")
	inner := NewGraph("pingpong/b", nil)
	inner.MustState("x")
	inner.MustState("y")
	require.NoError(t, inner.Connect("x", "y", NewGroup("xy")))
	require.NoError(t, inner.Connect("y", "x", NewGroup("yx")))
	g.States[1].Sub = inner
	require.NoError(t, g.Connect("a", "b", NewGroup("ab", switchCond(1))))
	require.NoError(t, g.Connect("b", "a", NewGroup("ba", switchCond(1))))

	in := newInstance(t, g, Options{})
	for i := 0; i < 50; i++ {
		if i%3 == 0 {
			in.Params().Fire(1)
		}
		in.Tick(dt)

		path := in.ActivePath()
		switch in.Active() {
		case "a":
			assert.Len(t, path, 1)
		case "b":
			require.Len(t, path, 2, "a state with a sub-graph has exactly one live child")
			assert.Contains(t, []StateID{"x", "y"}, path[1])
		default:
			t.Fatalf("unexpected active state %q", in.Active())
		}
	}
}

func TestSubGraphOrdering(t *testing.T) {
	defs := []ParamDef{{ID: 1, Name: "leave", Type: ParamSwitch}}
	var log []string

	inner := NewGraph("outer/air", nil)
	inner.MustState("rise").AddBehaviour(&recorder{name: "rise", log: &log}, OnEnterAndExit|Continuous, false)

	g := NewGraph("outer", defs)
	air := g.MustState("air")
	air.AddBehaviour(&recorder{name: "air", log: &log}, OnEnterAndExit|Continuous, false)
	air.Sub = inner
	g.MustState("ground").AddBehaviour(&recorder{name: "ground", log: &log}, OnEnter, false)
	require.NoError(t, g.Connect("air", "ground", NewGroup("land", switchCond(1))))

	in := newInstance(t, g, Options{})
	in.Start()
	assert.Equal(t, []string{"air:enter", "rise:enter"}, log, "parent enters before its sub-graph")
	assert.Equal(t, []StateID{"air", "rise"}, in.ActivePath())

	log = nil
	in.Tick(dt)
	assert.Equal(t, []string{"rise:update", "air:update"}, log, "deepest level ticks first")

	log = nil
	in.Params().SetBool(1, true)
	in.Tick(dt)
	assert.Equal(t, []string{"rise:update", "air:update", "rise:exit", "air:exit", "ground:enter"}, log,
		"sub-graph exits before its owner")
	assert.Equal(t, []StateID{"ground"}, in.ActivePath())
}

func TestTerminalStateKeepsUpdating(t *testing.T) {
	var log []string
	g := NewGraph("sink", nil)
	g.MustState("loop").AddBehaviour(&recorder{name: "loop", log: &log}, Continuous, false)

	in := newInstance(t, g, Options{})
	for i := 0; i < 5; i++ {
		in.Tick(dt)
	}
	assert.Len(t, log, 5)
	assert.Equal(t, StateID("loop"), in.Active())
	assert.InDelta(t, 5*dt, in.StateTime(), 1e-9)
}

func TestUnconditionalConnectionAndSelfLoop(t *testing.T) {
	var log []string
	g := NewGraph("loop", nil)
	st := g.MustState("again")
	st.AddBehaviour(&recorder{name: "again", log: &log}, OnEnter, false)
	require.NoError(t, g.Connect("again", "again"))

	in := newInstance(t, g, Options{})
	in.Tick(dt)
	in.Tick(dt)
	assert.Equal(t, []string{"again:enter", "again:enter", "again:enter"}, log)
}

func TestRuntimeResetOnEntryUnlessPersistent(t *testing.T) {
	defs := []ParamDef{{ID: 1, Name: "toggle", Type: ParamTrigger}}
	var log []string
	plain := &recorder{name: "plain", log: &log}
	kept := &recorder{name: "kept", log: &log}

	g := NewGraph("reset", defs)
	g.MustState("a")
	b := g.MustState("b")
	b.AddBehaviour(plain, Continuous, false)
	b.AddBehaviour(kept, Continuous, true)
	require.NoError(t, g.Connect("a", "b", NewGroup("ab", switchCond(1))))
	require.NoError(t, g.Connect("b", "a", NewGroup("ba", switchCond(1))))

	in := newInstance(t, g, Options{})
	for i := 0; i < 4; i++ {
		in.Params().Fire(1)
		in.Tick(dt)
	}
	assert.Equal(t, 2, plain.resets)
	assert.Equal(t, 0, kept.resets)
}

func TestSideChannelPolicies(t *testing.T) {
	defs := []ParamDef{{ID: 1, Name: "hit_height", Type: ParamFloat}}
	build := func() (*Graph, *outputCond, *outputCond) {
		no := false
		inGroup := &outputCond{id: 1, val: 2, result: true}
		laterGroup := &outputCond{id: 1, val: 5, result: false}
		g := NewGraph("side", defs)
		g.MustState("a")
		g.MustState("b")
		_ = g.Connect("a", "b",
			NewGroup("blocked", boolCond(&no), inGroup),
			NewGroup("later", laterGroup),
		)
		return g, inGroup, laterGroup
	}

	t.Run("fresh", func(t *testing.T) {
		g, inGroup, laterGroup := build()
		in := newInstance(t, g, Options{SideChannels: FreshSideChannels})
		in.Tick(dt)
		assert.Equal(t, 1, inGroup.calls, "output writers run after the group is already false")
		assert.Equal(t, 1, laterGroup.calls)
		assert.Equal(t, 5.0, in.Params().Float(1), "last write in declared order wins")
		assert.Equal(t, StateID("a"), in.Active())
	})

	t.Run("short_circuit", func(t *testing.T) {
		g, inGroup, laterGroup := build()
		in := newInstance(t, g, Options{SideChannels: ShortCircuit})
		in.Tick(dt)
		assert.Equal(t, 0, inGroup.calls, "side channel left stale")
		assert.Equal(t, 1, laterGroup.calls)
		assert.Equal(t, 5.0, in.Params().Float(1))
	})

	t.Run("satisfied_group_skips_rest_when_short_circuit", func(t *testing.T) {
		defs := []ParamDef{{ID: 1, Name: "out", Type: ParamFloat}}
		yes := true
		later := &outputCond{id: 1, val: 3, result: true}
		g := NewGraph("side2", defs)
		g.MustState("a")
		g.MustState("b")
		require.NoError(t, g.Connect("a", "b", NewGroup("first", boolCond(&yes)), NewGroup("second", later)))
		in := newInstance(t, g, Options{SideChannels: ShortCircuit})
		in.Tick(dt)
		assert.Equal(t, 0, later.calls)
		assert.Equal(t, StateID("b"), in.Active())
	})

	t.Run("decided_connection_keeps_pulses", func(t *testing.T) {
		defs := []ParamDef{
			{ID: 1, Name: "out", Type: ParamFloat},
			{ID: 2, Name: "jump", Type: ParamTrigger},
		}
		jump := ConditionFunc(func(ctx *EvalContext) bool { return ctx.Params.Consume(2) })
		for _, policy := range []SideChannelPolicy{FreshSideChannels, ShortCircuit} {
			yes := true
			writer := &outputCond{id: 1, val: 4, result: true}
			g := NewGraph("pulse", defs)
			g.MustState("a")
			g.MustState("b")
			g.MustState("jumped")
			require.NoError(t, g.Connect("a", "b",
				NewGroup("always", boolCond(&yes)),
				NewGroup("jump_out", jump, writer),
			))
			require.NoError(t, g.Connect("b", "jumped", NewGroup("jump_in", jump)))

			in := newInstance(t, g, Options{SideChannels: policy})
			in.Params().Fire(2)
			in.Tick(dt)
			in.Tick(dt)
			assert.Equal(t, StateID("jumped"), in.Active(), "policy %d", policy)
			if policy == FreshSideChannels {
				assert.Equal(t, 1, writer.calls, "side channel refreshed once")
				assert.Equal(t, 4.0, in.Params().Float(1))
			} else {
				assert.Equal(t, 0, writer.calls)
			}
		}
	})
}

func TestLastWriteWinsAcrossConnections(t *testing.T) {
	defs := []ParamDef{{ID: 1, Name: "normal_y", Type: ParamFloat}}
	first := &outputCond{id: 1, val: 1, result: false}
	second := &outputCond{id: 1, val: 2, result: false}
	g := NewGraph("shared_output", defs)
	g.MustState("a")
	g.MustState("b")
	g.MustState("c")
	require.NoError(t, g.Connect("a", "b", NewGroup("ab", first)))
	require.NoError(t, g.Connect("a", "c", NewGroup("ac", second)))

	in := newInstance(t, g, Options{})
	in.Tick(dt)
	assert.Equal(t, 2.0, in.Params().Float(1), "the later connection's write is final")

	first.result = true
	in.Tick(dt)
	assert.Equal(t, 1.0, in.Params().Float(1), "connections after the first match are not evaluated")
	assert.Equal(t, 1, second.calls)
}

func TestGroupReferenceReadsCachedResult(t *testing.T) {
	counted := 0
	yes := true
	source := ConditionFunc(func(*EvalContext) bool {
		counted++
		return yes
	})
	ref := ConditionFunc(func(ctx *EvalContext) bool { return ctx.GroupResult("shared") })

	g := NewGraph("refs", nil)
	g.MustState("a")
	g.MustState("b")
	g.MustState("c")
	require.NoError(t, g.Connect("a", "b", NewGroup("uses_ref", ref)))
	require.NoError(t, g.Connect("a", "c", NewGroup("shared", source)))

	in := newInstance(t, g, Options{})
	in.Tick(dt)
	assert.Equal(t, StateID("b"), in.Active(), "the reference fires its own connection only")
	assert.Equal(t, 1, counted)

	t.Run("cycle_reads_false", func(t *testing.T) {
		g := NewGraph("cycle", nil)
		g.MustState("a")
		g.MustState("b")
		loop := ConditionFunc(func(ctx *EvalContext) bool { return !ctx.GroupResult("self") })
		require.NoError(t, g.Connect("a", "b", NewGroup("self", loop)))
		in := newInstance(t, g, Options{})
		assert.NotPanics(t, func() { in.Tick(dt) })
	})
}

func TestPanickingPluginsAreIsolated(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	var log []string
	yes := true
	boom := ConditionFunc(func(*EvalContext) bool { panic("cast service exploded") })

	g := NewGraph("isolation", nil)
	a := g.MustState("a")
	a.AddBehaviour(&recorder{name: "bad", log: &log, update: func(*ActionContext, float64) { panic("nope") }}, Continuous, false)
	a.AddBehaviour(&recorder{name: "good", log: &log}, Continuous, false)
	g.MustState("b")
	g.MustState("c")
	require.NoError(t, g.Connect("a", "b", NewGroup("boom", boom)))
	require.NoError(t, g.Connect("a", "c", NewGroup("ok", boolCond(&yes))))

	in := newInstance(t, g, Options{Logger: zap.New(core)})
	assert.NotPanics(t, func() { in.Tick(dt) })
	assert.Equal(t, []string{"bad:update", "good:update"}, log)
	assert.Equal(t, StateID("c"), in.Active(), "a panicking condition counts as false")
	assert.Equal(t, 2, logs.Len())
}

func TestMissingParameterConditionDoesNotHaltTick(t *testing.T) {
	var ticks int
	g := NewGraph("missing", nil)
	g.MustState("a").AddBehaviour(&recorder{name: "a", log: new([]string), update: func(*ActionContext, float64) { ticks++ }}, Continuous, false)
	g.MustState("b")
	// undefined parameter 7 reads as 0, so "7 > -1" holds
	require.NoError(t, g.Connect("a", "b", NewGroup("zero", ConditionFunc(func(ctx *EvalContext) bool {
		return ctx.Params.Float(7) > -1
	}))))

	in := newInstance(t, g, Options{})
	assert.NotPanics(t, func() { in.Tick(dt) })
	assert.Equal(t, 1, ticks)
	assert.Equal(t, StateID("b"), in.Active())
}

// counterBehaviour is persistent state used by the round-trip test.
type counterBehaviour struct {
	Base
	Count int `json:"count"`
	out   ParamID
}

func (c *counterBehaviour) Update(ctx *ActionContext, dt float64) {
	c.Count++
	ctx.Params.SetInt(c.out, c.Count)
}

func (c *counterBehaviour) MarshalState() (json.RawMessage, error) {
	return json.Marshal(c)
}

func (c *counterBehaviour) UnmarshalState(data json.RawMessage) error {
	return json.Unmarshal(data, c)
}

func buildRoundTripGraph(t *testing.T, log *[]string) *Graph {
	t.Helper()
	defs := []ParamDef{
		{ID: 1, Name: "move", Type: ParamSwitch},
		{ID: 2, Name: "jump", Type: ParamTrigger},
		{ID: 3, Name: "steps", Type: ParamInt},
		{ID: 4, Name: "land", Type: ParamEvent},
	}
	g := NewGraph("roundtrip", defs)
	g.MustState("idle").AddBehaviour(&recorder{name: "idle", log: log}, OnEnter, false)
	run := g.MustState("run")
	run.AddBehaviour(&recorder{name: "run", log: log}, OnEnter, false)
	run.AddBehaviour(&counterBehaviour{out: 3}, Continuous, true)
	air := g.MustState("air")
	air.AddBehaviour(&recorder{name: "air", log: log}, OnEnter, false)
	sub := NewGraph("roundtrip/air", nil)
	sub.MustState("up")
	sub.MustState("down")
	require.NoError(t, sub.Connect("up", "down", NewGroup("apex", ConditionFunc(func(ctx *EvalContext) bool {
		return ctx.StateTicks >= 2
	}))))
	air.Sub = sub

	require.NoError(t, g.Connect("idle", "run", NewGroup("start", switchCond(1))))
	require.NoError(t, g.Connect("run", "air", NewGroup("jumped", switchCond(2))))
	require.NoError(t, g.Connect("air", "idle", NewGroup("landed", ConditionFunc(func(ctx *EvalContext) bool {
		return ctx.StateTicks >= 4
	}))))
	return g
}

func driveRoundTrip(in *Instance, from, to int) []string {
	var trace []string
	in.OnTransition(func(tr Transition) {
		trace = append(trace, fmt.Sprintf("%d:%d:%s->%s", tr.Tick, tr.Depth, tr.From, tr.To))
	})
	for i := from; i < to; i++ {
		in.Params().SetBool(1, i%10 < 6)
		if i%7 == 3 {
			in.Params().Fire(2)
		}
		in.Tick(dt)
	}
	return trace
}

func TestSnapshotRoundTrip(t *testing.T) {
	var origLog, restoredLog []string
	orig := newInstance(t, buildRoundTripGraph(t, &origLog), Options{})
	driveRoundTrip(orig, 0, 12)

	snap, err := orig.Snapshot()
	require.NoError(t, err)
	data, err := json.Marshal(snap)
	require.NoError(t, err)

	var decoded Snapshot
	require.NoError(t, json.Unmarshal(data, &decoded))

	restored := newInstance(t, buildRoundTripGraph(t, &restoredLog), Options{})
	require.NoError(t, restored.Restore(&decoded))
	assert.Empty(t, restoredLog, "restore does not run entry behaviours")
	assert.Equal(t, orig.ActivePath(), restored.ActivePath())

	wantTrace := driveRoundTrip(orig, 12, 40)
	gotTrace := driveRoundTrip(restored, 12, 40)
	if diff := cmp.Diff(wantTrace, gotTrace); diff != "" {
		t.Fatalf("restored instance diverged (-want +got):\n%s", diff)
	}
	assert.Equal(t, orig.Params().Int(3), restored.Params().Int(3))

	again, err := restored.Snapshot()
	require.NoError(t, err)
	final, err := orig.Snapshot()
	require.NoError(t, err)
	if diff := cmp.Diff(final, again); diff != "" {
		t.Fatalf("snapshots differ (-orig +restored):\n%s", diff)
	}
}

func TestRestoreErrorsAndUnstarted(t *testing.T) {
	var log []string
	in := newInstance(t, buildRoundTripGraph(t, &log), Options{})

	err := in.Restore(&Snapshot{Started: true, Active: &ActiveState{State: "swimming"}})
	assert.ErrorIs(t, err, ErrUnknownState)

	snap, err := in.Snapshot()
	require.NoError(t, err)
	assert.False(t, snap.Started)
	require.NoError(t, in.Restore(snap))
	assert.False(t, in.Started())

	in.Tick(dt)
	assert.Equal(t, []string{"idle:enter"}, log, "unstarted snapshots enter on the next tick")
}

// rejectingBehaviour saves fine but refuses every saved payload.
type rejectingBehaviour struct{ Base }

func (rejectingBehaviour) MarshalState() (json.RawMessage, error) { return json.RawMessage(`{}`), nil }

func (rejectingBehaviour) UnmarshalState(json.RawMessage) error {
	return fmt.Errorf("unsupported layout")
}

func TestFailedRestoreLeavesInstanceUnchanged(t *testing.T) {
	defs := []ParamDef{{ID: 1, Name: "steps", Type: ParamInt}}
	g := NewGraph("atomic", defs)
	a := g.MustState("a")
	counter := &counterBehaviour{out: 1}
	a.AddBehaviour(counter, Continuous, true)
	a.AddBehaviour(&rejectingBehaviour{}, Continuous, true)
	g.MustState("b")

	in := newInstance(t, g, Options{})
	for i := 0; i < 3; i++ {
		in.Tick(dt)
	}
	snap, err := in.Snapshot()
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		in.Tick(dt)
	}
	require.Equal(t, 5, counter.Count)

	err = in.Restore(snap)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "atomic/a#1")
	assert.Equal(t, 5, counter.Count, "applied behaviour state is rolled back")
	assert.Equal(t, 5, in.Params().Int(1), "parameters are untouched")
	assert.Equal(t, uint64(5), in.TickCount())
}

func TestForceState(t *testing.T) {
	var log []string
	in := newInstance(t, buildRoundTripGraph(t, &log), Options{})
	require.NoError(t, in.ForceState("air"))
	assert.Equal(t, []StateID{"air", "up"}, in.ActivePath())
	assert.ErrorIs(t, in.ForceState("nowhere"), ErrUnknownState)
}

func TestValidateRejectsMalformedGraphs(t *testing.T) {
	g := NewGraph("bad", nil)
	g.MustState("a")
	g.MustState("b")
	assert.ErrorIs(t, g.Connect("a", "ghost"), ErrUnknownState)
	require.NoError(t, g.Connect("a", "b", NewGroup("dup")))
	require.NoError(t, g.Connect("b", "a", NewGroup("dup")))
	assert.ErrorIs(t, g.Validate(), ErrDuplicateGroup)

	_, err := g.AddState("a")
	assert.ErrorIs(t, err, ErrDuplicateState)

	empty := NewGraph("empty", nil)
	_, err = NewInstance(empty, Services{}, Options{})
	assert.ErrorIs(t, err, ErrNoInitialState)
}
