package motion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/milk9111/motiongraph/common"
)

const (
	pSpeed ParamID = iota + 1
	pCount
	pGrounded
	pAim
	pTarget
	pJump
	pLanded
)

func testDefs() []ParamDef {
	return []ParamDef{
		{ID: pSpeed, Name: "speed", Type: ParamFloat, Default: FloatValue(1.5)},
		{ID: pCount, Name: "count", Type: ParamInt},
		{ID: pGrounded, Name: "grounded", Type: ParamSwitch, Default: BoolValue(true)},
		{ID: pAim, Name: "aim", Type: ParamVector},
		{ID: pTarget, Name: "target", Type: ParamEntity},
		{ID: pJump, Name: "jump", Type: ParamTrigger},
		{ID: pLanded, Name: "landed", Type: ParamEvent},
	}
}

func newTestStore(t *testing.T) (*Store, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.WarnLevel)
	s, err := NewStore(testDefs(), zap.New(core))
	require.NoError(t, err)
	return s, logs
}

func TestStoreDefaultsAndPlainCells(t *testing.T) {
	s, _ := newTestStore(t)

	assert.Equal(t, 1.5, s.Float(pSpeed))
	assert.True(t, s.Bool(pGrounded))

	s.SetFloat(pSpeed, 3)
	s.SetInt(pCount, 4)
	s.SetVector(pAim, common.V3(1, 2, 3))
	s.SetEntity(pTarget, 42)
	s.SetBool(pGrounded, false)

	assert.Equal(t, 3.0, Get[float64](s, pSpeed))
	assert.Equal(t, 4, Get[int](s, pCount))
	assert.Equal(t, common.V3(1, 2, 3), Get[common.Vec3](s, pAim))
	assert.Equal(t, common.EntityRef(42), Get[common.EntityRef](s, pTarget))
	assert.False(t, Get[bool](s, pGrounded), "switches hold until flipped")

	Set(s, pCount, 9)
	assert.Equal(t, 9, s.Int(pCount))

	s.Reset(pSpeed)
	assert.Equal(t, 1.5, s.Float(pSpeed))

	id, ok := s.ID("count")
	require.True(t, ok)
	assert.Equal(t, pCount, id)
}

func TestStoreTriggerPulse(t *testing.T) {
	s, _ := newTestStore(t)

	s.BeginTick(1)
	s.Fire(pJump)
	s.Fire(pJump) // coalesces
	assert.True(t, s.Bool(pJump), "first read observes the pulse")
	assert.False(t, s.Bool(pJump), "second read in the same tick is cleared")
	s.EndTick()

	s.BeginTick(2)
	assert.False(t, s.Bool(pJump), "no pulse on the next tick without a new fire")
	s.EndTick()

	t.Run("armed_until_read", func(t *testing.T) {
		s.BeginTick(3)
		Set(s, pJump, true)
		s.EndTick()
		s.BeginTick(4)
		assert.True(t, s.Consume(pJump), "a trigger waits for its first read")
		assert.False(t, s.Consume(pJump))
	})

	t.Run("peek_does_not_consume", func(t *testing.T) {
		s.Fire(pJump)
		assert.True(t, s.Peek(pJump).Bool)
		assert.True(t, s.Consume(pJump))
	})
}

func TestStoreEventClearsAtEndOfTick(t *testing.T) {
	s, _ := newTestStore(t)

	s.BeginTick(1)
	s.Fire(pLanded)
	s.EndTick()
	s.BeginTick(2)
	assert.False(t, s.Consume(pLanded), "unread events do not outlive their tick")

	s.Fire(pLanded)
	assert.True(t, s.Consume(pLanded))
	assert.False(t, s.Consume(pLanded))
}

func TestStoreMissingAndMismatchedReads(t *testing.T) {
	s, logs := newTestStore(t)

	assert.NotPanics(t, func() {
		assert.Equal(t, 0.0, s.Float(99))
		assert.Equal(t, 0.0, s.Float(99))
		assert.Equal(t, 0, s.Int(pSpeed))
		assert.False(t, s.Bool(99))
		s.SetFloat(99, 1)
		s.Fire(pSpeed)
	})

	assert.Equal(t, 1.5, s.Float(pSpeed), "mismatched writes are dropped")
	byProblem := map[string]int{}
	for _, e := range logs.All() {
		byProblem[e.ContextMap()["problem"].(string)]++
	}
	assert.Equal(t, 1, byProblem["read of unknown parameter"], "diagnostics are reported once")
	assert.Equal(t, 1, byProblem["read as int of float parameter"])
	assert.Equal(t, 1, byProblem["fire of non-pulse parameter"])
}

func TestStoreSubscribe(t *testing.T) {
	s, _ := newTestStore(t)

	var seen []float64
	unsubscribe := s.Subscribe(pSpeed, func(id ParamID, old, new Value) {
		assert.Equal(t, pSpeed, id)
		seen = append(seen, new.Float)
	})
	s.SetFloat(pSpeed, 2)
	s.SetFloat(pSpeed, 2) // unchanged, not reported
	s.SetFloat(pSpeed, 4)
	unsubscribe()
	s.SetFloat(pSpeed, 8)

	assert.Equal(t, []float64{2, 4}, seen)
}

func TestNewStoreRejectsDuplicates(t *testing.T) {
	_, err := NewStore([]ParamDef{
		{ID: 1, Name: "a", Type: ParamFloat},
		{ID: 1, Name: "b", Type: ParamFloat},
	}, nil)
	assert.ErrorIs(t, err, ErrDuplicateParam)

	_, err = NewStore([]ParamDef{
		{ID: 1, Name: "a", Type: ParamFloat},
		{ID: 2, Name: "a", Type: ParamInt},
	}, nil)
	assert.ErrorIs(t, err, ErrDuplicateParam)
}
