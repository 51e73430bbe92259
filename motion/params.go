package motion

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/milk9111/motiongraph/common"
)

// ChangeFunc observes a parameter write. old and new differ.
type ChangeFunc func(id ParamID, old, new Value)

type subscription struct {
	id int
	fn ChangeFunc
}

type diagKey struct {
	id      ParamID
	problem string
}

// Store holds the parameter values of one graph instance. It is not safe for
// concurrent use; every read and write happens on the tick goroutine.
//
// Missing ids and type mismatches never fail: reads return the zero value and
// writes are dropped, and a diagnostic is logged once per id and problem.
type Store struct {
	defs   []ParamDef
	values []Value
	slot   map[ParamID]int
	names  map[string]ParamID

	subs    map[ParamID][]subscription
	nextSub int

	tick     uint64
	logger   *zap.Logger
	reported map[diagKey]struct{}
}

// NewStore creates a store holding every definition at its default value.
func NewStore(defs []ParamDef, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{
		defs:     make([]ParamDef, 0, len(defs)),
		values:   make([]Value, 0, len(defs)),
		slot:     make(map[ParamID]int, len(defs)),
		names:    make(map[string]ParamID, len(defs)),
		subs:     make(map[ParamID][]subscription),
		logger:   logger,
		reported: make(map[diagKey]struct{}),
	}
	for _, d := range defs {
		if _, dup := s.slot[d.ID]; dup {
			return nil, fmt.Errorf("%w: id %d", ErrDuplicateParam, d.ID)
		}
		if d.Name != "" {
			if _, dup := s.names[d.Name]; dup {
				return nil, fmt.Errorf("%w: name %q", ErrDuplicateParam, d.Name)
			}
			s.names[d.Name] = d.ID
		}
		if _, ok := paramTypeNames[d.Type]; !ok {
			return nil, fmt.Errorf("motion: parameter %d has invalid type %d", d.ID, int(d.Type))
		}
		d.Default = normalizeDefault(d.Type, d.Default)
		s.slot[d.ID] = len(s.defs)
		s.defs = append(s.defs, d)
		s.values = append(s.values, d.Default)
	}
	return s, nil
}

func normalizeDefault(t ParamType, v Value) Value {
	if v.Type != t {
		v = Value{}
	}
	v.Type = t
	if t.Pulse() {
		v.Bool = false
	}
	return v
}

// Defs returns the definitions in declaration order.
func (s *Store) Defs() []ParamDef {
	return append([]ParamDef(nil), s.defs...)
}

// Def returns the definition for id.
func (s *Store) Def(id ParamID) (ParamDef, bool) {
	i, ok := s.slot[id]
	if !ok {
		return ParamDef{}, false
	}
	return s.defs[i], true
}

// ID resolves a parameter name.
func (s *Store) ID(name string) (ParamID, bool) {
	id, ok := s.names[name]
	return id, ok
}

func (s *Store) Has(id ParamID) bool {
	_, ok := s.slot[id]
	return ok
}

// Tick is the tick number last passed to BeginTick.
func (s *Store) Tick() uint64 {
	return s.tick
}

// BeginTick marks the start of a simulation step.
func (s *Store) BeginTick(tick uint64) {
	s.tick = tick
}

// EndTick clears events that fired this tick and were never read.
func (s *Store) EndTick() {
	for i := range s.values {
		if s.defs[i].Type == ParamEvent && s.values[i].Bool {
			s.write(i, Value{Type: ParamEvent})
		}
	}
}

// Subscribe registers fn for writes to id. The returned func removes it.
func (s *Store) Subscribe(id ParamID, fn ChangeFunc) func() {
	if fn == nil {
		return func() {}
	}
	if !s.Has(id) {
		s.diag(id, "subscribe to unknown parameter")
	}
	s.nextSub++
	sub := subscription{id: s.nextSub, fn: fn}
	s.subs[id] = append(s.subs[id], sub)
	return func() {
		list := s.subs[id]
		for i, existing := range list {
			if existing.id == sub.id {
				s.subs[id] = append(list[:i:i], list[i+1:]...)
				return
			}
		}
	}
}

// Value returns the raw value without consuming pulses.
func (s *Store) Value(id ParamID) (Value, bool) {
	i, ok := s.slot[id]
	if !ok {
		return Value{}, false
	}
	return s.values[i], true
}

// Peek is Value without the presence flag.
func (s *Store) Peek(id ParamID) Value {
	v, _ := s.Value(id)
	return v
}

// SetValue writes a raw value. The value's type must match the definition.
func (s *Store) SetValue(id ParamID, v Value) bool {
	i, ok := s.lookup(id, v.Type, "set")
	if !ok {
		return false
	}
	s.write(i, v)
	return true
}

// Reset returns a parameter to its default value.
func (s *Store) Reset(id ParamID) {
	i, ok := s.slot[id]
	if !ok {
		s.diag(id, "reset of unknown parameter")
		return
	}
	s.write(i, s.defs[i].Default)
}

// ResetAll returns every parameter to its default value.
func (s *Store) ResetAll() {
	for i := range s.defs {
		s.write(i, s.defs[i].Default)
	}
}

func (s *Store) Float(id ParamID) float64 {
	i, ok := s.lookup(id, ParamFloat, "read")
	if !ok {
		return 0
	}
	return s.values[i].Float
}

func (s *Store) SetFloat(id ParamID, v float64) {
	if i, ok := s.lookup(id, ParamFloat, "write"); ok {
		s.write(i, FloatValue(v))
	}
}

func (s *Store) Int(id ParamID) int {
	i, ok := s.lookup(id, ParamInt, "read")
	if !ok {
		return 0
	}
	return s.values[i].Int
}

func (s *Store) SetInt(id ParamID, v int) {
	if i, ok := s.lookup(id, ParamInt, "write"); ok {
		s.write(i, IntValue(v))
	}
}

// Bool reads a switch. Reading a Trigger or Event consumes it.
func (s *Store) Bool(id ParamID) bool {
	if d, ok := s.Def(id); ok && d.Type.Pulse() {
		return s.Consume(id)
	}
	i, ok := s.lookup(id, ParamBool, "read")
	if !ok {
		return false
	}
	return s.values[i].Bool
}

// SetBool writes a switch. On a Trigger or Event, true arms the pulse and
// false disarms it.
func (s *Store) SetBool(id ParamID, v bool) {
	if d, ok := s.Def(id); ok && d.Type.Pulse() {
		if v {
			s.Fire(id)
		} else {
			s.write(s.slot[id], Value{Type: d.Type})
		}
		return
	}
	if i, ok := s.lookup(id, ParamBool, "write"); ok {
		s.write(i, BoolValue(v))
	}
}

func (s *Store) Vector(id ParamID) common.Vec3 {
	i, ok := s.lookup(id, ParamVector, "read")
	if !ok {
		return common.Vec3{}
	}
	return s.values[i].Vector
}

func (s *Store) SetVector(id ParamID, v common.Vec3) {
	if i, ok := s.lookup(id, ParamVector, "write"); ok {
		s.write(i, VectorValue(v))
	}
}

func (s *Store) Entity(id ParamID) common.EntityRef {
	i, ok := s.lookup(id, ParamEntity, "read")
	if !ok {
		return 0
	}
	return s.values[i].Entity
}

func (s *Store) SetEntity(id ParamID, v common.EntityRef) {
	if i, ok := s.lookup(id, ParamEntity, "write"); ok {
		s.write(i, EntityValue(v))
	}
}

// Number reads any numeric parameter as a float without consuming pulses.
func (s *Store) Number(id ParamID) float64 {
	v, ok := s.Value(id)
	if !ok {
		s.diag(id, "read of unknown parameter")
		return 0
	}
	return v.Number()
}

// Fire arms a Trigger or Event. Repeated fires before the first read
// coalesce into a single pulse.
func (s *Store) Fire(id ParamID) {
	i, ok := s.slot[id]
	if !ok {
		s.diag(id, "fire of unknown parameter")
		return
	}
	t := s.defs[i].Type
	if !t.Pulse() {
		s.diag(id, "fire of non-pulse parameter")
		return
	}
	if !s.values[i].Bool {
		s.write(i, Value{Type: t, Bool: true})
	}
}

// Consume reports whether a Trigger or Event is armed and disarms it. Only
// the first read after a fire observes true.
func (s *Store) Consume(id ParamID) bool {
	i, ok := s.slot[id]
	if !ok {
		s.diag(id, "read of unknown parameter")
		return false
	}
	t := s.defs[i].Type
	if !t.Pulse() {
		s.diag(id, "consume of non-pulse parameter")
		return false
	}
	if !s.values[i].Bool {
		return false
	}
	s.write(i, Value{Type: t})
	return true
}

func (s *Store) lookup(id ParamID, want ParamType, op string) (int, bool) {
	i, ok := s.slot[id]
	if !ok {
		s.diag(id, op+" of unknown parameter")
		return 0, false
	}
	if got := s.defs[i].Type; got != want {
		s.diag(id, fmt.Sprintf("%s as %s of %s parameter", op, want, got))
		return 0, false
	}
	return i, true
}

func (s *Store) write(i int, v Value) {
	old := s.values[i]
	if old == v {
		return
	}
	s.values[i] = v
	id := s.defs[i].ID
	for _, sub := range s.subs[id] {
		sub.fn(id, old, v)
	}
}

func (s *Store) diag(id ParamID, problem string) {
	key := diagKey{id: id, problem: problem}
	if _, seen := s.reported[key]; seen {
		return
	}
	s.reported[key] = struct{}{}
	s.logger.Warn("parameter lookup failed",
		zap.Int("param", int(id)),
		zap.String("problem", problem),
		zap.Uint64("tick", s.tick))
}

// Scalar lists the Go types a parameter can be read or written as.
type Scalar interface {
	float64 | int | bool | common.Vec3 | common.EntityRef
}

// Get reads id as T. Reading a Trigger or Event as bool consumes it.
func Get[T Scalar](s *Store, id ParamID) T {
	var out T
	switch p := any(&out).(type) {
	case *float64:
		*p = s.Float(id)
	case *int:
		*p = s.Int(id)
	case *bool:
		*p = s.Bool(id)
	case *common.Vec3:
		*p = s.Vector(id)
	case *common.EntityRef:
		*p = s.Entity(id)
	}
	return out
}

// Set writes v to id. Setting a Trigger or Event to true arms it.
func Set[T Scalar](s *Store, id ParamID, v T) {
	switch x := any(v).(type) {
	case float64:
		s.SetFloat(id, x)
	case int:
		s.SetInt(id, x)
	case bool:
		s.SetBool(id, x)
	case common.Vec3:
		s.SetVector(id, x)
	case common.EntityRef:
		s.SetEntity(id, x)
	}
}
