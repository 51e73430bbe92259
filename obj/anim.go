package obj

import (
	"sort"

	"github.com/milk9111/motiongraph/motion"
)

// Layers is the playground's animation sink: a set of named values the agent
// reads back when drawing.
type Layers struct {
	names  []string
	values []float64
}

var _ motion.AnimationSink = (*Layers)(nil)

func NewLayers() *Layers {
	return &Layers{}
}

// Handle registers layers on first use.
func (l *Layers) Handle(name string) (motion.AnimHandle, bool) {
	for i, n := range l.names {
		if n == name {
			return motion.AnimHandle(i), true
		}
	}
	l.names = append(l.names, name)
	l.values = append(l.values, 0)
	return motion.AnimHandle(len(l.names) - 1), true
}

func (l *Layers) SetFloat(h motion.AnimHandle, v float64) {
	if int(h) < len(l.values) {
		l.values[h] = v
	}
}

func (l *Layers) SetBool(h motion.AnimHandle, v bool) {
	if v {
		l.SetFloat(h, 1)
	} else {
		l.SetFloat(h, 0)
	}
}

// Value returns a layer's value, zero when it was never written.
func (l *Layers) Value(name string) float64 {
	for i, n := range l.names {
		if n == name {
			return l.values[i]
		}
	}
	return 0
}

func (l *Layers) On(name string) bool {
	return l.Value(name) > 0.5
}

// Names returns the registered layers, sorted.
func (l *Layers) Names() []string {
	out := append([]string(nil), l.names...)
	sort.Strings(out)
	return out
}
