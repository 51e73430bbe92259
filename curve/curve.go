// Package curve evaluates authored animation curves and drives the
// restartable multi-tick effects built on them.
package curve

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Key is a single keyframe. Tangents are slopes (dv/dt).
type Key struct {
	Time       float64 `yaml:"t"`
	Value      float64 `yaml:"v"`
	InTangent  float64 `yaml:"in"`
	OutTangent float64 `yaml:"out"`
}

// Curve maps a normalized time to a value. A curve is either a preset
// function or a list of keys evaluated with cubic Hermite interpolation.
type Curve struct {
	Name string
	Keys []Key

	fn func(t float64) float64
}

var presets = map[string]func(t float64) float64{
	"linear": func(t float64) float64 { return t },
	"ease_in": func(t float64) float64 {
		return t * t
	},
	"ease_out": func(t float64) float64 {
		return 1 - (1-t)*(1-t)
	},
	"ease_in_out": func(t float64) float64 {
		return t * t * (3 - 2*t)
	},
	// damped overshoot that settles on 1
	"spring": func(t float64) float64 {
		if t >= 1 {
			return 1
		}
		return 1 - math.Exp(-8*t)*math.Cos(3*math.Pi*t)
	},
	// 0 -> 1 -> 0
	"bump": func(t float64) float64 {
		return math.Sin(math.Pi * t)
	},
	"constant": func(t float64) float64 { return 1 },
}

// Preset returns a named preset curve.
func Preset(name string) (*Curve, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	fn, ok := presets[key]
	if !ok {
		return nil, fmt.Errorf("curve: unknown preset %q", name)
	}
	return &Curve{Name: key, fn: fn}, nil
}

// Linear is the default curve.
func Linear() *Curve {
	c, _ := Preset("linear")
	return c
}

// FromKeys builds a keyed curve, sorting keys by time.
func FromKeys(keys ...Key) (*Curve, error) {
	if len(keys) == 0 {
		return nil, fmt.Errorf("curve: no keys")
	}
	out := append([]Key(nil), keys...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time < out[j].Time })
	for i := 1; i < len(out); i++ {
		if out[i].Time == out[i-1].Time {
			return nil, fmt.Errorf("curve: duplicate key time %v", out[i].Time)
		}
	}
	return &Curve{Keys: out}, nil
}

// Evaluate samples the curve at t. Keyed curves clamp outside their range.
func (c *Curve) Evaluate(t float64) float64 {
	if c == nil {
		return t
	}
	if c.fn != nil {
		return c.fn(t)
	}
	if len(c.Keys) == 0 {
		return t
	}
	first := c.Keys[0]
	last := c.Keys[len(c.Keys)-1]
	if t <= first.Time {
		return first.Value
	}
	if t >= last.Time {
		return last.Value
	}

	i := sort.Search(len(c.Keys), func(i int) bool { return c.Keys[i].Time > t })
	a := c.Keys[i-1]
	b := c.Keys[i]
	span := b.Time - a.Time
	s := (t - a.Time) / span

	s2 := s * s
	s3 := s2 * s
	h00 := 2*s3 - 3*s2 + 1
	h10 := s3 - 2*s2 + s
	h01 := -2*s3 + 3*s2
	h11 := s3 - s2
	return h00*a.Value + h10*span*a.OutTangent + h01*b.Value + h11*span*b.InTangent
}

// UnmarshalYAML accepts a preset name or a key list. Keys may be written as
// maps (t/v/in/out) or as [t, v] pairs.
func (c *Curve) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		p, err := Preset(node.Value)
		if err != nil {
			return err
		}
		*c = *p
		return nil
	case yaml.SequenceNode:
		keys := make([]Key, 0, len(node.Content))
		for _, item := range node.Content {
			var k Key
			switch item.Kind {
			case yaml.SequenceNode:
				var pair []float64
				if err := item.Decode(&pair); err != nil {
					return fmt.Errorf("curve: decode key: %w", err)
				}
				if len(pair) != 2 {
					return fmt.Errorf("curve: key pair needs 2 values, got %d", len(pair))
				}
				k = Key{Time: pair[0], Value: pair[1]}
			default:
				if err := item.Decode(&k); err != nil {
					return fmt.Errorf("curve: decode key: %w", err)
				}
			}
			keys = append(keys, k)
		}
		built, err := FromKeys(keys...)
		if err != nil {
			return err
		}
		*c = *built
		return nil
	default:
		return fmt.Errorf("curve: expected preset name or key list")
	}
}
