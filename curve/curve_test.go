package curve

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestPresetEndpoints(t *testing.T) {
	cases := []struct {
		name       string
		start, end float64
	}{
		{"linear", 0, 1},
		{"ease_in", 0, 1},
		{"ease_out", 0, 1},
		{"ease_in_out", 0, 1},
		{"spring", 0, 1},
		{"bump", 0, 0},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			cv, err := Preset(c.name)
			require.NoError(t, err)
			assert.InDelta(t, c.start, cv.Evaluate(0), 1e-9)
			assert.InDelta(t, c.end, cv.Evaluate(1), 1e-9)
		})
	}

	_, err := Preset("wobble")
	assert.Error(t, err)
}

func TestKeyedCurveHermite(t *testing.T) {
	c, err := FromKeys(Key{Time: 1, Value: 2}, Key{Time: 0, Value: 0})
	require.NoError(t, err)

	assert.Equal(t, 0.0, c.Evaluate(-1), "clamped before first key")
	assert.Equal(t, 2.0, c.Evaluate(5), "clamped after last key")
	// zero tangents give a smoothstep between the keys
	assert.InDelta(t, 1.0, c.Evaluate(0.5), 1e-9)
	assert.InDelta(t, 2*0.25*0.25*(3-2*0.25), c.Evaluate(0.25), 1e-9)

	_, err = FromKeys(Key{Time: 0}, Key{Time: 0, Value: 1})
	assert.Error(t, err)
}

func TestCurveYAML(t *testing.T) {
	var doc struct {
		A Curve `yaml:"a"`
		B Curve `yaml:"b"`
		C Curve `yaml:"c"`
	}
	src := `
a: ease_out
b: [[0, 0], [1, 10]]
c:
  - {t: 0, v: 1, out: 0}
  - {t: 2, v: 3, in: 0}
`
	require.NoError(t, yaml.Unmarshal([]byte(src), &doc))
	assert.Equal(t, "ease_out", doc.A.Name)
	assert.InDelta(t, 5, doc.B.Evaluate(0.5), 1e-9)
	assert.InDelta(t, 2, doc.C.Evaluate(1), 1e-9)

	var bad struct {
		A Curve `yaml:"a"`
	}
	assert.Error(t, yaml.Unmarshal([]byte("a: {x: 1}"), &bad))
}
