package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVec3(t *testing.T) {
	a := V3(1, 2, 2)
	assert.Equal(t, 3.0, a.Len())
	assert.Equal(t, V3(2, 4, 4), a.Add(a))
	assert.Equal(t, Vec3{}, a.Sub(a))
	assert.Equal(t, V3(1, 4, 4), a.Mul(a))
	assert.Equal(t, 9.0, a.Dot(a))

	assert.InDelta(t, 1, a.Normalize().Len(), 1e-12)
	assert.Equal(t, Vec3{}, Vec3{}.Normalize())
	assert.True(t, Vec3{}.IsZero())

	assert.InDelta(t, 1.5, a.ClampLen(1.5).Len(), 1e-12)
	assert.Equal(t, a, a.ClampLen(5))
}

func TestScalars(t *testing.T) {
	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"lerp mid", Lerp(2, 4, 0.5), 3},
		{"lerp beyond", Lerp(0, 1, 2), 2},
		{"clamp low", Clamp(-1, 0, 1), 0},
		{"clamp swapped bounds", Clamp(5, 1, 0), 1},
		{"clamp01", Clamp01(0.25), 0.25},
		{"move towards up", MoveTowards(0, 1, 0.25), 0.25},
		{"move towards down", MoveTowards(1, 0, 0.25), 0.75},
		{"move towards arrives", MoveTowards(0.9, 1, 0.25), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got)
		})
	}
	assert.Equal(t, V3(0.5, 1, 2), LerpVec(Vec3{}, V3(1, 2, 4), 0.5))
}
