package domain

import (
	"math"
	"testing"
)

func TestNormalizeVector(t *testing.T) {
	v := []float32{3, 4}
	got := NormalizeVector(v)

	if v[0] != 3 || v[1] != 4 {
		t.Errorf("input mutated: %v", v)
	}
	if math.Abs(float64(got[0])-0.6) > 1e-6 || math.Abs(float64(got[1])-0.8) > 1e-6 {
		t.Errorf("NormalizeVector(3,4) = %v, want (0.6, 0.8)", got)
	}

	var norm float64
	for _, x := range got {
		norm += float64(x) * float64(x)
	}
	if math.Abs(norm-1) > 1e-6 {
		t.Errorf("norm^2 = %f, want 1", norm)
	}
}

func TestNormalizeZeroVector(t *testing.T) {
	got := NormalizeVector([]float32{0, 0, 0})
	for i, x := range got {
		if x != 0 {
			t.Errorf("element %d = %f, want 0", i, x)
		}
	}
}

func TestCosineDistance(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{name: "identical", a: []float32{1, 0}, b: []float32{1, 0}, want: 0},
		{name: "orthogonal", a: []float32{1, 0}, b: []float32{0, 1}, want: 1},
		{name: "opposite", a: []float32{1, 0}, b: []float32{-1, 0}, want: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CosineDistance(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-6 {
				t.Errorf("CosineDistance = %f, want %f", got, tt.want)
			}
		})
	}
}

func TestCosineDistanceClamped(t *testing.T) {
	// Vectors slightly longer than unit length can push the raw value
	// outside [0, 2].
	a := []float32{1.001, 0}
	if d := CosineDistance(a, a); d != 0 {
		t.Errorf("distance below 0 not clamped: %f", d)
	}
	b := []float32{-1.001, 0}
	if d := CosineDistance(a, b); d != 2 {
		t.Errorf("distance above 2 not clamped: %f", d)
	}
}
