package domain

import "math"

// NormalizeVector returns a copy of v scaled to unit L2 norm. A zero
// vector is returned unchanged; it has no direction to preserve.
func NormalizeVector(v []float32) []float32 {
	out := make([]float32, len(v))
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		copy(out, v)
		return out
	}
	inv := float32(1 / norm)
	for i, x := range v {
		out[i] = x * inv
	}
	return out
}

// CosineDistance computes 1 - cosine similarity for two unit vectors.
// Callers must normalize first; for unit vectors the dot product IS
// the cosine similarity. Result is clamped to [0, 2] against float
// drift.
func CosineDistance(a, b []float32) float64 {
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	d := 1 - dot
	if d < 0 {
		return 0
	}
	if d > 2 {
		return 2
	}
	return d
}
