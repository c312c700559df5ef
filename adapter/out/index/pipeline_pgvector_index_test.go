package index

import (
	"testing"
)

func TestPgVectorFormat(t *testing.T) {
	tests := []struct {
		name string
		in   []float32
		want string
	}{
		{name: "simple", in: []float32{1, 2, 3}, want: "[1,2,3]"},
		{name: "fractional", in: []float32{0.5, -0.25}, want: "[0.5,-0.25]"},
		{name: "empty", in: []float32{}, want: "[]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PgVector(tt.in); got != tt.want {
				t.Errorf("PgVector(%v) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestParsePgVector(t *testing.T) {
	v, err := ParsePgVector("[0.5, -0.25, 1]")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := []float32{0.5, -0.25, 1}
	if len(v) != len(want) {
		t.Fatalf("got %d elements, want %d", len(v), len(want))
	}
	for i := range want {
		if v[i] != want[i] {
			t.Errorf("element %d = %f, want %f", i, v[i], want[i])
		}
	}
}

func TestParsePgVectorRoundTrip(t *testing.T) {
	in := []float32{0.123, -0.987, 0, 1}
	out, err := ParsePgVector(PgVector(in))
	if err != nil {
		t.Fatalf("round trip: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("got %d elements, want %d", len(out), len(in))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("element %d = %f, want %f", i, out[i], in[i])
		}
	}
}

func TestParsePgVectorMalformed(t *testing.T) {
	for _, s := range []string{"", "1,2,3", "[1,2", "[a,b]"} {
		if _, err := ParsePgVector(s); err == nil {
			t.Errorf("ParsePgVector(%q) succeeded, want error", s)
		}
	}
}
