package vecmath

import (
	"math"
	"testing"
)

func TestCosineDistance(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"same direction", []float32{1, 0}, []float32{2, 0}, 0},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 1},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, 2},
		{"zero vector", []float32{0, 0}, []float32{1, 0}, 1},
	}

	for _, tt := range tests {
		got := CosineDistance(tt.a, tt.b)
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("%s: CosineDistance = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestTopK(t *testing.T) {
	c := []Candidate{
		{ID: "c", Distance: 0.5},
		{ID: "b", Distance: 0.1},
		{ID: "a", Distance: 0.5},
		{ID: "d", Distance: 0.9},
	}

	got := TopK(c, 3)
	want := []string{"b", "a", "c"}
	if len(got) != len(want) {
		t.Fatalf("expected %d candidates, got %d", len(want), len(got))
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Errorf("position %d: got %s, want %s", i, got[i].ID, id)
		}
	}

	if n := len(TopK([]Candidate{{ID: "x"}}, 10)); n != 1 {
		t.Errorf("k larger than input: got %d candidates", n)
	}
	if n := len(TopK(nil, 5)); n != 0 {
		t.Errorf("empty input: got %d candidates", n)
	}
}
