package vecmath

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"scaled", []float32{1, 1}, []float32{3, 3}, 1},
		{"length mismatch", []float32{1, 0}, []float32{1, 0, 0}, 0},
		{"zero vector", []float32{0, 0}, []float32{1, 0}, 0},
		{"empty", nil, nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Cosine(tt.a, tt.b), 1e-9)
		})
	}
}

func TestTopK(t *testing.T) {
	query := []float32{1, 0}
	candidates := [][]float32{
		{0, 1},   // 0
		{1, 0},   // 1
		{1, 1},   // ~0.707
		{-1, 0},  // -1
		{2, 0.1}, // ~0.999
	}

	got := TopK(query, candidates, 3)
	assert.Len(t, got, 3)
	assert.Equal(t, 1, got[0].Pos)
	assert.Equal(t, 4, got[1].Pos)
	assert.Equal(t, 2, got[2].Pos)

	assert.Len(t, TopK(query, candidates, 10), len(candidates))
	assert.Empty(t, TopK(query, candidates, 0))
	assert.Empty(t, TopK(query, nil, 3))
}

func TestTopK_StableTies(t *testing.T) {
	got := TopK([]float32{1}, [][]float32{{1}, {2}, {3}}, 3)
	assert.Equal(t, []int{0, 1, 2}, []int{got[0].Pos, got[1].Pos, got[2].Pos})
}
