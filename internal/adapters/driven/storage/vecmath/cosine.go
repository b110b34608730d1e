// Package vecmath scores embeddings for stores that rank in process.
package vecmath

import (
	"math"
	"sort"
)

// Cosine returns the cosine similarity of a and b in [-1, 1].
// Vectors of different length, or with zero magnitude, score 0.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Scored pairs an item position with its similarity.
type Scored struct {
	Pos   int
	Score float64
}

// TopK scores every candidate against query and returns the best limit,
// highest first. Ties keep candidate order.
func TopK(query []float32, candidates [][]float32, limit int) []Scored {
	if limit <= 0 || len(candidates) == 0 {
		return nil
	}

	scored := make([]Scored, len(candidates))
	for i, c := range candidates {
		scored[i] = Scored{Pos: i, Score: Cosine(query, c)}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored
}
