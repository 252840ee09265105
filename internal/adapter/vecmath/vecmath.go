// Package vecmath holds the brute-force nearest neighbour helpers shared by
// the index backends.
package vecmath

import (
	"math"
	"sort"
)

// Candidate is an id with its distance to a query vector.
type Candidate struct {
	ID       string
	Distance float64
}

// CosineDistance returns 1 - cosine similarity. A zero vector is treated as
// orthogonal to everything, giving a distance of 1.
func CosineDistance(a, b []float32) float64 {
	return 1 - cosineSimilarity(a, b)
}

// cosineSimilarity calculates the cosine similarity between two vectors.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	sim := dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
	// float error can push identical vectors just past 1
	return math.Max(-1, math.Min(1, sim))
}

// TopK sorts candidates by distance ascending, then id, and keeps the first k.
func TopK(candidates []Candidate, k int) []Candidate {
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Distance != candidates[j].Distance {
			return candidates[i].Distance < candidates[j].Distance
		}
		return candidates[i].ID < candidates[j].ID
	})

	if k > len(candidates) {
		k = len(candidates)
	}
	return candidates[:k]
}
