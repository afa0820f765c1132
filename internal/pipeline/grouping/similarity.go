package grouping

import "math"

// cosineSimilarity computes the cosine of the angle between two vectors.
// Mismatched or zero-magnitude vectors score 0.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// distanceMatrix converts embeddings into a full pairwise distance
// matrix, distance = 1 - cosine similarity, clamped at 0.
func distanceMatrix(vecs [][]float32) [][]float64 {
	n := len(vecs)
	dist := make([][]float64, n)
	for i := range dist {
		dist[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d := 1 - cosineSimilarity(vecs[i], vecs[j])
			if d < 0 {
				d = 0
			}
			dist[i][j] = d
			dist[j][i] = d
		}
	}
	return dist
}
