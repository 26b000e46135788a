package domain

import "math"

// VectorIndex is an in-memory embedding matrix co-indexed with a Corpus:
// row i belongs to snippet i. It is read-only once created.
type VectorIndex struct {
	vectors []Embedding
}

// NewVectorIndex copies vectors into a new VectorIndex.
func NewVectorIndex(vectors []Embedding) *VectorIndex {
	rows := make([]Embedding, len(vectors))
	for i, v := range vectors {
		rows[i] = append(Embedding(nil), v...)
	}
	return &VectorIndex{vectors: rows}
}

// Len returns the number of rows.
func (x *VectorIndex) Len() int {
	return len(x.vectors)
}

// Similarities returns the cosine similarity of query against every row,
// in row order.
func (x *VectorIndex) Similarities(query Embedding) []float64 {
	scores := make([]float64, len(x.vectors))
	for i, v := range x.vectors {
		scores[i] = CosineSimilarity(query, v)
	}
	return scores
}

// CosineSimilarity returns the cosine of the angle between a and b. Vectors
// of different length or with zero norm score 0.
func CosineSimilarity(a, b Embedding) float64 {
	if len(a) != len(b) || len(a) == 0 {
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

	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if math.IsNaN(sim) {
		return 0
	}
	// Rounding can push identical vectors a hair past 1.
	return math.Max(-1, math.Min(1, sim))
}
