package vector

import "github.com/hyperjump/interviewd/pkg/utils"

// CosineDistance returns 1 - cosine similarity of a and b. A zero vector is at distance 1
// from everything.
func CosineDistance(a, b []float32) float64 {
	na, nb := utils.L2Norm(a), utils.L2Norm(b)
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - utils.Dot(a, b)/(na*nb)
}

// Similarity converts a hit's distance back to cosine similarity.
func (h Hit) Similarity() float64 {
	return 1 - h.Distance
}
