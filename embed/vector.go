package embed

import "math"

// NormalizeVector scales a vector to unit length so that inner product
// equals cosine similarity. Returns a new vector; a zero vector stays zero.
func NormalizeVector(v []float32) []float32 {
	if len(v) == 0 {
		return v
	}

	var sum float64
	for _, val := range v {
		sum += float64(val) * float64(val)
	}

	result := make([]float32, len(v))
	if sum == 0 {
		return result
	}

	magnitude := math.Sqrt(sum)
	for i, val := range v {
		result[i] = float32(float64(val) / magnitude)
	}
	return result
}
