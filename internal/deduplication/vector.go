package deduplication

import "math"

// CosineSimilarity returns dot(a,b)/(|a||b|) computed in float64.
// ok is false when either vector has zero norm or the lengths differ; such pairs never match.
func CosineSimilarity(a, b []float32) (sim float64, ok bool) {
	if len(a) == 0 || len(a) != len(b) {
		return 0, false
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0, false
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb)), true
}

// IsZero reports whether every component of v is zero
func IsZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

// updateMean moves centroid toward v so that it stays the mean of count vectors:
// c = c + (v - c) / count
func updateMean(centroid, v []float32, count int) {
	n := float32(count)
	for i := range centroid {
		centroid[i] += (v[i] - centroid[i]) / n
	}
}
