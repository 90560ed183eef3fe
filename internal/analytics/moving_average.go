package analytics

import "github.com/guregu/null/v6"

// prefixSums returns p where p[i] is the sum of values[:i].
func prefixSums(values []float64) []float64 {
	p := make([]float64, len(values)+1)
	for i, v := range values {
		p[i+1] = p[i] + v
	}
	return p
}

// NarrowingMA returns the trailing mean of values ending at each index, over
// min(i+1, window) points.
func NarrowingMA(values []float64, window int) []float64 {
	p := prefixSums(values)
	out := make([]float64, len(values))
	for i := range values {
		n := window
		if i+1 < n {
			n = i + 1
		}
		out[i] = (p[i+1] - p[i+1-n]) / float64(n)
	}
	return out
}

// StrictMA returns the trailing mean over exactly window points ending at
// each index, null while fewer than window points exist.
func StrictMA(values []float64, window int) []null.Float {
	p := prefixSums(values)
	out := make([]null.Float, len(values))
	for i := range values {
		if i+1 < window {
			continue
		}
		out[i] = null.FloatFrom((p[i+1] - p[i+1-window]) / float64(window))
	}
	return out
}
