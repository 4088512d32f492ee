package kernels

import "math"

// StandardizeFilters writes a standardized copy of w into dst. w holds
// `filters` contiguous blocks of `filterSize` elements (one block per output
// filter); each block is shifted to zero mean and scaled to unit variance:
//
//	w' = (w − μ) / sqrt(σ² + eps)
//
// The variance is biased (divide by N). w itself is never modified; the raw
// weight stays the trainable parameter and dst is recomputed from it on every
// forward pass.
func StandardizeFilters(dst, w []float32, filters, filterSize int, eps float32) {
	n := filters * filterSize
	if len(w) < n || len(dst) < n {
		panic("standardize: buffer size mismatch")
	}

	for f := 0; f < filters; f++ {
		block := w[f*filterSize : (f+1)*filterSize]
		out := dst[f*filterSize : (f+1)*filterSize]

		sum := float32(0)
		for _, v := range block {
			sum += v
		}
		mean := sum / float32(filterSize)

		sumSq := float32(0)
		for _, v := range block {
			diff := v - mean
			sumSq += diff * diff
		}
		variance := sumSq / float32(filterSize)

		invStd := float32(1.0 / math.Sqrt(float64(variance+eps)))
		for i, v := range block {
			out[i] = (v - mean) * invStd
		}
	}
}
