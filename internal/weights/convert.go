package weights

import "fmt"

// TransposeConvKernel converts a convolution kernel stored in external
// (kD, kH, kW, inC, outC) axis order into the internal
// (outC, inC, kD, kH, kW) layout. src is not modified.
func TransposeConvKernel(src []float32, kd, kh, kw, ci, co int) ([]float32, error) {
	n := kd * kh * kw * ci * co
	if kd <= 0 || kh <= 0 || kw <= 0 || ci <= 0 || co <= 0 {
		return nil, fmt.Errorf("transpose: non-positive dimension in (%d,%d,%d,%d,%d)", kd, kh, kw, ci, co)
	}
	if len(src) != n {
		return nil, fmt.Errorf("transpose: %d elements, dimensions imply %d", len(src), n)
	}

	dst := make([]float32, n)
	for d := 0; d < kd; d++ {
		for h := 0; h < kh; h++ {
			for w := 0; w < kw; w++ {
				spatialSrc := ((d*kh+h)*kw + w) * ci * co
				for i := 0; i < ci; i++ {
					srcBase := spatialSrc + i*co
					dstBase := i*kd*kh*kw + (d*kh+h)*kw + w
					for o := 0; o < co; o++ {
						dst[o*ci*kd*kh*kw+dstBase] = src[srcBase+o]
					}
				}
			}
		}
	}
	return dst, nil
}
