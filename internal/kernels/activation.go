package kernels

// ReLU applies max(0, x) elementwise. dst and src may alias for in-place use.
func ReLU(dst, src []float32) {
	if len(dst) < len(src) {
		panic("relu: buffer size mismatch")
	}
	for i, v := range src {
		if v > 0 {
			dst[i] = v
		} else {
			dst[i] = 0
		}
	}
}

// AddReLU writes max(0, a+b) into dst elementwise. Used for the residual
// join. dst may alias a or b.
func AddReLU(dst, a, b []float32) {
	if len(dst) < len(a) || len(b) < len(a) {
		panic("addrelu: buffer size mismatch")
	}
	for i, v := range a {
		s := v + b[i]
		if s > 0 {
			dst[i] = s
		} else {
			dst[i] = 0
		}
	}
}
