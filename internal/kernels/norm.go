package kernels

import (
	"fmt"
	"math"

	"github.com/lth/pure-go-voxnet/pkg/tensor"
)

// GroupNorm3D normalizes x in place over channel groups. For each (batch,
// group) slab the mean and biased variance are computed over the group's
// channels and all spatial positions, then every element is normalized and
// transformed per channel:
//
//	out = (x − μ) / sqrt(σ² + eps) * scale[c] + shift[c]
//
// scale and shift have one entry per channel. The channel count must be
// divisible by groups; layer constructors enforce that, so a violation here
// is a programming error.
func GroupNorm3D(x *tensor.Tensor, scale, shift []float32, groups int, eps float32) {
	if x.Rank() != 5 {
		panic(fmt.Sprintf("groupnorm: input rank %d, want 5", x.Rank()))
	}
	batch, channels := x.Dim(0), x.Dim(1)
	if channels%groups != 0 {
		panic(fmt.Sprintf("groupnorm: %d channels not divisible by %d groups", channels, groups))
	}
	if len(scale) != channels || len(shift) != channels {
		panic("groupnorm: scale/shift length mismatch")
	}

	spatial := x.Dim(2) * x.Dim(3) * x.Dim(4)
	chanPerGroup := channels / groups
	slab := chanPerGroup * spatial
	data := x.Data()

	parallelFor(batch*groups, 1, func(start, end int) {
		for idx := start; idx < end; idx++ {
			n := idx / groups
			g := idx % groups
			base := (n*channels + g*chanPerGroup) * spatial
			block := data[base : base+slab]

			sum := float32(0)
			for _, v := range block {
				sum += v
			}
			mean := sum / float32(slab)

			sumSq := float32(0)
			for _, v := range block {
				diff := v - mean
				sumSq += diff * diff
			}
			variance := sumSq / float32(slab)
			invStd := float32(1.0 / math.Sqrt(float64(variance+eps)))

			for c := 0; c < chanPerGroup; c++ {
				ch := g*chanPerGroup + c
				s, b := scale[ch], shift[ch]
				row := block[c*spatial : (c+1)*spatial]
				for i, v := range row {
					row[i] = (v-mean)*invStd*s + b
				}
			}
		}
	})
}
