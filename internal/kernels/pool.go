package kernels

import (
	"fmt"
	"math"

	"github.com/lth/pure-go-voxnet/pkg/tensor"
)

// MaxPool3D applies max pooling with a cubic window. Padding positions never
// contribute to the maximum.
func MaxPool3D(x *tensor.Tensor, kernel, stride, pad int) *tensor.Tensor {
	if x.Rank() != 5 {
		panic(fmt.Sprintf("maxpool3d: input rank %d, want 5", x.Rank()))
	}
	if kernel <= 0 || stride <= 0 {
		panic(fmt.Sprintf("maxpool3d: kernel=%d stride=%d, must be positive", kernel, stride))
	}

	batch, channels := x.Dim(0), x.Dim(1)
	inD, inH, inW := x.Dim(2), x.Dim(3), x.Dim(4)
	outD := ConvOutDim(inD, kernel, stride, pad, 1)
	outH := ConvOutDim(inH, kernel, stride, pad, 1)
	outW := ConvOutDim(inW, kernel, stride, pad, 1)
	if outD <= 0 || outH <= 0 || outW <= 0 {
		panic(fmt.Sprintf("maxpool3d: input %dx%dx%d too small for kernel %d stride %d pad %d",
			inD, inH, inW, kernel, stride, pad))
	}

	out := tensor.New(batch, channels, outD, outH, outW)
	xd, od := x.Data(), out.Data()
	inSpatial := inD * inH * inW
	outSpatial := outD * outH * outW

	parallelFor(batch*channels, 1, func(start, end int) {
		for row := start; row < end; row++ {
			xBase := row * inSpatial
			oBase := row * outSpatial
			for odd := 0; odd < outD; odd++ {
				d0 := odd*stride - pad
				for oh := 0; oh < outH; oh++ {
					h0 := oh*stride - pad
					for ow := 0; ow < outW; ow++ {
						w0 := ow*stride - pad
						best := float32(math.Inf(-1))
						for kd := 0; kd < kernel; kd++ {
							id := d0 + kd
							if id < 0 || id >= inD {
								continue
							}
							for kh := 0; kh < kernel; kh++ {
								ih := h0 + kh
								if ih < 0 || ih >= inH {
									continue
								}
								rowBase := xBase + (id*inH+ih)*inW
								for kw := 0; kw < kernel; kw++ {
									iw := w0 + kw
									if iw < 0 || iw >= inW {
										continue
									}
									if v := xd[rowBase+iw]; v > best {
										best = v
									}
								}
							}
						}
						od[oBase+(odd*outH+oh)*outW+ow] = best
					}
				}
			}
		}
	})

	return out
}
