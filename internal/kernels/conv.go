// Package kernels implements the slice-level math used by the backbone:
// 3-D convolution, filter standardization, group normalization, max pooling
// and activations. Kernels panic on malformed shapes; configuration
// validation belongs to the layer constructors.
package kernels

import (
	"fmt"

	"github.com/lth/pure-go-voxnet/pkg/tensor"
)

// minConvRowsParallel is the (batch × out-channel) row count below which
// Conv3D runs serially.
const minConvRowsParallel = 2

// ConvOutDim returns the output size of one convolution axis.
func ConvOutDim(in, kernel, stride, pad, dilation int) int {
	return (in+2*pad-dilation*(kernel-1)-1)/stride + 1
}

// Conv3D computes a 3-D cross-correlation of x with weight w.
//
// Shapes:
//
//	x    (batch, inC, D, H, W)
//	w    (outC, inC/groups, kD, kH, kW)
//	bias (outC) or nil
//
// stride, pad and dilation apply uniformly to the three spatial axes. The
// output has shape (batch, outC, D', H', W') with D' etc. given by
// ConvOutDim. Output rows (one per batch × output channel) are computed in
// parallel.
func Conv3D(x, w *tensor.Tensor, bias []float32, stride, pad, dilation, groups int) *tensor.Tensor {
	if x.Rank() != 5 {
		panic(fmt.Sprintf("conv3d: input rank %d, want 5", x.Rank()))
	}
	if w.Rank() != 5 {
		panic(fmt.Sprintf("conv3d: weight rank %d, want 5", w.Rank()))
	}
	if stride <= 0 || dilation <= 0 || groups <= 0 {
		panic(fmt.Sprintf("conv3d: stride=%d dilation=%d groups=%d, all must be positive", stride, dilation, groups))
	}

	batch, inC := x.Dim(0), x.Dim(1)
	inD, inH, inW := x.Dim(2), x.Dim(3), x.Dim(4)
	outC, wInC := w.Dim(0), w.Dim(1)
	kD, kH, kW := w.Dim(2), w.Dim(3), w.Dim(4)

	if inC%groups != 0 || outC%groups != 0 {
		panic(fmt.Sprintf("conv3d: channels (%d in, %d out) not divisible by %d groups", inC, outC, groups))
	}
	if wInC != inC/groups {
		panic(fmt.Sprintf("conv3d: weight expects %d input channels per group, input has %d", wInC, inC/groups))
	}
	if bias != nil && len(bias) != outC {
		panic(fmt.Sprintf("conv3d: bias length %d, want %d", len(bias), outC))
	}

	outD := ConvOutDim(inD, kD, stride, pad, dilation)
	outH := ConvOutDim(inH, kH, stride, pad, dilation)
	outW := ConvOutDim(inW, kW, stride, pad, dilation)
	if outD <= 0 || outH <= 0 || outW <= 0 {
		panic(fmt.Sprintf("conv3d: input %dx%dx%d too small for kernel %dx%dx%d stride %d pad %d",
			inD, inH, inW, kD, kH, kW, stride, pad))
	}

	out := tensor.New(batch, outC, outD, outH, outW)
	xd, wd, od := x.Data(), w.Data(), out.Data()
	chanPerGroup := inC / groups
	outPerGroup := outC / groups
	filterSize := wInC * kD * kH * kW
	outSpatial := outD * outH * outW
	inSpatial := inD * inH * inW

	rows := batch * outC
	parallelFor(rows, minConvRowsParallel, func(start, end int) {
		for row := start; row < end; row++ {
			n := row / outC
			oc := row % outC
			icBase := (oc / outPerGroup) * chanPerGroup
			wBase := oc * filterSize
			oBase := row * outSpatial
			xBatch := n * inC * inSpatial

			var b float32
			if bias != nil {
				b = bias[oc]
			}

			for od3 := 0; od3 < outD; od3++ {
				d0 := od3*stride - pad
				for oh := 0; oh < outH; oh++ {
					h0 := oh*stride - pad
					for ow := 0; ow < outW; ow++ {
						w0 := ow*stride - pad
						acc := b
						wi := wBase
						for ic := 0; ic < chanPerGroup; ic++ {
							xChan := xBatch + (icBase+ic)*inSpatial
							for kd := 0; kd < kD; kd++ {
								id := d0 + kd*dilation
								if id < 0 || id >= inD {
									wi += kH * kW
									continue
								}
								xDepth := xChan + id*inH*inW
								for kh := 0; kh < kH; kh++ {
									ih := h0 + kh*dilation
									if ih < 0 || ih >= inH {
										wi += kW
										continue
									}
									xRow := xDepth + ih*inW
									for kw := 0; kw < kW; kw++ {
										iw := w0 + kw*dilation
										if iw < 0 || iw >= inW {
											wi++
											continue
										}
										acc += xd[xRow+iw] * wd[wi]
										wi++
									}
								}
							}
						}
						od[oBase+(od3*outH+oh)*outW+ow] = acc
					}
				}
			}
		}
	})

	return out
}
