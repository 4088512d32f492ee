// Package backbone assembles the pre-activation ResNetV2 3-D encoder:
// weight-standardized convolutions, group-normalization layers, bottleneck
// units, stages and the skip-feature forward pass.
package backbone

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"

	"github.com/lth/pure-go-voxnet/internal/kernels"
	"github.com/lth/pure-go-voxnet/pkg/tensor"
)

// weightEps is the epsilon inside the square root of the per-filter weight
// standardization.
const weightEps = 1e-5

// ConvGeometry configures a StdConv3D. Dilation and Groups default to 1 when
// left zero.
type ConvGeometry struct {
	InChannels  int
	OutChannels int
	Kernel      int
	Stride      int
	Pad         int
	Dilation    int
	Groups      int
	Bias        bool
}

// StdConv3D is a 3-D convolution whose weight is standardized per output
// filter (zero mean, unit biased variance over the remaining axes) on every
// forward pass. The stored weight stays raw; it is the trainable parameter
// and standardization is recomputed from it each call.
type StdConv3D struct {
	geom ConvGeometry
	eps  float32

	weight  *tensor.Tensor // (outC, inC/groups, k, k, k)
	bias    []float32      // nil unless geom.Bias
	scratch *tensor.Tensor // standardized weight, reused across calls
}

// NewStdConv3D builds the layer and initializes the raw weight with a
// fan-in-scaled normal draw from rng. The exact draw is immaterial to the
// output contract (standardization renormalizes every filter) but is
// deterministic for a given rng state.
func NewStdConv3D(rng *rand.Rand, g ConvGeometry) (*StdConv3D, error) {
	if g.Dilation == 0 {
		g.Dilation = 1
	}
	if g.Groups == 0 {
		g.Groups = 1
	}
	if g.InChannels <= 0 || g.OutChannels <= 0 {
		return nil, fmt.Errorf("stdconv3d: channels (%d in, %d out) must be positive", g.InChannels, g.OutChannels)
	}
	if g.Kernel <= 0 || g.Stride <= 0 || g.Pad < 0 || g.Dilation <= 0 || g.Groups <= 0 {
		return nil, fmt.Errorf("stdconv3d: invalid geometry %+v", g)
	}
	if g.InChannels%g.Groups != 0 {
		return nil, fmt.Errorf("stdconv3d: %d input channels not divisible by %d groups", g.InChannels, g.Groups)
	}
	if g.OutChannels%g.Groups != 0 {
		return nil, fmt.Errorf("stdconv3d: %d output channels not divisible by %d groups", g.OutChannels, g.Groups)
	}

	chanPerGroup := g.InChannels / g.Groups
	weight := tensor.New(g.OutChannels, chanPerGroup, g.Kernel, g.Kernel, g.Kernel)
	fanIn := chanPerGroup * g.Kernel * g.Kernel * g.Kernel
	std := math.Sqrt(2.0 / float64(fanIn))
	wd := weight.Data()
	for i := range wd {
		wd[i] = float32(rng.NormFloat64() * std)
	}

	c := &StdConv3D{
		geom:    g,
		eps:     weightEps,
		weight:  weight,
		scratch: tensor.New(g.OutChannels, chanPerGroup, g.Kernel, g.Kernel, g.Kernel),
	}
	if g.Bias {
		c.bias = make([]float32, g.OutChannels)
	}
	return c, nil
}

// Forward standardizes the raw weight into the scratch buffer and convolves
// x with it. A single layer instance must not run concurrent forward passes;
// the scratch buffer is shared across calls.
func (c *StdConv3D) Forward(x *tensor.Tensor) *tensor.Tensor {
	filters := c.geom.OutChannels
	filterSize := c.weight.NumElements() / filters
	kernels.StandardizeFilters(c.scratch.Data(), c.weight.Data(), filters, filterSize, c.eps)
	return kernels.Conv3D(x, c.scratch, c.bias, c.geom.Stride, c.geom.Pad, c.geom.Dilation, c.geom.Groups)
}

// Weight returns the raw (unstandardized) weight tensor.
func (c *StdConv3D) Weight() *tensor.Tensor {
	return c.weight
}

// OutChannels returns the number of output channels.
func (c *StdConv3D) OutChannels() int {
	return c.geom.OutChannels
}

// conv1x1x1 and conv3x3x3 mirror the two convolution shapes the network is
// built from.
func conv1x1x1(rng *rand.Rand, cin, cout, stride int) (*StdConv3D, error) {
	return NewStdConv3D(rng, ConvGeometry{
		InChannels:  cin,
		OutChannels: cout,
		Kernel:      1,
		Stride:      stride,
		Pad:         0,
	})
}

func conv3x3x3(rng *rand.Rand, cin, cout, stride int) (*StdConv3D, error) {
	return NewStdConv3D(rng, ConvGeometry{
		InChannels:  cin,
		OutChannels: cout,
		Kernel:      3,
		Stride:      stride,
		Pad:         1,
	})
}
