package backbone

import (
	"fmt"

	"golang.org/x/exp/rand"

	"github.com/lth/pure-go-voxnet/internal/kernels"
	"github.com/lth/pure-go-voxnet/pkg/tensor"
)

// minSpatialDim is the smallest input extent per spatial axis the stem can
// process (root conv then a 3x3x3 stride-2 unpadded max pool).
const minSpatialDim = 5

// Config holds the hyperparameters of a ResNetV2 backbone.
type Config struct {
	BlockUnits    [3]int  // bottleneck units per stage
	WidthFactor   float64 // scales the base width of 64 channels
	InputChannels int
	Seed          uint64 // parameter init seed
}

// ResNetV2 is the pre-activation ResNet encoder: a strided root stem, a max
// pool and three bottleneck stages. Forward returns the deepest feature map
// plus three skip features for a decoder.
type ResNetV2 struct {
	cfg   Config
	width int

	rootConv *StdConv3D
	rootNorm *GroupNorm
	stages   [3]*Stage
}

// New builds the network. Stage k (zero-indexed) outputs width*4*2^k
// channels from a mid width of width*2^k, where width = floor(64 *
// WidthFactor); widths that break the 32-group norms are construction
// errors.
func New(cfg Config) (*ResNetV2, error) {
	if cfg.WidthFactor <= 0 {
		return nil, fmt.Errorf("backbone: width factor %g, must be positive", cfg.WidthFactor)
	}
	if cfg.InputChannels <= 0 {
		return nil, fmt.Errorf("backbone: input channels %d, must be positive", cfg.InputChannels)
	}
	for i, n := range cfg.BlockUnits {
		if n < 1 {
			return nil, fmt.Errorf("backbone: stage %d has %d units, need at least 1", i+1, n)
		}
	}

	width := int(64 * cfg.WidthFactor)
	rng := rand.New(rand.NewSource(cfg.Seed))
	m := &ResNetV2{cfg: cfg, width: width}

	var err error
	m.rootConv, err = NewStdConv3D(rng, ConvGeometry{
		InChannels:  cfg.InputChannels,
		OutChannels: width,
		Kernel:      7,
		Stride:      2,
		Pad:         3,
	})
	if err != nil {
		return nil, fmt.Errorf("backbone root conv: %w", err)
	}
	if m.rootNorm, err = NewGroupNorm(width, normGroups, normEps); err != nil {
		return nil, fmt.Errorf("backbone root norm: %w", err)
	}

	type stageSpec struct {
		units, cin, cout, cmid, stride int
	}
	specs := [3]stageSpec{
		{cfg.BlockUnits[0], width, width * 4, width, 1},
		{cfg.BlockUnits[1], width * 4, width * 8, width * 2, 2},
		{cfg.BlockUnits[2], width * 8, width * 16, width * 4, 2},
	}
	for i, s := range specs {
		if m.stages[i], err = BuildStage(rng, s.units, s.cin, s.cout, s.cmid, s.stride); err != nil {
			return nil, fmt.Errorf("backbone stage %d: %w", i+1, err)
		}
	}

	return m, nil
}

// Width returns floor(64 * WidthFactor).
func (m *ResNetV2) Width() int {
	return m.width
}

// OutChannels returns the channel count of the primary output.
func (m *ResNetV2) OutChannels() int {
	return m.stages[2].OutChannels()
}

// SkipChannels returns the channel counts of the three skip features in the
// order Forward returns them.
func (m *ResNetV2) SkipChannels() [3]int {
	return [3]int{m.width * 8, m.width * 4, m.width}
}

// Forward runs the encoder on a (batch, InputChannels, D, H, W) tensor. It
// returns the deepest feature map and three skip features ordered
// [stage2, stage1, root]. Snapshots of stage 1 and stage 2 are reconciled
// against the decoder's expected spatial shapes; an out-of-tolerance
// discrepancy aborts with a ShapeMismatchError.
func (m *ResNetV2) Forward(x *tensor.Tensor) (*tensor.Tensor, []*tensor.Tensor, error) {
	if x.Rank() != 5 {
		return nil, nil, fmt.Errorf("backbone: input rank %d, want 5 (batch, channel, depth, height, width)", x.Rank())
	}
	if x.Dim(1) != m.cfg.InputChannels {
		return nil, nil, fmt.Errorf("backbone: input has %d channels, model expects %d", x.Dim(1), m.cfg.InputChannels)
	}
	orig := x.Spatial()
	for a, d := range orig {
		if d < minSpatialDim {
			return nil, nil, fmt.Errorf("backbone: spatial axis %d is %d, need at least %d", a, d, minSpatialDim)
		}
	}

	x = m.rootConv.Forward(x)
	m.rootNorm.Forward(x)
	kernels.ReLU(x.Data(), x.Data())
	features := []*tensor.Tensor{x}

	x = kernels.MaxPool3D(x, 3, 2, 0)

	for i := 0; i < 2; i++ {
		x = m.stages[i].Forward(x)
		feat, err := ensureRightShape(x, orig, i)
		if err != nil {
			return nil, nil, err
		}
		features = append(features, feat)
	}
	x = m.stages[2].Forward(x)

	for i, j := 0, len(features)-1; i < j; i, j = i+1, j-1 {
		features[i], features[j] = features[j], features[i]
	}
	return x, features, nil
}
