package backbone

import (
	"fmt"

	"golang.org/x/exp/rand"

	"github.com/lth/pure-go-voxnet/internal/kernels"
	"github.com/lth/pure-go-voxnet/pkg/tensor"
)

// projection is the shortcut taken when the unit changes channel count or
// stride: a strided 1x1x1 standardized convolution followed by per-channel
// group normalization (one channel per group).
type projection struct {
	conv *StdConv3D
	norm *GroupNorm
}

// PreActBottleneck is a pre-activation (v2) bottleneck unit. The shortcut is
// resolved once at construction: proj is nil for the identity case and set
// when stride != 1 or cin != cout.
type PreActBottleneck struct {
	cin, cout, cmid int
	stride          int

	gn1, gn2, gn3       *GroupNorm
	conv1, conv2, conv3 *StdConv3D
	proj                *projection
}

// NewPreActBottleneck builds a unit. cout defaults to cin and cmid to cout/4
// when left zero; stride defaults to 1. The internal norms require cmid and
// cout to be divisible by 32.
func NewPreActBottleneck(rng *rand.Rand, cin, cout, cmid, stride int) (*PreActBottleneck, error) {
	if cin <= 0 {
		return nil, fmt.Errorf("bottleneck: cin=%d, must be positive", cin)
	}
	if cout == 0 {
		cout = cin
	}
	if cmid == 0 {
		cmid = cout / 4
	}
	if stride == 0 {
		stride = 1
	}

	u := &PreActBottleneck{cin: cin, cout: cout, cmid: cmid, stride: stride}

	var err error
	if u.gn1, err = NewGroupNorm(cmid, normGroups, normEps); err != nil {
		return nil, fmt.Errorf("bottleneck gn1: %w", err)
	}
	if u.conv1, err = conv1x1x1(rng, cin, cmid, 1); err != nil {
		return nil, fmt.Errorf("bottleneck conv1: %w", err)
	}
	if u.gn2, err = NewGroupNorm(cmid, normGroups, normEps); err != nil {
		return nil, fmt.Errorf("bottleneck gn2: %w", err)
	}
	// The stride sits on the 3x3x3 convolution, not on conv1.
	if u.conv2, err = conv3x3x3(rng, cmid, cmid, stride); err != nil {
		return nil, fmt.Errorf("bottleneck conv2: %w", err)
	}
	if u.gn3, err = NewGroupNorm(cout, normGroups, normEps); err != nil {
		return nil, fmt.Errorf("bottleneck gn3: %w", err)
	}
	if u.conv3, err = conv1x1x1(rng, cmid, cout, 1); err != nil {
		return nil, fmt.Errorf("bottleneck conv3: %w", err)
	}

	if stride != 1 || cin != cout {
		// Projection also pre-activated, one channel per norm group.
		conv, err := conv1x1x1(rng, cin, cout, stride)
		if err != nil {
			return nil, fmt.Errorf("bottleneck projection conv: %w", err)
		}
		norm, err := NewGroupNorm(cout, cout, projNormEps)
		if err != nil {
			return nil, fmt.Errorf("bottleneck projection norm: %w", err)
		}
		u.proj = &projection{conv: conv, norm: norm}
	}

	return u, nil
}

// Forward runs the unit: projected or identity residual, the three-conv
// branch, then an elementwise ReLU over their sum.
func (u *PreActBottleneck) Forward(x *tensor.Tensor) *tensor.Tensor {
	residual := x
	if u.proj != nil {
		residual = u.proj.conv.Forward(x)
		u.proj.norm.Forward(residual)
	}

	y := u.conv1.Forward(x)
	u.gn1.Forward(y)
	kernels.ReLU(y.Data(), y.Data())

	y = u.conv2.Forward(y)
	u.gn2.Forward(y)
	kernels.ReLU(y.Data(), y.Data())

	y = u.conv3.Forward(y)
	u.gn3.Forward(y)

	kernels.AddReLU(y.Data(), y.Data(), residual.Data())
	return y
}

// OutChannels returns the unit's declared output channel count.
func (u *PreActBottleneck) OutChannels() int {
	return u.cout
}

// HasProjection reports whether the shortcut is a projection rather than the
// identity.
func (u *PreActBottleneck) HasProjection() bool {
	return u.proj != nil
}
