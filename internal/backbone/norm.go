package backbone

import (
	"fmt"

	"github.com/lth/pure-go-voxnet/internal/kernels"
	"github.com/lth/pure-go-voxnet/pkg/tensor"
)

// Epsilons for the two group-normalization configurations the network uses.
// The three norms inside a bottleneck use 32 groups with normEps; the
// projection shortcut normalizes one channel per group with projNormEps.
// The asymmetry is deliberate and must not be unified: it matches the
// numerical behavior of the reference weights.
const (
	normGroups  = 32
	normEps     = 1e-6
	projNormEps = 1e-5
)

// GroupNorm holds the per-channel scale and shift of a group-normalization
// layer. Group count and epsilon are explicit fields, never ambient
// defaults.
type GroupNorm struct {
	channels int
	groups   int
	eps      float32
	scale    []float32
	shift    []float32
}

// NewGroupNorm builds a layer with scale 1 and shift 0. The channel count
// must be divisible by the group count.
func NewGroupNorm(channels, groups int, eps float32) (*GroupNorm, error) {
	if channels <= 0 || groups <= 0 {
		return nil, fmt.Errorf("groupnorm: channels=%d groups=%d, both must be positive", channels, groups)
	}
	if channels%groups != 0 {
		return nil, fmt.Errorf("groupnorm: %d channels not divisible by %d groups", channels, groups)
	}
	g := &GroupNorm{
		channels: channels,
		groups:   groups,
		eps:      eps,
		scale:    make([]float32, channels),
		shift:    make([]float32, channels),
	}
	for i := range g.scale {
		g.scale[i] = 1
	}
	return g, nil
}

// Forward normalizes x in place.
func (g *GroupNorm) Forward(x *tensor.Tensor) {
	kernels.GroupNorm3D(x, g.scale, g.shift, g.groups, g.eps)
}
