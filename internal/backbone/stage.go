package backbone

import (
	"fmt"

	"golang.org/x/exp/rand"

	"github.com/lth/pure-go-voxnet/pkg/tensor"
)

// Stage is an ordered run of bottleneck units sharing one channel-width
// tier. The first unit carries the stage's stride and width transition; the
// rest preserve width at stride 1.
type Stage struct {
	units []*PreActBottleneck
}

// BuildStage constructs a stage of unitCount units.
func BuildStage(rng *rand.Rand, unitCount, cin, cout, cmid, stride int) (*Stage, error) {
	if unitCount < 1 {
		return nil, fmt.Errorf("stage: unit count %d, need at least 1", unitCount)
	}

	units := make([]*PreActBottleneck, 0, unitCount)
	first, err := NewPreActBottleneck(rng, cin, cout, cmid, stride)
	if err != nil {
		return nil, fmt.Errorf("stage unit 1: %w", err)
	}
	units = append(units, first)

	for i := 2; i <= unitCount; i++ {
		u, err := NewPreActBottleneck(rng, cout, cout, cmid, 1)
		if err != nil {
			return nil, fmt.Errorf("stage unit %d: %w", i, err)
		}
		units = append(units, u)
	}

	return &Stage{units: units}, nil
}

// Forward runs the units in order.
func (s *Stage) Forward(x *tensor.Tensor) *tensor.Tensor {
	for _, u := range s.units {
		x = u.Forward(x)
	}
	return x
}

// Len returns the number of units.
func (s *Stage) Len() int {
	return len(s.units)
}

// OutChannels returns the output channel count of the last unit.
func (s *Stage) OutChannels() int {
	return s.units[len(s.units)-1].OutChannels()
}
