package backbone

import (
	"errors"
	"fmt"

	"github.com/lth/pure-go-voxnet/pkg/tensor"
)

// maxReconcilePad bounds the zero-padding correction applied to a skip
// feature. The bound is tied to the stem's stride/kernel schedule; a larger
// discrepancy means the input size is incompatible with the downsampling
// schedule, which must surface as an error rather than a silently
// wrong-shaped tensor.
const maxReconcilePad = 3

// ErrShapeMismatch is the sentinel wrapped by every ShapeMismatchError.
var ErrShapeMismatch = errors.New("skip feature shape outside tolerance")

// ShapeMismatchError reports a skip feature whose spatial shape cannot be
// reconciled with the shape the decoder expects at that stage.
type ShapeMismatchError struct {
	Stage int    // zero-indexed stage
	Want  [3]int // expected (D, H, W)
	Got   [3]int // actual (D, H, W)
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("stage %d skip feature is %v, want %v (pad tolerance 0..%d per axis)",
		e.Stage+1, e.Got, e.Want, maxReconcilePad)
}

func (e *ShapeMismatchError) Unwrap() error {
	return ErrShapeMismatch
}

// ensureRightShape aligns a stage output with the spatial shape the decoder
// expects for stage i: floor(orig / 4 / (i+1)) per axis. A matching shape is
// returned as-is, no copy. Otherwise the output is placed in the low-index
// corner of a zero tensor of the expected shape, provided the per-axis
// deficit lies in [0, maxReconcilePad]; anything outside that band fails
// with a ShapeMismatchError.
func ensureRightShape(x *tensor.Tensor, orig [3]int, stage int) (*tensor.Tensor, error) {
	div := 4 * (stage + 1)
	var want [3]int
	for a := 0; a < 3; a++ {
		want[a] = orig[a] / div
	}

	got := x.Spatial()
	if got == want {
		return x, nil
	}
	for a := 0; a < 3; a++ {
		pad := want[a] - got[a]
		if pad < 0 || pad > maxReconcilePad {
			return nil, &ShapeMismatchError{Stage: stage, Want: want, Got: got}
		}
	}

	batch, channels := x.Dim(0), x.Dim(1)
	feat := tensor.New(batch, channels, want[0], want[1], want[2])
	fd, xd := feat.Data(), x.Data()
	for n := 0; n < batch; n++ {
		for c := 0; c < channels; c++ {
			for d := 0; d < got[0]; d++ {
				for h := 0; h < got[1]; h++ {
					src := ((((n*channels+c)*got[0]+d)*got[1] + h) * got[2])
					dst := ((((n*channels+c)*want[0]+d)*want[1] + h) * want[2])
					copy(fd[dst:dst+got[2]], xd[src:src+got[2]])
				}
			}
		}
	}
	return feat, nil
}
