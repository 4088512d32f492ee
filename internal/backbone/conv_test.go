package backbone

import (
	"testing"

	"golang.org/x/exp/rand"

	"github.com/lth/pure-go-voxnet/internal/kernels"
	"github.com/lth/pure-go-voxnet/pkg/tensor"
)

func testRNG(seed uint64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

func randomInput(seed uint64, shape ...int) *tensor.Tensor {
	rng := testRNG(seed)
	x := tensor.New(shape...)
	data := x.Data()
	for i := range data {
		data[i] = float32(rng.NormFloat64())
	}
	return x
}

func TestNewStdConv3DValidation(t *testing.T) {
	rng := testRNG(1)

	if _, err := NewStdConv3D(rng, ConvGeometry{InChannels: 3, OutChannels: 4, Kernel: 3, Stride: 1, Pad: 1, Groups: 2}); err == nil {
		t.Errorf("expected error: 3 input channels with 2 groups")
	}
	if _, err := NewStdConv3D(rng, ConvGeometry{InChannels: 4, OutChannels: 3, Kernel: 3, Stride: 1, Pad: 1, Groups: 2}); err == nil {
		t.Errorf("expected error: 3 output channels with 2 groups")
	}
	if _, err := NewStdConv3D(rng, ConvGeometry{InChannels: 0, OutChannels: 4, Kernel: 3, Stride: 1}); err == nil {
		t.Errorf("expected error: zero input channels")
	}
	if _, err := NewStdConv3D(rng, ConvGeometry{InChannels: 2, OutChannels: 4, Kernel: 3, Stride: 0}); err == nil {
		t.Errorf("expected error: zero stride")
	}
}

func TestStdConv3DForwardShape(t *testing.T) {
	conv, err := NewStdConv3D(testRNG(2), ConvGeometry{
		InChannels:  2,
		OutChannels: 4,
		Kernel:      3,
		Stride:      2,
		Pad:         1,
	})
	if err != nil {
		t.Fatalf("NewStdConv3D: %v", err)
	}

	out := conv.Forward(randomInput(3, 1, 2, 5, 5, 5))
	want := []int{1, 4, 3, 3, 3}
	got := out.Shape()
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("output shape = %v, want %v", got, want)
		}
	}
}

func TestStdConv3DStandardizesEveryForward(t *testing.T) {
	conv, err := NewStdConv3D(testRNG(4), ConvGeometry{
		InChannels:  3,
		OutChannels: 2,
		Kernel:      3,
		Stride:      1,
		Pad:         1,
	})
	if err != nil {
		t.Fatalf("NewStdConv3D: %v", err)
	}
	x := randomInput(5, 1, 3, 4, 4, 4)

	raw := append([]float32(nil), conv.weight.Data()...)
	out := conv.Forward(x)

	// The raw weight survives the forward pass untouched.
	for i, v := range conv.weight.Data() {
		if v != raw[i] {
			t.Fatalf("raw weight mutated at %d", i)
		}
	}

	// The output matches a convolution with an explicitly standardized
	// weight, not with the raw one.
	filters := conv.geom.OutChannels
	filterSize := conv.weight.NumElements() / filters
	std := tensor.New(conv.weight.Shape()...)
	kernels.StandardizeFilters(std.Data(), conv.weight.Data(), filters, filterSize, weightEps)
	want := kernels.Conv3D(x, std, nil, 1, 1, 1, 1)
	for i, v := range out.Data() {
		if v != want.Data()[i] {
			t.Fatalf("output diverges from standardized convolution at %d", i)
		}
	}

	rawConv := kernels.Conv3D(x, conv.weight, nil, 1, 1, 1, 1)
	same := true
	for i, v := range out.Data() {
		if v != rawConv.Data()[i] {
			same = false
			break
		}
	}
	if same {
		t.Errorf("output equals raw-weight convolution; standardization not applied")
	}
}

func TestStdConv3DDeterministicInit(t *testing.T) {
	a, err := NewStdConv3D(testRNG(9), ConvGeometry{InChannels: 2, OutChannels: 2, Kernel: 3, Stride: 1, Pad: 1})
	if err != nil {
		t.Fatalf("NewStdConv3D: %v", err)
	}
	b, err := NewStdConv3D(testRNG(9), ConvGeometry{InChannels: 2, OutChannels: 2, Kernel: 3, Stride: 1, Pad: 1})
	if err != nil {
		t.Fatalf("NewStdConv3D: %v", err)
	}
	for i, v := range a.weight.Data() {
		if b.weight.Data()[i] != v {
			t.Fatalf("same seed produced different weights at %d", i)
		}
	}
}
