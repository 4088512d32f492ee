package kernels

import (
	"testing"

	"github.com/lth/pure-go-voxnet/pkg/tensor"
)

func TestMaxPool3DFullWindow(t *testing.T) {
	data := make([]float32, 27)
	for i := range data {
		data[i] = float32(i)
	}
	x := mustTensor(t, data, 1, 1, 3, 3, 3)

	out := MaxPool3D(x, 3, 2, 0)
	if got := out.Shape(); got[2] != 1 || got[3] != 1 || got[4] != 1 {
		t.Fatalf("output shape = %v, want spatial 1x1x1", got)
	}
	if out.Data()[0] != 26 {
		t.Errorf("out = %f, want 26", out.Data()[0])
	}
}

func TestMaxPool3DIdentityWindow(t *testing.T) {
	data := []float32{4, -2, 7, 0, 1, -9, 3, 5}
	x := mustTensor(t, data, 1, 1, 2, 2, 2)

	out := MaxPool3D(x, 1, 1, 0)
	for i, v := range out.Data() {
		if v != data[i] {
			t.Errorf("out[%d] = %f, want %f", i, v, data[i])
		}
	}
}

func TestMaxPool3DStride(t *testing.T) {
	// 4-wide axis with k=2, s=2 splits into two disjoint windows.
	x := tensor.New(1, 2, 4, 4, 4)
	x.Set5(0, 0, 1, 1, 1, 5)
	x.Set5(0, 0, 3, 3, 3, 9)
	x.Set5(0, 1, 0, 0, 0, -1)

	out := MaxPool3D(x, 2, 2, 0)
	if got := out.Shape(); got[2] != 2 || got[3] != 2 || got[4] != 2 {
		t.Fatalf("output shape = %v, want spatial 2x2x2", got)
	}
	if got := out.At5(0, 0, 0, 0, 0); got != 5 {
		t.Errorf("window (0,0,0) = %f, want 5", got)
	}
	if got := out.At5(0, 0, 1, 1, 1); got != 9 {
		t.Errorf("window (1,1,1) = %f, want 9", got)
	}
	// All-zero window on channel 1 stays 0; the -1 sits alongside zeros.
	if got := out.At5(0, 1, 0, 0, 0); got != 0 {
		t.Errorf("channel 1 window (0,0,0) = %f, want 0", got)
	}
}

func TestMaxPool3DPanicsOnTinyInput(t *testing.T) {
	x := tensor.New(1, 1, 2, 2, 2)
	defer func() {
		if recover() == nil {
			t.Errorf("expected panic for 2-wide input under a 3-wide window")
		}
	}()
	MaxPool3D(x, 3, 2, 0)
}
