package kernels

import (
	"testing"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"

	"github.com/lth/pure-go-voxnet/pkg/tensor"
)

func mustTensor(t *testing.T, data []float32, shape ...int) *tensor.Tensor {
	t.Helper()
	x, err := tensor.FromSlice(data, shape...)
	if err != nil {
		t.Fatalf("tensor: %v", err)
	}
	return x
}

func TestConv3DIdentity(t *testing.T) {
	x := mustTensor(t, []float32{1, 2, 3, 4, 5, 6, 7, 8}, 1, 1, 2, 2, 2)
	w := mustTensor(t, []float32{1}, 1, 1, 1, 1, 1)

	out := Conv3D(x, w, nil, 1, 0, 1, 1)
	for i, v := range out.Data() {
		if v != x.Data()[i] {
			t.Errorf("out[%d] = %f, want %f", i, v, x.Data()[i])
		}
	}
}

func TestConv3DFullWindowSum(t *testing.T) {
	data := make([]float32, 8)
	var sum float32
	for i := range data {
		data[i] = float32(i)
		sum += float32(i)
	}
	x := mustTensor(t, data, 1, 1, 2, 2, 2)
	w := mustTensor(t, []float32{1, 1, 1, 1, 1, 1, 1, 1}, 1, 1, 2, 2, 2)

	out := Conv3D(x, w, nil, 1, 0, 1, 1)
	if got := out.Shape(); got[2] != 1 || got[3] != 1 || got[4] != 1 {
		t.Fatalf("output shape = %v, want spatial 1x1x1", got)
	}
	if out.Data()[0] != sum {
		t.Errorf("out = %f, want %f", out.Data()[0], sum)
	}
}

func TestConv3DStridePad(t *testing.T) {
	data := make([]float32, 27)
	for i := range data {
		data[i] = 1
	}
	x := mustTensor(t, data, 1, 1, 3, 3, 3)
	wdata := make([]float32, 27)
	for i := range wdata {
		wdata[i] = 1
	}
	w := mustTensor(t, wdata, 1, 1, 3, 3, 3)

	out := Conv3D(x, w, nil, 2, 1, 1, 1)
	if got := out.Shape(); got[2] != 2 || got[3] != 2 || got[4] != 2 {
		t.Fatalf("output shape = %v, want spatial 2x2x2", got)
	}
	// Every 3-wide window offset by ±1 sees exactly 2 in-bounds positions
	// per axis, so each output sums 8 ones.
	for i, v := range out.Data() {
		if v != 8 {
			t.Errorf("out[%d] = %f, want 8", i, v)
		}
	}
}

func TestConv3DBias(t *testing.T) {
	x := mustTensor(t, []float32{1, 2, 3, 4, 5, 6, 7, 8}, 1, 1, 2, 2, 2)
	w := mustTensor(t, []float32{1}, 1, 1, 1, 1, 1)

	out := Conv3D(x, w, []float32{10}, 1, 0, 1, 1)
	for i, v := range out.Data() {
		if v != x.Data()[i]+10 {
			t.Errorf("out[%d] = %f, want %f", i, v, x.Data()[i]+10)
		}
	}
}

func TestConv3DGroups(t *testing.T) {
	x := mustTensor(t, []float32{1, 2}, 1, 2, 1, 1, 1)
	// Two groups, one channel each: out[0] = 3*x[0], out[1] = 5*x[1].
	w := mustTensor(t, []float32{3, 5}, 2, 1, 1, 1, 1)

	out := Conv3D(x, w, nil, 1, 0, 1, 2)
	if out.Data()[0] != 3 || out.Data()[1] != 10 {
		t.Errorf("out = %v, want [3 10]", out.Data())
	}
}

func TestConv3DDilation(t *testing.T) {
	data := make([]float32, 125)
	x := mustTensor(t, data, 1, 1, 5, 5, 5)
	for d := 0; d < 5; d++ {
		for h := 0; h < 5; h++ {
			for w := 0; w < 5; w++ {
				x.Set5(0, 0, d, h, w, float32(d))
			}
		}
	}
	w := mustTensor(t, []float32{1, 1, 1, 1, 1, 1, 1, 1}, 1, 1, 2, 2, 2)

	out := Conv3D(x, w, nil, 1, 0, 2, 1)
	if got := out.Shape(); got[2] != 3 || got[3] != 3 || got[4] != 3 {
		t.Fatalf("output shape = %v, want spatial 3x3x3", got)
	}
	// Each output sums x over depths d and d+2, across 4 (kh, kw) taps.
	for d := 0; d < 3; d++ {
		want := float32(2*d+2) * 4
		if got := out.At5(0, 0, d, 0, 0); got != want {
			t.Errorf("out depth %d = %f, want %f", d, got, want)
		}
	}
}

// referenceConv3D is an independent float64 implementation used to
// cross-check the kernel on random inputs.
func referenceConv3D(x, w *tensor.Tensor, stride, pad int) []float64 {
	batch, inC := x.Dim(0), x.Dim(1)
	inD, inH, inW := x.Dim(2), x.Dim(3), x.Dim(4)
	outC := w.Dim(0)
	k := w.Dim(2)
	outD := ConvOutDim(inD, k, stride, pad, 1)
	outH := ConvOutDim(inH, k, stride, pad, 1)
	outW := ConvOutDim(inW, k, stride, pad, 1)

	out := make([]float64, batch*outC*outD*outH*outW)
	idx := 0
	for n := 0; n < batch; n++ {
		for oc := 0; oc < outC; oc++ {
			for od := 0; od < outD; od++ {
				for oh := 0; oh < outH; oh++ {
					for ow := 0; ow < outW; ow++ {
						acc := 0.0
						for ic := 0; ic < inC; ic++ {
							for kd := 0; kd < k; kd++ {
								id := od*stride - pad + kd
								if id < 0 || id >= inD {
									continue
								}
								for kh := 0; kh < k; kh++ {
									ih := oh*stride - pad + kh
									if ih < 0 || ih >= inH {
										continue
									}
									for kw := 0; kw < k; kw++ {
										iw := ow*stride - pad + kw
										if iw < 0 || iw >= inW {
											continue
										}
										xv := x.At5(n, ic, id, ih, iw)
										wv := w.Data()[(((oc*inC+ic)*k+kd)*k+kh)*k+kw]
										acc += float64(xv) * float64(wv)
									}
								}
							}
						}
						out[idx] = acc
						idx++
					}
				}
			}
		}
	}
	return out
}

func TestConv3DMatchesReference(t *testing.T) {
	rng := rand.New(rand.NewSource(11))

	x := tensor.New(2, 3, 6, 5, 4)
	for i := range x.Data() {
		x.Data()[i] = float32(rng.Float64()*2 - 1)
	}
	w := tensor.New(4, 3, 3, 3, 3)
	for i := range w.Data() {
		w.Data()[i] = float32(rng.Float64()*2 - 1)
	}

	out := Conv3D(x, w, nil, 2, 1, 1, 1)
	want := referenceConv3D(x, w, 2, 1)

	got := make([]float64, len(out.Data()))
	for i, v := range out.Data() {
		got[i] = float64(v)
	}
	if len(got) != len(want) {
		t.Fatalf("output has %d elements, reference has %d", len(got), len(want))
	}
	if !floats.EqualApprox(got, want, 1e-3) {
		t.Errorf("kernel output diverges from float64 reference")
	}
}

func TestConv3DPanicsOnBadShapes(t *testing.T) {
	x := tensor.New(1, 2, 3, 3, 3)
	w := tensor.New(2, 1, 3, 3, 3) // expects 1 channel per group but groups=1

	defer func() {
		if recover() == nil {
			t.Errorf("expected panic for weight/input channel mismatch")
		}
	}()
	Conv3D(x, w, nil, 1, 1, 1, 1)
}
