package weights

import (
	"fmt"

	"github.com/lth/pure-go-voxnet/internal/backbone"
)

// SaveParams writes a model's parameters to a checkpoint in native layout.
func SaveParams(path string, params []backbone.Param) error {
	tensors := make([]Tensor, len(params))
	for i, p := range params {
		tensors[i] = Tensor{Name: p.Name, Shape: p.Shape, Data: p.Data}
	}
	return Save(path, tensors)
}

// Apply copies checkpoint tensors in native layout onto the model
// parameters. Every parameter must be present with a matching shape.
func Apply(r *Reader, params []backbone.Param) error {
	for _, p := range params {
		data, shape, err := r.Float32(p.Name)
		if err != nil {
			return err
		}
		if !shapeEqual(shape, p.Shape) {
			return fmt.Errorf("tensor %q has shape %v, model expects %v", p.Name, shape, p.Shape)
		}
		copy(p.Data, data)
	}
	return nil
}

// ApplyExternal copies checkpoint tensors onto the model parameters,
// converting convolution kernels from the external (kD, kH, kW, inC, outC)
// axis order. Norm parameters are flat and copied as-is.
func ApplyExternal(r *Reader, params []backbone.Param) error {
	for _, p := range params {
		data, shape, err := r.Float32(p.Name)
		if err != nil {
			return err
		}
		if p.Kind != backbone.KindConvKernel {
			if !shapeEqual(shape, p.Shape) {
				return fmt.Errorf("tensor %q has shape %v, model expects %v", p.Name, shape, p.Shape)
			}
			copy(p.Data, data)
			continue
		}

		// Model shape is (outC, inC, kD, kH, kW); the file stores
		// (kD, kH, kW, inC, outC).
		if len(p.Shape) != 5 {
			return fmt.Errorf("conv kernel %q has rank %d, want 5", p.Name, len(p.Shape))
		}
		co, ci := p.Shape[0], p.Shape[1]
		kd, kh, kw := p.Shape[2], p.Shape[3], p.Shape[4]
		want := []int{kd, kh, kw, ci, co}
		if !shapeEqual(shape, want) {
			return fmt.Errorf("conv kernel %q has shape %v, external layout expects %v", p.Name, shape, want)
		}
		converted, err := TransposeConvKernel(data, kd, kh, kw, ci, co)
		if err != nil {
			return fmt.Errorf("conv kernel %q: %w", p.Name, err)
		}
		copy(p.Data, converted)
	}
	return nil
}

func shapeEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
