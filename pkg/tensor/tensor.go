// Package tensor provides the dense tensor container shared by the kernels
// and the backbone. Layout is row-major NCDHW: for a rank-5 tensor the last
// axis (width) is contiguous in memory.
package tensor

import "fmt"

// Tensor is a dense float32 tensor. The zero value is not usable; construct
// with New, Zeros or FromSlice.
type Tensor struct {
	shape []int
	data  []float32
}

// New allocates a zero-filled tensor with the given shape.
func New(shape ...int) *Tensor {
	n := 1
	for i, d := range shape {
		if d <= 0 {
			panic(fmt.Sprintf("tensor: dimension %d is %d, must be positive", i, d))
		}
		n *= d
	}
	return &Tensor{
		shape: append([]int(nil), shape...),
		data:  make([]float32, n),
	}
}

// Zeros is an alias for New kept for call-site readability.
func Zeros(shape ...int) *Tensor {
	return New(shape...)
}

// FromSlice wraps an existing slice without copying. The slice length must
// match the product of the shape.
func FromSlice(data []float32, shape ...int) (*Tensor, error) {
	n := 1
	for i, d := range shape {
		if d <= 0 {
			return nil, fmt.Errorf("tensor: dimension %d is %d, must be positive", i, d)
		}
		n *= d
	}
	if len(data) != n {
		return nil, fmt.Errorf("tensor: data length %d does not match shape %v (%d elements)", len(data), shape, n)
	}
	return &Tensor{shape: append([]int(nil), shape...), data: data}, nil
}

// Rank returns the number of axes.
func (t *Tensor) Rank() int {
	return len(t.shape)
}

// Dim returns the size of axis i.
func (t *Tensor) Dim(i int) int {
	return t.shape[i]
}

// Shape returns a copy of the shape.
func (t *Tensor) Shape() []int {
	return append([]int(nil), t.shape...)
}

// Data returns the backing slice. Writes through it mutate the tensor.
func (t *Tensor) Data() []float32 {
	return t.data
}

// NumElements returns the total number of elements.
func (t *Tensor) NumElements() int {
	return len(t.data)
}

// Spatial returns the trailing (depth, height, width) dimensions of a rank-5
// tensor.
func (t *Tensor) Spatial() [3]int {
	if len(t.shape) != 5 {
		panic(fmt.Sprintf("tensor: Spatial on rank-%d tensor", len(t.shape)))
	}
	return [3]int{t.shape[2], t.shape[3], t.shape[4]}
}

// At5 reads element (n, c, d, h, w) of a rank-5 tensor.
func (t *Tensor) At5(n, c, d, h, w int) float32 {
	return t.data[t.offset5(n, c, d, h, w)]
}

// Set5 writes element (n, c, d, h, w) of a rank-5 tensor.
func (t *Tensor) Set5(n, c, d, h, w int, v float32) {
	t.data[t.offset5(n, c, d, h, w)] = v
}

func (t *Tensor) offset5(n, c, d, h, w int) int {
	s := t.shape
	return ((((n*s[1]+c)*s[2]+d)*s[3]+h)*s[4] + w)
}

// Clone returns a deep copy.
func (t *Tensor) Clone() *Tensor {
	out := &Tensor{
		shape: append([]int(nil), t.shape...),
		data:  make([]float32, len(t.data)),
	}
	copy(out.data, t.data)
	return out
}
