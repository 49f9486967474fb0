package tensor

import "fmt"

// Tensor represents a multi-dimensional array of float32.
// Data is stored row-major and lives on the CPU.
type Tensor struct {
	Shape []int     // Dimensions of the tensor (e.g., [rows, cols] for a matrix)
	Data  []float32 // Backing data
}

// NewTensor creates a new Tensor wrapping the provided data.
func NewTensor(shape []int, data []float32) (*Tensor, error) {
	size := 1
	for _, dim := range shape {
		size *= dim
	}
	if len(data) != size {
		return nil, fmt.Errorf("data length (%d) does not match shape dimensions (%d)", len(data), size)
	}
	return &Tensor{
		Shape: shape,
		Data:  data,
	}, nil
}

// Zeros creates a zero-filled tensor of the given shape.
func Zeros(shape []int) *Tensor {
	size := 1
	for _, dim := range shape {
		size *= dim
	}
	return &Tensor{
		Shape: append([]int(nil), shape...),
		Data:  make([]float32, size),
	}
}

// ZerosLike creates a zero-filled tensor with the same shape as t.
func ZerosLike(t *Tensor) *Tensor {
	return Zeros(t.Shape)
}

// Clone returns a deep copy of the tensor.
func (t *Tensor) Clone() *Tensor {
	data := make([]float32, len(t.Data))
	copy(data, t.Data)
	return &Tensor{
		Shape: append([]int(nil), t.Shape...),
		Data:  data,
	}
}

// NumElements returns the total number of elements.
func (t *Tensor) NumElements() int {
	size := 1
	for _, dim := range t.Shape {
		size *= dim
	}
	return size
}

// At returns the element at row i, column j of a 2D tensor.
func (t *Tensor) At(i, j int) float32 {
	return t.Data[i*t.Shape[1]+j]
}

// Set assigns the element at row i, column j of a 2D tensor.
func (t *Tensor) Set(i, j int, v float32) {
	t.Data[i*t.Shape[1]+j] = v
}

// Fill sets every element to v.
func (t *Tensor) Fill(v float32) {
	for i := range t.Data {
		t.Data[i] = v
	}
}

// Scale multiplies every element by v in place.
func (t *Tensor) Scale(v float32) {
	for i := range t.Data {
		t.Data[i] *= v
	}
}

// AddScaled adds alpha*other to t element-wise in place.
func (t *Tensor) AddScaled(other *Tensor, alpha float32) error {
	if len(t.Data) != len(other.Data) {
		return fmt.Errorf("tensor size mismatch: %d vs %d", len(t.Data), len(other.Data))
	}
	for i := range t.Data {
		t.Data[i] += alpha * other.Data[i]
	}
	return nil
}

// SameShape reports whether t and other have identical shapes.
func (t *Tensor) SameShape(other *Tensor) bool {
	if len(t.Shape) != len(other.Shape) {
		return false
	}
	for i, d := range t.Shape {
		if d != other.Shape[i] {
			return false
		}
	}
	return true
}
