package nn

import (
	"fmt"
	"math/rand"

	"github.com/tsawler/go-ddp/tensor"
)

// Linear is a fully connected layer computing y = x*W^T + b.
type Linear struct {
	InFeatures  int
	OutFeatures int

	Weight     *tensor.Tensor // [out, in]
	Bias       *tensor.Tensor // [out]
	GradWeight *tensor.Tensor
	GradBias   *tensor.Tensor

	lastInput *tensor.Tensor
}

// NewLinear creates a fully connected layer with Kaiming-uniform weights.
func NewLinear(inFeatures, outFeatures int, rng *rand.Rand) *Linear {
	weight := tensor.Zeros([]int{outFeatures, inFeatures})
	bias := tensor.Zeros([]int{outFeatures})
	kaimingUniform(weight, inFeatures, rng)
	uniformBias(bias, inFeatures, rng)
	return &Linear{
		InFeatures:  inFeatures,
		OutFeatures: outFeatures,
		Weight:      weight,
		Bias:        bias,
		GradWeight:  tensor.ZerosLike(weight),
		GradBias:    tensor.ZerosLike(bias),
	}
}

// Forward computes the affine transform of a [N, in] input.
func (l *Linear) Forward(input *tensor.Tensor) (*tensor.Tensor, error) {
	if len(input.Shape) != 2 || input.Shape[1] != l.InFeatures {
		return nil, fmt.Errorf("linear: expected input [N, %d], got %v", l.InFeatures, input.Shape)
	}
	n := input.Shape[0]
	l.lastInput = input

	out := tensor.Zeros([]int{n, l.OutFeatures})
	matmulTransB(input.Data, l.Weight.Data, out.Data, n, l.InFeatures, l.OutFeatures)
	for i := 0; i < n; i++ {
		row := out.Data[i*l.OutFeatures : (i+1)*l.OutFeatures]
		for j := range row {
			row[j] += l.Bias.Data[j]
		}
	}
	return out, nil
}

// Backward accumulates weight/bias gradients and returns the input gradient.
func (l *Linear) Backward(gradOut *tensor.Tensor) (*tensor.Tensor, error) {
	if l.lastInput == nil {
		return nil, fmt.Errorf("linear: backward called before forward")
	}
	n := l.lastInput.Shape[0]

	// dW += dy^T * x
	gradW := make([]float32, len(l.GradWeight.Data))
	matmulTransA(gradOut.Data, l.lastInput.Data, gradW, l.OutFeatures, n, l.InFeatures)
	for i, v := range gradW {
		l.GradWeight.Data[i] += v
	}
	for i := 0; i < n; i++ {
		row := gradOut.Data[i*l.OutFeatures : (i+1)*l.OutFeatures]
		for j, v := range row {
			l.GradBias.Data[j] += v
		}
	}

	gradIn := tensor.Zeros(l.lastInput.Shape)
	matmul(gradOut.Data, l.Weight.Data, gradIn.Data, n, l.OutFeatures, l.InFeatures)
	return gradIn, nil
}

// Params returns the trainable parameters.
func (l *Linear) Params() []*tensor.Tensor {
	return []*tensor.Tensor{l.Weight, l.Bias}
}

// Grads returns the parameter gradients, ordered as Params.
func (l *Linear) Grads() []*tensor.Tensor {
	return []*tensor.Tensor{l.GradWeight, l.GradBias}
}
