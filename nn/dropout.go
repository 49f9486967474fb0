package nn

import (
	"math/rand"

	"github.com/tsawler/go-ddp/tensor"
)

// Dropout zeroes activations with probability P during training and
// rescales survivors by 1/(1-P). In eval mode it is the identity.
type Dropout struct {
	P float32

	rng      *rand.Rand
	training bool
	mask     []float32
}

// NewDropout creates a dropout layer with drop probability p.
func NewDropout(p float32, rng *rand.Rand) *Dropout {
	return &Dropout{P: p, rng: rng, training: true}
}

// SetTraining toggles between train and eval behavior.
func (d *Dropout) SetTraining(training bool) {
	d.training = training
}

// Forward applies inverted dropout in training mode.
func (d *Dropout) Forward(input *tensor.Tensor) (*tensor.Tensor, error) {
	if !d.training || d.P == 0 {
		d.mask = nil
		return input, nil
	}
	out := tensor.Zeros(input.Shape)
	d.mask = make([]float32, len(input.Data))
	scale := 1 / (1 - d.P)
	for i, v := range input.Data {
		if d.rng.Float32() >= d.P {
			d.mask[i] = scale
			out.Data[i] = v * scale
		}
	}
	return out, nil
}

// Backward applies the same mask to the incoming gradient.
func (d *Dropout) Backward(gradOut *tensor.Tensor) (*tensor.Tensor, error) {
	if d.mask == nil {
		return gradOut, nil
	}
	gradIn := tensor.Zeros(gradOut.Shape)
	for i, v := range gradOut.Data {
		gradIn.Data[i] = v * d.mask[i]
	}
	return gradIn, nil
}
