package nn

import (
	"math"

	"github.com/tsawler/go-ddp/tensor"
)

// ReLU applies max(0, x) element-wise.
type ReLU struct {
	mask []bool
}

// NewReLU creates a ReLU activation.
func NewReLU() *ReLU {
	return &ReLU{}
}

// Forward applies the activation.
func (r *ReLU) Forward(input *tensor.Tensor) (*tensor.Tensor, error) {
	out := input.Clone()
	if cap(r.mask) < len(out.Data) {
		r.mask = make([]bool, len(out.Data))
	}
	r.mask = r.mask[:len(out.Data)]
	for i, v := range out.Data {
		if v > 0 {
			r.mask[i] = true
		} else {
			r.mask[i] = false
			out.Data[i] = 0
		}
	}
	return out, nil
}

// Backward passes gradients through where the input was positive.
func (r *ReLU) Backward(gradOut *tensor.Tensor) (*tensor.Tensor, error) {
	gradIn := gradOut.Clone()
	for i := range gradIn.Data {
		if !r.mask[i] {
			gradIn.Data[i] = 0
		}
	}
	return gradIn, nil
}

// LogSoftmax computes log-probabilities along the last dimension of a
// [N, classes] input.
type LogSoftmax struct {
	lastOutput *tensor.Tensor
}

// NewLogSoftmax creates a LogSoftmax layer.
func NewLogSoftmax() *LogSoftmax {
	return &LogSoftmax{}
}

// Forward computes numerically stable log-softmax per row.
func (s *LogSoftmax) Forward(input *tensor.Tensor) (*tensor.Tensor, error) {
	n, classes := input.Shape[0], input.Shape[1]
	out := tensor.Zeros(input.Shape)
	for i := 0; i < n; i++ {
		row := input.Data[i*classes : (i+1)*classes]
		maxVal := row[0]
		for _, v := range row {
			if v > maxVal {
				maxVal = v
			}
		}
		var sum float64
		for _, v := range row {
			sum += math.Exp(float64(v - maxVal))
		}
		logSum := float32(math.Log(sum)) + maxVal
		dst := out.Data[i*classes : (i+1)*classes]
		for j, v := range row {
			dst[j] = v - logSum
		}
	}
	s.lastOutput = out
	return out, nil
}

// Backward computes dx = dy - softmax(x) * sum(dy) per row.
func (s *LogSoftmax) Backward(gradOut *tensor.Tensor) (*tensor.Tensor, error) {
	n, classes := gradOut.Shape[0], gradOut.Shape[1]
	gradIn := tensor.Zeros(gradOut.Shape)
	for i := 0; i < n; i++ {
		dy := gradOut.Data[i*classes : (i+1)*classes]
		logp := s.lastOutput.Data[i*classes : (i+1)*classes]
		var sum float32
		for _, v := range dy {
			sum += v
		}
		dst := gradIn.Data[i*classes : (i+1)*classes]
		for j := range dst {
			dst[j] = dy[j] - float32(math.Exp(float64(logp[j])))*sum
		}
	}
	return gradIn, nil
}
