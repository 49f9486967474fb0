package nn

import (
	"fmt"

	"github.com/tsawler/go-ddp/tensor"
)

// Reduction selects how per-sample losses are combined.
type Reduction int

const (
	ReductionMean Reduction = iota
	ReductionSum
)

func (r Reduction) String() string {
	switch r {
	case ReductionMean:
		return "mean"
	case ReductionSum:
		return "sum"
	default:
		return "unknown"
	}
}

// NLLLoss computes the negative log likelihood loss over [N, classes]
// log-probabilities, the pairing for a LogSoftmax output head.
func NLLLoss(logProbs *tensor.Tensor, targets []int, reduction Reduction) (float32, error) {
	if len(logProbs.Shape) != 2 {
		return 0, fmt.Errorf("nll: log probs must be 2D, got %v", logProbs.Shape)
	}
	n, classes := logProbs.Shape[0], logProbs.Shape[1]
	if len(targets) != n {
		return 0, fmt.Errorf("nll: %d targets for batch of %d", len(targets), n)
	}
	var total float64
	for i, target := range targets {
		if target < 0 || target >= classes {
			return 0, fmt.Errorf("nll: target %d out of range [0, %d)", target, classes)
		}
		total -= float64(logProbs.Data[i*classes+target])
	}
	if reduction == ReductionMean {
		total /= float64(n)
	}
	return float32(total), nil
}

// NLLLossBackward returns the gradient of the loss with respect to the
// log-probabilities.
func NLLLossBackward(logProbs *tensor.Tensor, targets []int, reduction Reduction) (*tensor.Tensor, error) {
	n, classes := logProbs.Shape[0], logProbs.Shape[1]
	if len(targets) != n {
		return nil, fmt.Errorf("nll: %d targets for batch of %d", len(targets), n)
	}
	grad := tensor.Zeros(logProbs.Shape)
	scale := float32(1)
	if reduction == ReductionMean {
		scale = 1 / float32(n)
	}
	for i, target := range targets {
		if target < 0 || target >= classes {
			return nil, fmt.Errorf("nll: target %d out of range [0, %d)", target, classes)
		}
		grad.Data[i*classes+target] = -scale
	}
	return grad, nil
}

// Argmax returns the index of the largest value in each row of a
// [N, classes] tensor.
func Argmax(t *tensor.Tensor) []int {
	n, classes := t.Shape[0], t.Shape[1]
	out := make([]int, n)
	for i := 0; i < n; i++ {
		row := t.Data[i*classes : (i+1)*classes]
		best := 0
		for j, v := range row {
			if v > row[best] {
				best = j
			}
		}
		out[i] = best
	}
	return out
}
