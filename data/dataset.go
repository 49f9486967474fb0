// Package data provides datasets, samplers and the batching loader used
// by the training loop. The distributed sampler partitions a dataset
// across ranks so each replica sees a disjoint, equally sized shard.
package data

import (
	"fmt"

	"github.com/tsawler/go-ddp/tensor"
)

// Dataset is a random-access collection of labeled examples. Item
// returns one example tensor and its class label.
type Dataset interface {
	Len() int
	Item(i int) (*tensor.Tensor, int, error)
}

// SliceDataset wraps parallel slices of examples and labels. Used for
// in-memory datasets and in tests.
type SliceDataset struct {
	Examples []*tensor.Tensor
	Labels   []int
}

func NewSliceDataset(examples []*tensor.Tensor, labels []int) (*SliceDataset, error) {
	if len(examples) != len(labels) {
		return nil, fmt.Errorf("examples and labels length mismatch: %d vs %d", len(examples), len(labels))
	}
	return &SliceDataset{Examples: examples, Labels: labels}, nil
}

func (d *SliceDataset) Len() int {
	return len(d.Examples)
}

func (d *SliceDataset) Item(i int) (*tensor.Tensor, int, error) {
	if i < 0 || i >= len(d.Examples) {
		return nil, 0, fmt.Errorf("index %d out of range for dataset of length %d", i, len(d.Examples))
	}
	return d.Examples[i], d.Labels[i], nil
}
