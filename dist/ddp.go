package dist

import (
	"context"
	"fmt"

	"github.com/tsawler/go-ddp/tensor"
)

// Model is the slice of a network the process group needs: its flat
// parameter and gradient tensors, in a stable order shared by every
// rank.
type Model interface {
	Parameters() []*tensor.Tensor
	Gradients() []*tensor.Tensor
}

// DDP keeps replicas of a model synchronized across a process group.
// Construction broadcasts rank 0's parameters so every replica starts
// identical; AllReduceGradients averages gradients after each backward
// pass so every replica takes the same optimizer step.
type DDP struct {
	model Model
	group *ProcessGroup
}

// NewDDP wraps model in the group, broadcasting rank 0's parameters to
// all ranks.
func NewDDP(ctx context.Context, model Model, group *ProcessGroup) (*DDP, error) {
	d := &DDP{model: model, group: group}
	if group.WorldSize() > 1 {
		for i, p := range model.Parameters() {
			if err := group.Broadcast(ctx, p.Data, 0); err != nil {
				return nil, fmt.Errorf("broadcast parameter %d: %w", i, err)
			}
		}
	}
	return d, nil
}

// Model returns the wrapped model.
func (d *DDP) Model() Model {
	return d.model
}

// AllReduceGradients replaces each local gradient with the mean of that
// gradient across all ranks. With a single rank it is a no-op.
func (d *DDP) AllReduceGradients(ctx context.Context) error {
	if d.group.WorldSize() <= 1 {
		return nil
	}
	inv := float32(1) / float32(d.group.WorldSize())
	for i, g := range d.model.Gradients() {
		if err := d.group.AllReduce(ctx, g.Data, OpSum); err != nil {
			return fmt.Errorf("all-reduce gradient %d: %w", i, err)
		}
		for j := range g.Data {
			g.Data[j] *= inv
		}
	}
	return nil
}
