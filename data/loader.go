package data

import (
	"context"
	"fmt"

	"github.com/tsawler/go-ddp/tensor"
)

// Batch is one collated mini-batch: examples stacked along a leading
// batch dimension plus their labels.
type Batch struct {
	Examples *tensor.Tensor
	Labels   []int
	Err      error
}

// Size returns the number of examples in the batch.
func (b *Batch) Size() int {
	return len(b.Labels)
}

// DataLoaderConfig configures batching behavior.
type DataLoaderConfig struct {
	BatchSize int
	DropLast  bool
	Prefetch  int // batches assembled ahead of the consumer by Stream
}

// DataLoader batches a dataset in the order given by its sampler.
type DataLoader struct {
	dataset Dataset
	sampler Sampler
	config  DataLoaderConfig
}

func NewDataLoader(dataset Dataset, sampler Sampler, config DataLoaderConfig) (*DataLoader, error) {
	if config.BatchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", config.BatchSize)
	}
	if config.Prefetch < 0 {
		return nil, fmt.Errorf("prefetch must be non-negative, got %d", config.Prefetch)
	}
	return &DataLoader{dataset: dataset, sampler: sampler, config: config}, nil
}

// SetEpoch forwards the epoch to the sampler. In distributed training
// it must be called before each epoch's Stream.
func (l *DataLoader) SetEpoch(epoch int) {
	l.sampler.SetEpoch(epoch)
}

// NumBatches is the number of batches one pass over the sampler yields.
func (l *DataLoader) NumBatches() int {
	n := len(l.sampler.Indices())
	if l.config.DropLast {
		return n / l.config.BatchSize
	}
	return (n + l.config.BatchSize - 1) / l.config.BatchSize
}

// NumExamples is the number of examples one pass over the sampler yields.
func (l *DataLoader) NumExamples() int {
	return len(l.sampler.Indices())
}

// Stream produces one epoch of batches on a channel. The channel is
// buffered by the prefetch depth, so collation runs ahead of the
// consumer. On error the batch carries Err and the stream ends. The
// channel is closed when the epoch is exhausted or ctx is canceled.
func (l *DataLoader) Stream(ctx context.Context) <-chan Batch {
	out := make(chan Batch, l.config.Prefetch)
	go func() {
		defer close(out)
		indices := l.sampler.Indices()
		for start := 0; start < len(indices); start += l.config.BatchSize {
			end := min(start+l.config.BatchSize, len(indices))
			if l.config.DropLast && end-start < l.config.BatchSize {
				return
			}
			batch := l.collate(indices[start:end])
			select {
			case out <- batch:
			case <-ctx.Done():
				return
			}
			if batch.Err != nil {
				return
			}
		}
	}()
	return out
}

// collate stacks the examples at the given indices into one tensor of
// shape [N, example shape...].
func (l *DataLoader) collate(indices []int) Batch {
	var stacked *tensor.Tensor
	var itemSize int
	labels := make([]int, 0, len(indices))

	for pos, idx := range indices {
		example, label, err := l.dataset.Item(idx)
		if err != nil {
			return Batch{Err: fmt.Errorf("load item %d: %w", idx, err)}
		}
		if stacked == nil {
			shape := append([]int{len(indices)}, example.Shape...)
			stacked = tensor.Zeros(shape)
			itemSize = example.NumElements()
		}
		if example.NumElements() != itemSize {
			return Batch{Err: fmt.Errorf("item %d has %d elements, want %d", idx, example.NumElements(), itemSize)}
		}
		copy(stacked.Data[pos*itemSize:(pos+1)*itemSize], example.Data)
		labels = append(labels, label)
	}
	return Batch{Examples: stacked, Labels: labels}
}
