// Package train drives the training and evaluation loops for the digit
// classifier: forward/backward passes, gradient synchronization across
// the process group, optimizer and scheduler steps, and checkpoints.
package train

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/tsawler/go-ddp/amp"
	"github.com/tsawler/go-ddp/data"
	"github.com/tsawler/go-ddp/dist"
	"github.com/tsawler/go-ddp/nn"
	"github.com/tsawler/go-ddp/optimizer"
)

// Config holds the loop-level training knobs.
type Config struct {
	Epochs      int
	LogInterval int  // batches between progress lines
	DryRun      bool // single batch per loop, no checkpoint
	SavePath    string
}

// Trainer owns one replica's training state.
type Trainer struct {
	model     *nn.Net
	ddp       *dist.DDP
	group     *dist.ProcessGroup
	opt       optimizer.Optimizer
	mixed     *amp.Optimizer // nil when training in full precision
	scheduler optimizer.LRScheduler
	logger    *log.Logger
	config    Config
}

// New assembles a trainer. When mixed is non-nil it must be the same
// object as opt; the trainer then routes loss scaling through it.
func New(model *nn.Net, ddp *dist.DDP, group *dist.ProcessGroup, opt optimizer.Optimizer, mixed *amp.Optimizer, scheduler optimizer.LRScheduler, logger *log.Logger, config Config) (*Trainer, error) {
	if config.Epochs <= 0 {
		return nil, fmt.Errorf("epochs must be positive, got %d", config.Epochs)
	}
	if config.LogInterval <= 0 {
		config.LogInterval = 10
	}
	return &Trainer{
		model:     model,
		ddp:       ddp,
		group:     group,
		opt:       opt,
		mixed:     mixed,
		scheduler: scheduler,
		logger:    logger,
		config:    config,
	}, nil
}

// EpochStats summarizes one training epoch.
type EpochStats struct {
	AvgLoss    float64
	Examples   int
	Steps      int
	PerSecond  float64
	Duration   time.Duration
	LossScale  float32
	Skipped    int64
	LearnRate  float32
}

// TestStats summarizes one evaluation pass.
type TestStats struct {
	AvgLoss  float64
	Correct  int
	Total    int
	Accuracy float64
}

// Fit runs the full schedule: for each epoch one training pass, an
// evaluation on rank 0, and a scheduler step. The final model is
// checkpointed from rank 0 when a save path is configured.
func (t *Trainer) Fit(ctx context.Context, trainLoader, testLoader *data.DataLoader) error {
	for epoch := 1; epoch <= t.config.Epochs; epoch++ {
		if _, err := t.TrainEpoch(ctx, trainLoader, epoch); err != nil {
			return fmt.Errorf("epoch %d: %w", epoch, err)
		}
		if t.group.IsPrimary() && testLoader != nil {
			if _, err := t.Evaluate(ctx, testLoader); err != nil {
				return fmt.Errorf("epoch %d evaluation: %w", epoch, err)
			}
		}
		if t.scheduler != nil {
			if err := t.scheduler.Step(int64(epoch)); err != nil {
				return fmt.Errorf("scheduler step: %w", err)
			}
		}
		// Ranks evaluate at different speeds; re-align before the next
		// epoch's collectives.
		if err := t.group.Barrier(ctx); err != nil {
			return fmt.Errorf("epoch %d barrier: %w", epoch, err)
		}
		if t.config.DryRun {
			break
		}
	}

	if t.config.SavePath != "" && !t.config.DryRun && t.group.IsPrimary() {
		if err := Save(t.config.SavePath, t.model, t.opt, t.config.Epochs); err != nil {
			return fmt.Errorf("save checkpoint: %w", err)
		}
		if t.logger != nil {
			t.logger.Printf("saved checkpoint to %s", t.config.SavePath)
		}
	}
	return nil
}

// TrainEpoch runs one pass over the training loader, synchronizing
// gradients across the process group before each optimizer step.
func (t *Trainer) TrainEpoch(ctx context.Context, loader *data.DataLoader, epoch int) (EpochStats, error) {
	t.model.Train()
	loader.SetEpoch(epoch)

	// A dry run leaves the stream mid-epoch; cancel so the producer
	// goroutine exits instead of blocking on its channel.
	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var avg Average
	throughput := NewThroughput()
	total := loader.NumExamples()
	seen := 0
	steps := 0
	start := time.Now()

	batchIdx := 0
	for batch := range loader.Stream(streamCtx) {
		if batch.Err != nil {
			return EpochStats{}, batch.Err
		}
		loss, err := t.step(ctx, &batch)
		if err != nil {
			return EpochStats{}, fmt.Errorf("batch %d: %w", batchIdx, err)
		}

		seen += batch.Size()
		steps++
		avg.Add(float64(loss), batch.Size())
		throughput.Add(batch.Size())

		if batchIdx%t.config.LogInterval == 0 && t.group.IsPrimary() && t.logger != nil {
			t.logger.Printf("Train Epoch: %d [%d/%d (%.0f%%)]\tLoss: %.6f",
				epoch, seen, total, 100*float64(seen)/float64(total), loss)
		}
		batchIdx++
		if t.config.DryRun {
			break
		}
	}
	if err := ctx.Err(); err != nil {
		return EpochStats{}, err
	}

	stats := EpochStats{
		AvgLoss:   avg.Value(),
		Examples:  seen,
		Steps:     steps,
		PerSecond: throughput.PerSecond(),
		Duration:  time.Since(start),
		LearnRate: t.opt.GetLearningRate(),
	}
	if t.mixed != nil {
		stats.LossScale = t.mixed.LossScale()
		stats.Skipped = t.mixed.SkippedSteps()
	}
	return stats, nil
}

// step runs forward, loss, backward, gradient all-reduce and the
// optimizer update for one batch, returning the batch loss.
func (t *Trainer) step(ctx context.Context, batch *data.Batch) (float32, error) {
	t.model.ZeroGrad()

	output, err := t.model.Forward(batch.Examples)
	if err != nil {
		return 0, fmt.Errorf("forward: %w", err)
	}
	loss, err := nn.NLLLoss(output, batch.Labels, nn.ReductionMean)
	if err != nil {
		return 0, fmt.Errorf("loss: %w", err)
	}
	grad, err := nn.NLLLossBackward(output, batch.Labels, nn.ReductionMean)
	if err != nil {
		return 0, fmt.Errorf("loss gradient: %w", err)
	}
	if t.mixed != nil {
		t.mixed.ScaleLossGrad(grad)
	}
	if err := t.model.Backward(grad); err != nil {
		return 0, fmt.Errorf("backward: %w", err)
	}
	// Scaled gradients sum and average the same way unscaled ones do,
	// so synchronization happens before unscaling.
	if err := t.ddp.AllReduceGradients(ctx); err != nil {
		return 0, fmt.Errorf("gradient all-reduce: %w", err)
	}
	if err := t.opt.Step(t.model.Parameters(), t.model.Gradients()); err != nil {
		return 0, fmt.Errorf("optimizer step: %w", err)
	}
	return loss, nil
}

// Evaluate runs the model over the test loader in evaluation mode,
// reporting summed loss averaged over the set and argmax accuracy.
func (t *Trainer) Evaluate(ctx context.Context, loader *data.DataLoader) (TestStats, error) {
	t.model.Eval()
	defer t.model.Train()

	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var totalLoss float64
	correct, total := 0, 0

	for batch := range loader.Stream(streamCtx) {
		if batch.Err != nil {
			return TestStats{}, batch.Err
		}
		output, err := t.model.Forward(batch.Examples)
		if err != nil {
			return TestStats{}, fmt.Errorf("forward: %w", err)
		}
		loss, err := nn.NLLLoss(output, batch.Labels, nn.ReductionSum)
		if err != nil {
			return TestStats{}, fmt.Errorf("loss: %w", err)
		}
		totalLoss += float64(loss)
		for i, pred := range nn.Argmax(output) {
			if pred == batch.Labels[i] {
				correct++
			}
		}
		total += batch.Size()
		if t.config.DryRun {
			break
		}
	}
	if err := ctx.Err(); err != nil {
		return TestStats{}, err
	}
	if total == 0 {
		return TestStats{}, fmt.Errorf("evaluation saw no examples")
	}

	stats := TestStats{
		AvgLoss:  totalLoss / float64(total),
		Correct:  correct,
		Total:    total,
		Accuracy: float64(correct) / float64(total),
	}
	if t.logger != nil {
		t.logger.Printf("Test set: Average loss: %.4f, Accuracy: %d/%d (%.0f%%)",
			stats.AvgLoss, stats.Correct, stats.Total, 100*stats.Accuracy)
	}
	return stats, nil
}
