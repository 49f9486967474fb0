package optimizer_test

import (
	"math"
	"testing"

	"github.com/tsawler/go-ddp/optimizer"
)

func TestStepDecayScheduler(t *testing.T) {
	opt := optimizer.NewSGD(optimizer.SGDConfig{
		OptimizerConfig: optimizer.OptimizerConfig{LearningRate: 1.0},
	})
	sched := optimizer.NewStepDecayScheduler(1.0, 0.7, 1)
	sched.SetOptimizer(opt)

	wantLRs := []float32{1.0, 0.7, 0.49, 0.343}
	for epoch, want := range wantLRs {
		if err := sched.Step(int64(epoch)); err != nil {
			t.Fatalf("step %d: %v", epoch, err)
		}
		if math.Abs(float64(sched.GetLR()-want)) > 1e-5 {
			t.Fatalf("epoch %d: got lr %f want %f", epoch, sched.GetLR(), want)
		}
		if opt.GetLearningRate() != sched.GetLR() {
			t.Fatalf("epoch %d: optimizer lr %f not synced with scheduler %f", epoch, opt.GetLearningRate(), sched.GetLR())
		}
	}
}

func TestStepDecaySchedulerStepSize(t *testing.T) {
	sched := optimizer.NewStepDecayScheduler(1.0, 0.5, 3)
	if err := sched.Step(2); err != nil {
		t.Fatalf("step: %v", err)
	}
	if sched.GetLR() != 1.0 {
		t.Fatalf("lr decayed too early: %f", sched.GetLR())
	}
	if err := sched.Step(3); err != nil {
		t.Fatalf("step: %v", err)
	}
	if sched.GetLR() != 0.5 {
		t.Fatalf("lr after one decay period: got %f want 0.5", sched.GetLR())
	}
}

func TestExponentialDecayScheduler(t *testing.T) {
	sched := optimizer.NewExponentialDecayScheduler(0.1, 0.9, 100)
	if err := sched.Step(0); err != nil {
		t.Fatalf("step: %v", err)
	}
	if math.Abs(float64(sched.GetLR()-0.1)) > 1e-7 {
		t.Fatalf("initial lr: got %f want 0.1", sched.GetLR())
	}
	if err := sched.Step(100); err != nil {
		t.Fatalf("step: %v", err)
	}
	if math.Abs(float64(sched.GetLR()-0.09)) > 1e-5 {
		t.Fatalf("lr after one decay period: got %f want 0.09", sched.GetLR())
	}
}
