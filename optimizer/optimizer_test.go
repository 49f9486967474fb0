package optimizer_test

import (
	"math"
	"testing"

	"github.com/tsawler/go-ddp/optimizer"
	"github.com/tsawler/go-ddp/tensor"
)

func TestSGDOptimizer(t *testing.T) {
	weights := []float32{0.1, 0.2, 0.3, 0.4}
	weightTensor, err := tensor.NewTensor([]int{2, 2}, weights)
	if err != nil {
		t.Fatalf("Failed to create weight tensor: %v", err)
	}
	params := []*tensor.Tensor{weightTensor}

	grad, err := tensor.NewTensor([]int{2, 2}, []float32{1, 1, 1, 1})
	if err != nil {
		t.Fatalf("Failed to create gradient tensor: %v", err)
	}
	grads := []*tensor.Tensor{grad}

	sgdConfig := optimizer.SGDConfig{
		OptimizerConfig: optimizer.OptimizerConfig{
			LearningRate: 0.1,
		},
	}
	sgdOpt := optimizer.NewSGD(sgdConfig)

	if err := sgdOpt.Step(params, grads); err != nil {
		t.Fatalf("SGD step failed: %v", err)
	}
	want := []float32{0, 0.1, 0.2, 0.3}
	for i, v := range weightTensor.Data {
		if math.Abs(float64(v-want[i])) > 1e-6 {
			t.Fatalf("weight %d: got %f want %f", i, v, want[i])
		}
	}
	if sgdOpt.GetStepCount() != 1 {
		t.Fatalf("step count: got %d want 1", sgdOpt.GetStepCount())
	}
}

func TestSGDMomentumAccelerates(t *testing.T) {
	plain := optimizer.NewSGD(optimizer.SGDConfig{
		OptimizerConfig: optimizer.OptimizerConfig{LearningRate: 0.1},
	})
	momentum := optimizer.NewSGD(optimizer.SGDConfig{
		OptimizerConfig: optimizer.OptimizerConfig{LearningRate: 0.1},
		Momentum:        0.9,
	})

	p1, _ := tensor.NewTensor([]int{1}, []float32{1})
	p2, _ := tensor.NewTensor([]int{1}, []float32{1})
	g, _ := tensor.NewTensor([]int{1}, []float32{1})

	for step := 0; step < 3; step++ {
		if err := plain.Step([]*tensor.Tensor{p1}, []*tensor.Tensor{g}); err != nil {
			t.Fatalf("plain step: %v", err)
		}
		if err := momentum.Step([]*tensor.Tensor{p2}, []*tensor.Tensor{g}); err != nil {
			t.Fatalf("momentum step: %v", err)
		}
	}
	// Constant gradient: momentum must have moved strictly further.
	if p2.Data[0] >= p1.Data[0] {
		t.Fatalf("momentum did not accelerate: plain %f momentum %f", p1.Data[0], p2.Data[0])
	}
}

func TestAdamWStepAndWeightDecay(t *testing.T) {
	cfg := optimizer.DefaultAdamWConfig(0.001)
	opt := optimizer.NewAdamW(cfg)

	param, _ := tensor.NewTensor([]int{2}, []float32{0.5, -0.5})
	grad, _ := tensor.NewTensor([]int{2}, []float32{0.1, -0.1})

	before := append([]float32(nil), param.Data...)
	for step := 0; step < 10; step++ {
		if err := opt.Step([]*tensor.Tensor{param}, []*tensor.Tensor{grad}); err != nil {
			t.Fatalf("AdamW step failed: %v", err)
		}
	}
	// Positive gradient on a positive weight must reduce it, and vice versa.
	if param.Data[0] >= before[0] {
		t.Fatalf("param 0 did not decrease: %f -> %f", before[0], param.Data[0])
	}
	if param.Data[1] <= before[1] {
		t.Fatalf("param 1 did not increase: %f -> %f", before[1], param.Data[1])
	}
	if opt.GetStepCount() != 10 {
		t.Fatalf("step count: got %d want 10", opt.GetStepCount())
	}
}

func TestAdamWStateDictRoundTrip(t *testing.T) {
	opt := optimizer.NewAdamW(optimizer.DefaultAdamWConfig(0.01))
	param, _ := tensor.NewTensor([]int{2}, []float32{1, 2})
	grad, _ := tensor.NewTensor([]int{2}, []float32{0.3, -0.2})
	if err := opt.Step([]*tensor.Tensor{param}, []*tensor.Tensor{grad}); err != nil {
		t.Fatalf("step: %v", err)
	}

	state := opt.StateDict()

	restored := optimizer.NewAdamW(optimizer.DefaultAdamWConfig(0.01))
	if err := restored.LoadStateDict(state); err != nil {
		t.Fatalf("load state: %v", err)
	}
	if restored.GetStepCount() != opt.GetStepCount() {
		t.Fatalf("step count: got %d want %d", restored.GetStepCount(), opt.GetStepCount())
	}

	// Both must produce identical updates from here on.
	pa, _ := tensor.NewTensor([]int{2}, []float32{1, 2})
	pb, _ := tensor.NewTensor([]int{2}, []float32{1, 2})
	if err := opt.Step([]*tensor.Tensor{pa}, []*tensor.Tensor{grad}); err != nil {
		t.Fatalf("step: %v", err)
	}
	if err := restored.Step([]*tensor.Tensor{pb}, []*tensor.Tensor{grad}); err != nil {
		t.Fatalf("restored step: %v", err)
	}
	for i := range pa.Data {
		if pa.Data[i] != pb.Data[i] {
			t.Fatalf("divergence at %d: %f vs %f", i, pa.Data[i], pb.Data[i])
		}
	}
}

func TestZeroGrad(t *testing.T) {
	opt := optimizer.NewSGD(optimizer.SGDConfig{
		OptimizerConfig: optimizer.OptimizerConfig{LearningRate: 0.1},
	})
	grad, _ := tensor.NewTensor([]int{3}, []float32{1, 2, 3})
	if err := opt.ZeroGrad([]*tensor.Tensor{grad}); err != nil {
		t.Fatalf("ZeroGrad: %v", err)
	}
	for i, v := range grad.Data {
		if v != 0 {
			t.Fatalf("grad %d not zeroed: %f", i, v)
		}
	}
}
