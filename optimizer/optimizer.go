package optimizer

import (
	"fmt"
	"math"

	"github.com/tsawler/go-ddp/tensor"
)

// Optimizer represents a generic optimizer interface
type Optimizer interface {
	Step(params []*tensor.Tensor, grads []*tensor.Tensor) error
	ZeroGrad(grads []*tensor.Tensor) error
	GetLearningRate() float32
	SetLearningRate(lr float32)
	GetStepCount() int64
	StateDict() map[string][]float32
	LoadStateDict(state map[string][]float32) error
}

// OptimizerConfig holds common configuration for all optimizers
type OptimizerConfig struct {
	LearningRate float32
	WeightDecay  float32
}

// SGDConfig holds configuration specific to SGD optimizer
type SGDConfig struct {
	OptimizerConfig
	Momentum float32
}

// SGDOptimizer implements Stochastic Gradient Descent with momentum
type SGDOptimizer struct {
	config          SGDConfig
	momentumBuffers []*tensor.Tensor
	stepCount       int64
}

// NewSGD creates a new SGD optimizer
func NewSGD(config SGDConfig) *SGDOptimizer {
	return &SGDOptimizer{
		config:          config,
		momentumBuffers: nil,
		stepCount:       0,
	}
}

// Step performs one optimization step
func (opt *SGDOptimizer) Step(params []*tensor.Tensor, grads []*tensor.Tensor) error {
	if len(params) != len(grads) {
		return fmt.Errorf("params and grads must have the same length")
	}

	// Initialize momentum buffers if needed
	if opt.momentumBuffers == nil && opt.config.Momentum != 0.0 {
		opt.momentumBuffers = make([]*tensor.Tensor, len(params))
		for i, param := range params {
			opt.momentumBuffers[i] = tensor.ZerosLike(param)
		}
	}

	opt.stepCount++

	lr := opt.config.LearningRate
	for i, param := range params {
		grad := grads[i]
		if len(param.Data) != len(grad.Data) {
			return fmt.Errorf("param %d and grad size mismatch: %d vs %d", i, len(param.Data), len(grad.Data))
		}

		for j := range param.Data {
			g := grad.Data[j]
			if opt.config.WeightDecay != 0 {
				g += opt.config.WeightDecay * param.Data[j]
			}
			if opt.config.Momentum != 0 {
				buf := opt.momentumBuffers[i]
				buf.Data[j] = opt.config.Momentum*buf.Data[j] + g
				g = buf.Data[j]
			}
			param.Data[j] -= lr * g
		}
	}

	return nil
}

// ZeroGrad zeros all gradients
func (opt *SGDOptimizer) ZeroGrad(grads []*tensor.Tensor) error {
	for _, grad := range grads {
		grad.Fill(0)
	}
	return nil
}

// GetLearningRate returns the current learning rate
func (opt *SGDOptimizer) GetLearningRate() float32 {
	return opt.config.LearningRate
}

// SetLearningRate sets the learning rate
func (opt *SGDOptimizer) SetLearningRate(lr float32) {
	opt.config.LearningRate = lr
}

// GetStepCount returns the current step count
func (opt *SGDOptimizer) GetStepCount() int64 {
	return opt.stepCount
}

// StateDict captures the optimizer state for checkpointing
func (opt *SGDOptimizer) StateDict() map[string][]float32 {
	state := map[string][]float32{
		"step_count":    {float32(opt.stepCount)},
		"learning_rate": {opt.config.LearningRate},
	}
	for i, buf := range opt.momentumBuffers {
		data := make([]float32, len(buf.Data))
		copy(data, buf.Data)
		state[fmt.Sprintf("momentum.%d", i)] = data
	}
	return state
}

// LoadStateDict restores optimizer state captured by StateDict
func (opt *SGDOptimizer) LoadStateDict(state map[string][]float32) error {
	if v, ok := state["step_count"]; ok && len(v) == 1 {
		opt.stepCount = int64(v[0])
	}
	if v, ok := state["learning_rate"]; ok && len(v) == 1 {
		opt.config.LearningRate = v[0]
	}
	for i := 0; ; i++ {
		data, ok := state[fmt.Sprintf("momentum.%d", i)]
		if !ok {
			break
		}
		if opt.momentumBuffers == nil {
			opt.momentumBuffers = []*tensor.Tensor{}
		}
		t, err := tensor.NewTensor([]int{len(data)}, data)
		if err != nil {
			return fmt.Errorf("failed to restore momentum buffer %d: %w", i, err)
		}
		opt.momentumBuffers = append(opt.momentumBuffers, t)
	}
	return nil
}

// AdamWConfig holds configuration specific to the AdamW optimizer
type AdamWConfig struct {
	OptimizerConfig
	Beta1   float32
	Beta2   float32
	Epsilon float32
}

// DefaultAdamWConfig returns AdamW defaults matching common framework values
func DefaultAdamWConfig(lr float32) AdamWConfig {
	return AdamWConfig{
		OptimizerConfig: OptimizerConfig{
			LearningRate: lr,
			WeightDecay:  0.01,
		},
		Beta1:   0.9,
		Beta2:   0.999,
		Epsilon: 1e-8,
	}
}

// AdamWOptimizer implements Adam with decoupled weight decay
type AdamWOptimizer struct {
	config    AdamWConfig
	mBuffers  []*tensor.Tensor // First moment buffers
	vBuffers  []*tensor.Tensor // Second moment buffers
	stepCount int64
}

// NewAdamW creates a new AdamW optimizer
func NewAdamW(config AdamWConfig) *AdamWOptimizer {
	return &AdamWOptimizer{
		config:    config,
		mBuffers:  nil,
		vBuffers:  nil,
		stepCount: 0,
	}
}

// Step performs one optimization step
func (opt *AdamWOptimizer) Step(params []*tensor.Tensor, grads []*tensor.Tensor) error {
	if len(params) != len(grads) {
		return fmt.Errorf("params and grads must have the same length")
	}

	// Initialize moment buffers if needed
	if opt.mBuffers == nil {
		opt.mBuffers = make([]*tensor.Tensor, len(params))
		opt.vBuffers = make([]*tensor.Tensor, len(params))
		for i, param := range params {
			opt.mBuffers[i] = tensor.ZerosLike(param)
			opt.vBuffers[i] = tensor.ZerosLike(param)
		}
	}

	opt.stepCount++

	beta1 := float64(opt.config.Beta1)
	beta2 := float64(opt.config.Beta2)
	biasCorr1 := 1 - math.Pow(beta1, float64(opt.stepCount))
	biasCorr2 := 1 - math.Pow(beta2, float64(opt.stepCount))
	lr := float64(opt.config.LearningRate)

	for i, param := range params {
		grad := grads[i]
		if len(param.Data) != len(grad.Data) {
			return fmt.Errorf("param %d and grad size mismatch: %d vs %d", i, len(param.Data), len(grad.Data))
		}
		m := opt.mBuffers[i]
		v := opt.vBuffers[i]

		for j := range param.Data {
			g := float64(grad.Data[j])

			// Decoupled weight decay: applied to the parameter directly,
			// not folded into the gradient.
			if opt.config.WeightDecay != 0 {
				param.Data[j] -= float32(lr * float64(opt.config.WeightDecay) * float64(param.Data[j]))
			}

			mj := beta1*float64(m.Data[j]) + (1-beta1)*g
			vj := beta2*float64(v.Data[j]) + (1-beta2)*g*g
			m.Data[j] = float32(mj)
			v.Data[j] = float32(vj)

			mHat := mj / biasCorr1
			vHat := vj / biasCorr2
			param.Data[j] -= float32(lr * mHat / (math.Sqrt(vHat) + float64(opt.config.Epsilon)))
		}
	}

	return nil
}

// ZeroGrad zeros all gradients
func (opt *AdamWOptimizer) ZeroGrad(grads []*tensor.Tensor) error {
	for _, grad := range grads {
		grad.Fill(0)
	}
	return nil
}

// GetLearningRate returns the current learning rate
func (opt *AdamWOptimizer) GetLearningRate() float32 {
	return opt.config.LearningRate
}

// SetLearningRate sets the learning rate
func (opt *AdamWOptimizer) SetLearningRate(lr float32) {
	opt.config.LearningRate = lr
}

// GetStepCount returns the current step count
func (opt *AdamWOptimizer) GetStepCount() int64 {
	return opt.stepCount
}

// StateDict captures the optimizer state for checkpointing
func (opt *AdamWOptimizer) StateDict() map[string][]float32 {
	state := map[string][]float32{
		"step_count":    {float32(opt.stepCount)},
		"learning_rate": {opt.config.LearningRate},
	}
	for i, buf := range opt.mBuffers {
		data := make([]float32, len(buf.Data))
		copy(data, buf.Data)
		state[fmt.Sprintf("m.%d", i)] = data
	}
	for i, buf := range opt.vBuffers {
		data := make([]float32, len(buf.Data))
		copy(data, buf.Data)
		state[fmt.Sprintf("v.%d", i)] = data
	}
	return state
}

// LoadStateDict restores optimizer state captured by StateDict
func (opt *AdamWOptimizer) LoadStateDict(state map[string][]float32) error {
	if v, ok := state["step_count"]; ok && len(v) == 1 {
		opt.stepCount = int64(v[0])
	}
	if v, ok := state["learning_rate"]; ok && len(v) == 1 {
		opt.config.LearningRate = v[0]
	}
	var ms, vs []*tensor.Tensor
	for i := 0; ; i++ {
		mData, okM := state[fmt.Sprintf("m.%d", i)]
		vData, okV := state[fmt.Sprintf("v.%d", i)]
		if !okM || !okV {
			if okM != okV {
				return fmt.Errorf("inconsistent moment buffers at index %d", i)
			}
			break
		}
		mt, err := tensor.NewTensor([]int{len(mData)}, mData)
		if err != nil {
			return fmt.Errorf("failed to restore first moment buffer %d: %w", i, err)
		}
		vt, err := tensor.NewTensor([]int{len(vData)}, vData)
		if err != nil {
			return fmt.Errorf("failed to restore second moment buffer %d: %w", i, err)
		}
		ms = append(ms, mt)
		vs = append(vs, vt)
	}
	if len(ms) > 0 {
		opt.mBuffers = ms
		opt.vBuffers = vs
	}
	return nil
}
