package optimizer

import "math"

// LRScheduler represents a learning rate scheduler interface
type LRScheduler interface {
	Step(step int64) error
	GetLR() float32
	SetOptimizer(opt Optimizer)
}

// StepDecayScheduler implements step decay learning rate scheduling:
// lr = initialLR * gamma^(step / stepSize). With stepSize 1 and one Step
// per epoch this is the classic per-epoch StepLR policy.
type StepDecayScheduler struct {
	optimizer Optimizer
	initialLR float32
	gamma     float32
	stepSize  int64
	currentLR float32
}

// NewStepDecayScheduler creates a new step decay scheduler
func NewStepDecayScheduler(initialLR, gamma float32, stepSize int64) *StepDecayScheduler {
	return &StepDecayScheduler{
		initialLR: initialLR,
		gamma:     gamma,
		stepSize:  stepSize,
		currentLR: initialLR,
	}
}

// Step updates the learning rate based on the current step
func (s *StepDecayScheduler) Step(step int64) error {
	exponent := float64(step / s.stepSize)
	s.currentLR = s.initialLR * float32(math.Pow(float64(s.gamma), exponent))
	if s.optimizer != nil {
		s.optimizer.SetLearningRate(s.currentLR)
	}
	return nil
}

// GetLR returns the current learning rate
func (s *StepDecayScheduler) GetLR() float32 {
	return s.currentLR
}

// SetOptimizer sets the optimizer to update
func (s *StepDecayScheduler) SetOptimizer(opt Optimizer) {
	s.optimizer = opt
}

// ExponentialDecayScheduler implements exponential decay learning rate
// scheduling: lr = initialLR * decayRate^(step / decaySteps).
type ExponentialDecayScheduler struct {
	optimizer  Optimizer
	initialLR  float32
	decayRate  float32
	decaySteps int64
	currentLR  float32
}

// NewExponentialDecayScheduler creates a new exponential decay scheduler
func NewExponentialDecayScheduler(initialLR, decayRate float32, decaySteps int64) *ExponentialDecayScheduler {
	return &ExponentialDecayScheduler{
		initialLR:  initialLR,
		decayRate:  decayRate,
		decaySteps: decaySteps,
		currentLR:  initialLR,
	}
}

// Step updates the learning rate based on the current step
func (s *ExponentialDecayScheduler) Step(step int64) error {
	exponent := float64(step) / float64(s.decaySteps)
	s.currentLR = s.initialLR * float32(math.Pow(float64(s.decayRate), exponent))
	if s.optimizer != nil {
		s.optimizer.SetLearningRate(s.currentLR)
	}
	return nil
}

// GetLR returns the current learning rate
func (s *ExponentialDecayScheduler) GetLR() float32 {
	return s.currentLR
}

// SetOptimizer sets the optimizer to update
func (s *ExponentialDecayScheduler) SetOptimizer(opt Optimizer) {
	s.optimizer = opt
}
