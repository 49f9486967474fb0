// Package amp provides mixed-precision training support: reduced-precision
// gradient and parameter storage around a float32 master copy, with dynamic
// loss scaling to keep small gradients representable.
package amp

import (
	"fmt"
	"math"

	"github.com/tsawler/go-ddp/optimizer"
	"github.com/tsawler/go-ddp/tensor"
)

// Precision identifies a storage precision for tensors.
type Precision int

const (
	PrecisionFP32 Precision = iota
	PrecisionFP16
	PrecisionFP8
)

func (p Precision) String() string {
	switch p {
	case PrecisionFP32:
		return "fp32"
	case PrecisionFP16:
		return "fp16"
	case PrecisionFP8:
		return "fp8"
	default:
		return "unknown"
	}
}

// Options configures Initialize.
type Options struct {
	OptLevel string       // "O1" or "O2"
	Scaler   ScalerConfig // loss scaling configuration
}

// DefaultOptions returns options for the given optimization level with
// default loss scaling.
func DefaultOptions(optLevel string) Options {
	return Options{
		OptLevel: optLevel,
		Scaler:   DefaultScalerConfig(),
	}
}

// Optimizer wraps an inner optimizer with mixed-precision bookkeeping.
// The inner optimizer always steps on the float32 master copy; the model
// parameters receive values rounded to the configured storage precision.
type Optimizer struct {
	inner  optimizer.Optimizer
	scaler *LossScaler

	gradPrecision  Precision
	paramPrecision Precision

	master []*tensor.Tensor // float32 master weights
	params []*tensor.Tensor // model parameters, storage precision

	skippedSteps int64
	lastOverflow bool
}

// Initialize wraps the given optimizer for mixed-precision training of the
// given parameters, equivalent in role to msamp.initialize. Level "O1"
// stores gradients in fp16; "O2" stores gradients in fp8 and parameters
// in fp16.
func Initialize(params []*tensor.Tensor, opt optimizer.Optimizer, opts Options) (*Optimizer, error) {
	var gradP, paramP Precision
	switch opts.OptLevel {
	case "O1":
		gradP, paramP = PrecisionFP16, PrecisionFP32
	case "O2":
		gradP, paramP = PrecisionFP8, PrecisionFP16
	default:
		return nil, fmt.Errorf("unsupported opt level %q (want O1 or O2)", opts.OptLevel)
	}

	master := make([]*tensor.Tensor, len(params))
	for i, p := range params {
		master[i] = p.Clone()
	}

	return &Optimizer{
		inner:          opt,
		scaler:         NewLossScaler(opts.Scaler),
		gradPrecision:  gradP,
		paramPrecision: paramP,
		master:         master,
		params:         params,
	}, nil
}

// LossScale returns the current dynamic loss scale. The training loop
// multiplies the loss gradient by this value before backpropagation.
func (a *Optimizer) LossScale() float32 {
	return a.scaler.Scale()
}

// ScaleLossGrad multiplies a loss gradient by the current loss scale.
func (a *Optimizer) ScaleLossGrad(grad *tensor.Tensor) {
	grad.Scale(a.scaler.Scale())
}

// Step unscales the gradients, skips the update when they overflowed,
// rounds them to the gradient storage precision, advances the master
// weights and writes rounded values back to the model parameters.
func (a *Optimizer) Step(params []*tensor.Tensor, grads []*tensor.Tensor) error {
	if len(params) != len(grads) {
		return fmt.Errorf("params and grads must have the same length")
	}

	inv := 1 / a.scaler.Scale()
	overflow := false
	for _, grad := range grads {
		for j, v := range grad.Data {
			u := v * inv
			if math.IsInf(float64(u), 0) || math.IsNaN(float64(u)) {
				overflow = true
			}
			grad.Data[j] = u
		}
	}

	a.lastOverflow = overflow
	if overflow {
		a.skippedSteps++
		a.scaler.Update(true)
		return nil
	}

	for _, grad := range grads {
		for j, v := range grad.Data {
			grad.Data[j] = RoundTrip(v, a.gradPrecision)
		}
	}

	if err := a.inner.Step(a.master, grads); err != nil {
		return fmt.Errorf("inner optimizer step: %w", err)
	}

	for i, p := range params {
		for j, v := range a.master[i].Data {
			p.Data[j] = RoundTrip(v, a.paramPrecision)
		}
	}

	a.scaler.Update(false)
	return nil
}

// ZeroGrad zeros all gradients
func (a *Optimizer) ZeroGrad(grads []*tensor.Tensor) error {
	return a.inner.ZeroGrad(grads)
}

// GetLearningRate returns the current learning rate
func (a *Optimizer) GetLearningRate() float32 {
	return a.inner.GetLearningRate()
}

// SetLearningRate sets the learning rate
func (a *Optimizer) SetLearningRate(lr float32) {
	a.inner.SetLearningRate(lr)
}

// GetStepCount returns the inner optimizer's step count
func (a *Optimizer) GetStepCount() int64 {
	return a.inner.GetStepCount()
}

// StateDict captures the wrapped optimizer state plus master weights
func (a *Optimizer) StateDict() map[string][]float32 {
	state := a.inner.StateDict()
	state["loss_scale"] = []float32{a.scaler.Scale()}
	for i, m := range a.master {
		data := make([]float32, len(m.Data))
		copy(data, m.Data)
		state[fmt.Sprintf("master.%d", i)] = data
	}
	return state
}

// LoadStateDict restores state captured by StateDict
func (a *Optimizer) LoadStateDict(state map[string][]float32) error {
	if v, ok := state["loss_scale"]; ok && len(v) == 1 {
		a.scaler.currentScale = v[0]
	}
	for i := range a.master {
		data, ok := state[fmt.Sprintf("master.%d", i)]
		if !ok {
			continue
		}
		if len(data) != len(a.master[i].Data) {
			return fmt.Errorf("master weight %d size mismatch: have %d, checkpoint %d", i, len(a.master[i].Data), len(data))
		}
		copy(a.master[i].Data, data)
	}
	return a.inner.LoadStateDict(state)
}

// SkippedSteps returns how many steps were skipped due to overflow.
func (a *Optimizer) SkippedSteps() int64 {
	return a.skippedSteps
}

// LastOverflow reports whether the previous Step observed an overflow.
func (a *Optimizer) LastOverflow() bool {
	return a.lastOverflow
}
