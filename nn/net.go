package nn

import (
	"fmt"
	"math/rand"

	"github.com/tsawler/go-ddp/tensor"
)

// Net is the small convolutional classifier for 28x28 grayscale digits:
// two convolutions, max pooling, two dropout layers and two fully
// connected layers, finishing in log-probabilities over 10 classes.
type Net struct {
	Conv1    *Conv2D
	Conv2    *Conv2D
	Pool     *MaxPool2D
	Dropout1 *Dropout
	Dropout2 *Dropout
	FC1      *Linear
	FC2      *Linear

	relu1   *ReLU
	relu2   *ReLU
	relu3   *ReLU
	softmax *LogSoftmax

	flattenShape []int
}

// NumClasses is the size of the classifier output.
const NumClasses = 10

// fc1Inputs is the flattened feature count after conv2 + 2x2 pooling
// on a 28x28 input: 64 channels * 12 * 12.
const fc1Inputs = 9216

// NewNet builds the classifier with all parameters drawn from rng.
func NewNet(rng *rand.Rand) *Net {
	return &Net{
		Conv1:    NewConv2D(1, 32, 3, 1, 0, rng),
		Conv2:    NewConv2D(32, 64, 3, 1, 0, rng),
		Pool:     NewMaxPool2D(2),
		Dropout1: NewDropout(0.25, rng),
		Dropout2: NewDropout(0.5, rng),
		FC1:      NewLinear(fc1Inputs, 128, rng),
		FC2:      NewLinear(128, NumClasses, rng),
		relu1:    NewReLU(),
		relu2:    NewReLU(),
		relu3:    NewReLU(),
		softmax:  NewLogSoftmax(),
	}
}

// Train puts the network in training mode (dropout active).
func (m *Net) Train() {
	m.Dropout1.SetTraining(true)
	m.Dropout2.SetTraining(true)
}

// Eval puts the network in evaluation mode (dropout disabled).
func (m *Net) Eval() {
	m.Dropout1.SetTraining(false)
	m.Dropout2.SetTraining(false)
}

// Forward maps a [N, 1, 28, 28] batch to [N, 10] log-probabilities.
func (m *Net) Forward(input *tensor.Tensor) (*tensor.Tensor, error) {
	x, err := m.Conv1.Forward(input)
	if err != nil {
		return nil, fmt.Errorf("conv1: %w", err)
	}
	if x, err = m.relu1.Forward(x); err != nil {
		return nil, err
	}
	if x, err = m.Conv2.Forward(x); err != nil {
		return nil, fmt.Errorf("conv2: %w", err)
	}
	if x, err = m.relu2.Forward(x); err != nil {
		return nil, err
	}
	if x, err = m.Pool.Forward(x); err != nil {
		return nil, fmt.Errorf("pool: %w", err)
	}
	if x, err = m.Dropout1.Forward(x); err != nil {
		return nil, err
	}
	m.flattenShape = append([]int(nil), x.Shape...)
	flat, err := tensor.NewTensor([]int{x.Shape[0], x.NumElements() / x.Shape[0]}, x.Data)
	if err != nil {
		return nil, fmt.Errorf("flatten: %w", err)
	}
	if x, err = m.FC1.Forward(flat); err != nil {
		return nil, fmt.Errorf("fc1: %w", err)
	}
	if x, err = m.relu3.Forward(x); err != nil {
		return nil, err
	}
	if x, err = m.Dropout2.Forward(x); err != nil {
		return nil, err
	}
	if x, err = m.FC2.Forward(x); err != nil {
		return nil, fmt.Errorf("fc2: %w", err)
	}
	return m.softmax.Forward(x)
}

// Backward propagates the loss gradient through the network,
// accumulating parameter gradients along the way.
func (m *Net) Backward(gradOut *tensor.Tensor) error {
	g, err := m.softmax.Backward(gradOut)
	if err != nil {
		return err
	}
	if g, err = m.FC2.Backward(g); err != nil {
		return fmt.Errorf("fc2: %w", err)
	}
	if g, err = m.Dropout2.Backward(g); err != nil {
		return err
	}
	if g, err = m.relu3.Backward(g); err != nil {
		return err
	}
	if g, err = m.FC1.Backward(g); err != nil {
		return fmt.Errorf("fc1: %w", err)
	}
	unflat, err := tensor.NewTensor(m.flattenShape, g.Data)
	if err != nil {
		return fmt.Errorf("unflatten: %w", err)
	}
	if g, err = m.Dropout1.Backward(unflat); err != nil {
		return err
	}
	if g, err = m.Pool.Backward(g); err != nil {
		return fmt.Errorf("pool: %w", err)
	}
	if g, err = m.relu2.Backward(g); err != nil {
		return err
	}
	if g, err = m.Conv2.Backward(g); err != nil {
		return fmt.Errorf("conv2: %w", err)
	}
	if g, err = m.relu1.Backward(g); err != nil {
		return err
	}
	if _, err = m.Conv1.Backward(g); err != nil {
		return fmt.Errorf("conv1: %w", err)
	}
	return nil
}

// Parameters returns all trainable parameters in a fixed order.
func (m *Net) Parameters() []*tensor.Tensor {
	var params []*tensor.Tensor
	params = append(params, m.Conv1.Params()...)
	params = append(params, m.Conv2.Params()...)
	params = append(params, m.FC1.Params()...)
	params = append(params, m.FC2.Params()...)
	return params
}

// Gradients returns all parameter gradients, ordered as Parameters.
func (m *Net) Gradients() []*tensor.Tensor {
	var grads []*tensor.Tensor
	grads = append(grads, m.Conv1.Grads()...)
	grads = append(grads, m.Conv2.Grads()...)
	grads = append(grads, m.FC1.Grads()...)
	grads = append(grads, m.FC2.Grads()...)
	return grads
}

// ZeroGrad clears all accumulated gradients.
func (m *Net) ZeroGrad() {
	for _, g := range m.Gradients() {
		g.Fill(0)
	}
}

// parameterNames mirrors the ordering of Parameters.
var parameterNames = []string{
	"conv1.weight", "conv1.bias",
	"conv2.weight", "conv2.bias",
	"fc1.weight", "fc1.bias",
	"fc2.weight", "fc2.bias",
}

// StateDict returns a copy of the parameters keyed by name.
func (m *Net) StateDict() map[string]*tensor.Tensor {
	params := m.Parameters()
	state := make(map[string]*tensor.Tensor, len(params))
	for i, p := range params {
		state[parameterNames[i]] = p.Clone()
	}
	return state
}

// LoadStateDict copies parameter values from a state dict produced by
// StateDict, validating names and shapes.
func (m *Net) LoadStateDict(state map[string]*tensor.Tensor) error {
	params := m.Parameters()
	for i, p := range params {
		name := parameterNames[i]
		src, ok := state[name]
		if !ok {
			return fmt.Errorf("state dict missing parameter %q", name)
		}
		if !p.SameShape(src) {
			return fmt.Errorf("parameter %q shape mismatch: have %v, checkpoint %v", name, p.Shape, src.Shape)
		}
		copy(p.Data, src.Data)
	}
	return nil
}
