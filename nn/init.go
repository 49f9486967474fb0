package nn

import (
	"math"
	"math/rand"

	"github.com/tsawler/go-ddp/tensor"
)

// kaimingUniform fills t with Kaiming-uniform values for the given fan-in,
// the standard initialization for layers followed by a ReLU.
func kaimingUniform(t *tensor.Tensor, fanIn int, rng *rand.Rand) {
	bound := float32(math.Sqrt(6.0 / float64(fanIn)))
	for i := range t.Data {
		t.Data[i] = (rng.Float32()*2 - 1) * bound
	}
}

// uniformBias fills a bias tensor with the conventional 1/sqrt(fanIn) bound.
func uniformBias(t *tensor.Tensor, fanIn int, rng *rand.Rand) {
	bound := float32(1.0 / math.Sqrt(float64(fanIn)))
	for i := range t.Data {
		t.Data[i] = (rng.Float32()*2 - 1) * bound
	}
}
