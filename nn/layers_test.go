package nn

import (
	"math"
	"math/rand"
	"testing"

	"github.com/tsawler/go-ddp/tensor"
)

func almostEqual(a, b, tol float32) bool {
	return math.Abs(float64(a-b)) <= float64(tol)
}

func TestGEMMAgreement(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	m, k, n := 4, 5, 3
	a := make([]float32, m*k)
	b := make([]float32, k*n)
	for i := range a {
		a[i] = rng.Float32()*2 - 1
	}
	for i := range b {
		b[i] = rng.Float32()*2 - 1
	}
	blasOut := make([]float32, m*n)
	naiveOut := make([]float32, m*n)
	matmul(a, b, blasOut, m, k, n)
	SetNaiveGEMM(true)
	matmul(a, b, naiveOut, m, k, n)
	SetNaiveGEMM(false)
	for i := range blasOut {
		if !almostEqual(blasOut[i], naiveOut[i], 1e-5) {
			t.Fatalf("element %d: blas %f naive %f", i, blasOut[i], naiveOut[i])
		}
	}
}

func TestConv2DKnownValues(t *testing.T) {
	// 1x1x3x3 input, single 2x2 kernel of ones, zero bias.
	conv := NewConv2D(1, 1, 2, 1, 0, rand.New(rand.NewSource(1)))
	conv.Weight.Fill(1)
	conv.Bias.Fill(0)

	input, _ := tensor.NewTensor([]int{1, 1, 3, 3}, []float32{
		1, 2, 3,
		4, 5, 6,
		7, 8, 9,
	})
	out, err := conv.Forward(input)
	if err != nil {
		t.Fatalf("forward: %v", err)
	}
	want := []float32{12, 16, 24, 28}
	for i, v := range out.Data {
		if !almostEqual(v, want[i], 1e-5) {
			t.Fatalf("output %d: got %f want %f", i, v, want[i])
		}
	}
}

func TestConv2DGradientCheck(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	conv := NewConv2D(2, 3, 3, 1, 0, rng)
	input := tensor.Zeros([]int{2, 2, 5, 5})
	for i := range input.Data {
		input.Data[i] = rng.Float32()*2 - 1
	}

	// Loss = sum(output); analytic gradient vs finite differences on a
	// few weight entries.
	forwardLoss := func() float32 {
		out, err := conv.Forward(input)
		if err != nil {
			t.Fatalf("forward: %v", err)
		}
		var sum float32
		for _, v := range out.Data {
			sum += v
		}
		return sum
	}

	out, err := conv.Forward(input)
	if err != nil {
		t.Fatalf("forward: %v", err)
	}
	gradOut := tensor.Zeros(out.Shape)
	gradOut.Fill(1)
	if _, err := conv.Backward(gradOut); err != nil {
		t.Fatalf("backward: %v", err)
	}

	const eps = 1e-2
	for _, idx := range []int{0, 7, len(conv.Weight.Data) - 1} {
		orig := conv.Weight.Data[idx]
		conv.Weight.Data[idx] = orig + eps
		plus := forwardLoss()
		conv.Weight.Data[idx] = orig - eps
		minus := forwardLoss()
		conv.Weight.Data[idx] = orig

		numeric := (plus - minus) / (2 * eps)
		analytic := conv.GradWeight.Data[idx]
		if !almostEqual(numeric, analytic, 2e-1) {
			t.Fatalf("weight %d: numeric %f analytic %f", idx, numeric, analytic)
		}
	}
}

func TestLinearGradientCheck(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	lin := NewLinear(4, 3, rng)
	input := tensor.Zeros([]int{2, 4})
	for i := range input.Data {
		input.Data[i] = rng.Float32()*2 - 1
	}

	out, err := lin.Forward(input)
	if err != nil {
		t.Fatalf("forward: %v", err)
	}
	gradOut := tensor.Zeros(out.Shape)
	gradOut.Fill(1)
	gradIn, err := lin.Backward(gradOut)
	if err != nil {
		t.Fatalf("backward: %v", err)
	}

	forwardLoss := func() float32 {
		o, err := lin.Forward(input)
		if err != nil {
			t.Fatalf("forward: %v", err)
		}
		var sum float32
		for _, v := range o.Data {
			sum += v
		}
		return sum
	}

	const eps = 1e-2
	for _, idx := range []int{0, 5, len(lin.Weight.Data) - 1} {
		orig := lin.Weight.Data[idx]
		lin.Weight.Data[idx] = orig + eps
		plus := forwardLoss()
		lin.Weight.Data[idx] = orig - eps
		minus := forwardLoss()
		lin.Weight.Data[idx] = orig

		numeric := (plus - minus) / (2 * eps)
		if !almostEqual(numeric, lin.GradWeight.Data[idx], 1e-1) {
			t.Fatalf("weight %d: numeric %f analytic %f", idx, numeric, lin.GradWeight.Data[idx])
		}
	}

	// With dLoss/dOut all ones, dLoss/dIn is the column sums of W.
	for j := 0; j < lin.InFeatures; j++ {
		var want float32
		for i := 0; i < lin.OutFeatures; i++ {
			want += lin.Weight.At(i, j)
		}
		if !almostEqual(gradIn.At(0, j), want, 1e-4) {
			t.Fatalf("input grad %d: got %f want %f", j, gradIn.At(0, j), want)
		}
	}
}

func TestMaxPool2D(t *testing.T) {
	pool := NewMaxPool2D(2)
	input, _ := tensor.NewTensor([]int{1, 1, 4, 4}, []float32{
		1, 2, 5, 6,
		3, 4, 7, 8,
		-1, -2, 0, 0,
		-3, -4, 0, 9,
	})
	out, err := pool.Forward(input)
	if err != nil {
		t.Fatalf("forward: %v", err)
	}
	want := []float32{4, 8, -1, 9}
	for i, v := range out.Data {
		if v != want[i] {
			t.Fatalf("output %d: got %f want %f", i, v, want[i])
		}
	}

	gradOut, _ := tensor.NewTensor([]int{1, 1, 2, 2}, []float32{1, 2, 3, 4})
	gradIn, err := pool.Backward(gradOut)
	if err != nil {
		t.Fatalf("backward: %v", err)
	}
	// Gradient lands only on the argmax positions.
	if gradIn.Data[5] != 1 || gradIn.Data[7] != 2 || gradIn.Data[8] != 3 || gradIn.Data[15] != 4 {
		t.Fatalf("unexpected gradient routing: %v", gradIn.Data)
	}
}

func TestDropoutModes(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	drop := NewDropout(0.5, rng)
	input := tensor.Zeros([]int{1, 1000})
	input.Fill(1)

	drop.SetTraining(false)
	out, err := drop.Forward(input)
	if err != nil {
		t.Fatalf("forward: %v", err)
	}
	for i, v := range out.Data {
		if v != 1 {
			t.Fatalf("eval mode altered element %d: %f", i, v)
		}
	}

	drop.SetTraining(true)
	out, err = drop.Forward(input)
	if err != nil {
		t.Fatalf("forward: %v", err)
	}
	zeros := 0
	for _, v := range out.Data {
		switch v {
		case 0:
			zeros++
		case 2:
			// survivor scaled by 1/(1-p)
		default:
			t.Fatalf("unexpected dropout output %f", v)
		}
	}
	if zeros < 400 || zeros > 600 {
		t.Fatalf("drop rate far from 0.5: %d/1000 zeroed", zeros)
	}
}

func TestLogSoftmaxRowsSumToOne(t *testing.T) {
	sm := NewLogSoftmax()
	input, _ := tensor.NewTensor([]int{2, 3}, []float32{1, 2, 3, -1, 0, 1})
	out, err := sm.Forward(input)
	if err != nil {
		t.Fatalf("forward: %v", err)
	}
	for i := 0; i < 2; i++ {
		var sum float64
		for j := 0; j < 3; j++ {
			sum += math.Exp(float64(out.At(i, j)))
		}
		if math.Abs(sum-1) > 1e-5 {
			t.Fatalf("row %d probabilities sum to %f", i, sum)
		}
	}
}

func TestNLLLoss(t *testing.T) {
	logProbs, _ := tensor.NewTensor([]int{2, 3}, []float32{
		-0.5, -1.5, -2.0,
		-3.0, -0.1, -2.5,
	})
	loss, err := NLLLoss(logProbs, []int{0, 1}, ReductionMean)
	if err != nil {
		t.Fatalf("loss: %v", err)
	}
	if !almostEqual(loss, 0.3, 1e-5) {
		t.Fatalf("mean loss: got %f want 0.3", loss)
	}
	sumLoss, err := NLLLoss(logProbs, []int{0, 1}, ReductionSum)
	if err != nil {
		t.Fatalf("loss: %v", err)
	}
	if !almostEqual(sumLoss, 0.6, 1e-5) {
		t.Fatalf("sum loss: got %f want 0.6", sumLoss)
	}

	grad, err := NLLLossBackward(logProbs, []int{0, 1}, ReductionMean)
	if err != nil {
		t.Fatalf("backward: %v", err)
	}
	if grad.At(0, 0) != -0.5 || grad.At(1, 1) != -0.5 || grad.At(0, 1) != 0 {
		t.Fatalf("unexpected gradient: %v", grad.Data)
	}

	if _, err := NLLLoss(logProbs, []int{0, 9}, ReductionMean); err == nil {
		t.Fatal("expected out of range target error")
	}
}
