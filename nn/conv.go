package nn

import (
	"fmt"
	"math/rand"

	"github.com/tsawler/go-ddp/tensor"
)

// Conv2D is a 2D convolution layer over NCHW input, implemented as
// im2col followed by a matrix product. Square kernels only.
type Conv2D struct {
	InChannels  int
	OutChannels int
	KernelSize  int
	Stride      int
	Padding     int

	Weight     *tensor.Tensor // [outC, inC*k*k]
	Bias       *tensor.Tensor // [outC]
	GradWeight *tensor.Tensor
	GradBias   *tensor.Tensor

	lastInput *tensor.Tensor
	lastCols  [][]float32 // per-sample im2col buffers kept for backward
}

// NewConv2D creates a convolution layer with Kaiming-uniform weights.
func NewConv2D(inChannels, outChannels, kernelSize, stride, padding int, rng *rand.Rand) *Conv2D {
	fanIn := inChannels * kernelSize * kernelSize
	weight := tensor.Zeros([]int{outChannels, fanIn})
	bias := tensor.Zeros([]int{outChannels})
	kaimingUniform(weight, fanIn, rng)
	uniformBias(bias, fanIn, rng)
	return &Conv2D{
		InChannels:  inChannels,
		OutChannels: outChannels,
		KernelSize:  kernelSize,
		Stride:      stride,
		Padding:     padding,
		Weight:      weight,
		Bias:        bias,
		GradWeight:  tensor.ZerosLike(weight),
		GradBias:    tensor.ZerosLike(bias),
	}
}

// OutputDims returns the spatial output size for the given input size.
func (l *Conv2D) OutputDims(h, w int) (int, int) {
	outH := (h+2*l.Padding-l.KernelSize)/l.Stride + 1
	outW := (w+2*l.Padding-l.KernelSize)/l.Stride + 1
	return outH, outW
}

// Forward computes the convolution of a [N, C, H, W] input.
func (l *Conv2D) Forward(input *tensor.Tensor) (*tensor.Tensor, error) {
	if len(input.Shape) != 4 {
		return nil, fmt.Errorf("conv2d: input must be 4D (batch, channels, height, width), got %v", input.Shape)
	}
	n, c, h, w := input.Shape[0], input.Shape[1], input.Shape[2], input.Shape[3]
	if c != l.InChannels {
		return nil, fmt.Errorf("conv2d: expected %d input channels, got %d", l.InChannels, c)
	}
	outH, outW := l.OutputDims(h, w)
	if outH <= 0 || outW <= 0 {
		return nil, fmt.Errorf("conv2d: input %dx%d too small for kernel %d", h, w, l.KernelSize)
	}

	l.lastInput = input
	l.lastCols = make([][]float32, n)

	colRows := l.InChannels * l.KernelSize * l.KernelSize
	colCols := outH * outW
	out := tensor.Zeros([]int{n, l.OutChannels, outH, outW})

	sampleSize := c * h * w
	outSampleSize := l.OutChannels * colCols
	for i := 0; i < n; i++ {
		cols := make([]float32, colRows*colCols)
		im2col(input.Data[i*sampleSize:(i+1)*sampleSize], cols, c, h, w, l.KernelSize, l.Stride, l.Padding, outH, outW)
		l.lastCols[i] = cols

		dst := out.Data[i*outSampleSize : (i+1)*outSampleSize]
		matmul(l.Weight.Data, cols, dst, l.OutChannels, colRows, colCols)
		for oc := 0; oc < l.OutChannels; oc++ {
			b := l.Bias.Data[oc]
			row := dst[oc*colCols : (oc+1)*colCols]
			for j := range row {
				row[j] += b
			}
		}
	}
	return out, nil
}

// Backward accumulates weight/bias gradients and returns the gradient
// with respect to the layer input.
func (l *Conv2D) Backward(gradOut *tensor.Tensor) (*tensor.Tensor, error) {
	if l.lastInput == nil {
		return nil, fmt.Errorf("conv2d: backward called before forward")
	}
	n, c, h, w := l.lastInput.Shape[0], l.lastInput.Shape[1], l.lastInput.Shape[2], l.lastInput.Shape[3]
	outH, outW := l.OutputDims(h, w)
	colRows := l.InChannels * l.KernelSize * l.KernelSize
	colCols := outH * outW

	gradIn := tensor.ZerosLike(l.lastInput)
	sampleSize := c * h * w
	outSampleSize := l.OutChannels * colCols

	gradW := make([]float32, len(l.GradWeight.Data))
	gradCols := make([]float32, colRows*colCols)
	for i := 0; i < n; i++ {
		dy := gradOut.Data[i*outSampleSize : (i+1)*outSampleSize]

		// dW += dy * cols^T
		matmulTransB(dy, l.lastCols[i], gradW, l.OutChannels, colCols, colRows)
		for j, v := range gradW {
			l.GradWeight.Data[j] += v
		}
		for oc := 0; oc < l.OutChannels; oc++ {
			var sum float32
			for _, v := range dy[oc*colCols : (oc+1)*colCols] {
				sum += v
			}
			l.GradBias.Data[oc] += sum
		}

		// dCols = W^T * dy, then fold back into image space.
		matmulTransA(l.Weight.Data, dy, gradCols, colRows, l.OutChannels, colCols)
		col2im(gradCols, gradIn.Data[i*sampleSize:(i+1)*sampleSize], c, h, w, l.KernelSize, l.Stride, l.Padding, outH, outW)
	}
	return gradIn, nil
}

// Params returns the trainable parameters.
func (l *Conv2D) Params() []*tensor.Tensor {
	return []*tensor.Tensor{l.Weight, l.Bias}
}

// Grads returns the parameter gradients, ordered as Params.
func (l *Conv2D) Grads() []*tensor.Tensor {
	return []*tensor.Tensor{l.GradWeight, l.GradBias}
}

// im2col unrolls kernel patches of a single [C, H, W] image into a
// [C*k*k, outH*outW] column matrix.
func im2col(img, cols []float32, c, h, w, kernel, stride, padding, outH, outW int) {
	colCols := outH * outW
	for ch := 0; ch < c; ch++ {
		for kh := 0; kh < kernel; kh++ {
			for kw := 0; kw < kernel; kw++ {
				row := (ch*kernel+kh)*kernel + kw
				for oy := 0; oy < outH; oy++ {
					iy := oy*stride + kh - padding
					for ox := 0; ox < outW; ox++ {
						ix := ox*stride + kw - padding
						var v float32
						if iy >= 0 && iy < h && ix >= 0 && ix < w {
							v = img[(ch*h+iy)*w+ix]
						}
						cols[row*colCols+oy*outW+ox] = v
					}
				}
			}
		}
	}
}

// col2im scatters a column matrix gradient back onto the image, summing
// overlapping contributions.
func col2im(cols, img []float32, c, h, w, kernel, stride, padding, outH, outW int) {
	colCols := outH * outW
	for ch := 0; ch < c; ch++ {
		for kh := 0; kh < kernel; kh++ {
			for kw := 0; kw < kernel; kw++ {
				row := (ch*kernel+kh)*kernel + kw
				for oy := 0; oy < outH; oy++ {
					iy := oy*stride + kh - padding
					if iy < 0 || iy >= h {
						continue
					}
					for ox := 0; ox < outW; ox++ {
						ix := ox*stride + kw - padding
						if ix < 0 || ix >= w {
							continue
						}
						img[(ch*h+iy)*w+ix] += cols[row*colCols+oy*outW+ox]
					}
				}
			}
		}
	}
}
