package nn

import (
	"fmt"

	"github.com/tsawler/go-ddp/tensor"
)

// MaxPool2D applies non-overlapping max pooling over NCHW input.
type MaxPool2D struct {
	Size int

	lastInputShape []int
	argmax         []int // flat input index chosen for each output element
}

// NewMaxPool2D creates a max pooling layer with the given window size.
// The stride equals the window size.
func NewMaxPool2D(size int) *MaxPool2D {
	return &MaxPool2D{Size: size}
}

// Forward pools a [N, C, H, W] input down to [N, C, H/size, W/size].
func (p *MaxPool2D) Forward(input *tensor.Tensor) (*tensor.Tensor, error) {
	if len(input.Shape) != 4 {
		return nil, fmt.Errorf("maxpool2d: input must be 4D, got %v", input.Shape)
	}
	n, c, h, w := input.Shape[0], input.Shape[1], input.Shape[2], input.Shape[3]
	outH, outW := h/p.Size, w/p.Size
	if outH == 0 || outW == 0 {
		return nil, fmt.Errorf("maxpool2d: input %dx%d smaller than window %d", h, w, p.Size)
	}

	p.lastInputShape = append([]int(nil), input.Shape...)
	out := tensor.Zeros([]int{n, c, outH, outW})
	p.argmax = make([]int, len(out.Data))

	outIdx := 0
	for i := 0; i < n; i++ {
		for ch := 0; ch < c; ch++ {
			base := (i*c + ch) * h * w
			for oy := 0; oy < outH; oy++ {
				for ox := 0; ox < outW; ox++ {
					bestIdx := base + (oy*p.Size)*w + ox*p.Size
					best := input.Data[bestIdx]
					for ky := 0; ky < p.Size; ky++ {
						for kx := 0; kx < p.Size; kx++ {
							idx := base + (oy*p.Size+ky)*w + (ox*p.Size + kx)
							if input.Data[idx] > best {
								best = input.Data[idx]
								bestIdx = idx
							}
						}
					}
					out.Data[outIdx] = best
					p.argmax[outIdx] = bestIdx
					outIdx++
				}
			}
		}
	}
	return out, nil
}

// Backward routes each output gradient to the input element that won the max.
func (p *MaxPool2D) Backward(gradOut *tensor.Tensor) (*tensor.Tensor, error) {
	if p.argmax == nil {
		return nil, fmt.Errorf("maxpool2d: backward called before forward")
	}
	gradIn := tensor.Zeros(p.lastInputShape)
	for i, v := range gradOut.Data {
		gradIn.Data[p.argmax[i]] += v
	}
	return gradIn, nil
}
