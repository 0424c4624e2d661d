package nn

import (
	"fmt"

	"github.com/born-ml/mobilenet/internal/tensor"
)

// AdaptiveAvgPool2D averages each channel down to a fixed output size,
// whatever the input resolution.
//
// Input shape:  [batch, channels, height, width]
// Output shape: [batch, channels, out_h, out_w]
//
// With output size (1, 1) this is global average pooling.
type AdaptiveAvgPool2D[B tensor.Backend] struct {
	outputSize [2]int
}

// NewAdaptiveAvgPool2D creates an adaptive average pooling layer.
func NewAdaptiveAvgPool2D[B tensor.Backend](outH, outW int) *AdaptiveAvgPool2D[B] {
	if outH <= 0 || outW <= 0 {
		panic(fmt.Sprintf("adaptive_avg_pool2d: invalid output size %dx%d", outH, outW))
	}
	return &AdaptiveAvgPool2D[B]{outputSize: [2]int{outH, outW}}
}

// Forward pools the input.
func (p *AdaptiveAvgPool2D[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	if len(input.Shape()) != 4 {
		panic(tensor.NewShapeError("adaptive_avg_pool2d", "expected 4D input [N,C,H,W], got %dD", len(input.Shape())))
	}

	backend := input.Backend()
	outputRaw := backend.AdaptiveAvgPool2D(input.Raw(), p.outputSize[0], p.outputSize[1])
	return tensor.New[float32, B](outputRaw, backend)
}

// Parameters returns an empty slice (pooling has no trainable parameters).
func (p *AdaptiveAvgPool2D[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{}
}

// Kind reports KindAdaptiveAvgPool2D.
func (p *AdaptiveAvgPool2D[B]) Kind() Kind {
	return KindAdaptiveAvgPool2D
}

// StateDict returns an empty map (pooling has no state).
func (p *AdaptiveAvgPool2D[B]) StateDict() map[string]*tensor.RawTensor {
	return map[string]*tensor.RawTensor{}
}

// LoadStateDict is a no-op for pooling.
func (p *AdaptiveAvgPool2D[B]) LoadStateDict(_ map[string]*tensor.RawTensor) error {
	return nil
}

// OutputSize returns the output spatial size [height, width].
func (p *AdaptiveAvgPool2D[B]) OutputSize() [2]int {
	return p.outputSize
}

// String returns a string representation of the layer.
func (p *AdaptiveAvgPool2D[B]) String() string {
	return fmt.Sprintf("AdaptiveAvgPool2d(output_size=(%d, %d))", p.outputSize[0], p.outputSize[1])
}
