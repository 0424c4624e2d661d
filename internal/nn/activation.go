package nn

import (
	"github.com/born-ml/mobilenet/internal/tensor"
)

// ReLU6 clamps every element to [0, 6].
//
// ReLU6(x) = min(max(0, x), 6)
//
// Example:
//
//	relu := nn.NewReLU6[Backend]()
//	output := relu.Forward(input)
type ReLU6[B tensor.Backend] struct{}

// NewReLU6 creates a new ReLU6 activation.
func NewReLU6[B tensor.Backend]() *ReLU6[B] {
	return &ReLU6[B]{}
}

// Forward applies ReLU6 element-wise.
func (r *ReLU6[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	backend := input.Backend()
	return tensor.New[float32, B](backend.ClampScalar(input.Raw(), 0, 6), backend)
}

// Parameters returns an empty slice (ReLU6 has no trainable parameters).
func (r *ReLU6[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{}
}

// Kind reports KindReLU6.
func (r *ReLU6[B]) Kind() Kind {
	return KindReLU6
}

// StateDict returns an empty map (ReLU6 has no state).
func (r *ReLU6[B]) StateDict() map[string]*tensor.RawTensor {
	return map[string]*tensor.RawTensor{}
}

// LoadStateDict is a no-op for ReLU6.
func (r *ReLU6[B]) LoadStateDict(_ map[string]*tensor.RawTensor) error {
	return nil
}

// String returns a string representation of the layer.
func (r *ReLU6[B]) String() string {
	return "ReLU6()"
}
