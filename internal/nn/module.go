// Package nn implements the neural network layers MobileNet is built from.
//
// This package provides:
//   - Module interface: base interface for all NN components
//   - Parameter: trainable tensors owned by a layer
//   - Conv2D: grouped 2D convolution (standard, depthwise, pointwise)
//   - BatchNorm2D: per-channel normalization with running statistics
//   - ReLU6, AdaptiveAvgPool2D, Linear
//   - Sequential: container for stacking layers
//
// Design inspired by PyTorch's nn.Module but adapted for Go generics.
package nn

import (
	"fmt"

	"github.com/born-ml/mobilenet/internal/tensor"
)

// Module is the base interface for all neural network components.
//
// Modules can be composed to build complex architectures:
//
//	block := nn.NewSequential[Backend](
//	    nn.NewConv2D(32, 32, 3, 3, 1, 1, 32, false, backend),
//	    nn.NewBatchNorm2D(32, backend),
//	    nn.NewReLU6[Backend](),
//	)
//
// Type parameter B must satisfy the tensor.Backend interface.
type Module[B tensor.Backend] interface {
	// Forward computes the output of the module given an input tensor.
	//
	// Shape mismatches panic with a *tensor.ShapeError before any
	// computation starts.
	Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B]

	// Parameters returns all trainable parameters of this module.
	//
	// Returns an empty slice for modules without trainable parameters
	// (e.g., activation functions).
	Parameters() []*Parameter[B]

	// StateDict returns every persistent tensor, parameters and buffers
	// alike, keyed by its name within the module.
	StateDict() map[string]*tensor.RawTensor

	// LoadStateDict copies tensors from a state dictionary into the module.
	LoadStateDict(stateDict map[string]*tensor.RawTensor) error

	// Kind reports which layer type this module is.
	Kind() Kind
}

// Kind identifies one of the layer types provided by this package.
type Kind int

// Layer kinds.
const (
	KindConv2D Kind = iota
	KindBatchNorm2D
	KindReLU6
	KindAdaptiveAvgPool2D
	KindLinear
	KindSequential
)

// String returns the PyTorch-style layer name.
func (k Kind) String() string {
	switch k {
	case KindConv2D:
		return "Conv2d"
	case KindBatchNorm2D:
		return "BatchNorm2d"
	case KindReLU6:
		return "ReLU6"
	case KindAdaptiveAvgPool2D:
		return "AdaptiveAvgPool2d"
	case KindLinear:
		return "Linear"
	case KindSequential:
		return "Sequential"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// CountParameters returns the total number of scalar parameters of m.
func CountParameters[B tensor.Backend](m Module[B]) int {
	total := 0
	for _, p := range m.Parameters() {
		total += p.NumElements()
	}
	return total
}
