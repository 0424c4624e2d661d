// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"golang.org/x/exp/rand"

	"github.com/born-ml/mobilenet/internal/nn"
	"github.com/born-ml/mobilenet/internal/tensor"
)

// Module interface defines the common interface for all neural network modules.
type Module[B tensor.Backend] = nn.Module[B]

// Kind identifies a module type.
type Kind = nn.Kind

// Module kinds.
const (
	KindConv2D            = nn.KindConv2D
	KindBatchNorm2D       = nn.KindBatchNorm2D
	KindReLU6             = nn.KindReLU6
	KindAdaptiveAvgPool2D = nn.KindAdaptiveAvgPool2D
	KindLinear            = nn.KindLinear
	KindSequential        = nn.KindSequential
)

// BatchNorm2D defaults, matching PyTorch.
const (
	DefaultBatchNormEps      = nn.DefaultBatchNormEps
	DefaultBatchNormMomentum = nn.DefaultBatchNormMomentum
)

// Parameter represents a trainable parameter in a neural network.
type Parameter[B tensor.Backend] = nn.Parameter[B]

// NewParameter creates a new parameter with the given name and tensor.
func NewParameter[B tensor.Backend](name string, t *tensor.Tensor[float32, B]) *Parameter[B] {
	return nn.NewParameter(name, t)
}

// CountParameters returns the number of trainable scalars in m.
func CountParameters[B tensor.Backend](m Module[B]) int {
	return nn.CountParameters[B](m)
}

// Layers

// Linear represents a fully connected (dense) layer.
type Linear[B tensor.Backend] = nn.Linear[B]

// NewLinear creates a new linear layer with Xavier initialization.
//
// Example:
//
//	backend := cpu.New()
//	fc := nn.NewLinear(1024, 1000, backend)
func NewLinear[B tensor.Backend](inFeatures, outFeatures int, backend B) *Linear[B] {
	return nn.NewLinear(inFeatures, outFeatures, backend)
}

// Conv2D represents a 2D convolutional layer with optional channel groups.
type Conv2D[B tensor.Backend] = nn.Conv2D[B]

// NewConv2D creates a new 2D convolutional layer. groups equal to
// inChannels gives a depthwise convolution.
//
// Example:
//
//	backend := cpu.New()
//	dw := nn.NewConv2D(64, 64, 3, 3, 2, 1, 64, false, backend) // depthwise, stride 2
//	pw := nn.NewConv2D(64, 128, 1, 1, 1, 0, 1, false, backend) // pointwise
func NewConv2D[B tensor.Backend](
	inChannels, outChannels int,
	kernelH, kernelW int,
	stride, padding int,
	groups int,
	useBias bool,
	backend B,
) *Conv2D[B] {
	return nn.NewConv2D(inChannels, outChannels, kernelH, kernelW, stride, padding, groups, useBias, backend)
}

// BatchNorm2D normalizes each channel of an NCHW tensor.
type BatchNorm2D[B tensor.Backend] = nn.BatchNorm2D[B]

// NewBatchNorm2D creates a BatchNorm2D with PyTorch defaults.
func NewBatchNorm2D[B tensor.Backend](numFeatures int, backend B) *BatchNorm2D[B] {
	return nn.NewBatchNorm2D(numFeatures, backend)
}

// NewBatchNorm2DWithConfig creates a BatchNorm2D with explicit eps and momentum.
func NewBatchNorm2DWithConfig[B tensor.Backend](numFeatures int, eps, momentum float64, backend B) *BatchNorm2D[B] {
	return nn.NewBatchNorm2DWithConfig(numFeatures, eps, momentum, backend)
}

// AdaptiveAvgPool2D averages each channel into a fixed output grid.
type AdaptiveAvgPool2D[B tensor.Backend] = nn.AdaptiveAvgPool2D[B]

// NewAdaptiveAvgPool2D creates an adaptive average pooling layer.
func NewAdaptiveAvgPool2D[B tensor.Backend](outH, outW int) *AdaptiveAvgPool2D[B] {
	return nn.NewAdaptiveAvgPool2D[B](outH, outW)
}

// Activations

// ReLU6 clips activations into [0, 6].
type ReLU6[B tensor.Backend] = nn.ReLU6[B]

// NewReLU6 creates a ReLU6 activation.
func NewReLU6[B tensor.Backend]() *ReLU6[B] {
	return nn.NewReLU6[B]()
}

// Containers

// Sequential chains modules, feeding each output into the next.
type Sequential[B tensor.Backend] = nn.Sequential[B]

// NewSequential creates a Sequential container.
func NewSequential[B tensor.Backend](modules ...Module[B]) *Sequential[B] {
	return nn.NewSequential[B](modules...)
}

// Initialization

// Xavier creates a tensor with Xavier/Glorot uniform samples.
func Xavier[B tensor.Backend](fanIn, fanOut int, shape tensor.Shape, src rand.Source, backend B) *tensor.Tensor[float32, B] {
	return nn.Xavier(fanIn, fanOut, shape, src, backend)
}

// Normal creates a tensor with N(mean, std) samples.
func Normal[B tensor.Backend](shape tensor.Shape, mean, std float64, src rand.Source, backend B) *tensor.Tensor[float32, B] {
	return nn.Normal(shape, mean, std, src, backend)
}

// Zeros creates a zero-filled parameter tensor.
func Zeros[B tensor.Backend](shape tensor.Shape, backend B) *tensor.Tensor[float32, B] {
	return nn.Zeros(shape, backend)
}

// Ones creates a one-filled parameter tensor.
func Ones[B tensor.Backend](shape tensor.Shape, backend B) *tensor.Tensor[float32, B] {
	return nn.Ones(shape, backend)
}
