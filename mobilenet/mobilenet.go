// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package mobilenet provides the MobileNetV1 image classifier.
//
// Example:
//
//	backend := cpu.New()
//	model := mobilenet.New(backend)
//	model.Eval()
//
//	x := tensor.Zeros[float32](tensor.Shape{1, 3, 160, 160}, backend)
//	logits, err := model.Predict(x) // [1, 1000]
//
// Models start in training mode; call Eval before inference so that
// BatchNorm layers use their running statistics.
package mobilenet

import (
	"github.com/born-ml/mobilenet/internal/mobilenet"
	"github.com/born-ml/mobilenet/tensor"
)

// Model is the MobileNetV1 backbone with its classifier head.
type Model[B tensor.Backend] = mobilenet.MobileNetV1[B]

// Block is one feature extraction unit of the backbone.
type Block[B tensor.Backend] = mobilenet.Block[B]

// ConvBN is a 3x3 convolution followed by BatchNorm and ReLU6.
type ConvBN[B tensor.Backend] = mobilenet.ConvBN[B]

// ConvDW is a depthwise-separable convolution block.
type ConvDW[B tensor.Backend] = mobilenet.ConvDW[B]

// Stage is an ordered group of blocks.
type Stage[B tensor.Backend] = mobilenet.Stage[B]

// Config holds the model construction settings.
type Config = mobilenet.Config

// LayerSummary describes one row of a model summary.
type LayerSummary = mobilenet.LayerSummary

// ErrInvalidConfig is returned by NewWithConfig for out-of-range settings.
var ErrInvalidConfig = mobilenet.ErrInvalidConfig

// Channel widths and defaults.
const (
	InputChannels    = mobilenet.InputChannels
	Stage1Channels   = mobilenet.Stage1Channels
	Stage2Channels   = mobilenet.Stage2Channels
	Stage3Channels   = mobilenet.Stage3Channels
	DefaultClasses   = mobilenet.DefaultClasses
	DefaultInitStd   = mobilenet.DefaultInitStd
	DefaultImageSize = mobilenet.DefaultImageSize
)

// DefaultConfig returns the 1000-class ImageNet configuration.
func DefaultConfig() Config {
	return mobilenet.DefaultConfig()
}

// New builds a MobileNetV1 with DefaultConfig.
func New[B tensor.Backend](backend B) *Model[B] {
	return mobilenet.New(backend)
}

// NewWithConfig builds a MobileNetV1 with custom settings.
func NewWithConfig[B tensor.Backend](cfg Config, backend B) (*Model[B], error) {
	return mobilenet.NewWithConfig(cfg, backend)
}

// NewConvBN creates a standalone standard convolution block.
func NewConvBN[B tensor.Backend](in, out, stride int, backend B) *ConvBN[B] {
	return mobilenet.NewConvBN(in, out, stride, backend)
}

// NewConvDW creates a standalone depthwise-separable block.
func NewConvDW[B tensor.Backend](in, out, stride int, backend B) *ConvDW[B] {
	return mobilenet.NewConvDW(in, out, stride, backend)
}
