// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides the neural network layers MobileNet is built from.
//
// # Overview
//
// This package contains:
//   - Layers: Conv2D (grouped), BatchNorm2D, Linear, AdaptiveAvgPool2D
//   - Activations: ReLU6
//   - Utilities: Sequential, Module interface, Parameter
//   - Initialization: Xavier, Normal, Zeros, Ones
//
// # Basic Usage
//
//	backend := cpu.New()
//	block := nn.NewSequential[*cpu.Backend](
//	    nn.NewConv2D(32, 32, 3, 3, 1, 1, 32, false, backend), // depthwise
//	    nn.NewBatchNorm2D(32, backend),
//	    nn.NewReLU6[*cpu.Backend](),
//	)
//	y := block.Forward(x)
//
// # State Dicts
//
// Every module exposes StateDict and LoadStateDict with PyTorch key
// names ("weight", "bias", "running_mean", "running_var"). Sequential
// prefixes child keys with their index, so nested containers produce
// keys such as "3.1.running_var".
package nn
