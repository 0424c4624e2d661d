// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cpu provides a pure Go CPU backend for tensor operations.
//
// # Overview
//
// This package implements a CPU backend with:
//   - Pure Go implementation (no CGO)
//   - gonum BLAS matrix multiplication
//   - Direct depthwise, GEMM pointwise and im2col grouped convolutions
//   - Float32 and Float64 support
//   - NumPy-compatible broadcasting
//
// # Basic Usage
//
//	backend := cpu.New()
//	x := tensor.Zeros[float32](tensor.Shape{1, 3, 160, 160}, backend)
//	logits := mobilenet.New(backend).Forward(x)
//
// # Parallelism
//
// Convolution, normalization and pooling kernels split their work over
// (sample, channel) planes. NewWithConfig(SequentialConfig()) runs every
// kernel on the calling goroutine; results are identical either way.
//
// # Thread Safety
//
// The backend holds no mutable state and is safe for concurrent use.
package cpu
