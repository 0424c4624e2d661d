// Package cpu implements the CPU backend on top of gonum BLAS.
package cpu

import (
	"fmt"

	"github.com/born-ml/mobilenet/internal/parallel"
	"github.com/born-ml/mobilenet/internal/tensor"
)

// float is the element constraint shared by the typed kernels.
type float interface {
	~float32 | ~float64
}

// CPUBackend implements tensor operations on CPU.
//
// Matrix products (dense layers, pointwise and im2col convolutions) go
// through gonum's BLAS; per-plane kernels are spread over goroutines
// according to the parallel configuration.
type CPUBackend struct {
	device   tensor.Device
	parallel parallel.Config
}

// New creates a new CPU backend with the default parallel configuration.
func New() *CPUBackend {
	return NewWithConfig(parallel.DefaultConfig())
}

// NewWithConfig creates a CPU backend with an explicit parallel configuration.
func NewWithConfig(cfg parallel.Config) *CPUBackend {
	return &CPUBackend{
		device:   tensor.CPU,
		parallel: cfg,
	}
}

// Name returns the backend name.
func (cpu *CPUBackend) Name() string {
	return "CPU"
}

// Device returns the compute device.
func (cpu *CPUBackend) Device() tensor.Device {
	return cpu.device
}

// alloc creates a zeroed result tensor, panicking with the op name on failure.
func (cpu *CPUBackend) alloc(op string, shape tensor.Shape, dtype tensor.DataType) *tensor.RawTensor {
	result, err := tensor.NewRaw(shape, dtype, cpu.device)
	if err != nil {
		panic(fmt.Sprintf("%s: failed to create result tensor: %v", op, err))
	}
	return result
}

func checkSameDType(op string, tensors ...*tensor.RawTensor) {
	for _, t := range tensors[1:] {
		if t.DType() != tensors[0].DType() {
			panic(fmt.Sprintf("%s: dtype mismatch %s vs %s", op, tensors[0].DType(), t.DType()))
		}
	}
}

// Add performs element-wise addition with NumPy-style broadcasting.
func (cpu *CPUBackend) Add(a, b *tensor.RawTensor) *tensor.RawTensor {
	checkSameDType("add", a, b)

	outShape, needsBroadcast, err := tensor.BroadcastShapes(a.Shape(), b.Shape())
	if err != nil {
		panic(tensor.NewShapeError("add", "%v", err))
	}

	result := cpu.alloc("add", outShape, a.DType())

	switch a.DType() {
	case tensor.Float32:
		addFloat(result.AsFloat32(), a.AsFloat32(), b.AsFloat32(), a.Shape(), b.Shape(), outShape, needsBroadcast)
	case tensor.Float64:
		addFloat(result.AsFloat64(), a.AsFloat64(), b.AsFloat64(), a.Shape(), b.Shape(), outShape, needsBroadcast)
	default:
		panic(fmt.Sprintf("add: unsupported dtype %s", a.DType()))
	}

	return result
}

func addFloat[T float](dst, a, b []T, aShape, bShape, outShape tensor.Shape, broadcast bool) {
	if !broadcast {
		for i := range dst {
			dst[i] = a[i] + b[i]
		}
		return
	}

	aStrides := broadcastStrides(aShape, outShape)
	bStrides := broadcastStrides(bShape, outShape)
	idx := make([]int, len(outShape))
	aOff, bOff := 0, 0

	for i := range dst {
		dst[i] = a[aOff] + b[bOff]

		// Advance the row-major output index; broadcast dims have stride 0.
		for d := len(outShape) - 1; d >= 0; d-- {
			idx[d]++
			aOff += aStrides[d]
			bOff += bStrides[d]
			if idx[d] < outShape[d] {
				break
			}
			aOff -= aStrides[d] * outShape[d]
			bOff -= bStrides[d] * outShape[d]
			idx[d] = 0
		}
	}
}

// broadcastStrides returns, for every output dimension, the stride to
// take through an input of shape in. Broadcast dimensions get stride 0.
func broadcastStrides(in, out tensor.Shape) []int {
	strides := make([]int, len(out))
	inStrides := in.ComputeStrides()
	offset := len(out) - len(in)
	for i, dim := range in {
		if dim != 1 {
			strides[offset+i] = inStrides[i]
		}
	}
	return strides
}

// Reshape returns a view with the same data and a different shape.
func (cpu *CPUBackend) Reshape(t *tensor.RawTensor, newShape tensor.Shape) *tensor.RawTensor {
	view, err := t.Reshaped(newShape)
	if err != nil {
		panic(tensor.NewShapeError("reshape", "%v", err))
	}
	return view
}

// Transpose transposes the tensor by permuting its dimensions.
func (cpu *CPUBackend) Transpose(t *tensor.RawTensor, axes ...int) *tensor.RawTensor {
	shape := t.Shape()
	ndim := len(shape)

	// Default: reverse all dimensions
	if len(axes) == 0 {
		axes = make([]int, ndim)
		for i := range axes {
			axes[i] = ndim - 1 - i
		}
	}

	if len(axes) != ndim {
		panic(tensor.NewShapeError("transpose", "axes length %d != ndim %d", len(axes), ndim))
	}

	seen := make([]bool, ndim)
	for _, ax := range axes {
		if ax < 0 || ax >= ndim {
			panic(tensor.NewShapeError("transpose", "invalid axis %d for %dD tensor", ax, ndim))
		}
		if seen[ax] {
			panic(tensor.NewShapeError("transpose", "duplicate axis %d", ax))
		}
		seen[ax] = true
	}

	newShape := make(tensor.Shape, ndim)
	srcStrides := shape.ComputeStrides()
	walk := make([]int, ndim)
	for i, ax := range axes {
		newShape[i] = shape[ax]
		walk[i] = srcStrides[ax]
	}

	result := cpu.alloc("transpose", newShape, t.DType())

	switch t.DType() {
	case tensor.Float32:
		permuteFloat(result.AsFloat32(), t.AsFloat32(), newShape, walk)
	case tensor.Float64:
		permuteFloat(result.AsFloat64(), t.AsFloat64(), newShape, walk)
	default:
		panic(fmt.Sprintf("transpose: unsupported dtype %s", t.DType()))
	}

	return result
}

// permuteFloat gathers src into dst, where walk[d] is the source stride
// of output dimension d.
func permuteFloat[T float](dst, src []T, outShape tensor.Shape, walk []int) {
	idx := make([]int, len(outShape))
	off := 0
	for i := range dst {
		dst[i] = src[off]
		for d := len(outShape) - 1; d >= 0; d-- {
			idx[d]++
			off += walk[d]
			if idx[d] < outShape[d] {
				break
			}
			off -= walk[d] * outShape[d]
			idx[d] = 0
		}
	}
}
