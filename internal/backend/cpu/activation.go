package cpu

import (
	"fmt"

	"github.com/born-ml/mobilenet/internal/tensor"
)

// ClampScalar limits every element to [lo, hi].
// ReLU6 is ClampScalar(x, 0, 6).
func (cpu *CPUBackend) ClampScalar(x *tensor.RawTensor, lo, hi float64) *tensor.RawTensor {
	if lo > hi {
		panic(fmt.Sprintf("clamp: lower bound %v exceeds upper bound %v", lo, hi))
	}

	result := cpu.alloc("clamp", x.Shape(), x.DType())

	switch x.DType() {
	case tensor.Float32:
		clampFloat(result.AsFloat32(), x.AsFloat32(), float32(lo), float32(hi))
	case tensor.Float64:
		clampFloat(result.AsFloat64(), x.AsFloat64(), lo, hi)
	default:
		panic(fmt.Sprintf("clamp: unsupported dtype %s", x.DType()))
	}

	return result
}

func clampFloat[T float](dst, src []T, lo, hi T) {
	for i, v := range src {
		dst[i] = min(max(v, lo), hi)
	}
}
