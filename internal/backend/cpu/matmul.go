package cpu

import (
	"fmt"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"
	"gonum.org/v1/gonum/blas/blas64"

	"github.com/born-ml/mobilenet/internal/tensor"
)

// MatMul performs matrix multiplication.
// For 2D tensors: (M, K) @ (K, N) -> (M, N), computed by BLAS GEMM.
func (cpu *CPUBackend) MatMul(a, b *tensor.RawTensor) *tensor.RawTensor {
	checkSameDType("matmul", a, b)

	aShape := a.Shape()
	bShape := b.Shape()

	if len(aShape) != 2 || len(bShape) != 2 {
		panic(tensor.NewShapeError("matmul", "only 2D tensors supported, got %dD and %dD", len(aShape), len(bShape)))
	}

	m, k := aShape[0], aShape[1]
	kAlt, n := bShape[0], bShape[1]

	if k != kAlt {
		panic(tensor.NewShapeError("matmul", "shape mismatch [%d,%d] @ [%d,%d]", m, k, kAlt, n))
	}

	result := cpu.alloc("matmul", tensor.Shape{m, n}, a.DType())

	switch a.DType() {
	case tensor.Float32:
		gemm(blas.NoTrans, blas.NoTrans, m, n, k, a.AsFloat32(), k, b.AsFloat32(), n, result.AsFloat32(), n)
	case tensor.Float64:
		gemm(blas.NoTrans, blas.NoTrans, m, n, k, a.AsFloat64(), k, b.AsFloat64(), n, result.AsFloat64(), n)
	default:
		panic(fmt.Sprintf("matmul: unsupported dtype %s", a.DType()))
	}

	return result
}

// gemm computes C = op(A) @ op(B) for row-major operands, where op(A) is
// m x k and op(B) is k x n. lda, ldb and ldc are the row strides of the
// stored matrices. C is overwritten.
func gemm[T float](tA, tB blas.Transpose, m, n, k int, a []T, lda int, b []T, ldb int, c []T, ldc int) {
	aRows, aCols := m, k
	if tA != blas.NoTrans {
		aRows, aCols = k, m
	}
	bRows, bCols := k, n
	if tB != blas.NoTrans {
		bRows, bCols = n, k
	}

	switch a := any(a).(type) {
	case []float32:
		blas32.Gemm(tA, tB, 1,
			blas32.General{Rows: aRows, Cols: aCols, Stride: lda, Data: a},
			blas32.General{Rows: bRows, Cols: bCols, Stride: ldb, Data: any(b).([]float32)},
			0,
			blas32.General{Rows: m, Cols: n, Stride: ldc, Data: any(c).([]float32)},
		)
	case []float64:
		blas64.Gemm(tA, tB, 1,
			blas64.General{Rows: aRows, Cols: aCols, Stride: lda, Data: a},
			blas64.General{Rows: bRows, Cols: bCols, Stride: ldb, Data: any(b).([]float64)},
			0,
			blas64.General{Rows: m, Cols: n, Stride: ldc, Data: any(c).([]float64)},
		)
	default:
		panic(fmt.Sprintf("gemm: unsupported element type %T", a))
	}
}
