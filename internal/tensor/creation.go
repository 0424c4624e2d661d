package tensor

import (
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// Zeros creates a tensor filled with zeros.
//
// Example:
//
//	backend := cpu.New()
//	t := tensor.Zeros[float32](Shape{3, 4}, backend)
func Zeros[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	var dummy T
	raw, err := NewRaw(shape, inferDataType(dummy), b.Device())
	if err != nil {
		panic(err) // Shape validation should prevent this
	}

	// Data is already zero-initialized by make()
	return New[T, B](raw, b)
}

// Ones creates a tensor filled with ones.
//
// Example:
//
//	t := tensor.Ones[float64](Shape{2, 3}, backend)
func Ones[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	return Full[T, B](shape, 1, b)
}

// Full creates a tensor filled with a specific value.
//
// Example:
//
//	t := tensor.Full[float32](Shape{3, 3}, 3.14, backend)
func Full[T DType, B Backend](shape Shape, value T, b B) *Tensor[T, B] {
	t := Zeros[T, B](shape, b)
	data := t.Data()
	for i := range data {
		data[i] = value
	}
	return t
}

// Normal creates a tensor with independent samples from N(mean, std²).
//
// Samples are drawn from src; a nil src uses the global source of
// golang.org/x/exp/rand. Passing rand.NewSource(seed) makes the tensor
// reproducible.
//
// Example:
//
//	src := rand.NewSource(42)
//	w := tensor.Normal[float32](Shape{64, 32, 1, 1}, 0, 0.1, src, backend)
func Normal[T DType, B Backend](shape Shape, mean, std float64, src rand.Source, b B) *Tensor[T, B] {
	t := Zeros[T, B](shape, b)
	FillNormal(t.Data(), mean, std, src)
	return t
}

// FillNormal overwrites data with independent samples from N(mean, std²).
func FillNormal[T DType](data []T, mean, std float64, src rand.Source) {
	dist := distuv.Normal{
		Mu:    mean,
		Sigma: std,
		Src:   src,
	}
	for i := range data {
		data[i] = T(dist.Rand())
	}
}
