package nn

import (
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/born-ml/mobilenet/internal/tensor"
)

// Xavier (Glorot) initialization for weights.
//
// Initializes weights with values drawn from a uniform distribution:
// U(-sqrt(6/(fan_in + fan_out)), sqrt(6/(fan_in + fan_out)))
//
// A nil src draws from the package-level golang.org/x/exp/rand source.
func Xavier[B tensor.Backend](fanIn, fanOut int, shape tensor.Shape, src rand.Source, backend B) *tensor.Tensor[float32, B] {
	t := tensor.Zeros[float32](shape, backend)
	FillXavier(t.Data(), fanIn, fanOut, src)
	return t
}

// FillXavier overwrites data in place with Xavier-uniform samples.
func FillXavier(data []float32, fanIn, fanOut int, src rand.Source) {
	bound := math.Sqrt(6.0 / float64(fanIn+fanOut))
	dist := distuv.Uniform{Min: -bound, Max: bound, Src: src}
	for i := range data {
		data[i] = float32(dist.Rand())
	}
}

// Normal creates a tensor with values drawn from N(mean, std).
func Normal[B tensor.Backend](shape tensor.Shape, mean, std float64, src rand.Source, backend B) *tensor.Tensor[float32, B] {
	return tensor.Normal[float32](shape, mean, std, src, backend)
}

// Zeros creates a tensor filled with zeros.
//
// This is commonly used for bias initialization.
func Zeros[B tensor.Backend](shape tensor.Shape, backend B) *tensor.Tensor[float32, B] {
	return tensor.Zeros[float32](shape, backend)
}

// Ones creates a tensor filled with ones.
func Ones[B tensor.Backend](shape tensor.Shape, backend B) *tensor.Tensor[float32, B] {
	return tensor.Ones[float32](shape, backend)
}

// Constant fills data with value.
func Constant(data []float32, value float32) {
	for i := range data {
		data[i] = value
	}
}
