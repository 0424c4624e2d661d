package cpu

import (
	"fmt"
	"math"

	"github.com/born-ml/mobilenet/internal/parallel"
	"github.com/born-ml/mobilenet/internal/tensor"
)

// ChannelMoments computes the per-channel mean and biased variance of a
// [N, C, H, W] tensor over the N, H and W axes.
// Both results have shape [C] and the input's dtype.
func (cpu *CPUBackend) ChannelMoments(x *tensor.RawTensor) (mean, variance *tensor.RawTensor) {
	shape := x.Shape()
	if len(shape) != 4 {
		panic(tensor.NewShapeError("batchnorm2d", "input must be 4D [N, C, H, W], got %v", shape))
	}
	n, c, plane := shape[0], shape[1], shape[2]*shape[3]

	mean = cpu.alloc("batchnorm2d", tensor.Shape{c}, x.DType())
	variance = cpu.alloc("batchnorm2d", tensor.Shape{c}, x.DType())

	switch x.DType() {
	case tensor.Float32:
		channelMoments(mean.AsFloat32(), variance.AsFloat32(), x.AsFloat32(), n, c, plane, cpu.parallel)
	case tensor.Float64:
		channelMoments(mean.AsFloat64(), variance.AsFloat64(), x.AsFloat64(), n, c, plane, cpu.parallel)
	default:
		panic(fmt.Sprintf("batchnorm2d: unsupported dtype %s", x.DType()))
	}

	return mean, variance
}

// channelMoments accumulates in float64 with a two-pass algorithm.
func channelMoments[T float](mean, variance, x []T, n, c, plane int, cfg parallel.Config) {
	count := float64(n * plane)

	parallel.For(c, func(ch int) {
		var sum float64
		for b := 0; b < n; b++ {
			for _, v := range x[(b*c+ch)*plane : (b*c+ch+1)*plane] {
				sum += float64(v)
			}
		}
		mu := sum / count

		var sq float64
		for b := 0; b < n; b++ {
			for _, v := range x[(b*c+ch)*plane : (b*c+ch+1)*plane] {
				d := float64(v) - mu
				sq += d * d
			}
		}

		mean[ch] = T(mu)
		variance[ch] = T(sq / count)
	}, cfg)
}

// BatchNorm2D normalizes a [N, C, H, W] tensor per channel:
//
//	y = (x - mean) / sqrt(variance + eps) * gamma + beta
//
// mean, variance, gamma and beta must all have shape [C].
func (cpu *CPUBackend) BatchNorm2D(x, mean, variance, gamma, beta *tensor.RawTensor, eps float64) *tensor.RawTensor {
	checkSameDType("batchnorm2d", x, mean, variance, gamma, beta)

	shape := x.Shape()
	if len(shape) != 4 {
		panic(tensor.NewShapeError("batchnorm2d", "input must be 4D [N, C, H, W], got %v", shape))
	}
	c := shape[1]
	for name, p := range map[string]*tensor.RawTensor{
		"mean": mean, "variance": variance, "gamma": gamma, "beta": beta,
	} {
		if !p.Shape().Equal(tensor.Shape{c}) {
			panic(tensor.NewShapeError("batchnorm2d",
				"input has %d channels but %s has shape %v", c, name, p.Shape()))
		}
	}

	result := cpu.alloc("batchnorm2d", shape, x.DType())

	switch x.DType() {
	case tensor.Float32:
		batchNorm(result.AsFloat32(), x.AsFloat32(),
			mean.AsFloat32(), variance.AsFloat32(), gamma.AsFloat32(), beta.AsFloat32(),
			shape[0], c, shape[2]*shape[3], eps, cpu.parallel)
	case tensor.Float64:
		batchNorm(result.AsFloat64(), x.AsFloat64(),
			mean.AsFloat64(), variance.AsFloat64(), gamma.AsFloat64(), beta.AsFloat64(),
			shape[0], c, shape[2]*shape[3], eps, cpu.parallel)
	default:
		panic(fmt.Sprintf("batchnorm2d: unsupported dtype %s", x.DType()))
	}

	return result
}

func batchNorm[T float](out, x, mean, variance, gamma, beta []T, n, c, plane int, eps float64, cfg parallel.Config) {
	// Fold the affine transform into one scale and shift per channel.
	scale := make([]T, c)
	shift := make([]T, c)
	for ch := 0; ch < c; ch++ {
		s := float64(gamma[ch]) / math.Sqrt(float64(variance[ch])+eps)
		scale[ch] = T(s)
		shift[ch] = T(float64(beta[ch]) - float64(mean[ch])*s)
	}

	parallel.ForPlanes(n, c, func(b, ch int) {
		off := (b*c + ch) * plane
		src := x[off : off+plane]
		dst := out[off : off+plane]
		s, sh := scale[ch], shift[ch]
		for i, v := range src {
			dst[i] = v*s + sh
		}
	}, cfg)
}
