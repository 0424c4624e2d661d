package cpu

import (
	"fmt"

	"github.com/born-ml/mobilenet/internal/parallel"
	"github.com/born-ml/mobilenet/internal/tensor"
)

// AdaptiveAvgPool2D averages [N, C, H, W] down to [N, C, outH, outW].
//
// Output cell (i, j) covers rows [floor(i*H/outH), ceil((i+1)*H/outH))
// and the analogous column range, so bins may overlap when H is not a
// multiple of outH.
func (cpu *CPUBackend) AdaptiveAvgPool2D(input *tensor.RawTensor, outH, outW int) *tensor.RawTensor {
	shape := input.Shape()
	if len(shape) != 4 {
		panic(tensor.NewShapeError("adaptive_avg_pool2d", "input must be 4D [N, C, H, W], got %v", shape))
	}
	if outH < 1 || outW < 1 {
		panic(tensor.NewShapeError("adaptive_avg_pool2d", "output size must be positive, got %dx%d", outH, outW))
	}

	result := cpu.alloc("adaptive_avg_pool2d", tensor.Shape{shape[0], shape[1], outH, outW}, input.DType())

	switch input.DType() {
	case tensor.Float32:
		adaptiveAvgPool(result.AsFloat32(), input.AsFloat32(), shape, outH, outW, cpu.parallel)
	case tensor.Float64:
		adaptiveAvgPool(result.AsFloat64(), input.AsFloat64(), shape, outH, outW, cpu.parallel)
	default:
		panic(fmt.Sprintf("adaptive_avg_pool2d: unsupported dtype %s", input.DType()))
	}

	return result
}

func adaptiveAvgPool[T float](out, in []T, shape tensor.Shape, outH, outW int, cfg parallel.Config) {
	c, h, w := shape[1], shape[2], shape[3]

	parallel.ForPlanes(shape[0], c, func(n, ch int) {
		src := in[(n*c+ch)*h*w : (n*c+ch+1)*h*w]
		dst := out[(n*c+ch)*outH*outW : (n*c+ch+1)*outH*outW]

		for i := 0; i < outH; i++ {
			h0, h1 := binRange(i, h, outH)
			for j := 0; j < outW; j++ {
				w0, w1 := binRange(j, w, outW)

				var sum float64
				for y := h0; y < h1; y++ {
					for _, v := range src[y*w+w0 : y*w+w1] {
						sum += float64(v)
					}
				}
				dst[i*outW+j] = T(sum / float64((h1-h0)*(w1-w0)))
			}
		}
	}, cfg)
}

// binRange returns the half-open input range pooled into output index i.
func binRange(i, in, out int) (start, end int) {
	start = i * in / out
	end = ((i+1)*in + out - 1) / out
	return start, end
}
