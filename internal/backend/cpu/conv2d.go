package cpu

import (
	"fmt"

	"gonum.org/v1/gonum/blas"

	"github.com/born-ml/mobilenet/internal/parallel"
	"github.com/born-ml/mobilenet/internal/tensor"
)

// convGeom holds the resolved geometry of a grouped 2D convolution.
type convGeom struct {
	batch, inC, inH, inW    int
	outC, kH, kW            int
	outH, outW              int
	stride, padding         int
	groups                  int
	inPerGroup, outPerGroup int
}

// Conv2D performs a grouped 2D convolution.
//
// Input shape: [N, C_in, H, W]
// Kernel shape: [C_out, C_in/groups, KH, KW]
// Output shape: [N, C_out, H_out, W_out]
//
// Where:
//
//	H_out = (H + 2*padding - KH) / stride + 1
//	W_out = (W + 2*padding - KW) / stride + 1
//
// Three kernels are used:
//   - one input channel per group (depthwise): direct sliding window
//   - 1x1 kernel, stride 1, no padding (pointwise): one GEMM per group
//   - otherwise: im2col followed by one GEMM per group
func (cpu *CPUBackend) Conv2D(input, kernel *tensor.RawTensor, stride, padding, groups int) *tensor.RawTensor {
	checkSameDType("conv2d", input, kernel)

	g := convGeometry(input.Shape(), kernel.Shape(), stride, padding, groups)
	result := cpu.alloc("conv2d", tensor.Shape{g.batch, g.outC, g.outH, g.outW}, input.DType())

	switch input.DType() {
	case tensor.Float32:
		conv2d(result.AsFloat32(), input.AsFloat32(), kernel.AsFloat32(), g, cpu.parallel)
	case tensor.Float64:
		conv2d(result.AsFloat64(), input.AsFloat64(), kernel.AsFloat64(), g, cpu.parallel)
	default:
		panic(fmt.Sprintf("conv2d: unsupported dtype %s", input.DType()))
	}

	return result
}

// convGeometry validates the operands and computes the output size.
func convGeometry(inShape, kShape tensor.Shape, stride, padding, groups int) convGeom {
	if len(inShape) != 4 {
		panic(tensor.NewShapeError("conv2d", "input must be 4D [N, C, H, W], got %v", inShape))
	}
	if len(kShape) != 4 {
		panic(tensor.NewShapeError("conv2d", "kernel must be 4D [C_out, C_in/groups, KH, KW], got %v", kShape))
	}
	if stride < 1 {
		panic(tensor.NewShapeError("conv2d", "stride must be positive, got %d", stride))
	}
	if padding < 0 {
		panic(tensor.NewShapeError("conv2d", "padding must be non-negative, got %d", padding))
	}
	if groups < 1 {
		panic(tensor.NewShapeError("conv2d", "groups must be positive, got %d", groups))
	}

	g := convGeom{
		batch: inShape[0], inC: inShape[1], inH: inShape[2], inW: inShape[3],
		outC: kShape[0], kH: kShape[2], kW: kShape[3],
		stride: stride, padding: padding, groups: groups,
	}

	if g.inC%groups != 0 || g.outC%groups != 0 {
		panic(tensor.NewShapeError("conv2d",
			"channels must be divisible by groups: in=%d out=%d groups=%d", g.inC, g.outC, groups))
	}
	g.inPerGroup = g.inC / groups
	g.outPerGroup = g.outC / groups

	if kShape[1] != g.inPerGroup {
		panic(tensor.NewShapeError("conv2d",
			"input has %d channels but kernel expects %d x %d groups", g.inC, kShape[1], groups))
	}

	g.outH = (g.inH+2*padding-g.kH)/stride + 1
	g.outW = (g.inW+2*padding-g.kW)/stride + 1
	if g.inH+2*padding < g.kH || g.inW+2*padding < g.kW || g.outH <= 0 || g.outW <= 0 {
		panic(tensor.NewShapeError("conv2d",
			"kernel %dx%d larger than padded input %dx%d", g.kH, g.kW, g.inH+2*padding, g.inW+2*padding))
	}

	return g
}

func conv2d[T float](out, in, kernel []T, g convGeom, cfg parallel.Config) {
	switch {
	case g.inPerGroup == 1:
		depthwiseConv(out, in, kernel, g, cfg)
	case g.kH == 1 && g.kW == 1 && g.stride == 1 && g.padding == 0:
		pointwiseConv(out, in, kernel, g, cfg)
	default:
		im2colConv(out, in, kernel, g, cfg)
	}
}

// depthwiseConv handles convolutions where every group sees exactly one
// input channel, so each output plane is a single sliding-window pass.
func depthwiseConv[T float](out, in, kernel []T, g convGeom, cfg parallel.Config) {
	inPlane := g.inH * g.inW
	outPlane := g.outH * g.outW
	kSize := g.kH * g.kW

	parallel.ForPlanes(g.batch, g.outC, func(n, oc int) {
		ic := oc / g.outPerGroup
		src := in[(n*g.inC+ic)*inPlane : (n*g.inC+ic+1)*inPlane]
		k := kernel[oc*kSize : (oc+1)*kSize]
		dst := out[(n*g.outC+oc)*outPlane : (n*g.outC+oc+1)*outPlane]

		for oh := 0; oh < g.outH; oh++ {
			hStart := oh*g.stride - g.padding
			for ow := 0; ow < g.outW; ow++ {
				wStart := ow*g.stride - g.padding

				var sum T
				for kh := 0; kh < g.kH; kh++ {
					h := hStart + kh
					if h < 0 || h >= g.inH {
						continue
					}
					row := src[h*g.inW : (h+1)*g.inW]
					kRow := k[kh*g.kW : (kh+1)*g.kW]
					for kw, kv := range kRow {
						w := wStart + kw
						if w < 0 || w >= g.inW {
							continue
						}
						sum += kv * row[w]
					}
				}
				dst[oh*g.outW+ow] = sum
			}
		}
	}, cfg)
}

// pointwiseConv treats each (sample, group) as W_g[outPerGroup, inPerGroup] @ X[inPerGroup, H*W].
func pointwiseConv[T float](out, in, kernel []T, g convGeom, cfg parallel.Config) {
	plane := g.inH * g.inW

	parallel.ForPlanes(g.batch, g.groups, func(n, grp int) {
		x := in[(n*g.inC+grp*g.inPerGroup)*plane : (n*g.inC+(grp+1)*g.inPerGroup)*plane]
		w := kernel[grp*g.outPerGroup*g.inPerGroup : (grp+1)*g.outPerGroup*g.inPerGroup]
		y := out[(n*g.outC+grp*g.outPerGroup)*plane : (n*g.outC+(grp+1)*g.outPerGroup)*plane]

		gemm(blas.NoTrans, blas.NoTrans, g.outPerGroup, plane, g.inPerGroup,
			w, g.inPerGroup, x, plane, y, plane)
	}, cfg)
}

// im2colConv unrolls each (sample, group) input into columns and multiplies
// by the group's flattened kernel. Output lands directly in NCHW order.
func im2colConv[T float](out, in, kernel []T, g convGeom, cfg parallel.Config) {
	inPlane := g.inH * g.inW
	outPlane := g.outH * g.outW
	patch := g.inPerGroup * g.kH * g.kW

	parallel.ForPlanes(g.batch, g.groups, func(n, grp int) {
		x := in[(n*g.inC+grp*g.inPerGroup)*inPlane : (n*g.inC+(grp+1)*g.inPerGroup)*inPlane]
		w := kernel[grp*g.outPerGroup*patch : (grp+1)*g.outPerGroup*patch]
		y := out[(n*g.outC+grp*g.outPerGroup)*outPlane : (n*g.outC+(grp+1)*g.outPerGroup)*outPlane]

		col := make([]T, patch*outPlane)
		im2col(col, x, g)

		gemm(blas.NoTrans, blas.NoTrans, g.outPerGroup, outPlane, patch,
			w, patch, col, outPlane, y, outPlane)
	}, cfg)
}

// im2col fills col [inPerGroup*KH*KW, H_out*W_out] from one group's
// input planes. Padded positions are zero.
func im2col[T float](col, x []T, g convGeom) {
	inPlane := g.inH * g.inW
	outPlane := g.outH * g.outW

	row := 0
	for c := 0; c < g.inPerGroup; c++ {
		src := x[c*inPlane : (c+1)*inPlane]
		for kh := 0; kh < g.kH; kh++ {
			for kw := 0; kw < g.kW; kw++ {
				dst := col[row*outPlane : (row+1)*outPlane]
				for oh := 0; oh < g.outH; oh++ {
					h := oh*g.stride - g.padding + kh
					seg := dst[oh*g.outW : (oh+1)*g.outW]
					if h < 0 || h >= g.inH {
						clear(seg)
						continue
					}
					for ow := range seg {
						w := ow*g.stride - g.padding + kw
						if w < 0 || w >= g.inW {
							seg[ow] = 0
						} else {
							seg[ow] = src[h*g.inW+w]
						}
					}
				}
				row++
			}
		}
	}
}
