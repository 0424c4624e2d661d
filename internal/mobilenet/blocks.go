package mobilenet

import (
	"github.com/born-ml/mobilenet/internal/nn"
	"github.com/born-ml/mobilenet/internal/tensor"
)

// Block is one feature extraction unit of the backbone.
//
// Besides the nn.Module behavior inherited from its layer sequence, a
// block lists its convolutions and normalizations so the model can
// initialize and switch modes without inspecting layer types.
type Block[B tensor.Backend] interface {
	nn.Module[B]

	// Name is the block family: "conv_bn" or "conv_dw".
	Name() string
	InChannels() int
	OutChannels() int
	Stride() int

	// OutputSize maps an input spatial size to the block's output size.
	OutputSize(h, w int) (int, int)

	Convs() []*nn.Conv2D[B]
	Norms() []*nn.BatchNorm2D[B]
}

// ConvBN is a standard convolution block:
//
//	Conv2d(in, out, 3x3, stride, padding 1, no bias) -> BatchNorm2d(out) -> ReLU6
//
// Layer indices (0 conv, 1 norm, 2 activation) match PyTorch
// nn.Sequential state dict keys.
type ConvBN[B tensor.Backend] struct {
	*nn.Sequential[B]

	conv *nn.Conv2D[B]
	norm *nn.BatchNorm2D[B]
}

// NewConvBN creates a standard convolution block with default
// BatchNorm settings. Pass stride 1 for the unstrided variant.
func NewConvBN[B tensor.Backend](in, out, stride int, backend B) *ConvBN[B] {
	return newConvBN(in, out, stride, DefaultConfig(), backend)
}

func newConvBN[B tensor.Backend](in, out, stride int, cfg Config, backend B) *ConvBN[B] {
	conv := nn.NewConv2D(in, out, 3, 3, stride, 1, 1, false, backend)
	norm := nn.NewBatchNorm2DWithConfig(out, cfg.BatchNormEps, cfg.BatchNormMomentum, backend)

	return &ConvBN[B]{
		Sequential: nn.NewSequential[B](conv, norm, nn.NewReLU6[B]()),
		conv:       conv,
		norm:       norm,
	}
}

// Name returns "conv_bn".
func (b *ConvBN[B]) Name() string { return "conv_bn" }

// InChannels returns the number of input channels.
func (b *ConvBN[B]) InChannels() int { return b.conv.InChannels() }

// OutChannels returns the number of output channels.
func (b *ConvBN[B]) OutChannels() int { return b.conv.OutChannels() }

// Stride returns the convolution stride.
func (b *ConvBN[B]) Stride() int { return b.conv.Stride() }

// OutputSize returns the spatial size after the 3x3 convolution.
func (b *ConvBN[B]) OutputSize(h, w int) (int, int) {
	size := b.conv.ComputeOutputSize(h, w)
	return size[0], size[1]
}

// Convs returns the block's single convolution.
func (b *ConvBN[B]) Convs() []*nn.Conv2D[B] {
	return []*nn.Conv2D[B]{b.conv}
}

// Norms returns the block's single normalization.
func (b *ConvBN[B]) Norms() []*nn.BatchNorm2D[B] {
	return []*nn.BatchNorm2D[B]{b.norm}
}

// ConvDW is a depthwise-separable convolution block:
//
//	Conv2d(in, in, 3x3, stride, padding 1, groups=in, no bias) -> BatchNorm2d(in) -> ReLU6
//	Conv2d(in, out, 1x1, stride 1, padding 0, no bias)         -> BatchNorm2d(out) -> ReLU6
//
// The depthwise stage filters every channel on its own and carries the
// stride; the pointwise stage mixes channels.
type ConvDW[B tensor.Backend] struct {
	*nn.Sequential[B]

	depthwise     *nn.Conv2D[B]
	depthwiseNorm *nn.BatchNorm2D[B]
	pointwise     *nn.Conv2D[B]
	pointwiseNorm *nn.BatchNorm2D[B]
}

// NewConvDW creates a depthwise-separable block with default
// BatchNorm settings. Pass stride 1 for the unstrided variant.
func NewConvDW[B tensor.Backend](in, out, stride int, backend B) *ConvDW[B] {
	return newConvDW(in, out, stride, DefaultConfig(), backend)
}

func newConvDW[B tensor.Backend](in, out, stride int, cfg Config, backend B) *ConvDW[B] {
	depthwise := nn.NewConv2D(in, in, 3, 3, stride, 1, in, false, backend)
	depthwiseNorm := nn.NewBatchNorm2DWithConfig(in, cfg.BatchNormEps, cfg.BatchNormMomentum, backend)
	pointwise := nn.NewConv2D(in, out, 1, 1, 1, 0, 1, false, backend)
	pointwiseNorm := nn.NewBatchNorm2DWithConfig(out, cfg.BatchNormEps, cfg.BatchNormMomentum, backend)

	return &ConvDW[B]{
		Sequential: nn.NewSequential[B](
			depthwise, depthwiseNorm, nn.NewReLU6[B](),
			pointwise, pointwiseNorm, nn.NewReLU6[B](),
		),
		depthwise:     depthwise,
		depthwiseNorm: depthwiseNorm,
		pointwise:     pointwise,
		pointwiseNorm: pointwiseNorm,
	}
}

// Name returns "conv_dw".
func (b *ConvDW[B]) Name() string { return "conv_dw" }

// InChannels returns the number of input channels.
func (b *ConvDW[B]) InChannels() int { return b.depthwise.InChannels() }

// OutChannels returns the number of output channels.
func (b *ConvDW[B]) OutChannels() int { return b.pointwise.OutChannels() }

// Stride returns the depthwise stride.
func (b *ConvDW[B]) Stride() int { return b.depthwise.Stride() }

// OutputSize returns the spatial size after the block; only the
// depthwise convolution changes it.
func (b *ConvDW[B]) OutputSize(h, w int) (int, int) {
	size := b.depthwise.ComputeOutputSize(h, w)
	return size[0], size[1]
}

// Convs returns the depthwise and pointwise convolutions.
func (b *ConvDW[B]) Convs() []*nn.Conv2D[B] {
	return []*nn.Conv2D[B]{b.depthwise, b.pointwise}
}

// Norms returns both normalizations.
func (b *ConvDW[B]) Norms() []*nn.BatchNorm2D[B] {
	return []*nn.BatchNorm2D[B]{b.depthwiseNorm, b.pointwiseNorm}
}

// Stage is an ordered group of blocks with its own state dict prefix.
type Stage[B tensor.Backend] struct {
	*nn.Sequential[B]

	blocks []Block[B]
}

func newStage[B tensor.Backend](blocks ...Block[B]) *Stage[B] {
	seq := nn.NewSequential[B]()
	for _, b := range blocks {
		seq.Add(b)
	}
	return &Stage[B]{Sequential: seq, blocks: blocks}
}

// Blocks returns the stage's blocks in execution order.
func (s *Stage[B]) Blocks() []Block[B] {
	return s.blocks
}

// OutChannels returns the channel count of the stage output.
func (s *Stage[B]) OutChannels() int {
	return s.blocks[len(s.blocks)-1].OutChannels()
}
