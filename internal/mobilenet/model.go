// Package mobilenet implements the MobileNetV1 image classification network.
//
// The backbone is a stack of depthwise-separable convolution blocks split
// into three stages (strides 8, 16 and 32 relative to the input), followed
// by global average pooling and a linear classifier:
//
//	input [N, 3, H, W]
//	  stage1: conv_bn 3->32 s2, conv_dw 32->64, 64->128 s2, 128->128, 128->256 s2, 256->256
//	  stage2: conv_dw 256->512 s2, five x conv_dw 512->512
//	  stage3: conv_dw 512->1024 s2, conv_dw 1024->1024
//	  avg:    AdaptiveAvgPool2d(1, 1) -> [N, 1024]
//	  fc:     Linear(1024, num_classes)
//
// Layer and state dict names follow the PyTorch module tree, so weights
// round-trip with checkpoints of the same architecture.
package mobilenet

import (
	"errors"
	"fmt"

	"golang.org/x/exp/rand"

	"github.com/born-ml/mobilenet/internal/nn"
	"github.com/born-ml/mobilenet/internal/tensor"
)

// MobileNetV1 is the MobileNetV1 backbone with its classifier head.
//
// A new model is in training mode, like a freshly built PyTorch module:
// BatchNorm layers normalize with batch statistics and update their
// running averages. Call Eval before inference.
type MobileNetV1[B tensor.Backend] struct {
	config Config

	stage1 *Stage[B]
	stage2 *Stage[B]
	stage3 *Stage[B]
	avg    *nn.AdaptiveAvgPool2D[B]
	fc     *nn.Linear[B]

	backend B
}

// New builds a MobileNetV1 with DefaultConfig.
func New[B tensor.Backend](backend B) *MobileNetV1[B] {
	m, err := NewWithConfig(DefaultConfig(), backend)
	if err != nil {
		// DefaultConfig always validates.
		panic(err)
	}
	return m
}

// NewWithConfig builds and initializes a MobileNetV1.
//
// Initialization, drawn from a source seeded with cfg.Seed:
//   - every convolution weight ~ N(0, cfg.InitStd)
//   - every BatchNorm scale = 1, shift = 0
//   - the classifier keeps the Linear default (Xavier weight, zero bias)
func NewWithConfig[B tensor.Backend](cfg Config, backend B) (*MobileNetV1[B], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	dw := func(in, out, stride int) Block[B] {
		return newConvDW(in, out, stride, cfg, backend)
	}

	m := &MobileNetV1[B]{
		config: cfg,
		// 160x160x3 -> 20x20x256
		stage1: newStage(
			Block[B](newConvBN(InputChannels, 32, 2, cfg, backend)),
			dw(32, 64, 1),
			dw(64, 128, 2),
			dw(128, 128, 1),
			dw(128, 256, 2),
			dw(256, Stage1Channels, 1),
		),
		// 20x20x256 -> 10x10x512
		stage2: newStage(
			dw(Stage1Channels, 512, 2),
			dw(512, 512, 1),
			dw(512, 512, 1),
			dw(512, 512, 1),
			dw(512, 512, 1),
			dw(512, Stage2Channels, 1),
		),
		// 10x10x512 -> 5x5x1024
		stage3: newStage(
			dw(Stage2Channels, 1024, 2),
			dw(1024, Stage3Channels, 1),
		),
		avg:     nn.NewAdaptiveAvgPool2D[B](1, 1),
		fc:      nn.NewLinear(Stage3Channels, cfg.NumClasses, backend),
		backend: backend,
	}

	m.initialize()
	return m, nil
}

// initialize applies the weight initialization policy in module order.
func (m *MobileNetV1[B]) initialize() {
	src := rand.NewSource(m.config.Seed)

	for _, conv := range m.Convs() {
		conv.InitNormal(0, m.config.InitStd, src)
	}
	for _, norm := range m.Norms() {
		norm.ResetAffine()
	}
	m.fc.ResetParameters(src)
}

// Forward maps images [N, 3, H, W] to class logits [N, num_classes].
//
// Panics with a *tensor.ShapeError when the input does not fit the first
// layer or any later layer; no layer runs on a mismatched input.
func (m *MobileNetV1[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	_, _, features := m.Features(x)
	return m.Head(features)
}

// Features runs the backbone and returns every stage output:
// [N, 256, H/8, W/8], [N, 512, H/16, W/16] and [N, 1024, H/32, W/32]
// (sizes rounded as the strided convolutions round them).
func (m *MobileNetV1[B]) Features(x *tensor.Tensor[float32, B]) (s1, s2, s3 *tensor.Tensor[float32, B]) {
	s1 = m.stage1.Forward(x)
	s2 = m.stage2.Forward(s1)
	s3 = m.stage3.Forward(s2)
	return s1, s2, s3
}

// Head pools stage3 features and applies the classifier.
func (m *MobileNetV1[B]) Head(features *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	pooled := m.avg.Forward(features)
	return m.fc.Forward(pooled.Reshape(-1, Stage3Channels))
}

// Predict is Forward with shape errors returned instead of raised.
// Any other panic propagates.
func (m *MobileNetV1[B]) Predict(x *tensor.Tensor[float32, B]) (logits *tensor.Tensor[float32, B], err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if e, ok := r.(error); ok {
			var shapeErr *tensor.ShapeError
			if errors.As(e, &shapeErr) {
				logits, err = nil, fmt.Errorf("mobilenet forward: %w", shapeErr)
				return
			}
		}
		panic(r)
	}()

	return m.Forward(x), nil
}

// Train puts every BatchNorm layer in training mode.
func (m *MobileNetV1[B]) Train() {
	m.setTraining(true)
}

// Eval puts every BatchNorm layer in evaluation mode.
func (m *MobileNetV1[B]) Eval() {
	m.setTraining(false)
}

func (m *MobileNetV1[B]) setTraining(training bool) {
	for _, norm := range m.Norms() {
		norm.Train(training)
	}
}

// Training reports whether the model is in training mode.
func (m *MobileNetV1[B]) Training() bool {
	return m.stage1.Blocks()[0].Norms()[0].Training()
}

// Blocks returns every backbone block in execution order.
func (m *MobileNetV1[B]) Blocks() []Block[B] {
	var blocks []Block[B]
	for _, stage := range m.Stages() {
		blocks = append(blocks, stage.Blocks()...)
	}
	return blocks
}

// Stages returns stage1, stage2 and stage3.
func (m *MobileNetV1[B]) Stages() []*Stage[B] {
	return []*Stage[B]{m.stage1, m.stage2, m.stage3}
}

// Convs returns every convolution of the backbone in module order.
func (m *MobileNetV1[B]) Convs() []*nn.Conv2D[B] {
	var convs []*nn.Conv2D[B]
	for _, b := range m.Blocks() {
		convs = append(convs, b.Convs()...)
	}
	return convs
}

// Norms returns every BatchNorm layer of the backbone in module order.
func (m *MobileNetV1[B]) Norms() []*nn.BatchNorm2D[B] {
	var norms []*nn.BatchNorm2D[B]
	for _, b := range m.Blocks() {
		norms = append(norms, b.Norms()...)
	}
	return norms
}

// Classifier returns the linear head.
func (m *MobileNetV1[B]) Classifier() *nn.Linear[B] {
	return m.fc
}

// Config returns the construction settings.
func (m *MobileNetV1[B]) Config() Config {
	return m.config
}

// Backend returns the compute backend.
func (m *MobileNetV1[B]) Backend() B {
	return m.backend
}

// Parameters returns every trainable parameter in module order.
func (m *MobileNetV1[B]) Parameters() []*nn.Parameter[B] {
	var params []*nn.Parameter[B]
	for _, stage := range m.Stages() {
		params = append(params, stage.Parameters()...)
	}
	return append(params, m.fc.Parameters()...)
}

// NumParameters returns the number of trainable scalars.
func (m *MobileNetV1[B]) NumParameters() int {
	total := 0
	for _, p := range m.Parameters() {
		total += p.NumElements()
	}
	return total
}
