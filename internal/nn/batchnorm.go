package nn

import (
	"fmt"

	"github.com/born-ml/mobilenet/internal/tensor"
)

// Default BatchNorm2D hyperparameters (PyTorch defaults).
const (
	DefaultBatchNormEps      = 1e-5
	DefaultBatchNormMomentum = 0.1
)

// BatchNorm2D normalizes each channel of a [N, C, H, W] input:
//
//	y = (x - mean) / sqrt(var + eps) * weight + bias
//
// In training mode mean and var are the moments of the current batch,
// and the running statistics are updated as
//
//	running = (1 - momentum) * running + momentum * batch
//
// using the unbiased batch variance. In evaluation mode the running
// statistics are used and nothing is mutated.
//
// A new layer starts in training mode with weight 1, bias 0,
// running_mean 0 and running_var 1.
type BatchNorm2D[B tensor.Backend] struct {
	numFeatures int
	eps         float64
	momentum    float64
	training    bool

	weight *Parameter[B] // [num_features], scale (gamma)
	bias   *Parameter[B] // [num_features], shift (beta)

	runningMean       *tensor.Tensor[float32, B] // [num_features]
	runningVar        *tensor.Tensor[float32, B] // [num_features]
	numBatchesTracked int64

	backend B
}

// NewBatchNorm2D creates a BatchNorm2D layer with default eps and momentum.
func NewBatchNorm2D[B tensor.Backend](numFeatures int, backend B) *BatchNorm2D[B] {
	return NewBatchNorm2DWithConfig(numFeatures, DefaultBatchNormEps, DefaultBatchNormMomentum, backend)
}

// NewBatchNorm2DWithConfig creates a BatchNorm2D layer with explicit eps and momentum.
func NewBatchNorm2DWithConfig[B tensor.Backend](numFeatures int, eps, momentum float64, backend B) *BatchNorm2D[B] {
	if numFeatures <= 0 {
		panic(fmt.Sprintf("batchnorm2d: invalid num_features %d", numFeatures))
	}
	if eps <= 0 {
		panic(fmt.Sprintf("batchnorm2d: eps must be positive, got %v", eps))
	}
	if momentum < 0 || momentum > 1 {
		panic(fmt.Sprintf("batchnorm2d: momentum must be in [0, 1], got %v", momentum))
	}

	shape := tensor.Shape{numFeatures}
	return &BatchNorm2D[B]{
		numFeatures: numFeatures,
		eps:         eps,
		momentum:    momentum,
		training:    true,
		weight:      NewParameter("weight", Ones(shape, backend)),
		bias:        NewParameter("bias", Zeros(shape, backend)),
		runningMean: Zeros(shape, backend),
		runningVar:  Ones(shape, backend),
		backend:     backend,
	}
}

// Forward normalizes the input per channel.
func (bn *BatchNorm2D[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := input.Shape()
	if len(shape) != 4 {
		panic(tensor.NewShapeError("batchnorm2d", "expected 4D input [N,C,H,W], got %dD", len(shape)))
	}
	if shape[1] != bn.numFeatures {
		panic(tensor.NewShapeError("batchnorm2d", "input channels %d != expected %d", shape[1], bn.numFeatures))
	}

	mean, variance := bn.runningMean.Raw(), bn.runningVar.Raw()

	if bn.training {
		count := shape[0] * shape[2] * shape[3]
		if count < 2 {
			panic(tensor.NewShapeError("batchnorm2d",
				"expected more than 1 value per channel when training, got input %v", shape))
		}

		mean, variance = bn.backend.ChannelMoments(input.Raw())
		bn.updateRunningStats(mean.AsFloat32(), variance.AsFloat32(), count)
	}

	outputRaw := bn.backend.BatchNorm2D(
		input.Raw(),
		mean,
		variance,
		bn.weight.Tensor().Raw(),
		bn.bias.Tensor().Raw(),
		bn.eps,
	)

	return tensor.New[float32, B](outputRaw, bn.backend)
}

// updateRunningStats folds the batch moments into the running averages.
// batchVar is biased; it is rescaled by count/(count-1).
func (bn *BatchNorm2D[B]) updateRunningStats(batchMean, batchVar []float32, count int) {
	m := float32(bn.momentum)
	correction := float32(count) / float32(count-1)

	runningMean := bn.runningMean.Data()
	runningVar := bn.runningVar.Data()
	for c := range runningMean {
		runningMean[c] = (1-m)*runningMean[c] + m*batchMean[c]
		runningVar[c] = (1-m)*runningVar[c] + m*batchVar[c]*correction
	}
	bn.numBatchesTracked++
}

// Train switches between training (true) and evaluation (false) mode.
func (bn *BatchNorm2D[B]) Train(training bool) {
	bn.training = training
}

// Training reports whether the layer is in training mode.
func (bn *BatchNorm2D[B]) Training() bool {
	return bn.training
}

// ResetAffine sets the scale to 1 and the shift to 0.
func (bn *BatchNorm2D[B]) ResetAffine() {
	Constant(bn.weight.Tensor().Data(), 1)
	Constant(bn.bias.Tensor().Data(), 0)
}

// ResetRunningStats sets running_mean to 0 and running_var to 1.
func (bn *BatchNorm2D[B]) ResetRunningStats() {
	Constant(bn.runningMean.Data(), 0)
	Constant(bn.runningVar.Data(), 1)
	bn.numBatchesTracked = 0
}

// Parameters returns [weight, bias].
func (bn *BatchNorm2D[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{bn.weight, bn.bias}
}

// Kind reports KindBatchNorm2D.
func (bn *BatchNorm2D[B]) Kind() Kind {
	return KindBatchNorm2D
}

// StateDict returns weight, bias, running_mean and running_var.
//
// num_batches_tracked is an integer counter in PyTorch checkpoints; it is
// exposed through NumBatchesTracked instead.
func (bn *BatchNorm2D[B]) StateDict() map[string]*tensor.RawTensor {
	return map[string]*tensor.RawTensor{
		"weight":       bn.weight.Tensor().Raw(),
		"bias":         bn.bias.Tensor().Raw(),
		"running_mean": bn.runningMean.Raw(),
		"running_var":  bn.runningVar.Raw(),
	}
}

// LoadStateDict loads parameters and running statistics.
// A num_batches_tracked entry, if present, is ignored.
func (bn *BatchNorm2D[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	if err := loadTensor(bn.weight.Tensor(), stateDict, "weight"); err != nil {
		return err
	}
	if err := loadTensor(bn.bias.Tensor(), stateDict, "bias"); err != nil {
		return err
	}
	if err := loadTensor(bn.runningMean, stateDict, "running_mean"); err != nil {
		return err
	}
	return loadTensor(bn.runningVar, stateDict, "running_var")
}

// String returns a string representation of the layer.
func (bn *BatchNorm2D[B]) String() string {
	return fmt.Sprintf("BatchNorm2d(%d, eps=%g, momentum=%g)", bn.numFeatures, bn.eps, bn.momentum)
}

// Weight returns the scale parameter.
func (bn *BatchNorm2D[B]) Weight() *Parameter[B] {
	return bn.weight
}

// Bias returns the shift parameter.
func (bn *BatchNorm2D[B]) Bias() *Parameter[B] {
	return bn.bias
}

// RunningMean returns the running mean buffer.
func (bn *BatchNorm2D[B]) RunningMean() *tensor.Tensor[float32, B] {
	return bn.runningMean
}

// RunningVar returns the running variance buffer.
func (bn *BatchNorm2D[B]) RunningVar() *tensor.Tensor[float32, B] {
	return bn.runningVar
}

// NumBatchesTracked returns how many training batches updated the running statistics.
func (bn *BatchNorm2D[B]) NumBatchesTracked() int64 {
	return bn.numBatchesTracked
}

// NumFeatures returns the number of channels.
func (bn *BatchNorm2D[B]) NumFeatures() int {
	return bn.numFeatures
}

// Eps returns the numerical stability constant.
func (bn *BatchNorm2D[B]) Eps() float64 {
	return bn.eps
}

// Momentum returns the running statistics momentum.
func (bn *BatchNorm2D[B]) Momentum() float64 {
	return bn.momentum
}
