package tensor

// Backend defines the interface that all compute backends must implement.
// Backends handle the actual computation for tensor operations.
//
// The operation set is exactly what a convolutional classifier needs:
// grouped convolution, per-channel normalization, clipping, adaptive
// average pooling and a dense projection.
type Backend interface {
	// Element-wise binary operations (NumPy broadcasting)
	Add(a, b *RawTensor) *RawTensor

	// Matrix operations
	MatMul(a, b *RawTensor) *RawTensor

	// Conv2D convolves an NCHW input with a [C_out, C_in/groups, K_h, K_w]
	// kernel. groups must divide both C_in and C_out.
	Conv2D(input, kernel *RawTensor, stride, padding, groups int) *RawTensor

	// AdaptiveAvgPool2D averages each channel into an outH x outW grid.
	AdaptiveAvgPool2D(input *RawTensor, outH, outW int) *RawTensor

	// Per-channel statistics and normalization for NCHW tensors
	ChannelMoments(x *RawTensor) (mean, variance *RawTensor)
	BatchNorm2D(x, mean, variance, gamma, beta *RawTensor, eps float64) *RawTensor

	// ClampScalar clips every element into [lo, hi].
	ClampScalar(x *RawTensor, lo, hi float64) *RawTensor

	// Shape operations
	Reshape(t *RawTensor, newShape Shape) *RawTensor
	Transpose(t *RawTensor, axes ...int) *RawTensor

	// Metadata
	Name() string
	Device() Device
}
