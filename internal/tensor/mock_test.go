package tensor

// Verify that mockBackend implements Backend.
var _ Backend = (*mockBackend)(nil)

// mockBackend implements the few operations the tensor tests exercise.
// Everything else panics; kernels are covered by the cpu package tests.
type mockBackend struct{}

func (m *mockBackend) Name() string   { return "mock" }
func (m *mockBackend) Device() Device { return CPU }

func (m *mockBackend) Add(a, b *RawTensor) *RawTensor {
	if !a.Shape().Equal(b.Shape()) {
		panic("mock add: shapes must match")
	}
	result, err := NewRaw(a.Shape(), a.DType(), CPU)
	if err != nil {
		panic(err)
	}
	switch a.DType() {
	case Float32:
		dst, x, y := result.AsFloat32(), a.AsFloat32(), b.AsFloat32()
		for i := range dst {
			dst[i] = x[i] + y[i]
		}
	case Float64:
		dst, x, y := result.AsFloat64(), a.AsFloat64(), b.AsFloat64()
		for i := range dst {
			dst[i] = x[i] + y[i]
		}
	}
	return result
}

func (m *mockBackend) Reshape(t *RawTensor, newShape Shape) *RawTensor {
	view, err := t.Reshaped(newShape)
	if err != nil {
		panic(err)
	}
	return view
}

func (m *mockBackend) MatMul(_, _ *RawTensor) *RawTensor {
	panic("MatMul not implemented in mockBackend")
}

func (m *mockBackend) Conv2D(_, _ *RawTensor, _, _, _ int) *RawTensor {
	panic("Conv2D not implemented in mockBackend")
}

func (m *mockBackend) AdaptiveAvgPool2D(_ *RawTensor, _, _ int) *RawTensor {
	panic("AdaptiveAvgPool2D not implemented in mockBackend")
}

func (m *mockBackend) ChannelMoments(_ *RawTensor) (*RawTensor, *RawTensor) {
	panic("ChannelMoments not implemented in mockBackend")
}

func (m *mockBackend) BatchNorm2D(_, _, _, _, _ *RawTensor, _ float64) *RawTensor {
	panic("BatchNorm2D not implemented in mockBackend")
}

func (m *mockBackend) ClampScalar(_ *RawTensor, _, _ float64) *RawTensor {
	panic("ClampScalar not implemented in mockBackend")
}

func (m *mockBackend) Transpose(_ *RawTensor, _ ...int) *RawTensor {
	panic("Transpose not implemented in mockBackend")
}
