package tensor

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat"
)

func assertEqualShape(t *testing.T, expected, actual Shape, msg string) {
	t.Helper()
	if !expected.Equal(actual) {
		t.Errorf("%s: expected shape %v, got %v", msg, expected, actual)
	}
}

func TestDataTypeSize(t *testing.T) {
	tests := []struct {
		dtype DataType
		size  int
		name  string
	}{
		{Float32, 4, "float32"},
		{Float64, 8, "float64"},
	}

	for _, tt := range tests {
		if got := tt.dtype.Size(); got != tt.size {
			t.Errorf("%v.Size() = %d, want %d", tt.dtype, got, tt.size)
		}
		if got := tt.dtype.String(); got != tt.name {
			t.Errorf("String() = %q, want %q", got, tt.name)
		}
	}
}

func TestShapeComputeStrides(t *testing.T) {
	strides := Shape{2, 3, 4, 5}.ComputeStrides()
	assert.Equal(t, []int{60, 20, 5, 1}, strides)
	assert.Empty(t, Shape{}.ComputeStrides())
}

func TestShapeResolve(t *testing.T) {
	tests := []struct {
		name    string
		shape   Shape
		n       int
		want    Shape
		wantErr bool
	}{
		{"explicit", Shape{2, 1024}, 2048, Shape{2, 1024}, false},
		{"infer leading", Shape{-1, 1024}, 3072, Shape{3, 1024}, false},
		{"infer trailing", Shape{4, -1}, 20, Shape{4, 5}, false},
		{"two inferred", Shape{-1, -1}, 4, nil, true},
		{"not divisible", Shape{-1, 3}, 10, nil, true},
		{"count mismatch", Shape{2, 2}, 5, nil, true},
		{"zero dim", Shape{0, 2}, 0, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.shape.Resolve(tt.n)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assertEqualShape(t, tt.want, got, "Resolve")
		})
	}
}

func TestBroadcastShapes(t *testing.T) {
	out, needs, err := BroadcastShapes(Shape{4, 1000}, Shape{1, 1000})
	require.NoError(t, err)
	assert.True(t, needs)
	assertEqualShape(t, Shape{4, 1000}, out, "broadcast")

	out, needs, err = BroadcastShapes(Shape{2, 3}, Shape{2, 3})
	require.NoError(t, err)
	assert.False(t, needs)
	assertEqualShape(t, Shape{2, 3}, out, "same shape")

	_, _, err = BroadcastShapes(Shape{3, 4}, Shape{3, 5})
	assert.Error(t, err)
}

func TestNewRawRejectsInvalidShape(t *testing.T) {
	_, err := NewRaw(Shape{2, 0}, Float32, CPU)
	assert.Error(t, err)
}

func TestReshapedSharesMemory(t *testing.T) {
	raw, err := NewRaw(Shape{2, 3}, Float32, CPU)
	require.NoError(t, err)

	view, err := raw.Reshaped(Shape{3, 2})
	require.NoError(t, err)
	assertEqualShape(t, Shape{3, 2}, view.Shape(), "view shape")
	assert.Equal(t, []int{2, 1}, view.Strides())

	view.AsFloat32()[5] = 7
	assert.Equal(t, float32(7), raw.AsFloat32()[5])

	_, err = raw.Reshaped(Shape{4, 2})
	assert.Error(t, err)
}

func TestCloneIsDeep(t *testing.T) {
	raw, err := NewRaw(Shape{4}, Float64, CPU)
	require.NoError(t, err)

	clone := raw.Clone()
	clone.AsFloat64()[0] = 1
	assert.Equal(t, 0.0, raw.AsFloat64()[0])
}

func TestCopyFrom(t *testing.T) {
	dst, _ := NewRaw(Shape{2, 2}, Float32, CPU)
	src, _ := NewRaw(Shape{2, 2}, Float32, CPU)
	copy(src.AsFloat32(), []float32{1, 2, 3, 4})

	require.NoError(t, dst.CopyFrom(src))
	assert.Equal(t, []float32{1, 2, 3, 4}, dst.AsFloat32())

	wrongShape, _ := NewRaw(Shape{4}, Float32, CPU)
	assert.Error(t, dst.CopyFrom(wrongShape))

	wrongType, _ := NewRaw(Shape{2, 2}, Float64, CPU)
	assert.Error(t, dst.CopyFrom(wrongType))
}

func TestFromSlice(t *testing.T) {
	backend := &mockBackend{}

	x, err := FromSlice([]float32{1, 2, 3, 4, 5, 6}, Shape{2, 3}, backend)
	require.NoError(t, err)
	assert.Equal(t, float32(6), x.At(1, 2))
	assert.Equal(t, Float32, x.DType())

	x.Set(10, 0, 1)
	assert.Equal(t, float32(10), x.Data()[1])

	_, err = FromSlice([]float32{1, 2, 3}, Shape{2, 2}, backend)
	assert.Error(t, err)
}

func TestAtOutOfBounds(t *testing.T) {
	x := Zeros[float32](Shape{2, 2}, &mockBackend{})
	assert.Panics(t, func() { x.At(2, 0) })
	assert.Panics(t, func() { x.At(0) })
}

func TestFullAndOnes(t *testing.T) {
	backend := &mockBackend{}

	for _, v := range Ones[float64](Shape{3, 3}, backend).Data() {
		if v != 1 {
			t.Fatalf("Ones: expected 1, got %v", v)
		}
	}
	for _, v := range Full[float32](Shape{5}, 6, backend).Data() {
		if v != 6 {
			t.Fatalf("Full: expected 6, got %v", v)
		}
	}
}

func TestReshapeInfersDimension(t *testing.T) {
	x := Zeros[float32](Shape{2, 1024, 1, 1}, &mockBackend{})

	flat := x.Reshape(-1, 1024)
	assertEqualShape(t, Shape{2, 1024}, flat.Shape(), "Reshape(-1, 1024)")
}

func TestReshapeRaisesShapeError(t *testing.T) {
	x := Zeros[float32](Shape{2, 3}, &mockBackend{})

	defer func() {
		r := recover()
		require.NotNil(t, r)
		err, ok := r.(error)
		require.True(t, ok, "panic value should be an error, got %T", r)

		var shapeErr *ShapeError
		require.True(t, errors.As(err, &shapeErr))
		assert.Equal(t, "reshape", shapeErr.Op)
	}()
	x.Reshape(4, 2)
}

func TestAdd(t *testing.T) {
	backend := &mockBackend{}
	a, _ := FromSlice([]float32{1, 2}, Shape{2}, backend)
	b, _ := FromSlice([]float32{10, 20}, Shape{2}, backend)

	assert.Equal(t, []float32{11, 22}, a.Add(b).Data())
}

func TestNormalStatistics(t *testing.T) {
	x := Normal[float64](Shape{256, 256}, 0, 0.1, rand.NewSource(7), &mockBackend{})

	mean, std := stat.MeanStdDev(x.Data(), nil)
	assert.InDelta(t, 0, mean, 0.005)
	assert.InDelta(t, 0.1, std, 0.005)
}

func TestNormalIsReproducible(t *testing.T) {
	backend := &mockBackend{}
	a := Normal[float32](Shape{64}, 1, 2, rand.NewSource(42), backend)
	b := Normal[float32](Shape{64}, 1, 2, rand.NewSource(42), backend)

	assert.Equal(t, a.Data(), b.Data())
	assert.False(t, math.IsNaN(float64(a.Data()[0])))
}

func TestShapeErrorMessage(t *testing.T) {
	err := NewShapeError("conv2d", "input channels %d != expected %d", 64, 32)
	assert.Equal(t, "conv2d: input channels 64 != expected 32", err.Error())
}
