package cpu

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"

	"github.com/born-ml/mobilenet/internal/parallel"
	"github.com/born-ml/mobilenet/internal/tensor"
)

// Verify that CPUBackend implements tensor.Backend.
var _ tensor.Backend = (*CPUBackend)(nil)

func raw32(t testing.TB, data []float32, shape ...int) *tensor.RawTensor {
	t.Helper()
	r, err := tensor.NewRaw(shape, tensor.Float32, tensor.CPU)
	require.NoError(t, err)
	copy(r.AsFloat32(), data)
	return r
}

func raw64(t testing.TB, data []float64, shape ...int) *tensor.RawTensor {
	t.Helper()
	r, err := tensor.NewRaw(shape, tensor.Float64, tensor.CPU)
	require.NoError(t, err)
	copy(r.AsFloat64(), data)
	return r
}

func randomRaw64(t testing.TB, seed uint64, shape ...int) *tensor.RawTensor {
	t.Helper()
	r, err := tensor.NewRaw(shape, tensor.Float64, tensor.CPU)
	require.NoError(t, err)
	tensor.FillNormal(r.AsFloat64(), 0, 1, rand.NewSource(seed))
	return r
}

// requireShapeError runs f and checks that it panics with a *tensor.ShapeError for op.
func requireShapeError(t *testing.T, op string, f func()) {
	t.Helper()
	defer func() {
		t.Helper()
		r := recover()
		require.NotNil(t, r, "expected panic")
		err, ok := r.(error)
		require.True(t, ok, "panic value should be an error, got %T", r)
		var shapeErr *tensor.ShapeError
		require.True(t, errors.As(err, &shapeErr), "expected ShapeError, got %v", err)
		assert.Equal(t, op, shapeErr.Op)
	}()
	f()
}

func TestCPUBackendName(t *testing.T) {
	backend := New()
	assert.Equal(t, "CPU", backend.Name())
	assert.Equal(t, tensor.CPU, backend.Device())
}

func TestAdd(t *testing.T) {
	backend := New()

	a := raw32(t, []float32{1, 2, 3, 4}, 2, 2)
	b := raw32(t, []float32{10, 20, 30, 40}, 2, 2)
	assert.Equal(t, []float32{11, 22, 33, 44}, backend.Add(a, b).AsFloat32())
}

func TestAddBroadcastsBias(t *testing.T) {
	backend := New()

	x := raw64(t, []float64{1, 2, 3, 4, 5, 6}, 2, 3)
	bias := raw64(t, []float64{10, 20, 30}, 1, 3)

	result := backend.Add(x, bias)
	assert.Equal(t, tensor.Shape{2, 3}, result.Shape())
	assert.Equal(t, []float64{11, 22, 33, 14, 25, 36}, result.AsFloat64())

	// Rank-extending broadcast: [3] against [2, 3].
	flat := raw64(t, []float64{1, 1, 1}, 3)
	assert.Equal(t, []float64{2, 3, 4, 5, 6, 7}, backend.Add(x, flat).AsFloat64())
}

func TestAddIncompatibleShapes(t *testing.T) {
	backend := New()
	requireShapeError(t, "add", func() {
		backend.Add(raw32(t, nil, 2, 3), raw32(t, nil, 2, 4))
	})
}

func TestMatMul(t *testing.T) {
	backend := New()

	// [2, 3] @ [3, 2]
	a := raw32(t, []float32{1, 2, 3, 4, 5, 6}, 2, 3)
	b := raw32(t, []float32{7, 8, 9, 10, 11, 12}, 3, 2)

	result := backend.MatMul(a, b)
	assert.Equal(t, tensor.Shape{2, 2}, result.Shape())
	assert.Equal(t, []float32{58, 64, 139, 154}, result.AsFloat32())

	requireShapeError(t, "matmul", func() {
		backend.MatMul(a, a)
	})
}

func TestReshapeIsView(t *testing.T) {
	backend := New()
	x := raw32(t, []float32{1, 2, 3, 4}, 1, 4, 1, 1)

	flat := backend.Reshape(x, tensor.Shape{1, 4})
	flat.AsFloat32()[0] = 9
	assert.Equal(t, float32(9), x.AsFloat32()[0])

	requireShapeError(t, "reshape", func() {
		backend.Reshape(x, tensor.Shape{3})
	})
}

func TestTranspose(t *testing.T) {
	backend := New()

	x := raw32(t, []float32{1, 2, 3, 4, 5, 6}, 2, 3)
	result := backend.Transpose(x)
	assert.Equal(t, tensor.Shape{3, 2}, result.Shape())
	assert.Equal(t, []float32{1, 4, 2, 5, 3, 6}, result.AsFloat32())

	// [1, 2, 3] -> axes (2, 0, 1) -> [3, 1, 2]
	y := raw32(t, []float32{1, 2, 3, 4, 5, 6}, 1, 2, 3)
	permuted := backend.Transpose(y, 2, 0, 1)
	assert.Equal(t, tensor.Shape{3, 1, 2}, permuted.Shape())
	assert.Equal(t, []float32{1, 4, 2, 5, 3, 6}, permuted.AsFloat32())

	requireShapeError(t, "transpose", func() {
		backend.Transpose(y, 0, 0, 1)
	})
}

func TestClampScalar(t *testing.T) {
	backend := New()

	x := raw32(t, []float32{-3, 0, 2.5, 6, 100}, 5)
	assert.Equal(t, []float32{0, 0, 2.5, 6, 6}, backend.ClampScalar(x, 0, 6).AsFloat32())

	assert.Panics(t, func() { backend.ClampScalar(x, 6, 0) })
}

func TestSequentialAndParallelAgree(t *testing.T) {
	x := randomRaw64(t, 1, 2, 8, 9, 9)
	k := randomRaw64(t, 2, 8, 1, 3, 3)

	par := NewWithConfig(parallel.Config{Enabled: true, NumWorkers: 4, MinChunkSize: 1})
	seq := NewWithConfig(parallel.Sequential())

	assert.Equal(t,
		seq.Conv2D(x, k, 2, 1, 8).AsFloat64(),
		par.Conv2D(x, k, 2, 1, 8).AsFloat64())
}
