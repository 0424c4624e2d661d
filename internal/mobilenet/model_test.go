package mobilenet_test

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"maps"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat"

	"github.com/born-ml/mobilenet/internal/backend/cpu"
	"github.com/born-ml/mobilenet/internal/mobilenet"
	"github.com/born-ml/mobilenet/internal/tensor"
)

func randomImages(b *cpu.CPUBackend, seed uint64, n, c, h, w int) *tensor.Tensor[float32, *cpu.CPUBackend] {
	return tensor.Normal[float32](tensor.Shape{n, c, h, w}, 0, 1, rand.NewSource(seed), b)
}

func smallModel(t *testing.T, seed uint64) *mobilenet.MobileNetV1[*cpu.CPUBackend] {
	t.Helper()
	cfg := mobilenet.DefaultConfig()
	cfg.NumClasses = 10
	cfg.Seed = seed
	m, err := mobilenet.NewWithConfig(cfg, cpu.New())
	require.NoError(t, err)
	return m
}

func TestMobileNetV1_StageShapes(t *testing.T) {
	backend := cpu.New()
	m := mobilenet.New(backend)
	m.Eval()

	x := randomImages(backend, 1, 1, 3, mobilenet.DefaultImageSize, mobilenet.DefaultImageSize)
	s1, s2, s3 := m.Features(x)

	assert.Equal(t, tensor.Shape{1, 256, 20, 20}, s1.Shape())
	assert.Equal(t, tensor.Shape{1, 512, 10, 10}, s2.Shape())
	assert.Equal(t, tensor.Shape{1, 1024, 5, 5}, s3.Shape())

	logits := m.Head(s3)
	assert.Equal(t, tensor.Shape{1, 1000}, logits.Shape())

	for _, v := range logits.Data() {
		require.False(t, math.IsNaN(float64(v)), "logits contain NaN")
	}
}

func TestMobileNetV1_ForwardBatch(t *testing.T) {
	tests := []struct {
		name  string
		batch int
		size  int
		want  tensor.Shape
	}{
		{"single 32x32", 1, 32, tensor.Shape{1, 10}},
		{"batch of 3", 3, 32, tensor.Shape{3, 10}},
		{"odd size", 2, 45, tensor.Shape{2, 10}},
		{"larger input", 2, 64, tensor.Shape{2, 10}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := smallModel(t, 1)
			m.Eval()
			x := randomImages(m.Backend(), 2, tt.batch, 3, tt.size, tt.size)
			out := m.Forward(x)
			assert.Equal(t, tt.want, out.Shape())
		})
	}
}

func TestMobileNetV1_ChannelMismatch(t *testing.T) {
	m := smallModel(t, 1)
	x := randomImages(m.Backend(), 1, 2, 4, 32, 32)

	assert.Panics(t, func() { m.Forward(x) })

	logits, err := m.Predict(x)
	require.Error(t, err)
	assert.Nil(t, logits)

	var shapeErr *tensor.ShapeError
	require.True(t, errors.As(err, &shapeErr))
	assert.Equal(t, "conv2d", shapeErr.Op)
	assert.Contains(t, err.Error(), "mobilenet forward")
}

func TestMobileNetV1_PredictOK(t *testing.T) {
	m := smallModel(t, 1)
	m.Eval()

	logits, err := m.Predict(randomImages(m.Backend(), 3, 2, 3, 32, 32))
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2, 10}, logits.Shape())
}

func TestMobileNetV1_Initialization(t *testing.T) {
	m := mobilenet.New(cpu.New())

	var weights []float64
	for _, conv := range m.Convs() {
		for _, v := range conv.Weight().Tensor().Data() {
			weights = append(weights, float64(v))
		}
	}
	mean, std := stat.MeanStdDev(weights, nil)
	assert.InDelta(t, 0, mean, 1e-3)
	assert.InDelta(t, mobilenet.DefaultInitStd, std, 1e-3)

	for _, norm := range m.Norms() {
		for _, v := range norm.Weight().Tensor().Data() {
			require.Equal(t, float32(1), v)
		}
		for _, v := range norm.Bias().Tensor().Data() {
			require.Equal(t, float32(0), v)
		}
	}

	for _, v := range m.Classifier().Bias().Tensor().Data() {
		require.Equal(t, float32(0), v)
	}
}

func TestMobileNetV1_SeedReproducibility(t *testing.T) {
	a := smallModel(t, 42)
	b := smallModel(t, 42)
	c := smallModel(t, 43)

	aState, bState, cState := a.StateDict(), b.StateDict(), c.StateDict()
	for key, raw := range aState {
		assert.Equal(t, raw.AsFloat32(), bState[key].AsFloat32(), key)
	}
	assert.NotEqual(t, aState["stage1.0.0.weight"].AsFloat32(), cState["stage1.0.0.weight"].AsFloat32())
	assert.NotEqual(t, aState["fc.weight"].AsFloat32(), cState["fc.weight"].AsFloat32())
}

func TestMobileNetV1_TrainingMode(t *testing.T) {
	m := smallModel(t, 1)
	require.True(t, m.Training(), "new models start in training mode")

	firstNorm := m.Norms()[0]
	before := append([]float32(nil), firstNorm.RunningMean().Data()...)

	m.Forward(randomImages(m.Backend(), 5, 2, 3, 32, 32))

	assert.NotEqual(t, before, firstNorm.RunningMean().Data())
	assert.Equal(t, int64(1), firstNorm.NumBatchesTracked())

	m.Eval()
	assert.False(t, m.Training())
	m.Train()
	assert.True(t, m.Training())
}

func TestMobileNetV1_EvalDeterministic(t *testing.T) {
	m := smallModel(t, 1)
	m.Eval()

	x := randomImages(m.Backend(), 9, 2, 3, 32, 32)
	runningVar := append([]float32(nil), m.Norms()[5].RunningVar().Data()...)

	first := m.Forward(x).Data()
	second := m.Forward(x).Data()

	assert.Equal(t, first, second)
	assert.Equal(t, runningVar, m.Norms()[5].RunningVar().Data())
}

func TestMobileNetV1_SingleSampleOneByOneTraining(t *testing.T) {
	m := smallModel(t, 1)
	// 32x32 collapses stage3 to 1x1; with one sample its BatchNorm has a
	// single value per channel.
	x := randomImages(m.Backend(), 1, 1, 3, 32, 32)

	_, err := m.Predict(x)
	require.Error(t, err)

	m.Eval()
	_, err = m.Predict(x)
	require.NoError(t, err)
}

func TestMobileNetV1_Structure(t *testing.T) {
	m := mobilenet.New(cpu.New())

	stages := m.Stages()
	require.Len(t, stages, 3)
	assert.Len(t, stages[0].Blocks(), 6)
	assert.Len(t, stages[1].Blocks(), 6)
	assert.Len(t, stages[2].Blocks(), 2)
	assert.Equal(t, mobilenet.Stage1Channels, stages[0].OutChannels())
	assert.Equal(t, mobilenet.Stage2Channels, stages[1].OutChannels())
	assert.Equal(t, mobilenet.Stage3Channels, stages[2].OutChannels())

	blocks := m.Blocks()
	require.Len(t, blocks, 14)
	assert.Equal(t, "conv_bn", blocks[0].Name())
	for _, b := range blocks[1:] {
		assert.Equal(t, "conv_dw", b.Name())
	}

	strides := make([]int, len(blocks))
	for i, b := range blocks {
		strides[i] = b.Stride()
	}
	assert.Equal(t, []int{2, 1, 2, 1, 2, 1, 2, 1, 1, 1, 1, 1, 2, 1}, strides)

	assert.Len(t, m.Convs(), 27)
	assert.Len(t, m.Norms(), 27)
	assert.Equal(t, 4231976, m.NumParameters())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*mobilenet.Config)
	}{
		{"zero classes", func(c *mobilenet.Config) { c.NumClasses = 0 }},
		{"negative std", func(c *mobilenet.Config) { c.InitStd = -0.1 }},
		{"zero eps", func(c *mobilenet.Config) { c.BatchNormEps = 0 }},
		{"momentum above one", func(c *mobilenet.Config) { c.BatchNormMomentum = 1.5 }},
	}

	require.NoError(t, mobilenet.DefaultConfig().Validate())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := mobilenet.DefaultConfig()
			tt.modify(&cfg)

			m, err := mobilenet.NewWithConfig(cfg, cpu.New())
			assert.Nil(t, m)
			assert.ErrorIs(t, err, mobilenet.ErrInvalidConfig)
		})
	}
}

func TestMobileNetV1_CustomClasses(t *testing.T) {
	m := smallModel(t, 1)
	assert.Equal(t, 10, m.Config().NumClasses)
	assert.Equal(t, tensor.Shape{10, 1024}, m.Classifier().Weight().Tensor().Shape())
	assert.Equal(t, 3217226, m.NumParameters())
}

func TestMobileNetV1_StateDictKeys(t *testing.T) {
	m := mobilenet.New(cpu.New())
	state := m.StateDict()

	assert.Len(t, state, 137)

	tests := []struct {
		key   string
		shape tensor.Shape
	}{
		{"stage1.0.0.weight", tensor.Shape{32, 3, 3, 3}},
		{"stage1.0.1.weight", tensor.Shape{32}},
		{"stage1.0.1.running_mean", tensor.Shape{32}},
		{"stage1.1.0.weight", tensor.Shape{32, 1, 3, 3}},
		{"stage1.1.3.weight", tensor.Shape{64, 32, 1, 1}},
		{"stage1.1.4.running_var", tensor.Shape{64}},
		{"stage2.0.0.weight", tensor.Shape{256, 1, 3, 3}},
		{"stage2.5.3.weight", tensor.Shape{512, 512, 1, 1}},
		{"stage3.1.4.bias", tensor.Shape{1024}},
		{"fc.weight", tensor.Shape{1000, 1024}},
		{"fc.bias", tensor.Shape{1000}},
	}
	for _, tt := range tests {
		raw, ok := state[tt.key]
		if assert.True(t, ok, "missing %s", tt.key) {
			assert.Equal(t, tt.shape, raw.Shape(), tt.key)
		}
	}

	for key := range state {
		assert.NotContains(t, key, "num_batches_tracked")
	}
}

func TestMobileNetV1_LoadStateDict(t *testing.T) {
	src := smallModel(t, 1)
	dst := smallModel(t, 2)

	state := src.StateDict()
	counter, err := tensor.NewRaw(tensor.Shape{1}, tensor.Float64, tensor.CPU)
	require.NoError(t, err)
	state["stage1.0.1.num_batches_tracked"] = counter

	require.NoError(t, dst.LoadStateDict(state))

	dstState := dst.StateDict()
	for key, raw := range src.StateDict() {
		assert.Equal(t, raw.AsFloat32(), dstState[key].AsFloat32(), key)
	}
}

// writeTorchCheckpoint writes state as SafeTensors the way PyTorch exports a
// module: float tensors plus a 0-dim I64 num_batches_tracked counter next
// to every BatchNorm's running statistics.
func writeTorchCheckpoint(t *testing.T, path string, state map[string]*tensor.RawTensor) {
	t.Helper()

	header := make(map[string]any)
	var body []byte
	add := func(name, dtype string, shape []int, data []byte) {
		start := len(body)
		body = append(body, data...)
		header[name] = map[string]any{
			"dtype":        dtype,
			"shape":        shape,
			"data_offsets": []int{start, len(body)},
		}
	}

	for _, key := range slices.Sorted(maps.Keys(state)) {
		raw := state[key]
		add(key, "F32", []int(raw.Shape()), raw.Data())

		if prefix, ok := strings.CutSuffix(key, ".running_var"); ok {
			counter := binary.LittleEndian.AppendUint64(nil, 17)
			add(prefix+".num_batches_tracked", "I64", []int{}, counter)
		}
	}

	headerJSON, err := json.Marshal(header)
	require.NoError(t, err)

	file := binary.LittleEndian.AppendUint64(nil, uint64(len(headerJSON)))
	file = append(file, headerJSON...)
	file = append(file, body...)
	require.NoError(t, os.WriteFile(path, file, 0o600))
}

func TestMobileNetV1_LoadTorchCheckpoint(t *testing.T) {
	path := filepath.Join(t.TempDir(), "torch.safetensors")

	src := smallModel(t, 1)
	writeTorchCheckpoint(t, path, src.StateDict())

	dst := smallModel(t, 2)
	require.NoError(t, dst.Load(path))

	dstState := dst.StateDict()
	for key, raw := range src.StateDict() {
		assert.Equal(t, raw.AsFloat32(), dstState[key].AsFloat32(), key)
	}
}

func TestMobileNetV1_FailedLoadLeavesModelUnchanged(t *testing.T) {
	src := smallModel(t, 1)
	dst := smallModel(t, 2)

	before := make(map[string][]float32)
	for key, raw := range dst.StateDict() {
		before[key] = append([]float32(nil), raw.AsFloat32()...)
	}

	tests := []struct {
		name   string
		modify func(map[string]*tensor.RawTensor)
	}{
		{"missing stage3 key", func(s map[string]*tensor.RawTensor) { delete(s, "stage3.1.4.running_var") }},
		{"wrong fc shape", func(s map[string]*tensor.RawTensor) { s["fc.bias"] = s["stage1.0.1.bias"] }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := src.StateDict()
			tt.modify(state)

			require.Error(t, dst.LoadStateDict(state))
			for key, raw := range dst.StateDict() {
				require.Equal(t, before[key], raw.AsFloat32(), key)
			}
		})
	}
}

func TestMobileNetV1_LoadStateDictErrors(t *testing.T) {
	t.Run("unexpected key", func(t *testing.T) {
		m := smallModel(t, 1)
		state := m.StateDict()
		state["stage4.0.weight"] = state["fc.bias"]

		err := m.LoadStateDict(state)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "stage4.0.weight")
	})

	t.Run("missing key", func(t *testing.T) {
		m := smallModel(t, 1)
		state := m.StateDict()
		delete(state, "stage2.3.1.running_var")

		err := m.LoadStateDict(state)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "stage2")
		assert.Contains(t, err.Error(), "running_var")
	})

	t.Run("class count mismatch", func(t *testing.T) {
		m := smallModel(t, 1)
		other := mobilenet.New(cpu.New())

		err := m.LoadStateDict(other.StateDict())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "fc")
	})
}

func TestMobileNetV1_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mobilenet.safetensors")

	src := smallModel(t, 1)
	src.Eval()
	require.NoError(t, src.Save(path))

	dst := smallModel(t, 7)
	dst.Eval()
	require.NoError(t, dst.Load(path))

	x := randomImages(src.Backend(), 11, 2, 3, 32, 32)
	assert.Equal(t, src.Forward(x).Data(), dst.Forward(x).Data())
}

func TestMobileNetV1_LoadMissingFile(t *testing.T) {
	m := smallModel(t, 1)
	err := m.Load(filepath.Join(t.TempDir(), "absent.safetensors"))
	require.Error(t, err)
}

func TestMobileNetV1_Summary(t *testing.T) {
	m := mobilenet.New(cpu.New())

	rows, err := m.Summary(mobilenet.DefaultImageSize, mobilenet.DefaultImageSize)
	require.NoError(t, err)
	require.Len(t, rows, 16)

	byName := make(map[string]mobilenet.LayerSummary)
	total := 0
	for _, r := range rows {
		byName[r.Name] = r
		total += r.Params
	}

	assert.Equal(t, tensor.Shape{32, 80, 80}, byName["stage1.0"].OutputShape)
	assert.Equal(t, tensor.Shape{256, 20, 20}, byName["stage1.5"].OutputShape)
	assert.Equal(t, tensor.Shape{512, 10, 10}, byName["stage2.5"].OutputShape)
	assert.Equal(t, tensor.Shape{1024, 5, 5}, byName["stage3.1"].OutputShape)
	assert.Equal(t, tensor.Shape{1024}, byName["avg"].OutputShape)
	assert.Equal(t, tensor.Shape{1000}, byName["fc"].OutputShape)
	assert.Equal(t, "conv_bn", byName["stage1.0"].Type)
	assert.Equal(t, m.NumParameters(), total)

	_, err = m.Summary(0, 160)
	assert.Error(t, err)
}

func TestMobileNetV1_SummaryMatchesForward(t *testing.T) {
	m := smallModel(t, 1)
	m.Eval()

	rows, err := m.Summary(45, 45)
	require.NoError(t, err)

	_, _, s3 := m.Features(randomImages(m.Backend(), 4, 1, 3, 45, 45))
	last := rows[len(rows)-3]
	assert.Equal(t, "stage3.1", last.Name)
	assert.Equal(t, s3.Shape()[1:], last.OutputShape)
}
