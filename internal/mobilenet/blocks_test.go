package mobilenet_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/mobilenet/internal/backend/cpu"
	"github.com/born-ml/mobilenet/internal/mobilenet"
	"github.com/born-ml/mobilenet/internal/nn"
	"github.com/born-ml/mobilenet/internal/tensor"
)

func TestConvDW_Shapes(t *testing.T) {
	tests := []struct {
		name          string
		in, out       int
		stride        int
		height, width int
		want          tensor.Shape
	}{
		{"identity channels stride 1", 16, 16, 1, 12, 12, tensor.Shape{2, 16, 12, 12}},
		{"widen stride 1", 8, 24, 1, 9, 7, tensor.Shape{2, 24, 9, 7}},
		{"stride 2 even", 8, 16, 2, 12, 12, tensor.Shape{2, 16, 6, 6}},
		{"stride 2 odd", 8, 16, 2, 11, 11, tensor.Shape{2, 16, 6, 6}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := cpu.New()
			block := mobilenet.NewConvDW(tt.in, tt.out, tt.stride, backend)

			x := randomImages(backend, 3, 2, tt.in, tt.height, tt.width)
			y := block.Forward(x)
			assert.Equal(t, tt.want, y.Shape())

			h, w := block.OutputSize(tt.height, tt.width)
			assert.Equal(t, tensor.Shape{tt.want[2], tt.want[3]}, tensor.Shape{h, w})
		})
	}
}

func TestConvDW_Layout(t *testing.T) {
	block := mobilenet.NewConvDW(32, 64, 2, cpu.New())

	assert.Equal(t, "conv_dw", block.Name())
	assert.Equal(t, 32, block.InChannels())
	assert.Equal(t, 64, block.OutChannels())
	assert.Equal(t, 2, block.Stride())
	require.Equal(t, 6, block.Len())

	kinds := make([]nn.Kind, block.Len())
	for i := range kinds {
		kinds[i] = block.Module(i).Kind()
	}
	assert.Equal(t, []nn.Kind{
		nn.KindConv2D, nn.KindBatchNorm2D, nn.KindReLU6,
		nn.KindConv2D, nn.KindBatchNorm2D, nn.KindReLU6,
	}, kinds)

	convs := block.Convs()
	require.Len(t, convs, 2)
	assert.Equal(t, 32, convs[0].Groups())
	assert.Equal(t, [2]int{3, 3}, convs[0].KernelSize())
	assert.Equal(t, 1, convs[1].Groups())
	assert.Equal(t, [2]int{1, 1}, convs[1].KernelSize())
	assert.Nil(t, convs[0].Bias())

	state := block.StateDict()
	assert.Len(t, state, 10)
	assert.Equal(t, tensor.Shape{32, 1, 3, 3}, state["0.weight"].Shape())
	assert.Equal(t, tensor.Shape{32}, state["1.running_mean"].Shape())
	assert.Equal(t, tensor.Shape{64, 32, 1, 1}, state["3.weight"].Shape())
	assert.Equal(t, tensor.Shape{64}, state["4.running_var"].Shape())
}

func TestConvBN_Layout(t *testing.T) {
	backend := cpu.New()
	block := mobilenet.NewConvBN(3, 32, 2, backend)

	assert.Equal(t, "conv_bn", block.Name())
	assert.Equal(t, 3, block.InChannels())
	assert.Equal(t, 32, block.OutChannels())
	require.Equal(t, 3, block.Len())
	assert.Len(t, block.Convs(), 1)
	assert.Len(t, block.Norms(), 1)

	y := block.Forward(randomImages(backend, 8, 2, 3, 16, 16))
	assert.Equal(t, tensor.Shape{2, 32, 8, 8}, y.Shape())

	for _, v := range y.Data() {
		require.GreaterOrEqual(t, v, float32(0))
		require.LessOrEqual(t, v, float32(6))
	}

	state := block.StateDict()
	assert.Equal(t, tensor.Shape{32, 3, 3, 3}, state["0.weight"].Shape())
	assert.Contains(t, state, "1.bias")
}

func TestConvBN_StrideOne(t *testing.T) {
	backend := cpu.New()
	block := mobilenet.NewConvBN(4, 8, 1, backend)

	y := block.Forward(randomImages(backend, 1, 2, 4, 10, 10))
	assert.Equal(t, tensor.Shape{2, 8, 10, 10}, y.Shape())
}

func TestWriteSummary(t *testing.T) {
	m := mobilenet.New(cpu.New())

	var buf bytes.Buffer
	require.NoError(t, m.WriteSummary(&buf, 224, 224))

	out := buf.String()
	assert.Contains(t, out, "LAYER")
	assert.Contains(t, out, "stage3.1")
	assert.Contains(t, out, "[1024 7 7]")
	assert.Contains(t, out, "4231976")

	assert.Error(t, m.WriteSummary(&buf, -1, 10))
}
