package mobilenet

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/born-ml/mobilenet/internal/nn"
	"github.com/born-ml/mobilenet/internal/tensor"
)

// LayerSummary describes one row of a model summary.
type LayerSummary struct {
	Name        string       // Module path, e.g. "stage2.0" or "fc".
	Type        string       // "conv_bn", "conv_dw", "avg" or "fc".
	OutputShape tensor.Shape // Per-sample output shape (no batch dimension).
	Params      int          // Trainable scalars in the layer.
}

// Summary computes per-block output shapes for an h x w input without
// running the network.
func (m *MobileNetV1[B]) Summary(h, w int) ([]LayerSummary, error) {
	if h < 1 || w < 1 {
		return nil, fmt.Errorf("invalid input size %dx%d", h, w)
	}

	var rows []LayerSummary
	for si, stage := range m.Stages() {
		for bi, block := range stage.Blocks() {
			h, w = block.OutputSize(h, w)
			if h < 1 || w < 1 {
				return nil, fmt.Errorf("input too small: stage%d.%d output would be %dx%d", si+1, bi, h, w)
			}
			rows = append(rows, LayerSummary{
				Name:        fmt.Sprintf("stage%d.%d", si+1, bi),
				Type:        block.Name(),
				OutputShape: tensor.Shape{block.OutChannels(), h, w},
				Params:      nn.CountParameters[B](block),
			})
		}
	}

	rows = append(rows,
		LayerSummary{Name: "avg", Type: "avg", OutputShape: tensor.Shape{Stage3Channels}},
		LayerSummary{
			Name:        "fc",
			Type:        "fc",
			OutputShape: tensor.Shape{m.config.NumClasses},
			Params:      nn.CountParameters[B](m.fc),
		},
	)

	return rows, nil
}

// WriteSummary prints the Summary table for an h x w input.
func (m *MobileNetV1[B]) WriteSummary(out io.Writer, h, w int) error {
	rows, err := m.Summary(h, w)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "LAYER\tTYPE\tOUTPUT\tPARAMS")
	fmt.Fprintf(tw, "input\t\t%v\t\n", tensor.Shape{InputChannels, h, w})
	total := 0
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%v\t%d\n", r.Name, r.Type, r.OutputShape, r.Params)
		total += r.Params
	}
	fmt.Fprintf(tw, "total\t\t\t%d\n", total)
	return tw.Flush()
}
