package mobilenet

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/born-ml/mobilenet/internal/nn"
	"github.com/born-ml/mobilenet/internal/serialization"
	"github.com/born-ml/mobilenet/internal/tensor"
)

// Architecture tag stored in checkpoint metadata.
const Architecture = "mobilenet_v1"

// Checkpoint metadata keys.
const (
	MetadataArchitecture = "architecture"
	MetadataNumClasses   = "num_classes"
)

// numBatchesTrackedSuffix marks the integer BatchNorm counter PyTorch
// stores next to the running statistics.
const numBatchesTrackedSuffix = ".num_batches_tracked"

// namedModule pairs a top-level submodule with its state dict prefix.
type namedModule[B tensor.Backend] struct {
	name   string
	module nn.Module[B]
}

func (m *MobileNetV1[B]) submodules() []namedModule[B] {
	return []namedModule[B]{
		{"stage1", m.stage1},
		{"stage2", m.stage2},
		{"stage3", m.stage3},
		{"fc", m.fc},
	}
}

// StateDict returns every parameter and BatchNorm buffer keyed by its
// PyTorch name, e.g. "stage1.0.0.weight", "stage2.3.4.running_var" or
// "fc.bias". The tensors alias the model's memory.
func (m *MobileNetV1[B]) StateDict() map[string]*tensor.RawTensor {
	stateDict := make(map[string]*tensor.RawTensor)
	for _, sub := range m.submodules() {
		for name, raw := range sub.module.StateDict() {
			stateDict[sub.name+"."+name] = raw
		}
	}
	return stateDict
}

// LoadStateDict copies a state dictionary into the model.
//
// Every tensor of the model must be present with a matching shape and
// dtype. Keys ending in ".num_batches_tracked" are ignored; any other
// unknown key is an error. The whole dictionary is checked before the
// first copy, so a rejected dictionary leaves the model unchanged.
func (m *MobileNetV1[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	if err := m.checkStateDict(stateDict); err != nil {
		return err
	}

	for _, sub := range m.submodules() {
		prefix := sub.name + "."
		subDict := make(map[string]*tensor.RawTensor)
		for key, raw := range stateDict {
			if name, ok := strings.CutPrefix(key, prefix); ok {
				subDict[name] = raw
			}
		}
		if err := sub.module.LoadStateDict(subDict); err != nil {
			return fmt.Errorf("failed to load %s: %w", sub.name, err)
		}
	}

	return nil
}

// checkStateDict reports the first key mismatch between stateDict and
// the model's own tensors.
func (m *MobileNetV1[B]) checkStateDict(stateDict map[string]*tensor.RawTensor) error {
	expected := m.StateDict()

	var unexpected []string
	for key := range stateDict {
		if _, ok := expected[key]; !ok && !strings.HasSuffix(key, numBatchesTrackedSuffix) {
			unexpected = append(unexpected, key)
		}
	}
	if len(unexpected) > 0 {
		slices.Sort(unexpected)
		return fmt.Errorf("unexpected keys in state dict: %s", strings.Join(unexpected, ", "))
	}

	keys := slices.Sorted(maps.Keys(expected))
	for _, key := range keys {
		want := expected[key]
		got, ok := stateDict[key]
		switch {
		case !ok:
			return fmt.Errorf("missing %s in state dict", key)
		case !got.Shape().Equal(want.Shape()):
			return fmt.Errorf("%s shape mismatch: expected %v, got %v", key, want.Shape(), got.Shape())
		case got.DType() != want.DType():
			return fmt.Errorf("%s dtype mismatch: expected %v, got %v", key, want.DType(), got.DType())
		}
	}

	return nil
}

// Save writes the state dict to a SafeTensors file.
func (m *MobileNetV1[B]) Save(path string) error {
	metadata := map[string]string{
		MetadataArchitecture: Architecture,
		MetadataNumClasses:   strconv.Itoa(m.config.NumClasses),
	}
	if err := serialization.WriteFile(path, m.StateDict(), metadata); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}

// Load reads a SafeTensors file written by Save or exported from PyTorch
// and copies it into the model.
func (m *MobileNetV1[B]) Load(path string) error {
	stateDict, metadata, err := serialization.ReadFile(path)
	if err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}

	if arch, ok := metadata[MetadataArchitecture]; ok && arch != Architecture {
		return fmt.Errorf("load %s: architecture %q, want %q", path, arch, Architecture)
	}

	if err := m.LoadStateDict(stateDict); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}
