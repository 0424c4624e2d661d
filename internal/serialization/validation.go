package serialization

import (
	"fmt"
	"sort"
	"strings"

	"github.com/born-ml/mobilenet/internal/tensor"
)

// Validation limits for resource protection.
const (
	MaxHeaderSize    = 100 * 1024 * 1024 // 100MB - maximum header size
	MaxTensorCount   = 100_000           // Maximum number of tensors in a file
	MaxTensorNameLen = 4096              // Maximum tensor name length
)

// ValidateTensorName rejects empty, oversized and path-like tensor names.
func ValidateTensorName(name string) error {
	if name == "" {
		return &ValidationError{Err: ErrInvalidTensorName, Details: "empty name"}
	}

	if len(name) > MaxTensorNameLen {
		return &ValidationError{
			Err:     ErrInvalidTensorName,
			Tensor:  name,
			Details: fmt.Sprintf("length %d > max %d", len(name), MaxTensorNameLen),
		}
	}

	if strings.Contains(name, "..") {
		return &ValidationError{Err: ErrInvalidTensorName, Tensor: name, Details: "contains '..'"}
	}

	if strings.ContainsAny(name, "/\\\x00") {
		return &ValidationError{Err: ErrInvalidTensorName, Tensor: name, Details: "contains path separator or null byte"}
	}

	return nil
}

// validateHeader checks every tensor entry against the data section size:
// known dtype, positive shape, byte range consistent with shape, inside
// the data section, and not overlapping any other tensor.
func validateHeader(h *Header, dataSize int64) error {
	if len(h.Tensors) > MaxTensorCount {
		return &ValidationError{
			Err:     ErrTooManyTensors,
			Details: fmt.Sprintf("got %d, max %d", len(h.Tensors), MaxTensorCount),
		}
	}

	names := make([]string, 0, len(h.Tensors))
	for name, info := range h.Tensors {
		if err := ValidateTensorName(name); err != nil {
			return err
		}

		size, err := elementSize(info.DType)
		if err != nil {
			return &ValidationError{Err: ErrUnsupportedDType, Tensor: name, Details: info.DType}
		}

		shape := tensor.Shape(info.Shape)
		if err := shape.Validate(); err != nil {
			return &ValidationError{Err: ErrSizeMismatch, Tensor: name, Details: err.Error()}
		}

		start, end := info.DataOffsets[0], info.DataOffsets[1]
		if start < 0 || end < start {
			return &ValidationError{
				Err:     ErrOutOfBounds,
				Tensor:  name,
				Details: fmt.Sprintf("invalid range [%d, %d)", start, end),
			}
		}
		if end > dataSize {
			return &ValidationError{
				Err:     ErrOutOfBounds,
				Tensor:  name,
				Details: fmt.Sprintf("range [%d, %d) > data_size %d", start, end, dataSize),
			}
		}

		if want := int64(shape.NumElements() * size); end-start != want {
			return &ValidationError{
				Err:     ErrSizeMismatch,
				Tensor:  name,
				Details: fmt.Sprintf("%d bytes for %s%v, want %d", end-start, info.DType, info.Shape, want),
			}
		}

		names = append(names, name)
	}

	// Sort by start offset for overlap detection.
	sort.Slice(names, func(i, j int) bool {
		return h.Tensors[names[i]].DataOffsets[0] < h.Tensors[names[j]].DataOffsets[0]
	})
	for i := 0; i+1 < len(names); i++ {
		cur, next := h.Tensors[names[i]].DataOffsets, h.Tensors[names[i+1]].DataOffsets
		if cur[1] > next[0] {
			return &ValidationError{
				Err:     ErrOffsetOverlap,
				Tensor:  names[i],
				Tensor2: names[i+1],
				Details: fmt.Sprintf("regions [%d-%d] and [%d-%d] overlap", cur[0], cur[1], next[0], next[1]),
			}
		}
	}

	return nil
}
