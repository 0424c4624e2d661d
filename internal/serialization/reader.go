package serialization

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"

	"github.com/born-ml/mobilenet/internal/tensor"
)

// ReadFile loads every tensor of a SafeTensors file into CPU memory.
//
// Returns the state dictionary and the header metadata (nil when the
// file has none).
func ReadFile(path string) (map[string]*tensor.RawTensor, map[string]string, error) {
	//nolint:gosec // G304: File path comes from user input, which is expected for model loading
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read file: %w", err)
	}

	stateDict, metadata, err := Decode(data)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return stateDict, metadata, nil
}

// Decode parses a complete SafeTensors payload.
//
// The header is validated before any tensor is copied, and the data
// section digest is verified when the metadata carries one.
// Integer and boolean tensors are validated and then left out of the
// returned state dict.
func Decode(data []byte) (map[string]*tensor.RawTensor, map[string]string, error) {
	if len(data) < 8 {
		return nil, nil, &ValidationError{
			Err:     ErrOutOfBounds,
			Details: fmt.Sprintf("file is %d bytes, too short for header size", len(data)),
		}
	}

	headerSize := binary.LittleEndian.Uint64(data[:8])
	if headerSize > MaxHeaderSize {
		return nil, nil, &ValidationError{
			Err:     ErrHeaderTooLarge,
			Details: fmt.Sprintf("%d bytes, max %d", headerSize, MaxHeaderSize),
		}
	}
	if headerSize > uint64(len(data)-8) {
		return nil, nil, &ValidationError{
			Err:     ErrOutOfBounds,
			Details: fmt.Sprintf("header size %d exceeds file size %d", headerSize, len(data)),
		}
	}

	var header Header
	if err := json.Unmarshal(data[8:8+headerSize], &header); err != nil {
		return nil, nil, fmt.Errorf("failed to parse header JSON: %w", err)
	}

	body := data[8+headerSize:]
	if err := validateHeader(&header, int64(len(body))); err != nil {
		return nil, nil, err
	}

	if sum, ok := header.Metadata[ChecksumMetadataKey]; ok {
		if err := ValidateChecksum(body, sum); err != nil {
			return nil, nil, err
		}
	}

	stateDict := make(map[string]*tensor.RawTensor, len(header.Tensors))
	for name, info := range header.Tensors {
		dtype, err := safeTensorsToDType(info.DType)
		if err != nil {
			continue // integer counters and masks
		}

		raw, err := tensor.NewRaw(tensor.Shape(info.Shape), dtype, tensor.CPU)
		if err != nil {
			return nil, nil, fmt.Errorf("tensor %s: %w", name, err)
		}
		copy(raw.Data(), body[info.DataOffsets[0]:info.DataOffsets[1]])
		stateDict[name] = raw
	}

	return stateDict, header.Metadata, nil
}
