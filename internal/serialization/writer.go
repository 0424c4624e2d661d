package serialization

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"

	"github.com/born-ml/mobilenet/internal/tensor"
)

// headerAlignment pads the JSON header so the data section starts on an
// 8-byte boundary, as the reference safetensors writer does.
const headerAlignment = 8

// WriteFile writes a state dictionary to a SafeTensors file.
//
// Tensors are written in alphabetical order by name. metadata may be nil;
// the SHA-256 digest of the data section is always added to it.
func WriteFile(path string, stateDict map[string]*tensor.RawTensor, metadata map[string]string) error {
	//nolint:gosec // G304: File path comes from user input, which is expected for model saving
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	if err := Write(file, stateDict, metadata); err != nil {
		_ = file.Close() // Best effort close on error
		return err
	}

	return file.Close()
}

// Write encodes a state dictionary in SafeTensors format to w.
func Write(w io.Writer, stateDict map[string]*tensor.RawTensor, metadata map[string]string) error {
	names := slices.Sorted(maps.Keys(stateDict))

	header := Header{
		Metadata: make(map[string]string, len(metadata)+1),
		Tensors:  make(map[string]TensorInfo, len(names)),
	}
	maps.Copy(header.Metadata, metadata)

	chunks := make([][]byte, 0, len(names))
	var offset int64
	for _, name := range names {
		if err := ValidateTensorName(name); err != nil {
			return err
		}

		raw := stateDict[name]
		dtype, err := dtypeToSafeTensors(raw.DType())
		if err != nil {
			return fmt.Errorf("tensor %s: %w", name, err)
		}

		size := int64(raw.ByteSize())
		header.Tensors[name] = TensorInfo{
			DType:       dtype,
			Shape:       slices.Clone([]int(raw.Shape())),
			DataOffsets: [2]int64{offset, offset + size},
		}
		chunks = append(chunks, raw.Data())
		offset += size
	}

	header.Metadata[ChecksumMetadataKey] = ComputeChecksum(chunks...)

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}
	if pad := len(headerJSON) % headerAlignment; pad != 0 {
		headerJSON = append(headerJSON, bytes.Repeat([]byte{' '}, headerAlignment-pad)...)
	}

	// Header size (8 bytes, little-endian uint64)
	if err := binary.Write(w, binary.LittleEndian, uint64(len(headerJSON))); err != nil {
		return fmt.Errorf("failed to write header size: %w", err)
	}

	if _, err := w.Write(headerJSON); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for i, chunk := range chunks {
		if _, err := w.Write(chunk); err != nil {
			return fmt.Errorf("failed to write tensor %s: %w", names[i], err)
		}
	}

	return nil
}
