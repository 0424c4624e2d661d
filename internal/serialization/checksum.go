package serialization

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ChecksumMetadataKey is the metadata entry holding the hex SHA-256
// digest of the data section.
const ChecksumMetadataKey = "sha256"

// ComputeChecksum returns the hex SHA-256 digest of the concatenated chunks.
func ComputeChecksum(chunks ...[]byte) string {
	h := sha256.New()
	for _, c := range chunks {
		h.Write(c)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// ValidateChecksum compares the digest of data against the stored hex digest.
// Returns ErrChecksumMismatch if they don't match.
func ValidateChecksum(data []byte, stored string) error {
	if computed := ComputeChecksum(data); computed != stored {
		return fmt.Errorf("%w: stored %s, computed %s", ErrChecksumMismatch, stored, computed)
	}
	return nil
}
