package tensor

import "fmt"

// ShapeError reports a tensor whose rank, dimensions or channel count do
// not match what an operation expects.
//
// Kernels and layers raise it with panic, the same way they reject any
// other malformed input; callers that need an error value can recover it
// and use errors.As.
type ShapeError struct {
	Op     string // Operation that rejected the input (e.g. "conv2d")
	Detail string // Human-readable description of the mismatch
}

// NewShapeError builds a ShapeError with a formatted detail message.
func NewShapeError(op, format string, args ...any) *ShapeError {
	return &ShapeError{
		Op:     op,
		Detail: fmt.Sprintf(format, args...),
	}
}

// Error implements the error interface.
func (e *ShapeError) Error() string {
	return e.Op + ": " + e.Detail
}
