package tensor

// Add performs element-wise addition with broadcasting.
//
// Example:
//
//	logits := x.MatMul(w)            // [N, 1000]
//	bias := b.Reshape(1, 1000)       // [1, 1000]
//	out := logits.Add(bias)          // [N, 1000] (broadcasted)
func (t *Tensor[T, B]) Add(other *Tensor[T, B]) *Tensor[T, B] {
	result := t.backend.Add(t.raw, other.raw)
	return New[T, B](result, t.backend)
}

// MatMul performs 2D matrix multiplication: (M, K) @ (K, N) → (M, N).
func (t *Tensor[T, B]) MatMul(other *Tensor[T, B]) *Tensor[T, B] {
	result := t.backend.MatMul(t.raw, other.raw)
	return New[T, B](result, t.backend)
}

// Reshape returns a tensor with the same data but different shape.
// The new shape must have the same number of elements; a single
// dimension may be -1 and is then inferred.
//
// Example:
//
//	pooled := pool.Forward(x)       // [N, 1024, 1, 1]
//	flat := pooled.Reshape(-1, 1024) // [N, 1024]
func (t *Tensor[T, B]) Reshape(newShape ...int) *Tensor[T, B] {
	shape, err := Shape(newShape).Resolve(t.NumElements())
	if err != nil {
		panic(NewShapeError("reshape", "%v", err))
	}
	result := t.backend.Reshape(t.raw, shape)
	return New[T, B](result, t.backend)
}

// Transpose transposes the tensor by permuting its dimensions.
//
// If axes is empty, reverses all dimensions (for 2D, this is standard transpose).
// Otherwise, axes specifies the permutation.
func (t *Tensor[T, B]) Transpose(axes ...int) *Tensor[T, B] {
	result := t.backend.Transpose(t.raw, axes...)
	return New[T, B](result, t.backend)
}
