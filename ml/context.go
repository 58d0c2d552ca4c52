// context.go - Context und Tensor Interfaces fuer ML-Operationen
// Dieses Modul definiert die Schnittstellen fuer Tensor-Operationen und
// Compute-Kontexte. Die Operationsmenge ist auf das reduziert, was die
// BART-Bloecke tatsaechlich verwenden.
package ml

// Context represents an execution context for tensor operations.
type Context interface {
	Empty(dtype DType, shape ...int) Tensor
	Zeros(dtype DType, shape ...int) Tensor
	FromFloats(s []float32, shape ...int) Tensor
	FromInts(s []int32, shape ...int) Tensor

	// Arange creates a 1D tensor with values in [start, stop) increased by step.
	Arange(start, stop, step float32, dtype DType) Tensor

	Forward(...Tensor) Context
	Compute(...Tensor)

	Close()
}

// Tensor represents a multi-dimensional array with various operations.
// Shapes are row-major with Dim(0) as the outermost dimension. Eager
// backends materialize every operation immediately; Forward/Compute are
// then no-ops kept for graph-building backends.
type Tensor interface {
	Dim(n int) int
	Shape() []int
	DType() DType
	Cast(ctx Context, dtype DType) Tensor

	Floats() []float32
	Ints() []int32
	FromFloats([]float32)

	Add(ctx Context, t2 Tensor) Tensor
	Mul(ctx Context, t2 Tensor) Tensor

	// Mulmat performs batched matrix multiplication over the two
	// innermost dimensions: [..., m, k] x [..., k, n] -> [..., m, n].
	// Leading dimensions broadcast when equal or 1.
	Mulmat(ctx Context, t2 Tensor) Tensor

	Softmax(ctx Context) Tensor
	LayerNorm(ctx Context, weight, bias Tensor, eps float32) Tensor
	Scale(ctx Context, s float64) Tensor

	Tanh(ctx Context) Tensor
	GELU(ctx Context) Tensor
	RELU(ctx Context) Tensor
	SILU(ctx Context) Tensor

	Reshape(ctx Context, shape ...int) Tensor
	Permute(ctx Context, order ...int) Tensor

	// Rows gathers rows of a [rows, ...] tensor by integer index,
	// preserving the index tensor's shape in the leading dimensions.
	Rows(ctx Context, ids Tensor) Tensor

	// SetRows writes src rows into the receiver at the given row
	// indices. The receiver is interpreted as [rows, cols...].
	SetRows(ctx Context, src Tensor, idxs Tensor) Tensor

	Slice(ctx Context, dim, low, high, step int) Tensor
	Duplicate(ctx Context) Tensor
}
