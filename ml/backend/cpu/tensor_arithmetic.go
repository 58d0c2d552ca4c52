// tensor_arithmetic.go - Elementweise Operationen mit Broadcasting
// Enthaelt: Add, Mul, Scale und die Aktivierungsfunktionen.
package cpu

import (
	"fmt"
	"math"

	"github.com/cryptozealot/dalle-mini/ml"
)

// broadcastShape aligns two shapes right to left. Dimensions must be
// equal or 1.
func broadcastShape(a, b []int) []int {
	n := max(len(a), len(b))
	out := make([]int, n)
	for i := 0; i < n; i++ {
		da, db := 1, 1
		if i >= n-len(a) {
			da = a[i-(n-len(a))]
		}
		if i >= n-len(b) {
			db = b[i-(n-len(b))]
		}
		switch {
		case da == db:
			out[i] = da
		case da == 1:
			out[i] = db
		case db == 1:
			out[i] = da
		default:
			panic(fmt.Errorf("cpu: cannot broadcast shapes %v and %v", a, b))
		}
	}
	return out
}

// broadcastIndex maps a linear index in the result shape to the linear
// index of an operand with the given shape.
func broadcastIndex(idx int, result, shape []int) int {
	off := len(result) - len(shape)
	out := 0
	stride := 1
	// walk result dims innermost-first, accumulating the operand index
	rem := idx
	coords := make([]int, len(result))
	for i := len(result) - 1; i >= 0; i-- {
		coords[i] = rem % result[i]
		rem /= result[i]
	}
	for i := len(shape) - 1; i >= 0; i-- {
		c := coords[i+off]
		if shape[i] == 1 {
			c = 0
		}
		out += c * stride
		stride *= shape[i]
	}
	return out
}

func (t *tensor) binary(t2 ml.Tensor, f func(a, b float64) float64) ml.Tensor {
	o := mustTensor(t2)
	shape := broadcastShape(t.shape, o.shape)
	out := newTensor(t.b, t.dtype, shape)

	if numElems(t.shape) == len(out.data) && numElems(o.shape) == len(out.data) {
		// fast path, same element count on both sides
		for i := range out.data {
			out.data[i] = f(t.data[i], o.data[i])
		}
		return out
	}

	for i := range out.data {
		a := t.data[broadcastIndex(i, shape, t.shape)]
		b := o.data[broadcastIndex(i, shape, o.shape)]
		out.data[i] = f(a, b)
	}
	return out
}

func (t *tensor) Add(ctx ml.Context, t2 ml.Tensor) ml.Tensor {
	return t.binary(t2, func(a, b float64) float64 { return a + b })
}

func (t *tensor) Mul(ctx ml.Context, t2 ml.Tensor) ml.Tensor {
	return t.binary(t2, func(a, b float64) float64 { return a * b })
}

func (t *tensor) Scale(ctx ml.Context, s float64) ml.Tensor {
	out := newTensor(t.b, t.dtype, t.shape)
	for i, v := range t.data {
		out.data[i] = v * s
	}
	return out
}

func (t *tensor) unary(f func(v float64) float64) ml.Tensor {
	out := newTensor(t.b, t.dtype, t.shape)
	for i, v := range t.data {
		out.data[i] = f(v)
	}
	return out
}

func (t *tensor) Tanh(ctx ml.Context) ml.Tensor {
	return t.unary(math.Tanh)
}

// GELU uses the tanh approximation, matching the reference activation
// tables of the checkpoint family.
func (t *tensor) GELU(ctx ml.Context) ml.Tensor {
	const c = 0.7978845608028654 // sqrt(2/pi)
	return t.unary(func(v float64) float64 {
		return 0.5 * v * (1 + math.Tanh(c*(v+0.044715*v*v*v)))
	})
}

func (t *tensor) RELU(ctx ml.Context) ml.Tensor {
	return t.unary(func(v float64) float64 { return math.Max(v, 0) })
}

func (t *tensor) SILU(ctx ml.Context) ml.Tensor {
	return t.unary(func(v float64) float64 { return v / (1 + math.Exp(-v)) })
}
