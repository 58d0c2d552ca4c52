// context.go - Compute-Kontext des CPU-Backends
// Erstellt Tensoren und fuehrt Graph-Operationen aus (eager: no-ops).
package cpu

import (
	"fmt"

	"github.com/cryptozealot/dalle-mini/ml"
)

type context struct {
	b *backend
}

func (c *context) Empty(dtype ml.DType, shape ...int) ml.Tensor {
	return newTensor(c.b, dtype, shape)
}

func (c *context) Zeros(dtype ml.DType, shape ...int) ml.Tensor {
	return newTensor(c.b, dtype, shape)
}

func (c *context) FromFloats(s []float32, shape ...int) ml.Tensor {
	t := newTensor(c.b, ml.DTypeF32, shape)
	if len(s) != len(t.data) {
		panic(fmt.Errorf("cpu: FromFloats length %d does not match shape %v", len(s), shape))
	}
	for i, v := range s {
		t.data[i] = float64(v)
	}
	return t
}

func (c *context) FromInts(s []int32, shape ...int) ml.Tensor {
	t := newTensor(c.b, ml.DTypeI32, shape)
	if len(s) != len(t.data) {
		panic(fmt.Errorf("cpu: FromInts length %d does not match shape %v", len(s), shape))
	}
	for i, v := range s {
		t.data[i] = float64(v)
	}
	return t
}

func (c *context) Arange(start, stop, step float32, dtype ml.DType) ml.Tensor {
	if step == 0 {
		panic("cpu: Arange step must be non-zero")
	}
	var vals []float64
	for v := start; v < stop; v += step {
		vals = append(vals, float64(v))
	}
	t := newTensor(c.b, dtype, []int{len(vals)})
	copy(t.data, vals)
	return t
}

// Forward and Compute exist for graph-building backends; the CPU
// backend has already materialized every operation.
func (c *context) Forward(...ml.Tensor) ml.Context { return c }

func (c *context) Compute(...ml.Tensor) {}

func (c *context) Close() {}
