// tensor_shape.go - Form-Operationen
// Enthaelt: Reshape, Permute, Slice, Duplicate.
package cpu

import (
	"fmt"

	"github.com/cryptozealot/dalle-mini/ml"
)

// Reshape returns a view sharing the underlying data.
func (t *tensor) Reshape(ctx ml.Context, shape ...int) ml.Tensor {
	if numElems(shape) != len(t.data) {
		panic(fmt.Errorf("cpu: cannot reshape %v to %v", t.shape, shape))
	}
	return &tensor{
		b:     t.b,
		dtype: t.dtype,
		shape: append([]int(nil), shape...),
		data:  t.data,
	}
}

// Permute reorders dimensions and materializes the result.
func (t *tensor) Permute(ctx ml.Context, order ...int) ml.Tensor {
	if len(order) != len(t.shape) {
		panic(fmt.Errorf("cpu: Permute order %v does not match shape %v", order, t.shape))
	}

	outShape := make([]int, len(order))
	for i, o := range order {
		outShape[i] = t.shape[o]
	}
	out := newTensor(t.b, t.dtype, outShape)

	srcStrides := t.strides()
	coords := make([]int, len(outShape))
	for i := range out.data {
		src := 0
		for d := range coords {
			src += coords[d] * srcStrides[order[d]]
		}
		out.data[i] = t.data[src]

		for d := len(coords) - 1; d >= 0; d-- {
			coords[d]++
			if coords[d] < outShape[d] {
				break
			}
			coords[d] = 0
		}
	}
	return out
}

func (t *tensor) Slice(ctx ml.Context, dim, low, high, step int) ml.Tensor {
	if dim < 0 || dim >= len(t.shape) {
		panic(fmt.Errorf("cpu: Slice dim %d out of range for shape %v", dim, t.shape))
	}
	if step <= 0 {
		panic("cpu: Slice step must be positive")
	}
	if low < 0 || high > t.shape[dim] || low > high {
		panic(fmt.Errorf("cpu: Slice range [%d, %d) invalid for dim of size %d", low, high, t.shape[dim]))
	}

	n := (high - low + step - 1) / step
	outShape := append([]int(nil), t.shape...)
	outShape[dim] = n
	out := newTensor(t.b, t.dtype, outShape)

	outer := numElems(t.shape[:dim])
	inner := numElems(t.shape[dim+1:])

	di := 0
	for i := 0; i < outer; i++ {
		for j := low; j < high; j += step {
			src := (i*t.shape[dim] + j) * inner
			copy(out.data[di:di+inner], t.data[src:src+inner])
			di += inner
		}
	}
	return out
}

func (t *tensor) Duplicate(ctx ml.Context) ml.Tensor {
	out := newTensor(t.b, t.dtype, t.shape)
	copy(out.data, t.data)
	return out
}
