// tensor.go - Tensor-Grundstruktur des CPU-Backends
// Row-major Speicherlayout, Dim(0) ist die aeusserste Dimension.
// Interne Rechnung in float64, Interface-Austausch in float32.
package cpu

import (
	"fmt"

	"github.com/cryptozealot/dalle-mini/ml"
)

type tensor struct {
	b     *backend
	dtype ml.DType
	shape []int
	data  []float64
}

func newTensor(b *backend, dtype ml.DType, shape []int) *tensor {
	n := 1
	for _, d := range shape {
		if d < 0 {
			panic(fmt.Errorf("cpu: negative dimension in shape %v", shape))
		}
		n *= d
	}
	return &tensor{
		b:     b,
		dtype: dtype,
		shape: append([]int(nil), shape...),
		data:  make([]float64, n),
	}
}

func (t *tensor) Dim(n int) int { return t.shape[n] }

func (t *tensor) Shape() []int { return append([]int(nil), t.shape...) }

func (t *tensor) DType() ml.DType { return t.dtype }

func (t *tensor) Floats() []float32 {
	out := make([]float32, len(t.data))
	for i, v := range t.data {
		out[i] = float32(v)
	}
	return out
}

func (t *tensor) Ints() []int32 {
	out := make([]int32, len(t.data))
	for i, v := range t.data {
		out[i] = int32(v)
	}
	return out
}

func (t *tensor) FromFloats(s []float32) {
	if len(s) != len(t.data) {
		panic(fmt.Errorf("cpu: FromFloats length %d does not match tensor of %d elements", len(s), len(t.data)))
	}
	for i, v := range s {
		t.data[i] = float64(v)
	}
}

// strides returns the row-major element strides per dimension.
func (t *tensor) strides() []int {
	s := make([]int, len(t.shape))
	acc := 1
	for i := len(t.shape) - 1; i >= 0; i-- {
		s[i] = acc
		acc *= t.shape[i]
	}
	return s
}

func numElems(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}

// mustTensor narrows an ml.Tensor to the CPU implementation. Mixing
// tensors from different backends is a programming error.
func mustTensor(t ml.Tensor) *tensor {
	ct, ok := t.(*tensor)
	if !ok {
		panic(fmt.Errorf("cpu: foreign tensor %T", t))
	}
	return ct
}
