// tensor_nn.go - Neuronale Basisoperationen
// Enthaelt: Softmax, LayerNorm, Rows, SetRows, Cast.
package cpu

import (
	"fmt"
	"math"

	"github.com/d4l3k/go-bfloat16"
	"github.com/x448/float16"
	"gonum.org/v1/gonum/floats"

	"github.com/cryptozealot/dalle-mini/ml"
)

// Softmax normalizes along the innermost dimension, numerically
// stabilized by the row maximum.
func (t *tensor) Softmax(ctx ml.Context) ml.Tensor {
	n := t.shape[len(t.shape)-1]
	out := newTensor(t.b, t.dtype, t.shape)

	for off := 0; off < len(t.data); off += n {
		row := t.data[off : off+n]
		dst := out.data[off : off+n]

		maxv := floats.Max(row)
		for i, v := range row {
			dst[i] = math.Exp(v - maxv)
		}
		sum := floats.Sum(dst)
		floats.Scale(1/sum, dst)
	}
	return out
}

// LayerNorm normalizes along the innermost dimension with learned scale
// and bias. A nil weight or bias is treated as identity.
func (t *tensor) LayerNorm(ctx ml.Context, weight, bias ml.Tensor, eps float32) ml.Tensor {
	n := t.shape[len(t.shape)-1]
	out := newTensor(t.b, t.dtype, t.shape)

	var w, b []float64
	if weight != nil {
		w = mustTensor(weight).data
		if len(w) != n {
			panic(fmt.Errorf("cpu: LayerNorm weight has %d elements, want %d", len(w), n))
		}
	}
	if bias != nil {
		b = mustTensor(bias).data
		if len(b) != n {
			panic(fmt.Errorf("cpu: LayerNorm bias has %d elements, want %d", len(b), n))
		}
	}

	for off := 0; off < len(t.data); off += n {
		row := t.data[off : off+n]
		dst := out.data[off : off+n]

		mean := floats.Sum(row) / float64(n)
		var variance float64
		for _, v := range row {
			d := v - mean
			variance += d * d
		}
		variance /= float64(n)

		inv := 1 / math.Sqrt(variance+float64(eps))
		for i, v := range row {
			dst[i] = (v - mean) * inv
			if w != nil {
				dst[i] *= w[i]
			}
			if b != nil {
				dst[i] += b[i]
			}
		}
	}
	return out
}

func (t *tensor) Rows(ctx ml.Context, ids ml.Tensor) ml.Tensor {
	idx := mustTensor(ids)
	if len(t.shape) < 1 {
		panic("cpu: Rows on scalar tensor")
	}

	rows := t.shape[0]
	rowLen := numElems(t.shape[1:])

	outShape := append(append([]int(nil), idx.shape...), t.shape[1:]...)
	out := newTensor(t.b, t.dtype, outShape)

	for i, v := range idx.data {
		r := int(v)
		if r < 0 || r >= rows {
			panic(fmt.Errorf("cpu: row index %d out of range [0, %d)", r, rows))
		}
		copy(out.data[i*rowLen:(i+1)*rowLen], t.data[r*rowLen:(r+1)*rowLen])
	}
	return out
}

// SetRows mutates the receiver, writing src rows at the given indices.
// This is the one in-place operation; it exists for cache buffers.
func (t *tensor) SetRows(ctx ml.Context, src ml.Tensor, idxs ml.Tensor) ml.Tensor {
	s := mustTensor(src)
	idx := mustTensor(idxs)

	rows := t.shape[0]
	rowLen := numElems(t.shape[1:])

	if len(s.data) != len(idx.data)*rowLen {
		panic(fmt.Errorf("cpu: SetRows source shape %v does not match %d rows of %d elements", s.shape, len(idx.data), rowLen))
	}

	for i, v := range idx.data {
		r := int(v)
		if r < 0 || r >= rows {
			panic(fmt.Errorf("cpu: row index %d out of range [0, %d)", r, rows))
		}
		copy(t.data[r*rowLen:(r+1)*rowLen], s.data[i*rowLen:(i+1)*rowLen])
	}
	return t
}

// Cast rounds the values through the target dtype's representation so
// that later serialization is value-stable.
func (t *tensor) Cast(ctx ml.Context, dtype ml.DType) ml.Tensor {
	out := newTensor(t.b, dtype, t.shape)
	switch dtype {
	case ml.DTypeF16:
		for i, v := range t.data {
			out.data[i] = float64(float16.Fromfloat32(float32(v)).Float32())
		}
	case ml.DTypeBF16:
		f32 := make([]float32, len(t.data))
		for i, v := range t.data {
			f32[i] = float32(v)
		}
		rounded := bfloat16.DecodeFloat32(bfloat16.EncodeFloat32(f32))
		for i, v := range rounded {
			out.data[i] = float64(v)
		}
	case ml.DTypeI32:
		for i, v := range t.data {
			out.data[i] = math.Trunc(v)
		}
	default:
		copy(out.data, t.data)
	}
	return out
}
