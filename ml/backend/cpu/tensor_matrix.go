// tensor_matrix.go - Matrixmultiplikation ueber gonum
// Batched Mulmat ueber die zwei innersten Dimensionen.
package cpu

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/cryptozealot/dalle-mini/ml"
)

func (t *tensor) Mulmat(ctx ml.Context, t2 ml.Tensor) ml.Tensor {
	o := mustTensor(t2)

	if len(t.shape) < 2 || len(o.shape) < 2 {
		panic(fmt.Errorf("cpu: Mulmat requires at least 2 dimensions, got %v x %v", t.shape, o.shape))
	}

	m, k := t.shape[len(t.shape)-2], t.shape[len(t.shape)-1]
	k2, n := o.shape[len(o.shape)-2], o.shape[len(o.shape)-1]
	if k != k2 {
		panic(fmt.Errorf("cpu: Mulmat inner dimensions do not match: %v x %v", t.shape, o.shape))
	}

	batchA := t.shape[:len(t.shape)-2]
	batchB := o.shape[:len(o.shape)-2]
	batch := broadcastShape(batchA, batchB)

	outShape := append(append([]int(nil), batch...), m, n)
	out := newTensor(t.b, t.dtype, outShape)

	nBatch := numElems(batch)
	for i := 0; i < nBatch; i++ {
		offA := broadcastIndex(i, batch, batchA) * m * k
		offB := broadcastIndex(i, batch, batchB) * k * n
		offC := i * m * n

		a := mat.NewDense(m, k, t.data[offA:offA+m*k])
		b := mat.NewDense(k, n, o.data[offB:offB+k*n])
		c := mat.NewDense(m, n, out.data[offC:offC+m*n])
		c.Mul(a, b)
	}

	return out
}
