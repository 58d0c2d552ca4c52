// embedding.go - Embedding-Tabelle
package nn

import "github.com/cryptozealot/dalle-mini/ml"

type Embedding struct {
	Weight ml.Tensor // [vocab, dim]
}

func (m *Embedding) Forward(ctx ml.Context, ids ml.Tensor) ml.Tensor {
	return m.Weight.Rows(ctx, ids)
}
