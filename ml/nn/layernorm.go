// layernorm.go - Layer-Normalisierung
package nn

import "github.com/cryptozealot/dalle-mini/ml"

type LayerNorm struct {
	Weight ml.Tensor
	Bias   ml.Tensor
}

func (m *LayerNorm) Forward(ctx ml.Context, t ml.Tensor, eps float32) ml.Tensor {
	return t.LayerNorm(ctx, m.Weight, m.Bias, eps)
}
