// linear.go - Dense-Schicht
// Gewichte liegen [out, in] (Checkpoint-Konvention); Bias ist optional.
package nn

import "github.com/cryptozealot/dalle-mini/ml"

type Linear struct {
	Weight ml.Tensor
	Bias   ml.Tensor
}

func (m *Linear) Forward(ctx ml.Context, t ml.Tensor) ml.Tensor {
	out := t.Mulmat(ctx, m.Weight.Permute(ctx, 1, 0))
	if m.Bias != nil {
		out = out.Add(ctx, m.Bias)
	}
	return out
}
