// dropout.go - Inverted Dropout
// Ohne Zufallsquelle (Inferenz) ist Dropout deterministisch die Identitaet.
package nn

import (
	"math/rand"

	"github.com/cryptozealot/dalle-mini/ml"
)

// Dropout zeroes elements with probability rate and rescales the rest
// by 1/(1-rate). A nil rng selects deterministic (inference) behavior.
func Dropout(ctx ml.Context, t ml.Tensor, rate float32, rng *rand.Rand) ml.Tensor {
	if rng == nil || rate <= 0 {
		return t
	}

	shape := t.Shape()
	n := 1
	for _, d := range shape {
		n *= d
	}

	keep := 1 - float64(rate)
	mask := make([]float32, n)
	for i := range mask {
		if rng.Float64() < keep {
			mask[i] = float32(1 / keep)
		}
	}

	return t.Mul(ctx, ctx.FromFloats(mask, shape...))
}
