// attention.go - Skalierte Dot-Product-Attention
// Fused Helper ueber [batch, heads, seq, headDim] Tensoren.
package nn

import (
	"math/rand"

	"github.com/cryptozealot/dalle-mini/ml"
)

// Attention computes scaled dot-product attention. query, key and value
// are [batch, heads, seq, headDim]; mask is an additive bias broadcast
// against the [batch, heads, qLen, kvLen] score matrix, or nil. Returns
// the attended output and the post-softmax weights.
//
// Weight dropout applies between normalization and the value product;
// a nil rng disables it.
func Attention(ctx ml.Context, query, key, value, mask ml.Tensor, scale float64, dropout float32, rng *rand.Rand) (ml.Tensor, ml.Tensor) {
	scores := query.Mulmat(ctx, key.Permute(ctx, 0, 1, 3, 2))
	scores = scores.Scale(ctx, scale)

	if mask != nil {
		scores = scores.Add(ctx, mask)
	}

	weights := scores.Softmax(ctx)

	attended := Dropout(ctx, weights, dropout, rng).Mulmat(ctx, value)
	return attended, weights
}
