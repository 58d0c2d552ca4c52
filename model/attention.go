// attention.go - Multi-Head-Attention mit optionalem KV-Cache
//
// Self- und Cross-Attention der BART-Bloecke. Die kausale Variante
// haelt ein statisches Dreiecksmuster der Laenge image_length; im
// Cache-Betrieb wird es am Cursor geschnitten und mit der Padding-Maske
// verschnitten.
package model

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/cryptozealot/dalle-mini/kvcache"
	"github.com/cryptozealot/dalle-mini/ml"
	"github.com/cryptozealot/dalle-mini/ml/nn"
)

// maskValue matches the cache's additive bias for masked positions.
const maskValue = -1e9

type attention struct {
	QProj   *nn.Linear
	KProj   *nn.Linear
	VProj   *nn.Linear
	OutProj *nn.Linear

	numHeads int
	headDim  int
	dropout  float32

	// causalLen is the static lower-triangular pattern length; zero for
	// non-causal (encoder and cross) attention.
	causalLen int
}

func newAttention(embedDim, numHeads int, dropout float32, causalLen int) (*attention, error) {
	headDim := embedDim / numHeads
	if headDim*numHeads != embedDim {
		return nil, fmt.Errorf("embed_dim must be divisible by num_heads (got embed_dim: %d and num_heads: %d)", embedDim, numHeads)
	}

	return &attention{
		numHeads:  numHeads,
		headDim:   headDim,
		dropout:   dropout,
		causalLen: causalLen,
	}, nil
}

// splitHeads reshapes [batch, seq, embed] to [batch, heads, seq, headDim].
func (a *attention) splitHeads(ctx ml.Context, t ml.Tensor) ml.Tensor {
	b, s := t.Dim(0), t.Dim(1)
	return t.Reshape(ctx, b, s, a.numHeads, a.headDim).Permute(ctx, 0, 2, 1, 3)
}

// mergeHeads is the inverse of splitHeads.
func (a *attention) mergeHeads(ctx ml.Context, t ml.Tensor) ml.Tensor {
	b, s := t.Dim(0), t.Dim(2)
	return t.Permute(ctx, 0, 2, 1, 3).Reshape(ctx, b, s, a.numHeads*a.headDim)
}

// causalBias builds the [batch, 1, qLen, qLen] additive mask for the
// uncached causal path: tri-slice of the static pattern intersected
// with the supplied padding mask.
func (a *attention) causalBias(ctx ml.Context, batch, qLen int, padMask ml.Tensor) ml.Tensor {
	if qLen > a.causalLen {
		panic(fmt.Errorf("model: sequence of %d exceeds causal pattern of %d", qLen, a.causalLen))
	}

	var pad []float32
	if padMask != nil {
		pad = padMask.Floats()
	}

	bias := make([]float32, batch*qLen*qLen)
	for b := 0; b < batch; b++ {
		for i := 0; i < qLen; i++ {
			for j := 0; j < qLen; j++ {
				allowed := j <= i
				if allowed && pad != nil {
					allowed = pad[b*padMask.Dim(1)+j] != 0
				}
				if !allowed {
					bias[(b*qLen+i)*qLen+j] = maskValue
				}
			}
		}
	}
	return ctx.FromFloats(bias, batch, 1, qLen, qLen)
}

// paddingBias expands a [batch, kvLen] 0/1 mask into the additive
// [batch, 1, 1, kvLen] form used by non-causal attention.
func paddingBias(ctx ml.Context, padMask ml.Tensor) ml.Tensor {
	if padMask == nil {
		return nil
	}

	b, n := padMask.Dim(0), padMask.Dim(1)
	pad := padMask.Floats()
	bias := make([]float32, len(pad))
	for i, v := range pad {
		if v == 0 {
			bias[i] = maskValue
		}
	}
	return ctx.FromFloats(bias, b, 1, 1, n)
}

// Forward runs attention over hidden. kvHidden selects cross-attention
// when non-nil; cache selects the incremental causal path. padMask is
// the raw 0/1 mask over key positions. Returns output and attention
// weights.
func (a *attention) Forward(ctx ml.Context, hidden, kvHidden, padMask ml.Tensor, cache *kvcache.Causal, train bool, rng *rand.Rand) (ml.Tensor, ml.Tensor) {
	batch, qLen := hidden.Dim(0), hidden.Dim(1)

	query := a.splitHeads(ctx, a.QProj.Forward(ctx, hidden))

	var key, value, bias ml.Tensor
	switch {
	case cache != nil:
		// exactly the new positions are projected and written at the
		// cache cursor; the mask never reads beyond it
		key = a.splitHeads(ctx, a.KProj.Forward(ctx, hidden))
		value = a.splitHeads(ctx, a.VProj.Forward(ctx, hidden))
		if err := cache.Put(ctx, key, value); err != nil {
			panic(err)
		}
		key, value = cache.Get(ctx)
		bias = cache.Mask(ctx, qLen, padMask)
	case kvHidden != nil:
		// cross-attention: keys/values over the full encoder output
		key = a.splitHeads(ctx, a.KProj.Forward(ctx, kvHidden))
		value = a.splitHeads(ctx, a.VProj.Forward(ctx, kvHidden))
		bias = paddingBias(ctx, padMask)
	case a.causalLen > 0:
		key = a.splitHeads(ctx, a.KProj.Forward(ctx, hidden))
		value = a.splitHeads(ctx, a.VProj.Forward(ctx, hidden))
		bias = a.causalBias(ctx, batch, qLen, padMask)
	default:
		key = a.splitHeads(ctx, a.KProj.Forward(ctx, hidden))
		value = a.splitHeads(ctx, a.VProj.Forward(ctx, hidden))
		bias = paddingBias(ctx, padMask)
	}

	var dropRng *rand.Rand
	if train {
		dropRng = rng
	}

	scale := 1 / math.Sqrt(float64(a.headDim))
	attended, weights := nn.Attention(ctx, query, key, value, bias, scale, a.dropout, dropRng)

	return a.OutProj.Forward(ctx, a.mergeHeads(ctx, attended)), weights
}
