// decoder.go - Decoder-Wrapper und Layer-Stack
//
// Wie der Encoder, aber mit Bildtoken-Vokabular (+1 fuer BOS),
// expliziten Positions-IDs und pro Layer unabhaengigem Cache-Slot.
package model

import (
	"math"
	"math/rand"

	"github.com/cryptozealot/dalle-mini/kvcache"
	"github.com/cryptozealot/dalle-mini/ml"
	"github.com/cryptozealot/dalle-mini/ml/nn"
)

type decoder struct {
	EmbedTokens        *nn.Embedding
	EmbedPositions     *nn.Embedding
	LayernormEmbedding *nn.LayerNorm
	Layers             []*decoderLayer

	cfg *Config
}

// Forward decodes token ids [batch, seq] against encoder hidden states.
// positions are explicit [batch, seq] position ids (offset 0). cache,
// when non-nil, is extended in place layer by layer.
func (d *decoder) Forward(ctx ml.Context, inputIDs, positions, selfPadMask, encoderHidden, encPadMask ml.Tensor, cache *kvcache.Causal, train bool, rng *rand.Rand) ml.Tensor {
	hidden := d.EmbedTokens.Forward(ctx, inputIDs)
	if d.cfg.ScaleEmbedding {
		hidden = hidden.Scale(ctx, math.Sqrt(float64(d.cfg.DModel)))
	}

	pos := d.EmbedPositions.Forward(ctx, positions)
	hidden = hidden.Add(ctx, pos)

	hidden = d.LayernormEmbedding.Forward(ctx, hidden, layerNormEps)

	var dropRng *rand.Rand
	if train {
		dropRng = rng
	}
	hidden = nn.Dropout(ctx, hidden, d.cfg.Dropout, dropRng)

	for i, layer := range d.Layers {
		if train && rng != nil && rng.Float64() < float64(d.cfg.DecoderLayerDrop) {
			continue
		}

		var slot *kvcache.Causal
		if cache != nil {
			cache.SetLayer(i)
			slot = cache
		}
		hidden = layer.Forward(ctx, hidden, encoderHidden, selfPadMask, encPadMask, slot, train, rng)
	}

	return hidden
}
