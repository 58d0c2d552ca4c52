// encoder.go - Encoder-Wrapper und Layer-Stack
//
// Embedding-Lookup (Token + absolute Position, Offset 0), optionale
// Skalierung mit sqrt(d_model), Normalisierung, dann der Layer-Stack.
// Layer-Drop ueberspringt Layer nur im Training.
package model

import (
	"math"
	"math/rand"

	"github.com/cryptozealot/dalle-mini/ml"
	"github.com/cryptozealot/dalle-mini/ml/nn"
)

type encoder struct {
	EmbedTokens        *nn.Embedding
	EmbedPositions     *nn.Embedding
	LayernormEmbedding *nn.LayerNorm
	Layers             []*encoderLayer

	cfg *Config
}

// Forward encodes token ids [batch, seq] into hidden states
// [batch, seq, d_model]. The encoder runs once per generation.
func (e *encoder) Forward(ctx ml.Context, inputIDs, padMask ml.Tensor, train bool, rng *rand.Rand) ml.Tensor {
	seq := inputIDs.Dim(1)

	hidden := e.EmbedTokens.Forward(ctx, inputIDs)
	if e.cfg.ScaleEmbedding {
		hidden = hidden.Scale(ctx, math.Sqrt(float64(e.cfg.DModel)))
	}

	// absolute positions, no offset: position ids are raw 0..seq-1
	positions := ctx.Arange(0, float32(seq), 1, ml.DTypeI32)
	hidden = hidden.Add(ctx, e.EmbedPositions.Forward(ctx, positions).Reshape(ctx, 1, seq, e.cfg.DModel))

	hidden = e.LayernormEmbedding.Forward(ctx, hidden, layerNormEps)

	var dropRng *rand.Rand
	if train {
		dropRng = rng
	}
	hidden = nn.Dropout(ctx, hidden, e.cfg.Dropout, dropRng)

	for _, layer := range e.Layers {
		if train && rng != nil && rng.Float64() < float64(e.cfg.EncoderLayerDrop) {
			continue
		}
		hidden = layer.Forward(ctx, hidden, padMask, train, rng)
	}

	return hidden
}
