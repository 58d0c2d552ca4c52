// decode.go - Inkrementelles Dekodieren mit KV-Cache
//
// Der Cache wird vor dem Schritt geklont und nur der Klon erweitert;
// der Aufrufer bekommt den fortgeschriebenen Zustand zurueck und
// entscheidet selbst, welchen Zweig er weiterverfolgt.
package model

import (
	"errors"
	"math/rand"

	"github.com/cryptozealot/dalle-mini/kvcache"
	"github.com/cryptozealot/dalle-mini/ml"
)

// ErrMissingPositionIDs is returned when a cache is supplied without
// explicit position ids. Positions cannot be inferred mid-sequence.
var ErrMissingPositionIDs = errors.New("make sure to provide `decoder_position_ids` when passing `past_key_values`")

// DecodeInput is one decoder step (or prefix) against precomputed
// encoder hidden states.
type DecodeInput struct {
	DecoderInputIDs ml.Tensor

	EncoderHidden        ml.Tensor
	EncoderAttentionMask ml.Tensor

	// DecoderAttentionMask covers the key positions; during cached
	// decoding this is the extended mask over the full cache capacity.
	DecoderAttentionMask ml.Tensor

	// PositionIDs are required whenever Past is non-nil.
	PositionIDs ml.Tensor

	// Past is the cache state produced by the previous step; nil runs
	// the uncached path.
	Past *kvcache.Causal

	Train bool
	Rng   *rand.Rand
}

// DecodeOutput carries the step logits and the advanced cache state.
type DecodeOutput struct {
	Logits ml.Tensor
	Past   *kvcache.Causal
}

// Decode runs the decoder over the given ids. With a cache, only the
// new positions are processed and the returned Past is a clone of the
// input advanced by those positions; the input cache is not touched.
func (m *DalleBart) Decode(in DecodeInput) (*DecodeOutput, error) {
	ctx := m.ctx

	positions := in.PositionIDs
	if in.Past != nil && positions == nil {
		return nil, ErrMissingPositionIDs
	}

	batch, seq := in.DecoderInputIDs.Dim(0), in.DecoderInputIDs.Dim(1)

	decMask := in.DecoderAttentionMask
	if decMask == nil {
		decMask = onesMask(ctx, batch, seq)
	}
	if positions == nil {
		positions = arangePositions(ctx, batch, seq)
	}

	var cache *kvcache.Causal
	if in.Past != nil {
		cache = in.Past.Clone(ctx)
	}

	logits := m.bound.decode(ctx, in.DecoderInputIDs, positions, decMask, in.EncoderHidden, in.EncoderAttentionMask, cache, in.Train, in.Rng)

	return &DecodeOutput{Logits: logits, Past: cache}, nil
}

// GenerationInputs is the prepared state for autoregressive decoding.
type GenerationInputs struct {
	// Past is a fresh cache sized for maxLength-1 generated positions.
	Past *kvcache.Causal

	// DecoderAttentionMask is the extended all-ones mask over the cache
	// capacity with any supplied prefix mask written at offset zero.
	DecoderAttentionMask ml.Tensor

	// PositionIDs for the prefix: running count of attended positions
	// when a prefix mask was supplied, plain arange otherwise.
	PositionIDs ml.Tensor
}

// PrepareInputsForGeneration initializes the decoding state for a
// generation run of at most maxLength tokens. The cache capacity is
// maxLength-1: the final sampled token is never fed back.
func (m *DalleBart) PrepareInputsForGeneration(decoderInputIDs ml.Tensor, maxLength int, decoderAttentionMask ml.Tensor) GenerationInputs {
	ctx := m.ctx
	batch, seq := decoderInputIDs.Dim(0), decoderInputIDs.Dim(1)

	headDim := m.cfg.DModel / m.cfg.DecoderAttentionHeads
	cache := kvcache.NewCausal()
	cache.Init(ctx, ml.DTypeF32, m.cfg.DecoderLayers, batch, m.cfg.DecoderAttentionHeads, headDim, maxLength-1)

	capacity := maxLength - 1
	extended := make([]float32, batch*capacity)
	for i := range extended {
		extended[i] = 1
	}

	var positions ml.Tensor
	if decoderAttentionMask != nil {
		prefix := decoderAttentionMask.Floats()
		n := decoderAttentionMask.Dim(1)
		pos := make([]int32, batch*n)
		for b := 0; b < batch; b++ {
			var running int32
			for s := 0; s < n; s++ {
				v := prefix[b*n+s]
				extended[b*capacity+s] = v
				// position of a token is the count of attended positions
				// before and including it, minus one; leading masked
				// tokens clamp to zero since the attention mask hides
				// them anyway
				running += int32(v)
				p := running - 1
				if p < 0 {
					p = 0
				}
				pos[b*n+s] = p
			}
		}
		positions = ctx.FromInts(pos, batch, n)
	} else {
		positions = arangePositions(ctx, batch, seq)
	}

	return GenerationInputs{
		Past:                 cache,
		DecoderAttentionMask: ctx.FromFloats(extended, batch, capacity),
		PositionIDs:          positions,
	}
}
