// seq2seq.go - Modellbindung und Logit-Projektion
//
// Bindet den flachen Parameterbaum an die typisierten Module. Die
// Bindung ist eine reine Sichten-Konstruktion: Tensoren werden geteilt,
// nie kopiert. Nach jedem Austausch des Baums wird neu gebunden.
package model

import (
	"math/rand"

	"github.com/cryptozealot/dalle-mini/kvcache"
	"github.com/cryptozealot/dalle-mini/ml"
	"github.com/cryptozealot/dalle-mini/ml/nn"
)

type bartModel struct {
	Encoder *encoder
	Decoder *decoder
}

// conditionalGeneration is the bound model: the seq2seq trunk plus the
// output projection onto the decoder vocabulary.
type conditionalGeneration struct {
	Model  *bartModel
	LMHead *nn.Linear

	cfg *Config
}

func bindAttention(p Params, keyFn func(string) string, numHeads int, dropout float32, causalLen int) (*attention, error) {
	embedDim := p.get(keyFn("q_proj.weight")).Dim(1)
	a, err := newAttention(embedDim, numHeads, dropout, causalLen)
	if err != nil {
		return nil, err
	}

	a.QProj = &nn.Linear{Weight: p.get(keyFn("q_proj.weight"))}
	a.KProj = &nn.Linear{Weight: p.get(keyFn("k_proj.weight"))}
	a.VProj = &nn.Linear{Weight: p.get(keyFn("v_proj.weight"))}
	a.OutProj = &nn.Linear{Weight: p.get(keyFn("out_proj.weight"))}
	return a, nil
}

func bindLayerNorm(p Params, prefix string, keyFn func(string) string) *nn.LayerNorm {
	return &nn.LayerNorm{
		Weight: p.get(keyFn(prefix + ".weight")),
		Bias:   p.get(keyFn(prefix + ".bias")),
	}
}

func bindFeedForward(p Params, keyFn func(string) string, cfg *Config) *feedForward {
	return &feedForward{
		FC1:               &nn.Linear{Weight: p.get(keyFn("fc1.weight"))},
		FC2:               &nn.Linear{Weight: p.get(keyFn("fc2.weight"))},
		act:               activation(cfg.ActivationFunction),
		dropout:           cfg.Dropout,
		activationDropout: cfg.ActivationDropout,
	}
}

func bindEncoder(p Params, cfg *Config) (*encoder, error) {
	e := &encoder{
		EmbedTokens:    &nn.Embedding{Weight: p.get(encoderKey("embed_tokens.weight"))},
		EmbedPositions: &nn.Embedding{Weight: p.get(encoderKey("embed_positions.weight"))},
		LayernormEmbedding: &nn.LayerNorm{
			Weight: p.get(encoderKey("layernorm_embedding.weight")),
			Bias:   p.get(encoderKey("layernorm_embedding.bias")),
		},
		cfg: cfg,
	}

	for i := 0; i < cfg.EncoderLayers; i++ {
		keyFn := func(rest string) string { return encoderLayerKey(i, rest) }
		selfAttn, err := bindAttention(p, func(rest string) string { return keyFn("self_attn." + rest) },
			cfg.EncoderAttentionHeads, cfg.AttentionDropout, 0)
		if err != nil {
			return nil, err
		}

		e.Layers = append(e.Layers, &encoderLayer{
			SelfAttn:          selfAttn,
			SelfAttnLayerNorm: bindLayerNorm(p, "self_attn_layer_norm", keyFn),
			FFN:               bindFeedForward(p, keyFn, cfg),
			FinalLayerNorm:    bindLayerNorm(p, "final_layer_norm", keyFn),
			dropout:           cfg.Dropout,
		})
	}
	return e, nil
}

func bindDecoder(p Params, cfg *Config) (*decoder, error) {
	d := &decoder{
		EmbedTokens:    &nn.Embedding{Weight: p.get(decoderKey("embed_tokens.weight"))},
		EmbedPositions: &nn.Embedding{Weight: p.get(decoderKey("embed_positions.weight"))},
		LayernormEmbedding: &nn.LayerNorm{
			Weight: p.get(decoderKey("layernorm_embedding.weight")),
			Bias:   p.get(decoderKey("layernorm_embedding.bias")),
		},
		cfg: cfg,
	}

	for i := 0; i < cfg.DecoderLayers; i++ {
		keyFn := func(rest string) string { return decoderLayerKey(i, rest) }
		selfAttn, err := bindAttention(p, func(rest string) string { return keyFn("self_attn." + rest) },
			cfg.DecoderAttentionHeads, cfg.AttentionDropout, cfg.ImageLength)
		if err != nil {
			return nil, err
		}
		crossAttn, err := bindAttention(p, func(rest string) string { return keyFn("encoder_attn." + rest) },
			cfg.DecoderAttentionHeads, cfg.AttentionDropout, 0)
		if err != nil {
			return nil, err
		}

		d.Layers = append(d.Layers, &decoderLayer{
			SelfAttn:             selfAttn,
			SelfAttnLayerNorm:    bindLayerNorm(p, "self_attn_layer_norm", keyFn),
			EncoderAttn:          crossAttn,
			EncoderAttnLayerNorm: bindLayerNorm(p, "encoder_attn_layer_norm", keyFn),
			FFN:                  bindFeedForward(p, keyFn, cfg),
			FinalLayerNorm:       bindLayerNorm(p, "final_layer_norm", keyFn),
			dropout:              cfg.Dropout,
		})
	}
	return d, nil
}

// bind constructs the typed module tree over a validated parameter tree.
func bind(p Params, cfg *Config) (*conditionalGeneration, error) {
	enc, err := bindEncoder(p, cfg)
	if err != nil {
		return nil, err
	}
	dec, err := bindDecoder(p, cfg)
	if err != nil {
		return nil, err
	}

	// tied embeddings reuse the decoder input table as the projection
	// kernel; the logits are then hidden times the transposed table,
	// numerically identical to a dedicated lm_head with that weight.
	head := &nn.Linear{}
	if cfg.TieWordEmbeddings {
		head.Weight = p.get(decoderKey("embed_tokens.weight"))
	} else {
		head.Weight = p.get(lmHeadKey)
	}

	return &conditionalGeneration{
		Model:  &bartModel{Encoder: enc, Decoder: dec},
		LMHead: head,
		cfg:    cfg,
	}, nil
}

// forward runs the full teacher-forced pass and projects logits
// [batch, seq, decoder_vocab].
func (m *conditionalGeneration) forward(ctx ml.Context, inputIDs, attentionMask, decoderInputIDs, decoderAttentionMask, positions ml.Tensor, train bool, rng *rand.Rand) ml.Tensor {
	encoderHidden := m.Model.Encoder.Forward(ctx, inputIDs, attentionMask, train, rng)
	hidden := m.Model.Decoder.Forward(ctx, decoderInputIDs, positions, decoderAttentionMask, encoderHidden, attentionMask, nil, train, rng)
	return m.LMHead.Forward(ctx, hidden)
}

// decode runs the decoder alone, optionally against a cache.
func (m *conditionalGeneration) decode(ctx ml.Context, decoderInputIDs, positions, decoderAttentionMask, encoderHidden, encoderAttentionMask ml.Tensor, cache *kvcache.Causal, train bool, rng *rand.Rand) ml.Tensor {
	hidden := m.Model.Decoder.Forward(ctx, decoderInputIDs, positions, decoderAttentionMask, encoderHidden, encoderAttentionMask, cache, train, rng)
	return m.LMHead.Forward(ctx, hidden)
}
