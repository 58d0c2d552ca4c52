// init.go - Gewichtsinitialisierung
//
// Dense-Kerne und Embeddings ziehen aus N(0, init_std); LayerNorm
// startet mit Eins/Null. Abstract-Init legt nur Formen an, ohne Werte
// zu ziehen; die Pfadmenge ist in beiden Faellen identisch und in
// fester Reihenfolge aufgezaehlt, damit ein Seed deterministisch
// dieselben Werte liefert.
package model

import (
	"math/rand"

	"github.com/cryptozealot/dalle-mini/ml"
)

type initializer struct {
	ctx      ml.Context
	dtype    ml.DType
	rng      *rand.Rand
	std      float64
	abstract bool
}

func (in *initializer) normal(shape ...int) ml.Tensor {
	t := in.ctx.Empty(in.dtype, shape...)
	if in.abstract {
		return t
	}

	n := 1
	for _, d := range shape {
		n *= d
	}
	vals := make([]float32, n)
	for i := range vals {
		vals[i] = float32(in.rng.NormFloat64() * in.std)
	}
	t.FromFloats(vals)
	return t
}

func (in *initializer) ones(n int) ml.Tensor {
	t := in.ctx.Empty(in.dtype, n)
	if in.abstract {
		return t
	}
	vals := make([]float32, n)
	for i := range vals {
		vals[i] = 1
	}
	t.FromFloats(vals)
	return t
}

func (in *initializer) zeros(n int) ml.Tensor {
	return in.ctx.Zeros(in.dtype, n)
}

// initParams enumerates the closed parameter path set and populates it.
func initParams(ctx ml.Context, cfg *Config, seed int64, dtype ml.DType, abstract bool) Params {
	in := &initializer{
		ctx:      ctx,
		dtype:    dtype,
		rng:      rand.New(rand.NewSource(seed)),
		std:      float64(cfg.InitStd),
		abstract: abstract,
	}

	p := make(Params)

	// encoder
	p[encoderKey("embed_tokens.weight")] = in.normal(cfg.EncoderVocabSize, cfg.DModel)
	p[encoderKey("embed_positions.weight")] = in.normal(cfg.MaxTextLength, cfg.DModel)
	p[encoderKey("layernorm_embedding.weight")] = in.ones(cfg.DModel)
	p[encoderKey("layernorm_embedding.bias")] = in.zeros(cfg.DModel)
	for i := 0; i < cfg.EncoderLayers; i++ {
		for _, role := range attnRoles {
			p[encoderLayerKey(i, "self_attn."+role)] = in.normal(cfg.DModel, cfg.DModel)
		}
		p[encoderLayerKey(i, "self_attn_layer_norm.weight")] = in.ones(cfg.DModel)
		p[encoderLayerKey(i, "self_attn_layer_norm.bias")] = in.zeros(cfg.DModel)
		p[encoderLayerKey(i, "fc1.weight")] = in.normal(cfg.EncoderFFNDim, cfg.DModel)
		p[encoderLayerKey(i, "fc2.weight")] = in.normal(cfg.DModel, cfg.EncoderFFNDim)
		p[encoderLayerKey(i, "final_layer_norm.weight")] = in.ones(cfg.DModel)
		p[encoderLayerKey(i, "final_layer_norm.bias")] = in.zeros(cfg.DModel)
	}

	// decoder
	p[decoderKey("embed_tokens.weight")] = in.normal(cfg.DecoderVocabSize(), cfg.DModel)
	p[decoderKey("embed_positions.weight")] = in.normal(cfg.ImageLength, cfg.DModel)
	p[decoderKey("layernorm_embedding.weight")] = in.ones(cfg.DModel)
	p[decoderKey("layernorm_embedding.bias")] = in.zeros(cfg.DModel)
	for i := 0; i < cfg.DecoderLayers; i++ {
		for _, role := range attnRoles {
			p[decoderLayerKey(i, "self_attn."+role)] = in.normal(cfg.DModel, cfg.DModel)
		}
		p[decoderLayerKey(i, "self_attn_layer_norm.weight")] = in.ones(cfg.DModel)
		p[decoderLayerKey(i, "self_attn_layer_norm.bias")] = in.zeros(cfg.DModel)
		for _, role := range attnRoles {
			p[decoderLayerKey(i, "encoder_attn."+role)] = in.normal(cfg.DModel, cfg.DModel)
		}
		p[decoderLayerKey(i, "encoder_attn_layer_norm.weight")] = in.ones(cfg.DModel)
		p[decoderLayerKey(i, "encoder_attn_layer_norm.bias")] = in.zeros(cfg.DModel)
		p[decoderLayerKey(i, "fc1.weight")] = in.normal(cfg.DecoderFFNDim, cfg.DModel)
		p[decoderLayerKey(i, "fc2.weight")] = in.normal(cfg.DModel, cfg.DecoderFFNDim)
		p[decoderLayerKey(i, "final_layer_norm.weight")] = in.ones(cfg.DModel)
		p[decoderLayerKey(i, "final_layer_norm.bias")] = in.zeros(cfg.DModel)
	}

	// output projection: with tied embeddings the decoder input table
	// doubles as the projection weight and the tree carries no separate
	// lm_head entry.
	if !cfg.TieWordEmbeddings {
		p[lmHeadKey] = in.normal(cfg.DecoderVocabSize(), cfg.DModel)
	}

	return p
}
