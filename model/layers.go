// layers.go - Encoder- und Decoder-Residualbloecke
//
// Post-LN BART-Bloecke: (Self-)Attention -> Residual -> LayerNorm ->
// Feed-Forward -> Residual -> LayerNorm. Der Decoder-Block schaltet
// eine Cross-Attention auf den Encoder-Output dazwischen.
package model

import (
	"math/rand"

	"github.com/cryptozealot/dalle-mini/kvcache"
	"github.com/cryptozealot/dalle-mini/ml"
	"github.com/cryptozealot/dalle-mini/ml/nn"
)

const layerNormEps = 1e-5

type activationFn func(ml.Context, ml.Tensor) ml.Tensor

func activation(name string) activationFn {
	switch name {
	case "relu":
		return func(ctx ml.Context, t ml.Tensor) ml.Tensor { return t.RELU(ctx) }
	case "silu":
		return func(ctx ml.Context, t ml.Tensor) ml.Tensor { return t.SILU(ctx) }
	case "tanh":
		return func(ctx ml.Context, t ml.Tensor) ml.Tensor { return t.Tanh(ctx) }
	default:
		return func(ctx ml.Context, t ml.Tensor) ml.Tensor { return t.GELU(ctx) }
	}
}

type feedForward struct {
	FC1 *nn.Linear
	FC2 *nn.Linear

	act               activationFn
	dropout           float32
	activationDropout float32
}

func (f *feedForward) Forward(ctx ml.Context, hidden ml.Tensor, train bool, rng *rand.Rand) ml.Tensor {
	var dropRng *rand.Rand
	if train {
		dropRng = rng
	}

	h := f.act(ctx, f.FC1.Forward(ctx, hidden))
	h = nn.Dropout(ctx, h, f.activationDropout, dropRng)
	h = f.FC2.Forward(ctx, h)
	return nn.Dropout(ctx, h, f.dropout, dropRng)
}

type encoderLayer struct {
	SelfAttn          *attention
	SelfAttnLayerNorm *nn.LayerNorm
	FFN               *feedForward
	FinalLayerNorm    *nn.LayerNorm

	dropout float32
}

func (l *encoderLayer) Forward(ctx ml.Context, hidden, padMask ml.Tensor, train bool, rng *rand.Rand) ml.Tensor {
	var dropRng *rand.Rand
	if train {
		dropRng = rng
	}

	residual := hidden
	attnOut, _ := l.SelfAttn.Forward(ctx, hidden, nil, padMask, nil, train, rng)
	hidden = residual.Add(ctx, nn.Dropout(ctx, attnOut, l.dropout, dropRng))
	hidden = l.SelfAttnLayerNorm.Forward(ctx, hidden, layerNormEps)

	residual = hidden
	hidden = residual.Add(ctx, l.FFN.Forward(ctx, hidden, train, rng))
	return l.FinalLayerNorm.Forward(ctx, hidden, layerNormEps)
}

type decoderLayer struct {
	SelfAttn             *attention
	SelfAttnLayerNorm    *nn.LayerNorm
	EncoderAttn          *attention
	EncoderAttnLayerNorm *nn.LayerNorm
	FFN                  *feedForward
	FinalLayerNorm       *nn.LayerNorm

	dropout float32
}

// Forward runs the decoder block. cache, when non-nil, is this layer's
// slot; cross-attention is never cached.
func (l *decoderLayer) Forward(ctx ml.Context, hidden, encoderHidden, selfPadMask, encPadMask ml.Tensor, cache *kvcache.Causal, train bool, rng *rand.Rand) ml.Tensor {
	var dropRng *rand.Rand
	if train {
		dropRng = rng
	}

	residual := hidden
	attnOut, _ := l.SelfAttn.Forward(ctx, hidden, nil, selfPadMask, cache, train, rng)
	hidden = residual.Add(ctx, nn.Dropout(ctx, attnOut, l.dropout, dropRng))
	hidden = l.SelfAttnLayerNorm.Forward(ctx, hidden, layerNormEps)

	residual = hidden
	crossOut, _ := l.EncoderAttn.Forward(ctx, hidden, encoderHidden, encPadMask, nil, train, rng)
	hidden = residual.Add(ctx, nn.Dropout(ctx, crossOut, l.dropout, dropRng))
	hidden = l.EncoderAttnLayerNorm.Forward(ctx, hidden, layerNormEps)

	residual = hidden
	hidden = residual.Add(ctx, l.FFN.Forward(ctx, hidden, train, rng))
	return l.FinalLayerNorm.Forward(ctx, hidden, layerNormEps)
}
