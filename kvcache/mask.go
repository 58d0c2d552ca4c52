// Package kvcache - Maskenerzeugung
//
// Dieses Modul baut die additive Attention-Maske fuer den aktuellen
// Layer: Schnittmenge aus kausalem Dreiecksmuster (am Cursor
// geschnitten) und einer optionalen Padding-Maske.
package kvcache

import (
	"fmt"

	"github.com/cryptozealot/dalle-mini/ml"
)

// Mask builds the additive attention bias for the qLen positions most
// recently written via Put. The result is [batch, 1, qLen, pos] with 0
// for attendable entries and a large negative value otherwise.
//
// padMask, when non-nil, is a [batch, >=pos] 0/1 tensor over key
// positions; entries with value 0 are masked out everywhere.
func (c *Causal) Mask(ctx ml.Context, qLen int, padMask ml.Tensor) ml.Tensor {
	l := &c.layers[c.curLayer]

	kvLen := l.pos
	base := l.pos - qLen
	if base < 0 {
		panic(fmt.Errorf("kvcache: mask for %d queries but only %d positions filled", qLen, l.pos))
	}

	var pad []float32
	if padMask != nil {
		if padMask.Dim(0) != c.batch || padMask.Dim(1) < kvLen {
			panic(fmt.Errorf("kvcache: padding mask shape %v does not cover %d x %d", padMask.Shape(), c.batch, kvLen))
		}
		pad = padMask.Floats()
	}

	mask := make([]float32, c.batch*qLen*kvLen)
	for b := 0; b < c.batch; b++ {
		for i := 0; i < qLen; i++ {
			for j := 0; j < kvLen; j++ {
				allowed := j <= base+i
				if allowed && pad != nil {
					allowed = pad[b*padMask.Dim(1)+j] != 0
				}
				if !allowed {
					mask[(b*qLen+i)*kvLen+j] = maskValue
				}
			}
		}
	}

	return ctx.FromFloats(mask, c.batch, 1, qLen, kvLen)
}
