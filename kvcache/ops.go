// Package kvcache - Tensor-Operationen (Get/Put)
//
// Dieses Modul enthaelt die Kern-Tensor-Operationen:
// - SetLayer: Setzt den aktiven Layer
// - Put: Schreibt neue Key/Value-Projektionen an den Cursor
// - Get: Liest die gefuellten Key/Value-Bereiche
package kvcache

import (
	"fmt"

	"github.com/cryptozealot/dalle-mini/ml"
)

func (c *Causal) SetLayer(layer int) {
	if layer < 0 || layer >= len(c.layers) {
		panic(fmt.Errorf("kvcache: layer %d out of range [0, %d)", layer, len(c.layers)))
	}
	c.curLayer = layer
}

// Put writes the projections of newly decoded positions into the
// current layer at its cursor and advances the cursor. key and value
// are [batch, heads, n, headDim].
func (c *Causal) Put(ctx ml.Context, key, value ml.Tensor) error {
	l := &c.layers[c.curLayer]

	n := key.Dim(2)
	if l.pos+n > c.capacity {
		return fmt.Errorf("%w (capacity: %v cursor: %v new: %v)", ErrKvCacheFull, c.capacity, l.pos, n)
	}

	if key.Dim(0) != c.batch || key.Dim(1) != c.heads || key.Dim(3) != c.headDim {
		return fmt.Errorf("kvcache: key shape %v does not match cache [%d, %d, *, %d]", key.Shape(), c.batch, c.heads, c.headDim)
	}

	idxs := make([]int32, n)
	for i := range idxs {
		idxs[i] = int32(l.pos + i)
	}
	rows := ctx.FromInts(idxs, n)

	// [batch, heads, n, headDim] -> [n, batch, heads, headDim], one row
	// per position, matching the buffer layout.
	k := key.Permute(ctx, 2, 0, 1, 3)
	v := value.Permute(ctx, 2, 0, 1, 3)

	l.keys.SetRows(ctx, k, rows)
	l.values.SetRows(ctx, v, rows)

	l.pos += n
	return nil
}

// Get returns the filled key/value region of the current layer as
// [batch, heads, pos, headDim] tensors.
func (c *Causal) Get(ctx ml.Context) (ml.Tensor, ml.Tensor) {
	l := &c.layers[c.curLayer]

	k := l.keys.Slice(ctx, 0, 0, l.pos, 1).Permute(ctx, 1, 2, 0, 3)
	v := l.values.Slice(ctx, 0, 0, l.pos, 1).Permute(ctx, 1, 2, 0, 3)
	return k, v
}
