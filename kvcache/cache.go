// Package kvcache - Key/Value-Cache fuer autoregressives Dekodieren
//
// Dieses Modul enthaelt die Grundstruktur und Konstruktion:
// - Causal: Cache fuer die kausale Decoder-Self-Attention
// - NewCausal/Init: Konstruktion und Vorallokation
// - Clone: Wertsemantik fuer das Durchreichen durch Decode-Aufrufe
//
// Pro Decoder-Layer haelt der Cache je einen vorallokierten Key- und
// Value-Puffer sowie einen Cursor. Cross-Attention wird nie gecacht,
// da sich der Encoder-Output ueber Decode-Schritte nicht aendert.
package kvcache

import (
	"errors"
	"fmt"

	"github.com/cryptozealot/dalle-mini/ml"
)

var ErrKvCacheFull = errors.New("could not find a kv cache slot")

// maskValue is the additive bias for masked positions. A large finite
// negative value instead of -Inf so gradients stay finite.
const maskValue = -1e9

type layerState struct {
	// keys and values are [capacity, batch, heads, headDim]; rows are
	// positions so the cursor maps directly to row indices.
	keys   ml.Tensor
	values ml.Tensor

	// pos is the cursor: the number of filled positions. Put never
	// writes below it, Get and Mask never read beyond it.
	pos int
}

// Causal accumulates per-layer key/value projections of previously
// decoded positions. It is a sequential accumulator, not a concurrency
// structure; concurrent use against one instance must be serialized by
// the caller.
type Causal struct {
	capacity int
	batch    int
	heads    int
	headDim  int
	dtype    ml.DType

	layers   []layerState
	curLayer int
}

func NewCausal() *Causal {
	return &Causal{}
}

// Init preallocates every layer's buffers to capacity positions, all
// cursors at zero. Must be called once before the first Put.
func (c *Causal) Init(ctx ml.Context, dtype ml.DType, numLayers, batch, heads, headDim, capacity int) {
	if capacity < 1 {
		panic(fmt.Errorf("kvcache: capacity must be positive, got %d", capacity))
	}

	c.capacity = capacity
	c.batch = batch
	c.heads = heads
	c.headDim = headDim
	c.dtype = dtype

	c.layers = make([]layerState, numLayers)
	for i := range c.layers {
		c.layers[i].keys = ctx.Zeros(dtype, capacity, batch, heads, headDim)
		c.layers[i].values = ctx.Zeros(dtype, capacity, batch, heads, headDim)
	}
}

// Capacity returns the preallocated number of positions per layer.
func (c *Causal) Capacity() int { return c.capacity }

// Pos returns the cursor of the given layer.
func (c *Causal) Pos(layer int) int { return c.layers[layer].pos }

// NumLayers returns the number of layer slots.
func (c *Causal) NumLayers() int { return len(c.layers) }

// Clone deep-copies the cache so an updated version can be returned
// without aliasing the caller's value.
func (c *Causal) Clone(ctx ml.Context) *Causal {
	out := &Causal{
		capacity: c.capacity,
		batch:    c.batch,
		heads:    c.heads,
		headDim:  c.headDim,
		dtype:    c.dtype,
		curLayer: c.curLayer,
	}
	out.layers = make([]layerState, len(c.layers))
	for i := range c.layers {
		out.layers[i].pos = c.layers[i].pos
		if c.layers[i].keys != nil {
			out.layers[i].keys = c.layers[i].keys.Duplicate(ctx)
			out.layers[i].values = c.layers[i].values.Duplicate(ctx)
		}
	}
	return out
}
