// params.go - Parameterbaum
//
// Der Parameterbaum ist eine flache Abbildung von kanonischen Pfaden
// auf Tensoren. Die Pfadmenge ist eine geschlossene Aufzaehlung
// (Komponente x Layer-Index x Tensor-Rolle), die einmal bei der
// Konstruktion aus einem Shape-only-Initialisierungslauf entsteht und
// danach als Validierungsorakel dient.
package model

import (
	"fmt"
	"sort"

	"github.com/cryptozealot/dalle-mini/ml"
)

// Params maps canonical tensor paths to tensors. Owned exclusively by
// the pretrained wrapper; replaced wholesale, never mutated in place.
type Params map[string]ml.Tensor

const basePrefix = "model."

// Canonical path constructors. These functions are the only producers
// of parameter paths; everything else goes through them.

func encoderKey(rest string) string { return basePrefix + "encoder." + rest }
func decoderKey(rest string) string { return basePrefix + "decoder." + rest }

func encoderLayerKey(layer int, rest string) string {
	return fmt.Sprintf("%sencoder.layers.%d.%s", basePrefix, layer, rest)
}

func decoderLayerKey(layer int, rest string) string {
	return fmt.Sprintf("%sdecoder.layers.%d.%s", basePrefix, layer, rest)
}

const lmHeadKey = "lm_head.weight"

// attnRoles enumerates the projection tensors of one attention block.
// Projections carry no bias.
var attnRoles = []string{"q_proj.weight", "k_proj.weight", "v_proj.weight", "out_proj.weight"}

// Keys returns the sorted path set.
func (p Params) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// KeySet returns the paths as a set.
func (p Params) KeySet() map[string]struct{} {
	set := make(map[string]struct{}, len(p))
	for k := range p {
		set[k] = struct{}{}
	}
	return set
}

// NumParams counts elements over every tensor in the tree.
func (p Params) NumParams() int64 {
	var n int64
	for _, t := range p {
		elems := int64(1)
		for _, d := range t.Shape() {
			elems *= int64(d)
		}
		n += elems
	}
	return n
}

// Clone deep-copies the tree.
func (p Params) Clone(ctx ml.Context) Params {
	out := make(Params, len(p))
	for k, t := range p {
		out[k] = t.Duplicate(ctx)
	}
	return out
}

// get fails loudly on a missing path; binding runs against a validated
// tree, so a miss is a programming error.
func (p Params) get(key string) ml.Tensor {
	t, ok := p[key]
	if !ok {
		panic(fmt.Errorf("model: parameter %q missing from tree", key))
	}
	return t
}
