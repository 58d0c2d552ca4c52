// Package torch - Laden von PyTorch-Checkpoints
//
// Dieses Modul liest torch.save-Dateien (Zip-Container wie auch der
// aeltere rohe Pickle-Strom) und ueberfuehrt das State-Dict in Tensoren
// des Aufrufer-Kontexts. Nur der Lesepfad existiert; geschrieben wird
// ausschliesslich safetensors.
package torch

import (
	"fmt"

	"github.com/nlpodyssey/gopickle/pytorch"
	"github.com/nlpodyssey/gopickle/types"

	"github.com/cryptozealot/dalle-mini/ml"
)

// Load reads the state dict at path into ctx. All values arrive as F32
// tensors regardless of their stored precision.
func Load(path string, ctx ml.Context) (map[string]ml.Tensor, error) {
	obj, err := pytorch.Load(path)
	if err != nil {
		return nil, fmt.Errorf("torch: %s: %w", path, err)
	}

	entries, err := stateDict(obj)
	if err != nil {
		return nil, fmt.Errorf("torch: %s: %w", path, err)
	}

	tensors := make(map[string]ml.Tensor, len(entries))
	for name, value := range entries {
		t, ok := value.(*pytorch.Tensor)
		if !ok {
			// state dicts of newer trainers carry non-tensor entries
			// (step counters and the like); skip them
			continue
		}

		vals, err := materialize(t)
		if err != nil {
			return nil, fmt.Errorf("torch: tensor %q: %w", name, err)
		}

		shape := t.Size
		if len(shape) == 0 {
			shape = []int{1}
		}
		tensors[name] = ctx.FromFloats(vals, shape...)
	}
	return tensors, nil
}

// stateDict flattens the unpickled top-level object into name -> value.
func stateDict(obj interface{}) (map[string]interface{}, error) {
	out := make(map[string]interface{})

	switch d := obj.(type) {
	case *types.OrderedDict:
		for _, entry := range d.Map {
			key, ok := entry.Key.(string)
			if !ok {
				return nil, fmt.Errorf("non-string key %v in state dict", entry.Key)
			}
			out[key] = entry.Value
		}
	case *types.Dict:
		for _, entry := range *d {
			key, ok := entry.Key.(string)
			if !ok {
				return nil, fmt.Errorf("non-string key %v in state dict", entry.Key)
			}
			out[key] = entry.Value
		}
	default:
		return nil, fmt.Errorf("unexpected top-level object %T", obj)
	}
	return out, nil
}

// materialize copies a contiguous tensor's storage window to float32.
func materialize(t *pytorch.Tensor) ([]float32, error) {
	n := 1
	for _, d := range t.Size {
		n *= d
	}
	lo := int(t.StorageOffset)
	hi := lo + n

	switch s := t.Source.(type) {
	case *pytorch.FloatStorage:
		if hi > len(s.Data) {
			return nil, fmt.Errorf("storage of %d elements, need %d", len(s.Data), hi)
		}
		out := make([]float32, n)
		copy(out, s.Data[lo:hi])
		return out, nil
	case *pytorch.HalfStorage:
		if hi > len(s.Data) {
			return nil, fmt.Errorf("storage of %d elements, need %d", len(s.Data), hi)
		}
		out := make([]float32, n)
		copy(out, s.Data[lo:hi])
		return out, nil
	case *pytorch.BFloat16Storage:
		if hi > len(s.Data) {
			return nil, fmt.Errorf("storage of %d elements, need %d", len(s.Data), hi)
		}
		out := make([]float32, n)
		copy(out, s.Data[lo:hi])
		return out, nil
	case *pytorch.DoubleStorage:
		if hi > len(s.Data) {
			return nil, fmt.Errorf("storage of %d elements, need %d", len(s.Data), hi)
		}
		out := make([]float32, n)
		for i, v := range s.Data[lo:hi] {
			out[i] = float32(v)
		}
		return out, nil
	case *pytorch.IntStorage:
		if hi > len(s.Data) {
			return nil, fmt.Errorf("storage of %d elements, need %d", len(s.Data), hi)
		}
		out := make([]float32, n)
		for i, v := range s.Data[lo:hi] {
			out[i] = float32(v)
		}
		return out, nil
	case *pytorch.LongStorage:
		if hi > len(s.Data) {
			return nil, fmt.Errorf("storage of %d elements, need %d", len(s.Data), hi)
		}
		out := make([]float32, n)
		for i, v := range s.Data[lo:hi] {
			out[i] = float32(v)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported storage type %T", t.Source)
	}
}
