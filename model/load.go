// load.go - Laden vortrainierter Checkpoints
//
// Aufloesung von Name/Pfad (Verzeichnis, Datei oder HuggingFace-ID),
// Formaterkennung mit benannten Diagnosen und der Abgleich zwischen
// Checkpoint-Schluesselmenge und der geforderten Pfadmenge des Modells:
// fehlende Pfade behalten ihre frisch initialisierten Werte, ueberzaehlige
// werden verworfen, Formabweichungen sind ohne Opt-in ein harter Fehler.
package model

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cryptozealot/dalle-mini/fs"
	"github.com/cryptozealot/dalle-mini/fs/safetensors"
	"github.com/cryptozealot/dalle-mini/fs/torch"
	"github.com/cryptozealot/dalle-mini/huggingface"
	"github.com/cryptozealot/dalle-mini/ml"
)

const torchWeightsFile = "pytorch_model.bin"

var ErrWeightsNotFound = errors.New("model weights not found")

// LoadOptions controls checkpoint loading.
type LoadOptions struct {
	// Config overrides the config.json found next to the weights.
	Config *Config

	// Revision selects the snapshot when loading by model id; defaults
	// to "main".
	Revision string

	// FromPT permits loading a PyTorch checkpoint instead of
	// safetensors.
	FromPT bool

	// IgnoreMismatchedSizes downgrades per-tensor shape mismatches from
	// a hard error to a substitution: the mismatched checkpoint value
	// is dropped and the freshly initialized one kept.
	IgnoreMismatchedSizes bool

	Seed       int64
	DType      ml.DType
	LoadOnCPU  bool
	NumThreads int
}

// resolveWeights maps nameOrPath to a weights file path. The search
// order is: explicit file, directory containing the well-known file
// names, then the local checkpoint cache.
func resolveWeights(nameOrPath string, opts LoadOptions) (string, error) {
	tryDir := func(dir string) (string, bool) {
		candidates := []string{weightsFile}
		if opts.FromPT {
			candidates = append(candidates, torchWeightsFile)
		}
		for _, name := range candidates {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				return path, true
			}
		}
		return "", false
	}

	if stat, err := os.Stat(nameOrPath); err == nil {
		if !stat.IsDir() {
			return nameOrPath, nil
		}
		if path, ok := tryDir(nameOrPath); ok {
			return path, nil
		}
		return "", fmt.Errorf("%w: no %s in directory %s", ErrWeightsNotFound, weightsFile, nameOrPath)
	}

	snapshot, err := huggingface.Resolve(nameOrPath, opts.Revision)
	if err != nil {
		return "", fmt.Errorf("%w: %s is neither a local path nor a cached model id", ErrWeightsNotFound, nameOrPath)
	}
	if path, ok := tryDir(snapshot); ok {
		return path, nil
	}
	return "", fmt.Errorf("%w: no %s in snapshot %s", ErrWeightsNotFound, weightsFile, snapshot)
}

// readCheckpoint detects the file format and decodes the raw tensor
// map. Detection runs first so failures name the actual problem.
func readCheckpoint(path string, ctx ml.Context, opts LoadOptions) (map[string]ml.Tensor, error) {
	format, err := fs.Detect(path)
	if err != nil {
		return nil, err
	}

	switch format {
	case fs.FormatLFSPointer:
		return nil, fmt.Errorf("%s is a git-lfs pointer, not the checkpoint itself; run `git lfs pull` in the checkout", path)
	case fs.FormatTorch:
		if !opts.FromPT {
			return nil, fmt.Errorf("%s is a PyTorch checkpoint; pass FromPT to load it", path)
		}
		return torch.Load(path, ctx)
	case fs.FormatSafetensors:
		return safetensors.ReadFile(path, ctx)
	default:
		return nil, fmt.Errorf("cannot decode %s: unknown checkpoint format", path)
	}
}

// normalizeKeys reconciles the base-model prefix: checkpoints written
// from the bare seq2seq trunk lack the "model." nesting the
// conditional-generation tree carries, and vice versa.
func normalizeKeys(state map[string]ml.Tensor, required map[string]struct{}) map[string]ml.Tensor {
	out := make(map[string]ml.Tensor, len(state))
	for key, t := range state {
		if _, ok := required[key]; ok {
			out[key] = t
			continue
		}
		if _, ok := required[basePrefix+key]; ok {
			out[basePrefix+key] = t
			continue
		}
		if trimmed := strings.TrimPrefix(key, basePrefix); trimmed != key {
			if _, ok := required[trimmed]; ok {
				out[trimmed] = t
				continue
			}
		}
		out[key] = t
	}
	return out
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// reconcile merges the checkpoint state into the freshly initialized
// tree. Returns the merged tree or a hard error on shape mismatch.
func reconcile(fresh Params, state map[string]ml.Tensor, path string, ignoreMismatched bool) (Params, error) {
	required := fresh.KeySet()
	state = normalizeKeys(state, required)

	missing := make(map[string]struct{})
	unexpected := make(map[string]struct{})
	var mismatched []string

	merged := make(Params, len(fresh))
	for key, freshT := range fresh {
		ckptT, ok := state[key]
		if !ok {
			missing[key] = struct{}{}
			merged[key] = freshT
			continue
		}

		if !shapeEqual(freshT.Shape(), ckptT.Shape()) {
			if !ignoreMismatched {
				return nil, fmt.Errorf(
					"trying to load the pretrained weight for %q failed: checkpoint has shape %v which is incompatible with the model shape %v; "+
						"set IgnoreMismatchedSizes to load this checkpoint anyway",
					key, ckptT.Shape(), freshT.Shape())
			}
			mismatched = append(mismatched, fmt.Sprintf("%s: found %v in the checkpoint and %v in the model", key, ckptT.Shape(), freshT.Shape()))
			merged[key] = freshT
			continue
		}

		merged[key] = ckptT
	}
	for key := range state {
		if _, ok := required[key]; !ok {
			unexpected[key] = struct{}{}
		}
	}

	if len(unexpected) > 0 {
		slog.Warn("some weights of the checkpoint were not used when initializing the model",
			"checkpoint", path, "keys", sortedKeys(unexpected))
	}
	if len(missing) > 0 {
		slog.Warn("some weights were not initialized from the checkpoint and are newly initialized",
			"checkpoint", path, "keys", sortedKeys(missing))
	}
	sort.Strings(mismatched)
	for _, m := range mismatched {
		slog.Warn("checkpoint weight shape mismatch, keeping the newly initialized value", "detail", m)
	}

	return merged, nil
}

// FromPretrained loads a checkpoint by local path or cached model id.
func FromPretrained(nameOrPath string, opts LoadOptions) (*DalleBart, error) {
	path, err := resolveWeights(nameOrPath, opts)
	if err != nil {
		return nil, err
	}

	cfg := opts.Config
	if cfg == nil {
		cfg, err = LoadConfig(filepath.Join(filepath.Dir(path), configFile))
		if err != nil {
			return nil, err
		}
	}

	m, err := New(cfg, Options{
		Seed:       opts.Seed,
		DType:      opts.DType,
		LoadOnCPU:  opts.LoadOnCPU,
		NumThreads: opts.NumThreads,
	})
	if err != nil {
		return nil, err
	}

	state, err := readCheckpoint(path, m.ctx, opts)
	if err != nil {
		m.Close()
		return nil, err
	}

	merged, err := reconcile(m.params, state, path, opts.IgnoreMismatchedSizes)
	if err != nil {
		m.Close()
		return nil, err
	}

	if err := m.SetParams(merged); err != nil {
		m.Close()
		return nil, err
	}

	slog.Debug("loaded checkpoint", "path", path, "parameters", m.NumParams())
	return m, nil
}
