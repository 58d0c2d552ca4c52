// pretrained.go - Oeffentlicher Modell-Wrapper
//
// DalleBart besitzt Backend, Kontext und Parameterbaum. Der Baum wird
// als Ganzes ausgetauscht (SetParams), nie teilweise mutiert; nach
// jedem Austausch werden die Module neu gebunden.
package model

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/cryptozealot/dalle-mini/fs/safetensors"
	"github.com/cryptozealot/dalle-mini/ml"
)

const (
	configFile  = "config.json"
	weightsFile = "model.safetensors"
)

// Options controls model construction.
type Options struct {
	// Seed drives the weight initialization. Two models constructed with
	// the same config and seed carry identical trees.
	Seed int64

	// DType is the parameter dtype; zero value means F32.
	DType ml.DType

	// AbstractInit allocates the full parameter path set with correct
	// shapes but skips drawing values. Used for validation and as the
	// template side of checkpoint reconciliation.
	AbstractInit bool

	// LoadOnCPU forces the CPU backend.
	LoadOnCPU bool

	// NumThreads caps backend parallelism; zero means runtime default.
	NumThreads int
}

// DalleBart is the conditional-generation model: a BART-style seq2seq
// transformer mapping text tokens to image-codec tokens.
type DalleBart struct {
	cfg     *Config
	backend ml.Backend
	ctx     ml.Context

	params   Params
	required map[string]struct{}
	bound    *conditionalGeneration
}

// New constructs a freshly initialized model.
func New(cfg *Config, opts Options) (*DalleBart, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	dtype := opts.DType
	if dtype == ml.DTypeOther {
		dtype = ml.DTypeF32
	}

	backend, err := ml.NewBackend(ml.BackendParams{
		NumThreads: opts.NumThreads,
		ForceCPU:   opts.LoadOnCPU,
	})
	if err != nil {
		return nil, err
	}

	ctx := backend.NewContext()
	params := initParams(ctx, cfg, opts.Seed, dtype, opts.AbstractInit)

	bound, err := bind(params, cfg)
	if err != nil {
		backend.Close()
		return nil, err
	}

	return &DalleBart{
		cfg:      cfg,
		backend:  backend,
		ctx:      ctx,
		params:   params,
		required: params.KeySet(),
		bound:    bound,
	}, nil
}

// Close releases the backend.
func (m *DalleBart) Close() {
	m.ctx.Close()
	m.backend.Close()
}

func (m *DalleBart) Config() *Config { return m.cfg }

// Context exposes the model's tensor context for building inputs.
func (m *DalleBart) Context() ml.Context { return m.ctx }

// NumParams counts scalar parameters over the whole tree.
func (m *DalleBart) NumParams() int64 { return m.params.NumParams() }

// Params returns the live parameter tree. Callers must not mutate it;
// use SetParams to swap trees.
func (m *DalleBart) Params() Params { return m.params }

// SetParams replaces the parameter tree wholesale. The new tree must
// cover exactly the required path set; shapes must match per path.
func (m *DalleBart) SetParams(p Params) error {
	for key := range m.required {
		t, ok := p[key]
		if !ok {
			return fmt.Errorf("model: parameter %q missing from tree", key)
		}
		want := m.params.get(key).Shape()
		if !shapeEqual(want, t.Shape()) {
			return fmt.Errorf("model: parameter %q has shape %v, want %v", key, t.Shape(), want)
		}
	}
	for key := range p {
		if _, ok := m.required[key]; !ok {
			return fmt.Errorf("model: unexpected parameter %q", key)
		}
	}

	bound, err := bind(p, m.cfg)
	if err != nil {
		return err
	}

	m.params = p
	m.bound = bound
	return nil
}

func shapeEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// onesMask builds an all-ones [batch, seq] attention mask.
func onesMask(ctx ml.Context, batch, seq int) ml.Tensor {
	vals := make([]float32, batch*seq)
	for i := range vals {
		vals[i] = 1
	}
	return ctx.FromFloats(vals, batch, seq)
}

// arangePositions builds default [batch, seq] position ids 0..seq-1.
func arangePositions(ctx ml.Context, batch, seq int) ml.Tensor {
	vals := make([]int32, batch*seq)
	for b := 0; b < batch; b++ {
		for s := 0; s < seq; s++ {
			vals[b*seq+s] = int32(s)
		}
	}
	return ctx.FromInts(vals, batch, seq)
}

// Encode runs the encoder over text token ids [batch, seq] and returns
// the hidden states [batch, seq, d_model]. attentionMask may be nil.
func (m *DalleBart) Encode(inputIDs, attentionMask ml.Tensor) ml.Tensor {
	return m.bound.Model.Encoder.Forward(m.ctx, inputIDs, attentionMask, false, nil)
}

// ForwardInput is a full teacher-forced pass over both stacks.
type ForwardInput struct {
	InputIDs             ml.Tensor
	AttentionMask        ml.Tensor
	DecoderInputIDs      ml.Tensor
	DecoderAttentionMask ml.Tensor
	DecoderPositionIDs   ml.Tensor

	// Train enables dropout and layerdrop; Rng supplies the draws.
	Train bool
	Rng   *rand.Rand
}

// Forward computes logits [batch, decoder_seq, decoder_vocab] for a
// full encoder + decoder pass. Nil masks default to all ones, nil
// position ids to 0..seq-1.
func (m *DalleBart) Forward(in ForwardInput) ml.Tensor {
	ctx := m.ctx

	attnMask := in.AttentionMask
	if attnMask == nil {
		attnMask = onesMask(ctx, in.InputIDs.Dim(0), in.InputIDs.Dim(1))
	}
	decMask := in.DecoderAttentionMask
	if decMask == nil {
		decMask = onesMask(ctx, in.DecoderInputIDs.Dim(0), in.DecoderInputIDs.Dim(1))
	}
	positions := in.DecoderPositionIDs
	if positions == nil {
		positions = arangePositions(ctx, in.DecoderInputIDs.Dim(0), in.DecoderInputIDs.Dim(1))
	}

	return m.bound.forward(ctx, in.InputIDs, attnMask, in.DecoderInputIDs, decMask, positions, in.Train, in.Rng)
}

// Save writes config.json and model.safetensors into dir.
func (m *DalleBart) Save(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if err := m.cfg.Save(filepath.Join(dir, configFile)); err != nil {
		return err
	}
	return safetensors.WriteFile(filepath.Join(dir, weightsFile), m.params)
}
