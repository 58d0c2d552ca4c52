// Package model - DalleBart: Seq2seq-Transformer fuer Text-zu-Bild-Token
//
// config.go enthaelt die unveraenderliche Modellkonfiguration. Sie wird
// einmal beim Konstruieren erzeugt, danach nie mutiert und per Referenz
// von allen Submodulen geteilt.
package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

var ErrConfigNotFound = errors.New("config.json not found")

// Config describes the model dimensions. JSON keys follow the published
// checkpoint configuration records.
type Config struct {
	DModel                int     `json:"d_model"`
	EncoderLayers         int     `json:"encoder_layers"`
	DecoderLayers         int     `json:"decoder_layers"`
	EncoderAttentionHeads int     `json:"encoder_attention_heads"`
	DecoderAttentionHeads int     `json:"decoder_attention_heads"`
	EncoderFFNDim         int     `json:"encoder_ffn_dim"`
	DecoderFFNDim         int     `json:"decoder_ffn_dim"`
	EncoderVocabSize      int     `json:"encoder_vocab_size"`
	ImageVocabSize        int     `json:"image_vocab_size"`
	ImageLength           int     `json:"image_length"`
	MaxTextLength         int     `json:"max_text_length"`
	Dropout               float32 `json:"dropout"`
	AttentionDropout      float32 `json:"attention_dropout"`
	ActivationDropout     float32 `json:"activation_dropout"`
	ActivationFunction    string  `json:"activation_function"`
	InitStd               float32 `json:"init_std"`
	ScaleEmbedding        bool    `json:"scale_embedding"`
	TieWordEmbeddings     bool    `json:"tie_word_embeddings"`
	EncoderLayerDrop      float32 `json:"encoder_layerdrop"`
	DecoderLayerDrop      float32 `json:"decoder_layerdrop"`
	GradientCheckpointing bool    `json:"gradient_checkpointing"`

	// BOSTokenID defaults to ImageVocabSize: the decoder vocabulary is
	// one larger than the raw codec vocabulary to reserve it.
	BOSTokenID *int `json:"bos_token_id,omitempty"`
}

// DefaultConfig returns the configuration defaults shared by the
// published checkpoint family. Dimension fields stay zero and must be
// set by the caller or the loaded record.
func DefaultConfig() *Config {
	return &Config{
		ActivationFunction: "gelu",
		Dropout:            0.1,
		InitStd:            0.02,
	}
}

// BOS returns the beginning-of-sequence id in the decoder vocabulary.
func (c *Config) BOS() int {
	if c.BOSTokenID != nil {
		return *c.BOSTokenID
	}
	return c.ImageVocabSize
}

// DecoderVocabSize is the image vocabulary plus the reserved BOS slot.
func (c *Config) DecoderVocabSize() int {
	return c.ImageVocabSize + 1
}

func (c *Config) Validate() error {
	for _, f := range []struct {
		name  string
		value int
	}{
		{"d_model", c.DModel},
		{"encoder_layers", c.EncoderLayers},
		{"decoder_layers", c.DecoderLayers},
		{"encoder_attention_heads", c.EncoderAttentionHeads},
		{"decoder_attention_heads", c.DecoderAttentionHeads},
		{"encoder_ffn_dim", c.EncoderFFNDim},
		{"decoder_ffn_dim", c.DecoderFFNDim},
		{"encoder_vocab_size", c.EncoderVocabSize},
		{"image_vocab_size", c.ImageVocabSize},
		{"image_length", c.ImageLength},
		{"max_text_length", c.MaxTextLength},
	} {
		if f.value <= 0 {
			return fmt.Errorf("config: %s must be positive, got %d", f.name, f.value)
		}
	}

	if c.DModel%c.EncoderAttentionHeads != 0 {
		return fmt.Errorf("embed_dim must be divisible by num_heads (got embed_dim: %d and num_heads: %d)", c.DModel, c.EncoderAttentionHeads)
	}
	if c.DModel%c.DecoderAttentionHeads != 0 {
		return fmt.Errorf("embed_dim must be divisible by num_heads (got embed_dim: %d and num_heads: %d)", c.DModel, c.DecoderAttentionHeads)
	}

	switch c.ActivationFunction {
	case "", "gelu", "relu", "silu", "tanh":
	default:
		return fmt.Errorf("config: unsupported activation_function %q", c.ActivationFunction)
	}

	return nil
}

// LoadConfig reads a config.json record.
func LoadConfig(path string) (*Config, error) {
	bts, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, err
	}

	c := DefaultConfig()
	if err := json.Unmarshal(bts, c); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Save writes the configuration next to the checkpoint weights.
func (c *Config) Save(path string) error {
	bts, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(bts, '\n'), 0o644)
}
