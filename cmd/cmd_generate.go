// cmd_generate.go - Generate Command: autoregressives Sampling
// Hauptfunktionen: GenerateHandler, sampleToken
package cmd

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/cryptozealot/dalle-mini/model"
)

func newGenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate MODEL",
		Short: "Generate image tokens from encoded text tokens",
		Args:  cobra.ExactArgs(1),
		RunE:  GenerateHandler,
	}
	cmd.Flags().String("tokens", "", "Comma-separated text token ids (required)")
	cmd.Flags().Float64("temperature", 1.0, "Sampling temperature")
	cmd.Flags().Int("top-k", 0, "Restrict sampling to the k most likely tokens (0 = off)")
	cmd.Flags().Int64("seed", 0, "Sampling seed (0 = time-based)")
	cmd.Flags().Bool("from-pt", false, "Allow loading a PyTorch checkpoint")
	return cmd
}

// GenerateHandler - Kodiert die Text-Token und dekodiert Bildtoken
func GenerateHandler(cmd *cobra.Command, args []string) error {
	tokensFlag, _ := cmd.Flags().GetString("tokens")
	temperature, _ := cmd.Flags().GetFloat64("temperature")
	topK, _ := cmd.Flags().GetInt("top-k")
	seed, _ := cmd.Flags().GetInt64("seed")
	fromPT, _ := cmd.Flags().GetBool("from-pt")

	if tokensFlag == "" {
		return fmt.Errorf("--tokens is required")
	}
	textTokens, err := parseTokens(tokensFlag)
	if err != nil {
		return err
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	m, err := model.FromPretrained(args[0], model.LoadOptions{FromPT: fromPT})
	if err != nil {
		return err
	}
	defer m.Close()

	cfg := m.Config()
	ctx := m.Context()
	rng := rand.New(rand.NewSource(seed))

	// Encoder laeuft genau einmal pro Generierung
	inputIDs := ctx.FromInts(textTokens, 1, len(textTokens))
	encoderHidden := m.Encode(inputIDs, nil)

	// BOS + image_length generierte Token
	maxLength := cfg.ImageLength + 1
	cur := ctx.FromInts([]int32{int32(cfg.BOS())}, 1, 1)
	gen := m.PrepareInputsForGeneration(cur, maxLength, nil)

	past := gen.Past
	positions := gen.PositionIDs

	generated := make([]int32, 0, cfg.ImageLength)
	for step := 0; step < cfg.ImageLength; step++ {
		out, err := m.Decode(model.DecodeInput{
			DecoderInputIDs:      cur,
			EncoderHidden:        encoderHidden,
			DecoderAttentionMask: gen.DecoderAttentionMask,
			PositionIDs:          positions,
			Past:                 past,
		})
		if err != nil {
			return err
		}

		logits := out.Logits.Floats()
		vocab := out.Logits.Dim(2)
		// nur die letzte Position interessiert
		last := logits[len(logits)-vocab:]

		token := sampleToken(last, temperature, topK, rng)
		generated = append(generated, int32(token))

		past = out.Past
		cur = ctx.FromInts([]int32{int32(token)}, 1, 1)
		positions = ctx.FromInts([]int32{int32(step + 1)}, 1, 1)
	}

	var sb strings.Builder
	for i, tok := range generated {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(strconv.Itoa(int(tok)))
	}
	fmt.Println(sb.String())
	return nil
}

func parseTokens(s string) ([]int32, error) {
	parts := strings.Split(s, ",")
	tokens := make([]int32, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.ParseInt(strings.TrimSpace(p), 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid token %q: %w", p, err)
		}
		tokens = append(tokens, int32(n))
	}
	return tokens, nil
}

// sampleToken zieht ein Token aus den temperierten Logits
func sampleToken(logits []float32, temperature float64, topK int, rng *rand.Rand) int {
	type scored struct {
		id    int
		logit float64
	}
	scores := make([]scored, len(logits))
	for i, v := range logits {
		scores[i] = scored{id: i, logit: float64(v)}
	}

	if topK > 0 && topK < len(scores) {
		sort.Slice(scores, func(i, j int) bool { return scores[i].logit > scores[j].logit })
		scores = scores[:topK]
	}

	if temperature <= 0 {
		best := scores[0]
		for _, s := range scores[1:] {
			if s.logit > best.logit {
				best = s
			}
		}
		return best.id
	}

	maxLogit := scores[0].logit
	for _, s := range scores[1:] {
		if s.logit > maxLogit {
			maxLogit = s.logit
		}
	}

	var sum float64
	probs := make([]float64, len(scores))
	for i, s := range scores {
		p := math.Exp((s.logit - maxLogit) / temperature)
		probs[i] = p
		sum += p
	}

	r := rng.Float64() * sum
	for i, p := range probs {
		r -= p
		if r <= 0 {
			return scores[i].id
		}
	}
	return scores[len(scores)-1].id
}
