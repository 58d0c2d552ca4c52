// nn_test.go - Unit Tests fuer die neuronalen Grundbausteine
package nn

import (
	"math"
	"math/rand"
	"testing"

	"github.com/cryptozealot/dalle-mini/ml"
	"github.com/cryptozealot/dalle-mini/ml/backend/cpu"
)

func newCtx() ml.Context {
	return cpu.New().NewContext()
}

// TestLinearForward testet die Dense-Schicht mit [out, in]-Gewichten
func TestLinearForward(t *testing.T) {
	ctx := newCtx()
	defer ctx.Close()

	// y = x W^T: [1,2] x [3,2]^T -> [1,3]
	w := ctx.FromFloats([]float32{1, 0, 0, 1, 1, 1}, 3, 2)
	lin := &Linear{Weight: w}

	x := ctx.FromFloats([]float32{2, 5}, 1, 2)
	got := lin.Forward(ctx, x).Floats()

	want := []float32{2, 5, 7}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Forward()[%d] = %v, erwartet %v", i, got[i], want[i])
		}
	}

	// mit Bias
	lin.Bias = ctx.FromFloats([]float32{10, 20, 30}, 3)
	got = lin.Forward(ctx, x).Floats()
	want = []float32{12, 25, 37}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Forward() mit Bias [%d] = %v, erwartet %v", i, got[i], want[i])
		}
	}
}

// TestEmbeddingForward testet den Tabellen-Lookup
func TestEmbeddingForward(t *testing.T) {
	ctx := newCtx()
	defer ctx.Close()

	table := ctx.FromFloats([]float32{0, 0, 10, 11, 20, 21}, 3, 2)
	emb := &Embedding{Weight: table}

	ids := ctx.FromInts([]int32{2, 1}, 1, 2)
	got := emb.Forward(ctx, ids)

	if got.Dim(0) != 1 || got.Dim(1) != 2 || got.Dim(2) != 2 {
		t.Fatalf("Forward() Form = %v, erwartet [1 2 2]", got.Shape())
	}
	want := []float32{20, 21, 10, 11}
	for i, v := range got.Floats() {
		if v != want[i] {
			t.Errorf("Forward()[%d] = %v, erwartet %v", i, v, want[i])
		}
	}
}

// TestDropoutIdentity testet das deterministische Inferenzverhalten
func TestDropoutIdentity(t *testing.T) {
	ctx := newCtx()
	defer ctx.Close()

	in := ctx.FromFloats([]float32{1, 2, 3, 4}, 2, 2)

	// ohne Zufallsquelle: Identitaet, selbst bei Rate > 0
	out := Dropout(ctx, in, 0.5, nil)
	for i, v := range out.Floats() {
		if v != in.Floats()[i] {
			t.Errorf("Dropout(nil rng) veraendert Wert %d", i)
		}
	}

	// Rate 0 mit Zufallsquelle: ebenfalls Identitaet
	out = Dropout(ctx, in, 0, rand.New(rand.NewSource(1)))
	for i, v := range out.Floats() {
		if v != in.Floats()[i] {
			t.Errorf("Dropout(rate 0) veraendert Wert %d", i)
		}
	}
}

// TestAttention testet Gewichtsnormierung und Maskierung
func TestAttention(t *testing.T) {
	ctx := newCtx()
	defer ctx.Close()

	// 1 Batch, 1 Kopf, 2 Positionen, headDim 2
	q := ctx.FromFloats([]float32{1, 0, 0, 1}, 1, 1, 2, 2)
	k := ctx.FromFloats([]float32{1, 0, 0, 1}, 1, 1, 2, 2)
	v := ctx.FromFloats([]float32{5, 0, 0, 7}, 1, 1, 2, 2)

	out, weights := Attention(ctx, q, k, v, nil, 1, 0, nil)

	// Gewichtszeilen summieren zu 1
	w := weights.Floats()
	for row := 0; row < 2; row++ {
		sum := w[row*2] + w[row*2+1]
		if math.Abs(float64(sum)-1) > 1e-6 {
			t.Errorf("Gewichtszeile %d summiert zu %v, erwartet 1", row, sum)
		}
	}

	if out.Dim(2) != 2 || out.Dim(3) != 2 {
		t.Fatalf("Attention() Form = %v, erwartet [1 1 2 2]", out.Shape())
	}

	// additive Maske blendet die zweite Position vollstaendig aus
	mask := ctx.FromFloats([]float32{0, -1e9, 0, -1e9}, 1, 1, 2, 2)
	_, masked := Attention(ctx, q, k, v, mask, 1, 0, nil)
	mw := masked.Floats()
	if mw[1] > 1e-6 || mw[3] > 1e-6 {
		t.Errorf("maskierte Position traegt Gewicht: %v", mw)
	}
	if math.Abs(float64(mw[0])-1) > 1e-6 {
		t.Errorf("erste Position sollte Gewicht 1 tragen, hat %v", mw[0])
	}
}
