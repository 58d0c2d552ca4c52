// safetensors_test.go - Unit Tests fuer Serialisierung
package safetensors

import (
	"bytes"
	"math"
	"path/filepath"
	"testing"

	"github.com/cryptozealot/dalle-mini/ml"
	"github.com/cryptozealot/dalle-mini/ml/backend/cpu"
)

// TestRoundTrip testet Write/Read ueber alle unterstuetzten Dtypes
func TestRoundTrip(t *testing.T) {
	ctx := cpu.New().NewContext()
	defer ctx.Close()

	tensors := map[string]ml.Tensor{
		"a.weight": ctx.FromFloats([]float32{1.5, -2.25, 0.125, 4}, 2, 2),
		"b.bias":   ctx.FromFloats([]float32{0.5, -0.5}, 2).Cast(ctx, ml.DTypeF16),
		"c.ids":    ctx.FromInts([]int32{3, -7, 11}, 3),
	}

	var buf bytes.Buffer
	if err := Write(&buf, tensors); err != nil {
		t.Fatalf("Write() Fehler: %v", err)
	}

	got, err := Read(&buf, ctx)
	if err != nil {
		t.Fatalf("Read() Fehler: %v", err)
	}
	if len(got) != len(tensors) {
		t.Fatalf("Read() liefert %d Tensoren, erwartet %d", len(got), len(tensors))
	}

	for name, want := range tensors {
		g, ok := got[name]
		if !ok {
			t.Fatalf("Tensor %q fehlt", name)
		}
		if g.DType() != want.DType() {
			t.Errorf("%s: DType = %v, erwartet %v", name, g.DType(), want.DType())
		}
		wantShape, gotShape := want.Shape(), g.Shape()
		if len(wantShape) != len(gotShape) {
			t.Fatalf("%s: Form = %v, erwartet %v", name, gotShape, wantShape)
		}
		for i := range wantShape {
			if wantShape[i] != gotShape[i] {
				t.Fatalf("%s: Form = %v, erwartet %v", name, gotShape, wantShape)
			}
		}

		wv, gv := want.Floats(), g.Floats()
		for i := range wv {
			if math.Abs(float64(wv[i]-gv[i])) > 1e-6 {
				t.Errorf("%s[%d] = %v, erwartet %v", name, i, gv[i], wv[i])
			}
		}
	}
}

// TestReadFileErrors testet die Fehlerpfade des Lesers
func TestReadFileErrors(t *testing.T) {
	ctx := cpu.New().NewContext()
	defer ctx.Close()

	// abgeschnittener Header
	if _, err := Read(bytes.NewReader([]byte{1, 2, 3}), ctx); err == nil {
		t.Error("Read() kurzer Header: erwartet Fehler")
	}

	// kaputtes JSON
	var buf bytes.Buffer
	buf.Write([]byte{5, 0, 0, 0, 0, 0, 0, 0})
	buf.WriteString("{oops")
	if _, err := Read(&buf, ctx); err == nil {
		t.Error("Read() kaputter Header: erwartet Fehler")
	}

	if _, err := ReadFile(filepath.Join(t.TempDir(), "missing.safetensors"), ctx); err == nil {
		t.Error("ReadFile() fehlende Datei: erwartet Fehler")
	}
}
