// cache_test.go - Unit Tests fuer den KV-Cache
package kvcache

import (
	"errors"
	"testing"

	"github.com/cryptozealot/dalle-mini/ml"
	"github.com/cryptozealot/dalle-mini/ml/backend/cpu"
)

func newCtx() ml.Context {
	return cpu.New().NewContext()
}

// TestPutGet testet das Schreiben am Cursor und das Zuruecklesen
func TestPutGet(t *testing.T) {
	ctx := newCtx()
	defer ctx.Close()

	c := NewCausal()
	c.Init(ctx, ml.DTypeF32, 1, 1, 1, 2, 4)
	c.SetLayer(0)

	// zwei Positionen auf einmal
	k1 := ctx.FromFloats([]float32{1, 1, 2, 2}, 1, 1, 2, 2)
	v1 := ctx.FromFloats([]float32{10, 10, 20, 20}, 1, 1, 2, 2)
	if err := c.Put(ctx, k1, v1); err != nil {
		t.Fatalf("Put() Fehler: %v", err)
	}
	if c.Pos(0) != 2 {
		t.Fatalf("Pos() = %d, erwartet 2", c.Pos(0))
	}

	// eine weitere Position
	k2 := ctx.FromFloats([]float32{3, 3}, 1, 1, 1, 2)
	v2 := ctx.FromFloats([]float32{30, 30}, 1, 1, 1, 2)
	if err := c.Put(ctx, k2, v2); err != nil {
		t.Fatalf("Put() Fehler: %v", err)
	}

	keys, values := c.Get(ctx)
	if keys.Dim(2) != 3 {
		t.Fatalf("Get() Keys-Form = %v, erwartet [1 1 3 2]", keys.Shape())
	}

	wantK := []float32{1, 1, 2, 2, 3, 3}
	for i, v := range keys.Floats() {
		if v != wantK[i] {
			t.Errorf("Keys[%d] = %v, erwartet %v", i, v, wantK[i])
		}
	}
	wantV := []float32{10, 10, 20, 20, 30, 30}
	for i, v := range values.Floats() {
		if v != wantV[i] {
			t.Errorf("Values[%d] = %v, erwartet %v", i, v, wantV[i])
		}
	}
}

// TestPutOverflow testet den Kapazitaetsfehler
func TestPutOverflow(t *testing.T) {
	ctx := newCtx()
	defer ctx.Close()

	c := NewCausal()
	c.Init(ctx, ml.DTypeF32, 1, 1, 1, 1, 2)
	c.SetLayer(0)

	k := ctx.FromFloats([]float32{1, 2}, 1, 1, 2, 1)
	if err := c.Put(ctx, k, k); err != nil {
		t.Fatalf("Put() Fehler: %v", err)
	}

	// Kapazitaet erschoepft
	k2 := ctx.FromFloats([]float32{3}, 1, 1, 1, 1)
	err := c.Put(ctx, k2, k2)
	if !errors.Is(err, ErrKvCacheFull) {
		t.Errorf("Put() = %v, erwartet ErrKvCacheFull", err)
	}
	// Cursor bleibt unveraendert
	if c.Pos(0) != 2 {
		t.Errorf("Pos() nach Fehler = %d, erwartet 2", c.Pos(0))
	}
}

// TestMask testet das kausale Muster am Cursor
func TestMask(t *testing.T) {
	ctx := newCtx()
	defer ctx.Close()

	c := NewCausal()
	c.Init(ctx, ml.DTypeF32, 1, 1, 1, 1, 4)
	c.SetLayer(0)

	k := ctx.FromFloats([]float32{1, 2, 3}, 1, 1, 3, 1)
	if err := c.Put(ctx, k, k); err != nil {
		t.Fatalf("Put() Fehler: %v", err)
	}

	// 2 Queries gegen 3 gefuellte Positionen: Query 0 sitzt auf
	// Position 1, Query 1 auf Position 2
	mask := c.Mask(ctx, 2, nil)
	if mask.Dim(2) != 2 || mask.Dim(3) != 3 {
		t.Fatalf("Mask() Form = %v, erwartet [1 1 2 3]", mask.Shape())
	}

	vals := mask.Floats()
	want := []float32{0, 0, maskValue, 0, 0, 0}
	for i := range want {
		if vals[i] != want[i] {
			t.Errorf("Mask()[%d] = %v, erwartet %v", i, vals[i], want[i])
		}
	}

	// Padding-Maske blendet Position 0 zusaetzlich aus
	pad := ctx.FromFloats([]float32{0, 1, 1, 1}, 1, 4)
	masked := c.Mask(ctx, 2, pad).Floats()
	wantPad := []float32{maskValue, 0, maskValue, maskValue, 0, 0}
	for i := range wantPad {
		if masked[i] != wantPad[i] {
			t.Errorf("Mask() mit Padding [%d] = %v, erwartet %v", i, masked[i], wantPad[i])
		}
	}
}

// TestClone testet die Unabhaengigkeit der Kopie
func TestClone(t *testing.T) {
	ctx := newCtx()
	defer ctx.Close()

	c := NewCausal()
	c.Init(ctx, ml.DTypeF32, 2, 1, 1, 1, 4)
	c.SetLayer(0)

	k := ctx.FromFloats([]float32{1}, 1, 1, 1, 1)
	if err := c.Put(ctx, k, k); err != nil {
		t.Fatalf("Put() Fehler: %v", err)
	}

	clone := c.Clone(ctx)
	if clone.Pos(0) != 1 || clone.NumLayers() != 2 || clone.Capacity() != 4 {
		t.Fatalf("Clone() uebernimmt Zustand nicht: pos=%d layers=%d cap=%d", clone.Pos(0), clone.NumLayers(), clone.Capacity())
	}

	// Fortschreiben des Klons laesst das Original unveraendert
	clone.SetLayer(0)
	k2 := ctx.FromFloats([]float32{2}, 1, 1, 1, 1)
	if err := clone.Put(ctx, k2, k2); err != nil {
		t.Fatalf("Put() auf Klon: %v", err)
	}

	if c.Pos(0) != 1 {
		t.Errorf("Original-Cursor = %d nach Klon-Put, erwartet 1", c.Pos(0))
	}
	keys, _ := c.Get(ctx)
	if keys.Dim(2) != 1 {
		t.Errorf("Original-Keys = %v, erwartet eine Position", keys.Shape())
	}
}
