// load_test.go - Unit Tests fuer das Laden und den Checkpoint-Abgleich
package model

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cryptozealot/dalle-mini/fs/safetensors"
)

// saveModel legt einen frischen Checkpoint in einem Temp-Verzeichnis ab
func saveModel(t *testing.T, seed int64) (*DalleBart, string) {
	t.Helper()

	cfg := testConfig()
	m, err := New(cfg, Options{Seed: seed})
	require.NoError(t, err)

	dir := t.TempDir()
	require.NoError(t, m.Save(dir))
	return m, dir
}

// TestSaveLoadRoundTrip testet, dass Save/FromPretrained den Baum
// wertgleich wiederherstellt
func TestSaveLoadRoundTrip(t *testing.T) {
	orig, dir := saveModel(t, 42)
	defer orig.Close()

	loaded, err := FromPretrained(dir, LoadOptions{})
	require.NoError(t, err)
	defer loaded.Close()

	require.ElementsMatch(t, orig.Params().Keys(), loaded.Params().Keys())
	for _, key := range orig.Params().Keys() {
		assert.Equal(t, orig.Params()[key].Shape(), loaded.Params()[key].Shape(), key)
		assert.InDeltaSlice(t, orig.Params()[key].Floats(), loaded.Params()[key].Floats(), 1e-6, key)
	}
	assert.Equal(t, orig.NumParams(), loaded.NumParams())
}

// TestLoadMissingAndUnexpectedKeys testet den permissiven Abgleich:
// fehlende Pfade bleiben frisch initialisiert, ueberzaehlige werden
// verworfen
func TestLoadMissingAndUnexpectedKeys(t *testing.T) {
	orig, dir := saveModel(t, 42)
	defer orig.Close()

	// Checkpoint manipulieren: einen Pfad entfernen, einen erfinden
	ckpt := make(Params, len(orig.Params()))
	for k, v := range orig.Params() {
		ckpt[k] = v
	}
	missing := encoderKey("layernorm_embedding.bias")
	delete(ckpt, missing)
	ckpt["model.encoder.totally_unknown.weight"] = orig.Params()[lmHeadKey]

	require.NoError(t, safetensors.WriteFile(filepath.Join(dir, "model.safetensors"), ckpt))

	loaded, err := FromPretrained(dir, LoadOptions{Seed: 7})
	require.NoError(t, err)
	defer loaded.Close()

	// der fehlende Pfad existiert mit korrekter Form und dem frisch
	// initialisierten Wert des Lade-Seeds
	fresh, err := New(loaded.Config(), Options{Seed: 7})
	require.NoError(t, err)
	defer fresh.Close()

	assert.InDeltaSlice(t, fresh.Params()[missing].Floats(), loaded.Params()[missing].Floats(), 1e-6)

	// der erfundene Pfad taucht nicht auf
	_, ok := loaded.Params()["model.encoder.totally_unknown.weight"]
	assert.False(t, ok)

	// vorhandene Pfade kommen aus dem Checkpoint
	key := decoderKey("embed_tokens.weight")
	assert.InDeltaSlice(t, orig.Params()[key].Floats(), loaded.Params()[key].Floats(), 1e-6)
}

// TestLoadShapeMismatch testet harten Fehler und permissive Ersetzung
func TestLoadShapeMismatch(t *testing.T) {
	orig, dir := saveModel(t, 42)
	defer orig.Close()

	ckpt := make(Params, len(orig.Params()))
	for k, v := range orig.Params() {
		ckpt[k] = v
	}
	key := encoderKey("embed_tokens.weight")
	ckpt[key] = orig.Context().Zeros(ckpt[key].DType(), 2, 2)

	require.NoError(t, safetensors.WriteFile(filepath.Join(dir, "model.safetensors"), ckpt))

	// Default: harter Fehler, der den Pfad benennt
	_, err := FromPretrained(dir, LoadOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), key)
	assert.Contains(t, err.Error(), "IgnoreMismatchedSizes")

	// Permissiv: frisch initialisierter Wert mit Modellform
	loaded, err := FromPretrained(dir, LoadOptions{Seed: 7, IgnoreMismatchedSizes: true})
	require.NoError(t, err)
	defer loaded.Close()

	fresh, err := New(loaded.Config(), Options{Seed: 7})
	require.NoError(t, err)
	defer fresh.Close()

	assert.Equal(t, fresh.Params()[key].Shape(), loaded.Params()[key].Shape())
	assert.InDeltaSlice(t, fresh.Params()[key].Floats(), loaded.Params()[key].Floats(), 1e-6)
}

// TestLoadLFSPointer testet die Diagnose fuer git-lfs Zeiger-Dateien
func TestLoadLFSPointer(t *testing.T) {
	orig, dir := saveModel(t, 1)
	defer orig.Close()

	pointer := "version https://git-lfs.github.com/spec/v1\noid sha256:abc\nsize 123\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "model.safetensors"), []byte(pointer), 0o644))

	_, err := FromPretrained(dir, LoadOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "git lfs pull")
}

// TestLoadTorchRequiresOptIn testet die Diagnose fuer PyTorch-Dateien
func TestLoadTorchRequiresOptIn(t *testing.T) {
	orig, dir := saveModel(t, 1)
	defer orig.Close()

	// roher Pickle-Strom beginnt mit 0x80
	require.NoError(t, os.WriteFile(filepath.Join(dir, "model.safetensors"), []byte{0x80, 0x02, 0x00}, 0o644))

	_, err := FromPretrained(dir, LoadOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FromPT")
}

// TestLoadUnknownPath testet die Fehlermeldung fuer unaufloesbare Namen
func TestLoadUnknownPath(t *testing.T) {
	_, err := FromPretrained("no/such-model-anywhere", LoadOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no/such-model-anywhere")
}
