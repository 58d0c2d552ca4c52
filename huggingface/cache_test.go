// cache_test.go - Unit Tests fuer die Cache-Aufloesung
package huggingface

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// TestCacheDir testet die Prioritaet der Umgebungsvariablen
func TestCacheDir(t *testing.T) {
	tests := []struct {
		name         string
		dalleCache   string
		hfHubCache   string
		hfHome       string
		want         string
		wantContains string
	}{
		{
			name:       "DALLE_CACHE hat hoechste Prioritaet",
			dalleCache: "/dalle/cache",
			hfHubCache: "/hf/cache",
			want:       "/dalle/cache",
		},
		{
			name:       "HF_HUB_CACHE vor HF_HOME",
			hfHubCache: "/hf/cache",
			hfHome:     "/hf/home",
			want:       "/hf/cache",
		},
		{
			name:         "HF_HOME bekommt hub angehaengt",
			hfHome:       "/hf/home",
			wantContains: filepath.Join("/hf/home", "hub"),
		},
		{
			name:         "Default enthaelt huggingface",
			wantContains: "huggingface",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("DALLE_CACHE", tt.dalleCache)
			t.Setenv("HF_HUB_CACHE", tt.hfHubCache)
			t.Setenv("HF_HOME", tt.hfHome)

			got := CacheDir()
			if tt.want != "" && got != tt.want {
				t.Errorf("CacheDir() = %v, erwartet %v", got, tt.want)
			}
			if tt.wantContains != "" && !strings.Contains(got, tt.wantContains) {
				t.Errorf("CacheDir() = %v, sollte %v enthalten", got, tt.wantContains)
			}
		})
	}
}

// TestModelIDToCacheDir testet die Konvertierung von Model-ID zu Cache-Dir
func TestModelIDToCacheDir(t *testing.T) {
	tests := []struct {
		modelID  string
		expected string
	}{
		{
			modelID:  "dalle-mini/dalle-mini",
			expected: "models--dalle-mini--dalle-mini",
		},
		{
			modelID:  "dalle-mini/dalle-mega",
			expected: "models--dalle-mini--dalle-mega",
		},
		{
			modelID:  "plainmodel",
			expected: "models--plainmodel",
		},
	}

	for _, tt := range tests {
		t.Run(tt.modelID, func(t *testing.T) {
			got := modelIDToCacheDir(tt.modelID)
			if got != tt.expected {
				t.Errorf("modelIDToCacheDir(%q) = %v, erwartet %v", tt.modelID, got, tt.expected)
			}
			if back := cacheDirToModelID(got); back != tt.modelID {
				t.Errorf("cacheDirToModelID(%q) = %v, erwartet %v", got, back, tt.modelID)
			}
		})
	}
}

// TestResolve testet die Snapshot-Aufloesung ueber refs
func TestResolve(t *testing.T) {
	cache := t.TempDir()
	t.Setenv("DALLE_CACHE", cache)

	modelRoot := filepath.Join(cache, "models--dalle-mini--dalle-mini")
	snapshot := filepath.Join(modelRoot, "snapshots", "abc123")
	if err := os.MkdirAll(snapshot, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(snapshot, "config.json"), []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(modelRoot, "refs"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(modelRoot, "refs", "main"), []byte("abc123\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := Resolve("dalle-mini/dalle-mini", "")
	if err != nil {
		t.Fatalf("Resolve() Fehler: %v", err)
	}
	if got != snapshot {
		t.Errorf("Resolve() = %v, erwartet %v", got, snapshot)
	}

	// direkte Revision ohne ref funktioniert ebenfalls
	if _, err := Resolve("dalle-mini/dalle-mini", "abc123"); err != nil {
		t.Errorf("Resolve() direkte Revision: %v", err)
	}

	// unbekanntes Modell liefert den Sentinel-Fehler
	if _, err := Resolve("no/such", ""); err != ErrModelNotInCache {
		t.Errorf("Resolve() = %v, erwartet ErrModelNotInCache", err)
	}

	// CachedFile findet Dateien im Snapshot
	if path, ok := CachedFile("dalle-mini/dalle-mini", "", "config.json"); !ok || path == "" {
		t.Error("CachedFile() findet config.json nicht")
	}
	if _, ok := CachedFile("dalle-mini/dalle-mini", "", "missing.bin"); ok {
		t.Error("CachedFile() findet nicht existierende Datei")
	}

	// ListCachedModels enthaelt das Modell
	models, err := ListCachedModels()
	if err != nil {
		t.Fatalf("ListCachedModels() Fehler: %v", err)
	}
	found := false
	for _, m := range models {
		if m == "dalle-mini/dalle-mini" {
			found = true
		}
	}
	if !found {
		t.Errorf("ListCachedModels() = %v, erwartet dalle-mini/dalle-mini", models)
	}
}
