// fs_test.go - Unit Tests fuer die Formaterkennung
package fs

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

// TestDetectBytes testet die Klassifikation anhand der Magic Bytes
func TestDetectBytes(t *testing.T) {
	safetensorsHead := make([]byte, 16)
	binary.LittleEndian.PutUint64(safetensorsHead, 2)
	safetensorsHead[8] = '{'
	safetensorsHead[9] = '}'

	tests := []struct {
		name string
		head []byte
		want Format
	}{
		{
			name: "git-lfs Zeiger",
			head: []byte("version https://git-lfs.github.com/spec/v1\n"),
			want: FormatLFSPointer,
		},
		{
			name: "torch Zip-Container",
			head: []byte("PK\x03\x04\x14\x00"),
			want: FormatTorch,
		},
		{
			name: "torch Legacy-Pickle",
			head: []byte{0x80, 0x02},
			want: FormatTorch,
		},
		{
			name: "safetensors",
			head: safetensorsHead,
			want: FormatSafetensors,
		},
		{
			name: "unbekannt",
			head: []byte("GGUF"),
			want: FormatUnknown,
		},
		{
			name: "leer",
			head: nil,
			want: FormatUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectBytes(tt.head); got != tt.want {
				t.Errorf("DetectBytes() = %v, erwartet %v", got, tt.want)
			}
		})
	}
}

// TestDetect testet die Erkennung ueber eine echte Datei
func TestDetect(t *testing.T) {
	path := filepath.Join(t.TempDir(), "weights.bin")
	if err := os.WriteFile(path, []byte("version https://git-lfs.github.com/spec/v1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	format, err := Detect(path)
	if err != nil {
		t.Fatalf("Detect() Fehler: %v", err)
	}
	if format != FormatLFSPointer {
		t.Errorf("Detect() = %v, erwartet FormatLFSPointer", format)
	}

	if _, err := Detect(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("Detect() fehlende Datei: erwartet Fehler")
	}
}
