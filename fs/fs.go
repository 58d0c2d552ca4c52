// Package fs - Checkpoint-Formaterkennung
//
// Dieses Modul erkennt anhand der ersten Bytes, welches Format eine
// Gewichtsdatei hat. Die Erkennung laeuft vor dem eigentlichen Laden,
// damit Fehlermeldungen das Problem benennen statt an einem kaputten
// Parser zu scheitern.
package fs

import (
	"bytes"
	"fmt"
	"os"
)

type Format int

const (
	FormatUnknown Format = iota
	FormatSafetensors
	FormatTorch
	FormatLFSPointer
)

func (f Format) String() string {
	switch f {
	case FormatSafetensors:
		return "safetensors"
	case FormatTorch:
		return "torch"
	case FormatLFSPointer:
		return "git-lfs pointer"
	default:
		return "unknown"
	}
}

// lfsPrefix opens every git-lfs pointer file. A checkpoint starting
// with it was cloned without `git lfs pull`.
var lfsPrefix = []byte("version https://git-lfs")

// DetectBytes classifies a checkpoint by its leading bytes.
func DetectBytes(head []byte) Format {
	switch {
	case bytes.HasPrefix(head, lfsPrefix):
		return FormatLFSPointer
	case bytes.HasPrefix(head, []byte("PK\x03\x04")):
		// zip archive: the torch.save container format
		return FormatTorch
	case len(head) > 0 && head[0] == 0x80:
		// bare pickle stream: legacy torch.save
		return FormatTorch
	case len(head) > 8 && head[8] == '{':
		// 8-byte little-endian header length followed by a JSON header
		return FormatSafetensors
	default:
		return FormatUnknown
	}
}

// Detect classifies the checkpoint file at path.
func Detect(path string) (Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return FormatUnknown, err
	}
	defer f.Close()

	head := make([]byte, 16)
	n, err := f.Read(head)
	if n == 0 {
		return FormatUnknown, fmt.Errorf("fs: %s: empty or unreadable file: %v", path, err)
	}
	return DetectBytes(head[:n]), nil
}
