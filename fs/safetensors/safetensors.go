// Package safetensors - Lesen und Schreiben des Safetensors-Formats
//
// Aufbau der Datei: 8 Byte Header-Laenge (little-endian), dann ein
// JSON-Header (Name -> dtype/shape/data_offsets), dann die rohen
// Tensordaten. Offsets sind relativ zum Datenbereich.
package safetensors

import (
	"encoding/json"
	"fmt"

	"github.com/cryptozealot/dalle-mini/ml"
)

// tensorInfo is one header entry.
type tensorInfo struct {
	DType       string `json:"dtype"`
	Shape       []int  `json:"shape"`
	DataOffsets [2]int `json:"data_offsets"`
}

func dtypeName(dt ml.DType) (string, error) {
	if dt.ElemSize() == 0 {
		return "", fmt.Errorf("safetensors: unsupported dtype %v", dt)
	}
	return dt.String(), nil
}

func parseDType(name string) (ml.DType, error) {
	dt := ml.ParseDType(name)
	if dt == ml.DTypeOther {
		return dt, fmt.Errorf("safetensors: unsupported dtype %q", name)
	}
	return dt, nil
}

func numElems(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}

func parseHeader(bts []byte) (map[string]tensorInfo, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(bts, &raw); err != nil {
		return nil, fmt.Errorf("safetensors: malformed header: %w", err)
	}

	infos := make(map[string]tensorInfo, len(raw))
	for name, msg := range raw {
		if name == "__metadata__" {
			continue
		}
		var info tensorInfo
		if err := json.Unmarshal(msg, &info); err != nil {
			return nil, fmt.Errorf("safetensors: malformed entry %q: %w", name, err)
		}
		infos[name] = info
	}
	return infos, nil
}
