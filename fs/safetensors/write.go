// write.go - Serialisierung des Parameterbaums
package safetensors

import (
	"encoding/binary"
	"encoding/json"
	"io"
	"math"
	"os"
	"sort"

	"github.com/d4l3k/go-bfloat16"
	"github.com/x448/float16"

	"github.com/cryptozealot/dalle-mini/ml"
)

// encode serializes one tensor's payload in its dtype.
func encode(t ml.Tensor) ([]byte, error) {
	switch t.DType() {
	case ml.DTypeF32:
		vals := t.Floats()
		out := make([]byte, 4*len(vals))
		for i, v := range vals {
			binary.LittleEndian.PutUint32(out[4*i:], math.Float32bits(v))
		}
		return out, nil
	case ml.DTypeF16:
		vals := t.Floats()
		out := make([]byte, 2*len(vals))
		for i, v := range vals {
			binary.LittleEndian.PutUint16(out[2*i:], float16.Fromfloat32(v).Bits())
		}
		return out, nil
	case ml.DTypeBF16:
		return bfloat16.EncodeFloat32(t.Floats()), nil
	case ml.DTypeI32:
		vals := t.Ints()
		out := make([]byte, 4*len(vals))
		for i, v := range vals {
			binary.LittleEndian.PutUint32(out[4*i:], uint32(v))
		}
		return out, nil
	default:
		_, err := dtypeName(t.DType())
		return nil, err
	}
}

// Write serializes the tensors in sorted key order.
func Write(w io.Writer, tensors map[string]ml.Tensor) error {
	names := make([]string, 0, len(tensors))
	for name := range tensors {
		names = append(names, name)
	}
	sort.Strings(names)

	header := make(map[string]tensorInfo, len(names))
	payloads := make([][]byte, 0, len(names))

	offset := 0
	for _, name := range names {
		t := tensors[name]
		dt, err := dtypeName(t.DType())
		if err != nil {
			return err
		}

		bts, err := encode(t)
		if err != nil {
			return err
		}

		header[name] = tensorInfo{
			DType:       dt,
			Shape:       t.Shape(),
			DataOffsets: [2]int{offset, offset + len(bts)},
		}
		payloads = append(payloads, bts)
		offset += len(bts)
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return err
	}

	var lenBuf [8]byte
	binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(headerJSON)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	if _, err := w.Write(headerJSON); err != nil {
		return err
	}
	for _, bts := range payloads {
		if _, err := w.Write(bts); err != nil {
			return err
		}
	}
	return nil
}

// WriteFile writes the tensors to path, replacing any existing file.
func WriteFile(path string, tensors map[string]ml.Tensor) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := Write(f, tensors); err != nil {
		return err
	}
	return f.Sync()
}
