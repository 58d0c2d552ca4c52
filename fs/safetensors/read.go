// read.go - Deserialisierung eines Checkpoints
//
// Die Tensor-Payloads werden parallel dekodiert; die Tensoren selbst
// entstehen danach sequentiell im Kontext des Aufrufers.
package safetensors

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"sort"

	"github.com/d4l3k/go-bfloat16"
	"github.com/x448/float16"
	"golang.org/x/sync/errgroup"

	"github.com/cryptozealot/dalle-mini/ml"
)

// decode converts one payload back to float32 values (or raw int32 for
// I32 tensors, returned through ints).
func decode(info tensorInfo, bts []byte) (floats []float32, ints []int32, err error) {
	n := numElems(info.Shape)

	dt, err := parseDType(info.DType)
	if err != nil {
		return nil, nil, err
	}
	if want := n * dt.ElemSize(); want != len(bts) {
		return nil, nil, fmt.Errorf("safetensors: payload of %d bytes, want %d for shape %v %s", len(bts), want, info.Shape, info.DType)
	}

	switch dt {
	case ml.DTypeF32:
		floats = make([]float32, n)
		for i := range floats {
			floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(bts[4*i:]))
		}
	case ml.DTypeF16:
		floats = make([]float32, n)
		for i := range floats {
			floats[i] = float16.Frombits(binary.LittleEndian.Uint16(bts[2*i:])).Float32()
		}
	case ml.DTypeBF16:
		floats = bfloat16.DecodeFloat32(bts)
	case ml.DTypeI32:
		ints = make([]int32, n)
		for i := range ints {
			ints[i] = int32(binary.LittleEndian.Uint32(bts[4*i:]))
		}
	}
	return floats, ints, nil
}

// Read deserializes every tensor into ctx.
func Read(r io.Reader, ctx ml.Context) (map[string]ml.Tensor, error) {
	var lenBuf [8]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, fmt.Errorf("safetensors: short header: %w", err)
	}
	headerLen := binary.LittleEndian.Uint64(lenBuf[:])

	headerJSON := make([]byte, headerLen)
	if _, err := io.ReadFull(r, headerJSON); err != nil {
		return nil, fmt.Errorf("safetensors: short header: %w", err)
	}

	infos, err := parseHeader(headerJSON)
	if err != nil {
		return nil, err
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(infos))
	for name := range infos {
		names = append(names, name)
	}
	sort.Strings(names)

	type decoded struct {
		floats []float32
		ints   []int32
	}
	results := make([]decoded, len(names))

	var g errgroup.Group
	for i, name := range names {
		i, info := i, infos[name]
		g.Go(func() error {
			lo, hi := info.DataOffsets[0], info.DataOffsets[1]
			if lo < 0 || hi < lo || hi > len(data) {
				return fmt.Errorf("safetensors: offsets %v out of range", info.DataOffsets)
			}
			floats, ints, err := decode(info, data[lo:hi])
			if err != nil {
				return err
			}
			results[i] = decoded{floats: floats, ints: ints}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	tensors := make(map[string]ml.Tensor, len(names))
	for i, name := range names {
		info := infos[name]
		dt, _ := parseDType(info.DType)

		var t ml.Tensor
		if results[i].ints != nil {
			t = ctx.FromInts(results[i].ints, info.Shape...)
		} else {
			t = ctx.FromFloats(results[i].floats, info.Shape...)
			if dt != ml.DTypeF32 {
				t = t.Cast(ctx, dt)
			}
		}
		tensors[name] = t
	}
	return tensors, nil
}

// ReadFile reads the checkpoint at path into ctx.
func ReadFile(path string, ctx ml.Context) (map[string]ml.Tensor, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f, ctx)
}
