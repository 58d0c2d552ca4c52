// types.go - Datentypen und Konstanten fuer ML-Operationen
// Dieses Modul definiert grundlegende Typen wie DType.
package ml

import "fmt"

// DType represents the data type of tensor elements.
type DType int

const (
	DTypeOther DType = iota
	DTypeF32
	DTypeF16
	DTypeBF16
	DTypeI32
)

func (t DType) String() string {
	switch t {
	case DTypeF32:
		return "F32"
	case DTypeF16:
		return "F16"
	case DTypeBF16:
		return "BF16"
	case DTypeI32:
		return "I32"
	default:
		return fmt.Sprintf("DType(%d)", int(t))
	}
}

// ElemSize returns the serialized size of one element in bytes.
func (t DType) ElemSize() int {
	switch t {
	case DTypeF16, DTypeBF16:
		return 2
	case DTypeF32, DTypeI32:
		return 4
	default:
		return 0
	}
}

// ParseDType maps a serialized dtype name to a DType.
func ParseDType(s string) DType {
	switch s {
	case "F32":
		return DTypeF32
	case "F16":
		return DTypeF16
	case "BF16":
		return DTypeBF16
	case "I32":
		return DTypeI32
	default:
		return DTypeOther
	}
}
