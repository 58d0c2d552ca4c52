// backend.go - Pure-Go CPU-Backend
//
// Dieses Modul implementiert das ml.Backend-Interface ohne externe
// Laufzeitabhaengigkeiten. Alle Operationen werden eager ausgefuehrt;
// die Matrixkerne laufen ueber gonum.
package cpu

import (
	"runtime"

	"github.com/cryptozealot/dalle-mini/ml"
)

type backend struct {
	numThreads int
}

func init() {
	ml.RegisterBackend("cpu", func(params ml.BackendParams) (ml.Backend, error) {
		nt := params.NumThreads
		if nt <= 0 {
			nt = runtime.NumCPU()
		}
		return &backend{numThreads: nt}, nil
	})
}

// New creates a CPU backend directly, bypassing the registry. Used by
// tests and by callers that force CPU initialization.
func New() ml.Backend {
	return &backend{numThreads: runtime.NumCPU()}
}

func (b *backend) Name() string { return "cpu" }

func (b *backend) Close() {}

func (b *backend) NewContext() ml.Context {
	return &context{b: b}
}
