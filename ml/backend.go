// backend.go - Backend-Interface und Registrierung fuer ML-Modelle
// Dieses Modul definiert das Backend-Interface und die Backend-Factory-Funktionen.
package ml

import "fmt"

// Backend represents a tensor execution backend (e.g., the pure-Go CPU
// backend). Backends are registered at init time and selected by name.
type Backend interface {
	// Close frees all memory associated with this backend
	Close()

	Name() string
	NewContext() Context
}

// BackendParams controls how a backend is constructed.
type BackendParams struct {
	// NumThreads sets the number of threads to use if running on the CPU
	NumThreads int

	// ForceCPU selects the CPU backend regardless of the default,
	// mirroring load-on-cpu initialization.
	ForceCPU bool
}

var backends = make(map[string]func(BackendParams) (Backend, error))

// RegisterBackend registers a backend factory function.
func RegisterBackend(name string, f func(BackendParams) (Backend, error)) {
	if _, ok := backends[name]; ok {
		panic("backend: backend already registered")
	}

	backends[name] = f
}

// NewBackend creates a new backend instance.
func NewBackend(params BackendParams) (Backend, error) {
	if backend, ok := backends["cpu"]; ok {
		return backend(params)
	}

	return nil, fmt.Errorf("unsupported backend")
}
